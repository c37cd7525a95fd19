package manager

import (
	"fmt"
	"time"

	"github.com/paulwrubel/luxide/renderstore"
	"github.com/paulwrubel/luxide/sceneconfig"
)

// Create validates and compiles cfg just enough to catch unknown
// references before committing, then inserts a new Render in Created,
// owned by userID.
func (m *Manager) Create(userID string, cfg sceneconfig.RenderConfig) (renderstore.Render, error) {
	if err := cfg.Parameters.Validate(); err != nil {
		return renderstore.Render{}, fmt.Errorf("%w: %v", renderstore.ErrValidation, err)
	}
	if _, err := sceneconfig.Compile(cfg, m.assets, 0); err != nil {
		return renderstore.Render{}, fmt.Errorf("%w: %v", renderstore.ErrValidation, err)
	}

	id, err := m.store.NextID()
	if err != nil {
		return renderstore.Render{}, err
	}
	now := time.Now()
	r := renderstore.Render{
		ID:          id,
		OwnerUserID: userID,
		State:       renderstore.Created(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Config:      cfg,
	}
	if err := m.store.CreateRender(r); err != nil {
		return renderstore.Render{}, err
	}
	m.wakeLoop()
	return r, nil
}

// Get returns a render owned by userID.
func (m *Manager) Get(userID string, id int64) (renderstore.Render, error) {
	r, err := m.store.GetRender(id)
	if err != nil {
		return renderstore.Render{}, err
	}
	if err := m.checkOwnership(r, userID); err != nil {
		return renderstore.Render{}, err
	}
	return r, nil
}

// List returns every render owned by userID, ascending by ID.
func (m *Manager) List(userID string) ([]renderstore.Render, error) {
	return m.store.GetAllRenders(userID)
}

// Pause is valid only from Running{k}; it transitions to Pausing{k}, a
// cooperative request the in-flight tracer observes at its next tile
// boundary.
func (m *Manager) Pause(userID string, id int64) error {
	r, err := m.store.GetRender(id)
	if err != nil {
		return err
	}
	if err := m.checkOwnership(r, userID); err != nil {
		return err
	}
	if r.State.Phase != renderstore.PhaseRunning {
		return fmt.Errorf("manager: render %d: pause from %s: %w", id, r.State.Phase, ErrConflict)
	}

	if err := m.store.UpdateRenderState(id, renderstore.Pausing(r.State.CheckpointIteration, r.State.Progress)); err != nil {
		return err
	}

	m.mu.Lock()
	entry, ok := m.inFlight[id]
	m.mu.Unlock()
	if ok {
		entry.cancel()
	}
	return nil
}

// Resume is valid only from Paused(k); it transitions to
// FinishedCheckpointIteration(k), which the control loop will pick up on
// its next tick.
func (m *Manager) Resume(userID string, id int64) error {
	r, err := m.store.GetRender(id)
	if err != nil {
		return err
	}
	if err := m.checkOwnership(r, userID); err != nil {
		return err
	}
	if r.State.Phase != renderstore.PhasePaused {
		return fmt.Errorf("manager: render %d: resume from %s: %w", id, r.State.Phase, ErrConflict)
	}
	if err := m.store.UpdateRenderState(id, renderstore.FinishedCheckpointIteration(r.State.CheckpointIteration)); err != nil {
		return err
	}
	m.wakeLoop()
	return nil
}

// UpdateTotalCheckpoints is permitted in any state. If the render was
// Paused, state remains Paused until the caller explicitly Resumes it even
// if the new target exceeds the completed count; resuming is always an
// explicit caller action.
func (m *Manager) UpdateTotalCheckpoints(userID string, id int64, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: total_checkpoints must be non-negative, got %d", renderstore.ErrValidation, n)
	}
	r, err := m.store.GetRender(id)
	if err != nil {
		return err
	}
	if err := m.checkOwnership(r, userID); err != nil {
		return err
	}
	if err := m.store.UpdateRenderTotalCheckpoints(id, n); err != nil {
		return err
	}
	m.wakeLoop()
	return nil
}

// Delete is valid in any state. If the render is in flight, it cancels the
// tracer's context, waits for the current tile's worker to exit, then
// deletes the row and every checkpoint atomically.
func (m *Manager) Delete(userID string, id int64) error {
	r, err := m.store.GetRender(id)
	if err != nil {
		return err
	}
	if err := m.checkOwnership(r, userID); err != nil {
		return err
	}

	m.mu.Lock()
	entry, inFlight := m.inFlight[id]
	m.mu.Unlock()
	if inFlight {
		entry.cancel()
		<-entry.done
	}

	return m.store.DeleteRenderAndCheckpoints(id)
}

// Checkpoint returns checkpoint iteration k of a render owned by userID.
func (m *Manager) Checkpoint(userID string, id int64, k int) (renderstore.RenderCheckpoint, error) {
	r, err := m.store.GetRender(id)
	if err != nil {
		return renderstore.RenderCheckpoint{}, err
	}
	if err := m.checkOwnership(r, userID); err != nil {
		return renderstore.RenderCheckpoint{}, err
	}
	return m.store.GetRenderCheckpoint(id, k)
}

// EarliestCheckpoint and LatestCheckpoint back the /checkpoint/earliest
// and /checkpoint/latest endpoint aliases.
func (m *Manager) EarliestCheckpoint(userID string, id int64) (renderstore.RenderCheckpoint, error) {
	return m.boundaryCheckpoint(userID, id, true)
}

func (m *Manager) LatestCheckpoint(userID string, id int64) (renderstore.RenderCheckpoint, error) {
	return m.boundaryCheckpoint(userID, id, false)
}

func (m *Manager) boundaryCheckpoint(userID string, id int64, earliest bool) (renderstore.RenderCheckpoint, error) {
	r, err := m.store.GetRender(id)
	if err != nil {
		return renderstore.RenderCheckpoint{}, err
	}
	if err := m.checkOwnership(r, userID); err != nil {
		return renderstore.RenderCheckpoint{}, err
	}
	iterations, err := m.store.ListCheckpointIterations(id)
	if err != nil {
		return renderstore.RenderCheckpoint{}, err
	}
	if len(iterations) == 0 {
		return renderstore.RenderCheckpoint{}, fmt.Errorf("manager: render %d: %w", id, renderstore.ErrNotFound)
	}
	k := iterations[len(iterations)-1]
	if earliest {
		k = iterations[0]
	}
	return m.store.GetRenderCheckpoint(id, k)
}

// Stats returns the per-checkpoint timing data backing GET
// /renders/{id}/stats: each stored checkpoint's duration and the render's
// current progress/ETA.
type Stats struct {
	State               renderstore.RenderState
	CheckpointDurations []time.Duration
}

func (m *Manager) Stats(userID string, id int64) (Stats, error) {
	r, err := m.store.GetRender(id)
	if err != nil {
		return Stats{}, err
	}
	if err := m.checkOwnership(r, userID); err != nil {
		return Stats{}, err
	}
	iterations, err := m.store.ListCheckpointIterations(id)
	if err != nil {
		return Stats{}, err
	}
	durations := make([]time.Duration, 0, len(iterations))
	for _, k := range iterations {
		cp, err := m.store.GetRenderCheckpoint(id, k)
		if err != nil {
			return Stats{}, err
		}
		durations = append(durations, cp.EndedAt.Sub(cp.StartedAt))
	}
	return Stats{State: r.State, CheckpointDurations: durations}, nil
}

// StorageUsage backs GET /storage/usage.
func (m *Manager) StorageUsage() (int64, error) {
	return m.store.Usage()
}
