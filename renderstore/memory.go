package renderstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/paulwrubel/luxide/progress"
)

// memoryRender is the row shape held under Memory's lock; checkpoints are
// kept in a map alongside rather than embedded in Render so Render can be
// copied out by value without copying every pixel buffer.
type memoryRender struct {
	row         Render
	checkpoints map[int]RenderCheckpoint
}

// Memory is the in-memory Store backend: a map keyed by render ID under a
// single reader-writer lock, checkpoints held per row.
type Memory struct {
	mu     sync.RWMutex
	rows   map[int64]*memoryRender
	nextID int64
}

var _ Store = (*Memory)(nil)

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[int64]*memoryRender)}
}

func (m *Memory) GetRender(id int64) (Render, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[id]
	if !ok {
		return Render{}, fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	return row.row, nil
}

func (m *Memory) GetAllRenders(ownerUserID string) ([]Render, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Render, 0, len(m.rows))
	for _, row := range m.rows {
		if row.row.OwnerUserID == ownerUserID {
			out = append(out, row.row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListAll returns every render regardless of owner, ascending by ID.
func (m *Memory) ListAll() ([]Render, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Render, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row.row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateRender(r Render) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rows[r.ID]; exists {
		return fmt.Errorf("renderstore: render %d: %w", r.ID, ErrConflict)
	}
	m.rows[r.ID] = &memoryRender{row: r, checkpoints: make(map[int]RenderCheckpoint)}
	return nil
}

func (m *Memory) UpdateRenderState(id int64, newState RenderState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	row.row.State = newState
	return nil
}

// UpdateRenderProgress is conditional: it applies only when the render is
// currently Running or Pausing, and preserves CheckpointIteration. Any
// other current state is a silent no-op, since a progress packet racing a
// checkpoint-complete transition must never resurrect a finished Running
// state.
func (m *Memory) UpdateRenderProgress(id int64, info progress.ProgressInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	if !row.row.State.IsRunningOrPausing() {
		return nil
	}
	row.row.State.Progress = info
	return nil
}

func (m *Memory) UpdateRenderTotalCheckpoints(id int64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	row.row.Config.Parameters.TotalCheckpoints = n
	return nil
}

func (m *Memory) GetRenderCheckpoint(id int64, iteration int) (RenderCheckpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[id]
	if !ok {
		return RenderCheckpoint{}, fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	cp, ok := row.checkpoints[iteration]
	if !ok {
		return RenderCheckpoint{}, fmt.Errorf("renderstore: render %d checkpoint %d: %w", id, iteration, ErrNotFound)
	}
	return cp, nil
}

func (m *Memory) CreateRenderCheckpoint(cp RenderCheckpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[cp.RenderID]
	if !ok {
		return fmt.Errorf("renderstore: render %d: %w", cp.RenderID, ErrNotFound)
	}
	if _, exists := row.checkpoints[cp.Iteration]; exists {
		return fmt.Errorf("renderstore: render %d checkpoint %d: %w", cp.RenderID, cp.Iteration, ErrConflict)
	}
	row.checkpoints[cp.Iteration] = cp
	return nil
}

func (m *Memory) DeleteRenderAndCheckpoints(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	delete(m.rows, id)
	return nil
}

func (m *Memory) NextID() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	return m.nextID, nil
}

// RevertToLastCheckpoint implements the Running{k}->FinishedCheckpointIteration(k-1)
// (or Created if k=1) and Pausing{k}->Paused(k-1) transitions of the
// storage contract.
func (m *Memory) RevertToLastCheckpoint(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}

	switch row.row.State.Phase {
	case PhaseRunning:
		k := row.row.State.CheckpointIteration
		if k <= 1 {
			row.row.State = Created()
		} else {
			row.row.State = FinishedCheckpointIteration(k - 1)
		}
	case PhasePausing:
		row.row.State = Paused(row.row.State.CheckpointIteration - 1)
	default:
		return fmt.Errorf("renderstore: render %d: revert from %s: %w", id, row.row.State.Phase, ErrConflict)
	}
	return nil
}

func (m *Memory) ListCheckpointIterations(id int64) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	out := make([]int, 0, len(row.checkpoints))
	for k := range row.checkpoints {
		out = append(out, k)
	}
	sort.Ints(out)
	return out, nil
}

func (m *Memory) Usage() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, row := range m.rows {
		for _, cp := range row.checkpoints {
			total += int64(len(cp.Pixels.Encode()))
		}
	}
	return total, nil
}
