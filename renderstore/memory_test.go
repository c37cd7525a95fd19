package renderstore

import (
	"errors"
	"testing"
	"time"

	"github.com/paulwrubel/luxide/progress"
	"github.com/paulwrubel/luxide/sceneconfig"
	"github.com/paulwrubel/luxide/tracer"
)

func newTestRender(id int64, owner string) Render {
	now := time.Now()
	return Render{
		ID:          id,
		OwnerUserID: owner,
		State:       Created(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Config: sceneconfig.RenderConfig{
			Name:       "test",
			Parameters: sceneconfig.RenderParameters{ImageWidth: 2, ImageHeight: 2, GammaCorrection: 2, TotalCheckpoints: 3},
		},
	}
}

func TestMemoryCreateAndGetRender(t *testing.T) {
	m := NewMemory()
	r := newTestRender(1, "alice")
	if err := m.CreateRender(r); err != nil {
		t.Fatalf("CreateRender: %v", err)
	}
	got, err := m.GetRender(1)
	if err != nil {
		t.Fatalf("GetRender: %v", err)
	}
	if got.OwnerUserID != "alice" || got.State.Phase != PhaseCreated {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryCreateRenderConflict(t *testing.T) {
	m := NewMemory()
	r := newTestRender(1, "alice")
	if err := m.CreateRender(r); err != nil {
		t.Fatalf("first CreateRender: %v", err)
	}
	if err := m.CreateRender(r); !errors.Is(err, ErrConflict) {
		t.Fatalf("second CreateRender: got %v, want ErrConflict", err)
	}
}

func TestMemoryGetRenderNotFound(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetRender(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryUpdateRenderProgressConditionalOnPhase(t *testing.T) {
	m := NewMemory()
	r := newTestRender(1, "alice")
	if err := m.CreateRender(r); err != nil {
		t.Fatalf("CreateRender: %v", err)
	}

	// Created is not Running/Pausing: progress update is a silent no-op.
	if err := m.UpdateRenderProgress(1, progress.ProgressInfo{Done: 5}); err != nil {
		t.Fatalf("UpdateRenderProgress: %v", err)
	}
	got, _ := m.GetRender(1)
	if got.State.Progress.Done != 0 {
		t.Fatalf("progress applied while Created: %+v", got.State.Progress)
	}

	if err := m.UpdateRenderState(1, Running(1, progress.ProgressInfo{})); err != nil {
		t.Fatalf("UpdateRenderState: %v", err)
	}
	if err := m.UpdateRenderProgress(1, progress.ProgressInfo{Done: 5}); err != nil {
		t.Fatalf("UpdateRenderProgress: %v", err)
	}
	got, _ = m.GetRender(1)
	if got.State.Progress.Done != 5 {
		t.Fatalf("progress not applied while Running: %+v", got.State.Progress)
	}
	if got.State.CheckpointIteration != 1 {
		t.Fatalf("CheckpointIteration changed by a progress update: got %d", got.State.CheckpointIteration)
	}
}

func TestMemoryCheckpointCreateAndConflict(t *testing.T) {
	m := NewMemory()
	r := newTestRender(1, "alice")
	if err := m.CreateRender(r); err != nil {
		t.Fatalf("CreateRender: %v", err)
	}
	cp := RenderCheckpoint{RenderID: 1, Iteration: 1, Pixels: tracer.NewPixelData(2, 2)}
	if err := m.CreateRenderCheckpoint(cp); err != nil {
		t.Fatalf("CreateRenderCheckpoint: %v", err)
	}
	if err := m.CreateRenderCheckpoint(cp); !errors.Is(err, ErrConflict) {
		t.Fatalf("second CreateRenderCheckpoint: got %v, want ErrConflict", err)
	}
	got, err := m.GetRenderCheckpoint(1, 1)
	if err != nil {
		t.Fatalf("GetRenderCheckpoint: %v", err)
	}
	if got.Pixels.Width != 2 {
		t.Fatalf("got width %d, want 2", got.Pixels.Width)
	}

	iterations, err := m.ListCheckpointIterations(1)
	if err != nil {
		t.Fatalf("ListCheckpointIterations: %v", err)
	}
	if len(iterations) != 1 || iterations[0] != 1 {
		t.Fatalf("got %v, want [1]", iterations)
	}
}

func TestMemoryRevertToLastCheckpoint(t *testing.T) {
	m := NewMemory()
	r := newTestRender(1, "alice")
	if err := m.CreateRender(r); err != nil {
		t.Fatalf("CreateRender: %v", err)
	}

	if err := m.UpdateRenderState(1, Running(1, progress.ProgressInfo{})); err != nil {
		t.Fatalf("UpdateRenderState: %v", err)
	}
	if err := m.RevertToLastCheckpoint(1); err != nil {
		t.Fatalf("RevertToLastCheckpoint: %v", err)
	}
	got, _ := m.GetRender(1)
	if got.State.Phase != PhaseCreated {
		t.Fatalf("Running{1} should revert to Created, got %s", got.State.Phase)
	}

	if err := m.UpdateRenderState(1, Running(3, progress.ProgressInfo{})); err != nil {
		t.Fatalf("UpdateRenderState: %v", err)
	}
	if err := m.RevertToLastCheckpoint(1); err != nil {
		t.Fatalf("RevertToLastCheckpoint: %v", err)
	}
	got, _ = m.GetRender(1)
	if got.State.Phase != PhaseFinishedCheckpointIteration || got.State.CheckpointIteration != 2 {
		t.Fatalf("Running{3} should revert to FinishedCheckpointIteration(2), got %+v", got.State)
	}

	if err := m.UpdateRenderState(1, Pausing(4, progress.ProgressInfo{})); err != nil {
		t.Fatalf("UpdateRenderState: %v", err)
	}
	if err := m.RevertToLastCheckpoint(1); err != nil {
		t.Fatalf("RevertToLastCheckpoint: %v", err)
	}
	got, _ = m.GetRender(1)
	if got.State.Phase != PhasePaused || got.State.CheckpointIteration != 3 {
		t.Fatalf("Pausing{4} should revert to Paused(3), got %+v", got.State)
	}
}

func TestMemoryDeleteRenderAndCheckpoints(t *testing.T) {
	m := NewMemory()
	r1, r2 := newTestRender(1, "alice"), newTestRender(2, "bob")
	if err := m.CreateRender(r1); err != nil {
		t.Fatalf("CreateRender r1: %v", err)
	}
	if err := m.CreateRender(r2); err != nil {
		t.Fatalf("CreateRender r2: %v", err)
	}
	if err := m.CreateRenderCheckpoint(RenderCheckpoint{RenderID: 1, Iteration: 1, Pixels: tracer.NewPixelData(2, 2)}); err != nil {
		t.Fatalf("CreateRenderCheckpoint: %v", err)
	}

	if err := m.DeleteRenderAndCheckpoints(1); err != nil {
		t.Fatalf("DeleteRenderAndCheckpoints: %v", err)
	}
	if _, err := m.GetRender(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("render 1 should be gone, got %v", err)
	}
	if _, err := m.GetRenderCheckpoint(1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("checkpoint for render 1 should be gone, got %v", err)
	}
	if _, err := m.GetRender(2); err != nil {
		t.Fatalf("unrelated render 2 should survive: %v", err)
	}
}

func TestMemoryNextIDMonotonic(t *testing.T) {
	m := NewMemory()
	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		id, err := m.NextID()
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if seen[id] {
			t.Fatalf("NextID reused %d", id)
		}
		seen[id] = true
	}
}

func TestMemoryGetAllRendersOrderedAndScopedByOwner(t *testing.T) {
	m := NewMemory()
	for _, id := range []int64{3, 1, 2} {
		if err := m.CreateRender(newTestRender(id, "alice")); err != nil {
			t.Fatalf("CreateRender %d: %v", id, err)
		}
	}
	if err := m.CreateRender(newTestRender(4, "bob")); err != nil {
		t.Fatalf("CreateRender 4: %v", err)
	}

	renders, err := m.GetAllRenders("alice")
	if err != nil {
		t.Fatalf("GetAllRenders: %v", err)
	}
	if len(renders) != 3 {
		t.Fatalf("got %d renders, want 3", len(renders))
	}
	for i, want := range []int64{1, 2, 3} {
		if renders[i].ID != want {
			t.Fatalf("renders[%d].ID = %d, want %d (not ascending)", i, renders[i].ID, want)
		}
	}
}
