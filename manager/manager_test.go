package manager

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/paulwrubel/luxide/progress"
	"github.com/paulwrubel/luxide/renderstore"
	"github.com/paulwrubel/luxide/sceneconfig"
)

// tinyConfig is a 2x2, single-bounce, single-sample scene small enough to
// render a full checkpoint in well under a millisecond: one sphere lit by
// a flat background color.
func tinyConfig(totalCheckpoints int) sceneconfig.RenderConfig {
	return sceneconfig.RenderConfig{
		Name: "tiny",
		Parameters: sceneconfig.RenderParameters{
			ImageWidth:           2,
			ImageHeight:          2,
			TileWidth:            2,
			TileHeight:           2,
			GammaCorrection:      2,
			SamplesPerCheckpoint: 1,
			TotalCheckpoints:     totalCheckpoints,
			MaxBounces:           1,
		},
		Textures: []sceneconfig.NamedEntry{
			{Name: "tex", Value: json.RawMessage(`{"type":"solid_color","color":[0.5,0.5,0.5]}`)},
		},
		Materials: []sceneconfig.NamedEntry{
			{Name: "mat", Value: json.RawMessage(`{"type":"lambertian","texture":"tex"}`)},
		},
		Geometrics: []sceneconfig.NamedEntry{
			{Name: "sphere1", Value: json.RawMessage(`{"type":"sphere","center":[0,0,-1],"radius":0.5,"material":"mat"}`)},
		},
		Cameras: []sceneconfig.NamedEntry{
			{Name: "cam", Value: json.RawMessage(`{"eye":[0,0,0],"target":[0,0,-1],"up":[0,1,0],"vertical_fov_degrees":90,"defocus_angle_degrees":0,"focus_distance":1}`)},
		},
		Scenes: []sceneconfig.NamedEntry{
			{Name: "scene1", Value: json.RawMessage(`{"root":"sphere1","camera":"cam","background":[0.5,0.7,1.0]}`)},
		},
		Scene: "scene1",
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestManagerCreateRunsToCompletion(t *testing.T) {
	store := renderstore.NewMemory()
	m := New(store, 2, sceneconfig.Assets{})
	m.Start()
	defer m.Stop()

	r, err := m.Create("alice", tinyConfig(2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		got, err := m.Get("alice", r.ID)
		return err == nil && got.State.Phase == renderstore.PhaseFinishedCheckpointIteration && got.State.CheckpointIteration == 2
	})

	cp1, err := m.Checkpoint("alice", r.ID, 1)
	if err != nil {
		t.Fatalf("Checkpoint 1: %v", err)
	}
	cp2, err := m.Checkpoint("alice", r.ID, 2)
	if err != nil {
		t.Fatalf("Checkpoint 2: %v", err)
	}
	if cp1.Pixels.Width != 2 || cp2.Pixels.Width != 2 {
		t.Fatalf("unexpected checkpoint dimensions: %+v %+v", cp1.Pixels, cp2.Pixels)
	}
}

func TestManagerCreateRejectsInvalidConfig(t *testing.T) {
	store := renderstore.NewMemory()
	m := New(store, 1, sceneconfig.Assets{})

	cfg := tinyConfig(1)
	cfg.Scene = "does-not-exist"
	if _, err := m.Create("alice", cfg); !errors.Is(err, renderstore.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestManagerPauseRequiresRunning(t *testing.T) {
	store := renderstore.NewMemory()
	m := New(store, 1, sceneconfig.Assets{})

	r, err := m.Create("alice", tinyConfig(5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Pause("alice", r.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("pause from Created: got %v, want ErrConflict", err)
	}

	if err := store.UpdateRenderState(r.ID, renderstore.Running(1, progress.ProgressInfo{})); err != nil {
		t.Fatalf("UpdateRenderState: %v", err)
	}
	if err := m.Pause("alice", r.ID); err != nil {
		t.Fatalf("pause from Running: %v", err)
	}
	got, err := m.Get("alice", r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State.Phase != renderstore.PhasePausing || got.State.CheckpointIteration != 1 {
		t.Fatalf("got %+v, want Pausing{1}", got.State)
	}
}

func TestManagerResumeRequiresPaused(t *testing.T) {
	store := renderstore.NewMemory()
	m := New(store, 1, sceneconfig.Assets{})

	r, err := m.Create("alice", tinyConfig(5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Resume("alice", r.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("resume from Created: got %v, want ErrConflict", err)
	}

	if err := store.UpdateRenderState(r.ID, renderstore.Paused(3)); err != nil {
		t.Fatalf("UpdateRenderState: %v", err)
	}
	if err := m.Resume("alice", r.ID); err != nil {
		t.Fatalf("resume from Paused: %v", err)
	}
	got, err := m.Get("alice", r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State.Phase != renderstore.PhaseFinishedCheckpointIteration || got.State.CheckpointIteration != 3 {
		t.Fatalf("got %+v, want FinishedCheckpointIteration(3)", got.State)
	}
}

func TestManagerOwnershipEnforced(t *testing.T) {
	store := renderstore.NewMemory()
	m := New(store, 1, sceneconfig.Assets{})

	r, err := m.Create("alice", tinyConfig(5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := m.Get("bob", r.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Get: got %v, want ErrUnauthorized", err)
	}
	if err := m.Pause("bob", r.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Pause: got %v, want ErrUnauthorized", err)
	}
	if err := m.Delete("bob", r.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Delete: got %v, want ErrUnauthorized", err)
	}
}

func TestManagerUpdateTotalCheckpointsRejectsNegative(t *testing.T) {
	store := renderstore.NewMemory()
	m := New(store, 1, sceneconfig.Assets{})

	r, err := m.Create("alice", tinyConfig(2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.UpdateTotalCheckpoints("alice", r.ID, -1); !errors.Is(err, renderstore.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if err := m.UpdateTotalCheckpoints("alice", r.ID, 5); err != nil {
		t.Fatalf("UpdateTotalCheckpoints: %v", err)
	}
	got, err := m.Get("alice", r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Config.Parameters.TotalCheckpoints != 5 {
		t.Fatalf("got %d, want 5", got.Config.Parameters.TotalCheckpoints)
	}
}

func TestManagerZeroTotalCheckpointsNeverRuns(t *testing.T) {
	store := renderstore.NewMemory()
	m := New(store, 1, sceneconfig.Assets{})
	m.SetPollInterval(5 * time.Millisecond)
	m.Start()
	defer m.Stop()

	r, err := m.Create("alice", tinyConfig(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	got, err := m.Get("alice", r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State.Phase != renderstore.PhaseCreated {
		t.Fatalf("got %s, want Created", got.State.Phase)
	}
	iterations, err := store.ListCheckpointIterations(r.ID)
	if err != nil {
		t.Fatalf("ListCheckpointIterations: %v", err)
	}
	if len(iterations) != 0 {
		t.Fatalf("got %d checkpoints, want 0", len(iterations))
	}
}

func TestManagerExtendRunsAdditionalIterations(t *testing.T) {
	store := renderstore.NewMemory()
	m := New(store, 2, sceneconfig.Assets{})
	m.SetPollInterval(5 * time.Millisecond)
	m.Start()
	defer m.Stop()

	r, err := m.Create("alice", tinyConfig(2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		got, err := m.Get("alice", r.ID)
		return err == nil && got.State.Phase == renderstore.PhaseFinishedCheckpointIteration && got.State.CheckpointIteration == 2
	})

	if err := m.UpdateTotalCheckpoints("alice", r.ID, 4); err != nil {
		t.Fatalf("UpdateTotalCheckpoints: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		got, err := m.Get("alice", r.ID)
		return err == nil && got.State.Phase == renderstore.PhaseFinishedCheckpointIteration && got.State.CheckpointIteration == 4
	})

	iterations, err := store.ListCheckpointIterations(r.ID)
	if err != nil {
		t.Fatalf("ListCheckpointIterations: %v", err)
	}
	if len(iterations) != 4 {
		t.Fatalf("got %d checkpoints, want 4", len(iterations))
	}
	for i, k := range iterations {
		if k != i+1 {
			t.Fatalf("iterations %v are not the contiguous prefix 1..4", iterations)
		}
	}
}

func TestManagerDeleteRemovesRenderAndCheckpoints(t *testing.T) {
	store := renderstore.NewMemory()
	m := New(store, 2, sceneconfig.Assets{})
	m.Start()
	defer m.Stop()

	r, err := m.Create("alice", tinyConfig(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Delete("alice", r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get("alice", r.ID); !errors.Is(err, renderstore.ErrNotFound) {
		t.Fatalf("Get after delete: got %v, want ErrNotFound", err)
	}
	if _, err := store.ListCheckpointIterations(r.ID); !errors.Is(err, renderstore.ErrNotFound) {
		t.Fatalf("ListCheckpointIterations after delete: got %v, want ErrNotFound", err)
	}
}
