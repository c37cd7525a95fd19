package renderstore

import (
	"fmt"

	"github.com/paulwrubel/luxide/progress"
)

// StatePhase discriminates RenderState's variants. RenderState is kept as a
// tagged struct rather than a bag of nullable fields so "Running implies
// has progress info" and "Paused implies has a checkpoint index" are
// enforced by which fields a constructor fills in, not by nil-checking at
// every call site.
type StatePhase int

const (
	PhaseCreated StatePhase = iota
	PhaseRunning
	PhaseFinishedCheckpointIteration
	PhasePausing
	PhasePaused
)

func (p StatePhase) String() string {
	switch p {
	case PhaseCreated:
		return "Created"
	case PhaseRunning:
		return "Running"
	case PhaseFinishedCheckpointIteration:
		return "FinishedCheckpointIteration"
	case PhasePausing:
		return "Pausing"
	case PhasePaused:
		return "Paused"
	default:
		return fmt.Sprintf("StatePhase(%d)", int(p))
	}
}

// RenderState is the render lifecycle tagged union.
// CheckpointIteration means different things per phase: the iteration
// currently in flight for Running/Pausing, the last iteration completed
// for FinishedCheckpointIteration/Paused, and is unused (0) for Created.
type RenderState struct {
	Phase               StatePhase
	CheckpointIteration int
	Progress            progress.ProgressInfo
}

func Created() RenderState { return RenderState{Phase: PhaseCreated} }

func Running(iteration int, info progress.ProgressInfo) RenderState {
	return RenderState{Phase: PhaseRunning, CheckpointIteration: iteration, Progress: info}
}

func FinishedCheckpointIteration(iteration int) RenderState {
	return RenderState{Phase: PhaseFinishedCheckpointIteration, CheckpointIteration: iteration}
}

func Pausing(iteration int, info progress.ProgressInfo) RenderState {
	return RenderState{Phase: PhasePausing, CheckpointIteration: iteration, Progress: info}
}

func Paused(iteration int) RenderState {
	return RenderState{Phase: PhasePaused, CheckpointIteration: iteration}
}

// IsRunningOrPausing reports whether progress updates are accepted in this
// state, the condition UpdateRenderProgress must check.
func (s RenderState) IsRunningOrPausing() bool {
	return s.Phase == PhaseRunning || s.Phase == PhasePausing
}

// CanDispatch reports whether the control loop should pick this render up:
// Created (iteration 1) or FinishedCheckpointIteration(k) with k < total.
func (s RenderState) CanDispatch(totalCheckpoints int) bool {
	switch s.Phase {
	case PhaseCreated:
		return totalCheckpoints > 0
	case PhaseFinishedCheckpointIteration:
		return s.CheckpointIteration < totalCheckpoints
	default:
		return false
	}
}

// NextIteration is the checkpoint iteration a dispatch from this state would
// render, valid only when CanDispatch is true.
func (s RenderState) NextIteration() int {
	if s.Phase == PhaseCreated {
		return 1
	}
	return s.CheckpointIteration + 1
}
