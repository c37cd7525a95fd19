package httpapi

import (
	"time"

	"github.com/paulwrubel/luxide/manager"
	"github.com/paulwrubel/luxide/renderstore"
)

// renderView shapes a Render for the GET ?format= query:
// "full" includes the complete RenderConfig, "light" includes
// RenderParameters but not the scene graph description, and "minimal" is
// id/owner_user_id/state/timestamps only.
func renderView(r renderstore.Render, format string) map[string]any {
	view := map[string]any{
		"id":            r.ID,
		"owner_user_id": r.OwnerUserID,
		"state":         stateView(r.State),
		"created_at":    r.CreatedAt,
		"updated_at":    r.UpdatedAt,
	}
	switch format {
	case "light":
		view["name"] = r.Config.Name
		view["parameters"] = r.Config.Parameters
	case "full":
		view["config"] = r.Config
	}
	return view
}

func stateView(s renderstore.RenderState) map[string]any {
	view := map[string]any{"phase": s.Phase.String()}
	switch s.Phase {
	case renderstore.PhaseRunning, renderstore.PhasePausing:
		view["checkpoint_iteration"] = s.CheckpointIteration
		view["progress"] = map[string]any{
			"done":   s.Progress.Done,
			"total":  s.Progress.Total,
			"eta_ms": s.Progress.ETA.Milliseconds(),
		}
	case renderstore.PhaseFinishedCheckpointIteration, renderstore.PhasePaused:
		view["checkpoint_iteration"] = s.CheckpointIteration
	}
	return view
}

func statsView(s manager.Stats) map[string]any {
	durations := make([]float64, len(s.CheckpointDurations))
	for i, d := range s.CheckpointDurations {
		durations[i] = d.Seconds()
	}
	var total time.Duration
	for _, d := range s.CheckpointDurations {
		total += d
	}
	var mean float64
	if len(s.CheckpointDurations) > 0 {
		mean = total.Seconds() / float64(len(s.CheckpointDurations))
	}
	return map[string]any{
		"state":                        stateView(s.State),
		"checkpoint_durations_seconds": durations,
		"mean_checkpoint_seconds":      mean,
	}
}
