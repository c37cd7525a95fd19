// Package renderstore defines the render/checkpoint persistence contract
// shared by every storage backend (in-memory, filesystem, relational) and
// the sentinel errors the HTTP layer maps to status codes.
package renderstore

import (
	"errors"
	"time"

	"github.com/paulwrubel/luxide/progress"
	"github.com/paulwrubel/luxide/sceneconfig"
	"github.com/paulwrubel/luxide/tracer"
)

// Sentinel errors a Store implementation wraps with errors.Is-compatible
// context; the HTTP layer maps ErrNotFound, ErrConflict and ErrValidation to
// 404/409/400. ErrUnauthorized has no status mapping of its own; ownership
// failures reach the HTTP layer as manager.ErrUnauthorized (403).
var (
	ErrNotFound     = errors.New("renderstore: not found")
	ErrConflict     = errors.New("renderstore: conflict")
	ErrUnauthorized = errors.New("renderstore: unauthorized")
	ErrValidation   = errors.New("renderstore: validation")
)

// Render is one user-owned render job: its config (only total_checkpoints
// changes after creation, via UpdateRenderTotalCheckpoints), its owner,
// and its current lifecycle state.
type Render struct {
	ID          int64
	OwnerUserID string
	State       RenderState
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Config      sceneconfig.RenderConfig
}

// RenderCheckpoint is one completed iteration's pixel buffer.
type RenderCheckpoint struct {
	RenderID  int64
	Iteration int
	Pixels    tracer.PixelData
	StartedAt time.Time
	EndedAt   time.Time
}

// Store is the persistence contract every backend implements identically;
// the scheduler and the HTTP handlers depend only on this interface.
type Store interface {
	GetRender(id int64) (Render, error)
	GetAllRenders(ownerUserID string) ([]Render, error)
	// ListAll returns every render regardless of owner, ascending by ID.
	// It backs the scheduler's control loop, which dispatches across every
	// user's renders from one process-wide loop; GetAllRenders stays
	// owner-scoped for the HTTP listing endpoint.
	ListAll() ([]Render, error)
	CreateRender(r Render) error
	UpdateRenderState(id int64, newState RenderState) error
	UpdateRenderProgress(id int64, info progress.ProgressInfo) error
	UpdateRenderTotalCheckpoints(id int64, n int) error
	GetRenderCheckpoint(id int64, iteration int) (RenderCheckpoint, error)
	CreateRenderCheckpoint(cp RenderCheckpoint) error
	DeleteRenderAndCheckpoints(id int64) error
	NextID() (int64, error)
	RevertToLastCheckpoint(id int64) error

	// ListCheckpointIterations returns every stored iteration number for a
	// render, ascending, backing the earliest/latest checkpoint aliases
	// and the per-checkpoint stats endpoint.
	ListCheckpointIterations(id int64) ([]int, error)
	// Usage returns the total bytes occupied by persisted checkpoints,
	// backing GET /storage/usage.
	Usage() (int64, error)
}
