// Package manager implements the render scheduler: the control loop,
// dispatch, and the external pause/resume/extend/delete commands. It is
// the only writer of render lifecycle state; the HTTP layer only ever asks
// it to do things.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paulwrubel/luxide/logx"
	"github.com/paulwrubel/luxide/luxrt"
	"github.com/paulwrubel/luxide/progress"
	"github.com/paulwrubel/luxide/renderstore"
	"github.com/paulwrubel/luxide/sceneconfig"
	"github.com/paulwrubel/luxide/tracer"
)

var log = logx.Subsystem("manager")

// ErrUnauthorized is returned by any mutating operation when the supplied
// user ID does not match the render's owner.
var ErrUnauthorized = errors.New("manager: unauthorized")

// ErrConflict is renderstore.ErrConflict itself, re-exported for
// state-machine rejections the HTTP layer maps to 409 (e.g. resuming a Running render).
var ErrConflict = renderstore.ErrConflict

// DefaultPollInterval is how often the control loop re-scans for
// dispatchable renders when not otherwise woken by a command, unless
// overridden via SetPollInterval.
const DefaultPollInterval = 250 * time.Millisecond

// ProgressUpdateInterval is the tracker's "marks per emit" passed to
// progress.NewTracker for every dispatched iteration.
const ProgressUpdateInterval = 2048

// DefaultGracePeriod bounds how long a render may sit in Running with no
// progress update before the control loop treats its worker as dead
// (panicked without luxrt.Safe catching it, or the process was killed
// mid-render) and reverts it to the last finished checkpoint, unless
// overridden via SetGracePeriod.
const DefaultGracePeriod = 2 * time.Minute

// Manager drives every render through its state machine. It owns a
// reference to the storage backend and a worker count; each dispatched
// iteration runs its own tracer pool of workerCount goroutines, so
// concurrently dispatched renders do not share one pool and together may
// run more than workerCount tile workers.
type Manager struct {
	store       renderstore.Store
	workerCount int
	assets      sceneconfig.Assets

	pollInterval time.Duration
	gracePeriod  time.Duration

	mu       sync.Mutex
	inFlight map[int64]*inFlightRender

	wake     chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  bool
}

// inFlightRender tracks the state a dispatched render needs for cooperative
// pause and delete: a cancel func the control loop calls to ask the tracer
// to stop dispatching new tiles, and a done channel closed when the dispatch
// goroutine has fully exited (buffer dropped, state settled).
type inFlightRender struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Manager over store with a worker pool sized workerCount
// (typically runtime.GOMAXPROCS(0)). assets supplies externally decoded
// textures/meshes a RenderConfig may reference.
func New(store renderstore.Store, workerCount int, assets sceneconfig.Assets) *Manager {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Manager{
		store:        store,
		workerCount:  workerCount,
		assets:       assets,
		pollInterval: DefaultPollInterval,
		gracePeriod:  DefaultGracePeriod,
		inFlight:     make(map[int64]*inFlightRender),
		wake:         make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
	}
}

// SetPollInterval overrides the control loop's tick interval. Call before
// Start; the ticker is constructed when the loop launches.
func (m *Manager) SetPollInterval(d time.Duration) {
	if d > 0 {
		m.pollInterval = d
	}
}

// SetGracePeriod overrides how long a render may sit in Running with no
// progress before the control loop reverts it to its last checkpoint. Call
// before Start.
func (m *Manager) SetGracePeriod(d time.Duration) {
	if d > 0 {
		m.gracePeriod = d
	}
}

// Start launches the control loop. Idempotent.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	luxrt.Go(m.controlLoop)
}

// Stop halts the control loop. In-flight dispatches are left running; the
// caller should Delete or otherwise drain renders before process exit if a
// clean shutdown is required.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
}

func (m *Manager) controlLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.tick()
		case <-m.wake:
			m.tick()
		}
	}
}

// tick runs one control-loop pass: fetch every render, revert any that
// have been stuck in Running past the grace period, and dispatch every
// render in Created or FinishedCheckpointIteration(k) with k < total that
// isn't already in flight.
func (m *Manager) tick() {
	renders, err := m.store.ListAll()
	if err != nil {
		log.Printf("listing renders: %v", err)
		return
	}

	for _, r := range renders {
		if r.State.Phase == renderstore.PhaseRunning && time.Since(r.UpdatedAt) > m.gracePeriod && !m.isInFlight(r.ID) {
			log.Printf("render %d stuck in Running{%d} past grace period, reverting", r.ID, r.State.CheckpointIteration)
			if err := m.store.RevertToLastCheckpoint(r.ID); err != nil {
				log.Printf("render %d: reverting stuck render: %v", r.ID, err)
			}
			continue
		}

		if m.isInFlight(r.ID) {
			continue
		}
		if !r.State.CanDispatch(r.Config.Parameters.TotalCheckpoints) {
			continue
		}
		m.dispatch(r.ID, r.State.NextIteration())
	}
}

func (m *Manager) isInFlight(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inFlight[id]
	return ok
}

func (m *Manager) wakeLoop() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// dispatch starts iteration k of render id: mark in-flight, transition to
// Running{k}, compile the scene, run the tracer, and on completion either
// persist checkpoint k or revert to the last finished checkpoint on
// pause/failure.
func (m *Manager) dispatch(id int64, k int) {
	ctx, cancel := context.WithCancel(context.Background())
	entry := &inFlightRender{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.inFlight[id] = entry
	m.mu.Unlock()

	luxrt.Go(func() {
		defer close(entry.done)
		defer func() {
			m.mu.Lock()
			delete(m.inFlight, id)
			m.mu.Unlock()
		}()
		m.runIteration(ctx, id, k)
	})
}

func (m *Manager) runIteration(ctx context.Context, id int64, k int) {
	emptyInfo := progress.ProgressInfo{}
	if err := m.store.UpdateRenderState(id, renderstore.Running(k, emptyInfo)); err != nil {
		log.Printf("render %d: transitioning to Running{%d}: %v", id, k, err)
		return
	}

	r, err := m.store.GetRender(id)
	if err != nil {
		log.Printf("render %d: reloading after dispatch: %v", id, err)
		return
	}

	scene, err := sceneconfig.Compile(r.Config, m.assets, int64(id)*1_000_003)
	if err != nil {
		log.Printf("render %d: compiling scene for iteration %d: %v", id, k, err)
		if revertErr := m.store.RevertToLastCheckpoint(id); revertErr != nil {
			log.Printf("render %d: reverting after compile failure: %v", id, revertErr)
		}
		return
	}

	prev := tracer.NewPixelData(r.Config.Parameters.ImageWidth, r.Config.Parameters.ImageHeight)
	if k > 1 {
		prevCp, err := m.store.GetRenderCheckpoint(id, k-1)
		if err != nil {
			log.Printf("render %d: loading checkpoint %d to seed iteration %d: %v", id, k-1, k, err)
			return
		}
		prev = prevCp.Pixels
	}

	total := r.Config.Parameters.ImageWidth * r.Config.Parameters.ImageHeight
	pixelDone := make(chan struct{}, 4096)
	onUpdate := func(info progress.ProgressInfo) {
		if err := m.store.UpdateRenderProgress(id, info); err != nil {
			log.Printf("render %d: recording progress: %v", id, err)
		}
	}
	tracker := progress.NewTracker(total, ProgressUpdateInterval, onUpdate)

	collectorDone := make(chan struct{})
	luxrt.Go(func() {
		defer close(collectorDone)
		for range pixelDone {
			tracker.Mark()
		}
	})

	opts := tracer.Options{
		SamplesPerCheckpoint: r.Config.Parameters.SamplesPerCheckpoint,
		MaxBounces:           r.Config.Parameters.MaxBounces,
		TileWidth:            r.Config.Parameters.TileWidth,
		TileHeight:           r.Config.Parameters.TileHeight,
		WorkerCount:          m.workerCount,
	}
	startedAt := time.Now()
	next, err := tracer.RenderIteration(ctx, scene, prev, k, opts, startedAt.UnixNano(), pixelDone)
	close(pixelDone)
	<-collectorDone

	if errors.Is(err, tracer.ErrPaused) {
		if revertErr := m.store.RevertToLastCheckpoint(id); revertErr != nil {
			log.Printf("render %d: reverting after pause: %v", id, revertErr)
		}
		return
	}
	if err != nil {
		log.Printf("render %d: iteration %d failed: %v", id, k, err)
		if revertErr := m.store.RevertToLastCheckpoint(id); revertErr != nil {
			log.Printf("render %d: reverting after failure: %v", id, revertErr)
		}
		return
	}

	cp := renderstore.RenderCheckpoint{
		RenderID:  id,
		Iteration: k,
		Pixels:    next,
		StartedAt: startedAt,
		EndedAt:   time.Now(),
	}
	if err := m.store.CreateRenderCheckpoint(cp); err != nil {
		log.Printf("render %d: persisting checkpoint %d: %v", id, k, err)
		return
	}
	if err := m.store.UpdateRenderState(id, renderstore.FinishedCheckpointIteration(k)); err != nil {
		log.Printf("render %d: transitioning to FinishedCheckpointIteration(%d): %v", id, k, err)
		return
	}
	m.wakeLoop()
}

func (m *Manager) checkOwnership(r renderstore.Render, userID string) error {
	if r.OwnerUserID != userID {
		return fmt.Errorf("manager: render %d: %w", r.ID, ErrUnauthorized)
	}
	return nil
}
