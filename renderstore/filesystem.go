package renderstore

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulwrubel/luxide/progress"
	"github.com/paulwrubel/luxide/shading"
	"github.com/paulwrubel/luxide/tracer"
)

// Filesystem is the disk-backed Store: one directory per render
// (`{id}_{name}_{timestamp}/`), a `render.json` metadata sidecar, and
// checkpoints as `checkpoints/{k}.png`. The PNG is the canonical encoding
// (gamma applied, optional scaling truncation per RenderParameters), so a
// round trip through disk is lossy relative to the in-memory float buffer;
// callers needing bit-exact resume should prefer Memory or SQL.
type Filesystem struct {
	basePath string

	mu      sync.RWMutex
	dirByID map[int64]string
	nextID  int64
}

var _ Store = (*Filesystem)(nil)

// NewFilesystem builds a backend rooted at basePath, scanning any existing
// render directories so a restarted process can resume serving them.
func NewFilesystem(basePath string) (*Filesystem, error) {
	fs := &Filesystem{basePath: basePath, dirByID: make(map[int64]string)}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("renderstore: creating base path: %w", err)
	}
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("renderstore: scanning base path: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		idPart, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			continue
		}
		fs.dirByID[id] = entry.Name()
		if id > fs.nextID {
			fs.nextID = id
		}
	}
	return fs, nil
}

type renderMeta struct {
	ID          int64           `json:"id"`
	OwnerUserID string          `json:"owner_user_id"`
	State       renderStateMeta `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Config      json.RawMessage `json:"config"`
}

type renderStateMeta struct {
	Phase               StatePhase            `json:"phase"`
	CheckpointIteration int                   `json:"checkpoint_iteration"`
	Progress            progress.ProgressInfo `json:"progress"`
}

func (fs *Filesystem) dirFor(id int64) (string, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	name, ok := fs.dirByID[id]
	return name, ok
}

func (fs *Filesystem) metaPath(id int64) (string, error) {
	dir, ok := fs.dirFor(id)
	if !ok {
		return "", fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	return filepath.Join(fs.basePath, dir, "render.json"), nil
}

func (fs *Filesystem) readMeta(id int64) (renderMeta, error) {
	path, err := fs.metaPath(id)
	if err != nil {
		return renderMeta{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return renderMeta{}, fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
		}
		return renderMeta{}, fmt.Errorf("renderstore: reading %s: %w", path, err)
	}
	var meta renderMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return renderMeta{}, fmt.Errorf("renderstore: decoding %s: %w", path, err)
	}
	return meta, nil
}

func (fs *Filesystem) writeMeta(meta renderMeta) error {
	dir, ok := fs.dirFor(meta.ID)
	if !ok {
		return fmt.Errorf("renderstore: render %d: %w", meta.ID, ErrNotFound)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("renderstore: encoding render %d metadata: %w", meta.ID, err)
	}
	return os.WriteFile(filepath.Join(fs.basePath, dir, "render.json"), data, 0o644)
}

func toMeta(r Render) (renderMeta, error) {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return renderMeta{}, err
	}
	return renderMeta{
		ID:          r.ID,
		OwnerUserID: r.OwnerUserID,
		State: renderStateMeta{
			Phase:               r.State.Phase,
			CheckpointIteration: r.State.CheckpointIteration,
			Progress:            r.State.Progress,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Config:    cfg,
	}, nil
}

func (meta renderMeta) toRender() (Render, error) {
	r := Render{
		ID:          meta.ID,
		OwnerUserID: meta.OwnerUserID,
		State: RenderState{
			Phase:               meta.State.Phase,
			CheckpointIteration: meta.State.CheckpointIteration,
			Progress:            meta.State.Progress,
		},
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
	}
	if err := json.Unmarshal(meta.Config, &r.Config); err != nil {
		return Render{}, fmt.Errorf("renderstore: decoding render %d config: %w", meta.ID, err)
	}
	return r, nil
}

func (fs *Filesystem) GetRender(id int64) (Render, error) {
	meta, err := fs.readMeta(id)
	if err != nil {
		return Render{}, err
	}
	return meta.toRender()
}

func (fs *Filesystem) GetAllRenders(ownerUserID string) ([]Render, error) {
	fs.mu.RLock()
	ids := make([]int64, 0, len(fs.dirByID))
	for id := range fs.dirByID {
		ids = append(ids, id)
	}
	fs.mu.RUnlock()

	out := make([]Render, 0, len(ids))
	for _, id := range ids {
		r, err := fs.GetRender(id)
		if err != nil {
			continue
		}
		if r.OwnerUserID == ownerUserID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListAll returns every render regardless of owner, ascending by ID.
func (fs *Filesystem) ListAll() ([]Render, error) {
	fs.mu.RLock()
	ids := make([]int64, 0, len(fs.dirByID))
	for id := range fs.dirByID {
		ids = append(ids, id)
	}
	fs.mu.RUnlock()

	out := make([]Render, 0, len(ids))
	for _, id := range ids {
		r, err := fs.GetRender(id)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (fs *Filesystem) CreateRender(r Render) error {
	fs.mu.Lock()
	if _, exists := fs.dirByID[r.ID]; exists {
		fs.mu.Unlock()
		return fmt.Errorf("renderstore: render %d: %w", r.ID, ErrConflict)
	}
	dirName := fmt.Sprintf("%d_%s_%d", r.ID, sanitizeName(r.Config.Name), time.Now().UnixNano())
	fs.dirByID[r.ID] = dirName
	fs.mu.Unlock()

	dir := filepath.Join(fs.basePath, dirName)
	if err := os.MkdirAll(filepath.Join(dir, "checkpoints"), 0o755); err != nil {
		return fmt.Errorf("renderstore: creating render %d directory: %w", r.ID, err)
	}
	meta, err := toMeta(r)
	if err != nil {
		return err
	}
	return fs.writeMeta(meta)
}

func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, " ", "-")
	if name == "" {
		return "render"
	}
	return name
}

func (fs *Filesystem) UpdateRenderState(id int64, newState RenderState) error {
	meta, err := fs.readMeta(id)
	if err != nil {
		return err
	}
	meta.State = renderStateMeta{
		Phase:               newState.Phase,
		CheckpointIteration: newState.CheckpointIteration,
		Progress:            newState.Progress,
	}
	meta.UpdatedAt = time.Now()
	return fs.writeMeta(meta)
}

func (fs *Filesystem) UpdateRenderProgress(id int64, info progress.ProgressInfo) error {
	meta, err := fs.readMeta(id)
	if err != nil {
		return err
	}
	state := RenderState{Phase: meta.State.Phase, CheckpointIteration: meta.State.CheckpointIteration}
	if !state.IsRunningOrPausing() {
		return nil
	}
	meta.State.Progress = info
	meta.UpdatedAt = time.Now()
	return fs.writeMeta(meta)
}

func (fs *Filesystem) UpdateRenderTotalCheckpoints(id int64, n int) error {
	r, err := fs.GetRender(id)
	if err != nil {
		return err
	}
	r.Config.Parameters.TotalCheckpoints = n
	r.UpdatedAt = time.Now()
	meta, err := toMeta(r)
	if err != nil {
		return err
	}
	return fs.writeMeta(meta)
}

func (fs *Filesystem) checkpointPath(id int64, iteration int) (string, error) {
	dir, ok := fs.dirFor(id)
	if !ok {
		return "", fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	return filepath.Join(fs.basePath, dir, "checkpoints", fmt.Sprintf("%d.png", iteration)), nil
}

func (fs *Filesystem) GetRenderCheckpoint(id int64, iteration int) (RenderCheckpoint, error) {
	render, err := fs.GetRender(id)
	if err != nil {
		return RenderCheckpoint{}, err
	}
	path, err := fs.checkpointPath(id, iteration)
	if err != nil {
		return RenderCheckpoint{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RenderCheckpoint{}, fmt.Errorf("renderstore: render %d checkpoint %d: %w", id, iteration, ErrNotFound)
		}
		return RenderCheckpoint{}, fmt.Errorf("renderstore: opening checkpoint: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return RenderCheckpoint{}, fmt.Errorf("renderstore: decoding checkpoint %d for render %d: %w", iteration, id, err)
	}
	info, err := f.Stat()
	if err != nil {
		return RenderCheckpoint{}, err
	}

	gamma := render.Config.Parameters.GammaCorrection
	bounds := img.Bounds()
	pd := tracer.NewPixelData(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pd.Set(x-bounds.Min.X, y-bounds.Min.Y, linearFrom16(r, g, b).GammaExpanded(gamma))
		}
	}
	return RenderCheckpoint{
		RenderID:  id,
		Iteration: iteration,
		Pixels:    pd,
		EndedAt:   info.ModTime(),
	}, nil
}

// CreateRenderCheckpoint encodes pixels to an 8-bit PNG, the canonical
// on-disk form for this backend.
func (fs *Filesystem) CreateRenderCheckpoint(cp RenderCheckpoint) error {
	path, err := fs.checkpointPath(cp.RenderID, cp.Iteration)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("renderstore: render %d checkpoint %d: %w", cp.RenderID, cp.Iteration, ErrConflict)
	}

	r, err := fs.GetRender(cp.RenderID)
	if err != nil {
		return err
	}
	img := image.NewNRGBA(image.Rect(0, 0, cp.Pixels.Width, cp.Pixels.Height))
	truncate := r.Config.Parameters.UseScalingTruncation
	gamma := r.Config.Parameters.GammaCorrection
	for y := 0; y < cp.Pixels.Height; y++ {
		for x := 0; x < cp.Pixels.Width; x++ {
			img.SetNRGBA(x, y, cp.Pixels.At(x, y).ToNRGBA(gamma, truncate))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("renderstore: creating checkpoint file: %w", err)
	}
	defer f.Close()
	return png.Encode(f, img)
}

func (fs *Filesystem) DeleteRenderAndCheckpoints(id int64) error {
	fs.mu.Lock()
	dir, ok := fs.dirByID[id]
	if !ok {
		fs.mu.Unlock()
		return fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	delete(fs.dirByID, id)
	fs.mu.Unlock()

	return os.RemoveAll(filepath.Join(fs.basePath, dir))
}

func (fs *Filesystem) NextID() (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextID++
	return fs.nextID, nil
}

func (fs *Filesystem) RevertToLastCheckpoint(id int64) error {
	meta, err := fs.readMeta(id)
	if err != nil {
		return err
	}
	switch meta.State.Phase {
	case PhaseRunning:
		k := meta.State.CheckpointIteration
		if k <= 1 {
			meta.State = renderStateMeta{Phase: PhaseCreated}
		} else {
			meta.State = renderStateMeta{Phase: PhaseFinishedCheckpointIteration, CheckpointIteration: k - 1}
		}
	case PhasePausing:
		meta.State = renderStateMeta{Phase: PhasePaused, CheckpointIteration: meta.State.CheckpointIteration - 1}
	default:
		return fmt.Errorf("renderstore: render %d: revert from %s: %w", id, meta.State.Phase, ErrConflict)
	}
	meta.UpdatedAt = time.Now()
	return fs.writeMeta(meta)
}

func (fs *Filesystem) ListCheckpointIterations(id int64) ([]int, error) {
	dir, ok := fs.dirFor(id)
	if !ok {
		return nil, fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	entries, err := os.ReadDir(filepath.Join(fs.basePath, dir, "checkpoints"))
	if err != nil {
		return nil, fmt.Errorf("renderstore: listing checkpoints: %w", err)
	}
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".png")
		k, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		out = append(out, k)
	}
	sort.Ints(out)
	return out, nil
}

func (fs *Filesystem) Usage() (int64, error) {
	var total int64
	err := filepath.Walk(fs.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("renderstore: computing usage: %w", err)
	}
	return total, nil
}

// linearFrom16 converts the 16-bit-per-channel samples image.Color.RGBA
// returns for an NRGBA source back to the [0,1] range PixelData stores.
// The caller undoes the gamma encoding via GammaExpanded; the 8-bit
// quantization and any scaling truncation are already lost, which is as
// much as a resume from this backend can recover.
func linearFrom16(r, g, b uint32) shading.Color {
	return shading.Color{
		R: float64(r) / 65535,
		G: float64(g) / 65535,
		B: float64(b) / 65535,
	}
}
