package renderstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/paulwrubel/luxide/progress"
	"github.com/paulwrubel/luxide/tracer"
)

// SQL is the relational Store backend: two tables
// (`renders`, `checkpoints`), pixel data as a BLOB using PixelData's
// compact binary encoding (not PNG) to preserve float precision, and a
// single transaction deleting checkpoints before the parent row on
// delete. Built on modernc.org/sqlite, a pure-Go database/sql driver,
// chosen over a cgo driver so the relational backend never requires a C
// toolchain to build.
type SQL struct {
	db *sql.DB
}

var _ Store = (*SQL)(nil)

// OpenSQL opens (creating if necessary) a SQLite database at dsn and
// ensures the schema exists.
func OpenSQL(dsn string) (*SQL, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "renderstore: opening sqlite database")
	}
	// There is no application lock; only DeleteRenderAndCheckpoints and
	// NextID run inside SQL transactions, and the other writes are single
	// statements. A single open connection serializes all access.
	db.SetMaxOpenConns(1)

	s := &SQL{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS renders (
			id INTEGER PRIMARY KEY,
			owner_user_id TEXT NOT NULL,
			phase INTEGER NOT NULL,
			checkpoint_iteration INTEGER NOT NULL,
			progress_done INTEGER NOT NULL,
			progress_total INTEGER NOT NULL,
			progress_eta_ns INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			config TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS checkpoints (
			render_id INTEGER NOT NULL REFERENCES renders(id),
			iteration INTEGER NOT NULL,
			pixels BLOB NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			PRIMARY KEY (render_id, iteration)
		);
		CREATE TABLE IF NOT EXISTS sequences (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);
		INSERT OR IGNORE INTO sequences (name, value) VALUES ('render_id', 0);
	`)
	if err != nil {
		return errors.Wrap(err, "renderstore: migrating schema")
	}
	return nil
}

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) GetRender(id int64) (Render, error) {
	row := s.db.QueryRow(`
		SELECT owner_user_id, phase, checkpoint_iteration, progress_done,
		       progress_total, progress_eta_ns, created_at, updated_at, config
		FROM renders WHERE id = ?`, id)
	return scanRender(id, row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRender(id int64, row rowScanner) (Render, error) {
	var (
		r           Render
		phase       int
		iteration   int
		done, total int
		etaNs       int64
		createdAt   string
		updatedAt   string
		config      string
	)
	err := row.Scan(&r.OwnerUserID, &phase, &iteration, &done, &total, &etaNs, &createdAt, &updatedAt, &config)
	if err == sql.ErrNoRows {
		return Render{}, fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Render{}, errors.Wrapf(err, "renderstore: scanning render %d", id)
	}
	r.ID = id
	r.State = RenderState{
		Phase:               StatePhase(phase),
		CheckpointIteration: iteration,
		Progress:            progress.ProgressInfo{Done: done, Total: total, ETA: time.Duration(etaNs)},
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Render{}, errors.Wrap(err, "renderstore: parsing created_at")
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Render{}, errors.Wrap(err, "renderstore: parsing updated_at")
	}
	if err := json.Unmarshal([]byte(config), &r.Config); err != nil {
		return Render{}, fmt.Errorf("renderstore: decoding render %d config: %w", id, err)
	}
	return r, nil
}

func (s *SQL) GetAllRenders(ownerUserID string) ([]Render, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_user_id, phase, checkpoint_iteration, progress_done,
		       progress_total, progress_eta_ns, created_at, updated_at, config
		FROM renders WHERE owner_user_id = ? ORDER BY id ASC`, ownerUserID)
	if err != nil {
		return nil, errors.Wrap(err, "renderstore: listing renders")
	}
	defer rows.Close()

	var out []Render
	for rows.Next() {
		var id int64
		var phase, iteration, done, total int
		var etaNs int64
		var createdAt, updatedAt, config string
		if err := rows.Scan(&id, &ownerUserID, &phase, &iteration, &done, &total, &etaNs, &createdAt, &updatedAt, &config); err != nil {
			return nil, errors.Wrap(err, "renderstore: scanning render row")
		}
		r := Render{
			ID:          id,
			OwnerUserID: ownerUserID,
			State: RenderState{
				Phase:               StatePhase(phase),
				CheckpointIteration: iteration,
				Progress:            progress.ProgressInfo{Done: done, Total: total, ETA: time.Duration(etaNs)},
			},
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(config), &r.Config); err != nil {
			return nil, fmt.Errorf("renderstore: decoding render %d config: %w", id, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListAll returns every render regardless of owner, ascending by ID.
func (s *SQL) ListAll() ([]Render, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_user_id, phase, checkpoint_iteration, progress_done,
		       progress_total, progress_eta_ns, created_at, updated_at, config
		FROM renders ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "renderstore: listing all renders")
	}
	defer rows.Close()

	var out []Render
	for rows.Next() {
		var id int64
		var ownerUserID string
		var phase, iteration, done, total int
		var etaNs int64
		var createdAt, updatedAt, config string
		if err := rows.Scan(&id, &ownerUserID, &phase, &iteration, &done, &total, &etaNs, &createdAt, &updatedAt, &config); err != nil {
			return nil, errors.Wrap(err, "renderstore: scanning render row")
		}
		r := Render{
			ID:          id,
			OwnerUserID: ownerUserID,
			State: RenderState{
				Phase:               StatePhase(phase),
				CheckpointIteration: iteration,
				Progress:            progress.ProgressInfo{Done: done, Total: total, ETA: time.Duration(etaNs)},
			},
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(config), &r.Config); err != nil {
			return nil, fmt.Errorf("renderstore: decoding render %d config: %w", id, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQL) CreateRender(r Render) error {
	config, err := json.Marshal(r.Config)
	if err != nil {
		return errors.Wrapf(err, "renderstore: encoding render %d config", r.ID)
	}
	_, err = s.db.Exec(`
		INSERT INTO renders (id, owner_user_id, phase, checkpoint_iteration,
			progress_done, progress_total, progress_eta_ns, created_at, updated_at, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerUserID, int(r.State.Phase), r.State.CheckpointIteration,
		r.State.Progress.Done, r.State.Progress.Total, int64(r.State.Progress.ETA),
		r.CreatedAt.Format(time.RFC3339Nano), r.UpdatedAt.Format(time.RFC3339Nano), string(config))
	if err != nil {
		return fmt.Errorf("renderstore: render %d: %w", r.ID, ErrConflict)
	}
	return nil
}

func (s *SQL) UpdateRenderState(id int64, newState RenderState) error {
	res, err := s.db.Exec(`
		UPDATE renders SET phase = ?, checkpoint_iteration = ?,
			progress_done = ?, progress_total = ?, progress_eta_ns = ?, updated_at = ?
		WHERE id = ?`,
		int(newState.Phase), newState.CheckpointIteration,
		newState.Progress.Done, newState.Progress.Total, int64(newState.Progress.ETA),
		time.Now().Format(time.RFC3339Nano), id)
	if err != nil {
		return errors.Wrapf(err, "renderstore: updating render %d state", id)
	}
	return requireAffected(res, id)
}

// UpdateRenderProgress is conditional on the row's current phase, applied
// as a single guarded UPDATE rather than a read-then-write so a concurrent
// checkpoint-complete transition can't be clobbered by a stale progress
// packet.
func (s *SQL) UpdateRenderProgress(id int64, info progress.ProgressInfo) error {
	_, err := s.db.Exec(`
		UPDATE renders SET progress_done = ?, progress_total = ?, progress_eta_ns = ?
		WHERE id = ? AND phase IN (?, ?)`,
		info.Done, info.Total, int64(info.ETA), id, int(PhaseRunning), int(PhasePausing))
	if err != nil {
		return errors.Wrapf(err, "renderstore: updating render %d progress", id)
	}
	return nil
}

func (s *SQL) UpdateRenderTotalCheckpoints(id int64, n int) error {
	r, err := s.GetRender(id)
	if err != nil {
		return err
	}
	r.Config.Parameters.TotalCheckpoints = n
	config, err := json.Marshal(r.Config)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE renders SET config = ?, updated_at = ? WHERE id = ?`,
		string(config), time.Now().Format(time.RFC3339Nano), id)
	if err != nil {
		return errors.Wrapf(err, "renderstore: updating render %d total checkpoints", id)
	}
	return requireAffected(res, id)
}

func (s *SQL) GetRenderCheckpoint(id int64, iteration int) (RenderCheckpoint, error) {
	var pixels []byte
	var startedAt, endedAt string
	err := s.db.QueryRow(`
		SELECT pixels, started_at, ended_at FROM checkpoints
		WHERE render_id = ? AND iteration = ?`, id, iteration).
		Scan(&pixels, &startedAt, &endedAt)
	if err == sql.ErrNoRows {
		return RenderCheckpoint{}, fmt.Errorf("renderstore: render %d checkpoint %d: %w", id, iteration, ErrNotFound)
	}
	if err != nil {
		return RenderCheckpoint{}, errors.Wrap(err, "renderstore: scanning checkpoint")
	}
	pd, err := tracer.Decode(pixels)
	if err != nil {
		return RenderCheckpoint{}, fmt.Errorf("renderstore: decoding checkpoint %d for render %d: %w", iteration, id, err)
	}
	cp := RenderCheckpoint{RenderID: id, Iteration: iteration, Pixels: pd}
	if cp.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return RenderCheckpoint{}, err
	}
	if cp.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return RenderCheckpoint{}, err
	}
	return cp, nil
}

func (s *SQL) CreateRenderCheckpoint(cp RenderCheckpoint) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (render_id, iteration, pixels, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?)`,
		cp.RenderID, cp.Iteration, cp.Pixels.Encode(),
		cp.StartedAt.Format(time.RFC3339Nano), cp.EndedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("renderstore: render %d checkpoint %d: %w", cp.RenderID, cp.Iteration, ErrConflict)
	}
	return nil
}

// DeleteRenderAndCheckpoints runs inside a single transaction, deleting
// checkpoints before the parent row.
func (s *SQL) DeleteRenderAndCheckpoints(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "renderstore: beginning delete transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM checkpoints WHERE render_id = ?`, id); err != nil {
		return errors.Wrapf(err, "renderstore: deleting checkpoints for render %d", id)
	}
	res, err := tx.Exec(`DELETE FROM renders WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "renderstore: deleting render %d", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQL) NextID() (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "renderstore: beginning next-id transaction")
	}
	defer tx.Rollback()

	var value int64
	if err := tx.QueryRow(`SELECT value FROM sequences WHERE name = 'render_id'`).Scan(&value); err != nil {
		return 0, errors.Wrap(err, "renderstore: reading id sequence")
	}
	value++
	if _, err := tx.Exec(`UPDATE sequences SET value = ? WHERE name = 'render_id'`, value); err != nil {
		return 0, errors.Wrap(err, "renderstore: advancing id sequence")
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return value, nil
}

func (s *SQL) RevertToLastCheckpoint(id int64) error {
	r, err := s.GetRender(id)
	if err != nil {
		return err
	}
	var next RenderState
	switch r.State.Phase {
	case PhaseRunning:
		k := r.State.CheckpointIteration
		if k <= 1 {
			next = Created()
		} else {
			next = FinishedCheckpointIteration(k - 1)
		}
	case PhasePausing:
		next = Paused(r.State.CheckpointIteration - 1)
	default:
		return fmt.Errorf("renderstore: render %d: revert from %s: %w", id, r.State.Phase, ErrConflict)
	}
	return s.UpdateRenderState(id, next)
}

func (s *SQL) ListCheckpointIterations(id int64) ([]int, error) {
	rows, err := s.db.Query(`SELECT iteration FROM checkpoints WHERE render_id = ? ORDER BY iteration ASC`, id)
	if err != nil {
		return nil, errors.Wrap(err, "renderstore: listing checkpoint iterations")
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var k int
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQL) Usage() (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(LENGTH(pixels)) FROM checkpoints`).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "renderstore: computing usage")
	}
	return total.Int64, nil
}

func requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("renderstore: render %d: %w", id, ErrNotFound)
	}
	return nil
}
