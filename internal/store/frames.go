package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/netsim/internal/engine"
	"github.com/roach88/netsim/internal/ir"
)

// Run is one recorded simulation of a root component.
type Run struct {
	ID          string         `json:"id"`
	Seq         int64          `json:"seq"`
	ComponentID ir.ComponentID `json:"component_id"`
	Fingerprint string         `json:"fingerprint"`
	Steps       int            `json:"steps"` // frames stored for the run
}

// WriteRun records a new simulation run and returns its seq.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing the same run id
// again returns the existing seq.
func (s *Store) WriteRun(ctx context.Context, id string, component ir.ComponentID, fingerprint string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO simulation_runs (seq, id, component_id, fingerprint)
		VALUES ((SELECT COALESCE(MAX(seq), 0) + 1 FROM simulation_runs), ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, string(component), fingerprint)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT seq FROM simulation_runs WHERE id = ?`, id).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write run: read seq: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write run: commit: %w", err)
	}
	return seq, nil
}

// WriteFrame stores frame as canonical JSON under run and its step.
// A frame already stored for the same step is kept unchanged.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) WriteFrame(ctx context.Context, runID string, frame *engine.Frame) error {
	data, err := frame.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	hash, err := frame.Hash()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO frames (run_id, step, hash, frame)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO NOTHING
	`, runID, frame.Step, hash, string(data))
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrames returns the frames of a run in step order. Each frame's hash
// is recomputed and checked against the stored one.
//
// Returns an empty slice (not nil) if the run has no frames.
func (s *Store) ReadFrames(ctx context.Context, runID string) ([]*engine.Frame, error) {
	type stored struct {
		step       int
		hash, data string
	}
	rows, err := queryAll(ctx, s.db, `
		SELECT step, hash, frame FROM frames
		WHERE run_id = ?
		ORDER BY step ASC
	`, func(rows *sql.Rows) (stored, error) {
		var r stored
		err := rows.Scan(&r.step, &r.hash, &r.data)
		return r, err
	}, runID)
	if err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}

	frames := make([]*engine.Frame, 0, len(rows))
	for _, r := range rows {
		f, err := decodeFrame(r.data, r.hash)
		if err != nil {
			return nil, fmt.Errorf("read frames: run %s step %d: %w", runID, r.step, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// FrameByHash finds a stored frame by content hash.
// Returns sql.ErrNoRows if not found.
func (s *Store) FrameByHash(ctx context.Context, hash string) (runID string, frame *engine.Frame, err error) {
	var data string
	err = s.db.QueryRowContext(ctx, `
		SELECT run_id, frame FROM frames
		WHERE hash = ?
		ORDER BY run_id COLLATE BINARY ASC, step ASC
		LIMIT 1
	`, hash).Scan(&runID, &data)
	if err != nil {
		return "", nil, err
	}
	frame, err = decodeFrame(data, hash)
	if err != nil {
		return "", nil, fmt.Errorf("frame %s: %w", hash, err)
	}
	return runID, frame, nil
}

// ListRuns returns every run ordered by seq.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	runs, err := queryAll(ctx, s.db, `
		SELECT r.id, r.seq, r.component_id, r.fingerprint,
		       (SELECT COUNT(*) FROM frames f WHERE f.run_id = r.id)
		FROM simulation_runs r
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`, scanRun)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	var comp string
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.seq, r.component_id, r.fingerprint,
		       (SELECT COUNT(*) FROM frames f WHERE f.run_id = r.id)
		FROM simulation_runs r
		WHERE r.id = ?
	`, id).Scan(&r.ID, &r.Seq, &comp, &r.Fingerprint, &r.Steps)
	r.ComponentID = ir.ComponentID(comp)
	return r, err
}

func scanRun(rows *sql.Rows) (Run, error) {
	var r Run
	var comp string
	err := rows.Scan(&r.ID, &r.Seq, &comp, &r.Fingerprint, &r.Steps)
	r.ComponentID = ir.ComponentID(comp)
	return r, err
}

func decodeFrame(data, wantHash string) (*engine.Frame, error) {
	var f engine.Frame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	got, err := f.Hash()
	if err != nil {
		return nil, err
	}
	if got != wantHash {
		return nil, fmt.Errorf("frame hash mismatch: stored %s, computed %s", wantHash, got)
	}
	return &f, nil
}
