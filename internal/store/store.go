// Package store persists alignment runs in SQLite so they can be listed,
// inspected and served after the CLI exits.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/forPelevin/vidalign/internal/types"
)

var (
	ErrNotFound = errors.New("run not found")
	// ErrLocked is returned when another process holds the writer lock past
	// the caller's deadline.
	ErrLocked = errors.New("store is locked by another writer")
)

type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open creates or opens the database at path. Writers serialize on a lock
// file next to it; readers do not take the lock.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path, lock: flock.New(path + ".lock")}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun writes the run with all its rows and issues in one transaction.
func (s *Store) SaveRun(ctx context.Context, run types.RunSummary, ds types.Dataset, report types.Report) error {
	ok, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrLocked, err)
		}
		return fmt.Errorf("acquire store lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	defer func() { _ = s.lock.Unlock() }()

	inputs, err := json.Marshal(nonNilMap(run.Inputs))
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	columns, err := json.Marshal(nonNilSlice(ds.MetadataColumns))
	if err != nil {
		return fmt.Errorf("marshal metadata columns: %w", err)
	}
	counts, err := json.Marshal(report.Counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, inputs_json, metadata_columns_json, counts_json, issue_count)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(inputs),
		string(columns),
		string(counts),
		len(report.Issues),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rowStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dataset_rows (run_id, position, video_id, scene_ordinal, has_segment, row_json)
         VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer rowStmt.Close()
	for i, r := range ds.Rows {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", i, err)
		}
		var ordinal any
		if r.SceneOrdinal != nil {
			ordinal = *r.SceneOrdinal
		}
		if _, err := rowStmt.ExecContext(ctx, run.ID, i, r.VideoID, ordinal, r.HasSegment(), string(b)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	for i, is := range report.Issues {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO issues (run_id, position, kind, video_id, detail) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, string(is.Kind), is.VideoID, is.Detail,
		); err != nil {
			return fmt.Errorf("insert issue %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.RunSummary, error) {
	query := `SELECT id, created_at, inputs_json, metadata_columns_json, counts_json, issue_count
              FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []types.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (types.RunSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, inputs_json, metadata_columns_json, counts_json, issue_count
         FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RunSummary{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// ListRows returns a run's rows in dataset order, optionally limited to one
// video.
func (s *Store) ListRows(ctx context.Context, runID, videoID string) ([]types.AlignedRow, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	query := `SELECT row_json FROM dataset_rows WHERE run_id = ?`
	args := []any{runID}
	if videoID != "" {
		query += " AND video_id = ?"
		args = append(args, videoID)
	}
	query += " ORDER BY position"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	var out []types.AlignedRow
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var r types.AlignedRow
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListIssues(ctx context.Context, runID string) ([]types.Issue, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, video_id, detail FROM issues WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var out []types.Issue
	for rows.Next() {
		var is types.Issue
		var kind string
		if err := rows.Scan(&kind, &is.VideoID, &is.Detail); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		is.Kind = types.IssueKind(kind)
		out = append(out, is)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (types.RunSummary, error) {
	var (
		run                               types.RunSummary
		created, inputs, columns, counts string
	)
	if err := sc.Scan(&run.ID, &created, &inputs, &columns, &counts, &run.Issues); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return run, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	run.CreatedAt = ts
	if err := json.Unmarshal([]byte(inputs), &run.Inputs); err != nil {
		return run, fmt.Errorf("decode inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(columns), &run.MetadataColumns); err != nil {
		return run, fmt.Errorf("decode metadata columns: %w", err)
	}
	if err := json.Unmarshal([]byte(counts), &run.Counts); err != nil {
		return run, fmt.Errorf("decode counts: %w", err)
	}
	return run, nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
