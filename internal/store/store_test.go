package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/forPelevin/vidalign/internal/types"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "vidalign.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id string, at time.Time) (types.RunSummary, types.Dataset, types.Report) {
	ord := 0
	start, end := types.Instant(0), types.Instant(4_000_000)
	kind := types.SourceProvided
	ds := types.Dataset{
		MetadataColumns: []string{"title"},
		Rows: []types.AlignedRow{
			{
				VideoID:      "a",
				Metadata:     &types.VideoMetadata{VideoID: "a", DurationSeconds: 4, FPS: 30, Extra: map[string]string{"title": "A"}},
				SceneOrdinal: &ord, SceneStart: &start, SceneEnd: &end,
				SegmentStart: &start, SegmentEnd: &end, Text: "hello", Source: &kind,
			},
			{VideoID: "b", Text: "loose", Source: &kind},
		},
	}
	report := types.Report{Counts: types.Counts{Scenes: 1, Segments: 2, Assigned: 1, Orphans: 1, Videos: 2, Rows: 2}}
	report.Add(types.IssueOrphanReference, "b", "1 segments have no scenes")
	run := types.RunSummary{
		ID:              id,
		CreatedAt:       at,
		Inputs:          map[string]string{"scenes": "scenes.csv"},
		MetadataColumns: ds.MetadataColumns,
		Counts:          report.Counts,
		Issues:          len(report.Issues),
	}
	return run, ds, report
}

func TestStore_SaveAndRead(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	run, ds, report := sampleRun("run-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err := s.SaveRun(ctx, run, ds, report); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) || got.Counts != run.Counts || got.Issues != 1 {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.Inputs["scenes"] != "scenes.csv" || len(got.MetadataColumns) != 1 {
		t.Fatalf("unexpected run inputs: %+v", got)
	}

	rows, err := s.ListRows(ctx, "run-1", "")
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	if len(rows) != 2 || rows[0].VideoID != "a" || rows[1].Text != "loose" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Metadata == nil || rows[0].Metadata.Extra["title"] != "A" || *rows[0].SceneEnd != 4_000_000 {
		t.Fatalf("row fields not preserved: %+v", rows[0])
	}

	only, err := s.ListRows(ctx, "run-1", "b")
	if err != nil {
		t.Fatalf("ListRows filtered: %v", err)
	}
	if len(only) != 1 || only[0].VideoID != "b" {
		t.Fatalf("unexpected filtered rows: %+v", only)
	}

	issues, err := s.ListIssues(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 1 || issues[0].Kind != types.IssueOrphanReference || issues[0].VideoID != "b" {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		at := base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
		run, ds, report := sampleRun(id, at)
		if err := s.SaveRun(ctx, run, ds, report); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "new" || runs[1].ID != "mid" || runs[2].ID != "old" {
		t.Fatalf("unexpected order: %+v", runs)
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "new" {
		t.Fatalf("unexpected limited runs: %+v", limited)
	}
}

func TestStore_NotFound(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if _, err := s.GetRun(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRun err = %v, want ErrNotFound", err)
	}
	if _, err := s.ListRows(ctx, "nope", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ListRows err = %v, want ErrNotFound", err)
	}
	if _, err := s.ListIssues(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ListIssues err = %v, want ErrNotFound", err)
	}
}

func TestStore_DuplicateRunRollsBack(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	run, ds, report := sampleRun("dup", time.Now())
	if err := s.SaveRun(ctx, run, ds, report); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.SaveRun(ctx, run, ds, report); err == nil {
		t.Fatalf("expected error saving duplicate run id")
	}
	rows, err := s.ListRows(ctx, "dup", "")
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}

func TestStore_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidalign.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run, ds, report := sampleRun("keep", time.Now())
	if err := s.SaveRun(ctx, run, ds, report); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetRun(ctx, "keep"); err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
}

func TestStore_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidalign.db")
	ctx := context.Background()
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = s.Close()

	if _, err := Open(ctx, path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("Open err = %v, want ErrSchemaMismatch", err)
	}
}
