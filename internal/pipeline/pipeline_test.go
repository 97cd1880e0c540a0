package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/vidalign/internal/domain/alignment"
	"github.com/forPelevin/vidalign/internal/ports/adapters/csvtable"
	"github.com/forPelevin/vidalign/internal/store"
	"github.com/forPelevin/vidalign/internal/types"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "My Cool.Dataset", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "my-cool-dataset-20260212-103045Z-") {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if len(base) != len("my-cool-dataset-20260212-103045Z-")+6 {
		t.Fatalf("unexpected run dir suffix length: %s", base)
	}
	if b := filepath.Base(buildRunOutDir("out", "___", now)); !strings.HasPrefix(b, "dataset-") {
		t.Fatalf("empty label should fall back to dataset, got %s", b)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestRollingCaptions(t *testing.T) {
	meta := types.MetadataTable{Videos: []types.VideoMetadata{
		{VideoID: "auto", Extra: map[string]string{"subtitles_are_provided": "False"}},
		{VideoID: "human", Extra: map[string]string{"subtitles_are_provided": "true"}},
		{VideoID: "unknown", Extra: map[string]string{"subtitles_are_provided": ""}},
		{VideoID: "none"},
	}}
	got := rollingCaptions(meta)
	if len(got) != 2 || !got["auto"] || got["human"] {
		t.Fatalf("unexpected rolling map: %v", got)
	}
}

func TestAlignConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.csv")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name    string
		cfg     AlignConfig
		wantErr string
	}{
		{name: "input dir", cfg: AlignConfig{InputDir: dir}},
		{name: "explicit paths", cfg: AlignConfig{ScenesPath: file, SegmentsPath: file, MetadataPath: file}},
		{name: "vtt and infojson", cfg: AlignConfig{ScenesPath: file, VTTDir: dir, InfoJSONDir: dir}},
		{name: "no scenes", cfg: AlignConfig{SegmentsPath: file, MetadataPath: file}, wantErr: "scenes"},
		{name: "no metadata", cfg: AlignConfig{ScenesPath: file, SegmentsPath: file}, wantErr: "metadata"},
		{name: "no segments", cfg: AlignConfig{ScenesPath: file, MetadataPath: file}, wantErr: "segments"},
		{name: "vtt dir is a file", cfg: AlignConfig{InputDir: dir, VTTDir: file}, wantErr: "not a directory"},
		{name: "missing dir", cfg: AlignConfig{InputDir: filepath.Join(dir, "nope")}, wantErr: "stat input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func writeInputs(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		csvtable.ScenesFile: "id,start_time,end_time,start_frame_num,end_frame_num\n" +
			"v1,00:00:00.000,00:00:04.000,0,120\n" +
			"v1,00:00:04.000,00:00:10.000,120,300\n",
		csvtable.TranscriptsFile: "id,start_time,end_time,text,whisper_generated\n" +
			"v1,00:00:01.000,00:00:02.000,hello world,False\n" +
			"v1,00:00:11.000,00:00:12.000,after the end,True\n" +
			"v2,00:00:01.000,00:00:02.000,no scenes here,False\n",
		csvtable.MetadataFile: "video_id,duration_seconds,fps,title\n" +
			"v1,10,30,One\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestAlign_WritesRunArtifacts(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "inputs")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}
	writeInputs(t, in)
	storePath := filepath.Join(tmp, "db", "vidalign.db")

	sum, err := Align(context.Background(), AlignConfig{
		InputDir:  in,
		OutDir:    filepath.Join(tmp, "out"),
		StorePath: storePath,
		Options:   alignment.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(sum.RunOutDir), "inputs-") {
		t.Fatalf("unexpected run dir: %s", sum.RunOutDir)
	}
	if _, err := os.Stat(sum.DatasetPath); err != nil {
		t.Fatalf("dataset not written: %v", err)
	}

	b, err := os.ReadFile(sum.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var doc reportDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if doc.Run.ID != sum.Run.ID || doc.Report.Counts.HallucinatedDropped != 1 || doc.Report.Counts.Orphans != 1 {
		t.Fatalf("unexpected report: %+v", doc)
	}

	st, err := store.Open(context.Background(), storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	rows, err := st.ListRows(context.Background(), sum.Run.ID, "v2")
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	if len(rows) != 1 || rows[0].Text != "no scenes here" {
		t.Fatalf("unexpected stored rows: %+v", rows)
	}
}

func TestAlign_VTTSegmentsWithInfoJSON(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "inputs")
	subs := filepath.Join(tmp, "subs")
	infos := filepath.Join(tmp, "info")
	for _, d := range []string{in, subs, infos} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeInputs(t, in)
	if err := os.WriteFile(filepath.Join(subs, "v1.en.vtt"),
		[]byte("WEBVTT\n\n00:00:05.000 --> 00:00:06.000\nfrom captions\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(infos, "v1.info.json"),
		[]byte(`{"id": "v1", "duration": 10, "fps": 30, "title": "From info", "subtitles_are_provided": true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	sum, err := Align(context.Background(), AlignConfig{
		InputDir:    in,
		VTTDir:      subs,
		InfoJSONDir: infos,
		OutDir:      filepath.Join(tmp, "out"),
		Options:     alignment.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if sum.Run.Counts.Segments != 1 || sum.Run.Counts.Assigned != 1 {
		t.Fatalf("unexpected counts: %+v", sum.Run.Counts)
	}
	if sum.Run.Inputs["segments"] != subs || sum.Run.Inputs["metadata"] != infos {
		t.Fatalf("unexpected inputs: %v", sum.Run.Inputs)
	}

	b, err := os.ReadFile(sum.DatasetPath)
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if !strings.Contains(string(b), "from captions") || !strings.Contains(string(b), "From info") {
		t.Fatalf("dataset missing caption or info values:\n%s", b)
	}
}
