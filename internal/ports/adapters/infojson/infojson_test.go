package infojson

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDecode_DefaultsMissingCounts(t *testing.T) {
	v, err := Decode([]byte(`{
		"id": "abc123",
		"title": "  A video ",
		"channel": "Chan",
		"duration": 212,
		"fps": 29.97,
		"tags": ["x", "y"],
		"subtitles_are_provided": false,
		"height": 1080
	}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.VideoID != "abc123" || v.DurationSeconds != 212 || v.FPS != 29.97 {
		t.Fatalf("unexpected core fields: %+v", v)
	}
	tests := map[string]string{
		"title":                    "A video",
		"channel_title":            "Chan",
		"channel_subscriber_count": "0",
		"video_view_count":         "0",
		"channel_is_verified":      "false",
		"tags":                     `["x","y"]`,
		"categories":               "[]",
		"subtitles_are_provided":   "false",
		"height":                   "1080",
		"width":                    "",
		"audio_sampling_rate":      "",
	}
	for col, want := range tests {
		if got := v.Extra[col]; got != want {
			t.Fatalf("%s = %q, want %q", col, got, want)
		}
	}
	for _, col := range Columns {
		if _, ok := v.Extra[col]; !ok {
			t.Fatalf("column %q not populated", col)
		}
	}
}

func TestDecode_RequiresID(t *testing.T) {
	if _, err := Decode([]byte(`{"title": "x"}`)); err == nil {
		t.Fatalf("expected error for missing id")
	}
	if _, err := Decode([]byte(`{`)); err == nil {
		t.Fatalf("expected error for bad json")
	}
}

func TestSource_Metadata(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"b.info.json": `{"id": "b", "duration": 10}`,
		"a.info.json": `{"id": "a", "duration": 20, "view_count": 7}`,
		"notes.txt":   `ignored`,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mt, err := (&Source{Dir: dir}).Metadata(context.Background())
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if len(mt.Videos) != 2 || mt.Videos[0].VideoID != "a" || mt.Videos[0].Extra["video_view_count"] != "7" {
		t.Fatalf("unexpected metadata: %+v", mt.Videos)
	}
	if len(mt.Columns) != len(Columns) {
		t.Fatalf("columns = %v", mt.Columns)
	}
}
