// Package csvtable reads and writes the comma-separated tables exchanged with
// the extraction tooling: scenes.csv, transcriptions.csv, metadata.csv and the
// assembled full_data.csv.
package csvtable

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/forPelevin/vidalign/internal/domain/timecode"
	"github.com/forPelevin/vidalign/internal/types"
)

const (
	ScenesFile      = "scenes.csv"
	TranscriptsFile = "transcriptions.csv"
	MetadataFile    = "metadata.csv"
	DatasetFile     = "full_data.csv"
)

var (
	sceneHeader   = []string{"id", "start_time", "end_time", "start_frame_num", "end_frame_num"}
	segmentHeader = []string{"id", "start_time", "end_time", "text", "whisper_generated"}
	metaFixed     = []string{"video_id", "duration_seconds", "fps"}
	outputColumns = []string{
		"scene_index",
		"start_time_scene",
		"end_time_scene",
		"start_frame_num",
		"end_frame_num",
		"start_time_transcript",
		"end_time_transcript",
		"text",
		"whisper_generated",
		"hallucinated",
		"average_speaking_rate_wpm",
		"average_shot_length_seconds",
	}
)

// Tables is a set of table paths. Empty paths are skipped on read and
// rejected on write.
type Tables struct {
	ScenesPath   string
	SegmentsPath string
	MetadataPath string
	OutputPath   string

	// DefaultGenerated is used for segment rows whose whisper_generated
	// column is absent or empty.
	DefaultGenerated bool
}

// InDir lays the standard file names out under dir.
func InDir(dir string) *Tables {
	return &Tables{
		ScenesPath:   filepath.Join(dir, ScenesFile),
		SegmentsPath: filepath.Join(dir, TranscriptsFile),
		MetadataPath: filepath.Join(dir, MetadataFile),
		OutputPath:   filepath.Join(dir, DatasetFile),
	}
}

func (t *Tables) Scenes(ctx context.Context) ([]types.SceneRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.ScenesPath == "" {
		return nil, nil
	}
	tbl, err := readTable(t.ScenesPath)
	if err != nil {
		return nil, err
	}
	if err := tbl.require("id", "start_time", "end_time"); err != nil {
		return nil, err
	}

	out := make([]types.SceneRow, 0, len(tbl.records))
	for i := range tbl.records {
		sf, err := tbl.int(i, "start_frame_num")
		if err != nil {
			return nil, err
		}
		ef, err := tbl.int(i, "end_frame_num")
		if err != nil {
			return nil, err
		}
		out = append(out, types.SceneRow{
			VideoID:       tbl.get(i, "id"),
			StartTimecode: tbl.get(i, "start_time"),
			EndTimecode:   tbl.get(i, "end_time"),
			StartFrame:    sf,
			EndFrame:      ef,
		})
	}
	return out, nil
}

func (t *Tables) Segments(ctx context.Context) ([]types.SegmentRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.SegmentsPath == "" {
		return nil, nil
	}
	tbl, err := readTable(t.SegmentsPath)
	if err != nil {
		return nil, err
	}
	if err := tbl.require("id", "start_time", "end_time", "text"); err != nil {
		return nil, err
	}

	out := make([]types.SegmentRow, 0, len(tbl.records))
	for i := range tbl.records {
		gen := t.DefaultGenerated
		if v := tbl.get(i, "whisper_generated"); v != "" {
			b, err := parseBool(v)
			if err != nil {
				return nil, tbl.cellErr(i, "whisper_generated", err)
			}
			gen = b
		}
		out = append(out, types.SegmentRow{
			VideoID:     tbl.get(i, "id"),
			StartTime:   tbl.get(i, "start_time"),
			EndTime:     tbl.get(i, "end_time"),
			Text:        tbl.get(i, "text"),
			IsGenerated: gen,
		})
	}
	return out, nil
}

func (t *Tables) Metadata(ctx context.Context) (types.MetadataTable, error) {
	if err := ctx.Err(); err != nil {
		return types.MetadataTable{}, err
	}
	if t.MetadataPath == "" {
		return types.MetadataTable{}, nil
	}
	tbl, err := readTable(t.MetadataPath)
	if err != nil {
		return types.MetadataTable{}, err
	}
	if err := tbl.require("video_id", "duration_seconds"); err != nil {
		return types.MetadataTable{}, err
	}

	if err := checkMetaColumns(tbl); err != nil {
		return types.MetadataTable{}, err
	}

	var mt types.MetadataTable
	for _, h := range tbl.header {
		if !isFixedMeta(h) {
			mt.Columns = append(mt.Columns, h)
		}
	}
	for i := range tbl.records {
		dur, err := tbl.float(i, "duration_seconds")
		if err != nil {
			return types.MetadataTable{}, err
		}
		fps, err := tbl.float(i, "fps")
		if err != nil {
			return types.MetadataTable{}, err
		}
		v := types.VideoMetadata{
			VideoID:         tbl.get(i, "video_id"),
			DurationSeconds: dur,
			FPS:             fps,
			DurationMissing: tbl.blank(i, "duration_seconds"),
			FPSMissing:      tbl.blank(i, "fps"),
			Extra:           make(map[string]string, len(mt.Columns)),
		}
		for _, c := range mt.Columns {
			v.Extra[c] = tbl.get(i, c)
		}
		mt.Videos = append(mt.Videos, v)
	}
	return mt, nil
}

// DatasetHeader returns the full_data.csv columns for the given metadata
// columns.
func DatasetHeader(metaColumns []string) []string {
	h := append([]string(nil), metaFixed...)
	h = append(h, metaColumns...)
	return append(h, outputColumns...)
}

// DatasetRecord renders one dataset row in DatasetHeader order. Missing
// values are empty cells.
func DatasetRecord(r types.AlignedRow, metaColumns []string) []string {
	rec := make([]string, 0, len(metaFixed)+len(metaColumns)+len(outputColumns))
	rec = append(rec, r.VideoID)
	if m := r.Metadata; m != nil {
		rec = append(rec, formatMeasure(m.DurationSeconds, m.DurationMissing), formatMeasure(m.FPS, m.FPSMissing))
		for _, c := range metaColumns {
			rec = append(rec, m.Extra[c])
		}
	} else {
		for range 2 + len(metaColumns) {
			rec = append(rec, "")
		}
	}

	gen := ""
	if r.Source != nil {
		gen = strconv.FormatBool(*r.Source == types.SourceGenerated)
	}
	ordinal := ""
	if r.SceneOrdinal != nil {
		ordinal = strconv.Itoa(*r.SceneOrdinal)
	}
	return append(rec,
		ordinal,
		formatInstant(r.SceneStart),
		formatInstant(r.SceneEnd),
		formatInt(r.StartFrame),
		formatInt(r.EndFrame),
		formatInstant(r.SegmentStart),
		formatInstant(r.SegmentEnd),
		r.Text,
		gen,
		strconv.FormatBool(r.Hallucinated),
		formatFloat(r.AverageSpeakingRateWPM),
		formatFloat(r.AverageShotLengthSeconds),
	)
}

func (t *Tables) WriteDataset(ctx context.Context, ds types.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.OutputPath == "" {
		return errors.New("csvtable: output path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(t.OutputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(t.OutputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(DatasetHeader(ds.MetadataColumns)); err != nil {
		return err
	}
	for _, r := range ds.Rows {
		if err := w.Write(DatasetRecord(r, ds.MetadataColumns)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", t.OutputPath, err)
	}
	return f.Close()
}

func (t *Tables) AppendScenes(ctx context.Context, rows []types.SceneRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, []string{
			r.VideoID,
			r.StartTimecode,
			r.EndTimecode,
			strconv.FormatInt(r.StartFrame, 10),
			strconv.FormatInt(r.EndFrame, 10),
		})
	}
	return appendRecords(t.ScenesPath, sceneHeader, recs)
}

func (t *Tables) AppendSegments(ctx context.Context, rows []types.SegmentRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, []string{r.VideoID, r.StartTime, r.EndTime, r.Text, pyBool(r.IsGenerated)})
	}
	return appendRecords(t.SegmentsPath, segmentHeader, recs)
}

// AppendMetadata adds one video to the metadata table. An existing file keeps
// its column order; extra values without a matching column are not written.
func (t *Tables) AppendMetadata(ctx context.Context, v types.VideoMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	header, err := readHeader(t.MetadataPath)
	if err != nil {
		return err
	}
	if header == nil {
		keys := make([]string, 0, len(v.Extra))
		for k := range v.Extra {
			if !isFixedMeta(k) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		header = append(append([]string(nil), metaFixed...), keys...)
	}

	rec := make([]string, len(header))
	for i, h := range header {
		switch h {
		case "video_id":
			rec[i] = v.VideoID
		case "duration_seconds":
			rec[i] = formatMeasure(v.DurationSeconds, v.DurationMissing)
		case "fps":
			rec[i] = formatMeasure(v.FPS, v.FPSMissing)
		default:
			rec[i] = v.Extra[h]
		}
	}
	return appendRecords(t.MetadataPath, header, [][]string{rec})
}

type table struct {
	path    string
	header  []string
	index   map[string]int
	records [][]string
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty table", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	tbl := &table{path: path, header: header, index: make(map[string]int, len(header)), records: records}
	for i, h := range header {
		h = strings.TrimSpace(h)
		tbl.header[i] = h
		if _, dup := tbl.index[h]; !dup {
			tbl.index[h] = i
		}
	}
	return tbl, nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	return h, nil
}

// checkMetaColumns rejects metadata headers that would make full_data.csv
// ambiguous: a repeated column, or one named like a dataset output column.
func checkMetaColumns(t *table) error {
	seen := make(map[string]bool, len(t.header))
	for _, h := range t.header {
		if seen[h] {
			return fmt.Errorf("%s: duplicate column %q", t.path, h)
		}
		seen[h] = true
		for _, c := range outputColumns {
			if h == c {
				return fmt.Errorf("%s: column %q is reserved for the dataset", t.path, h)
			}
		}
	}
	return nil
}

func (t *table) blank(row int, col string) bool {
	return strings.TrimSpace(t.get(row, col)) == ""
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			return fmt.Errorf("%s: missing column %q", t.path, c)
		}
	}
	return nil
}

func (t *table) get(row int, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(t.records[row]) {
		return ""
	}
	return t.records[row][i]
}

// int reads whole numbers, accepting the "12.0" form pandas writes for
// columns that once held a missing value.
func (t *table) int(row int, col string) (int64, error) {
	v := strings.TrimSpace(t.get(row, col))
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, t.cellErr(row, col, err)
	}
	return int64(f), nil
}

func (t *table) float(row int, col string) (float64, error) {
	v := strings.TrimSpace(t.get(row, col))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, t.cellErr(row, col, err)
	}
	return f, nil
}

// cellErr reports a bad cell with a 1-based data row number.
func (t *table) cellErr(row int, col string, err error) error {
	return fmt.Errorf("%s: row %d column %q: %w", t.path, row+1, col, err)
}

func appendRecords(path string, header []string, recs [][]string) error {
	if path == "" {
		return errors.New("csvtable: table path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fresh := false
	if st, err := os.Stat(path); errors.Is(err, os.ErrNotExist) || (err == nil && st.Size() == 0) {
		fresh = true
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.WriteAll(recs); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Close()
}

func isFixedMeta(col string) bool {
	for _, c := range metaFixed {
		if c == col {
			return true
		}
	}
	return false
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", v)
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatInstant(i *types.Instant) string {
	if i == nil {
		return ""
	}
	return timecode.Format(*i)
}

func formatInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func formatMeasure(f float64, missing bool) string {
	if missing {
		return ""
	}
	return formatFloat(&f)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
