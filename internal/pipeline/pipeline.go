// Package pipeline turns command-line level configuration into wired
// adapters and runs the use cases.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/vidalign/internal/domain/alignment"
	"github.com/forPelevin/vidalign/internal/logging"
	"github.com/forPelevin/vidalign/internal/ports"
	"github.com/forPelevin/vidalign/internal/ports/adapters/csvtable"
	"github.com/forPelevin/vidalign/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/vidalign/internal/ports/adapters/infojson"
	"github.com/forPelevin/vidalign/internal/ports/adapters/vtt"
	"github.com/forPelevin/vidalign/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/vidalign/internal/store"
	"github.com/forPelevin/vidalign/internal/types"
	"github.com/forPelevin/vidalign/internal/usecase"
)

const ReportFile = "report.json"

type AlignConfig struct {
	// InputDir holds scenes.csv, transcriptions.csv and metadata.csv. The
	// explicit paths below override single tables.
	InputDir     string
	ScenesPath   string
	SegmentsPath string
	MetadataPath string

	// VTTDir, when set, replaces the transcript table with one .vtt file per
	// video.
	VTTDir string
	// VTTRolling is the caption layout for videos whose metadata does not say
	// whether subtitles were provided.
	VTTRolling   bool
	VTTGenerated bool

	// InfoJSONDir, when set, replaces the metadata table with .info.json
	// files.
	InfoJSONDir string

	OutDir string
	// StorePath enables run persistence when non-empty.
	StorePath string

	Options alignment.Options
	Logger  *slog.Logger
}

func (c AlignConfig) Validate() error {
	if c.InputDir == "" && c.ScenesPath == "" {
		return errors.New("scenes table is not set (use an input dir or a scenes path)")
	}
	if c.InputDir == "" && c.MetadataPath == "" && c.InfoJSONDir == "" {
		return errors.New("metadata is not set (use an input dir, a metadata path or an info.json dir)")
	}
	if c.InputDir == "" && c.SegmentsPath == "" && c.VTTDir == "" {
		return errors.New("segments are not set (use an input dir, a transcripts path or a vtt dir)")
	}
	for _, dir := range []string{c.InputDir, c.VTTDir, c.InfoJSONDir} {
		if dir == "" {
			continue
		}
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
	}
	return nil
}

type AlignSummary struct {
	Run         types.RunSummary
	Report      types.Report
	RunOutDir   string
	DatasetPath string
	ReportPath  string
}

func Align(ctx context.Context, cfg AlignConfig) (AlignSummary, error) {
	if err := cfg.Validate(); err != nil {
		return AlignSummary{}, err
	}
	log := logging.NewComponentLogger(cfg.Logger, "pipeline")

	tables := &csvtable.Tables{}
	if cfg.InputDir != "" {
		tables = csvtable.InDir(cfg.InputDir)
	}
	if cfg.ScenesPath != "" {
		tables.ScenesPath = cfg.ScenesPath
	}
	if cfg.SegmentsPath != "" {
		tables.SegmentsPath = cfg.SegmentsPath
	}
	if cfg.MetadataPath != "" {
		tables.MetadataPath = cfg.MetadataPath
	}

	var metaSrc ports.MetadataSource = tables
	if cfg.InfoJSONDir != "" {
		metaSrc = &infojson.Source{Dir: cfg.InfoJSONDir}
	}
	// Metadata is read up front because it decides the caption layout of
	// each .vtt file.
	meta, err := metaSrc.Metadata(ctx)
	if err != nil {
		return AlignSummary{}, fmt.Errorf("load metadata: %w", err)
	}

	var segSrc ports.SegmentSource = tables
	if cfg.VTTDir != "" {
		layout := vtt.LayoutProvided
		if cfg.VTTRolling {
			layout = vtt.LayoutRolling
		}
		segSrc = &vtt.Source{
			Dir:           cfg.VTTDir,
			Rolling:       rollingCaptions(meta),
			DefaultLayout: layout,
			Generated:     cfg.VTTGenerated,
		}
	}

	outRoot := cfg.OutDir
	if outRoot == "" {
		outRoot = "out"
	}
	runOutDir := buildRunOutDir(outRoot, inputLabel(cfg), time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return AlignSummary{}, err
	}
	log.Info("output run dir", logging.Args(logging.String("dir", runOutDir))...)

	writer := &csvtable.Tables{OutputPath: filepath.Join(runOutDir, csvtable.DatasetFile)}
	deps := usecase.Deps{
		Scenes:   tables,
		Segments: segSrc,
		Metadata: staticMetadata{table: meta},
		Writer:   writer,
		Logger:   cfg.Logger,
	}
	if cfg.StorePath != "" {
		st, err := store.Open(ctx, cfg.StorePath)
		if err != nil {
			return AlignSummary{}, fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		deps.Store = st
	}

	res, err := usecase.New(deps).Align(ctx, usecase.AlignInput{
		Options: cfg.Options,
		Inputs:  describeInputs(cfg, tables),
	})
	if err != nil {
		return AlignSummary{}, err
	}

	reportPath := filepath.Join(runOutDir, ReportFile)
	b, err := json.MarshalIndent(reportDocument{Run: res.Run, Report: res.Report}, "", "  ")
	if err != nil {
		return AlignSummary{}, fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(reportPath, b, 0o644); err != nil {
		return AlignSummary{}, err
	}
	log.Info("report written",
		logging.Args(
			logging.String("path", reportPath),
			logging.Int("issues", len(res.Report.Issues)),
		)...)

	return AlignSummary{
		Run:         res.Run,
		Report:      res.Report,
		RunOutDir:   runOutDir,
		DatasetPath: writer.OutputPath,
		ReportPath:  reportPath,
	}, nil
}

type reportDocument struct {
	Run    types.RunSummary `json:"run"`
	Report types.Report     `json:"report"`
}

type staticMetadata struct{ table types.MetadataTable }

func (s staticMetadata) Metadata(context.Context) (types.MetadataTable, error) { return s.table, nil }

// rollingCaptions maps each video with a known subtitles_are_provided value
// to whether its captions are the auto-generated rolling kind.
func rollingCaptions(meta types.MetadataTable) map[string]bool {
	out := make(map[string]bool)
	for _, v := range meta.Videos {
		provided, err := strconv.ParseBool(strings.TrimSpace(v.Extra["subtitles_are_provided"]))
		if err != nil {
			continue
		}
		out[v.VideoID] = !provided
	}
	return out
}

func describeInputs(cfg AlignConfig, t *csvtable.Tables) map[string]string {
	in := map[string]string{"scenes": t.ScenesPath}
	if cfg.VTTDir != "" {
		in["segments"] = cfg.VTTDir
	} else {
		in["segments"] = t.SegmentsPath
	}
	if cfg.InfoJSONDir != "" {
		in["metadata"] = cfg.InfoJSONDir
	} else {
		in["metadata"] = t.MetadataPath
	}
	return in
}

func inputLabel(cfg AlignConfig) string {
	switch {
	case cfg.InputDir != "":
		return filepath.Base(filepath.Clean(cfg.InputDir))
	case cfg.ScenesPath != "":
		return filepath.Base(filepath.Dir(cfg.ScenesPath))
	default:
		return "dataset"
	}
}

type ExtractConfig struct {
	InputMP4 string
	// VideoID defaults to the input file name without its extension.
	VideoID string
	// TablesDir receives scenes.csv, transcriptions.csv and metadata.csv.
	TablesDir string
	// CacheDir is the base directory for local artifacts (audio, transcripts).
	// If empty, defaults to ".cache".
	CacheDir       string
	SkipTranscript bool
	Extra          map[string]string

	FFmpegPath     string
	FFprobePath    string
	SceneThreshold float64

	WhisperBin   string
	WhisperModel string

	Logger *slog.Logger
}

func (c ExtractConfig) Validate() error {
	if c.InputMP4 == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.InputMP4); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.TablesDir == "" {
		return errors.New("tables dir is empty")
	}
	if c.SceneThreshold <= 0 || c.SceneThreshold >= 1 {
		return fmt.Errorf("scene threshold must be in (0, 1), got %v", c.SceneThreshold)
	}
	if !c.SkipTranscript && c.WhisperModel == "" {
		return errors.New("whisper model path is required")
	}
	return nil
}

func Extract(ctx context.Context, cfg ExtractConfig) (usecase.ExtractResult, error) {
	if err := cfg.Validate(); err != nil {
		return usecase.ExtractResult{}, err
	}
	log := logging.NewComponentLogger(cfg.Logger, "pipeline")

	videoID := cfg.VideoID
	if videoID == "" {
		videoID = strings.TrimSuffix(filepath.Base(cfg.InputMP4), filepath.Ext(cfg.InputMP4))
	}

	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	cacheDir := filepath.Join(baseCache, "runs", hash(cfg.InputMP4))
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return usecase.ExtractResult{}, err
	}
	log.Info("cache", logging.Args(logging.String("dir", cacheDir))...)

	uc := usecase.New(usecase.Deps{
		Video:  ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, cfg.SceneThreshold),
		ASR:    whispercpp.New(cfg.WhisperBin, cfg.WhisperModel),
		Tables: csvtable.InDir(cfg.TablesDir),
		Logger: cfg.Logger,
	})
	return uc.Extract(ctx, usecase.ExtractInput{
		VideoID:        videoID,
		InputMP4:       cfg.InputMP4,
		CacheDir:       cacheDir,
		SkipTranscript: cfg.SkipTranscript,
		Extra:          cfg.Extra,
	})
}

func buildRunOutDir(outRoot, label string, now time.Time) string {
	name := normalizePathSegment(label)
	if name == "" {
		name = "dataset"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", label, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var (
	_ ports.SceneSource    = (*csvtable.Tables)(nil)
	_ ports.SegmentSource  = (*csvtable.Tables)(nil)
	_ ports.MetadataSource = (*csvtable.Tables)(nil)
	_ ports.DatasetWriter  = (*csvtable.Tables)(nil)
	_ ports.TableAppender  = (*csvtable.Tables)(nil)
	_ ports.SegmentSource  = (*vtt.Source)(nil)
	_ ports.MetadataSource = (*infojson.Source)(nil)
	_ ports.RunStore       = (*store.Store)(nil)
	_ ports.VideoTool      = (*ffmpeg.Adapter)(nil)
	_ ports.ASR            = (*whispercpp.Adapter)(nil)
)
