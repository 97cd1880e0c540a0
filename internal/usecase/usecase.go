package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/vidalign/internal/domain/alignment"
	"github.com/forPelevin/vidalign/internal/domain/timecode"
	"github.com/forPelevin/vidalign/internal/logging"
	"github.com/forPelevin/vidalign/internal/ports"
	"github.com/forPelevin/vidalign/internal/types"
)

// Deps are the collaborators of both use cases. Align needs the three
// sources; Writer and Store are optional. Extract needs Video, ASR and
// Tables.
type Deps struct {
	Scenes   ports.SceneSource
	Segments ports.SegmentSource
	Metadata ports.MetadataSource
	Writer   ports.DatasetWriter
	Store    ports.RunStore

	Video  ports.VideoTool
	ASR    ports.ASR
	Tables ports.TableAppender

	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	d.Logger = logging.NewComponentLogger(d.Logger, "usecase")
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return Usecase{d: d}
}

type AlignInput struct {
	Options alignment.Options
	// Inputs records where the tables came from; it is stored with the run.
	Inputs map[string]string
}

type AlignResult struct {
	Run     types.RunSummary
	Dataset types.Dataset
	Report  types.Report
}

func (u Usecase) Align(ctx context.Context, in AlignInput) (AlignResult, error) {
	if u.d.Scenes == nil || u.d.Segments == nil || u.d.Metadata == nil {
		return AlignResult{}, errors.New("align: scene, segment and metadata sources are required")
	}
	log := u.d.Logger
	started := u.d.Now()

	meta, err := u.d.Metadata.Metadata(ctx)
	if err != nil {
		return AlignResult{}, fmt.Errorf("load metadata: %w", err)
	}
	scenes, err := u.d.Scenes.Scenes(ctx)
	if err != nil {
		return AlignResult{}, fmt.Errorf("load scenes: %w", err)
	}
	segments, err := u.d.Segments.Segments(ctx)
	if err != nil {
		return AlignResult{}, fmt.Errorf("load segments: %w", err)
	}
	log.Info("inputs loaded",
		logging.Args(
			logging.Int("videos", len(meta.Videos)),
			logging.Int("scenes", len(scenes)),
			logging.Int("segments", len(segments)),
		)...)

	ds, report, err := alignment.Align(alignment.Input{
		Scenes:   scenes,
		Segments: segments,
		Metadata: meta,
	}, in.Options)
	if err != nil {
		return AlignResult{}, fmt.Errorf("align: %w", err)
	}

	run := types.RunSummary{
		ID:              u.d.NewID(),
		CreatedAt:       started.UTC(),
		Inputs:          in.Inputs,
		MetadataColumns: ds.MetadataColumns,
		Counts:          report.Counts,
		Issues:          len(report.Issues),
	}
	log = log.With(logging.String(logging.FieldRunID, run.ID))

	if u.d.Writer != nil {
		if err := u.d.Writer.WriteDataset(ctx, ds); err != nil {
			return AlignResult{}, fmt.Errorf("write dataset: %w", err)
		}
	}
	if u.d.Store != nil {
		if err := u.d.Store.SaveRun(ctx, run, ds, report); err != nil {
			return AlignResult{}, fmt.Errorf("save run: %w", err)
		}
	}

	for _, is := range report.Issues {
		log.Debug("alignment issue",
			logging.Args(
				logging.String("kind", string(is.Kind)),
				logging.String(logging.FieldVideoID, is.VideoID),
				logging.String("detail", is.Detail),
			)...)
	}
	byKind := report.CountByKind()
	c := report.Counts
	log.Info("alignment finished",
		logging.Args(
			logging.Int("rows", c.Rows),
			logging.Int("assigned", c.Assigned),
			logging.Int("orphans", c.Orphans),
			logging.Int("hallucinated_dropped", c.HallucinatedDropped),
			logging.Int("hallucinated_retained", c.HallucinatedRetained),
			logging.Int("orphan_reference_issues", byKind[types.IssueOrphanReference]),
			logging.Int("zero_denominator_issues", byKind[types.IssueZeroDenominator]),
			logging.Duration("elapsed", u.d.Now().Sub(started)),
		)...)

	return AlignResult{Run: run, Dataset: ds, Report: report}, nil
}

type ExtractInput struct {
	VideoID  string
	InputMP4 string
	CacheDir string
	// SkipTranscript leaves the transcript table alone, for videos whose
	// captions come from elsewhere.
	SkipTranscript bool
	// Extra is merged into the metadata row; probed values fill only keys
	// that are absent.
	Extra map[string]string
}

type ExtractResult struct {
	Info     types.MediaInfo
	Scenes   int
	Segments int
	Language string
}

// Extract probes one video, detects its scenes, transcribes its audio and
// appends the results to the input tables.
func (u Usecase) Extract(ctx context.Context, in ExtractInput) (ExtractResult, error) {
	if in.VideoID == "" {
		return ExtractResult{}, errors.New("extract: video id is empty")
	}
	if u.d.Video == nil || u.d.Tables == nil {
		return ExtractResult{}, errors.New("extract: video tool and tables are required")
	}
	log := u.d.Logger.With(logging.String(logging.FieldVideoID, in.VideoID))

	info, err := u.d.Video.Probe(ctx, in.InputMP4)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("probe: %w", err)
	}
	log.Info("probed",
		logging.Args(
			logging.Any("duration_seconds", info.DurationSeconds),
			logging.Any("fps", info.FPS),
		)...)

	scenes, err := u.d.Video.DetectScenes(ctx, in.InputMP4, info)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("detect scenes: %w", err)
	}
	sceneRows := make([]types.SceneRow, 0, len(scenes))
	for _, s := range scenes {
		sceneRows = append(sceneRows, types.SceneRow{
			VideoID:       in.VideoID,
			StartTimecode: timecode.Format(s.Start),
			EndTimecode:   timecode.Format(s.End),
			StartFrame:    s.StartFrame,
			EndFrame:      s.EndFrame,
		})
	}
	log.Info("scenes detected", logging.Args(logging.Int("scenes", len(sceneRows)))...)

	var (
		segRows  []types.SegmentRow
		language string
	)
	if !in.SkipTranscript {
		if u.d.ASR == nil {
			return ExtractResult{}, errors.New("extract: transcriber is required")
		}
		if err := os.MkdirAll(in.CacheDir, 0o755); err != nil {
			return ExtractResult{}, fmt.Errorf("create cache dir: %w", err)
		}
		wav := filepath.Join(in.CacheDir, "audio.wav")
		if err := u.d.Video.ExtractAudioMono16k(ctx, in.InputMP4, wav); err != nil {
			return ExtractResult{}, fmt.Errorf("extract audio: %w", err)
		}
		tr, err := u.d.ASR.Transcribe(ctx, wav, in.CacheDir)
		if err != nil {
			return ExtractResult{}, fmt.Errorf("transcribe: %w", err)
		}
		language = tr.Language
		for _, c := range tr.Cues {
			segRows = append(segRows, types.SegmentRow{
				VideoID:     in.VideoID,
				StartTime:   timecode.Format(c.Start),
				EndTime:     timecode.Format(c.End),
				Text:        c.Text,
				IsGenerated: true,
			})
		}
		log.Info("transcribed",
			logging.Args(
				logging.Int("segments", len(segRows)),
				logging.String("language", language),
			)...)
	}

	if err := u.d.Tables.AppendScenes(ctx, sceneRows); err != nil {
		return ExtractResult{}, fmt.Errorf("append scenes: %w", err)
	}
	if len(segRows) > 0 {
		if err := u.d.Tables.AppendSegments(ctx, segRows); err != nil {
			return ExtractResult{}, fmt.Errorf("append segments: %w", err)
		}
	}
	if err := u.d.Tables.AppendMetadata(ctx, metadataRow(in, info)); err != nil {
		return ExtractResult{}, fmt.Errorf("append metadata: %w", err)
	}

	return ExtractResult{
		Info:     info,
		Scenes:   len(sceneRows),
		Segments: len(segRows),
		Language: language,
	}, nil
}

func metadataRow(in ExtractInput, info types.MediaInfo) types.VideoMetadata {
	extra := make(map[string]string, len(in.Extra)+4)
	for k, v := range in.Extra {
		extra[k] = v
	}
	probed := map[string]int{
		"width":               info.Width,
		"height":              info.Height,
		"audio_channels":      info.AudioChannels,
		"audio_sampling_rate": info.AudioSampleRate,
	}
	for k, v := range probed {
		if _, ok := extra[k]; ok || v <= 0 {
			continue
		}
		extra[k] = strconv.Itoa(v)
	}
	return types.VideoMetadata{
		VideoID:         in.VideoID,
		DurationSeconds: info.DurationSeconds,
		FPS:             info.FPS,
		Extra:           extra,
	}
}
