package ports

import (
	"context"

	"github.com/forPelevin/vidalign/internal/types"
)

type SceneSource interface {
	Scenes(ctx context.Context) ([]types.SceneRow, error)
}

type SegmentSource interface {
	Segments(ctx context.Context) ([]types.SegmentRow, error)
}

type MetadataSource interface {
	Metadata(ctx context.Context) (types.MetadataTable, error)
}

// DatasetWriter persists the assembled dataset in a tabular format.
type DatasetWriter interface {
	WriteDataset(ctx context.Context, ds types.Dataset) error
}

type RunStore interface {
	SaveRun(ctx context.Context, run types.RunSummary, ds types.Dataset, report types.Report) error
}

// VideoTool wraps the external media toolchain used by extraction.
type VideoTool interface {
	Probe(ctx context.Context, inMP4 string) (types.MediaInfo, error)
	DetectScenes(ctx context.Context, inMP4 string, info types.MediaInfo) ([]types.Scene, error)
	ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}

// TableAppender adds freshly extracted rows to the input tables of a later
// alignment run.
type TableAppender interface {
	AppendScenes(ctx context.Context, rows []types.SceneRow) error
	AppendSegments(ctx context.Context, rows []types.SegmentRow) error
	AppendMetadata(ctx context.Context, v types.VideoMetadata) error
}
