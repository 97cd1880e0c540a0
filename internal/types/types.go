package types

import "time"

// Instant is a position on a video timeline in integer microseconds.
type Instant int64

func (i Instant) Seconds() float64 { return float64(i) / 1e6 }

func (i Instant) Duration() time.Duration { return time.Duration(i) * time.Microsecond }

// SourceKind tells platform-supplied subtitles apart from transcripts
// produced by a speech-to-text engine.
type SourceKind string

const (
	SourceProvided  SourceKind = "provided"
	SourceGenerated SourceKind = "generated"
)

// SceneRow is one scene as a shot-boundary detector reports it.
type SceneRow struct {
	VideoID       string
	StartTimecode string
	EndTimecode   string
	StartFrame    int64
	EndFrame      int64
}

// SegmentRow is one subtitle or transcript cue as an extractor reports it.
type SegmentRow struct {
	VideoID     string
	StartTime   string
	EndTime     string
	Text        string
	IsGenerated bool
}

type Scene struct {
	VideoID    string
	Start      Instant
	End        Instant
	StartFrame int64
	EndFrame   int64
	Ordinal    int
}

type Segment struct {
	VideoID string
	Start   Instant
	End     Instant
	Mid     Instant
	Text    string
	Source  SourceKind
}

type AssignStatus int

const (
	StatusAssigned AssignStatus = iota
	// StatusHallucinated marks a segment whose midpoint lies past the end of
	// the last scene of its video.
	StatusHallucinated
	// StatusOrphan marks a segment of a video with no scenes at all.
	StatusOrphan
)

func (s AssignStatus) String() string {
	switch s {
	case StatusAssigned:
		return "assigned"
	case StatusHallucinated:
		return "hallucinated"
	case StatusOrphan:
		return "orphan"
	default:
		return "unknown"
	}
}

// AssignedSegment is a segment labelled with the scene it belongs to.
// Ordinal is meaningful only when Status is StatusAssigned.
type AssignedSegment struct {
	Segment
	Status  AssignStatus
	Ordinal int
}

type VideoMetadata struct {
	VideoID         string  `json:"video_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	FPS             float64 `json:"fps"`
	// DurationMissing and FPSMissing mark values absent from the source, so
	// tables written back keep an empty cell instead of 0.
	DurationMissing bool `json:"duration_missing,omitempty"`
	FPSMissing      bool `json:"fps_missing,omitempty"`
	// Extra holds caller-supplied descriptive columns keyed by column name.
	Extra map[string]string `json:"extra,omitempty"`
}

// MetadataTable is the per-video metadata input. Columns lists the extra
// columns in caller order so output tables keep them stable.
type MetadataTable struct {
	Columns []string
	Videos  []VideoMetadata
}

// AlignedRow is one row of the final dataset. Nil pointers are missing values.
type AlignedRow struct {
	VideoID string `json:"video_id"`

	Metadata *VideoMetadata `json:"metadata,omitempty"`

	SceneOrdinal *int     `json:"scene_ordinal"`
	SceneStart   *Instant `json:"scene_start_us"`
	SceneEnd     *Instant `json:"scene_end_us"`
	StartFrame   *int64   `json:"start_frame"`
	EndFrame     *int64   `json:"end_frame"`

	SegmentStart *Instant    `json:"segment_start_us"`
	SegmentEnd   *Instant    `json:"segment_end_us"`
	Text         string      `json:"text"`
	Source       *SourceKind `json:"source,omitempty"`
	Hallucinated bool        `json:"hallucinated,omitempty"`

	AverageSpeakingRateWPM   *float64 `json:"average_speaking_rate_wpm"`
	AverageShotLengthSeconds *float64 `json:"average_shot_length_seconds"`
}

// HasSegment reports whether the row carries a transcript segment rather
// than being a scene or metadata placeholder.
func (r AlignedRow) HasSegment() bool { return r.Source != nil }

type Dataset struct {
	MetadataColumns []string
	Rows            []AlignedRow
}
