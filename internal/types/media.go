package types

// MediaInfo is what a prober reports about a local video file.
type MediaInfo struct {
	DurationSeconds float64
	FPS             float64
	Width           int
	Height          int
	AudioChannels   int
	AudioSampleRate int
}

// TranscriptCue is one timed piece of speech-to-text output.
type TranscriptCue struct {
	Start Instant
	End   Instant
	Text  string
}

type Transcript struct {
	Language string
	Cues     []TranscriptCue
}
