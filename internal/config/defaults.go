package config

import "github.com/forPelevin/vidalign/internal/ports/adapters/ffmpeg"

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "auto"
	defaultAPIBind   = "127.0.0.1:7480"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Paths: Paths{
			OutDir:    "out",
			CacheDir:  "~/.cache/vidalign",
			StorePath: "~/.local/share/vidalign/vidalign.db",
		},
		Alignment: Alignment{
			RetainProvidedHallucinations: true,
		},
		Tools: Tools{
			FFmpeg:         "ffmpeg",
			FFprobe:        "ffprobe",
			WhisperBin:     "whisper-cli",
			WhisperModel:   "~/.cache/vidalign/models/ggml-base.bin",
			SceneThreshold: ffmpeg.DefaultSceneThreshold,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		API: API{
			Bind: defaultAPIBind,
		},
	}
}
