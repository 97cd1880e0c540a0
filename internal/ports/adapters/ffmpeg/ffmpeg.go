package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
)

// DefaultSceneThreshold is the scene-change score above which a frame starts
// a new scene.
const DefaultSceneThreshold = 0.3

type Adapter struct {
	ffmpeg  string
	ffprobe string

	sceneThreshold float64
}

func New(ffmpegPath, ffprobePath string, sceneThreshold float64) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if sceneThreshold <= 0 || sceneThreshold >= 1 {
		sceneThreshold = DefaultSceneThreshold
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, sceneThreshold: sceneThreshold}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inMP4,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}
