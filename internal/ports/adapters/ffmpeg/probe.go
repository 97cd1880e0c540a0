package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/vidalign/internal/types"
)

type probeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		SampleRate   string `json:"sample_rate"`
		Channels     int    `json:"channels"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (a *Adapter) Probe(ctx context.Context, inMP4 string) (types.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", inMP4,
	)
	b, err := cmd.Output()
	if err != nil {
		return types.MediaInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return ParseProbe(b)
}

// ParseProbe reads ffprobe JSON output. The container duration wins over the
// video stream duration; the frame rate prefers avg_frame_rate.
func ParseProbe(b []byte) (types.MediaInfo, error) {
	var res probeResult
	if err := json.Unmarshal(b, &res); err != nil {
		return types.MediaInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	var info types.MediaInfo
	info.DurationSeconds = parseFloat(res.Format.Duration)
	videoSeen, audioSeen := false, false
	for _, s := range res.Streams {
		switch strings.ToLower(s.CodecType) {
		case "video":
			if videoSeen {
				continue
			}
			videoSeen = true
			info.Width, info.Height = s.Width, s.Height
			info.FPS = parseRate(s.AvgFrameRate)
			if info.FPS == 0 {
				info.FPS = parseRate(s.RFrameRate)
			}
			if info.DurationSeconds == 0 {
				info.DurationSeconds = parseFloat(s.Duration)
			}
		case "audio":
			if audioSeen {
				continue
			}
			audioSeen = true
			info.AudioChannels = s.Channels
			info.AudioSampleRate = int(parseFloat(s.SampleRate))
		}
	}
	if !videoSeen {
		return types.MediaInfo{}, fmt.Errorf("ffprobe: no video stream")
	}
	return info, nil
}

// parseRate reads "num/den" or a plain number; anything unusable is 0.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return parseFloat(num)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
