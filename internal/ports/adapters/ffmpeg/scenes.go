package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/forPelevin/vidalign/internal/domain/timecode"
	"github.com/forPelevin/vidalign/internal/types"
)

// DetectScenes runs ffmpeg's scene-change filter over the video and turns the
// reported cut times into consecutive scenes covering [0, duration]. A video
// without cuts yields one scene. VideoID and Ordinal are left for the caller.
func (a *Adapter) DetectScenes(ctx context.Context, inMP4 string, info types.MediaInfo) ([]types.Scene, error) {
	filter := fmt.Sprintf("select='gt(scene,%s)',showinfo", strconv.FormatFloat(a.sceneThreshold, 'f', -1, 64))
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-hide_banner",
		"-nostats",
		"-i", inMP4,
		"-an",
		"-vf", filter,
		"-f", "null",
		"-",
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg scene detect: %w\n%s", err, tail(string(b), 2000))
	}
	return ScenesFromCuts(ParseCuts(string(b)), info), nil
}

// ParseCuts extracts pts_time values from showinfo log lines.
func ParseCuts(log string) []float64 {
	var cuts []float64
	sc := bufio.NewScanner(strings.NewReader(log))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "Parsed_showinfo") {
			continue
		}
		_, rest, ok := strings.Cut(line, "pts_time:")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		cuts = append(cuts, v)
	}
	return cuts
}

// ScenesFromCuts converts cut times into scenes. Cuts outside (0, duration)
// and duplicates are ignored.
func ScenesFromCuts(cuts []float64, info types.MediaInfo) []types.Scene {
	sorted := append([]float64(nil), cuts...)
	sort.Float64s(sorted)

	bounds := []float64{0}
	for _, c := range sorted {
		if c <= bounds[len(bounds)-1] || (info.DurationSeconds > 0 && c >= info.DurationSeconds) {
			continue
		}
		bounds = append(bounds, c)
	}
	end := info.DurationSeconds
	if end <= bounds[len(bounds)-1] {
		end = bounds[len(bounds)-1]
	}
	bounds = append(bounds, end)

	scenes := make([]types.Scene, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		scenes = append(scenes, types.Scene{
			Start:      timecode.FromSeconds(bounds[i]),
			End:        timecode.FromSeconds(bounds[i+1]),
			StartFrame: frameAt(bounds[i], info.FPS),
			EndFrame:   frameAt(bounds[i+1], info.FPS),
		})
	}
	return scenes
}

func frameAt(sec, fps float64) int64 {
	return int64(math.Floor(sec*fps + 1e-9))
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
