package ffmpeg

import (
	"testing"

	"github.com/forPelevin/vidalign/internal/types"
)

func TestParseProbe(t *testing.T) {
	raw := []byte(`{
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30/1", "avg_frame_rate": "30000/1001", "duration": "99.0"},
			{"codec_type": "audio", "sample_rate": "48000", "channels": 2}
		],
		"format": {"duration": "120.500000"}
	}`)
	info, err := ParseProbe(raw)
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if info.DurationSeconds != 120.5 || info.Width != 1920 || info.AudioChannels != 2 || info.AudioSampleRate != 48000 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.FPS < 29.96 || info.FPS > 29.98 {
		t.Fatalf("fps = %v, want ~29.97", info.FPS)
	}
}

func TestParseProbe_NoVideo(t *testing.T) {
	if _, err := ParseProbe([]byte(`{"streams": [{"codec_type": "audio"}], "format": {}}`)); err == nil {
		t.Fatalf("expected error without a video stream")
	}
}

func TestParseCuts(t *testing.T) {
	log := `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':
[Parsed_showinfo_1 @ 0x55] n:   0 pts:  61440 pts_time:4.8     duration:512 pos: 1 fmt:yuv420p
[Parsed_showinfo_1 @ 0x55] n:   1 pts: 122880 pts_time:9.6 duration:512
[Parsed_showinfo_1 @ 0x55] config in time_base: 1/12800, frame_rate: 25/1
frame=  2 fps=0.0 q=-0.0 Lsize=N/A time=00:00:10.00`
	cuts := ParseCuts(log)
	if len(cuts) != 2 || cuts[0] != 4.8 || cuts[1] != 9.6 {
		t.Fatalf("cuts = %v", cuts)
	}
}

func TestScenesFromCuts(t *testing.T) {
	info := types.MediaInfo{DurationSeconds: 10, FPS: 25}
	scenes := ScenesFromCuts([]float64{9.6, 4.8, 4.8, 0, 12}, info)
	if len(scenes) != 3 {
		t.Fatalf("got %d scenes, want 3: %+v", len(scenes), scenes)
	}
	if scenes[0].Start != 0 || scenes[0].End != 4_800_000 || scenes[0].EndFrame != 120 {
		t.Fatalf("scene 0 = %+v", scenes[0])
	}
	if scenes[2].End != 10_000_000 || scenes[2].EndFrame != 250 {
		t.Fatalf("last scene = %+v", scenes[2])
	}
	for i := 1; i < len(scenes); i++ {
		if scenes[i].Start != scenes[i-1].End {
			t.Fatalf("gap between scenes %d and %d", i-1, i)
		}
	}
}

func TestScenesFromCuts_NoCutsIsWholeVideo(t *testing.T) {
	scenes := ScenesFromCuts(nil, types.MediaInfo{DurationSeconds: 30, FPS: 30})
	if len(scenes) != 1 || scenes[0].End != 30_000_000 || scenes[0].EndFrame != 900 {
		t.Fatalf("unexpected scenes: %+v", scenes)
	}
}
