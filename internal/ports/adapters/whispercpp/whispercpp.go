package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/vidalign/internal/types"
)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	outPrefix := filepath.Join(cacheDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return ParseJSON(jb)
}

type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// ParseJSON reads whisper.cpp -oj output. Offsets are milliseconds; cues with
// only whitespace are dropped.
func ParseJSON(b []byte) (types.Transcript, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("parse whisper.cpp json: %w", err)
	}
	tr := types.Transcript{Language: out.Result.Language}
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		tr.Cues = append(tr.Cues, types.TranscriptCue{
			Start: types.Instant(seg.Offsets.From * 1000),
			End:   types.Instant(seg.Offsets.To * 1000),
			Text:  text,
		})
	}
	return tr, nil
}
