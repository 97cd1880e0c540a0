package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/forPelevin/vidalign/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"VIDALIGN_LOG_LEVEL", "VIDALIGN_LOG_FORMAT", "VIDALIGN_STORE_PATH", "VIDALIGN_API_BIND"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected no config file in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "vidalign", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.StorePath != filepath.Join(home, ".local", "share", "vidalign", "vidalign.db") {
		t.Fatalf("unexpected store path: %q", cfg.Paths.StorePath)
	}
	if !filepath.IsAbs(cfg.Paths.OutDir) {
		t.Fatalf("out dir not absolute: %q", cfg.Paths.OutDir)
	}
	if cfg.Tools.FFmpeg != "ffmpeg" {
		t.Fatalf("bare tool name should stay on PATH lookup, got %q", cfg.Tools.FFmpeg)
	}
	opts := cfg.AlignOptions()
	if !opts.Policy.RetainProvidedHallucinations || opts.Policy.RetainGeneratedHallucinations || opts.WholeVideoFallback {
		t.Fatalf("unexpected default align options: %+v", opts)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VIDALIGN_LOG_LEVEL", "DEBUG")
	t.Setenv("VIDALIGN_API_BIND", "0.0.0.0:9000")

	path := filepath.Join(t.TempDir(), "vidalign.toml")
	body := `
[alignment]
retain_generated_hallucinations = true
whole_video_fallback = true

[tools]
scene_threshold = 0.45

[logging]
level = "warn"
format = "JSON"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.API.Bind != "0.0.0.0:9000" {
		t.Fatalf("unexpected bind: %q", cfg.API.Bind)
	}
	opts := cfg.AlignOptions()
	if !opts.Policy.RetainGeneratedHallucinations || !opts.WholeVideoFallback || !opts.Policy.RetainProvidedHallucinations {
		t.Fatalf("unexpected align options: %+v", opts)
	}
	if cfg.Tools.SceneThreshold != 0.45 {
		t.Fatalf("unexpected threshold: %v", cfg.Tools.SceneThreshold)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	tests := map[string]string{
		"threshold": "[tools]\nscene_threshold = 1.5\n",
		"format":    "[logging]\nformat = \"xml\"\n",
		"level":     "[logging]\nlevel = \"loud\"\n",
		"bind":      "[api]\nbind = \"nope\"\n",
		"unknown":   "[paths]\nmystery = 1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.toml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("sample does not parse: %v", err)
	}
	def := config.Default()
	if decoded.Alignment != def.Alignment || decoded.Tools != def.Tools || decoded.Logging != def.Logging || decoded.API != def.API {
		t.Fatalf("sample drifted from defaults:\n%+v\n%+v", decoded, def)
	}
	if !strings.Contains(string(raw), "[paths]") {
		t.Fatal("sample missing [paths]")
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample does not load: %v", err)
	}
}
