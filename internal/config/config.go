// Package config loads vidalign settings from TOML with environment
// overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/forPelevin/vidalign/internal/domain/alignment"
)

//go:embed sample_config.toml
var sampleConfig string

type Paths struct {
	OutDir    string `toml:"out_dir"`
	CacheDir  string `toml:"cache_dir"`
	StorePath string `toml:"store_path"`
}

type Alignment struct {
	RetainProvidedHallucinations  bool `toml:"retain_provided_hallucinations"`
	RetainGeneratedHallucinations bool `toml:"retain_generated_hallucinations"`
	WholeVideoFallback            bool `toml:"whole_video_fallback"`
}

// Tools locates the external programs used by extract.
type Tools struct {
	FFmpeg         string  `toml:"ffmpeg"`
	FFprobe        string  `toml:"ffprobe"`
	WhisperBin     string  `toml:"whisper_bin"`
	WhisperModel   string  `toml:"whisper_model"`
	SceneThreshold float64 `toml:"scene_threshold"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type API struct {
	Bind string `toml:"bind"`
}

type Config struct {
	Paths     Paths     `toml:"paths"`
	Alignment Alignment `toml:"alignment"`
	Tools     Tools     `toml:"tools"`
	Logging   Logging   `toml:"logging"`
	API       API       `toml:"api"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidalign/config.toml")
}

// Load locates, parses, normalizes and validates a configuration file. A
// missing file is not an error; defaults and environment overrides apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("vidalign.toml")
	if err != nil {
		return "", false, err
	}
	for _, p := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true, nil
		}
	}
	return defaultPath, false, nil
}

// AlignOptions maps the [alignment] section onto the aligner options.
func (c *Config) AlignOptions() alignment.Options {
	return alignment.Options{
		Policy: alignment.Policy{
			RetainProvidedHallucinations:  c.Alignment.RetainProvidedHallucinations,
			RetainGeneratedHallucinations: c.Alignment.RetainGeneratedHallucinations,
		},
		WholeVideoFallback: c.Alignment.WholeVideoFallback,
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath applies the config path rules (tilde, absolute) to a flag value.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
