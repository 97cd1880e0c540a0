package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	return nil
}

// applyEnv lets the environment (including a loaded .env file) override the
// file values.
func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		"VIDALIGN_LOG_LEVEL":  &c.Logging.Level,
		"VIDALIGN_LOG_FORMAT": &c.Logging.Format,
		"VIDALIGN_STORE_PATH": &c.Paths.StorePath,
		"VIDALIGN_API_BIND":   &c.API.Bind,
	} {
		if v, ok := os.LookupEnv(env); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutDir, err = expandPath(c.Paths.OutDir); err != nil {
		return fmt.Errorf("paths.out_dir: %w", err)
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.StorePath, err = expandPath(c.Paths.StorePath); err != nil {
		return fmt.Errorf("paths.store_path: %w", err)
	}
	// Tool entries without a separator are looked up on PATH.
	if strings.ContainsAny(c.Tools.WhisperModel, `/\~`) {
		if c.Tools.WhisperModel, err = expandPath(c.Tools.WhisperModel); err != nil {
			return fmt.Errorf("tools.whisper_model: %w", err)
		}
	}
	for _, p := range []*string{&c.Tools.FFmpeg, &c.Tools.FFprobe, &c.Tools.WhisperBin} {
		*p = strings.TrimSpace(*p)
		if strings.ContainsAny(*p, `/\`) || strings.HasPrefix(*p, "~") {
			if *p, err = expandPath(*p); err != nil {
				return fmt.Errorf("tools: %w", err)
			}
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
