package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/forPelevin/vidalign/internal/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind: %w", err)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutDir) == "" {
		return errors.New("paths.out_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StorePath) == "" {
		return errors.New("paths.store_path must be set")
	}
	return nil
}

func (c *Config) validateTools() error {
	if t := c.Tools.SceneThreshold; t <= 0 || t >= 1 {
		return fmt.Errorf("tools.scene_threshold must be in (0, 1), got %v", t)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
