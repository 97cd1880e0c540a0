// Package cli implements the vidalign command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/vidalign/internal/config"
	"github.com/forPelevin/vidalign/internal/logging"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCommand()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFlag, storeFlag, logLevelFlag string
	ctx := &commandContext{
		configFlag:   &configFlag,
		storeFlag:    &storeFlag,
		logLevelFlag: &logLevelFlag,
	}

	root := &cobra.Command{
		Use:           "vidalign",
		Short:         "Align video scenes, transcripts and metadata into one dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	root.PersistentFlags().StringVar(&storeFlag, "store", "", "Run database path (overrides paths.store_path)")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(newAlignCommand(ctx))
	root.AddCommand(newExtractCommand(ctx))
	root.AddCommand(newRunsCommand(ctx))
	root.AddCommand(newShowCommand(ctx))
	root.AddCommand(newServeCommand(ctx))
	root.AddCommand(newConfigCommand())

	return root
}

type commandContext struct {
	configFlag   *string
	storeFlag    *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if store := strings.TrimSpace(*c.storeFlag); store != "" {
			expanded, err := config.ExpandPath(store)
			if err != nil {
				c.configErr = fmt.Errorf("resolve store path: %w", err)
				return
			}
			cfg.Paths.StorePath = expanded
		}
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			if !logging.ValidLevel(level) {
				c.configErr = fmt.Errorf("log level: unsupported value %q", level)
				return
			}
			cfg.Logging.Level = level
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(w io.Writer) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: w,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
