package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vidalign/internal/pipeline"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		videoID, tablesDir string
		skipTranscript     bool
		extra              map[string]string
	)

	cmd := &cobra.Command{
		Use:   "extract <video.mp4>",
		Short: "Detect scenes and transcribe a local video into the input tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			absIn, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			runCtx, cancel := context.WithTimeout(sigCtx, 3*time.Hour)
			defer cancel()

			res, err := pipeline.Extract(runCtx, pipeline.ExtractConfig{
				InputMP4:       absIn,
				VideoID:        videoID,
				TablesDir:      tablesDir,
				CacheDir:       cfg.Paths.CacheDir,
				SkipTranscript: skipTranscript,
				Extra:          extra,
				FFmpegPath:     cfg.Tools.FFmpeg,
				FFprobePath:    cfg.Tools.FFprobe,
				SceneThreshold: cfg.Tools.SceneThreshold,
				WhisperBin:     cfg.Tools.WhisperBin,
				WhisperModel:   cfg.Tools.WhisperModel,
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Appended %d scenes and %d segments to %s (%.1fs @ %.3g fps)\n",
				res.Scenes, res.Segments, tablesDir, res.Info.DurationSeconds, res.Info.FPS)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&videoID, "id", "", "Video id (defaults to the file name without extension)")
	flags.StringVarP(&tablesDir, "tables", "t", ".", "Directory holding the input tables to append to")
	flags.BoolVar(&skipTranscript, "skip-transcript", false, "Only detect scenes and probe metadata")
	flags.StringToStringVar(&extra, "meta", nil, "Extra metadata column values (key=value, repeatable)")

	return cmd
}
