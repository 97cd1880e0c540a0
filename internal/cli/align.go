package cli

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vidalign/internal/pipeline"
	"github.com/forPelevin/vidalign/internal/types"
)

func newAlignCommand(ctx *commandContext) *cobra.Command {
	var (
		inputDir, scenesPath, segmentsPath, metadataPath string
		vttDir, infoDir, outDir                          string
		vttRolling, vttGenerated, noStore                bool
		retainProvided, retainGenerated, wholeVideo      bool
	)

	cmd := &cobra.Command{
		Use:   "align",
		Short: "Align scenes, transcripts and metadata into full_data.csv",
		Long: "Reads scenes.csv, transcriptions.csv and metadata.csv (or a .vtt directory and\n" +
			"a .info.json directory), assigns every transcript segment to the scene that\n" +
			"contains its midpoint, and writes full_data.csv and report.json to a new run\n" +
			"directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			opts := cfg.AlignOptions()
			flags := cmd.Flags()
			if flags.Changed("retain-provided") {
				opts.Policy.RetainProvidedHallucinations = retainProvided
			}
			if flags.Changed("retain-generated") {
				opts.Policy.RetainGeneratedHallucinations = retainGenerated
			}
			if flags.Changed("whole-video-fallback") {
				opts.WholeVideoFallback = wholeVideo
			}
			if outDir == "" {
				outDir = cfg.Paths.OutDir
			}
			storePath := cfg.Paths.StorePath
			if noStore {
				storePath = ""
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			sum, err := pipeline.Align(runCtx, pipeline.AlignConfig{
				InputDir:     inputDir,
				ScenesPath:   scenesPath,
				SegmentsPath: segmentsPath,
				MetadataPath: metadataPath,
				VTTDir:       vttDir,
				VTTRolling:   vttRolling,
				VTTGenerated: vttGenerated,
				InfoJSONDir:  infoDir,
				OutDir:       outDir,
				StorePath:    storePath,
				Options:      opts,
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:     %s\n", sum.Run.ID)
			fmt.Fprintf(out, "Dataset: %s\n", sum.DatasetPath)
			fmt.Fprintf(out, "Report:  %s\n", sum.ReportPath)
			fmt.Fprintln(out, renderCounts(sum.Run.Counts, len(sum.Report.Issues)))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&inputDir, "input", "i", "", "Directory with scenes.csv, transcriptions.csv and metadata.csv")
	flags.StringVar(&scenesPath, "scenes", "", "Scenes table (overrides --input)")
	flags.StringVar(&segmentsPath, "transcripts", "", "Transcript table (overrides --input)")
	flags.StringVar(&metadataPath, "metadata", "", "Metadata table (overrides --input)")
	flags.StringVar(&vttDir, "vtt-dir", "", "Read segments from .vtt files in this directory")
	flags.BoolVar(&vttRolling, "vtt-rolling", false, "Treat captions as rolling auto-captions when metadata does not say")
	flags.BoolVar(&vttGenerated, "vtt-generated", false, "Mark .vtt segments as speech-to-text output")
	flags.StringVar(&infoDir, "info-dir", "", "Read metadata from .info.json files in this directory")
	flags.StringVarP(&outDir, "out", "o", "", "Output root (defaults to paths.out_dir)")
	flags.BoolVar(&noStore, "no-store", false, "Do not record the run in the database")
	flags.BoolVar(&retainProvided, "retain-provided", true, "Keep provided subtitles that run past the last scene")
	flags.BoolVar(&retainGenerated, "retain-generated", false, "Keep generated segments that run past the last scene")
	flags.BoolVar(&wholeVideo, "whole-video-fallback", false, "Give videos without scenes one scene spanning the video")

	return cmd
}

func renderCounts(c types.Counts, issues int) string {
	rows := [][]string{
		{"videos", strconv.Itoa(c.Videos)},
		{"scenes", strconv.Itoa(c.Scenes)},
		{"segments", strconv.Itoa(c.Segments)},
		{"assigned", strconv.Itoa(c.Assigned)},
		{"orphans", strconv.Itoa(c.Orphans)},
		{"hallucinated (dropped)", strconv.Itoa(c.HallucinatedDropped)},
		{"hallucinated (kept)", strconv.Itoa(c.HallucinatedRetained)},
		{"rows", strconv.Itoa(c.Rows)},
		{"issues", strconv.Itoa(issues)},
	}
	return renderTable([]string{"Count", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
