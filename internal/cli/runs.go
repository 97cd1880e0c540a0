package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vidalign/internal/domain/timecode"
	"github.com/forPelevin/vidalign/internal/store"
	"github.com/forPelevin/vidalign/internal/types"
)

const textPreviewWidth = 60

func (c *commandContext) withStore(ctx context.Context, fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Paths.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored alignment runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				runs, err := st.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOut {
					return writeJSON(out, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs stored")
					return nil
				}
				fmt.Fprintln(out, renderRuns(runs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var (
		videoID    string
		showIssues bool
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the rows or issues of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := strings.TrimSpace(args[0])
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				out := cmd.OutOrStdout()
				if showIssues {
					issues, err := st.ListIssues(cmd.Context(), runID)
					if err != nil {
						return err
					}
					if jsonOut {
						return writeJSON(out, issues)
					}
					if len(issues) == 0 {
						fmt.Fprintln(out, "No issues")
						return nil
					}
					fmt.Fprintln(out, renderIssues(issues))
					return nil
				}

				rows, err := st.ListRows(cmd.Context(), runID, videoID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(out, rows)
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No rows")
					return nil
				}
				fmt.Fprintln(out, renderRows(rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&videoID, "video", "", "Only rows of this video")
	cmd.Flags().BoolVar(&showIssues, "issues", false, "Show issues instead of rows")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func renderRuns(runs []types.RunSummary) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			strconv.Itoa(r.Counts.Videos),
			strconv.Itoa(r.Counts.Rows),
			strconv.Itoa(r.Counts.Assigned),
			strconv.Itoa(r.Counts.Orphans),
			strconv.Itoa(r.Counts.HallucinatedDropped),
			strconv.Itoa(r.Issues),
		})
	}
	return renderTable(
		[]string{"ID", "Created", "Videos", "Rows", "Assigned", "Orphans", "Dropped", "Issues"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderRows(rows []types.AlignedRow) string {
	out := make([][]string, 0, len(rows))
	for i, r := range rows {
		scene := ""
		if r.SceneOrdinal != nil {
			scene = strconv.Itoa(*r.SceneOrdinal)
		}
		source := ""
		if r.Source != nil {
			source = string(*r.Source)
			if r.Hallucinated {
				source += " *"
			}
		}
		out = append(out, []string{
			strconv.Itoa(i + 1),
			r.VideoID,
			scene,
			span(r.SceneStart, r.SceneEnd),
			span(r.SegmentStart, r.SegmentEnd),
			source,
			preview(r.Text, textPreviewWidth),
		})
	}
	return renderTable(
		[]string{"#", "Video", "Scene", "Scene span", "Segment span", "Source", "Text"},
		out,
		[]columnAlignment{alignRight, alignLeft, alignRight},
	)
}

func renderIssues(issues []types.Issue) string {
	rows := make([][]string, 0, len(issues))
	for _, is := range issues {
		rows = append(rows, []string{string(is.Kind), is.VideoID, is.Detail})
	}
	return renderTable([]string{"Kind", "Video", "Detail"}, rows, nil)
}

func span(start, end *types.Instant) string {
	if start == nil && end == nil {
		return ""
	}
	return instant(start) + " - " + instant(end)
}

func instant(i *types.Instant) string {
	if i == nil {
		return "?"
	}
	return timecode.Format(*i)
}

func preview(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
