package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/forPelevin/linerank/internal/domain/captions"
	"github.com/forPelevin/linerank/internal/domain/popularity"
	"github.com/forPelevin/linerank/internal/types"
)

func newSegmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment <file.vtt>",
		Short: "Merge the cues of a WebVTT file into complete lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			lines, err := segmentFile(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), lines)
			}
			rows := make([]table.Row, 0, len(lines))
			for _, l := range lines {
				rows = append(rows, table.Row{l.Index, formatClock(l.Start), formatClock(l.End), oneLine(l.Content)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(segmentColumns, rows))
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print lines as JSON")
	return cmd
}

func newScoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <file.vtt> <popularity.json>",
		Short: "Rank the lines of a WebVTT file against a replay heatmap",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			buckets := a.cfg.BucketCount
			if cmd.Flags().Changed("buckets") {
				buckets, _ = cmd.Flags().GetInt("buckets")
			}

			lines, err := segmentFile(args[0])
			if err != nil {
				return err
			}
			pop, err := readPopularity(args[1])
			if err != nil {
				return err
			}
			scored, err := popularity.Score(lines, pop.Heatmap, buckets)
			if err != nil {
				return fmt.Errorf("score: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), scored)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(lineColumns, scoredRows(scored)))
			return nil
		},
	}
	cmd.Flags().Int("buckets", popularity.DefaultBucketCount, "Number of popularity ranks")
	cmd.Flags().Bool("json", false, "Print scored lines as JSON")
	return cmd
}

func segmentFile(path string) ([]types.Line, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines, err := captions.Segment(string(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

func readPopularity(path string) (types.Popularity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Popularity{}, err
	}
	var pop types.Popularity
	if err := json.Unmarshal(b, &pop); err != nil {
		return types.Popularity{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return pop, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
