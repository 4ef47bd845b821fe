package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/forPelevin/linerank/internal/domain/records"
	"github.com/forPelevin/linerank/internal/ports/adapters/sqlitestore"
)

func newShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [video-id]",
		Short: "List stored episodes, or the ranked lines of one episode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			if dbPath == "" {
				dbPath = a.cfg.DBPath
			}
			if dbPath == "" {
				dbPath = filepath.Join(a.cfg.OutDir, "linerank.db")
			}
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("no database at %s (run `linerank run` first)", dbPath)
			}

			store, err := sqlitestore.Open(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				return showEpisodes(cmd, store)
			}
			return showLines(cmd, store, args[0])
		},
	}
	cmd.Flags().String("db", "", "SQLite database (default <out_dir>/linerank.db)")
	return cmd
}

func showEpisodes(cmd *cobra.Command, store *sqlitestore.Store) error {
	eps, err := store.Episodes(cmd.Context())
	if err != nil {
		return err
	}
	if len(eps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No episodes stored.")
		return nil
	}
	rows := make([]table.Row, 0, len(eps))
	for _, e := range eps {
		rows = append(rows, table.Row{
			records.Basename(e.Episode),
			e.Episode.ID,
			e.ViewCount,
			e.LineCount,
			e.HeatmapLen,
			e.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(episodeColumns, rows))
	return nil
}

func showLines(cmd *cobra.Command, store *sqlitestore.Store, videoID string) error {
	lines, err := store.Lines(cmd.Context(), videoID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(lineColumns, scoredRows(lines)))
	return nil
}
