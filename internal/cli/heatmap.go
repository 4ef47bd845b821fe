package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/linerank/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/linerank/internal/types"
)

func newHeatmapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "heatmap <video-id>",
		Short: "Fetch view counts and the replay heatmap of a video with yt-dlp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			src := ytdlp.New(a.cfg.YtDlp.Bin, a.cfg.YtDlp.CookiesFromBrowser, a.cfg.YtDlp.ExtraArgs)
			pop, err := src.Popularity(ctx, types.Episode{ID: args[0]})
			if errors.Is(err, ytdlp.ErrAgeRestricted) {
				return fmt.Errorf("%s: %w (set ytdlp.cookies_from_browser)", args[0], err)
			}
			if err != nil {
				return err
			}
			a.log.WithField("segments", len(pop.Heatmap)).Debug("heatmap fetched")
			return writeJSON(cmd.OutOrStdout(), pop)
		},
	}
}
