package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forPelevin/linerank/internal/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [video-id...]",
		Short: "Segment, score and index every episode of the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, a, args)
		},
	}
	cmd.Flags().String("data", "", "Data directory (overrides data_dir)")
	cmd.Flags().String("out", "", "Output directory (overrides out_dir)")
	cmd.Flags().String("db", "", "SQLite database (default <out>/linerank.db)")
	cmd.Flags().Int("buckets", 0, "Number of popularity ranks (overrides bucket_count)")
	cmd.Flags().Int("concurrency", 0, "Episodes processed in parallel (overrides concurrency)")
	cmd.Flags().Bool("fetch", false, "Refresh heatmaps with yt-dlp before scoring")
	return cmd
}

func run(cmd *cobra.Command, a *app, ids []string) error {
	dataDir, _ := cmd.Flags().GetString("data")
	outDir, _ := cmd.Flags().GetString("out")
	dbPath, _ := cmd.Flags().GetString("db")
	buckets, _ := cmd.Flags().GetInt("buckets")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	fetch, _ := cmd.Flags().GetBool("fetch")

	cfg := pipeline.Config{
		DataDir:     a.cfg.DataDir,
		OutDir:      a.cfg.OutDir,
		DBPath:      a.cfg.DBPath,
		BucketCount: a.cfg.BucketCount,
		Concurrency: a.cfg.Concurrency,
		Episodes:    ids,

		FetchPopularity:    a.cfg.YtDlp.Enabled || fetch,
		YtDlpBin:           a.cfg.YtDlp.Bin,
		CookiesFromBrowser: a.cfg.YtDlp.CookiesFromBrowser,
		YtDlpArgs:          a.cfg.YtDlp.ExtraArgs,

		Log: a.log,
	}
	if dataDir != "" {
		cfg.DataDir = absPath(dataDir)
	}
	if outDir != "" {
		cfg.OutDir = absPath(outDir)
		cfg.DBPath = ""
	}
	if dbPath != "" {
		cfg.DBPath = absPath(dbPath)
	}
	if cmd.Flags().Changed("buckets") {
		cfg.BucketCount = buckets
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = concurrency
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Hour)
	defer cancel()

	start := time.Now()
	sum, err := pipeline.Run(ctx, cfg)
	if sum.RunID != "" {
		a.log.WithFields(logrus.Fields{
			"run":      sum.RunID,
			"episodes": sum.Episodes,
			"failed":   sum.Failed,
			"lines":    sum.Lines,
			"took":     time.Since(start).Round(time.Millisecond).String(),
		}).Info("run finished")
		fmt.Fprintln(cmd.OutOrStdout(), sum.Records)
	}
	return err
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
