package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forPelevin/linerank/internal/config"
)

// app carries what every subcommand needs once the root flags are parsed.
type app struct {
	cfg *config.Config
	log *logrus.Logger
}

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}
	var (
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:          "linerank",
		Short:        "Rank subtitle lines by how often viewers replay them",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			log, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = log
			return nil
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceErrors = true

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./"+config.DefaultFileName+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(a),
		newSegmentCmd(),
		newScoreCmd(a),
		newHeatmapCmd(a),
		newShowCmd(a),
	)
	return root
}
