package config

import "github.com/forPelevin/linerank/internal/domain/popularity"

const (
	defaultDataDir     = "data"
	defaultOutDir      = "out"
	defaultDBName      = "linerank.db"
	defaultConcurrency = 4
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultYtDlpBin    = "yt-dlp"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		DataDir:     defaultDataDir,
		OutDir:      defaultOutDir,
		BucketCount: popularity.DefaultBucketCount,
		Concurrency: defaultConcurrency,
		Log: Log{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		YtDlp: YtDlp{
			Bin: defaultYtDlpBin,
		},
	}
}
