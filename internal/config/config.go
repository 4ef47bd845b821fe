// Package config loads, normalizes, and validates linerank settings.
//
// Values come from repository defaults, an optional TOML file and a few
// environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "linerank.toml"

type Log struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// YtDlp configures heatmap retrieval through yt-dlp.
type YtDlp struct {
	Enabled            bool     `toml:"enabled"`
	Bin                string   `toml:"bin" validate:"required_if=Enabled true"`
	CookiesFromBrowser string   `toml:"cookies_from_browser"`
	ExtraArgs          []string `toml:"extra_args"`
}

type Config struct {
	DataDir     string `toml:"data_dir" validate:"required"`
	OutDir      string `toml:"out_dir" validate:"required"`
	DBPath      string `toml:"db_path"`
	BucketCount int    `toml:"bucket_count" validate:"gt=0"`
	Concurrency int    `toml:"concurrency" validate:"gt=0,lte=64"`
	Log         Log    `toml:"log"`
	YtDlp       YtDlp  `toml:"ytdlp"`
}

// Load reads path (or ./linerank.toml when path is empty) on top of Default.
// A missing file is not an error; the returned bool reports whether one was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, false, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		dec := toml.NewDecoder(file)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, exists, nil
}

func resolvePath(path string) (string, bool, error) {
	if path == "" {
		path = DefaultFileName
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config %s is a directory", expanded)
	}
	return expanded, true, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv("LINERANK_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := lookupEnv("LINERANK_OUT_DIR"); ok {
		c.OutDir = v
	}
	if v, ok := lookupEnv("LINERANK_DB_PATH"); ok {
		c.DBPath = v
	}
	if v, ok := lookupEnv("LINERANK_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookupEnv("LINERANK_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := lookupEnv("YTDLP_BIN"); ok {
		c.YtDlp.Bin = v
	}
	if v, ok := lookupEnv("LINERANK_BUCKET_COUNT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LINERANK_BUCKET_COUNT: %w", err)
		}
		c.BucketCount = n
	}
	if v, ok := lookupEnv("LINERANK_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LINERANK_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.DataDir, err = expandPath(c.DataDir); err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	if c.OutDir, err = expandPath(c.OutDir); err != nil {
		return fmt.Errorf("out_dir: %w", err)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = filepath.Join(c.OutDir, defaultDBName)
	}
	if c.DBPath, err = expandPath(c.DBPath); err != nil {
		return fmt.Errorf("db_path: %w", err)
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	c.YtDlp.Bin = strings.TrimSpace(c.YtDlp.Bin)
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// ExpandPath resolves ~ and makes the path absolute.
func ExpandPath(p string) (string, error) { return expandPath(p) }

func expandPath(p string) (string, error) {
	if p == "" {
		return p, nil
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if p == "~" {
			p = home
		} else if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}
