package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/linerank/internal/domain/records"
	"github.com/forPelevin/linerank/internal/ports"
	"github.com/forPelevin/linerank/internal/ports/adapters/fsdata"
	"github.com/forPelevin/linerank/internal/ports/adapters/sqlitestore"
	"github.com/forPelevin/linerank/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/linerank/internal/types"
	"github.com/forPelevin/linerank/internal/usecase"
)

const (
	recordsFile = "records.json"
	lockFile    = ".linerank.lock"
)

type Config struct {
	DataDir     string
	OutDir      string
	DBPath      string
	BucketCount int
	Concurrency int

	// Episodes restricts the run to these video ids. Empty means all.
	Episodes []string

	// FetchPopularity refreshes heatmaps through yt-dlp before scoring and
	// caches them in DataDir.
	FetchPopularity    bool
	YtDlpBin           string
	CookiesFromBrowser string
	YtDlpArgs          []string

	Log logrus.FieldLogger
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data dir is empty")
	}
	info, err := os.Stat(c.DataDir)
	if err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", c.DataDir)
	}
	if c.OutDir == "" {
		return errors.New("out dir is empty")
	}
	if c.BucketCount <= 0 {
		return fmt.Errorf("buckets must be > 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	return nil
}

type Summary struct {
	RunID    string
	Episodes int
	Failed   int
	Lines    int
	Records  string
}

// Run processes every selected episode with bounded concurrency. An episode
// that fails is skipped without touching stored data of the others; all
// failures are returned joined once the successful episodes are written.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	runID := uuid.NewString()
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	log = log.WithField("run", runID)

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return Summary{}, err
	}
	lock := flock.New(filepath.Join(cfg.OutDir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return Summary{}, fmt.Errorf("another linerank run is writing to %s", cfg.OutDir)
	}
	defer func() { _ = lock.Unlock() }()

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.OutDir, "linerank.db")
	}
	store, err := sqlitestore.Open(ctx, dbPath)
	if err != nil {
		return Summary{}, err
	}
	defer store.Close()
	log.WithField("db", dbPath).Debug("store opened")

	data := fsdata.New(cfg.DataDir)
	episodes, err := data.Episodes(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list episodes: %w", err)
	}
	episodes = selectEpisodes(episodes, cfg.Episodes)
	if len(episodes) == 0 {
		return Summary{}, fmt.Errorf("no episodes found in %s", data.EpisodesDir())
	}
	log.WithField("episodes", len(episodes)).Info("processing episodes")

	var pop ports.PopularitySource = data
	if cfg.FetchPopularity {
		pop = fetchingPopularity{
			remote: ytdlp.New(cfg.YtDlpBin, cfg.CookiesFromBrowser, cfg.YtDlpArgs),
			cache:  data,
		}
	}
	uc := usecase.New(usecase.Deps{
		Captions:   data,
		Popularity: pop,
		Store:      store,
	})

	var (
		mu       sync.Mutex
		failures []error
		lines    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Concurrency, 1))
	for _, ep := range episodes {
		ep := ep
		g.Go(func() error {
			elog := log.WithField("episode", records.Basename(ep))
			res, err := uc.Run(gctx, usecase.Input{Episode: ep, BucketCount: cfg.BucketCount})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				elog.WithError(err).Error("episode failed")
				failures = append(failures, fmt.Errorf("%s: %w", records.Basename(ep), err))
				return nil
			}
			elog.WithField("lines", len(res.Lines)).Info("episode scored")
			lines += len(res.Lines)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	// records.json covers every stored episode, not only this run's
	// selection; a failed episode keeps what an earlier run saved.
	recs, err := storedRecords(ctx, store)
	if err != nil {
		return Summary{}, err
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return Summary{}, fmt.Errorf("marshal records: %w", err)
	}
	recordsPath := filepath.Join(cfg.OutDir, recordsFile)
	if err := fsdata.WriteFileAtomic(recordsPath, append(b, '\n')); err != nil {
		return Summary{}, err
	}
	log.WithField("records", len(recs)).Infof("records written: %s", recordsPath)

	sum := Summary{
		RunID:    runID,
		Episodes: len(episodes) - len(failures),
		Failed:   len(failures),
		Lines:    lines,
		Records:  recordsPath,
	}
	return sum, errors.Join(failures...)
}

func storedRecords(ctx context.Context, store *sqlitestore.Store) ([]types.Record, error) {
	stored, err := store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stored episodes: %w", err)
	}
	recs := []types.Record{}
	for _, se := range stored {
		recs = append(recs, records.Build(se.Episode, se.Popularity, se.Lines)...)
	}
	records.Sort(recs)
	return recs, nil
}

func selectEpisodes(all []types.Episode, ids []string) []types.Episode {
	if len(ids) == 0 {
		return all
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []types.Episode
	for _, ep := range all {
		if _, ok := want[ep.ID]; ok {
			out = append(out, ep)
		}
	}
	return out
}

type popularityCache interface {
	WritePopularity(ctx context.Context, ep types.Episode, pop types.Popularity) error
}

// fetchingPopularity asks yt-dlp for fresh numbers and keeps a copy in the
// data directory.
type fetchingPopularity struct {
	remote ports.PopularitySource
	cache  popularityCache
}

func (f fetchingPopularity) Popularity(ctx context.Context, ep types.Episode) (types.Popularity, error) {
	pop, err := f.remote.Popularity(ctx, ep)
	if err != nil {
		return types.Popularity{}, err
	}
	if err := f.cache.WritePopularity(ctx, ep, pop); err != nil {
		return types.Popularity{}, fmt.Errorf("cache popularity: %w", err)
	}
	return pop, nil
}

// ensure adapters implement ports
var _ ports.Catalog = (*fsdata.Adapter)(nil)
var _ ports.CaptionSource = (*fsdata.Adapter)(nil)
var _ ports.PopularitySource = (*fsdata.Adapter)(nil)
var _ ports.PopularitySource = (*ytdlp.Adapter)(nil)
var _ ports.LineStore = (*sqlitestore.Store)(nil)
