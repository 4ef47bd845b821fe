package fsdata

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/forPelevin/linerank/internal/domain/records"
	"github.com/forPelevin/linerank/internal/types"
)

// ErrNotFound is returned when an episode has no subtitle or popularity file.
var ErrNotFound = errors.New("not found")

// Adapter reads episode inputs from a data directory:
//
//	episodes/*.json
//	subtitles/<basename>.vtt
//	popularity/<basename>.json
type Adapter struct {
	root string
}

func New(root string) *Adapter {
	return &Adapter{root: root}
}

func (a *Adapter) EpisodesDir() string   { return filepath.Join(a.root, "episodes") }
func (a *Adapter) SubtitlesDir() string  { return filepath.Join(a.root, "subtitles") }
func (a *Adapter) PopularityDir() string { return filepath.Join(a.root, "popularity") }

func (a *Adapter) SubtitlePath(ep types.Episode) string {
	return filepath.Join(a.SubtitlesDir(), records.Basename(ep)+".vtt")
}

func (a *Adapter) PopularityPath(ep types.Episode) string {
	return filepath.Join(a.PopularityDir(), records.Basename(ep)+".json")
}

// Episodes lists the catalog sorted by season and index.
func (a *Adapter) Episodes(ctx context.Context) ([]types.Episode, error) {
	paths, err := filepath.Glob(filepath.Join(a.EpisodesDir(), "*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]types.Episode, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var ep types.Episode
		if err := readJSON(p, &ep); err != nil {
			return nil, err
		}
		if strings.TrimSpace(ep.ID) == "" {
			return nil, fmt.Errorf("episode %s: id is empty", p)
		}
		if ep.Slug == "" {
			ep.Slug = records.Slugify(ep.Name)
		}
		if ep.Season <= 0 {
			ep.Season = 1
		}
		out = append(out, ep)
	}
	slices.SortStableFunc(out, func(x, y types.Episode) int {
		if c := cmp.Compare(x.Season, y.Season); c != 0 {
			return c
		}
		return cmp.Compare(x.Index, y.Index)
	})
	return out, nil
}

func (a *Adapter) Captions(_ context.Context, ep types.Episode) (string, error) {
	p := a.SubtitlePath(ep)
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("subtitles %s: %w", p, ErrNotFound)
		}
		return "", fmt.Errorf("read subtitles: %w", err)
	}
	return string(b), nil
}

func (a *Adapter) Popularity(_ context.Context, ep types.Episode) (types.Popularity, error) {
	p := a.PopularityPath(ep)
	var pop types.Popularity
	if err := readJSON(p, &pop); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.Popularity{}, fmt.Errorf("popularity %s: %w", p, ErrNotFound)
		}
		return types.Popularity{}, err
	}
	return pop, nil
}

// WritePopularity caches fetched popularity next to the other inputs.
func (a *Adapter) WritePopularity(_ context.Context, ep types.Episode, pop types.Popularity) error {
	if pop.Heatmap == nil {
		pop.Heatmap = []types.HeatmapSegment{}
	}
	b, err := json.MarshalIndent(pop, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal popularity: %w", err)
	}
	return WriteFileAtomic(a.PopularityPath(ep), append(b, '\n'))
}

// WriteFileAtomic writes through a temp file in the same directory and
// renames it over path, so readers never see a partial file.
func WriteFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
