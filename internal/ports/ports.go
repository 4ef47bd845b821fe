package ports

import (
	"context"

	"github.com/forPelevin/linerank/internal/types"
)

type Catalog interface {
	Episodes(ctx context.Context) ([]types.Episode, error)
}

// CaptionSource returns the raw WebVTT transcript of an episode.
type CaptionSource interface {
	Captions(ctx context.Context, ep types.Episode) (string, error)
}

type PopularitySource interface {
	Popularity(ctx context.Context, ep types.Episode) (types.Popularity, error)
}

// LineStore persists the scored lines of an episode, replacing any previous
// lines of that episode in one step.
type LineStore interface {
	SaveEpisode(ctx context.Context, ep types.Episode, pop types.Popularity, lines []types.ScoredLine) error
}
