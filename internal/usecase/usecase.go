package usecase

import (
	"context"
	"fmt"

	"github.com/forPelevin/linerank/internal/domain/captions"
	"github.com/forPelevin/linerank/internal/domain/popularity"
	"github.com/forPelevin/linerank/internal/ports"
	"github.com/forPelevin/linerank/internal/types"
)

type Deps struct {
	Captions   ports.CaptionSource
	Popularity ports.PopularitySource
	Store      ports.LineStore
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	Episode     types.Episode
	BucketCount int
}

type Result struct {
	Episode    types.Episode
	Popularity types.Popularity
	Lines      []types.ScoredLine
}

// Run segments and scores one episode. Nothing is stored unless both passes
// succeed.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	ep := in.Episode
	raw, err := u.d.Captions.Captions(ctx, ep)
	if err != nil {
		return Result{}, err
	}
	lines, err := captions.Segment(raw)
	if err != nil {
		return Result{}, fmt.Errorf("segment: %w", err)
	}

	pop, err := u.d.Popularity.Popularity(ctx, ep)
	if err != nil {
		return Result{}, err
	}
	scored, err := popularity.Score(lines, pop.Heatmap, in.BucketCount)
	if err != nil {
		return Result{}, fmt.Errorf("score: %w", err)
	}

	if u.d.Store != nil {
		if err := u.d.Store.SaveEpisode(ctx, ep, pop, scored); err != nil {
			return Result{}, err
		}
	}

	return Result{
		Episode:    ep,
		Popularity: pop,
		Lines:      scored,
	}, nil
}
