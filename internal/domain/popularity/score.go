package popularity

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/forPelevin/linerank/internal/types"
)

// DefaultBucketCount is the number of popularity ranks lines are spread over.
const DefaultBucketCount = 5

var ErrInvalidArgument = errors.New("invalid argument")

// HeatValue returns the rounded mean value of the heatmap segments that
// contain either the start or the end of the line. A short segment lying
// strictly inside the line does not count.
func HeatValue(line types.Line, heatmap []types.HeatmapSegment) int {
	sum, n := 0, 0
	for _, seg := range heatmap {
		if covers(seg, line.Start) || covers(seg, line.End) {
			sum += seg.Value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	// Half rounds up; operands are non-negative.
	return (2*sum + n) / (2 * n)
}

func covers(seg types.HeatmapSegment, t int) bool {
	return t >= seg.Start && t <= seg.End
}

// Score ranks every line from 1 (least replayed) to bucketCount (most
// replayed). Lines are ordered by heat, then split into equally sized
// buckets by position, so equal heat values may straddle a bucket boundary.
// The result is in ascending Index order.
func Score(lines []types.Line, heatmap []types.HeatmapSegment, bucketCount int) ([]types.ScoredLine, error) {
	if bucketCount <= 0 {
		return nil, fmt.Errorf("%w: bucket count must be > 0, got %d", ErrInvalidArgument, bucketCount)
	}
	if err := validate(lines, heatmap); err != nil {
		return nil, err
	}

	out := make([]types.ScoredLine, len(lines))
	for i, l := range lines {
		out[i] = types.ScoredLine{Line: l, HeatValue: HeatValue(l, heatmap)}
	}
	if len(out) == 0 {
		return out, nil
	}

	// Ascending (heat, index) then reversed: highest heat first and, among
	// equal heat, the latest line first.
	order := make([]*types.ScoredLine, len(out))
	for i := range out {
		order[i] = &out[i]
	}
	slices.SortStableFunc(order, func(a, b *types.ScoredLine) int {
		if c := cmp.Compare(a.HeatValue, b.HeatValue); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	slices.Reverse(order)

	size := (len(order) + bucketCount - 1) / bucketCount
	for pos, sl := range order {
		sl.MostReplayedScore = bucketCount - pos/size
	}

	slices.SortStableFunc(out, func(a, b types.ScoredLine) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return out, nil
}

// validate rejects negative fields and inverted ranges. An inverted heatmap
// segment cannot come from yt-dlp, so it marks a corrupted popularity file.
func validate(lines []types.Line, heatmap []types.HeatmapSegment) error {
	for _, l := range lines {
		if l.Start < 0 || l.End < l.Start {
			return fmt.Errorf("%w: line %d has range [%d, %d]", ErrInvalidArgument, l.Index, l.Start, l.End)
		}
		if l.Index < 0 {
			return fmt.Errorf("%w: line index %d is negative", ErrInvalidArgument, l.Index)
		}
	}
	for i, seg := range heatmap {
		if seg.Start < 0 || seg.End < seg.Start {
			return fmt.Errorf("%w: heatmap segment %d has range [%d, %d]", ErrInvalidArgument, i, seg.Start, seg.End)
		}
		if seg.Value < 0 {
			return fmt.Errorf("%w: heatmap segment %d has negative value %d", ErrInvalidArgument, i, seg.Value)
		}
	}
	return nil
}
