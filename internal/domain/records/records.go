package records

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/forPelevin/linerank/internal/types"
)

const watchURL = "https://www.youtube.com/watch"

// Basename identifies an episode on disk and in record ids, e.g. S01E03_le-mariage.
func Basename(ep types.Episode) string {
	season := ep.Season
	if season <= 0 {
		season = 1
	}
	slug := ep.Slug
	if slug == "" {
		slug = Slugify(ep.Name)
	}
	return fmt.Sprintf("S%02dE%02d_%s", season, ep.Index, slug)
}

// Slugify lowercases s, strips accents and collapses everything that is not
// a letter or digit into single dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(folded)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// WatchURL links to the video at the given second.
func WatchURL(videoID string, start int) string {
	q := url.Values{}
	q.Set("v", videoID)
	return watchURL + "?" + q.Encode() + "&t=" + strconv.Itoa(start) + "s"
}

// Build turns the scored lines of one episode into search records.
func Build(ep types.Episode, pop types.Popularity, lines []types.ScoredLine) []types.Record {
	base := Basename(ep)
	slug := ep.Slug
	if slug == "" {
		slug = Slugify(ep.Name)
	}
	season := ep.Season
	if season <= 0 {
		season = 1
	}
	episode := types.RecordEpisode{
		VideoID:         ep.ID,
		Name:            ep.Name,
		Slug:            slug,
		Season:          season,
		Index:           ep.Index,
		IsAgeRestricted: ep.IsAgeRestricted,
		ViewCount:       pop.ViewCount,
		LikeCount:       pop.LikeCount,
		CommentCount:    pop.CommentCount,
	}

	out := make([]types.Record, 0, len(lines))
	seen := make(map[int]bool, len(lines))
	for _, l := range lines {
		// Two lines can floor to the same second; the later one gets its
		// index appended so ids stay unique within the episode.
		id := fmt.Sprintf("%s-%03d", base, l.Start)
		if seen[l.Start] {
			id = fmt.Sprintf("%s-%d", id, l.Index)
		}
		seen[l.Start] = true
		out = append(out, types.Record{
			ObjectID: id,
			Episode:  episode,
			Line: types.RecordLine{
				Index:             l.Index,
				Start:             l.Start,
				End:               l.End,
				Content:           l.Content,
				HeatValue:         l.HeatValue,
				MostReplayedScore: l.MostReplayedScore,
				URL:               WatchURL(ep.ID, l.Start),
			},
		})
	}
	return out
}

// Sort orders records by season, episode and line.
func Sort(recs []types.Record) {
	slices.SortStableFunc(recs, func(a, b types.Record) int {
		if c := cmp.Compare(a.Episode.Season, b.Episode.Season); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Episode.Index, b.Episode.Index); c != 0 {
			return c
		}
		return cmp.Compare(a.Line.Index, b.Line.Index)
	})
}
