package records

import (
	"testing"

	"github.com/forPelevin/linerank/internal/types"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ":    "my-cool-video",
		"___":                  "",
		"abc123":               "abc123",
		"Name (v2)!":           "name-v2",
		"Je me suis marié":     "je-me-suis-marie",
		"J'ai fait une soirée": "j-ai-fait-une-soiree",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := Slugify(in); got != want {
				t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestBasename(t *testing.T) {
	tests := []struct {
		name string
		ep   types.Episode
		want string
	}{
		{"explicit slug", types.Episode{Index: 3, Slug: "le-mariage"}, "S01E03_le-mariage"},
		{"derived slug", types.Episode{Index: 12, Name: "J'ai un plan"}, "S01E12_j-ai-un-plan"},
		{"season", types.Episode{Season: 2, Index: 1, Slug: "x"}, "S02E01_x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Basename(tt.ep); got != tt.want {
				t.Fatalf("Basename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWatchURL(t *testing.T) {
	got := WatchURL("abc_DEF-123", 42)
	if got != "https://www.youtube.com/watch?v=abc_DEF-123&t=42s" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestBuild(t *testing.T) {
	ep := types.Episode{ID: "vid", Name: "Je suis sorti", Index: 4}
	pop := types.Popularity{ViewCount: 1000, LikeCount: 20}
	lines := []types.ScoredLine{
		{Line: types.Line{Start: 7, End: 9, Content: "Bref.", Index: 0}, HeatValue: 33, MostReplayedScore: 2},
		{Line: types.Line{Start: 125, End: 130, Content: "Voilà.", Index: 1}, HeatValue: 90, MostReplayedScore: 5},
	}
	recs := Build(ep, pop, lines)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ObjectID != "S01E04_je-suis-sorti-007" || recs[1].ObjectID != "S01E04_je-suis-sorti-125" {
		t.Fatalf("unexpected object ids: %s, %s", recs[0].ObjectID, recs[1].ObjectID)
	}
	if recs[1].Line.MostReplayedScore != 5 || recs[1].Line.HeatValue != 90 {
		t.Fatalf("score not carried: %+v", recs[1].Line)
	}
	if recs[0].Episode.ViewCount != 1000 || recs[0].Episode.Season != 1 || recs[0].Episode.Slug != "je-suis-sorti" {
		t.Fatalf("unexpected episode: %+v", recs[0].Episode)
	}
	if recs[1].Line.URL != "https://www.youtube.com/watch?v=vid&t=125s" {
		t.Fatalf("unexpected url: %s", recs[1].Line.URL)
	}
}

func TestSort(t *testing.T) {
	recs := []types.Record{
		{ObjectID: "c", Episode: types.RecordEpisode{Season: 1, Index: 2}, Line: types.RecordLine{Index: 0}},
		{ObjectID: "b", Episode: types.RecordEpisode{Season: 1, Index: 1}, Line: types.RecordLine{Index: 1}},
		{ObjectID: "a", Episode: types.RecordEpisode{Season: 1, Index: 1}, Line: types.RecordLine{Index: 0}},
	}
	Sort(recs)
	if recs[0].ObjectID != "a" || recs[1].ObjectID != "b" || recs[2].ObjectID != "c" {
		t.Fatalf("unexpected order: %+v", recs)
	}
}

func TestBuild_SameSecondLinesGetDistinctIDs(t *testing.T) {
	ep := types.Episode{ID: "vid", Name: "Bref", Slug: "bref", Season: 1, Index: 4}
	lines := []types.ScoredLine{
		{Line: types.Line{Start: 12, End: 12, Content: "Non.", Index: 0}},
		{Line: types.Line{Start: 12, End: 13, Content: "Si.", Index: 1}},
		{Line: types.Line{Start: 13, End: 15, Content: "Bon.", Index: 2}},
	}
	recs := Build(ep, types.Popularity{}, lines)
	want := []string{"S01E04_bref-012", "S01E04_bref-012-1", "S01E04_bref-013"}
	for i, w := range want {
		if recs[i].ObjectID != w {
			t.Fatalf("record %d id = %q, want %q", i, recs[i].ObjectID, w)
		}
	}
}
