package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"github.com/forPelevin/linerank/internal/domain/captions"
	"github.com/forPelevin/linerank/internal/ports/adapters/sqlitestore"
	"github.com/forPelevin/linerank/internal/types"
)

const goodVTT = `WEBVTT

00:00:01.000 --> 00:00:03.000
Je m'appelle

00:00:03.000 --> 00:00:05.000
Bref.

00:00:05.000 --> 00:00:07.500
Et voilà.
`

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func seedData(t *testing.T) string {
	t.Helper()
	data := t.TempDir()
	writeFixture(t, filepath.Join(data, "episodes", "01.json"), `{"id":"vid1","name":"Je suis sorti","index":1}`)
	writeFixture(t, filepath.Join(data, "episodes", "02.json"), `{"id":"vid2","name":"J'ai fait un plan","index":2}`)
	writeFixture(t, filepath.Join(data, "episodes", "03.json"), `{"id":"vid3","name":"Cassé","index":3}`)

	writeFixture(t, filepath.Join(data, "subtitles", "S01E01_je-suis-sorti.vtt"), goodVTT)
	writeFixture(t, filepath.Join(data, "subtitles", "S01E02_j-ai-fait-un-plan.vtt"), goodVTT)
	writeFixture(t, filepath.Join(data, "subtitles", "S01E03_casse.vtt"), "WEBVTT\n\nnot a timing line\nhello.\n")

	pop := `{"viewCount": 42, "heatmap": [{"start": 0, "end": 4, "value": 100}, {"start": 4, "end": 8, "value": 10}]}`
	writeFixture(t, filepath.Join(data, "popularity", "S01E01_je-suis-sorti.json"), pop)
	writeFixture(t, filepath.Join(data, "popularity", "S01E02_j-ai-fait-un-plan.json"), pop)
	writeFixture(t, filepath.Join(data, "popularity", "S01E03_casse.json"), pop)
	return data
}

func TestRun_FailingEpisodeDoesNotBlockOthers(t *testing.T) {
	data := seedData(t)
	out := filepath.Join(t.TempDir(), "out")

	sum, err := Run(context.Background(), Config{
		DataDir:     data,
		OutDir:      out,
		BucketCount: 2,
		Concurrency: 2,
	})
	if err == nil {
		t.Fatal("expected the broken episode to be reported")
	}
	var pe *captions.ParseError
	if !errors.As(err, &pe) || !strings.Contains(err.Error(), "S01E03_casse") {
		t.Fatalf("expected parse error naming the episode, got %v", err)
	}
	if sum.Episodes != 2 || sum.Failed != 1 || sum.Lines != 4 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.RunID == "" {
		t.Fatal("expected a run id")
	}

	b, err := os.ReadFile(filepath.Join(out, "records.json"))
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	var recs []types.Record
	if err := json.Unmarshal(b, &recs); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	if recs[0].ObjectID != "S01E01_je-suis-sorti-001" || recs[3].ObjectID != "S01E02_j-ai-fait-un-plan-005" {
		t.Fatalf("unexpected record order: %s ... %s", recs[0].ObjectID, recs[3].ObjectID)
	}
	if recs[0].Line.MostReplayedScore != 2 || recs[1].Line.MostReplayedScore != 1 {
		t.Fatalf("unexpected ranks: %+v / %+v", recs[0].Line, recs[1].Line)
	}

	store, err := sqlitestore.Open(context.Background(), filepath.Join(out, "linerank.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	eps, err := store.Episodes(context.Background())
	if err != nil {
		t.Fatalf("episodes: %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("expected only successful episodes stored, got %+v", eps)
	}
}

func TestRun_SelectsEpisodes(t *testing.T) {
	data := seedData(t)
	out := t.TempDir()

	sum, err := Run(context.Background(), Config{
		DataDir:     data,
		OutDir:      out,
		BucketCount: 5,
		Concurrency: 1,
		Episodes:    []string{"vid2"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Episodes != 1 || sum.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	_, err = Run(context.Background(), Config{
		DataDir:     data,
		OutDir:      out,
		BucketCount: 5,
		Concurrency: 1,
		Episodes:    []string{"nope"},
	})
	if err == nil || !strings.Contains(err.Error(), "no episodes found") {
		t.Fatalf("expected no episodes error, got %v", err)
	}
}

func TestRun_RefusesConcurrentRun(t *testing.T) {
	data := seedData(t)
	out := t.TempDir()

	lock := flock.New(filepath.Join(out, lockFile))
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: %v", err)
	}
	defer lock.Unlock()

	_, err = Run(context.Background(), Config{DataDir: data, OutDir: out, BucketCount: 5, Concurrency: 1})
	if err == nil || !strings.Contains(err.Error(), "another linerank run") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	data := t.TempDir()
	file := filepath.Join(data, "file")
	writeFixture(t, file, "x")

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"ok", Config{DataDir: data, OutDir: "out", BucketCount: 5, Concurrency: 1}, ""},
		{"missing data", Config{DataDir: filepath.Join(data, "nope"), OutDir: "out", BucketCount: 5, Concurrency: 1}, "stat data dir"},
		{"data is file", Config{DataDir: file, OutDir: "out", BucketCount: 5, Concurrency: 1}, "not a directory"},
		{"zero buckets", Config{DataDir: data, OutDir: "out", BucketCount: 0, Concurrency: 1}, "buckets must be > 0"},
		{"zero concurrency", Config{DataDir: data, OutDir: "out", BucketCount: 5}, "concurrency must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

type fakeRemote struct {
	pop types.Popularity
	err error
}

func (f fakeRemote) Popularity(_ context.Context, _ types.Episode) (types.Popularity, error) {
	return f.pop, f.err
}

type fakeCache struct{ written []types.Popularity }

func (f *fakeCache) WritePopularity(_ context.Context, _ types.Episode, pop types.Popularity) error {
	f.written = append(f.written, pop)
	return nil
}

func TestFetchingPopularity(t *testing.T) {
	cache := &fakeCache{}
	want := types.Popularity{ViewCount: 7}
	got, err := fetchingPopularity{remote: fakeRemote{pop: want}, cache: cache}.Popularity(context.Background(), types.Episode{ID: "v"})
	if err != nil {
		t.Fatalf("popularity: %v", err)
	}
	if got.ViewCount != 7 || len(cache.written) != 1 {
		t.Fatalf("expected fetched popularity to be cached, got %+v / %+v", got, cache.written)
	}

	boom := errors.New("boom")
	cache = &fakeCache{}
	if _, err := (fetchingPopularity{remote: fakeRemote{err: boom}, cache: cache}).Popularity(context.Background(), types.Episode{}); !errors.Is(err, boom) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if len(cache.written) != 0 {
		t.Fatal("nothing should be cached on failure")
	}
}

func TestSelectEpisodes(t *testing.T) {
	all := []types.Episode{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	if got := selectEpisodes(all, nil); len(got) != 3 {
		t.Fatalf("expected all episodes, got %+v", got)
	}
	got := selectEpisodes(all, []string{"c", "a"})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("expected catalog order preserved, got %+v", got)
	}
}

func readRecords(t *testing.T, out string) []types.Record {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(out, recordsFile))
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	var recs []types.Record
	if err := json.Unmarshal(b, &recs); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	return recs
}

func TestRun_ManyEpisodesConcurrently(t *testing.T) {
	data := t.TempDir()
	pop := `{"viewCount": 1, "heatmap": [{"start": 0, "end": 4, "value": 100}, {"start": 4, "end": 8, "value": 10}]}`
	const n = 60
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("Episode %d", i)
		base := fmt.Sprintf("S01E%02d_episode-%d", i, i)
		writeFixture(t, filepath.Join(data, "episodes", fmt.Sprintf("%02d.json", i)),
			fmt.Sprintf(`{"id":"vid%d","name":%q,"index":%d}`, i, name, i))
		writeFixture(t, filepath.Join(data, "subtitles", base+".vtt"), goodVTT)
		writeFixture(t, filepath.Join(data, "popularity", base+".json"), pop)
	}
	out := t.TempDir()

	sum, err := Run(context.Background(), Config{DataDir: data, OutDir: out, BucketCount: 5, Concurrency: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Episodes != n || sum.Failed != 0 || sum.Lines != 2*n {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if recs := readRecords(t, out); len(recs) != 2*n {
		t.Fatalf("expected %d records, got %d", 2*n, len(recs))
	}
}

func TestRun_SubsetKeepsOtherRecords(t *testing.T) {
	data := seedData(t)
	// Repair the third episode so the first run stores all of them.
	writeFixture(t, filepath.Join(data, "subtitles", "S01E03_casse.vtt"), goodVTT)
	out := t.TempDir()

	if _, err := Run(context.Background(), Config{DataDir: data, OutDir: out, BucketCount: 5, Concurrency: 2}); err != nil {
		t.Fatalf("full run: %v", err)
	}
	before := readRecords(t, out)
	if len(before) != 6 {
		t.Fatalf("expected 6 records, got %d", len(before))
	}

	if _, err := Run(context.Background(), Config{DataDir: data, OutDir: out, BucketCount: 5, Concurrency: 2, Episodes: []string{"vid2"}}); err != nil {
		t.Fatalf("subset run: %v", err)
	}
	if after := readRecords(t, out); len(after) != len(before) {
		t.Fatalf("subset run changed record count: before=%d after=%d", len(before), len(after))
	}

	// A later failure of the third episode leaves its earlier records alone.
	writeFixture(t, filepath.Join(data, "subtitles", "S01E03_casse.vtt"), "WEBVTT\n\nbroken\nx.\n")
	sum, err := Run(context.Background(), Config{DataDir: data, OutDir: out, BucketCount: 5, Concurrency: 2})
	if err == nil || sum.Failed != 1 {
		t.Fatalf("expected one failure, got %+v (%v)", sum, err)
	}
	after := readRecords(t, out)
	if len(after) != len(before) {
		t.Fatalf("failed episode dropped records: before=%d after=%d", len(before), len(after))
	}
	if after[len(after)-1].ObjectID != "S01E03_casse-005" {
		t.Fatalf("expected third episode records kept, last is %s", after[len(after)-1].ObjectID)
	}
}
