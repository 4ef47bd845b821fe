package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forPelevin/linerank/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

var (
	ErrSchemaMismatch = errors.New("schema version mismatch")
	ErrNotFound       = errors.New("episode not found")
)

// Store keeps episodes and their scored lines in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// EpisodeSummary is one row of the episodes table plus its line count.
type EpisodeSummary struct {
	Episode    types.Episode
	ViewCount  int64
	LineCount  int
	UpdatedAt  time.Time
	HeatmapLen int
}

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; concurrent SaveEpisode calls queue on the pool.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// pragmas are applied by the driver to every new connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild it)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// SaveEpisode upserts the episode and replaces all of its lines in one
// transaction.
func (s *Store) SaveEpisode(ctx context.Context, ep types.Episode, pop types.Popularity, lines []types.ScoredLine) error {
	heatmap := pop.Heatmap
	if heatmap == nil {
		heatmap = []types.HeatmapSegment{}
	}
	heatmapJSON, err := json.Marshal(heatmap)
	if err != nil {
		return fmt.Errorf("marshal heatmap: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO episodes (
            video_id, name, slug, season, episode_index, age_restricted,
            view_count, like_count, comment_count, heatmap_json, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(video_id) DO UPDATE SET
            name = excluded.name,
            slug = excluded.slug,
            season = excluded.season,
            episode_index = excluded.episode_index,
            age_restricted = excluded.age_restricted,
            view_count = excluded.view_count,
            like_count = excluded.like_count,
            comment_count = excluded.comment_count,
            heatmap_json = excluded.heatmap_json,
            updated_at = excluded.updated_at`,
		ep.ID, ep.Name, ep.Slug, ep.Season, ep.Index, boolToInt(ep.IsAgeRestricted),
		pop.ViewCount, pop.LikeCount, pop.CommentCount, string(heatmapJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert episode %s: %w", ep.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM lines WHERE video_id = ?", ep.ID); err != nil {
		return fmt.Errorf("clear lines %s: %w", ep.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO lines (
            video_id, line_index, start_sec, end_sec, content, heat_value, most_replayed_score
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare line insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range lines {
		if _, err := stmt.ExecContext(ctx, ep.ID, l.Index, l.Start, l.End, l.Content, l.HeatValue, l.MostReplayedScore); err != nil {
			return fmt.Errorf("insert line %d of %s: %w", l.Index, ep.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit episode %s: %w", ep.ID, err)
	}
	return nil
}

// Lines returns the stored lines of an episode in index order.
func (s *Store) Lines(ctx context.Context, videoID string) ([]types.ScoredLine, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM episodes WHERE video_id = ?", videoID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup episode: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%s: %w", videoID, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT line_index, start_sec, end_sec, content, heat_value, most_replayed_score
        FROM lines WHERE video_id = ? ORDER BY line_index`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var out []types.ScoredLine
	for rows.Next() {
		var l types.ScoredLine
		if err := rows.Scan(&l.Index, &l.Start, &l.End, &l.Content, &l.HeatValue, &l.MostReplayedScore); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Episodes lists stored episodes ordered by season and index.
func (s *Store) Episodes(ctx context.Context) ([]EpisodeSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.video_id, e.name, e.slug, e.season, e.episode_index, e.age_restricted,
                e.view_count, e.heatmap_json, e.updated_at,
                (SELECT COUNT(1) FROM lines l WHERE l.video_id = e.video_id)
        FROM episodes e ORDER BY e.season, e.episode_index`)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeSummary
	for rows.Next() {
		var (
			sum         EpisodeSummary
			restricted  int
			heatmapJSON string
			updated     string
		)
		if err := rows.Scan(
			&sum.Episode.ID, &sum.Episode.Name, &sum.Episode.Slug, &sum.Episode.Season, &sum.Episode.Index,
			&restricted, &sum.ViewCount, &heatmapJSON, &updated, &sum.LineCount,
		); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		sum.Episode.IsAgeRestricted = restricted != 0
		var heatmap []types.HeatmapSegment
		if err := json.Unmarshal([]byte(heatmapJSON), &heatmap); err != nil {
			return nil, fmt.Errorf("decode heatmap of %s: %w", sum.Episode.ID, err)
		}
		sum.HeatmapLen = len(heatmap)
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			sum.UpdatedAt = t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// StoredEpisode is an episode with the popularity and lines saved for it.
type StoredEpisode struct {
	Episode    types.Episode
	Popularity types.Popularity
	Lines      []types.ScoredLine
}

// Snapshot returns every stored episode with its lines, ordered by season
// and index.
func (s *Store) Snapshot(ctx context.Context) ([]StoredEpisode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, name, slug, season, episode_index, age_restricted,
                view_count, like_count, comment_count, heatmap_json
        FROM episodes ORDER BY season, episode_index, video_id`)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}

	var out []StoredEpisode
	byID := map[string]int{}
	for rows.Next() {
		var (
			se          StoredEpisode
			restricted  int
			heatmapJSON string
		)
		if err := rows.Scan(
			&se.Episode.ID, &se.Episode.Name, &se.Episode.Slug, &se.Episode.Season, &se.Episode.Index, &restricted,
			&se.Popularity.ViewCount, &se.Popularity.LikeCount, &se.Popularity.CommentCount, &heatmapJSON,
		); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		se.Episode.IsAgeRestricted = restricted != 0
		if err := json.Unmarshal([]byte(heatmapJSON), &se.Popularity.Heatmap); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode heatmap of %s: %w", se.Episode.ID, err)
		}
		byID[se.Episode.ID] = len(out)
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	lrows, err := s.db.QueryContext(ctx,
		`SELECT video_id, line_index, start_sec, end_sec, content, heat_value, most_replayed_score
        FROM lines ORDER BY video_id, line_index`)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer lrows.Close()
	for lrows.Next() {
		var (
			id string
			l  types.ScoredLine
		)
		if err := lrows.Scan(&id, &l.Index, &l.Start, &l.End, &l.Content, &l.HeatValue, &l.MostReplayedScore); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		if i, ok := byID[id]; ok {
			out[i].Lines = append(out[i].Lines, l)
		}
	}
	return out, lrows.Err()
}
