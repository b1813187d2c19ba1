package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"horse.fit/newsignal/internal/news"
)

const sourceColumns = `id, name, url, tier, category, active, last_fetched_at, item_count, error_count`

// ListStaleSources returns active sources in the given tiers, least recently
// fetched first. Never-fetched sources sort ahead of everything else.
func (p *Pool) ListStaleSources(ctx context.Context, tiers []int, limit int) ([]news.Source, error) {
	if len(tiers) == 0 || limit <= 0 {
		return nil, nil
	}

	q := `
SELECT ` + sourceColumns + `
FROM news.feed_sources
WHERE active
  AND tier IN ?
ORDER BY last_fetched_at ASC NULLS FIRST, id ASC
LIMIT ?
`
	rows, err := p.Query(ctx, q, tiers, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale sources tiers=%v: %w", tiers, err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ListSources returns every registry row ordered by tier then name.
func (p *Pool) ListSources(ctx context.Context) ([]news.Source, error) {
	q := `
SELECT ` + sourceColumns + `
FROM news.feed_sources
ORDER BY tier ASC, name ASC, id ASC
`
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

func scanSources(rows *Rows) ([]news.Source, error) {
	sources := make([]news.Source, 0, 16)
	for rows.Next() {
		var src news.Source
		if err := rows.Scan(
			&src.ID,
			&src.Name,
			&src.URL,
			&src.Tier,
			&src.Category,
			&src.Active,
			&src.LastFetchedAt,
			&src.ItemCount,
			&src.ErrorCount,
		); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source rows: %w", err)
	}
	return sources, nil
}

// RecordSourceSuccess stamps a successful poll: the error streak resets and
// the cumulative item count grows by the newly inserted items only.
func (p *Pool) RecordSourceSuccess(ctx context.Context, sourceID int64, inserted int, at time.Time) error {
	const q = `
UPDATE news.feed_sources
SET
	last_fetched_at = $2,
	item_count = item_count + $3,
	error_count = 0,
	updated_at = $2
WHERE id = $1
`
	if _, err := p.Exec(ctx, q, sourceID, at.UTC(), inserted); err != nil {
		return fmt.Errorf("record source success id=%d: %w", sourceID, err)
	}
	return nil
}

// RecordSourceFailure bumps the error count. The active flag is left alone.
func (p *Pool) RecordSourceFailure(ctx context.Context, sourceID int64, at time.Time) error {
	const q = `
UPDATE news.feed_sources
SET
	last_fetched_at = $2,
	error_count = error_count + 1,
	updated_at = $2
WHERE id = $1
`
	if _, err := p.Exec(ctx, q, sourceID, at.UTC()); err != nil {
		return fmt.Errorf("record source failure id=%d: %w", sourceID, err)
	}
	return nil
}

// SourceSeed is one registry entry from an import file.
type SourceSeed struct {
	Name     string
	URL      string
	Tier     int
	Category string
	Active   bool
}

// UpsertSource creates or updates registry metadata keyed by feed URL.
// Fetch counters are never touched here.
func (p *Pool) UpsertSource(ctx context.Context, seed SourceSeed, now time.Time) (bool, error) {
	url := strings.TrimSpace(seed.URL)
	if url == "" {
		return false, fmt.Errorf("source url is required")
	}
	if !news.ValidTier(seed.Tier) {
		return false, fmt.Errorf("source %q has invalid tier %d", url, seed.Tier)
	}
	category := strings.TrimSpace(strings.ToLower(seed.Category))
	if category == "" {
		category = "general"
	}

	const q = `
INSERT INTO news.feed_sources (name, url, tier, category, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (url) DO UPDATE
SET
	name = EXCLUDED.name,
	tier = EXCLUDED.tier,
	category = EXCLUDED.category,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)
`
	var inserted bool
	if err := p.QueryRow(ctx, q, strings.TrimSpace(seed.Name), url, seed.Tier, category, seed.Active, now.UTC()).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert source url=%q: %w", url, err)
	}
	return inserted, nil
}
