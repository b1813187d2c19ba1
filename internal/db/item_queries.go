package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"horse.fit/newsignal/internal/news"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// UpsertItem writes one item keyed by its canonical URL. An existing row only
// has its mutable fields refreshed; inserted reports whether a new row was created.
func (p *Pool) UpsertItem(ctx context.Context, item news.Item, now time.Time) (bool, error) {
	if strings.TrimSpace(item.SourceURL) == "" {
		return false, fmt.Errorf("item source url is required")
	}

	const q = `
INSERT INTO news.news_items (
	title,
	source_name,
	source_domain,
	source_url,
	fingerprint,
	snippet,
	category,
	published_at,
	feed_url,
	tier,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
ON CONFLICT (source_url) DO UPDATE
SET
	title = EXCLUDED.title,
	published_at = EXCLUDED.published_at,
	fingerprint = EXCLUDED.fingerprint,
	snippet = EXCLUDED.snippet,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)
`
	var inserted bool
	err := p.QueryRow(
		ctx,
		q,
		item.Title,
		item.SourceName,
		item.SourceDomain,
		item.SourceURL,
		item.Fingerprint,
		item.Snippet,
		item.Category,
		item.PublishedAt.UTC(),
		item.FeedURL,
		item.Tier,
		now.UTC(),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert item url=%q: %w", item.SourceURL, err)
	}
	return inserted, nil
}

// DeleteItemsPublishedBefore removes items that fell out of the retention window.
func (p *Pool) DeleteItemsPublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
DELETE FROM news.news_items
WHERE published_at < $1
`
	tag, err := p.Exec(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete items before=%s: %w", cutoff.UTC().Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// DeleteItemsMatchingTitles removes items whose title contains any keyword,
// compared case-insensitively.
func (p *Pool) DeleteItemsMatchingTitles(ctx context.Context, keywords []string) (int64, error) {
	q, args, err := titleKeywordDelete(keywords)
	if err != nil {
		return 0, fmt.Errorf("build title keyword delete: %w", err)
	}
	if q == "" {
		return 0, nil
	}
	tag, err := p.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("delete items by title keywords (%d): %w", len(args), err)
	}
	return tag.RowsAffected(), nil
}

// titleKeywordDelete returns an empty statement when no keyword is usable.
func titleKeywordDelete(keywords []string) (string, []any, error) {
	match := sq.Or{}
	for _, keyword := range keywords {
		trimmed := strings.TrimSpace(keyword)
		if trimmed == "" {
			continue
		}
		match = append(match, sq.ILike{"title": "%" + escapeLike(trimmed) + "%"})
	}
	if len(match) == 0 {
		return "", nil, nil
	}
	return psql.Delete("news.news_items").Where(match).ToSql()
}

// DeleteItemsByID removes an explicit id list.
func (p *Pool) DeleteItemsByID(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := p.Exec(ctx, `DELETE FROM news.news_items WHERE id IN ?`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete %d items by id: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}

// ListItemsSince returns items published at or after since, in arrival order.
func (p *Pool) ListItemsSince(ctx context.Context, since time.Time) ([]news.StoredItem, error) {
	const q = `
SELECT id, title, source_name, source_url, tier, published_at, created_at, dis_score
FROM news.news_items
WHERE published_at >= $1
ORDER BY created_at ASC, id ASC
`
	rows, err := p.Query(ctx, q, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query items since=%s: %w", since.UTC().Format(time.RFC3339), err)
	}
	defer rows.Close()

	items := make([]news.StoredItem, 0, 256)
	for rows.Next() {
		var item news.StoredItem
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.SourceName,
			&item.SourceURL,
			&item.Tier,
			&item.PublishedAt,
			&item.CreatedAt,
			&item.DISScore,
		); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}
	return items, nil
}

// UpdateScores writes one batch of DIS values in a single statement.
func (p *Pool) UpdateScores(ctx context.Context, scores []news.Score, at time.Time) error {
	if len(scores) == 0 {
		return nil
	}

	values := make([]string, 0, len(scores))
	args := make([]any, 0, len(scores)*2+1)
	args = append(args, at.UTC())
	for _, score := range scores {
		values = append(values, "(?::bigint, ?::smallint)")
		args = append(args, score.ItemID, score.DIS)
	}

	q := `
UPDATE news.news_items AS n
SET
	dis_score = v.dis,
	scored_at = ?
FROM (VALUES ` + strings.Join(values, ", ") + `) AS v(id, dis)
WHERE n.id = v.id
`
	if _, err := p.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("update %d scores: %w", len(scores), err)
	}
	return nil
}

// SignalItem is a scored item as exposed to downstream consumers.
type SignalItem struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	SourceName   string    `json:"source_name"`
	SourceDomain string    `json:"source_domain"`
	SourceURL    string    `json:"source_url"`
	Snippet      string    `json:"snippet,omitempty"`
	Category     string    `json:"category"`
	Tier         int       `json:"tier"`
	PublishedAt  time.Time `json:"published_at"`
	DISScore     int       `json:"dis_score"`
	ScoredAt     time.Time `json:"scored_at"`
}

// SignalFilter narrows ListSignals. Zero values leave a dimension open.
type SignalFilter struct {
	MinDIS   int
	Limit    int
	Tier     int
	Category string
}

// ListSignals returns scored items with dis_score >= MinDIS, highest first.
func (p *Pool) ListSignals(ctx context.Context, filter SignalFilter) ([]SignalItem, error) {
	if filter.Limit <= 0 {
		return nil, nil
	}

	q, args, err := signalsQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build signals query: %w", err)
	}
	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals min_dis=%d: %w", filter.MinDIS, err)
	}
	defer rows.Close()

	items := make([]SignalItem, 0, filter.Limit)
	for rows.Next() {
		var item SignalItem
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.SourceName,
			&item.SourceDomain,
			&item.SourceURL,
			&item.Snippet,
			&item.Category,
			&item.Tier,
			&item.PublishedAt,
			&item.DISScore,
			&item.ScoredAt,
		); err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return items, nil
}

func signalsQuery(filter SignalFilter) (string, []any, error) {
	query := psql.
		Select("id", "title", "source_name", "source_domain", "source_url", "snippet", "category", "tier", "published_at", "dis_score", "scored_at").
		From("news.news_items").
		Where(sq.NotEq{"dis_score": nil}).
		Where(sq.GtOrEq{"dis_score": filter.MinDIS}).
		OrderBy("dis_score DESC", "published_at DESC", "id ASC").
		Limit(uint64(filter.Limit))
	if filter.Tier > 0 {
		query = query.Where(sq.Eq{"tier": filter.Tier})
	}
	if category := strings.TrimSpace(strings.ToLower(filter.Category)); category != "" {
		query = query.Where(sq.Eq{"category": category})
	}
	return query.ToSql()
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
