// Package dedup collapses the same story reported by several sources into
// the copy from the most authoritative, freshest source.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/logging"
	"horse.fit/newsignal/internal/news"
)

const (
	DefaultWindow = 24 * time.Hour

	keyTokenMinLen = 4
	keyTokenLimit  = 8
)

// Outlet suffixes like "Headline - Reuters" or "Headline | BBC".
var titleSeparators = []string{" - ", " – ", " — ", " | ", "—", "–"}

type Store interface {
	ListItemsSince(ctx context.Context, since time.Time) ([]news.StoredItem, error)
	DeleteItemsByID(ctx context.Context, ids []int64) (int64, error)
}

// GroupKey reduces a headline to an order-insensitive bag of its first eight
// significant words. An empty key means the title cannot be grouped.
func GroupKey(title string) string {
	lower := strings.ToLower(title)
	cut := len(lower)
	for _, sep := range titleSeparators {
		if idx := strings.Index(lower, sep); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	lower = lower[:cut]

	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, lower)

	tokens := make([]string, 0, keyTokenLimit)
	for _, field := range strings.Fields(stripped) {
		if len([]rune(field)) < keyTokenMinLen {
			continue
		}
		tokens = append(tokens, field)
		if len(tokens) == keyTokenLimit {
			break
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Group is a set of items sharing one key.
type Group struct {
	Key   string
	Items []news.StoredItem
}

// Survivor is the item kept from the group: lowest tier, then newest, then
// lowest id.
func (g Group) Survivor() news.StoredItem {
	ranked := g.ranked()
	return ranked[0]
}

// Duplicates are every item other than the survivor.
func (g Group) Duplicates() []news.StoredItem {
	ranked := g.ranked()
	return ranked[1:]
}

func (g Group) ranked() []news.StoredItem {
	ranked := append([]news.StoredItem(nil), g.Items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})
	return ranked
}

// BuildGroups buckets items by GroupKey and returns only groups with more
// than one member, in order of each group's first appearance.
func BuildGroups(items []news.StoredItem) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, item := range items {
		key := GroupKey(item.Title)
		if key == "" {
			continue
		}
		if idx, ok := index[key]; ok {
			groups[idx].Items = append(groups[idx].Items, item)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{Key: key, Items: []news.StoredItem{item}})
	}

	out := groups[:0]
	for _, group := range groups {
		if len(group.Items) > 1 {
			out = append(out, group)
		}
	}
	return out
}

// Result of one dedup pass. A failed delete leaves Removed at zero and sets
// DeleteErr; the rows are retried on the next invocation.
type Result struct {
	Considered int
	Groups     int
	Removed    int64
	DeleteErr  error
}

type Deduplicator struct {
	store  Store
	logger zerolog.Logger
	window time.Duration
}

func NewDeduplicator(store Store, logger zerolog.Logger, window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Deduplicator{store: store, logger: logger, window: window}
}

// Run collapses duplicate groups among items published within the window.
// Only a failed candidate read is returned as an error.
func (d *Deduplicator) Run(ctx context.Context, now time.Time) (Result, error) {
	logger := logging.ForRun(ctx, d.logger)

	items, err := d.store.ListItemsSince(ctx, now.Add(-d.window))
	if err != nil {
		return Result{}, fmt.Errorf("load dedup candidates: %w", err)
	}

	groups := BuildGroups(items)
	res := Result{Considered: len(items), Groups: len(groups)}
	if len(groups) == 0 {
		return res, nil
	}

	ids := make([]int64, 0, len(groups))
	for _, group := range groups {
		survivor := group.Survivor()
		for _, dup := range group.Duplicates() {
			ids = append(ids, dup.ID)
		}
		logger.Debug().
			Str("key", group.Key).
			Int64("survivor_id", survivor.ID).
			Str("survivor_source", survivor.SourceName).
			Int("duplicates", len(group.Items)-1).
			Msg("collapsed duplicate group")
	}

	removed, err := d.store.DeleteItemsByID(ctx, ids)
	if err != nil {
		res.DeleteErr = fmt.Errorf("delete %d duplicates: %w", len(ids), err)
		logger.Error().Err(err).Int("duplicates", len(ids)).Msg("duplicate delete failed")
		return res, nil
	}
	res.Removed = removed
	return res, nil
}
