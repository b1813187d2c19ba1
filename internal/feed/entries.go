package feed

import (
	"sort"
	"strings"
	"time"

	"horse.fit/newsignal/internal/news"
)

// NormalizeOptions bounds which entries of one source survive.
type NormalizeOptions struct {
	MaxEntries int
	MaxAge     time.Duration
	Filter     *Filter
}

// NormalizeStats counts why entries were dropped.
type NormalizeStats struct {
	Parsed     int
	NoDate     int
	Truncated  int
	TooOld     int
	Irrelevant int
	BadLink    int
	Kept       int
}

// Normalize turns one source's raw entries into storable items: undated
// entries go first, then everything past the newest MaxEntries, then entries
// older than MaxAge, then titles the filter rejects.
func Normalize(src news.Source, entries []Entry, now time.Time, opts NormalizeOptions) ([]news.Item, NormalizeStats) {
	stats := NormalizeStats{Parsed: len(entries)}

	dated := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Published == nil || entry.Published.IsZero() {
			stats.NoDate++
			continue
		}
		dated = append(dated, entry)
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].Published.After(*dated[j].Published)
	})
	if opts.MaxEntries > 0 && len(dated) > opts.MaxEntries {
		stats.Truncated = len(dated) - opts.MaxEntries
		dated = dated[:opts.MaxEntries]
	}

	cutoff := now.Add(-opts.MaxAge)
	items := make([]news.Item, 0, len(dated))
	for _, entry := range dated {
		published := entry.Published.UTC()
		if opts.MaxAge > 0 && published.Before(cutoff) {
			stats.TooOld++
			continue
		}

		title := strings.Join(strings.Fields(entry.Title), " ")
		if title == "" || !opts.Filter.Allows(title) {
			stats.Irrelevant++
			continue
		}

		canonical, err := CanonicalURL(entry.Link)
		if err != nil {
			stats.BadLink++
			continue
		}

		body := entry.Description
		if strings.TrimSpace(body) == "" {
			body = entry.Content
		}

		items = append(items, news.Item{
			Title:        title,
			SourceName:   src.Name,
			SourceDomain: SourceDomain(canonical),
			SourceURL:    canonical,
			Fingerprint:  Fingerprint(title, src.Name),
			Snippet:      Snippet(body),
			Category:     src.Category,
			PublishedAt:  published,
			FeedURL:      src.URL,
			Tier:         src.Tier,
		})
	}
	stats.Kept = len(items)
	return items, stats
}
