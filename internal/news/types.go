// Package news holds the records that flow between pipeline phases.
package news

import "time"

// Tier bounds. Tier 1 is the most authoritative.
const (
	MinTier = 1
	MaxTier = 3
)

// Source is a polled syndication origin as read from the registry.
type Source struct {
	ID            int64
	Name          string
	URL           string
	Tier          int
	Category      string
	Active        bool
	LastFetchedAt *time.Time
	ItemCount     int64
	ErrorCount    int64
}

// ValidTier reports whether tier is one of 1, 2 or 3.
func ValidTier(tier int) bool {
	return tier >= MinTier && tier <= MaxTier
}

// Item is a normalized feed entry ready to be upserted.
// SourceURL is the canonical URL and the storage identity.
type Item struct {
	Title        string
	SourceName   string
	SourceDomain string
	SourceURL    string
	Fingerprint  string
	Snippet      string
	Category     string
	PublishedAt  time.Time
	FeedURL      string
	Tier         int
}

// StoredItem is the slice of a persisted item that dedup and scoring read.
type StoredItem struct {
	ID          int64
	Title       string
	SourceName  string
	SourceURL   string
	Tier        int
	PublishedAt time.Time
	CreatedAt   time.Time
	DISScore    *int
}

// Score is one computed DIS value for a stored item.
type Score struct {
	ItemID int64
	DIS    int
}
