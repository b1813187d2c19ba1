package feed

import "strings"

// DefaultExcludeKeywords rejects titles before they are stored: sports outside
// the desk's beat, betting and fantasy noise, podcasts, and stream spam.
var DefaultExcludeKeywords = []string{
	"cricket",
	"rugby",
	"nfl",
	"nba",
	"golf",
	"tennis",
	"formula 1",
	"boxing",
	"ufc",
	"baseball",
	"betting",
	"best bets",
	"odds",
	"accumulator",
	"fantasy",
	"podcast",
	"live stream",
	"livestream",
	"how to watch",
	"where to watch",
	"tv channel",
}

// DefaultCleanupKeywords drives the retention sweep's keyword delete. It
// catches items whose upstream category metadata let them past the filter.
var DefaultCleanupKeywords = []string{
	"cricket",
	"rugby",
	"nfl",
	"wnba",
	"mlb",
	"nhl",
	"golf",
	"tennis",
	"formula one",
	"grand prix",
	"horse racing",
	"darts",
	"snooker",
	"podcast",
}

// Filter is the keyword relevance gate applied to titles.
type Filter struct {
	keywords []string
}

// NewFilter lowercases and dedupes keywords. Empty entries are ignored.
func NewFilter(keywords ...[]string) *Filter {
	seen := make(map[string]struct{})
	merged := make([]string, 0, len(DefaultExcludeKeywords))
	for _, list := range keywords {
		for _, keyword := range list {
			normalized := strings.ToLower(strings.TrimSpace(keyword))
			if normalized == "" {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			merged = append(merged, normalized)
		}
	}
	return &Filter{keywords: merged}
}

// Allows reports whether title contains none of the keywords, ignoring case.
func (f *Filter) Allows(title string) bool {
	return f.Match(title) == ""
}

// Match returns the first keyword found in title, or "".
func (f *Filter) Match(title string) string {
	if f == nil {
		return ""
	}
	lower := strings.ToLower(title)
	for _, keyword := range f.keywords {
		if strings.Contains(lower, keyword) {
			return keyword
		}
	}
	return ""
}

// Keywords returns a copy of the normalized keyword list.
func (f *Filter) Keywords() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keywords))
	copy(out, f.keywords)
	return out
}
