// Package schedule decides which source tiers an invocation polls and how many
// sources it may take.
package schedule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"horse.fit/newsignal/internal/news"
)

// Override is an explicit tier selection supplied by the trigger.
type Override struct {
	Tiers []int
	All   bool
}

// Caps bounds the number of sources polled per run.
type Caps struct {
	Routine int
	Sweep   int
}

// Plan is the scheduler's decision for one invocation.
type Plan struct {
	Tiers []int
	Limit int
}

// ParseOverride accepts "", "1", "1,2", "1,2,3" or "all".
// An empty value returns nil: tier selection then falls back to the clock.
func ParseOverride(raw string) (*Override, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return nil, nil
	}
	if trimmed == "all" {
		return &Override{Tiers: []int{1, 2, 3}, All: true}, nil
	}

	seen := make(map[int]struct{}, 3)
	tiers := make([]int, 0, 3)
	for _, part := range strings.Split(trimmed, ",") {
		value := strings.TrimSpace(part)
		tier, err := strconv.Atoi(value)
		if err != nil || !news.ValidTier(tier) {
			return nil, fmt.Errorf("invalid tier %q: expected 1, 1,2 or all", value)
		}
		if _, dup := seen[tier]; dup {
			continue
		}
		seen[tier] = struct{}{}
		tiers = append(tiers, tier)
	}
	slices.Sort(tiers)

	switch {
	case slices.Equal(tiers, []int{1}), slices.Equal(tiers, []int{1, 2}):
		return &Override{Tiers: tiers}, nil
	case slices.Equal(tiers, []int{1, 2, 3}):
		return &Override{Tiers: tiers, All: true}, nil
	default:
		return nil, fmt.Errorf("unsupported tier override %q: expected 1, 1,2 or all", raw)
	}
}

// TiersForMinute is the clock-driven selection: every fifth minute sweeps all
// tiers, every third minute adds tier 2, otherwise only tier 1 is polled.
func TiersForMinute(minute int) []int {
	switch {
	case minute%5 == 0:
		return []int{1, 2, 3}
	case minute%3 == 0:
		return []int{1, 2}
	default:
		return []int{1}
	}
}

// Decide builds the plan for an invocation at now. The larger sweep cap only
// applies when the caller explicitly asked for every tier.
func Decide(now time.Time, override *Override, caps Caps) Plan {
	if override != nil {
		limit := caps.Routine
		if override.All {
			limit = caps.Sweep
		}
		return Plan{Tiers: slices.Clone(override.Tiers), Limit: limit}
	}
	return Plan{Tiers: TiersForMinute(now.Minute()), Limit: caps.Routine}
}

// Label renders the plan's tiers for logs and summaries, e.g. "1,2".
func (p Plan) Label() string {
	parts := make([]string, 0, len(p.Tiers))
	for _, tier := range p.Tiers {
		parts = append(parts, strconv.Itoa(tier))
	}
	return strings.Join(parts, ",")
}
