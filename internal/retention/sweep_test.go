package retention

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type memItem struct {
	title     string
	published time.Time
}

type memStore struct {
	items       []memItem
	failExpired bool
	failKeyword bool
}

func (s *memStore) DeleteItemsPublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if s.failExpired {
		return 0, errors.New("connection reset")
	}
	kept := s.items[:0]
	var removed int64
	for _, item := range s.items {
		if item.published.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return removed, nil
}

func (s *memStore) DeleteItemsMatchingTitles(_ context.Context, keywords []string) (int64, error) {
	if s.failKeyword {
		return 0, errors.New("statement timeout")
	}
	kept := s.items[:0]
	var removed int64
	for _, item := range s.items {
		lower := strings.ToLower(item.title)
		match := false
		for _, keyword := range keywords {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				match = true
				break
			}
		}
		if match {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return removed, nil
}

func TestSweepBoundaryAtWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := &memStore{items: []memItem{
		{title: "Inside window", published: now.Add(-(47*time.Hour + 59*time.Minute))},
		{title: "Outside window", published: now.Add(-(48*time.Hour + time.Minute))},
	}}

	res := NewSweeper(store, zerolog.Nop(), 0, nil).Sweep(context.Background(), now)
	if res.Expired != 1 {
		t.Fatalf("expected one expired item, got %d", res.Expired)
	}
	if len(store.items) != 1 || store.items[0].title != "Inside window" {
		t.Fatalf("unexpected survivors: %+v", store.items)
	}
}

func TestSweepRemovesCleanupKeywords(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := &memStore{items: []memItem{
		{title: "Snooker final goes to decider", published: now},
		{title: "Senate confirms new envoy", published: now},
	}}

	res := NewSweeper(store, zerolog.Nop(), 48*time.Hour, []string{"SNOOKER"}).Sweep(context.Background(), now)
	if res.KeywordRemoved != 1 || res.Removed() != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSweepIsBestEffort(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := &memStore{
		failExpired: true,
		items:       []memItem{{title: "Darts night recap", published: now}},
	}

	res := NewSweeper(store, zerolog.Nop(), 0, []string{"darts"}).Sweep(context.Background(), now)
	if res.ExpiredErr == nil {
		t.Fatalf("expected expired delete error to be reported")
	}
	if res.KeywordRemoved != 1 {
		t.Fatalf("expected keyword delete to run after expired delete failed, got %+v", res)
	}
}
