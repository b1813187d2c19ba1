package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/news"
)

func TestGroupKeyIgnoresOutletSuffixAndWordOrder(t *testing.T) {
	t.Parallel()

	a := GroupKey("Arsenal beat Chelsea 3-1 in thriller")
	b := GroupKey("Chelsea beat Arsenal 3-1 in thriller — Sky Sports")
	if a != b {
		t.Fatalf("expected matching keys, got %q and %q", a, b)
	}
	if a != "arsenal beat chelsea thriller" {
		t.Fatalf("unexpected key: %q", a)
	}
}

func TestGroupKeySeparators(t *testing.T) {
	t.Parallel()

	base := GroupKey("Government unveils housing strategy")
	for _, title := range []string{
		"Government unveils housing strategy - Reuters",
		"Government unveils housing strategy | BBC News",
		"Government unveils housing strategy – The Guardian",
		"Government unveils housing strategy—AP",
	} {
		if got := GroupKey(title); got != base {
			t.Fatalf("title %q: got key %q want %q", title, got, base)
		}
	}
}

func TestGroupKeyKeepsFirstEightTokens(t *testing.T) {
	t.Parallel()

	got := GroupKey("alpha bravo charlie delta echoes foxtrot golfer hotel indigo juliet")
	want := "alpha bravo charlie delta echoes foxtrot golfer hotel"
	if got != want {
		t.Fatalf("unexpected key: got %q want %q", got, want)
	}
	if GroupKey("Up to me, is it?") != "" {
		t.Fatalf("expected short-word title to have empty key")
	}
}

func TestSurvivorPrefersTierThenRecency(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	group := Group{Items: []news.StoredItem{
		{ID: 1, Tier: 2, PublishedAt: now},
		{ID: 2, Tier: 1, PublishedAt: now.Add(-2 * time.Hour)},
		{ID: 3, Tier: 1, PublishedAt: now.Add(-time.Hour)},
		{ID: 4, Tier: 1, PublishedAt: now.Add(-time.Hour)},
	}}
	if got := group.Survivor().ID; got != 3 {
		t.Fatalf("expected item 3 to survive, got %d", got)
	}
	if got := len(group.Duplicates()); got != 3 {
		t.Fatalf("expected three duplicates, got %d", got)
	}
}

type memStore struct {
	items     []news.StoredItem
	deleted   []int64
	deleteErr error
}

func (s *memStore) ListItemsSince(_ context.Context, since time.Time) ([]news.StoredItem, error) {
	out := make([]news.StoredItem, 0, len(s.items))
	for _, item := range s.items {
		if !item.PublishedAt.Before(since) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *memStore) DeleteItemsByID(_ context.Context, ids []int64) (int64, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	s.deleted = append(s.deleted, ids...)
	return int64(len(ids)), nil
}

func TestRunCollapsesCrossSourceDuplicates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := &memStore{items: []news.StoredItem{
		{ID: 10, Title: "Arsenal beat Chelsea 3-1 in thriller", SourceName: "Tier2 Daily", Tier: 2, PublishedAt: now.Add(-time.Hour)},
		{ID: 11, Title: "Chelsea beat Arsenal 3-1 in thriller — Sky Sports", SourceName: "Sky Sports", Tier: 1, PublishedAt: now.Add(-2 * time.Hour)},
		{ID: 12, Title: "Unrelated budget story", SourceName: "Wire", Tier: 1, PublishedAt: now},
		{ID: 13, Title: "Arsenal beat Chelsea 3-1 in thriller", SourceName: "Old", Tier: 1, PublishedAt: now.Add(-30 * time.Hour)},
	}}

	res, err := NewDeduplicator(store, zerolog.Nop(), 0).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run dedup: %v", err)
	}
	if res.Removed != 1 || res.Groups != 1 || res.Considered != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 10 {
		t.Fatalf("expected tier-2 copy to be deleted, got %v", store.deleted)
	}
}

func TestRunKeepsGoingWhenDeleteFails(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := &memStore{
		deleteErr: errors.New("lock timeout on one row"),
		items: []news.StoredItem{
			{ID: 1, Title: "Harbour strike enters second week", Tier: 1, PublishedAt: now},
			{ID: 2, Title: "Harbour strike enters second week - Wire", Tier: 2, PublishedAt: now},
		},
	}
	res, err := NewDeduplicator(store, zerolog.Nop(), 0).Run(context.Background(), now)
	if err != nil {
		t.Fatalf("expected delete failure to be reported in the result, got %v", err)
	}
	if res.Removed != 0 || res.Groups != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.DeleteErr == nil || !errors.Is(res.DeleteErr, store.deleteErr) {
		t.Fatalf("expected wrapped delete error, got %v", res.DeleteErr)
	}
}
