// Package ingest polls the scheduled sources concurrently and writes their
// surviving entries to the item store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/newsignal/internal/feed"
	"horse.fit/newsignal/internal/logging"
	"horse.fit/newsignal/internal/news"
)

const (
	DefaultConcurrency = 16
	DefaultMaxEntries  = 15
	DefaultMaxAge      = 48 * time.Hour
)

// Store is the slice of the registry and item store ingest writes to.
type Store interface {
	UpsertItem(ctx context.Context, item news.Item, now time.Time) (bool, error)
	RecordSourceSuccess(ctx context.Context, sourceID int64, inserted int, at time.Time) error
	RecordSourceFailure(ctx context.Context, sourceID int64, at time.Time) error
}

type Options struct {
	Concurrency int
	MaxEntries  int
	MaxAge      time.Duration
	Filter      *feed.Filter
}

type Service struct {
	store   Store
	fetcher feed.Fetcher
	logger  zerolog.Logger
	opts    Options
}

// SourceOutcome is what happened to one polled source.
type SourceOutcome struct {
	Source     news.Source
	Inserted   int
	Refreshed  int
	ItemErrors int
	Stats      feed.NormalizeStats
	Err        error
}

type Result struct {
	SourcesPolled  int
	NewItems       int
	RefreshedItems int
	SourceErrors   int
	ItemErrors     int
	Outcomes       []SourceOutcome
}

type fetched struct {
	items []news.Item
	stats feed.NormalizeStats
	err   error
}

func NewService(store Store, fetcher feed.Fetcher, logger zerolog.Logger, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	return &Service{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		opts:    opts,
	}
}

// Run polls every source, then persists them one source at a time. A failing
// source or item is counted and skipped; it never aborts the batch.
func (s *Service) Run(ctx context.Context, sources []news.Source, now time.Time) (Result, error) {
	if s == nil || s.store == nil || s.fetcher == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	results := s.fetchAll(ctx, sources, now)

	out := Result{
		SourcesPolled: len(sources),
		Outcomes:      make([]SourceOutcome, 0, len(sources)),
	}
	for i, src := range sources {
		outcome := s.persistSource(ctx, src, results[i], now)
		out.NewItems += outcome.Inserted
		out.RefreshedItems += outcome.Refreshed
		out.ItemErrors += outcome.ItemErrors
		if outcome.Err != nil {
			out.SourceErrors++
		}
		out.Outcomes = append(out.Outcomes, outcome)
	}

	return out, nil
}

// fetchAll waits for every source's outcome. Tasks never return an error to
// the group, so one failure cannot cancel its siblings.
func (s *Service) fetchAll(ctx context.Context, sources []news.Source, now time.Time) []fetched {
	results := make([]fetched, len(sources))

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			entries, err := s.fetcher.Fetch(ctx, src)
			if err != nil {
				results[i] = fetched{err: err}
				return nil
			}
			items, stats := feed.Normalize(src, entries, now, feed.NormalizeOptions{
				MaxEntries: s.opts.MaxEntries,
				MaxAge:     s.opts.MaxAge,
				Filter:     s.opts.Filter,
			})
			results[i] = fetched{items: items, stats: stats}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) persistSource(ctx context.Context, src news.Source, res fetched, now time.Time) SourceOutcome {
	logger := logging.ForRun(ctx, s.logger).With().Int64("source_id", src.ID).Str("source", src.Name).Int("tier", src.Tier).Logger()
	outcome := SourceOutcome{Source: src, Stats: res.stats}

	if res.err != nil {
		outcome.Err = res.err
		var fetchErr *feed.FetchError
		logger.Warn().
			Err(res.err).
			Bool("timeout", errors.As(res.err, &fetchErr) && fetchErr.Timeout()).
			Msg("source fetch failed")
		if err := s.store.RecordSourceFailure(ctx, src.ID, now); err != nil {
			logger.Error().Err(err).Msg("record source failure failed")
		}
		return outcome
	}

	for _, item := range res.items {
		inserted, err := s.store.UpsertItem(ctx, item, now)
		if err != nil {
			outcome.ItemErrors++
			logger.Warn().Err(err).Str("url", item.SourceURL).Msg("item upsert failed")
			continue
		}
		if inserted {
			outcome.Inserted++
		} else {
			outcome.Refreshed++
		}
	}

	if err := s.store.RecordSourceSuccess(ctx, src.ID, outcome.Inserted, now); err != nil {
		logger.Error().Err(err).Msg("record source success failed")
	}

	logger.Debug().
		Int("parsed", res.stats.Parsed).
		Int("kept", res.stats.Kept).
		Int("inserted", outcome.Inserted).
		Int("refreshed", outcome.Refreshed).
		Int("item_errors", outcome.ItemErrors).
		Msg("source ingested")
	return outcome
}
