// Package pipeline runs one ingest invocation end to end: schedule, fetch,
// upsert, retention, cross-source dedup, scoring and signal hand-off.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/dedup"
	"horse.fit/newsignal/internal/feed"
	"horse.fit/newsignal/internal/globaltime"
	"horse.fit/newsignal/internal/ingest"
	"horse.fit/newsignal/internal/logging"
	"horse.fit/newsignal/internal/news"
	"horse.fit/newsignal/internal/retention"
	"horse.fit/newsignal/internal/schedule"
	"horse.fit/newsignal/internal/scoring"
)

// Store is everything an invocation reads and writes. db.Pool satisfies it.
type Store interface {
	ListStaleSources(ctx context.Context, tiers []int, limit int) ([]news.Source, error)
	ingest.Store
	retention.Store
	dedup.Store
	scoring.Store
}

// Publisher hands high-DIS items to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, items []scoring.Scored) (int, error)
}

type Options struct {
	Caps            schedule.Caps
	Ingest          ingest.Options
	RetentionWindow time.Duration
	CleanupKeywords []string
	DedupWindow     time.Duration
	Scoring         scoring.Options
	SignalMinDIS    int
}

// Summary is the end-of-run report returned to the trigger.
type Summary struct {
	RunID            string    `json:"run_id"`
	SourcesPolled    int       `json:"sources_polled"`
	NewItems         int       `json:"new_items"`
	Errors           int       `json:"errors"`
	DedupRemoved     int64     `json:"dedup_removed"`
	Timestamp        time.Time `json:"timestamp"`
	Tiers            []int     `json:"tiers"`
	ItemsRefreshed   int       `json:"items_refreshed"`
	RetentionRemoved int64     `json:"retention_removed"`
	KeywordRemoved   int64     `json:"keyword_removed"`
	Scored           int       `json:"scored"`
	SignalsPublished int       `json:"signals_published"`
	DurationMS       int64     `json:"duration_ms"`
}

type Pipeline struct {
	store     Store
	logger    zerolog.Logger
	opts      Options
	ingest    *ingest.Service
	sweeper   *retention.Sweeper
	dedup     *dedup.Deduplicator
	scorer    *scoring.Engine
	publisher Publisher
}

// New wires the phases. publisher may be nil.
func New(store Store, fetcher feed.Fetcher, logger zerolog.Logger, opts Options, publisher Publisher) *Pipeline {
	if opts.Caps.Routine <= 0 {
		opts.Caps.Routine = 10
	}
	if opts.Caps.Sweep < opts.Caps.Routine {
		opts.Caps.Sweep = max(50, opts.Caps.Routine)
	}
	if opts.Ingest.MaxAge <= 0 {
		opts.Ingest.MaxAge = opts.RetentionWindow
	}

	return &Pipeline{
		store:     store,
		logger:    logger,
		opts:      opts,
		ingest:    ingest.NewService(store, fetcher, logger.With().Str("phase", "ingest").Logger(), opts.Ingest),
		sweeper:   retention.NewSweeper(store, logger.With().Str("phase", "retention").Logger(), opts.RetentionWindow, opts.CleanupKeywords),
		dedup:     dedup.NewDeduplicator(store, logger.With().Str("phase", "dedup").Logger(), opts.DedupWindow),
		scorer:    scoring.NewEngine(store, logger.With().Str("phase", "scoring").Logger(), opts.Scoring),
		publisher: publisher,
	}
}

// Run executes one invocation. Each phase completes before the next starts.
// Only a phase that cannot read the store fails the run; per-source and
// per-item failures are counted in the summary, and failed hygiene deletes
// are logged and retried next time.
func (p *Pipeline) Run(ctx context.Context, override *schedule.Override) (Summary, error) {
	started := globaltime.UTC()
	plan := schedule.Decide(started, override, p.opts.Caps)
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.ForRun(ctx, p.logger).With().Str("tiers", plan.Label()).Int("limit", plan.Limit).Logger()

	summary := Summary{RunID: runID, Tiers: plan.Tiers}

	sources, err := p.store.ListStaleSources(ctx, plan.Tiers, plan.Limit)
	if err != nil {
		return summary, fmt.Errorf("select sources: %w", err)
	}

	ingested, err := p.ingest.Run(ctx, sources, started)
	if err != nil {
		return summary, fmt.Errorf("ingest: %w", err)
	}
	summary.SourcesPolled = ingested.SourcesPolled
	summary.NewItems = ingested.NewItems
	summary.ItemsRefreshed = ingested.RefreshedItems
	summary.Errors = ingested.SourceErrors + ingested.ItemErrors

	swept := p.sweeper.Sweep(ctx, globaltime.UTC())
	summary.RetentionRemoved = swept.Expired
	summary.KeywordRemoved = swept.KeywordRemoved

	collapsed, err := p.dedup.Run(ctx, globaltime.UTC())
	if err != nil {
		return summary, fmt.Errorf("cross-source dedup: %w", err)
	}
	summary.DedupRemoved = collapsed.Removed

	scored, err := p.scorer.Run(ctx, globaltime.UTC())
	if err != nil {
		return summary, fmt.Errorf("scoring: %w", err)
	}
	summary.Scored = scored.Persisted
	summary.SignalsPublished = p.publish(ctx, scored.Scored)

	finished := globaltime.UTC()
	summary.Timestamp = finished
	summary.DurationMS = finished.Sub(started).Milliseconds()

	logger.Info().
		Int("sources_polled", summary.SourcesPolled).
		Int("new_items", summary.NewItems).
		Int("items_refreshed", summary.ItemsRefreshed).
		Int("errors", summary.Errors).
		Int64("retention_removed", summary.RetentionRemoved).
		Int64("keyword_removed", summary.KeywordRemoved).
		Int64("dedup_removed", summary.DedupRemoved).
		Int("scored", summary.Scored).
		Int("signals_published", summary.SignalsPublished).
		Int64("duration_ms", summary.DurationMS).
		Msg("pipeline run finished")
	return summary, nil
}

// Score runs the scoring phase alone and publishes its signals.
func (p *Pipeline) Score(ctx context.Context) (scoring.Result, int, error) {
	ctx = logging.WithRunID(ctx, uuid.NewString())
	res, err := p.scorer.Run(ctx, globaltime.UTC())
	if err != nil {
		return res, 0, fmt.Errorf("scoring: %w", err)
	}
	return res, p.publish(ctx, res.Scored), nil
}

func (p *Pipeline) publish(ctx context.Context, scored []scoring.Scored) int {
	if p.publisher == nil || len(scored) == 0 {
		return 0
	}

	signals := make([]scoring.Scored, 0, len(scored))
	for _, s := range scored {
		if s.DIS >= p.opts.SignalMinDIS {
			signals = append(signals, s)
		}
	}
	if len(signals) == 0 {
		return 0
	}

	published, err := p.publisher.Publish(ctx, signals)
	if err != nil {
		logger := logging.ForRun(ctx, p.logger)
		logger.Warn().Err(err).Int("signals", len(signals)).Int("published", published).Msg("signal publish incomplete")
	}
	return published
}
