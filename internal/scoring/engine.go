// Package scoring computes the Discourse Importance Score for recent items.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/logging"
	"horse.fit/newsignal/internal/news"
)

const (
	DefaultWindow    = 24 * time.Hour
	DefaultBatchSize = 50
)

type Store interface {
	ListItemsSince(ctx context.Context, since time.Time) ([]news.StoredItem, error)
	UpdateScores(ctx context.Context, scores []news.Score, at time.Time) error
}

// Scored is one item with its computed DIS and cluster context.
type Scored struct {
	Item        news.StoredItem
	DIS         int
	SourceCount int
	ClusterSize int
}

// Compute scores items without touching the store. Output follows input order.
func Compute(items []news.StoredItem, now time.Time, weights Weights) []Scored {
	scored, _ := compute(items, now, weights)
	return scored
}

func compute(items []news.StoredItem, now time.Time, weights Weights) ([]Scored, int) {
	clusters := BuildClusters(items)

	byID := make(map[int64]Scored, len(items))
	for _, c := range clusters {
		sources := c.SourceCount()
		for _, member := range c.Members {
			hoursOld := now.Sub(member.PublishedAt).Hours()
			byID[member.ID] = Scored{
				Item:        member,
				DIS:         weights.DIS(hoursOld, sources, member.Tier),
				SourceCount: sources,
				ClusterSize: len(c.Members),
			}
		}
	}

	out := make([]Scored, 0, len(items))
	for _, item := range items {
		out = append(out, byID[item.ID])
	}
	return out, len(clusters)
}

type Options struct {
	Window    time.Duration
	BatchSize int
	Weights   Weights
}

type Result struct {
	Considered    int
	Clusters      int
	Persisted     int
	FailedBatches int
	Scored        []Scored
}

type Engine struct {
	store  Store
	logger zerolog.Logger
	opts   Options
}

func NewEngine(store Store, logger zerolog.Logger, opts Options) *Engine {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	return &Engine{store: store, logger: logger, opts: opts}
}

// Run rescores the window and writes scores in batches. A failed batch is
// logged and left stale; only a failed read fails the run.
func (e *Engine) Run(ctx context.Context, now time.Time) (Result, error) {
	items, err := e.store.ListItemsSince(ctx, now.Add(-e.opts.Window))
	if err != nil {
		return Result{}, fmt.Errorf("load scoring window: %w", err)
	}

	scored, clusters := compute(items, now, e.opts.Weights)
	res := Result{
		Considered: len(items),
		Clusters:   clusters,
		Scored:     scored,
	}

	for start := 0; start < len(scored); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(scored))
		batch := make([]news.Score, 0, end-start)
		for _, s := range scored[start:end] {
			batch = append(batch, news.Score{ItemID: s.Item.ID, DIS: s.DIS})
		}
		if err := e.store.UpdateScores(ctx, batch, now); err != nil {
			res.FailedBatches++
			logger := logging.ForRun(ctx, e.logger)
			logger.Warn().Err(err).Int("offset", start).Int("size", len(batch)).Msg("score batch failed")
			continue
		}
		res.Persisted += len(batch)
	}

	return res, nil
}
