package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/cli"
	"horse.fit/newsignal/internal/config"
	"horse.fit/newsignal/internal/db"
	"horse.fit/newsignal/internal/feed"
	"horse.fit/newsignal/internal/ingest"
	"horse.fit/newsignal/internal/logging"
	"horse.fit/newsignal/internal/pipeline"
	"horse.fit/newsignal/internal/ratelimit"
	"horse.fit/newsignal/internal/schedule"
	"horse.fit/newsignal/internal/scoring"
	"horse.fit/newsignal/internal/signal"
)

// loadRuntime reads .env, config and builds the logger. Failures are printed.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, bool) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, zerolog.Nop(), false
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, zerolog.Nop(), false
	}
	return cfg, logger, true
}

func connectPool(cfg *config.Config, logger zerolog.Logger, timeout time.Duration) (*db.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

func scoringOptions(cfg *config.Config) scoring.Options {
	return scoring.Options{
		Window:    cfg.ScoringWindow,
		BatchSize: cfg.ScoreBatchSize,
		Weights: scoring.Weights{
			RecencyMax:          cfg.DISRecencyMax,
			RecencyDecayPerHour: cfg.DISRecencyDecayPerHour,
			SourceWeight:        cfg.DISSourceWeight,
			Tier1Bonus:          cfg.DISTier1Bonus,
			Tier2Bonus:          cfg.DISTier2Bonus,
			Tier3Bonus:          cfg.DISTier3Bonus,
		},
	}
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	cleanup := append([]string(nil), feed.DefaultCleanupKeywords...)
	cleanup = append(cleanup, cfg.ExtraCleanupKeywordList()...)

	return pipeline.Options{
		Caps: schedule.Caps{Routine: cfg.RoutineSourceCap, Sweep: cfg.SweepSourceCap},
		Ingest: ingest.Options{
			Concurrency: cfg.FetchConcurrency,
			MaxEntries:  cfg.MaxEntriesPerSource,
			MaxAge:      cfg.RetentionWindow,
			Filter:      feed.NewFilter(feed.DefaultExcludeKeywords, cfg.ExtraExcludeKeywordList()),
		},
		RetentionWindow: cfg.RetentionWindow,
		CleanupKeywords: cleanup,
		DedupWindow:     cfg.DedupWindow,
		Scoring:         scoringOptions(cfg),
		SignalMinDIS:    cfg.SignalMinDIS,
	}
}

// buildPipeline wires the phases to pool. The returned close func releases
// the signal producer, if any.
func buildPipeline(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) (*pipeline.Pipeline, func(), error) {
	fetcher := feed.NewHTTPFetcher(feed.HTTPFetcherOptions{
		Client:    &http.Client{},
		UserAgent: cfg.FetchUserAgent,
		Timeout:   cfg.FetchTimeout,
	})

	closeFn := func() {}
	var publisher pipeline.Publisher
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		pub, err := signal.NewPublisher(signal.ProducerConfig{
			Brokers: brokers,
			Topic:   cfg.KafkaSignalTopic,
		}, logging.Component(logger, "signal"))
		if err != nil {
			return nil, closeFn, fmt.Errorf("create signal publisher: %w", err)
		}
		publisher = pub
		closeFn = func() {
			if err := pub.Close(); err != nil {
				logger.Warn().Err(err).Msg("close signal publisher failed")
			}
		}
	}

	p := pipeline.New(pool, fetcher, logging.Component(logger, "pipeline"), pipelineOptions(cfg), publisher)
	return p, closeFn, nil
}

// buildLimiter picks the per-process or the shared Redis limiter.
func buildLimiter(cfg *config.Config) (ratelimit.Limiter, func() error) {
	if strings.EqualFold(strings.TrimSpace(cfg.RateLimitBackend), "redis") {
		limiter := ratelimit.NewRedisLimiter(ratelimit.NewRedisClient(ratelimit.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), cfg.RateLimitRequests, cfg.RateLimitWindow)
		return limiter, limiter.Close
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitMaxKeys), func() error { return nil }
}

func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "run_id=%s\n", s.RunID)
	fmt.Fprintf(w, "sources_polled=%d new_items=%d items_refreshed=%d errors=%d\n", s.SourcesPolled, s.NewItems, s.ItemsRefreshed, s.Errors)
	fmt.Fprintf(w, "retention_removed=%d keyword_removed=%d dedup_removed=%d\n", s.RetentionRemoved, s.KeywordRemoved, s.DedupRemoved)
	fmt.Fprintf(w, "scored=%d signals_published=%d\n", s.Scored, s.SignalsPublished)
	fmt.Fprintf(w, "tiers=%s duration_ms=%d timestamp=%s\n", schedule.Plan{Tiers: s.Tiers}.Label(), s.DurationMS, s.Timestamp.UTC().Format(time.RFC3339))
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func formatUTCTimestampPtr(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
