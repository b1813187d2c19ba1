// Package retention prunes the item store after each ingest.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/logging"
)

const DefaultWindow = 48 * time.Hour

type Store interface {
	DeleteItemsPublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteItemsMatchingTitles(ctx context.Context, keywords []string) (int64, error)
}

// Result counts rows removed by each delete. A failed delete reports zero and
// sets the matching error field.
type Result struct {
	Expired        int64
	KeywordRemoved int64
	ExpiredErr     error
	KeywordErr     error
}

func (r Result) Removed() int64 {
	return r.Expired + r.KeywordRemoved
}

type Sweeper struct {
	store    Store
	logger   zerolog.Logger
	window   time.Duration
	keywords []string
}

func NewSweeper(store Store, logger zerolog.Logger, window time.Duration, keywords []string) *Sweeper {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Sweeper{
		store:    store,
		logger:   logger,
		window:   window,
		keywords: append([]string(nil), keywords...),
	}
}

// Cutoff is the oldest publish time that survives a sweep at now.
func (s *Sweeper) Cutoff(now time.Time) time.Time {
	return now.Add(-s.window)
}

// Sweep runs both deletes. Neither failure stops the other or the invocation.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) Result {
	var res Result
	logger := logging.ForRun(ctx, s.logger)

	cutoff := s.Cutoff(now)
	expired, err := s.store.DeleteItemsPublishedBefore(ctx, cutoff)
	if err != nil {
		res.ExpiredErr = err
		logger.Error().Err(err).Time("cutoff", cutoff).Msg("retention delete failed")
	} else {
		res.Expired = expired
	}

	if len(s.keywords) > 0 {
		removed, err := s.store.DeleteItemsMatchingTitles(ctx, s.keywords)
		if err != nil {
			res.KeywordErr = err
			logger.Error().Err(err).Int("keywords", len(s.keywords)).Msg("keyword cleanup failed")
		} else {
			res.KeywordRemoved = removed
		}
	}

	logger.Debug().
		Int64("expired", res.Expired).
		Int64("keyword_removed", res.KeywordRemoved).
		Msg("retention sweep finished")
	return res
}
