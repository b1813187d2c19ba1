package httpapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// startScheduler registers the recurring run when a schedule is configured.
// It returns nil when scheduling is disabled.
func (s *Server) startScheduler(ctx context.Context) (*cron.Cron, error) {
	spec := strings.TrimSpace(s.opts.Schedule)
	if spec == "" {
		return nil, nil
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.runScheduled(ctx) }); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	c.Start()
	s.logger.Info().Str("schedule", spec).Msg("ingest scheduler started")
	return c, nil
}

func (s *Server) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	summary, started, err := s.runExclusive(context.WithoutCancel(ctx), nil)
	if !started {
		s.logger.Warn().Msg("scheduled ingest skipped: previous run still in progress")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled ingest failed")
		return
	}
	s.logger.Info().
		Str("run_id", summary.RunID).
		Int("sources_polled", summary.SourcesPolled).
		Int("new_items", summary.NewItems).
		Int("errors", summary.Errors).
		Msg("scheduled ingest finished")
}
