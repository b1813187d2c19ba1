package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/cache"
	"horse.fit/newsignal/internal/db"
	"horse.fit/newsignal/internal/globaltime"
	"horse.fit/newsignal/internal/pipeline"
	"horse.fit/newsignal/internal/ratelimit"
	"horse.fit/newsignal/internal/schedule"
)

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 200
)

// Runner executes one pipeline invocation.
type Runner interface {
	Run(ctx context.Context, override *schedule.Override) (pipeline.Summary, error)
}

type SignalStore interface {
	ListSignals(ctx context.Context, filter db.SignalFilter) ([]db.SignalItem, error)
	Ping(ctx context.Context) error
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RunTimeout      time.Duration
	CronSecret      string
	SignalMinDIS    int
	SignalsCacheTTL time.Duration
	// Schedule is a standard five-field cron expression. Empty disables the
	// in-process scheduler and leaves triggering to /cron/ingest.
	Schedule string
}

type Server struct {
	runner  Runner
	store   SignalStore
	limiter ratelimit.Limiter
	logger  zerolog.Logger
	opts    Options

	running sync.Mutex
	signals *cache.Cache[db.SignalFilter, []db.SignalItem]
}

// NewServer builds the trigger and read API. limiter may be nil to disable
// rate limiting.
func NewServer(runner Runner, store SignalStore, limiter ratelimit.Limiter, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	// Sweeps hold the request open while every tier is polled.
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 4 * time.Minute
	}
	if opts.SignalMinDIS <= 0 {
		opts.SignalMinDIS = 60
	}
	if opts.SignalsCacheTTL <= 0 {
		opts.SignalsCacheTTL = time.Minute
	}
	opts.Host = host

	s := &Server{
		runner:  runner,
		store:   store,
		limiter: limiter,
		logger:  logger,
		opts:    opts,
	}
	s.signals = cache.New(s.loadSignals, logger.With().Str("cache", "signals").Logger(), cache.Options{
		TTL:        opts.SignalsCacheTTL,
		MaxEntries: 256,
	})
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.runner == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	scheduler, err := s.startScheduler(ctx)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() {
			<-scheduler.Stop().Done()
		}()
	}

	e := s.newEcho()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("newsignal server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.signals.Wait()
	s.logger.Info().Msg("newsignal server stopped")
	return nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)

	protected := api.Group("", s.rateLimit(), s.requireCronSecret())
	protected.GET("/cron/ingest", s.handleIngest)
	protected.POST("/cron/ingest", s.handleIngest)
	protected.GET("/signals", s.handleSignals)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("health ping failed")
		return fail(c, http.StatusServiceUnavailable, "Database unavailable", nil)
	}
	return success(c, map[string]any{
		"service": "newsignal",
		"time":    globaltime.UTC(),
	})
}

// handleIngest runs one invocation. Only one runs per process at a time;
// a second trigger gets 409 rather than queueing.
func (s *Server) handleIngest(c echo.Context) error {
	override, err := schedule.ParseOverride(c.QueryParam("tiers"))
	if err != nil {
		return failValidation(c, map[string]string{"tiers": err.Error()})
	}

	// A dropped client connection must not abort a half-finished run.
	summary, started, err := s.runExclusive(context.WithoutCancel(c.Request().Context()), override)
	if !started {
		return fail(c, http.StatusConflict, "Ingest already running", nil)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("tiers", c.QueryParam("tiers")).Msg("pipeline run failed")
		return internalError(c, "Pipeline run failed")
	}
	return success(c, summary)
}

// runExclusive runs the pipeline unless another run holds the lock, in which
// case started is false.
func (s *Server) runExclusive(parent context.Context, override *schedule.Override) (summary pipeline.Summary, started bool, err error) {
	if !s.running.TryLock() {
		return pipeline.Summary{}, false, nil
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.opts.RunTimeout)
	defer cancel()

	summary, err = s.runner.Run(ctx, override)
	if err != nil {
		return pipeline.Summary{}, true, err
	}
	s.signals.Purge()
	return summary, true, nil
}

func (s *Server) handleSignals(c echo.Context) error {
	fieldErrors := map[string]string{}
	minDIS, err := parsePositiveInt(c.QueryParam("min_dis"), s.opts.SignalMinDIS, 1, 100)
	if err != nil {
		fieldErrors["min_dis"] = err.Error()
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultSignalLimit, 1, maxSignalLimit)
	if err != nil {
		fieldErrors["limit"] = err.Error()
	}
	tier, err := parsePositiveInt(c.QueryParam("tier"), 0, 1, 3)
	if err != nil {
		fieldErrors["tier"] = err.Error()
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	filter := db.SignalFilter{
		MinDIS:   minDIS,
		Limit:    limit,
		Tier:     tier,
		Category: strings.ToLower(strings.TrimSpace(c.QueryParam("category"))),
	}
	items, err := s.signals.Get(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Int("min_dis", minDIS).Int("limit", limit).Msg("list signals failed")
		return internalError(c, "Failed to load signals")
	}
	return success(c, map[string]any{
		"items":   items,
		"min_dis": minDIS,
		"limit":   limit,
	})
}

func (s *Server) loadSignals(ctx context.Context, filter db.SignalFilter) ([]db.SignalItem, error) {
	return s.store.ListSignals(ctx, filter)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
