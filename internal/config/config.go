package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"NS_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NS_DB_MAX_CONNS" default:"8"`

	CronSecret string `envconfig:"CRON_SECRET" required:"true"`

	FetchTimeout        time.Duration `envconfig:"FETCH_TIMEOUT" default:"5s"`
	FetchConcurrency    int           `envconfig:"FETCH_CONCURRENCY" default:"16"`
	FetchUserAgent      string        `envconfig:"FETCH_USER_AGENT" default:"newsignal/1.0 (+https://horse.fit)"`
	MaxEntriesPerSource int           `envconfig:"MAX_ENTRIES_PER_SOURCE" default:"15"`
	RoutineSourceCap    int           `envconfig:"ROUTINE_SOURCE_CAP" default:"10"`
	SweepSourceCap      int           `envconfig:"SWEEP_SOURCE_CAP" default:"50"`

	RetentionWindow time.Duration `envconfig:"RETENTION_WINDOW" default:"48h"`
	DedupWindow     time.Duration `envconfig:"DEDUP_WINDOW" default:"24h"`
	ScoringWindow   time.Duration `envconfig:"SCORING_WINDOW" default:"24h"`
	ScoreBatchSize  int           `envconfig:"SCORE_BATCH_SIZE" default:"50"`

	DISRecencyMax          float64 `envconfig:"DIS_RECENCY_MAX" default:"50"`
	DISRecencyDecayPerHour float64 `envconfig:"DIS_RECENCY_DECAY_PER_HOUR" default:"5"`
	DISSourceWeight        float64 `envconfig:"DIS_SOURCE_WEIGHT" default:"8"`
	DISTier1Bonus          float64 `envconfig:"DIS_TIER1_BONUS" default:"10"`
	DISTier2Bonus          float64 `envconfig:"DIS_TIER2_BONUS" default:"5"`
	DISTier3Bonus          float64 `envconfig:"DIS_TIER3_BONUS" default:"0"`

	ExtraExcludeKeywords string `envconfig:"EXTRA_EXCLUDE_KEYWORDS" default:""`
	ExtraCleanupKeywords string `envconfig:"EXTRA_CLEANUP_KEYWORDS" default:""`

	RateLimitBackend  string        `envconfig:"RATE_LIMIT_BACKEND" default:"memory"`
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitMaxKeys  int           `envconfig:"RATE_LIMIT_MAX_KEYS" default:"10000"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	KafkaBrokers     string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaSignalTopic string `envconfig:"KAFKA_SIGNAL_TOPIC" default:"news.signals"`
	SignalMinDIS     int    `envconfig:"SIGNAL_MIN_DIS" default:"60"`

	SignalsCacheTTL time.Duration `envconfig:"SIGNALS_CACHE_TTL" default:"1m"`

	// IngestSchedule is a five-field cron expression for serve. Empty disables it.
	IngestSchedule string `envconfig:"INGEST_SCHEDULE" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.CronSecret) == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	if spec := strings.TrimSpace(c.IngestSchedule); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("INGEST_SCHEDULE is invalid: %w", err)
		}
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("NS_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NS_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NS_DB_MIN_CONNS (%d) cannot exceed NS_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be > 0")
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	if c.MaxEntriesPerSource < 1 {
		return fmt.Errorf("MAX_ENTRIES_PER_SOURCE must be >= 1")
	}
	if c.RoutineSourceCap < 1 {
		return fmt.Errorf("ROUTINE_SOURCE_CAP must be >= 1")
	}
	if c.SweepSourceCap < c.RoutineSourceCap {
		return fmt.Errorf("SWEEP_SOURCE_CAP (%d) cannot be below ROUTINE_SOURCE_CAP (%d)", c.SweepSourceCap, c.RoutineSourceCap)
	}
	if c.RetentionWindow <= 0 || c.DedupWindow <= 0 || c.ScoringWindow <= 0 {
		return fmt.Errorf("RETENTION_WINDOW, DEDUP_WINDOW and SCORING_WINDOW must be > 0")
	}
	if c.ScoreBatchSize < 1 {
		return fmt.Errorf("SCORE_BATCH_SIZE must be >= 1")
	}
	if c.DISRecencyDecayPerHour < 0 || c.DISRecencyMax < 0 || c.DISSourceWeight < 0 {
		return fmt.Errorf("DIS_* weights must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.RateLimitBackend)) {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimitBackend)
	}
	if c.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 1")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.RateLimitMaxKeys < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX_KEYS must be >= 1")
	}
	if c.SignalMinDIS < 1 || c.SignalMinDIS > 100 {
		return fmt.Errorf("SIGNAL_MIN_DIS must be between 1 and 100")
	}
	return nil
}

func (c *Config) ExtraExcludeKeywordList() []string {
	return splitList(c.ExtraExcludeKeywords)
}

func (c *Config) ExtraCleanupKeywordList() []string {
	return splitList(c.ExtraCleanupKeywords)
}

func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	return values
}
