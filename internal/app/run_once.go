package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/newsignal/internal/cli"
	"horse.fit/newsignal/internal/schedule"
)

func runOnce(args []string) int {
	fs := flag.NewFlagSet("run-once", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	tiers := fs.String("tiers", "", "Tier override: 1, 1,2 or all (default: derived from the clock)")
	timeout := fs.Duration("timeout", 5*time.Minute, "Invocation timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "run-once does not accept positional arguments")
		return 2
	}

	override, err := schedule.ParseOverride(*tiers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --tiers: %v\n", err)
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "--timeout must be > 0")
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	pool, err := connectPool(cfg, logger, 10*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	p, closePipeline, err := buildPipeline(cfg, pool, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}
	defer closePipeline()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	summary, err := p.Run(ctx, override)
	if err != nil {
		logger.Error().Err(err).Str("tiers", *tiers).Msg("run-once failed")
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		return 1
	}

	printSummary(os.Stdout, summary)
	return 0
}

func runScore(args []string) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	pool, err := connectPool(cfg, logger, 10*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	p, closePipeline, err := buildPipeline(cfg, pool, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}
	defer closePipeline()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, published, err := p.Score(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("score failed")
		fmt.Fprintf(os.Stderr, "Scoring failed: %v\n", err)
		return 1
	}

	logger.Info().
		Int("considered", res.Considered).
		Int("clusters", res.Clusters).
		Int("persisted", res.Persisted).
		Int("failed_batches", res.FailedBatches).
		Int("signals_published", published).
		Msg("scoring finished")
	fmt.Printf("considered=%d clusters=%d scored=%d failed_batches=%d signals_published=%d\n",
		res.Considered, res.Clusters, res.Persisted, res.FailedBatches, published)
	return 0
}
