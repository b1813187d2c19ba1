package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/newsignal/internal/cli"
	"horse.fit/newsignal/internal/globaltime"
	"horse.fit/newsignal/internal/sources"
)

func runSources(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: newsignal sources <import|list> [flags]")
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "import":
		return runSourcesImport(args[1:])
	case "list":
		return runSourcesList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown sources subcommand: %s\n", args[0])
		return 2
	}
}

func runSourcesImport(args []string) int {
	fs := flag.NewFlagSet("sources import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	file := fs.String("file", "sources.yaml", "YAML seed file")
	dryRun := fs.Bool("dry-run", false, "Validate the file without writing")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	seeds, err := sources.ParseFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid seed file: %v\n", err)
		return 2
	}
	if *dryRun {
		fmt.Printf("file=%s sources=%d valid=true\n", *file, len(seeds))
		return 0
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := sources.Import(ctx, pool, seeds, globaltime.UTC())
	if err != nil {
		logger.Error().Err(err).Str("file", *file).Int("inserted", res.Inserted).Int("updated", res.Updated).Msg("source import failed")
		fmt.Fprintf(os.Stderr, "Import failed after %d sources: %v\n", res.Inserted+res.Updated, err)
		return 1
	}

	logger.Info().Str("file", *file).Int("inserted", res.Inserted).Int("updated", res.Updated).Msg("sources imported")
	fmt.Printf("file=%s inserted=%d updated=%d\n", *file, res.Inserted, res.Updated)
	return 0
}

func runSourcesList(args []string) int {
	fs := flag.NewFlagSet("sources list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rows, err := pool.ListSources(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list sources: %v\n", err)
		return 1
	}

	table := make([][]string, 0, len(rows))
	for _, src := range rows {
		table = append(table, []string{
			strconv.FormatInt(src.ID, 10),
			strconv.Itoa(src.Tier),
			src.Name,
			src.Category,
			strconv.FormatBool(src.Active),
			formatUTCTimestampPtr(src.LastFetchedAt),
			strconv.FormatInt(src.ItemCount, 10),
			strconv.FormatInt(src.ErrorCount, 10),
			src.URL,
		})
	}
	if err := writeTable(os.Stdout, []string{"id", "tier", "name", "category", "active", "last_fetched_at", "items", "errors", "url"}, table); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render sources table: %v\n", err)
		return 1
	}
	return 0
}
