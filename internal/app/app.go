package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "run-once", "ingest":
		return runOnce(args[1:])
	case "score":
		return runScore(args[1:])
	case "serve":
		return runServe(args[1:])
	case "sources":
		return runSources(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "newsignal CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  newsignal <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health          Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  run-once        Run one ingest invocation (fetch, retention, dedup, scoring)")
	fmt.Fprintln(os.Stderr, "  ingest          Alias for run-once")
	fmt.Fprintln(os.Stderr, "  score           Recompute DIS for the scoring window only")
	fmt.Fprintln(os.Stderr, "  serve           Start the HTTP trigger and signals API")
	fmt.Fprintln(os.Stderr, "  sources import  Upsert feed sources from a YAML seed file")
	fmt.Fprintln(os.Stderr, "  sources list    Print the source registry")
	fmt.Fprintln(os.Stderr, "  daemon          Install or control the systemd unit for serve")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"newsignal <command> -h\" for command-specific flags.")
}
