package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriterEmitsServiceAndComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "production", "INFO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fetcher := Component(logger, "fetcher")
	fetcher.Info().Int("sources", 3).Msg("poll finished")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["service"] != "newsignal" || line["component"] != "fetcher" || line["environment"] != "production" {
		t.Fatalf("unexpected fields: %v", line)
	}
	if line["sources"] != float64(3) || line["message"] != "poll finished" {
		t.Fatalf("unexpected payload: %v", line)
	}
}

func TestNewWithWriterFiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "production", "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn, got %s", buf.String())
	}
	logger.Warn().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected warn line, got %s", buf.String())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("local", "loud"); err == nil || !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Fatalf("expected LOG_LEVEL parse error, got %v", err)
	}
}

func TestLocalEnvironmentUsesConsoleFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "local", "debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug().Msg("hello")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected console output, got JSON: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected message in console output: %s", buf.String())
	}
}

func TestForRunAddsRunIDFromContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := zerolog.New(&buf)

	untagged := ForRun(context.Background(), base)
	untagged.Info().Msg("untagged")
	if strings.Contains(buf.String(), "run_id") {
		t.Fatalf("expected no run id without one on the context: %s", buf.String())
	}

	buf.Reset()
	ctx := WithRunID(context.Background(), "run-42")
	tagged := ForRun(ctx, base)
	tagged.Info().Msg("tagged")
	if !strings.Contains(buf.String(), `"run_id":"run-42"`) || RunID(ctx) != "run-42" {
		t.Fatalf("expected run id on the line: %s", buf.String())
	}
}
