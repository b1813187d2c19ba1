package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoaderMissingDefaultIsNotAnError(t *testing.T) {
	t.Setenv(EnvFileOverride, "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(t.TempDir(), "missing.env"), "")
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	path, err := loader.Load()
	if err != nil {
		t.Fatalf("expected missing default env file to be ignored, got %v", err)
	}
	if path != "" {
		t.Fatalf("expected no path to be reported, got %q", path)
	}
}

func TestEnvLoaderExplicitFileIsLoaded(t *testing.T) {
	t.Setenv(EnvFileOverride, "")
	t.Setenv("NEWSIGNAL_TEST_VALUE", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(envPath, []byte("NEWSIGNAL_TEST_VALUE=loaded\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", envPath}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	path, err := loader.Load()
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if path != envPath {
		t.Fatalf("unexpected loaded path: got %q want %q", path, envPath)
	}
	if got := os.Getenv("NEWSIGNAL_TEST_VALUE"); got != "loaded" {
		t.Fatalf("expected value from env file, got %q", got)
	}
}

func TestEnvLoaderExplicitMissingFileFails(t *testing.T) {
	t.Setenv(EnvFileOverride, "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", filepath.Join(t.TempDir(), "nope.env")}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected explicit missing env file to fail")
	}
}
