package cli

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileOverride names the variable that wins over the --env flag.
const EnvFileOverride = "NEWSIGNAL_ENV_FILE"

// EnvLoader loads a .env file chosen by flag or environment override.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	return &EnvLoader{
		value:       fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Load overlays variables from the resolved file onto the process environment.
// A missing default file is not an error: deployments usually inject env directly.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	path, explicit := l.resolve()
	if err := godotenv.Overload(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("load env file %s: %w", path, err)
	}
	return path, nil
}

func (l *EnvLoader) resolve() (string, bool) {
	if custom := strings.TrimSpace(os.Getenv(EnvFileOverride)); custom != "" {
		return custom, true
	}

	requested := ""
	if l.value != nil {
		requested = strings.TrimSpace(*l.value)
	}
	if requested == "" || requested == l.defaultPath {
		return l.defaultPath, false
	}
	return requested, true
}
