package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideEnvVar names a .env file that wins over the --env flag.
const OverrideEnvVar = "NEWS_HUD_ENV_FILE"

// EnvLoader loads one .env file chosen from the --env flag, the override
// variable and fallbacks.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers --env on fs and returns the loader bound to it.
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

// Load overloads the process environment from the first candidate file that
// parses and returns its path.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	for _, path := range l.candidates() {
		if err := godotenv.Overload(path); err != nil {
			continue
		}
		logger.Printf("Loaded environment from %s", path)
		return path, nil
	}
	return "", fmt.Errorf("failed to load env file from %s", l.requested())
}

// candidates lists paths in load order without duplicates: the override
// variable, the requested path, its basename, then the default.
func (l *EnvLoader) candidates() []string {
	requested := l.requested()
	ordered := []string{
		strings.TrimSpace(os.Getenv(OverrideEnvVar)),
		requested,
		filepath.Base(requested),
		l.defaultPath,
	}

	seen := make(map[string]struct{}, len(ordered))
	out := make([]string, 0, len(ordered))
	for _, path := range ordered {
		if path == "" || path == "." {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}

func (l *EnvLoader) requested() string {
	if l.value != nil {
		if v := strings.TrimSpace(*l.value); v != "" {
			return v
		}
	}
	return l.defaultPath
}
