// ABOUTME: Process configuration loaded from VAULT_* environment variables.
// ABOUTME: A .env file is read first; explicit environment always wins.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/2389/vault/plugins/core"
)

// Config holds everything the vault binary needs at startup.
type Config struct {
	Port              string        `env:"VAULT_PORT"               envDefault:"9000"`
	DBPath            string        `env:"VAULT_DB"`
	LogLevel          string        `env:"VAULT_LOG_LEVEL"          envDefault:"info"`
	LogFormat         string        `env:"VAULT_LOG_FORMAT"         envDefault:"text"`
	DefaultPriority   core.Priority `env:"VAULT_DEFAULT_PRIORITY"   envDefault:"normal"`
	GroupsFile        string        `env:"VAULT_GROUPS_FILE"        envDefault:"groups.yml"`
	TelemetrySchedule string        `env:"VAULT_TELEMETRY_SCHEDULE" envDefault:"@every 30m"`
	APIVersion        string        `env:"VAULT_API_VERSION"        envDefault:"1.7.3"`
	AdminToken        string        `env:"VAULT_ADMIN_TOKEN"`

	// Demo data for `vault seed`. An empty key selects the static roster.
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"    envDefault:"gpt-5-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
}

// Load reads the given dotenv files (default ".env"), then parses the
// environment into a Config. Missing dotenv files are skipped.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks fields env parsing cannot.
func (c *Config) Validate() error {
	clean, err := CleanDBPath(c.DBPath)
	if err != nil {
		return err
	}
	c.DBPath = clean

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("VAULT_LOG_LEVEL: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("VAULT_LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	if !c.DefaultPriority.Valid() {
		return fmt.Errorf("VAULT_DEFAULT_PRIORITY: %q is not a tier", c.DefaultPriority)
	}
	if _, err := semver.NewVersion(c.APIVersion); err != nil {
		return fmt.Errorf("VAULT_API_VERSION: %w", err)
	}
	return nil
}

// CleanDBPath validates and cleans a database path.
// Handles Unix/Linux, macOS, and Windows paths (including UNC and drive letters).
func CleanDBPath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}

	cleanPath := strings.TrimSpace(path)
	cleanPath = filepath.Clean(cleanPath)

	// Reject empty and root-like paths
	if cleanPath == "" || cleanPath == "." || cleanPath == "/" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}

	// Windows: reject bare drive letters (e.g., "C:", "D:")
	if runtime.GOOS == "windows" && len(cleanPath) == 2 && cleanPath[1] == ':' {
		return "", fmt.Errorf("database path cannot be a bare drive letter")
	}

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("database path cannot contain '..'")
	}

	badPatterns := []string{
		".git",
		".svn",
		"node_modules",
		".env",
		"credentials",
		"secret",
	}
	lowerPath := strings.ToLower(cleanPath)
	for _, pattern := range badPatterns {
		if strings.Contains(lowerPath, pattern) {
			return "", fmt.Errorf("database path cannot contain '%s' directory", pattern)
		}
	}

	return cleanPath, nil
}

// DefaultDBPath returns the default database path following the XDG Base
// Directory spec: ./vault.db if it already exists, else XDG_DATA_HOME/vault/vault.db.
func DefaultDBPath() string {
	cwdPath := "./vault.db"
	if _, err := os.Stat(cwdPath); err == nil {
		return cwdPath
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil || homeDir == "" || homeDir == "/" {
			logrus.Warnf("could not determine home directory (%q): %v, using %s", homeDir, err, cwdPath)
			return cwdPath
		}

		// Windows: %LOCALAPPDATA% or ~/AppData/Local
		if runtime.GOOS == "windows" {
			dataHome = os.Getenv("LOCALAPPDATA")
			if dataHome == "" {
				dataHome = filepath.Join(homeDir, "AppData", "Local")
			}
		} else {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(dataHome, "vault")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logrus.Warnf("could not create data directory %s: %v, using %s", dataDir, err, cwdPath)
		return cwdPath
	}
	return filepath.Join(dataDir, "vault.db")
}
