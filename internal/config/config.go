// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken     string
	PollInterval    time.Duration
	AdaptivePolling bool
	ListenAddr      string
	DBPath          string
	UseHTML         bool
	Repos           []model.Repository // Seeded into the watch list at startup.
}

// PollingEnabled reports whether a GitHub token is configured. Without one the
// API still serves stored data but no repository is polled.
func (c *Config) PollingEnabled() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// CHECKNOTIFY_GITHUB_TOKEN is optional; if absent, polling is disabled.
// Optional variables with defaults: CHECKNOTIFY_POLL_INTERVAL (5m),
// CHECKNOTIFY_ADAPTIVE_POLLING (true), CHECKNOTIFY_LISTEN_ADDR (127.0.0.1:8080),
// CHECKNOTIFY_DB_PATH (checknotify.db), CHECKNOTIFY_USE_HTML (true) and
// CHECKNOTIFY_REPOS (empty, comma-separated owner/repo names).
func Load() (*Config, error) {
	pollInterval := 5 * time.Minute
	if v, ok := os.LookupEnv("CHECKNOTIFY_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CHECKNOTIFY_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("CHECKNOTIFY_POLL_INTERVAL must be positive, got %q", v)
		}
		pollInterval = parsed
	}

	adaptive, err := boolEnv("CHECKNOTIFY_ADAPTIVE_POLLING", true)
	if err != nil {
		return nil, err
	}

	useHTML, err := boolEnv("CHECKNOTIFY_USE_HTML", true)
	if err != nil {
		return nil, err
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("CHECKNOTIFY_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "checknotify.db"
	if v, ok := os.LookupEnv("CHECKNOTIFY_DB_PATH"); ok {
		dbPath = v
	}

	repos := []model.Repository{}
	if v, ok := os.LookupEnv("CHECKNOTIFY_REPOS"); ok && v != "" {
		seen := make(map[string]bool)
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			repo, ok := model.ParseRepository(name)
			if !ok {
				return nil, fmt.Errorf("CHECKNOTIFY_REPOS has invalid repository %q: expected owner/repo", name)
			}
			seen[name] = true
			repos = append(repos, repo)
		}
	}

	return &Config{
		GitHubToken:     os.Getenv("CHECKNOTIFY_GITHUB_TOKEN"),
		PollInterval:    pollInterval,
		AdaptivePolling: adaptive,
		ListenAddr:      listenAddr,
		DBPath:          dbPath,
		UseHTML:         useHTML,
		Repos:           repos,
	}, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s has invalid boolean %q: %w", key, v, err)
	}
	return parsed, nil
}
