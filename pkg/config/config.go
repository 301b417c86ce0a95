// Package config resolves environment-driven configuration exactly once at
// startup. Misconfiguration is fatal before the server starts; nothing
// re-reads ambient state per request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend identifies the active model backend for the process lifetime.
type Backend string

const (
	BackendThesys    Backend = "thesys"
	BackendAnthropic Backend = "anthropic"
)

// Config carries everything the server needs, resolved from the environment.
type Config struct {
	Addr string

	Backend         Backend
	AnthropicAPIKey string
	ThesysAPIKey    string
	AnthropicModel  string
	ThesysModel     string

	SupabaseURL string
	SupabaseKey string
	DatabaseURL string

	AllowedOrigins []string

	MaxIterations int
	TurnTimeout   time.Duration
	Budget        time.Duration
}

// defaultOrigins are always allowed, matching the local dev front-end ports.
var defaultOrigins = []string{"http://localhost:3000", "http://localhost:3001"}

// FromEnv reads the process environment. Exactly one model credential must
// select a backend (Thesys wins when both are set) and a data store must be
// reachable either through Supabase REST credentials or a direct database
// URL.
func FromEnv() (*Config, error) {
	return fromLookup(os.Getenv)
}

func fromLookup(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AnthropicAPIKey: strings.TrimSpace(getenv("ANTHROPIC_API_KEY")),
		ThesysAPIKey:    strings.TrimSpace(getenv("THESYS_API_KEY")),
		AnthropicModel:  strings.TrimSpace(getenv("ANTHROPIC_MODEL")),
		ThesysModel:     strings.TrimSpace(getenv("THESYS_MODEL")),
		SupabaseURL:     strings.TrimSpace(getenv("SUPABASE_URL")),
		SupabaseKey:     strings.TrimSpace(getenv("SUPABASE_ANON_KEY")),
		DatabaseURL:     strings.TrimSpace(getenv("DATABASE_URL")),
		MaxIterations:   10,
		TurnTimeout:     60 * time.Second,
		Budget:          5 * time.Minute,
	}

	switch {
	case cfg.ThesysAPIKey != "":
		cfg.Backend = BackendThesys
	case cfg.AnthropicAPIKey != "":
		cfg.Backend = BackendAnthropic
	default:
		return nil, fmt.Errorf("no model backend configured: set THESYS_API_KEY or ANTHROPIC_API_KEY")
	}

	if cfg.DatabaseURL == "" {
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return nil, fmt.Errorf("no data store configured: set SUPABASE_URL and SUPABASE_ANON_KEY, or DATABASE_URL")
		}
	}

	port := strings.TrimSpace(getenv("PORT"))
	if port == "" {
		port = "3002"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("invalid PORT %q", port)
	}
	cfg.Addr = ":" + port

	cfg.AllowedOrigins = append(cfg.AllowedOrigins, defaultOrigins...)
	if extra := getenv("ALLOWED_ORIGINS"); extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if raw := strings.TrimSpace(getenv("CHAT_TURN_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAT_TURN_TIMEOUT %q: %w", raw, err)
		}
		cfg.TurnTimeout = d
	}
	if raw := strings.TrimSpace(getenv("CHAT_BUDGET")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAT_BUDGET %q: %w", raw, err)
		}
		cfg.Budget = d
	}

	return cfg, nil
}

// OriginAllowed reports whether a request origin may use the API.
func (c *Config) OriginAllowed(origin string) bool {
	for _, allowed := range c.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
