package config

import (
	"testing"
	"time"
)

func envMap(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

var baseEnv = map[string]string{
	"ANTHROPIC_API_KEY": "sk-ant-test",
	"SUPABASE_URL":      "https://proj.supabase.co",
	"SUPABASE_ANON_KEY": "anon-key",
}

func withEnv(extra map[string]string) map[string]string {
	merged := make(map[string]string, len(baseEnv)+len(extra))
	for k, v := range baseEnv {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := fromLookup(envMap(baseEnv))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	if cfg.Backend != BackendAnthropic {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.Addr != ":3002" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.MaxIterations != 10 {
		t.Fatalf("max iterations = %d", cfg.MaxIterations)
	}
	if cfg.TurnTimeout != 60*time.Second || cfg.Budget != 5*time.Minute {
		t.Fatalf("timeouts = %v/%v", cfg.TurnTimeout, cfg.Budget)
	}
}

func TestConfigThesysWinsWhenBothKeysSet(t *testing.T) {
	cfg, err := fromLookup(envMap(withEnv(map[string]string{
		"THESYS_API_KEY": "sk-thesys-test",
	})))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	if cfg.Backend != BackendThesys {
		t.Fatalf("backend = %q, want thesys to win", cfg.Backend)
	}
}

func TestConfigRequiresModelCredential(t *testing.T) {
	_, err := fromLookup(envMap(map[string]string{
		"SUPABASE_URL":      "https://proj.supabase.co",
		"SUPABASE_ANON_KEY": "anon-key",
	}))
	if err == nil {
		t.Fatal("expected missing-backend error")
	}
}

func TestConfigRequiresStore(t *testing.T) {
	_, err := fromLookup(envMap(map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant-test",
	}))
	if err == nil {
		t.Fatal("expected missing-store error")
	}

	// Supabase URL without the key is not enough.
	_, err = fromLookup(envMap(map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant-test",
		"SUPABASE_URL":      "https://proj.supabase.co",
	}))
	if err == nil {
		t.Fatal("expected missing-key error")
	}
}

func TestConfigDatabaseURLStandsAlone(t *testing.T) {
	cfg, err := fromLookup(envMap(map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant-test",
		"DATABASE_URL":      "postgres://app@db/ledger",
	}))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	if cfg.DatabaseURL == "" {
		t.Fatal("database URL dropped")
	}
}

func TestConfigPortValidation(t *testing.T) {
	cfg, err := fromLookup(envMap(withEnv(map[string]string{"PORT": "8080"})))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if _, err := fromLookup(envMap(withEnv(map[string]string{"PORT": "not-a-port"}))); err == nil {
		t.Fatal("expected invalid PORT error")
	}
}

func TestConfigOrigins(t *testing.T) {
	cfg, err := fromLookup(envMap(withEnv(map[string]string{
		"ALLOWED_ORIGINS": "https://app.example.com, https://staging.example.com",
	})))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	for _, origin := range []string{
		"http://localhost:3000",
		"http://localhost:3001",
		"https://app.example.com",
		"https://staging.example.com",
	} {
		if !cfg.OriginAllowed(origin) {
			t.Errorf("origin %s not allowed", origin)
		}
	}
	if cfg.OriginAllowed("https://evil.example.com") {
		t.Error("unlisted origin allowed")
	}
}

func TestConfigTimeoutOverrides(t *testing.T) {
	cfg, err := fromLookup(envMap(withEnv(map[string]string{
		"CHAT_TURN_TIMEOUT": "30s",
		"CHAT_BUDGET":       "2m",
	})))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	if cfg.TurnTimeout != 30*time.Second || cfg.Budget != 2*time.Minute {
		t.Fatalf("timeouts = %v/%v", cfg.TurnTimeout, cfg.Budget)
	}
	if _, err := fromLookup(envMap(withEnv(map[string]string{"CHAT_BUDGET": "soon"}))); err == nil {
		t.Fatal("expected invalid CHAT_BUDGET error")
	}
}
