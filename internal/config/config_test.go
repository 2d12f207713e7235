package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "INGEST_TOKEN_HASH", "CLUSTER_RETENTION_HOURS", "MAX_ACTIVE_CLUSTERS", "NP_DB_MIN_CONNS", "NP_DB_MAX_CONNS", "RETIRE_INTERVAL_MINUTES"} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ClusterRetention() != 72*time.Hour {
		t.Fatalf("unexpected retention: %s", cfg.ClusterRetention())
	}
	if cfg.MaxActiveClusters != 50 {
		t.Fatalf("unexpected max active clusters: %d", cfg.MaxActiveClusters)
	}
	if err := cfg.RequireDatabase(); err == nil {
		t.Fatalf("expected missing DATABASE_URL to be reported")
	}
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	base := Config{
		DBMinConns:            1,
		DBMaxConns:            4,
		ClusterRetentionHours: 72,
		MaxActiveClusters:     50,
		RetireIntervalMinutes: 30,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected base config to validate: %v", err)
	}

	cases := map[string]func(c *Config){
		"min above max":      func(c *Config) { c.DBMinConns = 9 },
		"zero retention":     func(c *Config) { c.ClusterRetentionHours = 0 },
		"zero cluster cap":   func(c *Config) { c.MaxActiveClusters = 0 },
		"plaintext token":    func(c *Config) { c.IngestTokenHash = "hunter2" },
		"zero retire period": func(c *Config) { c.RetireIntervalMinutes = 0 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestCORSAllowedOriginsList(t *testing.T) {
	t.Parallel()

	cfg := &Config{CORSAllowedOrigins: " https://a.test, ,https://b.test,https://a.test "}
	got := cfg.CORSAllowedOriginsList()
	if len(got) != 2 || got[0] != "https://a.test" || got[1] != "https://b.test" {
		t.Fatalf("unexpected origins: %v", got)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}
