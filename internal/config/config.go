package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMinConns  int32  `envconfig:"NP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NP_DB_MAX_CONNS" default:"8"`

	IngestTokenHash       string `envconfig:"INGEST_TOKEN_HASH" default:""`
	FeedsConfigPath       string `envconfig:"FEEDS_CONFIG_PATH" default:"feeds.yaml"`
	ClusterRetentionHours int    `envconfig:"CLUSTER_RETENTION_HOURS" default:"72"`
	MaxActiveClusters     int    `envconfig:"MAX_ACTIVE_CLUSTERS" default:"50"`
	RetireIntervalMinutes int    `envconfig:"RETIRE_INTERVAL_MINUTES" default:"30"`
	CORSAllowedOrigins    string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBMinConns < 0 {
		return fmt.Errorf("NP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NP_DB_MIN_CONNS (%d) cannot exceed NP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.ClusterRetentionHours < 1 {
		return fmt.Errorf("CLUSTER_RETENTION_HOURS must be >= 1")
	}
	if c.MaxActiveClusters < 1 {
		return fmt.Errorf("MAX_ACTIVE_CLUSTERS must be >= 1")
	}
	if c.RetireIntervalMinutes < 1 {
		return fmt.Errorf("RETIRE_INTERVAL_MINUTES must be >= 1")
	}
	if hash := strings.TrimSpace(c.IngestTokenHash); hash != "" && !strings.HasPrefix(hash, "$2") {
		return fmt.Errorf("INGEST_TOKEN_HASH must be a bcrypt hash")
	}
	return nil
}

// RequireDatabase fails when commands that persist run without DATABASE_URL.
func (c *Config) RequireDatabase() error {
	if c == nil || strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func (c *Config) ClusterRetention() time.Duration {
	return time.Duration(c.ClusterRetentionHours) * time.Hour
}

func (c *Config) RetireInterval() time.Duration {
	return time.Duration(c.RetireIntervalMinutes) * time.Minute
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
