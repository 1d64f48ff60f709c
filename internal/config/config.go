package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Ingest   IngestConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// IngestConfig holds the tunables of the ingestion pipeline. Acceptance
// thresholds are configuration, not constants, because they differ per
// deployment and per county size.
type IngestConfig struct {
	// PageSize is the fixed number of records requested per source page.
	PageSize int
	// BatchSize bounds each transactional upsert batch.
	BatchSize int
	// Deadline bounds the wall-clock time of one ingestion invocation.
	// Runs that hit it report in-progress and expect re-invocation.
	Deadline time.Duration
	// SourceTimeout bounds a single source API request.
	SourceTimeout time.Duration
	// MinRows and MinGeometryRate are the acceptance thresholds reported by
	// the county status endpoint.
	MinRows         int
	MinGeometryRate float64
	// ScoreLimit caps how many parcels one scoring run loads per county.
	ScoreLimit int
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "parcelscope")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("INGEST_PAGE_SIZE", 2000)
	v.SetDefault("INGEST_BATCH_SIZE", 500)
	v.SetDefault("INGEST_DEADLINE", "55s")
	v.SetDefault("SOURCE_TIMEOUT", "20s")
	v.SetDefault("INGEST_MIN_ROWS", 50000)
	v.SetDefault("INGEST_MIN_GEOMETRY_RATE", 0.99)
	v.SetDefault("SCORE_LIMIT", 500000)

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Ingest: IngestConfig{
			PageSize:        v.GetInt("INGEST_PAGE_SIZE"),
			BatchSize:       v.GetInt("INGEST_BATCH_SIZE"),
			Deadline:        v.GetDuration("INGEST_DEADLINE"),
			SourceTimeout:   v.GetDuration("SOURCE_TIMEOUT"),
			MinRows:         v.GetInt("INGEST_MIN_ROWS"),
			MinGeometryRate: v.GetFloat64("INGEST_MIN_GEOMETRY_RATE"),
			ScoreLimit:      v.GetInt("SCORE_LIMIT"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	// Validate ingest config
	if c.Ingest.PageSize < 1 {
		return fmt.Errorf("INGEST_PAGE_SIZE must be at least 1")
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be at least 1")
	}
	if c.Ingest.BatchSize > c.Ingest.PageSize {
		return fmt.Errorf("INGEST_BATCH_SIZE must not exceed INGEST_PAGE_SIZE")
	}
	if c.Ingest.Deadline <= 0 {
		return fmt.Errorf("INGEST_DEADLINE must be positive")
	}
	if c.Ingest.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive")
	}
	if c.Ingest.MinGeometryRate < 0 || c.Ingest.MinGeometryRate > 1 {
		return fmt.Errorf("INGEST_MIN_GEOMETRY_RATE must be between 0 and 1")
	}
	if c.Ingest.ScoreLimit < 1 {
		return fmt.Errorf("SCORE_LIMIT must be at least 1")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
