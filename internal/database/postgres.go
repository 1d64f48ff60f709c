package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parcelscope/api/internal/config"
)

// Database wraps the pgx connection pool and provides database operations.
// It is constructed once in main and passed to every component that needs
// storage; nothing in the codebase reaches for a global connection.
type Database struct {
	Pool *pgxpool.Pool
}

// NewPostgresPool creates a new PostgreSQL connection pool using pgx.
// It configures the pool based on the provided database configuration,
// tests the connection, and returns a Database instance.
func NewPostgresPool(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MinConns = int32(cfg.PoolMin)
	poolConfig.MaxConns = int32(cfg.PoolMax)

	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.MaxConnIdleTime = 30 * time.Second
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection immediately
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{Pool: pool}, nil
}

// Ping checks if the database connection is alive.
func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close gracefully closes the database connection pool.
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Stats returns statistics about the connection pool.
func (db *Database) Stats() *pgxpool.Stat {
	if db.Pool == nil {
		return nil
	}
	return db.Pool.Stat()
}
