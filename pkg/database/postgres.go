package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/tradecycle/pkg/config"
)

// DB wraps the pgxpool.Pool and provides additional functionality
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// schema is applied idempotently at startup
// trade_records는 append-only (UPDATE/DELETE 없음)
var schema = []string{
	`CREATE TABLE IF NOT EXISTS trade_records (
		id          UUID PRIMARY KEY,
		cycle_id    TEXT NOT NULL,
		executed_at TIMESTAMPTZ NOT NULL,
		symbol      TEXT NOT NULL,
		action      TEXT NOT NULL,
		quantity    INTEGER NOT NULL CHECK (quantity > 0),
		price       NUMERIC(18,4) NOT NULL,
		confidence  NUMERIC(4,2) NOT NULL,
		source      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_records_executed_at ON trade_records (executed_at)`,
	`CREATE TABLE IF NOT EXISTS position_snapshots (
		symbol            TEXT PRIMARY KEY,
		quantity          INTEGER NOT NULL CHECK (quantity >= 0),
		entry_price       NUMERIC(18,4) NOT NULL,
		entry_time        TIMESTAMPTZ NOT NULL,
		stop_loss_price   NUMERIC(18,4) NOT NULL,
		take_profit_price NUMERIC(18,4) NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS selection_runs (
		id          BIGSERIAL PRIMARY KEY,
		selected_at TIMESTAMPTZ NOT NULL,
		symbols     TEXT[] NOT NULL,
		candidates  JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_selection_runs_selected_at ON selection_runs (selected_at DESC)`,
}

// Migrate creates the tables the trade journal needs
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// HealthStatus represents the health status of the database
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Timestamp     time.Time     `json:"timestamp"`
	ResponseTime  time.Duration `json:"response_time"`
	Error         string        `json:"error,omitempty"`
	AcquiredConns int32         `json:"acquired_conns"`
	IdleConns     int32         `json:"idle_conns"`
	TotalConns    int32         `json:"total_conns"`
}

// HealthCheck returns detailed health information about the database
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{Timestamp: time.Now()}

	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)

	stats := db.Pool.Stat()
	status.AcquiredConns = stats.AcquiredConns()
	status.IdleConns = stats.IdleConns()
	status.TotalConns = stats.TotalConns()
	status.Healthy = true

	return status, nil
}
