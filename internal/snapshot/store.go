// Package snapshot persists completed analysis results to Postgres so
// downstream reporting can query historical signals.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"marketflow/internal/engine"
)

// Config holds the snapshot database configuration
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// Store wraps the PostgreSQL connection pool for analysis snapshots
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Record is one persisted analysis snapshot row
type Record struct {
	RunID          string    `json:"run_id"`
	Ticker         string    `json:"ticker"`
	GeneratedAt    time.Time `json:"generated_at"`
	SignalType     string    `json:"signal_type"`
	SignalStrength string    `json:"signal_strength"`
	CurrentPrice   float64   `json:"current_price"`
	Result         []byte    `json:"result"`
}

// NewStore connects to Postgres and ensures the snapshot schema exists
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &Store{
		pool:   pool,
		logger: logger.With().Str("component", "snapshot_store").Logger(),
	}
	if err := store.migrate(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// migrate creates the snapshot table when missing
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_snapshots (
			id              BIGSERIAL PRIMARY KEY,
			run_id          UUID NOT NULL UNIQUE,
			ticker          TEXT NOT NULL,
			generated_at    TIMESTAMPTZ NOT NULL,
			signal_type     TEXT NOT NULL,
			signal_strength TEXT NOT NULL,
			current_price   DOUBLE PRECISION NOT NULL,
			result          JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_ticker_time
			ON analysis_snapshots (ticker, generated_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to run snapshot migration: %w", err)
	}
	return nil
}

// Save persists one analysis result
func (s *Store) Save(ctx context.Context, result *engine.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize analysis result: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analysis_snapshots
			(run_id, ticker, generated_at, signal_type, signal_strength, current_price, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING`,
		result.RunID, result.Ticker, result.GeneratedAt,
		string(result.Signal.Type), string(result.Signal.Strength),
		result.CurrentPrice, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	s.logger.Debug().Str("run_id", result.RunID).Str("ticker", result.Ticker).Msg("snapshot saved")
	return nil
}

// ListByTicker returns snapshots for one ticker inside a time range, newest
// first
func (s *Store) ListByTicker(ctx context.Context, ticker string, from, to time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, ticker, generated_at, signal_type, signal_strength, current_price, result
		FROM analysis_snapshots
		WHERE ticker = $1 AND generated_at BETWEEN $2 AND $3
		ORDER BY generated_at DESC
		LIMIT $4`,
		ticker, from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.RunID, &r.Ticker, &r.GeneratedAt,
			&r.SignalType, &r.SignalStrength, &r.CurrentPrice, &r.Result); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Latest returns the most recent snapshot for a ticker, or nil when none
// exists
func (s *Store) Latest(ctx context.Context, ticker string) (*Record, error) {
	records, err := s.ListByTicker(ctx, ticker, time.Time{}, time.Now().UTC(), 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Close releases the connection pool
func (s *Store) Close() {
	s.pool.Close()
}
