package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN returns the lib/pq connection string for cfg.
func (cfg DBConfig) DSN() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	var err error
	DB, err = sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
		DB = nil
	}
}

// Tables lists every table owned by the keeper, in drop order.
var Tables = []string{
	"action_receipts",
	"cycle_snapshots",
	"worker_parameters",
	"cycle_counter",
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return ErrNotInitialized
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS worker_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			reinvest_bounty_bps INTEGER NOT NULL, max_reinvest_bounty_bps INTEGER NOT NULL,
			beneficial_vault_bounty_bps INTEGER NOT NULL,
			work_factor_bps INTEGER NOT NULL, kill_factor_bps INTEGER NOT NULL,
			kill_prize_bps INTEGER NOT NULL, reserve_pool_bps INTEGER NOT NULL,
			-- Token amounts are kept as decimal strings, exactly as configured.
			min_debt_size TEXT NOT NULL, interest_rate_per_sec TEXT NOT NULL,
			reward_per_block TEXT NOT NULL,
			min_reinvest_reward TEXT NOT NULL, min_kill_prize TEXT NOT NULL,
			max_kills_per_cycle INTEGER NOT NULL,
			max_price_impact_pct DECIMAL(10, 4) NOT NULL,
			at_risk_debt_ratio_pct DECIMAL(10, 4) NOT NULL,
			CONSTRAINT uq_worker_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_worker_parameters_config_active_timestamp ON worker_parameters(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS cycle_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			cycle_id UUID NOT NULL UNIQUE,
			cycle_number INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			params_id INTEGER REFERENCES worker_parameters(params_id),
			start_block BIGINT NOT NULL,
			end_block BIGINT NOT NULL,

			-- Pre-Action State
			initial_workers JSONB,
			initial_positions JSONB,
			pairs JSONB,

			-- The Plan
			action_plan JSONB,

			-- The Outcome
			final_workers JSONB,
			final_positions JSONB,
			tx_ids TEXT[],

			-- Keeper results
			bounty_earned DECIMAL(30, 18) NOT NULL DEFAULT 0,
			prize_earned DECIMAL(30, 18) NOT NULL DEFAULT 0,
			vault_total_token DECIMAL(30, 18) NOT NULL DEFAULT 0,
			positions_at_risk INTEGER NOT NULL DEFAULT 0,
			failed_actions INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_timestamp ON cycle_snapshots(snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle ON cycle_snapshots(cycle_number DESC);

		CREATE TABLE IF NOT EXISTS action_receipts (
			receipt_id SERIAL PRIMARY KEY,
			snapshot_id INTEGER NOT NULL REFERENCES cycle_snapshots(snapshot_id) ON DELETE CASCADE,
			tx_id UUID NOT NULL,
			action_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			action_type VARCHAR(50) NOT NULL,
			worker_address CHAR(42) NOT NULL,
			position_id BIGINT,
			block_number BIGINT NOT NULL,
			success BOOLEAN NOT NULL,
			message TEXT,
			action JSONB,
			resulting_coins JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_action_receipts_snapshot ON action_receipts(snapshot_id);
		CREATE INDEX IF NOT EXISTS idx_action_receipts_action_type ON action_receipts(action_type);

		-- Cycle counter table for persistent global cycle tracking
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema drops every keeper table. Used by the reset script.
func DropSchema() error {
	if DB == nil {
		return ErrNotInitialized
	}
	for _, table := range Tables {
		if _, err := DB.Exec("DROP TABLE IF EXISTS " + table + " CASCADE;"); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		log.Info().Str("table", table).Msg("Dropped table")
	}
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
