/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"

	"oxapay-wallet-go/internal/models"
	"oxapay-wallet-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.AccountStore.
var _ store.AccountStore = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.InitSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// dsn builds the sqlite3 connection string. Every transaction is opened with
// BEGIN IMMEDIATE so writers take the database write lock up front and a
// read-modify-write can never interleave with another writer.
func dsn(cfg models.DatabaseConfig) string {
	busy := cfg.BusyTimeout.Milliseconds()
	if busy <= 0 {
		busy = 5000
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=on&_txlock=immediate&_busy_timeout=%d",
		cfg.Path, busy)
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping verifies the database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) InitSchema(ctx context.Context) error {
	schema := `
	-- Accounts (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS accounts (
		user_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Orders: one row per provider invoice, order_id unique across all accounts
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES accounts(user_id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		is_paid BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		paid_at TIMESTAMP,
		expired_at TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_id ON orders(order_id);
	CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_pending ON orders(is_paid, expired_at, created_at);

	-- Transaction log (Audit Trail - Cold Data), append-only
	CREATE TABLE IF NOT EXISTS account_transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES accounts(user_id),
		transaction_type TEXT NOT NULL CHECK (transaction_type IN ('add', 'remove', 'transfer-out', 'transfer-in')),
		amount INTEGER NOT NULL CHECK (amount > 0),
		order_id TEXT NOT NULL DEFAULT '',
		counterparty TEXT NOT NULL DEFAULT '',
		balance_before INTEGER NOT NULL,
		balance_after INTEGER NOT NULL CHECK (balance_after >= 0),
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_account_transactions_user_id ON account_transactions(user_id, seq);
	CREATE INDEX IF NOT EXISTS idx_account_transactions_order_id ON account_transactions(order_id);

	CREATE TRIGGER IF NOT EXISTS trg_account_transactions_no_update
	BEFORE UPDATE ON account_transactions
	BEGIN
		SELECT RAISE(ABORT, 'account_transactions is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS trg_account_transactions_no_delete
	BEFORE DELETE ON account_transactions
	BEGIN
		SELECT RAISE(ABORT, 'account_transactions is append-only');
	END;
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
