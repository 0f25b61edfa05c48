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
	"errors"
	"fmt"
	"time"

	"oxapay-wallet-go/internal/models"
	"oxapay-wallet-go/internal/store"

	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	if err := row.Scan(&account.UserId, &account.Balance, &account.Version, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return nil, err
	}
	return &account, nil
}

// EnsureAccount returns the account for userId, creating an empty one if absent.
func (s *Service) EnsureAccount(ctx context.Context, userId string) (*models.Account, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, queryInsertAccount, userId, now, now)
	if err != nil {
		zap.L().Error("Failed to insert account", zap.String("user_id", userId), zap.Error(err))
		return nil, store.NewStorageError("create account", err)
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected > 0 {
		zap.L().Info("Account created", zap.String("user_id", userId))
	}

	account, err := s.GetAccount(ctx, userId)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, userId string) (*models.Account, error) {
	zap.L().Debug("Querying account", zap.String("user_id", userId))

	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccount, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, userId)
		}
		zap.L().Error("Failed to query account", zap.String("user_id", userId), zap.Error(err))
		return nil, store.NewStorageError("get account", err)
	}

	zap.L().Debug("Retrieved account", zap.String("user_id", userId), zap.Int64("balance", account.Balance))
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	zap.L().Debug("Querying accounts")

	rows, err := s.db.QueryContext(ctx, queryListAccounts)
	if err != nil {
		zap.L().Error("Failed to query accounts", zap.Error(err))
		return nil, store.NewStorageError("list accounts", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			zap.L().Error("Failed to scan account row", zap.Error(err))
			return nil, store.NewStorageError("scan account", err)
		}
		accounts = append(accounts, *account)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during account row iteration", zap.Error(err))
		return nil, store.NewStorageError("iterate accounts", err)
	}

	zap.L().Debug("Retrieved accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}

// ReconcileBalance verifies that the stored balance matches the signed sum of the log
func (s *Service) ReconcileBalance(ctx context.Context, userId string) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId))

	account, err := s.GetAccount(ctx, userId)
	if err != nil {
		return err
	}

	var calculated int64
	if err := s.db.QueryRowContext(ctx, queryReconcileBalance, userId).Scan(&calculated); err != nil {
		return store.NewStorageError("calculate balance from transactions", err)
	}

	if account.Balance != calculated {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.Int64("current_balance", account.Balance),
			zap.Int64("calculated_balance", calculated),
			zap.Int64("difference", account.Balance-calculated))
		return fmt.Errorf("%w: current=%d, calculated=%d", store.ErrBalanceMismatch, account.Balance, calculated)
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.Int64("balance", account.Balance))
	return nil
}
