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
	"math"
	"sort"
	"time"

	"oxapay-wallet-go/internal/models"
	"oxapay-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type accountState struct {
	balance int64
	version int64
	touched bool
}

// Apply atomically applies every leg of m: balances, log entries and the
// optional order flip commit together or not at all.
func (s *Service) Apply(ctx context.Context, m store.Mutation) ([]store.AppliedLeg, error) {
	if err := validateMutation(m); err != nil {
		return nil, err
	}

	userIds := mutationUsers(m)

	zap.L().Info("Applying mutation",
		zap.Strings("user_ids", userIds),
		zap.Int("legs", len(m.Legs)),
		zap.String("settle_order_id", m.SettleOrderId))

	// Start database transaction for atomicity (BEGIN IMMEDIATE via DSN)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.NewStorageError("begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()

	now := time.Now().UTC()

	// Accounts are created and read in a fixed order
	states := make(map[string]*accountState, len(userIds))
	for _, userId := range userIds {
		if _, err := tx.ExecContext(ctx, queryInsertAccount, userId, now, now); err != nil {
			return nil, store.NewStorageError("create account", err)
		}
	}
	for _, userId := range userIds {
		state := &accountState{}
		err := tx.QueryRowContext(ctx, queryGetAccountBalance, userId).Scan(&state.balance, &state.version)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, userId)
		}
		if err != nil {
			return nil, store.NewStorageError("get account balance", err)
		}
		states[userId] = state
	}

	if m.SettleOrderId != "" {
		if err := settleOrderTx(ctx, tx, m, now); err != nil {
			return nil, err
		}
	}

	applied := make([]store.AppliedLeg, 0, len(m.Legs))
	for _, leg := range m.Legs {
		state := states[leg.UserId]
		before := state.balance
		if leg.Type.IsCredit() && before > math.MaxInt64-leg.Amount {
			zap.L().Warn("Rejecting mutation: balance overflow",
				zap.String("user_id", leg.UserId),
				zap.Int64("balance", before),
				zap.Int64("amount", leg.Amount))
			return nil, fmt.Errorf("%w: crediting %d to user %s overflows balance %d", store.ErrInvalidAmount, leg.Amount, leg.UserId, before)
		}
		after := before + signed(leg)
		if after < 0 {
			zap.L().Warn("Rejecting mutation: insufficient balance",
				zap.String("user_id", leg.UserId),
				zap.String("type", string(leg.Type)),
				zap.Int64("balance", before),
				zap.Int64("amount", leg.Amount))
			return nil, fmt.Errorf("%w: user %s has %d, needs %d", store.ErrInsufficientBalance, leg.UserId, before, leg.Amount)
		}

		entry := models.TransactionEntry{
			Id:            uuid.New().String(),
			UserId:        leg.UserId,
			Type:          leg.Type,
			Amount:        leg.Amount,
			OrderId:       leg.OrderId,
			Counterparty:  leg.Counterparty,
			BalanceBefore: before,
			BalanceAfter:  after,
			Date:          now,
		}
		if _, err := tx.ExecContext(ctx, queryInsertTransaction,
			entry.Id, entry.UserId, string(entry.Type), entry.Amount, entry.OrderId, entry.Counterparty,
			entry.BalanceBefore, entry.BalanceAfter, entry.Date); err != nil {
			return nil, mapConstraintError("insert transaction", err)
		}

		state.balance = after
		state.touched = true
		applied = append(applied, store.AppliedLeg{Entry: entry, Balance: after})
	}

	// Update account balances (with optimistic locking)
	for _, userId := range userIds {
		state := states[userId]
		if !state.touched {
			continue
		}
		result, err := tx.ExecContext(ctx, queryUpdateAccountBalance, state.balance, now, userId, state.version)
		if err != nil {
			return nil, mapConstraintError("update balance", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, store.NewStorageError("check rows affected", err)
		}
		if rowsAffected == 0 {
			return nil, fmt.Errorf("balance update for %s failed - %w", userId, store.ErrConcurrentModification)
		}
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return nil, store.NewStorageError("commit transaction", err)
	}

	for _, leg := range applied {
		zap.L().Info("Transaction processed successfully",
			zap.String("transaction_id", leg.Entry.Id),
			zap.String("user_id", leg.Entry.UserId),
			zap.String("type", string(leg.Entry.Type)),
			zap.Int64("amount", leg.Entry.Amount),
			zap.Int64("old_balance", leg.Entry.BalanceBefore),
			zap.Int64("new_balance", leg.Entry.BalanceAfter))
	}

	return applied, nil
}

// settleOrderTx flips the mutation's order to paid inside tx. The credited
// user must own the order.
func settleOrderTx(ctx context.Context, tx *sql.Tx, m store.Mutation, now time.Time) error {
	owner := creditedUser(m)

	order, err := scanOrder(tx.QueryRowContext(ctx, queryGetOrder, m.SettleOrderId))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return store.NewStorageError("get order", err)
	}

	if order == nil || order.UserId != owner {
		if m.SettleMode == store.SettleRequired {
			return fmt.Errorf("%w: %s for user %s", store.ErrOrderNotFound, m.SettleOrderId, owner)
		}
		zap.L().Debug("Order id kept as back-reference only",
			zap.String("order_id", m.SettleOrderId),
			zap.String("user_id", owner))
		return nil
	}

	if order.IsPaid {
		return fmt.Errorf("%w: %s", store.ErrAlreadySettled, m.SettleOrderId)
	}

	result, err := tx.ExecContext(ctx, queryMarkOrderPaid, now, m.SettleOrderId, owner)
	if err != nil {
		return store.NewStorageError("mark order paid", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return store.NewStorageError("check rows affected", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrAlreadySettled, m.SettleOrderId)
	}
	return nil
}

func validateMutation(m store.Mutation) error {
	if len(m.Legs) == 0 {
		return fmt.Errorf("mutation has no legs")
	}
	for _, leg := range m.Legs {
		if leg.UserId == "" {
			return fmt.Errorf("leg is missing user_id")
		}
		if !leg.Type.Valid() {
			return fmt.Errorf("unknown transaction type %q", leg.Type)
		}
		if leg.Amount <= 0 {
			return fmt.Errorf("%w: %d", store.ErrInvalidAmount, leg.Amount)
		}
	}
	if m.SettleOrderId != "" && creditedUser(m) == "" {
		return fmt.Errorf("order %s settled without a credit leg", m.SettleOrderId)
	}
	return nil
}

// mutationUsers returns the distinct users of m in lock order.
func mutationUsers(m store.Mutation) []string {
	seen := make(map[string]bool, len(m.Legs))
	var userIds []string
	for _, leg := range m.Legs {
		if !seen[leg.UserId] {
			seen[leg.UserId] = true
			userIds = append(userIds, leg.UserId)
		}
	}
	sort.Strings(userIds)
	return userIds
}

func creditedUser(m store.Mutation) string {
	for _, leg := range m.Legs {
		if leg.Type == models.TransactionAdd {
			return leg.UserId
		}
	}
	return ""
}

func signed(leg store.Leg) int64 {
	if leg.Type.IsCredit() {
		return leg.Amount
	}
	return -leg.Amount
}

// mapConstraintError turns a CHECK violation on a balance into
// ErrInsufficientBalance; anything else is a storage failure.
func mapConstraintError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck {
		return fmt.Errorf("%w: %v", store.ErrInsufficientBalance, err)
	}
	return store.NewStorageError(op, err)
}

func scanEntry(row rowScanner) (models.TransactionEntry, error) {
	var entry models.TransactionEntry
	var entryType string
	err := row.Scan(&entry.Id, &entry.UserId, &entryType, &entry.Amount, &entry.OrderId, &entry.Counterparty,
		&entry.BalanceBefore, &entry.BalanceAfter, &entry.Date)
	entry.Type = models.TransactionType(entryType)
	return entry, err
}

func (s *Service) queryEntries(ctx context.Context, query string, args ...any) ([]models.TransactionEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStorageError("get transactions", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	entries := make([]models.TransactionEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, store.NewStorageError("scan transaction", err)
		}
		entries = append(entries, entry)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, store.NewStorageError("iterate transactions", err)
	}
	return entries, nil
}

// GetTransactions returns the full log for a user, oldest first
func (s *Service) GetTransactions(ctx context.Context, userId string) ([]models.TransactionEntry, error) {
	zap.L().Debug("Getting transaction history", zap.String("user_id", userId))
	return s.queryEntries(ctx, queryGetTransactions, userId)
}

// GetTransactionPage returns a window of the log, oldest first, and the total entry count
func (s *Service) GetTransactionPage(ctx context.Context, userId string, limit, offset int) ([]models.TransactionEntry, int, error) {
	zap.L().Debug("Getting transaction page",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	var total int
	if err := s.db.QueryRowContext(ctx, queryCountTransactions, userId).Scan(&total); err != nil {
		return nil, 0, store.NewStorageError("count transactions", err)
	}

	entries, err := s.queryEntries(ctx, queryGetTransactionPage, userId, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
