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

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var paidAt, expiredAt sql.NullTime
	if err := row.Scan(&order.OrderId, &order.UserId, &order.Amount, &order.IsPaid, &order.CreatedAt, &paidAt, &expiredAt); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	if expiredAt.Valid {
		t := expiredAt.Time
		order.ExpiredAt = &t
	}
	return &order, nil
}

// CreateOrder records a pending order. The order id is unique across every account.
func (s *Service) CreateOrder(ctx context.Context, userId, orderId string, amount int64) (*models.Order, error) {
	zap.L().Info("Creating order",
		zap.String("user_id", userId),
		zap.String("order_id", orderId),
		zap.Int64("amount", amount))

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
	if _, err := tx.ExecContext(ctx, queryInsertAccount, userId, now, now); err != nil {
		return nil, store.NewStorageError("create account", err)
	}

	if _, err := tx.ExecContext(ctx, queryInsertOrder, orderId, userId, amount, now); err != nil {
		if isUniqueViolation(err) {
			zap.L().Warn("Duplicate order id rejected",
				zap.String("order_id", orderId),
				zap.String("user_id", userId))
			return nil, fmt.Errorf("%w: order_id %s already exists", store.ErrDuplicateOrder, orderId)
		}
		return nil, store.NewStorageError("insert order", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.NewStorageError("commit transaction", err)
	}

	zap.L().Info("Order created successfully",
		zap.String("user_id", userId),
		zap.String("order_id", orderId))

	return &models.Order{
		OrderId:   orderId,
		UserId:    userId,
		Amount:    amount,
		CreatedAt: now,
	}, nil
}

// GetOrder looks an order up by its system-wide id
func (s *Service) GetOrder(ctx context.Context, orderId string) (*models.Order, error) {
	zap.L().Debug("Querying order", zap.String("order_id", orderId))

	order, err := scanOrder(s.db.QueryRowContext(ctx, queryGetOrder, orderId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrOrderNotFound, orderId)
		}
		zap.L().Error("Failed to query order", zap.String("order_id", orderId), zap.Error(err))
		return nil, store.NewStorageError("get order", err)
	}
	return order, nil
}

// MarkOrderExpired records that the provider reported the order's invoice as expired.
// Expired orders are no longer listed as pending but can still be settled if a late
// payment arrives. It returns false when the order is already paid or already marked.
func (s *Service) MarkOrderExpired(ctx context.Context, orderId string) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryMarkOrderExpired, time.Now().UTC(), orderId)
	if err != nil {
		return false, store.NewStorageError("mark order expired", err)
	}

	marked, err := result.RowsAffected()
	if err != nil {
		return false, store.NewStorageError("check rows affected", err)
	}

	if marked > 0 {
		zap.L().Info("Order marked expired", zap.String("order_id", orderId))
	}
	return marked > 0, nil
}

// ListPendingOrders returns unpaid orders not yet marked expired, oldest first
func (s *Service) ListPendingOrders(ctx context.Context, limit int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingOrders, limit)
	if err != nil {
		return nil, store.NewStorageError("list pending orders", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, store.NewStorageError("scan order", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during order row iteration", zap.Error(err))
		return nil, store.NewStorageError("iterate orders", err)
	}

	zap.L().Debug("Retrieved pending orders", zap.Int("count", len(orders)))
	return orders, nil
}

// PurgeExpiredOrders deletes pending orders created before the cutoff. Paid orders are kept.
func (s *Service) PurgeExpiredOrders(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryPurgeExpiredOrders, before.UTC())
	if err != nil {
		return 0, store.NewStorageError("purge expired orders", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStorageError("check rows affected", err)
	}

	if purged > 0 {
		zap.L().Info("Purged expired orders",
			zap.Int64("count", purged),
			zap.Time("created_before", before))
	}
	return purged, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
