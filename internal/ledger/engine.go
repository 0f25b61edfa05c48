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

// Package ledger is the only code path that changes balances, flips
// orders to paid, or appends to the transaction log.
package ledger

import (
	"context"
	"fmt"

	"oxapay-wallet-go/internal/models"
	"oxapay-wallet-go/internal/store"

	"go.uber.org/zap"
)

// DefaultPageSize is the number of history entries shown per page.
const DefaultPageSize = 5

type Engine struct {
	store store.AccountStore
}

func NewEngine(s store.AccountStore) *Engine {
	return &Engine{store: s}
}

func (e *Engine) EnsureAccount(ctx context.Context, userId string) (*models.Account, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	return e.store.EnsureAccount(ctx, userId)
}

// Credit adds amount to the user's balance and returns the new balance.
// When orderId names a pending order of this user the order is marked paid
// in the same transaction; a paid one yields ErrAlreadySettled.
func (e *Engine) Credit(ctx context.Context, userId string, amount int64, orderId string) (int64, error) {
	done := observeOp("credit")
	defer done()

	balance, err := e.credit(ctx, userId, amount, orderId, store.SettleIfPending)
	observeRejection("credit", err)
	return balance, err
}

// SettleOrder credits amount against a pending order owned by userId.
// Unlike Credit the order must exist, otherwise ErrOrderNotFound.
func (e *Engine) SettleOrder(ctx context.Context, userId, orderId string, amount int64) (int64, error) {
	done := observeOp("settle")
	defer done()

	if orderId == "" {
		return 0, fmt.Errorf("%w: empty order id", store.ErrOrderNotFound)
	}
	balance, err := e.credit(ctx, userId, amount, orderId, store.SettleRequired)
	observeRejection("settle", err)
	return balance, err
}

func (e *Engine) credit(ctx context.Context, userId string, amount int64, orderId string, mode store.SettleMode) (int64, error) {
	if err := validateAmount(amount); err != nil {
		return 0, err
	}

	applied, err := e.store.Apply(ctx, store.Mutation{
		Legs: []store.Leg{{
			UserId:  userId,
			Type:    models.TransactionAdd,
			Amount:  amount,
			OrderId: orderId,
		}},
		SettleOrderId: orderId,
		SettleMode:    mode,
	})
	if err != nil {
		return 0, fmt.Errorf("credit %s: %w", userId, err)
	}
	return applied[0].Balance, nil
}

// Debit removes amount from the user's balance and returns the new balance.
func (e *Engine) Debit(ctx context.Context, userId string, amount int64) (int64, error) {
	done := observeOp("debit")
	defer done()

	balance, err := e.debit(ctx, userId, amount)
	observeRejection("debit", err)
	return balance, err
}

func (e *Engine) debit(ctx context.Context, userId string, amount int64) (int64, error) {
	if err := validateAmount(amount); err != nil {
		return 0, err
	}

	applied, err := e.store.Apply(ctx, store.Mutation{
		Legs: []store.Leg{{UserId: userId, Type: models.TransactionRemove, Amount: amount}},
	})
	if err != nil {
		return 0, fmt.Errorf("debit %s: %w", userId, err)
	}
	return applied[0].Balance, nil
}

// Transfer moves amount from one account to another in a single
// transaction. Both accounts are created if missing.
func (e *Engine) Transfer(ctx context.Context, from, to string, amount int64) (models.TransferResult, error) {
	done := observeOp("transfer")
	defer done()

	result, err := e.transfer(ctx, from, to, amount)
	observeRejection("transfer", err)
	return result, err
}

func (e *Engine) transfer(ctx context.Context, from, to string, amount int64) (models.TransferResult, error) {
	if err := validateAmount(amount); err != nil {
		return models.TransferResult{}, err
	}
	if from == to {
		return models.TransferResult{}, fmt.Errorf("%w: %s", store.ErrSelfTransfer, from)
	}

	applied, err := e.store.Apply(ctx, store.Mutation{
		Legs: []store.Leg{
			{UserId: from, Type: models.TransactionTransferOut, Amount: amount, Counterparty: to},
			{UserId: to, Type: models.TransactionTransferIn, Amount: amount, Counterparty: from},
		},
	})
	if err != nil {
		return models.TransferResult{}, fmt.Errorf("transfer %s -> %s: %w", from, to, err)
	}

	zap.L().Info("Transfer completed",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int64("amount", amount))

	return models.TransferResult{
		FromBalance: applied[0].Balance,
		ToBalance:   applied[1].Balance,
	}, nil
}

// GetBalance returns the user's balance, creating the account if needed.
func (e *Engine) GetBalance(ctx context.Context, userId string) (int64, error) {
	account, err := e.EnsureAccount(ctx, userId)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (e *Engine) GetTransactions(ctx context.Context, userId string) ([]models.TransactionEntry, error) {
	return e.store.GetTransactions(ctx, userId)
}

// GetTransactionPage returns one page of history, oldest first. Pages are
// 1-based; out of range pages are clamped.
func (e *Engine) GetTransactionPage(ctx context.Context, userId string, page, perPage int) (models.TransactionPage, error) {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	// Count first so an out of range page can be clamped
	_, total, err := e.store.GetTransactionPage(ctx, userId, 0, 0)
	if err != nil {
		return models.TransactionPage{}, err
	}

	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	entries, total, err := e.store.GetTransactionPage(ctx, userId, perPage, (page-1)*perPage)
	if err != nil {
		return models.TransactionPage{}, err
	}

	return models.TransactionPage{
		Entries:    entries,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      total,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}, nil
}

// Reconcile checks that the balance equals the signed sum of the log.
func (e *Engine) Reconcile(ctx context.Context, userId string) error {
	done := observeOp("reconcile")
	defer done()

	err := e.store.ReconcileBalance(ctx, userId)
	observeRejection("reconcile", err)
	return err
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", store.ErrInvalidAmount, amount)
	}
	return nil
}
