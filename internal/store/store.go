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

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oxapay-wallet-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrDuplicateOrder         = errors.New("duplicate order")
	ErrAlreadySettled         = errors.New("order already settled")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrSelfTransfer           = errors.New("cannot transfer to the same account")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrBalanceMismatch        = errors.New("balance mismatch")
)

// StorageError wraps any failure of the underlying persistence layer.
// A StorageError never leaves a partially applied mutation behind.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError for op. A nil err stays nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is, or wraps, a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Leg is one account's side of a mutation.
type Leg struct {
	UserId       string
	Type         models.TransactionType
	Amount       int64 // always positive, direction comes from Type
	OrderId      string
	Counterparty string
}

// SettleMode controls how a mutation treats its SettleOrderId.
type SettleMode int

const (
	// SettleIfPending flips the order when it is pending and owned by the
	// credited user; an unknown order id is kept only as a back-reference.
	SettleIfPending SettleMode = iota
	// SettleRequired fails with ErrOrderNotFound unless a pending order
	// owned by the credited user exists.
	SettleRequired
)

// Mutation is a set of legs applied atomically: every leg lands together
// with its log entry and order flip, or nothing does.
type Mutation struct {
	Legs          []Leg
	SettleOrderId string
	SettleMode    SettleMode
}

// AppliedLeg is the committed state of one leg.
type AppliedLeg struct {
	Entry   models.TransactionEntry
	Balance int64
}

// AccountStore defines the contract that every backend must satisfy.
type AccountStore interface {
	// --- Accounts ---
	EnsureAccount(ctx context.Context, userId string) (*models.Account, error)
	GetAccount(ctx context.Context, userId string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)

	// --- Mutations ---
	Apply(ctx context.Context, m Mutation) ([]AppliedLeg, error)

	// --- Transactions ---
	GetTransactions(ctx context.Context, userId string) ([]models.TransactionEntry, error)
	GetTransactionPage(ctx context.Context, userId string, limit, offset int) ([]models.TransactionEntry, int, error)
	ReconcileBalance(ctx context.Context, userId string) error

	// --- Orders ---
	CreateOrder(ctx context.Context, userId, orderId string, amount int64) (*models.Order, error)
	GetOrder(ctx context.Context, orderId string) (*models.Order, error)
	MarkOrderExpired(ctx context.Context, orderId string) (bool, error)
	ListPendingOrders(ctx context.Context, limit int) ([]models.Order, error)
	PurgeExpiredOrders(ctx context.Context, before time.Time) (int64, error)

	// --- Lifecycle ---
	Close()
}
