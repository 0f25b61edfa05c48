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

package models

import "time"

// TransactionType is the kind of balance change recorded in an account's log.
// Direction is carried by the type, never by the sign of the amount.
type TransactionType string

const (
	TransactionAdd         TransactionType = "add"
	TransactionRemove      TransactionType = "remove"
	TransactionTransferOut TransactionType = "transfer-out"
	TransactionTransferIn  TransactionType = "transfer-in"
)

// IsCredit reports whether the entry type increases a balance.
func (t TransactionType) IsCredit() bool {
	return t == TransactionAdd || t == TransactionTransferIn
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionAdd, TransactionRemove, TransactionTransferOut, TransactionTransferIn:
		return true
	}
	return false
}

// Account is the per-user wallet record (hot data)
type Account struct {
	UserId    string    `db:"user_id"`
	Balance   int64     `db:"balance"`
	Version   int64     `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Order tracks one external invoice owned by one account
type Order struct {
	OrderId   string     `db:"order_id"`
	UserId    string     `db:"user_id"`
	Amount    int64      `db:"amount"`
	IsPaid    bool       `db:"is_paid"`
	CreatedAt time.Time  `db:"created_at"`
	PaidAt    *time.Time `db:"paid_at"`
	ExpiredAt *time.Time `db:"expired_at"`
}

// TransactionEntry is an immutable record of one balance change (cold data)
type TransactionEntry struct {
	Id            string          `db:"id"`
	UserId        string          `db:"user_id"`
	Type          TransactionType `db:"transaction_type"`
	Amount        int64           `db:"amount"`
	OrderId       string          `db:"order_id"`
	Counterparty  string          `db:"counterparty"`
	BalanceBefore int64           `db:"balance_before"`
	BalanceAfter  int64           `db:"balance_after"`
	Date          time.Time       `db:"created_at"`
}

// SignedAmount returns the amount with the direction implied by the entry type applied.
func (e TransactionEntry) SignedAmount() int64 {
	if e.Type.IsCredit() {
		return e.Amount
	}
	return -e.Amount
}
