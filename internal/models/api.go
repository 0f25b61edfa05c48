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

// TransferResult holds both balances after a peer transfer
type TransferResult struct {
	FromBalance int64 `json:"from_balance"`
	ToBalance   int64 `json:"to_balance"`
}

// TransactionPage is one page of an account's history, oldest first
type TransactionPage struct {
	Entries    []TransactionEntry `json:"entries"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	TotalPages int                `json:"total_pages"`
	Total      int                `json:"total"`
	HasPrev    bool               `json:"has_prev"`
	HasNext    bool               `json:"has_next"`
}

// SettlementOutcome describes what a settlement attempt did
type SettlementOutcome string

const (
	SettlementCredited       SettlementOutcome = "credited"
	SettlementAlreadySettled SettlementOutcome = "already_settled"
	SettlementUnknownOrder   SettlementOutcome = "unknown_order"
)

// SettlementResult represents the result of settling an order
type SettlementResult struct {
	Outcome    SettlementOutcome `json:"outcome"`
	UserId     string            `json:"user_id"`
	OrderId    string            `json:"order_id"`
	Amount     int64             `json:"amount,omitempty"`
	NewBalance int64             `json:"new_balance,omitempty"`
}

// Credited reports whether this settlement applied a credit.
func (r SettlementResult) Credited() bool {
	return r.Outcome == SettlementCredited
}

// Deposit is a freshly opened order together with its payment link
type Deposit struct {
	Order   Order  `json:"order"`
	PayLink string `json:"pay_link"`
}

// StatusResult is the outcome of checking an order against the invoice provider
type StatusResult struct {
	Order      Order             `json:"order"`
	Status     PaymentStatus     `json:"status"`
	Settlement *SettlementResult `json:"settlement,omitempty"`
}
