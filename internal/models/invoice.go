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

// PaymentStatus is the invoice status reported by the provider
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentExpired PaymentStatus = "Expired"
)

// Terminal reports whether no further status change is expected.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentExpired
}

// InvoiceRequest describes an invoice to create with the provider
type InvoiceRequest struct {
	Amount         int64
	LifeTime       int // minutes
	FeePaidByPayer bool
	Description    string
	CallbackURL    string
}

// Invoice is a created provider invoice
type Invoice struct {
	TrackId string
	PayLink string
}

// PaymentInfo is the provider's view of an invoice
type PaymentInfo struct {
	TrackId string
	Status  PaymentStatus
	Amount  int64
}

// InvoiceProfile holds the fixed invoice parameters and deposit limits.
type InvoiceProfile struct {
	LifeTime       int    `yaml:"life_time" validate:"min=15,max=2880"` // minutes
	FeePaidByPayer bool   `yaml:"fee_paid_by_payer"`
	Description    string `yaml:"description" validate:"max=255"`
	MinAmount      int64  `yaml:"min_amount" validate:"min=1"`
	MaxAmount      int64  `yaml:"max_amount" validate:"omitempty,gtefield=MinAmount"`
}

// Allows reports whether amount is within the deposit limits. A zero
// MaxAmount means no upper limit.
func (p InvoiceProfile) Allows(amount int64) bool {
	if amount < p.MinAmount {
		return false
	}
	return p.MaxAmount == 0 || amount <= p.MaxAmount
}
