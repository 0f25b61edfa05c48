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

package api

import (
	"context"
	"fmt"

	"oxapay-wallet-go/internal/models"

	"go.uber.org/zap"
)

// RequestDeposit opens a provider invoice for the user
func (s *WalletService) RequestDeposit(ctx context.Context, userId string, amount int64) (*models.Deposit, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	return s.orders.CreateDeposit(ctx, userId, amount)
}

// CheckDeposit asks the provider about one of the user's deposits and
// credits it if it has been paid
func (s *WalletService) CheckDeposit(ctx context.Context, userId, orderId string) (models.StatusResult, error) {
	if userId == "" || orderId == "" {
		return models.StatusResult{}, fmt.Errorf("user_id and order_id are required")
	}
	return s.orders.CheckStatus(ctx, userId, orderId)
}

// ProcessPaymentCallback settles a provider notification. Only paid
// notifications touch the ledger.
func (s *WalletService) ProcessPaymentCallback(ctx context.Context, trackId string, status models.PaymentStatus, amount int64) (*models.SettlementResult, error) {
	zap.L().Info("Processing payment callback",
		zap.String("track_id", trackId),
		zap.String("status", string(status)),
		zap.Int64("amount", amount))

	if status != models.PaymentPaid {
		return nil, nil
	}

	result, err := s.orders.SettleInvoice(ctx, trackId, amount)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
