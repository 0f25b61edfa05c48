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

// GetUserBalance returns the current balance for a user
func (s *WalletService) GetUserBalance(ctx context.Context, userId string) (int64, error) {
	if userId == "" {
		return 0, fmt.Errorf("user_id is required")
	}

	balance, err := s.engine.GetBalance(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user balance", zap.String("user_id", userId), zap.Error(err))
		return 0, fmt.Errorf("failed to retrieve balance: %w", err)
	}
	return balance, nil
}

// GetTransactionHistory returns one page of a user's history, oldest first
func (s *WalletService) GetTransactionHistory(ctx context.Context, userId string, page int) (models.TransactionPage, error) {
	if userId == "" {
		return models.TransactionPage{}, fmt.Errorf("user_id is required")
	}

	history, err := s.engine.GetTransactionPage(ctx, userId, page, 0)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", userId),
			zap.Int("page", page),
			zap.Error(err))
		return models.TransactionPage{}, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	return history, nil
}

// Transfer moves funds between two users
func (s *WalletService) Transfer(ctx context.Context, fromUserId, toUserId string, amount int64) (models.TransferResult, error) {
	if fromUserId == "" || toUserId == "" {
		return models.TransferResult{}, fmt.Errorf("from and to user ids are required")
	}
	return s.engine.Transfer(ctx, fromUserId, toUserId, amount)
}

// Reconcile verifies a user's balance against the transaction log
func (s *WalletService) Reconcile(ctx context.Context, userId string) error {
	return s.engine.Reconcile(ctx, userId)
}
