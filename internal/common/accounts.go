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

package common

import (
	"context"
	"fmt"

	"oxapay-wallet-go/internal/models"
	"oxapay-wallet-go/internal/store"

	"go.uber.org/zap"
)

// InitializeAccounts retrieves accounts based on an optional user filter.
// If userFilter is provided, returns that single account.
// If userFilter is empty, returns all accounts.
func InitializeAccounts(ctx context.Context, accounts store.AccountStore, userFilter string, logger *zap.Logger) ([]models.Account, error) {
	if userFilter != "" {
		logger.Info("Looking up account", zap.String("user_id", userFilter))
		account, err := accounts.GetAccount(ctx, userFilter)
		if err != nil {
			return nil, fmt.Errorf("account not found: %w", err)
		}
		return []models.Account{*account}, nil
	}

	all, err := accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}

	logger.Info("Retrieved accounts", zap.Int("count", len(all)))
	return all, nil
}
