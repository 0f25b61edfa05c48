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

	"oxapay-wallet-go/internal/ledger"
	"oxapay-wallet-go/internal/orders"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WalletService is the entry point for chat adapters and command-line tools
type WalletService struct {
	engine *ledger.Engine
	orders *orders.Service
	db     Pinger
}

func NewWalletService(engine *ledger.Engine, orderService *orders.Service, db Pinger) *WalletService {
	return &WalletService{
		engine: engine,
		orders: orderService,
		db:     db,
	}
}

func (s *WalletService) HealthCheck(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
