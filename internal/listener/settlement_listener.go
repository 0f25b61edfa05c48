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

package listener

import (
	"context"
	"fmt"
	"time"

	"oxapay-wallet-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// Start begins polling pending orders
func (l *SettlementListener) Start(ctx context.Context) error {
	if l.orders == nil {
		return fmt.Errorf("settlement listener has no order service")
	}
	if l.pollingInterval <= 0 {
		return fmt.Errorf("polling interval must be positive, got %v", l.pollingInterval)
	}

	zap.L().Info("Starting settlement listener")

	l.wg.Add(2)
	go l.pollLoop(ctx)
	go l.cleanupLoop(ctx)

	zap.L().Info("Settlement listener started successfully",
		zap.Duration("polling_interval", l.pollingInterval),
		zap.Duration("order_retention", l.orderRetention),
		zap.Int("max_concurrency", l.maxConcurrency))

	return nil
}

// Stop gracefully stops the settlement listener
func (l *SettlementListener) Stop() {
	l.stopOnce.Do(func() {
		zap.L().Info("Stopping settlement listener")
		close(l.stopChan)
	})
	l.wg.Wait()
	zap.L().Info("Settlement listener stopped")
}

// pollLoop runs the main polling loop
func (l *SettlementListener) pollLoop(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.pollingInterval)
	defer ticker.Stop()

	l.pollOrders(ctx)

	for {
		select {
		case <-ticker.C:
			l.pollOrders(ctx)
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pollOrders checks every pending order with bounded concurrency
func (l *SettlementListener) pollOrders(ctx context.Context) {
	pending, err := l.orders.ListPending(ctx, l.batchSize)
	if err != nil {
		zap.L().Error("Failed to list pending orders", zap.Error(err))
		return
	}

	fmt.Printf("\n%s[%s] Polling %d pending orders%s\n",
		colorCyan, time.Now().Format("15:04:05"), len(pending), colorReset)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxConcurrency)

	for _, order := range pending {
		if l.isOrderProcessed(order.OrderId) {
			continue
		}

		order := order
		g.Go(func() error {
			if err := l.pollOrder(gctx, order); err != nil {
				fmt.Printf("  %s✗ %s (user %s): %s%s\n", colorRed, order.OrderId, order.UserId, err, colorReset)
				zap.L().Error("Failed to poll order",
					zap.String("order_id", order.OrderId),
					zap.String("user_id", order.UserId),
					zap.Error(err))
			}
			// One failing order must not cancel the rest of the batch
			return nil
		})
	}

	_ = g.Wait()
}

// pollOrder queries one order and settles it when paid
func (l *SettlementListener) pollOrder(ctx context.Context, order models.Order) error {
	status, err := l.orders.CheckStatus(ctx, order.UserId, order.OrderId)
	if err != nil {
		return err
	}

	if !status.Status.Terminal() {
		zap.L().Debug("Order still pending", zap.String("order_id", order.OrderId))
		return nil
	}

	l.markOrderProcessed(order.OrderId)
	if status.Status == models.PaymentExpired {
		fmt.Printf("  %s~ %s expired%s\n", colorYellow, order.OrderId, colorReset)
		return nil
	}
	if status.Settlement != nil && status.Settlement.Credited() {
		fmt.Printf("  %s✓ %s credited %d to %s (balance %d)%s\n",
			colorGreen, order.OrderId, status.Settlement.Amount, order.UserId,
			status.Settlement.NewBalance, colorReset)
	}
	return nil
}
