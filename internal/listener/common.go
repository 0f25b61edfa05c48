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
	"sync"
	"time"

	"oxapay-wallet-go/internal/models"

	"go.uber.org/zap"
)

// OrderSettler is the order reconciliation surface the listener drives.
type OrderSettler interface {
	ListPending(ctx context.Context, limit int) ([]models.Order, error)
	CheckStatus(ctx context.Context, userId, orderId string) (models.StatusResult, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// SettlementListenerConfig contains configuration for SettlementListener
type SettlementListenerConfig struct {
	Orders          OrderSettler
	PollingInterval time.Duration
	CleanupInterval time.Duration
	OrderRetention  time.Duration
	MaxConcurrency  int
	BatchSize       int
}

// SettlementListener polls the invoice provider for pending orders and
// settles the paid ones
type SettlementListener struct {
	orders OrderSettler

	// Orders that reached a terminal status, by time seen
	processedOrders map[string]time.Time
	mutex           sync.RWMutex
	pollingInterval time.Duration
	cleanupInterval time.Duration
	orderRetention  time.Duration
	maxConcurrency  int
	batchSize       int

	// Control channels
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

const defaultBatchSize = 100

// NewSettlementListener creates a new settlement listener
func NewSettlementListener(cfg SettlementListenerConfig) *SettlementListener {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 15 * time.Minute
	}

	return &SettlementListener{
		orders:          cfg.Orders,
		processedOrders: make(map[string]time.Time),
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cfg.CleanupInterval,
		orderRetention:  cfg.OrderRetention,
		maxConcurrency:  cfg.MaxConcurrency,
		batchSize:       cfg.BatchSize,
		stopChan:        make(chan struct{}),
	}
}

// isOrderProcessed checks if the order already reached a terminal status
func (l *SettlementListener) isOrderProcessed(orderId string) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	_, exists := l.processedOrders[orderId]
	return exists
}

// markOrderProcessed marks an order as terminal
func (l *SettlementListener) markOrderProcessed(orderId string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.processedOrders[orderId] = time.Now()
}

// cleanupLoop periodically purges expired orders and old processed ids
func (l *SettlementListener) cleanupLoop(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(ctx, time.Now().UTC())
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *SettlementListener) cleanup(ctx context.Context, now time.Time) {
	if _, err := l.orders.PurgeExpired(ctx, now); err != nil {
		zap.L().Error("Failed to purge expired orders", zap.Error(err))
	}
	l.cleanupProcessedOrders(now)
}

// cleanupProcessedOrders removes entries older than the order retention window
func (l *SettlementListener) cleanupProcessedOrders(now time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	cutoff := now.Add(-l.orderRetention)
	cleaned := 0

	for orderId, processedTime := range l.processedOrders {
		if processedTime.Before(cutoff) {
			delete(l.processedOrders, orderId)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up old processed orders",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(l.processedOrders)))
	}
}
