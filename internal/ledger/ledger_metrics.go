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

package ledger

import (
	"errors"
	"time"

	"oxapay-wallet-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LedgerOpsTotal counts ledger operations by type.
	LedgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "ledger_operations_total",
			Help:      "Total ledger operations by type.",
		},
		[]string{"type"},
	)

	// LedgerOpDuration observes operation latency by type.
	LedgerOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet",
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	// LedgerRejectionsTotal counts operations refused by a ledger rule.
	LedgerRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "ledger_rejections_total",
			Help:      "Ledger operations rejected by type and reason.",
		},
		[]string{"type", "reason"},
	)
)

func init() {
	prometheus.MustRegister(
		LedgerOpsTotal,
		LedgerOpDuration,
		LedgerRejectionsTotal,
	)
}

// observeOp increments the operation counter and returns a function to observe duration.
func observeOp(opType string) func() {
	LedgerOpsTotal.WithLabelValues(opType).Inc()
	start := time.Now()
	return func() {
		LedgerOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}

// observeRejection records err against opType when it is a rule violation.
func observeRejection(opType string, err error) {
	if reason := rejectionReason(err); reason != "" {
		LedgerRejectionsTotal.WithLabelValues(opType, reason).Inc()
	}
}

func rejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, store.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, store.ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, store.ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, store.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, store.ErrBalanceMismatch):
		return "balance_mismatch"
	case errors.Is(err, store.ErrConcurrentModification):
		return "concurrent_modification"
	case store.IsStorageError(err):
		return "storage"
	}
	return "other"
}
