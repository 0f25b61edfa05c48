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

package orders

import (
	"time"

	"oxapay-wallet-go/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SettlementsTotal counts settlement attempts by outcome.
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "order_settlements_total",
			Help:      "Order settlement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// ProviderCallDuration observes invoice provider latency by call.
	ProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet",
			Name:      "provider_call_duration_seconds",
			Help:      "Invoice provider call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"call", "status"},
	)

	// OrdersPurgedTotal counts expired pending orders removed by retention.
	OrdersPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "orders_purged_total",
			Help:      "Expired pending orders removed by retention.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SettlementsTotal,
		ProviderCallDuration,
		OrdersPurgedTotal,
	)
}

func observeSettlement(outcome models.SettlementOutcome) {
	SettlementsTotal.WithLabelValues(string(outcome)).Inc()
}

// observeProviderCall returns a function that records the call's duration
// labelled by whether it failed.
func observeProviderCall(call string) func(err error) {
	start := time.Now()
	return func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		ProviderCallDuration.WithLabelValues(call, status).Observe(time.Since(start).Seconds())
	}
}
