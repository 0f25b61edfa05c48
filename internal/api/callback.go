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
	"encoding/json"
	"io"
	"net/http"

	"oxapay-wallet-go/internal/oxapay"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxCallbackBody = 64 << 10

// CallbackPayload is the provider's payment notification
type CallbackPayload struct {
	TrackId string          `json:"trackId" validate:"required,max=64"`
	Status  string          `json:"status" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Type    string          `json:"type"`
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		CallbacksTotal.WithLabelValues("bad_request").Inc()
		http.Error(w, "unable to read body", http.StatusBadRequest)
		return
	}

	if !oxapay.VerifySignature(s.merchantKey, body, r.Header.Get(oxapay.SignatureHeader)) {
		CallbacksTotal.WithLabelValues("bad_signature").Inc()
		zap.L().Warn("Rejected callback with invalid signature",
			zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		CallbacksTotal.WithLabelValues("bad_request").Inc()
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		CallbacksTotal.WithLabelValues("bad_request").Inc()
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.Amount.IsNegative() {
		CallbacksTotal.WithLabelValues("bad_request").Inc()
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	result, err := s.wallet.ProcessPaymentCallback(r.Context(), payload.TrackId,
		oxapay.ParseStatus(payload.Status), oxapay.WholeUnits(payload.Amount))
	if err != nil {
		CallbacksTotal.WithLabelValues("error").Inc()
		zap.L().Error("Failed to process callback",
			zap.String("track_id", payload.TrackId),
			zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	label := "ignored"
	if result != nil {
		label = string(result.Outcome)
	}
	CallbacksTotal.WithLabelValues(label).Inc()

	_, _ = w.Write([]byte("ok"))
}
