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

// Package orders tracks provider invoices from creation to settlement and
// credits each paid invoice into the ledger exactly once.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oxapay-wallet-go/internal/ledger"
	"oxapay-wallet-go/internal/models"
	"oxapay-wallet-go/internal/store"

	"go.uber.org/zap"
)

// InvoiceProvider is the external payment gateway.
type InvoiceProvider interface {
	CreateInvoice(ctx context.Context, req models.InvoiceRequest) (*models.Invoice, error)
	PaymentInfo(ctx context.Context, trackId string) (*models.PaymentInfo, error)
}

type Config struct {
	Profile     models.InvoiceProfile
	CallbackURL string
	Retention   time.Duration
}

type Service struct {
	engine   *ledger.Engine
	store    store.AccountStore
	provider InvoiceProvider
	cfg      Config
}

func NewService(engine *ledger.Engine, s store.AccountStore, provider InvoiceProvider, cfg Config) *Service {
	return &Service{
		engine:   engine,
		store:    s,
		provider: provider,
		cfg:      cfg,
	}
}

// OpenOrder records a pending order. The balance is not touched.
func (s *Service) OpenOrder(ctx context.Context, userId, orderId string, amount int64) (*models.Order, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", store.ErrInvalidAmount, amount)
	}
	if orderId == "" {
		return nil, fmt.Errorf("order id cannot be empty")
	}
	return s.store.CreateOrder(ctx, userId, orderId, amount)
}

// LookupOrder returns the order only if userId opened it.
func (s *Service) LookupOrder(ctx context.Context, userId, orderId string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	if order.UserId != userId {
		return nil, fmt.Errorf("%w: %s for user %s", store.ErrOrderNotFound, orderId, userId)
	}
	return order, nil
}

// IsSettleable reports whether userId has a pending order with orderId.
func (s *Service) IsSettleable(ctx context.Context, userId, orderId string) (bool, error) {
	order, err := s.LookupOrder(ctx, userId, orderId)
	if errors.Is(err, store.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !order.IsPaid, nil
}

// Settle credits amount for a provider-confirmed order. Orders that are
// already paid or unknown are reported through the outcome, not an error.
func (s *Service) Settle(ctx context.Context, userId, orderId string, amount int64) (models.SettlementResult, error) {
	result := models.SettlementResult{UserId: userId, OrderId: orderId}

	balance, err := s.engine.SettleOrder(ctx, userId, orderId, amount)
	switch {
	case err == nil:
		result.Outcome = models.SettlementCredited
		result.Amount = amount
		result.NewBalance = balance
		zap.L().Info("Order settled",
			zap.String("user_id", userId),
			zap.String("order_id", orderId),
			zap.Int64("amount", amount),
			zap.Int64("new_balance", balance))
	case errors.Is(err, store.ErrAlreadySettled):
		result.Outcome = models.SettlementAlreadySettled
		zap.L().Info("Order already settled",
			zap.String("user_id", userId),
			zap.String("order_id", orderId))
	case errors.Is(err, store.ErrOrderNotFound):
		result.Outcome = models.SettlementUnknownOrder
		zap.L().Warn("Settlement for unknown order ignored",
			zap.String("user_id", userId),
			zap.String("order_id", orderId))
	default:
		zap.L().Error("Failed to settle order",
			zap.String("user_id", userId),
			zap.String("order_id", orderId),
			zap.Error(err))
		return result, err
	}

	observeSettlement(result.Outcome)
	return result, nil
}

// SettleInvoice settles a confirmed invoice on behalf of whoever opened it.
func (s *Service) SettleInvoice(ctx context.Context, trackId string, amount int64) (models.SettlementResult, error) {
	order, err := s.store.GetOrder(ctx, trackId)
	if errors.Is(err, store.ErrOrderNotFound) {
		observeSettlement(models.SettlementUnknownOrder)
		zap.L().Warn("Confirmed invoice has no order", zap.String("track_id", trackId))
		return models.SettlementResult{Outcome: models.SettlementUnknownOrder, OrderId: trackId}, nil
	}
	if err != nil {
		return models.SettlementResult{}, err
	}

	if amount <= 0 {
		amount = order.Amount
	}
	return s.Settle(ctx, order.UserId, trackId, amount)
}

// CreateDeposit asks the provider for an invoice and records it as a
// pending order keyed by the provider's track id.
func (s *Service) CreateDeposit(ctx context.Context, userId string, amount int64) (*models.Deposit, error) {
	if amount <= 0 || !s.cfg.Profile.Allows(amount) {
		return nil, fmt.Errorf("%w: %d outside deposit limits", store.ErrInvalidAmount, amount)
	}

	done := observeProviderCall("create_invoice")
	invoice, err := s.provider.CreateInvoice(ctx, models.InvoiceRequest{
		Amount:         amount,
		LifeTime:       s.cfg.Profile.LifeTime,
		FeePaidByPayer: s.cfg.Profile.FeePaidByPayer,
		Description:    s.cfg.Profile.Description,
		CallbackURL:    s.cfg.CallbackURL,
	})
	done(err)
	if err != nil {
		return nil, fmt.Errorf("unable to create invoice: %w", err)
	}

	order, err := s.OpenOrder(ctx, userId, invoice.TrackId, amount)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deposit invoice created",
		zap.String("user_id", userId),
		zap.String("track_id", invoice.TrackId),
		zap.Int64("amount", amount))

	return &models.Deposit{Order: *order, PayLink: invoice.PayLink}, nil
}

// CheckStatus asks the provider about the user's order and settles it when
// it is paid. An order already paid here is answered without a provider call.
func (s *Service) CheckStatus(ctx context.Context, userId, orderId string) (models.StatusResult, error) {
	order, err := s.LookupOrder(ctx, userId, orderId)
	if err != nil {
		return models.StatusResult{}, err
	}
	if order.IsPaid {
		return models.StatusResult{Order: *order, Status: models.PaymentPaid}, nil
	}

	done := observeProviderCall("payment_info")
	info, err := s.provider.PaymentInfo(ctx, orderId)
	done(err)
	if err != nil {
		return models.StatusResult{}, fmt.Errorf("unable to query payment %s: %w", orderId, err)
	}

	result := models.StatusResult{Order: *order, Status: info.Status}
	if info.Status == models.PaymentExpired {
		if _, err := s.store.MarkOrderExpired(ctx, orderId); err != nil {
			return models.StatusResult{}, err
		}
		now := time.Now().UTC()
		result.Order.ExpiredAt = &now
		return result, nil
	}
	if info.Status != models.PaymentPaid {
		zap.L().Debug("Order not paid yet",
			zap.String("order_id", orderId),
			zap.String("status", string(info.Status)))
		return result, nil
	}

	amount := info.Amount
	if amount <= 0 {
		amount = order.Amount
	}
	settlement, err := s.Settle(ctx, userId, orderId, amount)
	if err != nil {
		return models.StatusResult{}, err
	}
	result.Settlement = &settlement
	if settlement.Outcome != models.SettlementUnknownOrder {
		result.Order.IsPaid = true
	}
	return result, nil
}

// ListPending returns up to limit unpaid orders not yet reported expired, oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]models.Order, error) {
	return s.store.ListPendingOrders(ctx, limit)
}

// PurgeExpired removes pending orders older than the retention window.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if s.cfg.Retention <= 0 {
		return 0, nil
	}

	purged, err := s.store.PurgeExpiredOrders(ctx, now.Add(-s.cfg.Retention))
	if err != nil {
		return 0, err
	}
	OrdersPurgedTotal.Add(float64(purged))
	return purged, nil
}
