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
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"oxapay-wallet-go/internal/database"
	"oxapay-wallet-go/internal/ledger"
	"oxapay-wallet-go/internal/models"
	"oxapay-wallet-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	next      int
	requests  []models.InvoiceRequest
	payments  map[string]models.PaymentInfo
	inquiries int
	err       error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{payments: make(map[string]models.PaymentInfo)}
}

func (f *fakeProvider) CreateInvoice(_ context.Context, req models.InvoiceRequest) (*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.next++
	f.requests = append(f.requests, req)
	trackId := fmt.Sprintf("trk-%d", f.next)
	return &models.Invoice{TrackId: trackId, PayLink: "https://pay.example/" + trackId}, nil
}

func (f *fakeProvider) PaymentInfo(_ context.Context, trackId string) (*models.PaymentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inquiries++
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.payments[trackId]
	if !ok {
		return &models.PaymentInfo{TrackId: trackId, Status: models.PaymentPending}, nil
	}
	return &info, nil
}

func (f *fakeProvider) setPaid(trackId string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[trackId] = models.PaymentInfo{TrackId: trackId, Status: models.PaymentPaid, Amount: amount}
}

var testProfile = models.InvoiceProfile{
	LifeTime:       120,
	FeePaidByPayer: true,
	Description:    "Wallet deposit",
	MinAmount:      1,
	MaxAmount:      1000,
}

func newTestService(t *testing.T) (*Service, *ledger.Engine, *fakeProvider) {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "orders.db"),
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	engine := ledger.NewEngine(db)
	provider := newFakeProvider()
	service := NewService(engine, db, provider, Config{
		Profile:     testProfile,
		CallbackURL: "https://bot.example/oxapay/callback",
		Retention:   48 * time.Hour,
	})
	return service, engine, provider
}

func TestOpenOrder_DuplicateRejected(t *testing.T) {
	service, engine, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.OpenOrder(ctx, "42", "ord1", 100)
	require.NoError(t, err)

	_, err = service.OpenOrder(ctx, "43", "ord1", 50)
	assert.ErrorIs(t, err, store.ErrDuplicateOrder)

	order, err := service.LookupOrder(ctx, "42", "ord1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), order.Amount)
	assert.False(t, order.IsPaid)

	balance, err := engine.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestOpenOrder_InvalidAmount(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.OpenOrder(context.Background(), "42", "ord1", 0)
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
}

func TestSettle_ExactlyOnce(t *testing.T) {
	service, engine, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.OpenOrder(ctx, "42", "ord1", 100)
	require.NoError(t, err)

	settleable, err := service.IsSettleable(ctx, "42", "ord1")
	require.NoError(t, err)
	assert.True(t, settleable)

	first, err := service.Settle(ctx, "42", "ord1", 100)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementCredited, first.Outcome)
	assert.Equal(t, int64(100), first.NewBalance)

	second, err := service.Settle(ctx, "42", "ord1", 100)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementAlreadySettled, second.Outcome)

	settleable, err = service.IsSettleable(ctx, "42", "ord1")
	require.NoError(t, err)
	assert.False(t, settleable)

	balance, err := engine.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	entries, err := engine.GetTransactions(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSettle_ConcurrentCallsCreditOnce(t *testing.T) {
	service, engine, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.OpenOrder(ctx, "42", "ord1", 25)
	require.NoError(t, err)

	const callers = 10
	outcomes := make(chan models.SettlementOutcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.Settle(ctx, "42", "ord1", 25)
			assert.NoError(t, err)
			outcomes <- result.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	credited := 0
	for outcome := range outcomes {
		if outcome == models.SettlementCredited {
			credited++
		} else {
			assert.Equal(t, models.SettlementAlreadySettled, outcome)
		}
	}
	assert.Equal(t, 1, credited)

	balance, err := engine.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)
}

func TestSettle_UnknownOrOtherUsersOrder(t *testing.T) {
	service, engine, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.OpenOrder(ctx, "42", "ord1", 100)
	require.NoError(t, err)

	result, err := service.Settle(ctx, "43", "ord1", 100)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementUnknownOrder, result.Outcome)

	result, err = service.Settle(ctx, "42", "missing", 100)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementUnknownOrder, result.Outcome)

	_, err = service.LookupOrder(ctx, "43", "ord1")
	assert.ErrorIs(t, err, store.ErrOrderNotFound)

	balance, err := engine.GetBalance(ctx, "43")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestSettleInvoice_ResolvesOwner(t *testing.T) {
	service, engine, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.OpenOrder(ctx, "42", "ord1", 100)
	require.NoError(t, err)

	result, err := service.SettleInvoice(ctx, "ord1", 0)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementCredited, result.Outcome)
	assert.Equal(t, "42", result.UserId)
	assert.Equal(t, int64(100), result.Amount)

	result, err = service.SettleInvoice(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementUnknownOrder, result.Outcome)

	balance, err := engine.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestCreateDeposit(t *testing.T) {
	service, _, provider := newTestService(t)
	ctx := context.Background()

	deposit, err := service.CreateDeposit(ctx, "42", 50)
	require.NoError(t, err)
	assert.Equal(t, "trk-1", deposit.Order.OrderId)
	assert.Equal(t, "https://pay.example/trk-1", deposit.PayLink)
	assert.False(t, deposit.Order.IsPaid)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Equal(t, int64(50), req.Amount)
	assert.Equal(t, 120, req.LifeTime)
	assert.True(t, req.FeePaidByPayer)
	assert.Equal(t, "Wallet deposit", req.Description)
	assert.Equal(t, "https://bot.example/oxapay/callback", req.CallbackURL)

	pending, err := service.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "trk-1", pending[0].OrderId)
}

func TestCreateDeposit_Rejected(t *testing.T) {
	service, _, provider := newTestService(t)
	ctx := context.Background()

	_, err := service.CreateDeposit(ctx, "42", 5000)
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
	_, err = service.CreateDeposit(ctx, "42", -1)
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
	assert.Empty(t, provider.requests)

	provider.err = errors.New("gateway down")
	_, err = service.CreateDeposit(ctx, "42", 10)
	assert.ErrorContains(t, err, "gateway down")

	pending, err := service.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCheckStatus(t *testing.T) {
	service, engine, provider := newTestService(t)
	ctx := context.Background()

	deposit, err := service.CreateDeposit(ctx, "42", 40)
	require.NoError(t, err)
	trackId := deposit.Order.OrderId

	status, err := service.CheckStatus(ctx, "42", trackId)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, status.Status)
	assert.Nil(t, status.Settlement)

	provider.setPaid(trackId, 40)

	status, err = service.CheckStatus(ctx, "42", trackId)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, status.Status)
	require.NotNil(t, status.Settlement)
	assert.Equal(t, models.SettlementCredited, status.Settlement.Outcome)
	assert.True(t, status.Order.IsPaid)

	inquiries := provider.inquiries
	status, err = service.CheckStatus(ctx, "42", trackId)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, status.Status)
	assert.Equal(t, inquiries, provider.inquiries)

	balance, err := engine.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)

	_, err = service.CheckStatus(ctx, "43", trackId)
	assert.ErrorIs(t, err, store.ErrOrderNotFound)
}

func TestCheckStatus_Expired(t *testing.T) {
	service, engine, provider := newTestService(t)
	ctx := context.Background()

	_, err := service.OpenOrder(ctx, "42", "ord1", 10)
	require.NoError(t, err)
	provider.payments["ord1"] = models.PaymentInfo{TrackId: "ord1", Status: models.PaymentExpired}

	status, err := service.CheckStatus(ctx, "42", "ord1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentExpired, status.Status)
	assert.Nil(t, status.Settlement)
	assert.NotNil(t, status.Order.ExpiredAt)

	balance, err := engine.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.Zero(t, balance)

	order, err := service.LookupOrder(ctx, "42", "ord1")
	require.NoError(t, err)
	assert.NotNil(t, order.ExpiredAt)
	assert.False(t, order.IsPaid)

	pending, err := service.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// A late payment still settles an expired order
	provider.setPaid("ord1", 10)
	status, err = service.CheckStatus(ctx, "42", "ord1")
	require.NoError(t, err)
	require.NotNil(t, status.Settlement)
	assert.Equal(t, models.SettlementCredited, status.Settlement.Outcome)

	balance, err = engine.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestListPending_SkipsExpiredOrders(t *testing.T) {
	service, _, provider := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		orderId := fmt.Sprintf("expired-%d", i)
		_, err := service.OpenOrder(ctx, "42", orderId, 10)
		require.NoError(t, err)
		provider.payments[orderId] = models.PaymentInfo{TrackId: orderId, Status: models.PaymentExpired}
	}
	_, err := service.OpenOrder(ctx, "43", "fresh", 10)
	require.NoError(t, err)

	pending, err := service.ListPending(ctx, 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for _, order := range pending {
		_, err := service.CheckStatus(ctx, order.UserId, order.OrderId)
		require.NoError(t, err)
	}

	pending, err = service.ListPending(ctx, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "fresh", pending[0].OrderId)
}

func TestPurgeExpired(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.OpenOrder(ctx, "42", "old", 10)
	require.NoError(t, err)

	purged, err := service.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, purged)

	purged, err = service.PurgeExpired(ctx, time.Now().Add(49*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = service.LookupOrder(ctx, "42", "old")
	assert.ErrorIs(t, err, store.ErrOrderNotFound)
}
