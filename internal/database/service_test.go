package database

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"oxapay-wallet-go/internal/models"
	"oxapay-wallet-go/internal/store"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	t.Helper()

	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "wallet.db"),
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
		BusyTimeout:     10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	return service, service.Close
}

func credit(userId string, amount int64) store.Mutation {
	return store.Mutation{Legs: []store.Leg{{UserId: userId, Type: models.TransactionAdd, Amount: amount}}}
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(context.Background(), models.DatabaseConfig{})
	if err == nil {
		t.Fatal("Expected error for empty database path")
	}

	_, err = NewService(context.Background(), models.DatabaseConfig{Path: "x.db", MaxOpenConns: 0})
	if err == nil {
		t.Fatal("Expected error for non-positive max open connections")
	}
}

func TestEnsureAccount_Idempotent(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	first, err := service.EnsureAccount(ctx, "42")
	if err != nil {
		t.Fatalf("EnsureAccount failed: %v", err)
	}
	if first.Balance != 0 {
		t.Errorf("Expected balance 0, got %d", first.Balance)
	}

	second, err := service.EnsureAccount(ctx, "42")
	if err != nil {
		t.Fatalf("Second EnsureAccount failed: %v", err)
	}
	if second.Version != first.Version || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("Expected existing account to be returned unchanged")
	}

	accounts, err := service.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account, got %d", len(accounts))
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.GetAccount(context.Background(), "missing")
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestApply_Credit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	applied, err := service.Apply(ctx, credit("42", 100))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("Expected 1 applied leg, got %d", len(applied))
	}

	entry := applied[0].Entry
	if entry.Type != models.TransactionAdd || entry.Amount != 100 {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if entry.BalanceBefore != 0 || entry.BalanceAfter != 100 || applied[0].Balance != 100 {
		t.Errorf("Unexpected balances: before=%d after=%d", entry.BalanceBefore, entry.BalanceAfter)
	}

	account, err := service.GetAccount(ctx, "42")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.Balance != 100 {
		t.Errorf("Expected balance 100, got %d", account.Balance)
	}
	if account.Version != 2 {
		t.Errorf("Expected version 2, got %d", account.Version)
	}
}

func TestApply_DebitInsufficientBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.Apply(ctx, credit("42", 10)); err != nil {
		t.Fatalf("Initial credit failed: %v", err)
	}

	_, err := service.Apply(ctx, store.Mutation{Legs: []store.Leg{{UserId: "42", Type: models.TransactionRemove, Amount: 11}}})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	account, _ := service.GetAccount(ctx, "42")
	if account.Balance != 10 {
		t.Errorf("Expected balance to stay 10, got %d", account.Balance)
	}

	entries, err := service.GetTransactions(ctx, "42")
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 log entry, got %d", len(entries))
	}
}

func TestApply_InvalidAmount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.Apply(context.Background(), credit("42", 0))
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
}

func TestApply_TransferIsAtomic(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.Apply(ctx, credit("42", 70)); err != nil {
		t.Fatalf("Initial credit failed: %v", err)
	}

	transfer := func(amount int64) store.Mutation {
		return store.Mutation{Legs: []store.Leg{
			{UserId: "42", Type: models.TransactionTransferOut, Amount: amount, Counterparty: "43"},
			{UserId: "43", Type: models.TransactionTransferIn, Amount: amount, Counterparty: "42"},
		}}
	}

	applied, err := service.Apply(ctx, transfer(50))
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if applied[0].Balance != 20 || applied[1].Balance != 50 {
		t.Errorf("Expected balances 20/50, got %d/%d", applied[0].Balance, applied[1].Balance)
	}

	_, err = service.Apply(ctx, transfer(21))
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	from, _ := service.GetAccount(ctx, "42")
	to, _ := service.GetAccount(ctx, "43")
	if from.Balance != 20 || to.Balance != 50 {
		t.Errorf("Rejected transfer changed balances: %d/%d", from.Balance, to.Balance)
	}

	toEntries, _ := service.GetTransactions(ctx, "43")
	if len(toEntries) != 1 || toEntries[0].Counterparty != "42" {
		t.Errorf("Unexpected recipient log: %+v", toEntries)
	}
}

func TestCreateOrder_DuplicateAcrossUsers(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.CreateOrder(ctx, "42", "ord1", 100); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	_, err := service.CreateOrder(ctx, "43", "ord1", 5)
	if !errors.Is(err, store.ErrDuplicateOrder) {
		t.Fatalf("Expected ErrDuplicateOrder, got %v", err)
	}

	order, err := service.GetOrder(ctx, "ord1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.UserId != "42" || order.Amount != 100 || order.IsPaid {
		t.Errorf("First order was modified: %+v", order)
	}
}

func TestApply_SettleOrderOnce(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.CreateOrder(ctx, "42", "ord1", 100); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	settle := store.Mutation{
		Legs:          []store.Leg{{UserId: "42", Type: models.TransactionAdd, Amount: 100, OrderId: "ord1"}},
		SettleOrderId: "ord1",
		SettleMode:    store.SettleRequired,
	}

	if _, err := service.Apply(ctx, settle); err != nil {
		t.Fatalf("First settlement failed: %v", err)
	}

	order, _ := service.GetOrder(ctx, "ord1")
	if !order.IsPaid || order.PaidAt == nil {
		t.Errorf("Expected order to be paid, got %+v", order)
	}

	_, err := service.Apply(ctx, settle)
	if !errors.Is(err, store.ErrAlreadySettled) {
		t.Fatalf("Expected ErrAlreadySettled, got %v", err)
	}

	account, _ := service.GetAccount(ctx, "42")
	if account.Balance != 100 {
		t.Errorf("Expected balance 100 after double settle, got %d", account.Balance)
	}
	entries, _ := service.GetTransactions(ctx, "42")
	if len(entries) != 1 || entries[0].OrderId != "ord1" {
		t.Errorf("Expected one add entry for ord1, got %+v", entries)
	}
}

func TestApply_SettleRequiresOwner(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.CreateOrder(ctx, "42", "ord1", 100); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	_, err := service.Apply(ctx, store.Mutation{
		Legs:          []store.Leg{{UserId: "43", Type: models.TransactionAdd, Amount: 100, OrderId: "ord1"}},
		SettleOrderId: "ord1",
		SettleMode:    store.SettleRequired,
	})
	if !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}

	order, _ := service.GetOrder(ctx, "ord1")
	if order.IsPaid {
		t.Errorf("Order of another user must not be flipped")
	}
}

func TestApply_CreditUnknownOrderKeepsReference(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	applied, err := service.Apply(ctx, store.Mutation{
		Legs:          []store.Leg{{UserId: "42", Type: models.TransactionAdd, Amount: 5, OrderId: "manual"}},
		SettleOrderId: "manual",
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if applied[0].Entry.OrderId != "manual" {
		t.Errorf("Expected order reference to be kept, got %q", applied[0].Entry.OrderId)
	}
}

func TestApply_ConcurrentCreditsDoNotLoseUpdates(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	const workers = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Apply(ctx, credit("42", 2)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent credit failed: %v", err)
	}

	account, err := service.GetAccount(ctx, "42")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.Balance != 2*workers {
		t.Errorf("Expected balance %d, got %d", 2*workers, account.Balance)
	}
	if err := service.ReconcileBalance(ctx, "42"); err != nil {
		t.Errorf("Reconciliation failed: %v", err)
	}
}

func TestTransactionLogIsAppendOnly(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	applied, err := service.Apply(ctx, credit("42", 10))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if _, err := service.db.ExecContext(ctx, "UPDATE account_transactions SET amount = 99 WHERE id = ?", applied[0].Entry.Id); err == nil {
		t.Error("Expected update of a log entry to be rejected")
	}
	if _, err := service.db.ExecContext(ctx, "DELETE FROM account_transactions WHERE id = ?", applied[0].Entry.Id); err == nil {
		t.Error("Expected delete of a log entry to be rejected")
	}
}

func TestReconcileBalance_Mismatch(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.Apply(ctx, credit("42", 10)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := service.ReconcileBalance(ctx, "42"); err != nil {
		t.Fatalf("Expected balanced account, got %v", err)
	}

	if _, err := service.db.ExecContext(ctx, "UPDATE accounts SET balance = 11 WHERE user_id = ?", "42"); err != nil {
		t.Fatalf("Failed to corrupt balance: %v", err)
	}
	if err := service.ReconcileBalance(ctx, "42"); !errors.Is(err, store.ErrBalanceMismatch) {
		t.Errorf("Expected ErrBalanceMismatch, got %v", err)
	}
}

func TestGetTransactionPage(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	for i := int64(1); i <= 7; i++ {
		if _, err := service.Apply(ctx, credit("42", i)); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
	}

	entries, total, err := service.GetTransactionPage(ctx, "42", 5, 5)
	if err != nil {
		t.Fatalf("GetTransactionPage failed: %v", err)
	}
	if total != 7 {
		t.Errorf("Expected total 7, got %d", total)
	}
	if len(entries) != 2 || entries[0].Amount != 6 || entries[1].Amount != 7 {
		t.Errorf("Unexpected second page: %+v", entries)
	}
}

func TestPendingOrdersAndPurge(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	for _, id := range []string{"ord1", "ord2"} {
		if _, err := service.CreateOrder(ctx, "42", id, 10); err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
	}
	_, err := service.Apply(ctx, store.Mutation{
		Legs:          []store.Leg{{UserId: "42", Type: models.TransactionAdd, Amount: 10, OrderId: "ord1"}},
		SettleOrderId: "ord1",
		SettleMode:    store.SettleRequired,
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	pending, err := service.ListPendingOrders(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingOrders failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OrderId != "ord2" {
		t.Fatalf("Expected only ord2 pending, got %+v", pending)
	}

	purged, err := service.PurgeExpiredOrders(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpiredOrders failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("Expected 1 purged order, got %d", purged)
	}

	if _, err := service.GetOrder(ctx, "ord1"); err != nil {
		t.Errorf("Paid order must survive purge: %v", err)
	}
	if _, err := service.GetOrder(ctx, "ord2"); !errors.Is(err, store.ErrOrderNotFound) {
		t.Errorf("Expected ord2 to be purged, got %v", err)
	}
}

func TestMarkOrderExpired(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	for _, id := range []string{"ord1", "ord2", "ord3"} {
		if _, err := service.CreateOrder(ctx, "42", id, 10); err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
	}

	marked, err := service.MarkOrderExpired(ctx, "ord1")
	if err != nil {
		t.Fatalf("MarkOrderExpired failed: %v", err)
	}
	if !marked {
		t.Error("Expected ord1 to be marked expired")
	}

	marked, err = service.MarkOrderExpired(ctx, "ord1")
	if err != nil {
		t.Fatalf("Second MarkOrderExpired failed: %v", err)
	}
	if marked {
		t.Error("Expected second mark to be a no-op")
	}

	pending, err := service.ListPendingOrders(ctx, 1)
	if err != nil {
		t.Fatalf("ListPendingOrders failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OrderId != "ord2" {
		t.Fatalf("Expected ord2 at the head of the pending list, got %+v", pending)
	}

	order, err := service.GetOrder(ctx, "ord1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.ExpiredAt == nil || order.IsPaid {
		t.Errorf("Expected ord1 expired and unpaid, got %+v", order)
	}

	// A late payment still settles an expired order
	_, err = service.Apply(ctx, store.Mutation{
		Legs:          []store.Leg{{UserId: "42", Type: models.TransactionAdd, Amount: 10, OrderId: "ord1"}},
		SettleOrderId: "ord1",
		SettleMode:    store.SettleRequired,
	})
	if err != nil {
		t.Fatalf("Settling expired order failed: %v", err)
	}

	if _, err := service.Apply(ctx, store.Mutation{
		Legs:          []store.Leg{{UserId: "42", Type: models.TransactionAdd, Amount: 10, OrderId: "ord2"}},
		SettleOrderId: "ord2",
		SettleMode:    store.SettleRequired,
	}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	marked, err = service.MarkOrderExpired(ctx, "ord2")
	if err != nil {
		t.Fatalf("MarkOrderExpired on paid order failed: %v", err)
	}
	if marked {
		t.Error("Paid orders must not be marked expired")
	}
}

func TestApply_CreditOverflowRejected(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.Apply(ctx, credit("42", math.MaxInt64)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	_, err := service.Apply(ctx, credit("42", 1))
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("Expected ErrInvalidAmount, got %v", err)
	}

	account, err := service.GetAccount(ctx, "42")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.Balance != math.MaxInt64 {
		t.Errorf("Expected balance unchanged at %d, got %d", int64(math.MaxInt64), account.Balance)
	}
}
