package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/amalikprincem05/e-bazzari/internal/checkout"
	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/amalikprincem05/e-bazzari/internal/store"
	"go.uber.org/zap"
)

func TestSettleMaterializesOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "settle@example.com")
	product := createTestProduct(t, db, "SET-001", "100.00", 10)

	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 1); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	reconciler := checkout.NewReconciler(db, zap.NewNop())
	conf := checkout.Confirmation{PaymentRef: "pi_once", UserID: user.ID}

	first, err := reconciler.Settle(ctx, conf)
	if err != nil {
		t.Fatalf("First settle: %v", err)
	}
	if first == nil {
		t.Fatal("First settle should materialize an order")
	}
	if first.Status != models.OrderStatusPaid {
		t.Errorf("Expected status paid, got %s", first.Status)
	}
	if first.PaymentRef != "pi_once" {
		t.Errorf("Expected payment ref pi_once, got %s", first.PaymentRef)
	}

	// The webhook redelivers the same confirmation.
	second, err := reconciler.Settle(ctx, conf)
	if err != nil {
		t.Fatalf("Second settle: %v", err)
	}
	if second == nil || second.ID != first.ID {
		t.Errorf("Duplicate settle should return order %d, got %+v", first.ID, second)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE payment_ref = $1`, "pi_once").Scan(&count); err != nil {
		t.Fatalf("Count orders: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 order for the payment, got %d", count)
	}
}

func TestSettleConcurrentHandlers(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "settlerace@example.com")
	product := createTestProduct(t, db, "SET-002", "50.00", 10)

	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 2); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	reconciler := checkout.NewReconciler(db, zap.NewNop())
	conf := checkout.Confirmation{PaymentRef: "pi_race", UserID: user.ID}

	concurrency := 8
	var wg sync.WaitGroup
	orderIDs := make(chan int64, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			order, err := reconciler.Settle(ctx, conf)
			if err != nil {
				t.Errorf("Settle: %v", err)
				return
			}
			if order != nil {
				orderIDs <- order.ID
			}
		}()
	}

	wg.Wait()
	close(orderIDs)

	seen := map[int64]bool{}
	for id := range orderIDs {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Errorf("Expected all handlers to converge on one order, got %d distinct", len(seen))
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE payment_ref = $1`, "pi_race").Scan(&count); err != nil {
		t.Fatalf("Count orders: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 order for the payment, got %d", count)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 8 {
		t.Errorf("Stock should decrement once to 8, got %d", productAfter.StockQuantity)
	}
}

func TestSettleDeductsPointsOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "settlepoints@example.com")
	product := createTestProduct(t, db, "SET-003", "100.00", 10)

	if err := store.AwardPoints(ctx, db, user.ID, 30); err != nil {
		t.Fatalf("Award points: %v", err)
	}
	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 1); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	reconciler := checkout.NewReconciler(db, zap.NewNop())
	conf := checkout.Confirmation{PaymentRef: "pi_points", UserID: user.ID, PointsUsed: 30}

	if _, err := reconciler.Settle(ctx, conf); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if _, err := reconciler.Settle(ctx, conf); err != nil {
		t.Fatalf("Repeat settle: %v", err)
	}

	balance, err := store.GetPointsBalance(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("Expected balance 0 after one deduction, got %d", balance)
	}
}

func TestSettleEmptyCartNoOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "settleempty@example.com")

	reconciler := checkout.NewReconciler(db, zap.NewNop())

	order, err := reconciler.Settle(ctx, checkout.Confirmation{
		PaymentRef: "pi_empty",
		UserID:     user.ID,
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if order != nil {
		t.Errorf("Expected no order for empty cart, got %+v", order)
	}
}

func TestFailCancelsMaterializedOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "settlefail@example.com")
	product := createTestProduct(t, db, "SET-004", "10.00", 10)

	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 1); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	reconciler := checkout.NewReconciler(db, zap.NewNop())

	order, err := reconciler.Settle(ctx, checkout.Confirmation{
		PaymentRef: "pi_fail",
		UserID:     user.ID,
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if err := reconciler.Fail(ctx, "pi_fail"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	cancelled, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if cancelled.Status != models.OrderStatusCancelled {
		t.Errorf("Expected status cancelled, got %s", cancelled.Status)
	}
}

func TestFailWithoutOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	reconciler := checkout.NewReconciler(db, zap.NewNop())

	if err := reconciler.Fail(context.Background(), "pi_never_settled"); err != nil {
		t.Errorf("Fail with no order should be a no-op, got: %v", err)
	}
}
