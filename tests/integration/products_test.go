package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/amalikprincem05/e-bazzari/internal/database"
	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/amalikprincem05/e-bazzari/internal/store"
	"github.com/shopspring/decimal"
)

func TestProductLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product, err := store.CreateProduct(ctx, db, "PRD-001", "Clay Teapot", "Hand made", "kitchen",
		decimal.RequireFromString("24.99"), 12)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	if product.Category != "kitchen" {
		t.Errorf("Expected category kitchen, got %s", product.Category)
	}
	if !product.Available() {
		t.Error("Product with stock should be available")
	}

	updated, err := store.UpdateProduct(ctx, db, product.ID, "Clay Teapot", "Hand made, glazed", "kitchen",
		decimal.RequireFromString("27.50"))
	if err != nil {
		t.Fatalf("Update product: %v", err)
	}
	if !updated.Price.Equal(decimal.RequireFromString("27.50")) {
		t.Errorf("Expected price 27.50, got %s", updated.Price)
	}
	if updated.Version != product.Version+1 {
		t.Errorf("Expected version bump to %d, got %d", product.Version+1, updated.Version)
	}

	if err := store.DeleteProduct(ctx, db, product.ID); err != nil {
		t.Fatalf("Delete product: %v", err)
	}

	_, err = store.GetProduct(ctx, db, product.ID)
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found after delete, got: %v", err)
	}
}

func TestOptimisticLocking(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := createTestProduct(t, db, "PRD-002", "100.00", 50)

	err := store.UpdateStockOptimistic(ctx, db, product.ID, 40, product.Version)
	if err != nil {
		t.Fatalf("First update should succeed: %v", err)
	}

	err = store.UpdateStockOptimistic(ctx, db, product.ID, 30, product.Version)
	if !errors.Is(err, database.ErrOptimisticLockFailed) {
		t.Errorf("Expected optimistic lock failure, got: %v", err)
	}
}

func TestListProductsFilters(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	mustCreate := func(sku, name, category string, stock int) {
		t.Helper()
		_, err := store.CreateProduct(ctx, db, sku, name, "Test product", category,
			decimal.RequireFromString("10.00"), stock)
		if err != nil {
			t.Fatalf("Create product %s: %v", sku, err)
		}
	}

	mustCreate("LST-001", "Green Tea", "grocery", 5)
	mustCreate("LST-002", "Black Tea", "grocery", 0)
	mustCreate("LST-003", "Tea Cup", "kitchen", 3)

	byCategory, err := store.ListProducts(ctx, db, store.ProductFilter{Category: "grocery"}, 1, 20)
	if err != nil {
		t.Fatalf("List by category: %v", err)
	}
	if byCategory.Total != 2 {
		t.Errorf("Expected 2 grocery products, got %d", byCategory.Total)
	}

	bySearch, err := store.ListProducts(ctx, db, store.ProductFilter{Search: "tea"}, 1, 20)
	if err != nil {
		t.Fatalf("List by search: %v", err)
	}
	if bySearch.Total != 3 {
		t.Errorf("Expected 3 search hits, got %d", bySearch.Total)
	}

	inStock, err := store.ListProducts(ctx, db, store.ProductFilter{Category: "grocery", InStock: true}, 1, 20)
	if err != nil {
		t.Fatalf("List in stock: %v", err)
	}
	if inStock.Total != 1 {
		t.Errorf("Expected 1 in-stock grocery product, got %d", inStock.Total)
	}

	products, ok := inStock.Items.([]models.Product)
	if !ok || len(products) == 0 {
		t.Fatalf("Expected non-empty []models.Product items, got %T", inStock.Items)
	}
	if products[0].Name != "Green Tea" {
		t.Errorf("Expected Green Tea, got %s", products[0].Name)
	}
}
