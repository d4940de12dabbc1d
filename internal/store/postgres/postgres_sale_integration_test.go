package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"electrostock/internal/domain"
	"electrostock/internal/store"
)

func TestSaleDecrementsStockAtomically(t *testing.T) {
	databaseURL := os.Getenv("ELECTROSTOCK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set ELECTROSTOCK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("SKU-IT-%d", stamp)
	email := fmt.Sprintf("it-%d@electrostock.local", stamp)

	user, err := s.CreateUser(ctx, domain.User{
		Name:         "Vendedor IT",
		Email:        email,
		PasswordHash: "x",
		Role:         domain.RoleEmployee,
		Verified:     true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:           sku,
		Name:          "Producto IT",
		PurchasePrice: decimal.NewFromFloat(4.00),
		SalePrice:     decimal.NewFromFloat(9.50),
		Stock:         10,
		StockMin:      2,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM detalle_ventas WHERE id_producto = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM ventas WHERE id_usuario = $1`, user.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM movimientos_inventario WHERE id_producto = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM productos WHERE id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM usuarios WHERE id = $1`, user.ID)
	})

	sale, err := s.CreateSale(ctx, domain.Sale{
		SellerID: user.ID,
		Lines: []domain.SaleLine{
			{ProductID: product.ID, Quantity: 2, UnitPrice: decimal.NewFromFloat(9.50)},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.ID == "" {
		t.Fatalf("expected generated sale id")
	}
	if !sale.Total.Equal(decimal.NewFromFloat(19.00)) {
		t.Fatalf("expected total 19.00, got %s", sale.Total)
	}

	var stock int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock_actual
		FROM productos
		WHERE id = $1
	`, product.ID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", stock)
	}

	var movements int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM movimientos_inventario
		WHERE id_producto = $1 AND tipo_movimiento = $2 AND cantidad = 2
	`, product.ID, domain.MovementSale).Scan(&movements); err != nil {
		t.Fatalf("query movements: %v", err)
	}
	if movements != 1 {
		t.Fatalf("expected one sale movement of quantity 2, got %d", movements)
	}

	// An oversized sale must fail without touching stock or recording rows.
	_, err = s.CreateSale(ctx, domain.Sale{
		SellerID: user.ID,
		Lines: []domain.SaleLine{
			{ProductID: product.ID, Quantity: 500, UnitPrice: decimal.NewFromFloat(9.50)},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock_actual
		FROM productos
		WHERE id = $1
	`, product.ID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 8 {
		t.Fatalf("expected stock unchanged at 8, got %d", stock)
	}
}
