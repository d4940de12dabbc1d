package store

import (
	"context"
	"errors"
	"time"

	"electrostock/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrNoChange           = errors.New("no change")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)
	ListProductsBySupplier(ctx context.Context, supplierID string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error

	// ApplyMovement is the only stock-mutation path for receipts and
	// adjustments: it locks the product row, moves stock by delta and
	// inserts the movement in one transaction. movement.Quantity must
	// already be the magnitude of delta.
	ApplyMovement(ctx context.Context, productID string, delta int64, movement domain.Movement) (*domain.Movement, error)
	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.Movement, error)

	// CreateSale inserts the header and lines, decrements stock and
	// records SALE movements atomically. Lines must carry resolved
	// unit prices and subtotals.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	// UpdateSale replaces the sale's lines (and optionally the seller),
	// restoring old-line stock and consuming new-line stock in the same
	// transaction. Net per-product changes become ADJUSTMENT movements.
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)

	GetSalesReport(ctx context.Context, from time.Time, to time.Time) (*domain.SalesReport, error)
	GetIdleProducts(ctx context.Context, from time.Time, to time.Time) ([]domain.IdleProduct, error)

	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
}
