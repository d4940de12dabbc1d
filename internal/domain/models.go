package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item. Stock and StockMin are unit counts,
// prices are currency values with two decimal places.
type Product struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int64           `json:"stock"`
	StockMin      int64           `json:"stock_min"`
	SupplierID    string          `json:"supplier_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Supplier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Movement records one inventory change. Quantity is the magnitude of
// the change; Description carries the signed delta for adjustments.
type Movement struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	Kind        string    `json:"kind"`
	Quantity    int64     `json:"quantity"`
	OccurredAt  time.Time `json:"occurred_at"`
	Description string    `json:"description,omitempty"`
}

type Sale struct {
	ID         string          `json:"id"`
	SellerID   string          `json:"seller_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Total      decimal.Decimal `json:"total"`
	Lines      []SaleLine      `json:"lines,omitempty"`
}

type SaleLine struct {
	ID        string          `json:"id"`
	SaleID    string          `json:"sale_id"`
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type User struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	PasswordHash     string `json:"-"`
	Role             string `json:"role"`
	VerificationCode string `json:"-"`
	Verified         bool   `json:"verified"`
}

// Actor is the authenticated principal carried through context.
type Actor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type CreateProductRequest struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int64           `json:"stock"`
	StockMin      int64           `json:"stock_min"`
	SupplierID    string          `json:"supplier_id"`
}

// UpdateProductRequest carries a partial update: nil fields keep the
// stored value, set fields overwrite it (including zero prices and
// empty strings).
type UpdateProductRequest struct {
	Name          *string          `json:"name,omitempty"`
	Description   *string          `json:"description,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	SalePrice     *decimal.Decimal `json:"sale_price,omitempty"`
	StockMin      *int64           `json:"stock_min,omitempty"`
	SupplierID    *string          `json:"supplier_id,omitempty"`
}

type CreateSupplierRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type ReceiptRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Note      string `json:"note"`
}

type AdjustStockRequest struct {
	ProductID string `json:"product_id"`
	NewStock  int64  `json:"new_stock"`
	Reason    string `json:"reason"`
}

type SaleLineRequest struct {
	ProductID string           `json:"product_id"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type CreateSaleRequest struct {
	Lines []SaleLineRequest `json:"lines"`
}

// UpdateSaleRequest replaces a sale's lines wholesale; an empty
// SellerID keeps the recorded seller.
type UpdateSaleRequest struct {
	SellerID string            `json:"seller_id"`
	Lines    []SaleLineRequest `json:"lines"`
}

type MovementFilter struct {
	ProductID string
	From      time.Time
	To        time.Time
	Limit     int
}

type SaleFilter struct {
	SellerID string
	From     time.Time
	To       time.Time
	Limit    int
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

type VerifyAccountRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResetRequest struct {
	Email string `json:"email"`
}

type ResetConfirmRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// ProductSales is one row of the per-product report breakdown.
type ProductSales struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// EmployeeSales is one row of the per-employee report breakdown.
type EmployeeSales struct {
	UserID string          `json:"user_id"`
	Name   string          `json:"name"`
	Total  decimal.Decimal `json:"total"`
}

// IdleProduct is a product with no inventory movement inside a report range.
type IdleProduct struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Stock     int64           `json:"stock"`
	SalePrice decimal.Decimal `json:"sale_price"`
}

type SalesReport struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	GrossProfit    decimal.Decimal `json:"gross_profit"`
	DailyAverage   decimal.Decimal `json:"daily_average"`
	ByProduct      []ProductSales  `json:"by_product"`
	ByEmployee     []EmployeeSales `json:"by_employee"`
}

type InventoryReport struct {
	From         time.Time     `json:"from"`
	To           time.Time     `json:"to"`
	IdleProducts []IdleProduct `json:"idle_products"`
}

const (
	MovementReceipt    = "RECEIPT"
	MovementSale       = "SALE"
	MovementAdjustment = "ADJUSTMENT"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)
