package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"electrostock/internal/domain"
	"electrostock/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo store.Repository
}

func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	return s.repo.SearchProducts(ctx, query)
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStockProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)

	if req.SKU == "" || req.Name == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}
	if req.PurchasePrice.IsNegative() || req.SalePrice.IsNegative() {
		return domain.Product{}, store.ErrInvalidTransaction
	}
	if req.Stock < 0 || req.StockMin < 0 {
		return domain.Product{}, store.ErrInvalidTransaction
	}

	product := domain.Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   strings.TrimSpace(req.Description),
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		Stock:         req.Stock,
		StockMin:      req.StockMin,
		SupplierID:    strings.TrimSpace(req.SupplierID),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", created.ID, fmt.Sprintf("sku=%s,name=%s,stock=%d", created.SKU, created.Name, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.UpdateProductRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.PurchasePrice != nil {
		if req.PurchasePrice.IsNegative() {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.PurchasePrice = *req.PurchasePrice
	}
	if req.SalePrice != nil {
		if req.SalePrice.IsNegative() {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.SalePrice = *req.SalePrice
	}
	if req.StockMin != nil {
		if *req.StockMin < 0 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.StockMin = *req.StockMin
	}
	if req.SupplierID != nil {
		updated.SupplierID = strings.TrimSpace(*req.SupplierID)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", saved.ID, fmt.Sprintf("sku=%s", saved.SKU))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	if err := s.repo.DeleteProduct(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", id, "")
	return nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.CreateSupplierRequest) (domain.Supplier, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Supplier{}, fmt.Errorf("admin role required")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Supplier{}, store.ErrInvalidTransaction
	}

	supplier := domain.Supplier{
		Name:    name,
		Contact: strings.TrimSpace(req.Contact),
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	}
	created, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_create", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	supplier, err := s.repo.GetSupplierByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Supplier{}, err
	}
	return *supplier, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.CreateSupplierRequest) (domain.Supplier, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Supplier{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetSupplierByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Supplier{}, err
	}

	updated := *existing
	if name := strings.TrimSpace(req.Name); name != "" {
		updated.Name = name
	}
	updated.Contact = strings.TrimSpace(req.Contact)
	updated.Phone = strings.TrimSpace(req.Phone)
	updated.Email = strings.TrimSpace(req.Email)
	updated.Address = strings.TrimSpace(req.Address)

	saved, err := s.repo.UpdateSupplier(ctx, updated)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_update", saved.ID, "")
	return *saved, nil
}

// DeleteSupplier cascades to the supplier's products.
func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	if err := s.repo.DeleteSupplier(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "supplier_delete", id, "cascade")
	return nil
}

func (s *Service) ListProductsBySupplier(ctx context.Context, supplierID string) ([]domain.Product, error) {
	if _, err := s.repo.GetSupplierByID(ctx, strings.TrimSpace(supplierID)); err != nil {
		return nil, err
	}
	return s.repo.ListProductsBySupplier(ctx, strings.TrimSpace(supplierID))
}

// RecordReceipt raises stock by req.Quantity and records a RECEIPT
// movement in the same transaction.
func (s *Service) RecordReceipt(ctx context.Context, req domain.ReceiptRequest) (domain.Movement, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return domain.Movement{}, fmt.Errorf("authentication required")
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		return domain.Movement{}, store.ErrInvalidTransaction
	}

	movement := domain.Movement{
		Kind:        domain.MovementReceipt,
		Quantity:    req.Quantity,
		Description: strings.TrimSpace(req.Note),
	}
	applied, err := s.repo.ApplyMovement(ctx, req.ProductID, req.Quantity, movement)
	if err != nil {
		return domain.Movement{}, err
	}

	s.logAudit(ctx, "stock_receipt", req.ProductID, fmt.Sprintf("qty=%d", req.Quantity))
	return *applied, nil
}

// AdjustStock sets the stock to req.NewStock. The movement quantity is
// the magnitude of the correction and the description carries the
// signed delta and the reason.
func (s *Service) AdjustStock(ctx context.Context, req domain.AdjustStockRequest) (domain.Movement, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Movement{}, fmt.Errorf("admin role required")
	}
	if req.ProductID == "" || req.NewStock < 0 {
		return domain.Movement{}, store.ErrInvalidTransaction
	}

	product, err := s.repo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return domain.Movement{}, err
	}

	delta := req.NewStock - product.Stock
	if delta == 0 {
		return domain.Movement{}, store.ErrNoChange
	}

	description := fmt.Sprintf("ajuste %+d", delta)
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		description += ": " + reason
	}
	movement := domain.Movement{
		Kind:        domain.MovementAdjustment,
		Quantity:    absInt64(delta),
		Description: description,
	}
	applied, err := s.repo.ApplyMovement(ctx, req.ProductID, delta, movement)
	if err != nil {
		return domain.Movement{}, err
	}

	s.logAudit(ctx, "stock_adjust", req.ProductID, fmt.Sprintf("delta=%+d,new=%d", delta, req.NewStock))
	return *applied, nil
}

func (s *Service) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) CurrentStock(ctx context.Context, productID string) (int64, error) {
	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(productID))
	if err != nil {
		return 0, err
	}
	return product.Stock, nil
}

// CreateSale resolves unit prices, then delegates to the store, which
// inserts the header and lines, decrements stock and records SALE
// movements atomically. The seller is the actor from context.
func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Sale{}, fmt.Errorf("authentication required")
	}
	if len(req.Lines) == 0 {
		return domain.Sale{}, store.ErrInvalidTransaction
	}

	lines := make([]domain.SaleLine, 0, len(req.Lines))
	for _, lr := range req.Lines {
		if lr.ProductID == "" || lr.Quantity <= 0 {
			return domain.Sale{}, store.ErrInvalidTransaction
		}

		unitPrice := decimal.Zero
		if lr.UnitPrice != nil {
			if lr.UnitPrice.IsNegative() {
				return domain.Sale{}, store.ErrInvalidTransaction
			}
			unitPrice = *lr.UnitPrice
		} else {
			product, err := s.repo.GetProductByID(ctx, lr.ProductID)
			if err != nil {
				return domain.Sale{}, err
			}
			unitPrice = product.SalePrice
		}

		lines = append(lines, domain.SaleLine{
			ProductID: lr.ProductID,
			Quantity:  lr.Quantity,
			UnitPrice: unitPrice,
		})
	}

	sale := domain.Sale{
		SellerID:   actor.UserID,
		OccurredAt: time.Now().UTC(),
		Lines:      lines,
	}
	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_create", created.ID, fmt.Sprintf("lines=%d,total=%s", len(created.Lines), created.Total.StringFixed(2)))
	return *created, nil
}

// UpdateSale replaces a recorded sale's lines, readjusting stock
// atomically. Corrections to closed sales are reserved to admins.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.UpdateSaleRequest) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Sale{}, fmt.Errorf("admin role required")
	}
	if len(req.Lines) == 0 {
		return domain.Sale{}, store.ErrInvalidTransaction
	}

	sellerID := strings.TrimSpace(req.SellerID)
	if sellerID != "" {
		if _, err := s.repo.GetUserByID(ctx, sellerID); err != nil {
			return domain.Sale{}, err
		}
	}

	lines := make([]domain.SaleLine, 0, len(req.Lines))
	for _, lr := range req.Lines {
		if lr.ProductID == "" || lr.Quantity <= 0 {
			return domain.Sale{}, store.ErrInvalidTransaction
		}

		unitPrice := decimal.Zero
		if lr.UnitPrice != nil {
			if lr.UnitPrice.IsNegative() {
				return domain.Sale{}, store.ErrInvalidTransaction
			}
			unitPrice = *lr.UnitPrice
		} else {
			product, err := s.repo.GetProductByID(ctx, lr.ProductID)
			if err != nil {
				return domain.Sale{}, err
			}
			unitPrice = product.SalePrice
		}

		lines = append(lines, domain.SaleLine{
			ProductID: lr.ProductID,
			Quantity:  lr.Quantity,
			UnitPrice: unitPrice,
		})
	}

	sale := domain.Sale{
		ID:       strings.TrimSpace(id),
		SellerID: sellerID,
		Lines:    lines,
	}
	updated, err := s.repo.UpdateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_update", updated.ID, fmt.Sprintf("lines=%d,total=%s", len(updated.Lines), updated.Total.StringFixed(2)))
	return *updated, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) SalesReport(ctx context.Context, from time.Time, to time.Time) (domain.SalesReport, error) {
	if to.Before(from) {
		return domain.SalesReport{}, store.ErrInvalidTransaction
	}
	report, err := s.repo.GetSalesReport(ctx, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return *report, nil
}

func (s *Service) InventoryReport(ctx context.Context, from time.Time, to time.Time) (domain.InventoryReport, error) {
	if to.Before(from) {
		return domain.InventoryReport{}, store.ErrInvalidTransaction
	}
	idle, err := s.repo.GetIdleProducts(ctx, from, to)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	return domain.InventoryReport{From: from, To: to, IdleProducts: idle}, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListUsers(ctx)
}

func (s *Service) logAudit(ctx context.Context, action string, entityID string, detail string) {
	actorID := "anonymous"
	if actor, ok := ActorFromContext(ctx); ok {
		actorID = actor.UserID
	}
	log.Printf("[audit] action=%s entity=%s actor=%s %s", action, entityID, actorID, detail)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
