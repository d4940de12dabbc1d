package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"electrostock/internal/domain"
	"electrostock/internal/store"
	"electrostock/internal/xid"
)

type Store struct {
	mu            sync.RWMutex
	productsByID  map[string]domain.Product
	suppliersByID map[string]domain.Supplier
	movements     []domain.Movement
	salesByID     map[string]domain.Sale
	usersByID     map[string]domain.User
}

func New() *Store {
	return &Store{
		productsByID:  make(map[string]domain.Product),
		suppliersByID: make(map[string]domain.Supplier),
		movements:     make([]domain.Movement, 0, 128),
		salesByID:     make(map[string]domain.Sale),
		usersByID:     make(map[string]domain.User),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD.
// If unset, hardcoded dev defaults are used with a warning. These
// accounts are never used in production (the server uses PostgreSQL
// when DATABASE_URL is set).
func seedUsers() map[string]domain.User {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "Admin#123")
	employeePwd := envOr("SEED_EMPLOYEE_PASSWORD", "Vendedor#123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD to override.")
	}

	users := map[string]domain.User{}
	for _, u := range []struct {
		name     string
		email    string
		password string
		role     string
	}{
		{"Administrador", "admin@electrostock.local", adminPwd, domain.RoleAdmin},
		{"Vendedor Demo", "vendedor@electrostock.local", employeePwd, domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		id := xid.New("usr")
		users[id] = domain.User{
			ID:           id,
			Name:         u.name,
			Email:        u.email,
			PasswordHash: string(hash),
			Role:         u.role,
			Verified:     true,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()

	suppliers := []domain.Supplier{
		{ID: "prov-techdist", Name: "TechDist SA", Contact: "Laura Mendez", Phone: "555-0134", Email: "ventas@techdist.example", Address: "Av. Industrial 42"},
		{ID: "prov-electrosur", Name: "ElectroSur Import", Contact: "Pablo Rios", Phone: "555-0188", Email: "pedidos@electrosur.example", Address: "Calle Comercio 910"},
	}

	products := []domain.Product{
		{ID: "prd-usb32", SKU: "USB-32GB", Name: "Memoria USB 32GB", PurchasePrice: decimal.NewFromFloat(4.50), SalePrice: decimal.NewFromFloat(8.99), Stock: 60, StockMin: 10, SupplierID: "prov-techdist"},
		{ID: "prd-hdmi2", SKU: "CAB-HDMI-2M", Name: "Cable HDMI 2m", PurchasePrice: decimal.NewFromFloat(2.10), SalePrice: decimal.NewFromFloat(5.50), Stock: 80, StockMin: 15, SupplierID: "prov-techdist"},
		{ID: "prd-mouse", SKU: "MOU-INAL-01", Name: "Mouse Inalambrico", PurchasePrice: decimal.NewFromFloat(6.00), SalePrice: decimal.NewFromFloat(12.90), Stock: 35, StockMin: 8, SupplierID: "prov-electrosur"},
		{ID: "prd-teclado", SKU: "TEC-MEC-87", Name: "Teclado Mecanico 87", PurchasePrice: decimal.NewFromFloat(22.00), SalePrice: decimal.NewFromFloat(39.99), Stock: 12, StockMin: 4, SupplierID: "prov-electrosur"},
		{ID: "prd-cargador", SKU: "CAR-USBC-20W", Name: "Cargador USB-C 20W", PurchasePrice: decimal.NewFromFloat(5.20), SalePrice: decimal.NewFromFloat(11.50), Stock: 48, StockMin: 10, SupplierID: "prov-techdist"},
		{ID: "prd-audifonos", SKU: "AUD-BT-01", Name: "Audifonos Bluetooth", PurchasePrice: decimal.NewFromFloat(9.80), SalePrice: decimal.NewFromFloat(19.99), Stock: 25, StockMin: 6, SupplierID: "prov-electrosur"},
	}

	s := New()
	for _, sup := range suppliers {
		s.suppliersByID[sup.ID] = sup
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.productsByID[p.ID] = p
	}
	s.usersByID = seedUsers()
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}
	sortProducts(products)
	return products, nil
}

func (s *Store) SearchProducts(_ context.Context, query string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	products := make([]domain.Product, 0, 8)
	for _, p := range s.productsByID {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.SKU), q) {
			products = append(products, p)
		}
	}
	sortProducts(products)
	return products, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 8)
	for _, p := range s.productsByID {
		if p.Stock <= p.StockMin {
			products = append(products, p)
		}
	}
	sortProducts(products)
	return products, nil
}

func (s *Store) ListProductsBySupplier(_ context.Context, supplierID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 8)
	for _, p := range s.productsByID {
		if p.SupplierID == supplierID {
			products = append(products, p)
		}
	}
	sortProducts(products)
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.productsByID {
		if existing.SKU == product.SKU {
			return nil, store.ErrConflict
		}
	}
	if product.SupplierID != "" {
		if _, ok := s.suppliersByID[product.SupplierID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.productsByID[product.ID] = product

	if product.Stock > 0 {
		s.movements = append(s.movements, domain.Movement{
			ID:          xid.New("mov"),
			ProductID:   product.ID,
			Kind:        domain.MovementReceipt,
			Quantity:    product.Stock,
			OccurredAt:  now,
			Description: "stock inicial",
		})
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.productsByID {
		if p.SKU == sku {
			found := p
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.productsByID[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.SupplierID != "" {
		if _, ok := s.suppliersByID[product.SupplierID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	existing.Name = product.Name
	existing.Description = product.Description
	existing.PurchasePrice = product.PurchasePrice
	existing.SalePrice = product.SalePrice
	existing.StockMin = product.StockMin
	existing.SupplierID = product.SupplierID
	existing.UpdatedAt = time.Now().UTC()
	s.productsByID[existing.ID] = existing

	updated := existing
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productsByID[id]; !ok {
		return store.ErrNotFound
	}
	if s.productHasSales(id) {
		return store.ErrInvalidTransaction
	}
	delete(s.productsByID, id)
	return nil
}

// productHasSales reports whether any sale line references the product.
// Callers must hold the lock.
func (s *Store) productHasSales(productID string) bool {
	for _, sale := range s.salesByID {
		for _, line := range sale.Lines {
			if line.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = xid.New("prov")
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := sup
	return &found, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[supplier.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.suppliersByID[supplier.ID] = supplier
	updated := supplier
	return &updated, nil
}

// DeleteSupplier removes the supplier and every product that references
// it, under one lock section so readers never see a half-applied
// cascade. Products that appear in a sale block the whole cascade;
// movement history is kept.
func (s *Store) DeleteSupplier(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[id]; !ok {
		return store.ErrNotFound
	}
	for pid, p := range s.productsByID {
		if p.SupplierID == id && s.productHasSales(pid) {
			return store.ErrInvalidTransaction
		}
	}
	for pid, p := range s.productsByID {
		if p.SupplierID == id {
			delete(s.productsByID, pid)
		}
	}
	delete(s.suppliersByID, id)
	return nil
}

func (s *Store) ApplyMovement(_ context.Context, productID string, delta int64, movement domain.Movement) (*domain.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if delta == 0 {
		return nil, store.ErrNoChange
	}
	product, ok := s.productsByID[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	newStock := product.Stock + delta
	if newStock < 0 {
		return nil, store.ErrInsufficientStock
	}

	product.Stock = newStock
	product.UpdatedAt = time.Now().UTC()
	s.productsByID[productID] = product

	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.OccurredAt.IsZero() {
		movement.OccurredAt = time.Now().UTC()
	}
	movement.ProductID = productID
	s.movements = append(s.movements, movement)

	applied := movement
	return &applied, nil
}

func (s *Store) ListMovements(_ context.Context, filter domain.MovementFilter) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	movements := make([]domain.Movement, 0, 16)
	for _, m := range s.movements {
		if filter.ProductID != "" && m.ProductID != filter.ProductID {
			continue
		}
		if !inRange(m.OccurredAt, filter.From, filter.To) {
			continue
		}
		movements = append(movements, m)
	}
	slices.SortFunc(movements, func(a, b domain.Movement) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	if filter.Limit > 0 && len(movements) > filter.Limit {
		movements = movements[:filter.Limit]
	}
	return movements, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	// Validate every line before touching stock so a failing line
	// leaves the store untouched.
	for _, line := range sale.Lines {
		product, ok := s.productsByID[line.ProductID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if line.Quantity <= 0 {
			return nil, store.ErrInvalidTransaction
		}
		if product.Stock < line.Quantity {
			return nil, store.ErrInsufficientStock
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("vta")
	}
	if sale.OccurredAt.IsZero() {
		sale.OccurredAt = time.Now().UTC()
	}

	total := decimal.Zero
	for i := range sale.Lines {
		line := &sale.Lines[i]
		if line.ID == "" {
			line.ID = xid.New("dv")
		}
		line.SaleID = sale.ID
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		total = total.Add(line.Subtotal)

		product := s.productsByID[line.ProductID]
		product.Stock -= line.Quantity
		product.UpdatedAt = sale.OccurredAt
		s.productsByID[line.ProductID] = product

		s.movements = append(s.movements, domain.Movement{
			ID:          xid.New("mov"),
			ProductID:   line.ProductID,
			Kind:        domain.MovementSale,
			Quantity:    line.Quantity,
			OccurredAt:  sale.OccurredAt,
			Description: "venta " + sale.ID,
		})
	}
	sale.Total = total
	s.salesByID[sale.ID] = cloneSale(sale)

	created := cloneSale(sale)
	return &created, nil
}

// UpdateSale replaces the sale's lines and optionally reassigns the
// seller. Old lines restore stock, new lines consume it; the net
// per-product change is recorded as an ADJUSTMENT movement. Validation
// runs over every product before any stock is touched.
func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.salesByID[sale.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	deltas := make(map[string]int64)
	for _, line := range existing.Lines {
		deltas[line.ProductID] += line.Quantity
	}
	for _, line := range sale.Lines {
		if line.Quantity <= 0 {
			return nil, store.ErrInvalidTransaction
		}
		deltas[line.ProductID] -= line.Quantity
	}

	for pid, delta := range deltas {
		product, ok := s.productsByID[pid]
		if !ok {
			return nil, store.ErrNotFound
		}
		if product.Stock+delta < 0 {
			return nil, store.ErrInsufficientStock
		}
	}

	now := time.Now().UTC()
	for pid, delta := range deltas {
		if delta == 0 {
			continue
		}
		product := s.productsByID[pid]
		product.Stock += delta
		product.UpdatedAt = now
		s.productsByID[pid] = product

		s.movements = append(s.movements, domain.Movement{
			ID:          xid.New("mov"),
			ProductID:   pid,
			Kind:        domain.MovementAdjustment,
			Quantity:    absInt64(delta),
			OccurredAt:  now,
			Description: fmt.Sprintf("venta %s editada %+d", sale.ID, delta),
		})
	}

	total := decimal.Zero
	lines := make([]domain.SaleLine, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		line.ID = xid.New("dv")
		line.SaleID = sale.ID
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		total = total.Add(line.Subtotal)
		lines = append(lines, line)
	}

	updated := existing
	if sale.SellerID != "" {
		updated.SellerID = sale.SellerID
	}
	updated.Lines = lines
	updated.Total = total
	s.salesByID[sale.ID] = cloneSale(updated)

	result := cloneSale(updated)
	return &result, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneSale(sale)
	return &found, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 16)
	for _, sale := range s.salesByID {
		if filter.SellerID != "" && sale.SellerID != filter.SellerID {
			continue
		}
		if !inRange(sale.OccurredAt, filter.From, filter.To) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *Store) GetSalesReport(_ context.Context, from time.Time, to time.Time) (*domain.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.SalesReport{
		From:           from,
		To:             to,
		TotalSales:     decimal.Zero,
		TotalPurchases: decimal.Zero,
		GrossProfit:    decimal.Zero,
		DailyAverage:   decimal.Zero,
	}

	qtyByProduct := map[string]int64{}
	totalByProduct := map[string]decimal.Decimal{}
	totalByUser := map[string]decimal.Decimal{}

	for _, sale := range s.salesByID {
		if !inRange(sale.OccurredAt, from, to) {
			continue
		}
		totalByUser[sale.SellerID] = mapTotal(totalByUser, sale.SellerID).Add(sale.Total)
		report.TotalSales = report.TotalSales.Add(sale.Total)
		for _, line := range sale.Lines {
			qtyByProduct[line.ProductID] += line.Quantity
			totalByProduct[line.ProductID] = mapTotal(totalByProduct, line.ProductID).Add(line.Subtotal)
			if product, ok := s.productsByID[line.ProductID]; ok {
				margin := line.UnitPrice.Sub(product.PurchasePrice).Mul(decimal.NewFromInt(line.Quantity))
				report.GrossProfit = report.GrossProfit.Add(margin)
			}
		}
	}

	for _, m := range s.movements {
		if m.Kind != domain.MovementReceipt || !inRange(m.OccurredAt, from, to) {
			continue
		}
		if product, ok := s.productsByID[m.ProductID]; ok {
			cost := product.PurchasePrice.Mul(decimal.NewFromInt(m.Quantity))
			report.TotalPurchases = report.TotalPurchases.Add(cost)
		}
	}

	if days := daysInclusive(from, to); days > 0 {
		report.DailyAverage = report.TotalSales.Div(decimal.NewFromInt(days)).Round(2)
	}

	for productID, qty := range qtyByProduct {
		name := productID
		if product, ok := s.productsByID[productID]; ok {
			name = product.Name
		}
		report.ByProduct = append(report.ByProduct, domain.ProductSales{
			ProductID: productID,
			Name:      name,
			Quantity:  qty,
			Total:     totalByProduct[productID],
		})
	}
	slices.SortFunc(report.ByProduct, func(a, b domain.ProductSales) int {
		if a.Quantity != b.Quantity {
			if a.Quantity > b.Quantity {
				return -1
			}
			return 1
		}
		return cmpString(a.Name, b.Name)
	})

	for userID, total := range totalByUser {
		name := userID
		if user, ok := s.usersByID[userID]; ok {
			name = user.Name
		}
		report.ByEmployee = append(report.ByEmployee, domain.EmployeeSales{
			UserID: userID,
			Name:   name,
			Total:  total,
		})
	}
	slices.SortFunc(report.ByEmployee, func(a, b domain.EmployeeSales) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmpString(a.Name, b.Name)
	})

	return &report, nil
}

func (s *Store) GetIdleProducts(_ context.Context, from time.Time, to time.Time) ([]domain.IdleProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	moved := map[string]bool{}
	for _, m := range s.movements {
		if inRange(m.OccurredAt, from, to) {
			moved[m.ProductID] = true
		}
	}

	idle := make([]domain.IdleProduct, 0, 8)
	for _, p := range s.productsByID {
		if moved[p.ID] {
			continue
		}
		idle = append(idle, domain.IdleProduct{
			ProductID: p.ID,
			Name:      p.Name,
			Stock:     p.Stock,
			SalePrice: p.SalePrice,
		})
	}
	slices.SortFunc(idle, func(a, b domain.IdleProduct) int {
		return cmpString(a.Name, b.Name)
	})
	return idle, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.usersByID {
		if strings.EqualFold(existing.Email, user.Email) {
			return nil, store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	s.usersByID[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.usersByID {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := u
	return &found, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return cmpString(a.Email, b.Email)
	})
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[user.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.usersByID[user.ID] = user
	updated := user
	return &updated, nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	cloned := sale
	cloned.Lines = make([]domain.SaleLine, len(sale.Lines))
	copy(cloned.Lines, sale.Lines)
	return cloned
}

func sortProducts(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
}

func mapTotal(m map[string]decimal.Decimal, key string) decimal.Decimal {
	if v, ok := m[key]; ok {
		return v
	}
	return decimal.Zero
}

func inRange(at time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && at.After(to) {
		return false
	}
	return true
}

func daysInclusive(from time.Time, to time.Time) int64 {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	if toDay.Before(fromDay) {
		return 0
	}
	return int64(toDay.Sub(fromDay).Hours()/24) + 1
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
