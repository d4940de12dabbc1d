package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"electrostock/internal/domain"
	"electrostock/internal/store"
	"electrostock/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables when missing. Safe to run on every
// startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS usuarios (
			id TEXT PRIMARY KEY,
			nombre TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			rol TEXT NOT NULL,
			token_verificacion TEXT NOT NULL DEFAULT '',
			verificado BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS proveedores (
			id TEXT PRIMARY KEY,
			nombre TEXT NOT NULL,
			contacto TEXT NOT NULL DEFAULT '',
			telefono TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			direccion TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS productos (
			id TEXT PRIMARY KEY,
			codigo_sku TEXT NOT NULL UNIQUE,
			nombre TEXT NOT NULL,
			descripcion TEXT NOT NULL DEFAULT '',
			precio_compra NUMERIC(10,2) NOT NULL,
			precio_venta NUMERIC(10,2) NOT NULL,
			stock_actual BIGINT NOT NULL DEFAULT 0,
			stock_minimo BIGINT NOT NULL DEFAULT 0,
			id_proveedor TEXT REFERENCES proveedores(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ventas (
			id TEXT PRIMARY KEY,
			fecha TIMESTAMPTZ NOT NULL,
			id_usuario TEXT NOT NULL REFERENCES usuarios(id),
			total NUMERIC(10,2) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS detalle_ventas (
			id TEXT PRIMARY KEY,
			id_venta TEXT NOT NULL REFERENCES ventas(id),
			id_producto TEXT NOT NULL REFERENCES productos(id),
			cantidad BIGINT NOT NULL,
			precio_unitario_venta NUMERIC(10,2) NOT NULL
		)`,
		// No foreign key on id_producto: the movement ledger is
		// append-only and outlives the products it records.
		`CREATE TABLE IF NOT EXISTS movimientos_inventario (
			id TEXT PRIMARY KEY,
			id_producto TEXT NOT NULL,
			tipo_movimiento TEXT NOT NULL,
			cantidad BIGINT NOT NULL,
			fecha TIMESTAMPTZ NOT NULL,
			descripcion TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_movimientos_fecha ON movimientos_inventario (fecha)`,
		`CREATE INDEX IF NOT EXISTS idx_movimientos_producto ON movimientos_inventario (id_producto)`,
		`CREATE INDEX IF NOT EXISTS idx_ventas_fecha ON ventas (fecha)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const productColumns = `id, codigo_sku, nombre, descripcion, precio_compra, precio_venta, stock_actual, stock_minimo, COALESCE(id_proveedor, ''), created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.PurchasePrice, &p.SalePrice, &p.Stock, &p.StockMin, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM productos
		ORDER BY nombre
	`)
}

func (s *Store) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM productos
		WHERE nombre ILIKE $1 OR codigo_sku ILIKE $1
		ORDER BY nombre
	`, pattern)
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM productos
		WHERE stock_actual <= stock_minimo
		ORDER BY nombre
	`)
}

func (s *Store) ListProductsBySupplier(ctx context.Context, supplierID string) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM productos
		WHERE id_proveedor = $1
		ORDER BY nombre
	`, supplierID)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO productos (id, codigo_sku, nombre, descripcion, precio_compra, precio_venta, stock_actual, stock_minimo, id_proveedor, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.SKU, product.Name, product.Description, product.PurchasePrice, product.SalePrice,
		product.Stock, product.StockMin, nullIfEmpty(product.SupplierID), product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if product.Stock > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO movimientos_inventario (id, id_producto, tipo_movimiento, cantidad, fecha, descripcion)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, xid.New("mov"), product.ID, domain.MovementReceipt, product.Stock, now, "stock inicial")
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM productos
		WHERE id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM productos
		WHERE codigo_sku = $1
	`, sku)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE productos
		SET nombre = $2, descripcion = $3, precio_compra = $4, precio_venta = $5, stock_minimo = $6, id_proveedor = $7, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Description, product.PurchasePrice, product.SalePrice, product.StockMin, nullIfEmpty(product.SupplierID))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM productos WHERE id = $1`, id)
	if err != nil {
		// detalle_ventas still references the product.
		if isForeignKeyViolation(err) {
			return store.ErrInvalidTransaction
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" {
		supplier.ID = xid.New("prov")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proveedores (id, nombre, contacto, telefono, email, direccion)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, supplier.ID, supplier.Name, supplier.Contact, supplier.Phone, supplier.Email, supplier.Address)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nombre, contacto, telefono, email, direccion
		FROM proveedores
		ORDER BY nombre
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Contact, &sup.Phone, &sup.Email, &sup.Address); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error) {
	var sup domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nombre, contacto, telefono, email, direccion
		FROM proveedores
		WHERE id = $1
	`, id).Scan(&sup.ID, &sup.Name, &sup.Contact, &sup.Phone, &sup.Email, &sup.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sup, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE proveedores
		SET nombre = $2, contacto = $3, telefono = $4, email = $5, direccion = $6
		WHERE id = $1
	`, supplier.ID, supplier.Name, supplier.Contact, supplier.Phone, supplier.Email, supplier.Address)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := supplier
	return &updated, nil
}

// DeleteSupplier removes the supplier and its products in one
// transaction. Products that appear in a sale block the whole cascade;
// movement history is kept.
func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM proveedores WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}

	var sold bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM detalle_ventas dv
			JOIN productos p ON p.id = dv.id_producto
			WHERE p.id_proveedor = $1
		)
	`, id).Scan(&sold); err != nil {
		return err
	}
	if sold {
		return store.ErrInvalidTransaction
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM productos WHERE id_proveedor = $1`, id); err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrInvalidTransaction
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM proveedores WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ApplyMovement(ctx context.Context, productID string, delta int64, movement domain.Movement) (*domain.Movement, error) {
	if delta == 0 {
		return nil, store.ErrNoChange
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var stock int64
	err = tx.QueryRowContext(ctx, `
		SELECT stock_actual
		FROM productos
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	newStock := stock + delta
	if newStock < 0 {
		return nil, store.ErrInsufficientStock
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE productos
		SET stock_actual = $2, updated_at = now()
		WHERE id = $1
	`, productID, newStock); err != nil {
		return nil, err
	}

	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.OccurredAt.IsZero() {
		movement.OccurredAt = time.Now().UTC()
	}
	movement.ProductID = productID

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO movimientos_inventario (id, id_producto, tipo_movimiento, cantidad, fecha, descripcion)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, movement.ID, movement.ProductID, movement.Kind, movement.Quantity, movement.OccurredAt, movement.Description); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	applied := movement
	return &applied, nil
}

func (s *Store) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.Movement, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, id_producto, tipo_movimiento, cantidad, fecha, descripcion
		FROM movimientos_inventario
		WHERE 1=1
	`)
	args := make([]any, 0, 4)
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		fmt.Fprintf(&query, " AND id_producto = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		fmt.Fprintf(&query, " AND fecha >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		fmt.Fprintf(&query, " AND fecha <= $%d", len(args))
	}
	query.WriteString(" ORDER BY fecha DESC")
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}
	args = append(args, limit)
	fmt.Fprintf(&query, " LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.Movement, 0, 32)
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.Quantity, &m.OccurredAt, &m.Description); err != nil {
			return nil, err
		}
		m.OccurredAt = m.OccurredAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if sale.ID == "" {
		sale.ID = xid.New("vta")
	}
	if sale.OccurredAt.IsZero() {
		sale.OccurredAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	total := decimal.Zero
	for i := range sale.Lines {
		line := &sale.Lines[i]
		if line.Quantity <= 0 {
			return nil, store.ErrInvalidTransaction
		}

		var stock int64
		err = tx.QueryRowContext(ctx, `
			SELECT stock_actual
			FROM productos
			WHERE id = $1
			FOR UPDATE
		`, line.ProductID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if stock < line.Quantity {
			return nil, store.ErrInsufficientStock
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE productos
			SET stock_actual = stock_actual - $2, updated_at = now()
			WHERE id = $1
		`, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}

		if line.ID == "" {
			line.ID = xid.New("dv")
		}
		line.SaleID = sale.ID
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		total = total.Add(line.Subtotal)
	}
	sale.Total = total

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ventas (id, fecha, id_usuario, total)
		VALUES ($1,$2,$3,$4)
	`, sale.ID, sale.OccurredAt, sale.SellerID, sale.Total); err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, line := range sale.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO detalle_ventas (id, id_venta, id_producto, cantidad, precio_unitario_venta)
			VALUES ($1,$2,$3,$4,$5)
		`, line.ID, line.SaleID, line.ProductID, line.Quantity, line.UnitPrice); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO movimientos_inventario (id, id_producto, tipo_movimiento, cantidad, fecha, descripcion)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, xid.New("mov"), line.ProductID, domain.MovementSale, line.Quantity, sale.OccurredAt, "venta "+sale.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

// UpdateSale replaces the sale's lines and optionally reassigns the
// seller in one transaction. Old lines restore stock, new lines consume
// it; the net per-product change is recorded as an ADJUSTMENT movement.
func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var occurredAt time.Time
	var currentSeller string
	err = tx.QueryRowContext(ctx, `
		SELECT fecha, id_usuario
		FROM ventas
		WHERE id = $1
		FOR UPDATE
	`, sale.ID).Scan(&occurredAt, &currentSeller)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	deltas := make(map[string]int64)
	rows, err := tx.QueryContext(ctx, `
		SELECT id_producto, cantidad
		FROM detalle_ventas
		WHERE id_venta = $1
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var productID string
		var quantity int64
		if err := rows.Scan(&productID, &quantity); err != nil {
			_ = rows.Close()
			return nil, err
		}
		deltas[productID] += quantity
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, line := range sale.Lines {
		if line.Quantity <= 0 {
			return nil, store.ErrInvalidTransaction
		}
		deltas[line.ProductID] -= line.Quantity
	}

	now := time.Now().UTC()
	for productID, delta := range deltas {
		var stock int64
		err = tx.QueryRowContext(ctx, `
			SELECT stock_actual
			FROM productos
			WHERE id = $1
			FOR UPDATE
		`, productID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if stock+delta < 0 {
			return nil, store.ErrInsufficientStock
		}
		if delta == 0 {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE productos
			SET stock_actual = stock_actual + $2, updated_at = now()
			WHERE id = $1
		`, productID, delta); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO movimientos_inventario (id, id_producto, tipo_movimiento, cantidad, fecha, descripcion)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, xid.New("mov"), productID, domain.MovementAdjustment, absInt64(delta), now,
			fmt.Sprintf("venta %s editada %+d", sale.ID, delta)); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM detalle_ventas WHERE id_venta = $1`, sale.ID); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for i := range sale.Lines {
		line := &sale.Lines[i]
		line.ID = xid.New("dv")
		line.SaleID = sale.ID
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		total = total.Add(line.Subtotal)

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO detalle_ventas (id, id_venta, id_producto, cantidad, precio_unitario_venta)
			VALUES ($1,$2,$3,$4,$5)
		`, line.ID, line.SaleID, line.ProductID, line.Quantity, line.UnitPrice); err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
	}

	sellerID := sale.SellerID
	if sellerID == "" {
		sellerID = currentSeller
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE ventas
		SET id_usuario = $2, total = $3
		WHERE id = $1
	`, sale.ID, sellerID, total); err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sale.SellerID = sellerID
	sale.OccurredAt = occurredAt.UTC()
	sale.Total = total
	updated := sale
	return &updated, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, fecha, id_usuario, total
		FROM ventas
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.OccurredAt, &sale.SellerID, &sale.Total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.OccurredAt = sale.OccurredAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, id_venta, id_producto, cantidad, precio_unitario_venta
		FROM detalle_ventas
		WHERE id_venta = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, fecha, id_usuario, total
		FROM ventas
		WHERE 1=1
	`)
	args := make([]any, 0, 4)
	if filter.SellerID != "" {
		args = append(args, filter.SellerID)
		fmt.Fprintf(&query, " AND id_usuario = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		fmt.Fprintf(&query, " AND fecha >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		fmt.Fprintf(&query, " AND fecha <= $%d", len(args))
	}
	query.WriteString(" ORDER BY fecha DESC")
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	args = append(args, limit)
	fmt.Fprintf(&query, " LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.OccurredAt, &sale.SellerID, &sale.Total); err != nil {
			return nil, err
		}
		sale.OccurredAt = sale.OccurredAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSalesReport(ctx context.Context, from time.Time, to time.Time) (*domain.SalesReport, error) {
	report := domain.SalesReport{
		From:           from,
		To:             to,
		TotalSales:     decimal.Zero,
		TotalPurchases: decimal.Zero,
		GrossProfit:    decimal.Zero,
		DailyAverage:   decimal.Zero,
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(dv.cantidad * dv.precio_unitario_venta), 0)
		FROM detalle_ventas dv
		JOIN ventas v ON v.id = dv.id_venta
		WHERE v.fecha BETWEEN $1 AND $2
	`, from, to).Scan(&report.TotalSales)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.precio_compra * m.cantidad), 0)
		FROM movimientos_inventario m
		JOIN productos p ON p.id = m.id_producto
		WHERE m.tipo_movimiento = $3 AND m.fecha BETWEEN $1 AND $2
	`, from, to, domain.MovementReceipt).Scan(&report.TotalPurchases)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM((dv.precio_unitario_venta - p.precio_compra) * dv.cantidad), 0)
		FROM detalle_ventas dv
		JOIN ventas v ON v.id = dv.id_venta
		JOIN productos p ON p.id = dv.id_producto
		WHERE v.fecha BETWEEN $1 AND $2
	`, from, to).Scan(&report.GrossProfit)
	if err != nil {
		return nil, err
	}

	if days := daysInclusive(from, to); days > 0 {
		report.DailyAverage = report.TotalSales.Div(decimal.NewFromInt(days)).Round(2)
	}

	productRows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.nombre, SUM(dv.cantidad), SUM(dv.cantidad * dv.precio_unitario_venta)
		FROM detalle_ventas dv
		JOIN ventas v ON v.id = dv.id_venta
		JOIN productos p ON p.id = dv.id_producto
		WHERE v.fecha BETWEEN $1 AND $2
		GROUP BY p.id, p.nombre
		ORDER BY SUM(dv.cantidad) DESC, p.nombre
	`, from, to)
	if err != nil {
		return nil, err
	}
	for productRows.Next() {
		var row domain.ProductSales
		if err := productRows.Scan(&row.ProductID, &row.Name, &row.Quantity, &row.Total); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		report.ByProduct = append(report.ByProduct, row)
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	employeeRows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.nombre, SUM(v.total)
		FROM ventas v
		JOIN usuarios u ON u.id = v.id_usuario
		WHERE v.fecha BETWEEN $1 AND $2
		GROUP BY u.id, u.nombre
		ORDER BY SUM(v.total) DESC, u.nombre
	`, from, to)
	if err != nil {
		return nil, err
	}
	for employeeRows.Next() {
		var row domain.EmployeeSales
		if err := employeeRows.Scan(&row.UserID, &row.Name, &row.Total); err != nil {
			_ = employeeRows.Close()
			return nil, err
		}
		report.ByEmployee = append(report.ByEmployee, row)
	}
	if err := employeeRows.Err(); err != nil {
		_ = employeeRows.Close()
		return nil, err
	}
	_ = employeeRows.Close()

	return &report, nil
}

func (s *Store) GetIdleProducts(ctx context.Context, from time.Time, to time.Time) ([]domain.IdleProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.nombre, p.stock_actual, p.precio_venta
		FROM productos p
		WHERE NOT EXISTS (
			SELECT 1 FROM movimientos_inventario m
			WHERE m.id_producto = p.id AND m.fecha BETWEEN $1 AND $2
		)
		ORDER BY p.nombre
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	idle := make([]domain.IdleProduct, 0, 16)
	for rows.Next() {
		var row domain.IdleProduct
		if err := rows.Scan(&row.ProductID, &row.Name, &row.Stock, &row.SalePrice); err != nil {
			return nil, err
		}
		idle = append(idle, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return idle, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usuarios (id, nombre, email, password_hash, rol, token_verificacion, verificado)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.VerificationCode, user.Verified)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nombre, email, password_hash, rol, token_verificacion, verificado
		FROM usuarios
		WHERE lower(email) = lower($1)
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.VerificationCode, &user.Verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nombre, email, password_hash, rol, token_verificacion, verificado
		FROM usuarios
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.VerificationCode, &user.Verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nombre, email, password_hash, rol, token_verificacion, verificado
		FROM usuarios
		ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.VerificationCode, &user.Verified); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE usuarios
		SET nombre = $2, email = $3, password_hash = $4, rol = $5, token_verificacion = $6, verificado = $7
		WHERE id = $1
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.VerificationCode, user.Verified)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := user
	return &updated, nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func daysInclusive(from time.Time, to time.Time) int64 {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	if toDay.Before(fromDay) {
		return 0
	}
	return int64(toDay.Sub(fromDay).Hours()/24) + 1
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
