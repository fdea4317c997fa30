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

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
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

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ProvisionTenant(ctx context.Context, tenant domain.Tenant, admin domain.User, categories []domain.ExpenseCategory) (*domain.Tenant, *domain.User, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, nil, err
	}
	defer pgTx.Rollback()

	if tenant.ID == "" {
		tenant.ID = xid.New("tenant")
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	tenant.Active = true

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, plan, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, tenant.ID, tenant.Name, tenant.Slug, tenant.Plan, tenant.Active, tenant.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, fmt.Errorf("%w: slug taken", store.ErrInvalidTransaction)
		}
		return nil, nil, err
	}

	if admin.ID == "" {
		admin.ID = xid.New("user")
	}
	admin.TenantID = tenant.ID
	admin.Active = true
	admin.CreatedAt = tenant.CreatedAt
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, admin.ID, admin.TenantID, strings.ToLower(admin.Email), admin.Name, admin.PasswordHash, admin.Role, admin.Active, admin.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, fmt.Errorf("%w: email taken", store.ErrInvalidTransaction)
		}
		return nil, nil, err
	}

	for _, c := range categories {
		id := c.ID
		if id == "" {
			id = xid.New("expcat")
		}
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO expense_categories (id, tenant_id, name)
			VALUES ($1,$2,$3)
		`, id, tenant.ID, c.Name); err != nil {
			return nil, nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, nil, err
	}
	return &tenant, &admin, nil
}

func (s *Store) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, plan, active, created_at
		FROM tenants
		WHERE id = $1
	`, tenantID).Scan(&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.Plan, &tenant.Active, &tenant.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, name, password_hash, role, active, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email))
}

func (s *Store) GetUser(ctx context.Context, tenantID string, userID string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, name, password_hash, role, active, created_at
		FROM users
		WHERE id = $1 AND tenant_id = $2
	`, userID, tenantID))
}

func (s *Store) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.TenantID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, user.ID, user.TenantID, strings.ToLower(user.Email), user.Name, user.PasswordHash, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email taken", store.ErrInvalidTransaction)
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, tenantID string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, email, name, password_hash, role, active, created_at
		FROM users
		WHERE tenant_id = $1
		ORDER BY email
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 8)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.TenantID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

const productColumns = `id, tenant_id, sku, COALESCE(barcode,''), name, COALESCE(description,''),
	COALESCE(brand,''), COALESCE(model,''), COALESCE(year,''), COALESCE(category_id,''),
	cost_price, sale_price, stock, min_stock, COALESCE(location,''), active, created_at, updated_at`

func scanProduct(scanner interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := scanner.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Barcode, &p.Name, &p.Description,
		&p.Brand, &p.Model, &p.Year, &p.CategoryID,
		&p.CostPrice, &p.SalePrice, &p.Stock, &p.MinStock, &p.Location, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	product.Active = true
	if product.MinStock <= 0 {
		product.MinStock = 5
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, sku, barcode, name, description, brand, model, year,
			category_id, cost_price, sale_price, stock, min_stock, location, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, product.ID, product.TenantID, product.SKU, nullIfEmpty(product.Barcode), product.Name,
		nullIfEmpty(product.Description), nullIfEmpty(product.Brand), nullIfEmpty(product.Model),
		nullIfEmpty(product.Year), nullIfEmpty(product.CategoryID), product.CostPrice, product.SalePrice,
		product.Stock, product.MinStock, nullIfEmpty(product.Location), product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateSKU
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET barcode=$3, name=$4, description=$5, brand=$6, model=$7, year=$8,
			category_id=$9, cost_price=$10, sale_price=$11, min_stock=$12, location=$13, active=$14,
			updated_at=now()
		WHERE id = $1 AND tenant_id = $2
	`, product.ID, product.TenantID, nullIfEmpty(product.Barcode), product.Name,
		nullIfEmpty(product.Description), nullIfEmpty(product.Brand), nullIfEmpty(product.Model),
		nullIfEmpty(product.Year), nullIfEmpty(product.CategoryID), product.CostPrice, product.SalePrice,
		product.MinStock, nullIfEmpty(product.Location), product.Active)
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
	return s.GetProduct(ctx, product.TenantID, product.ID)
}

func (s *Store) GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1 AND tenant_id = $2
	`, productID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, tenantID string, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (s *Store) ListProducts(ctx context.Context, tenantID string, filter domain.ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1`
	args := []any{tenantID}
	if !filter.All {
		query += ` AND active = true`
	}
	if filter.LowStock {
		query += ` AND stock <= min_stock`
	}
	if needle := strings.TrimSpace(filter.Search); needle != "" {
		args = append(args, "%"+strings.ToLower(needle)+"%")
		idx := fmt.Sprintf("$%d", len(args))
		query += ` AND (lower(name) LIKE ` + idx + ` OR lower(sku) LIKE ` + idx +
			` OR lower(COALESCE(barcode,'')) LIKE ` + idx + ` OR lower(COALESCE(brand,'')) LIKE ` + idx + `)`
	}
	query += ` ORDER BY name`

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
	return products, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, tenant_id, name) VALUES ($1,$2,$3)
	`, category.ID, category.TenantID, category.Name)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Store) ListCategories(ctx context.Context, tenantID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name FROM categories WHERE tenant_id = $1 ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 8)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const registerColumns = `id, tenant_id, user_id, opening_date, closing_date, initial_amount,
	final_amount, cash_amount, card_amount, transfer_amount, expected_amount, difference, status, COALESCE(notes,'')`

func scanRegister(scanner interface{ Scan(...any) error }) (domain.CashRegister, error) {
	var reg domain.CashRegister
	var closing sql.NullTime
	err := scanner.Scan(&reg.ID, &reg.TenantID, &reg.UserID, &reg.OpeningDate, &closing,
		&reg.InitialAmount, &reg.FinalAmount, &reg.CashAmount, &reg.CardAmount, &reg.TransferAmount,
		&reg.ExpectedAmount, &reg.Difference, &reg.Status, &reg.Notes)
	if closing.Valid {
		t := closing.Time
		reg.ClosingDate = &t
	}
	return reg, err
}

func (s *Store) OpenRegister(ctx context.Context, register domain.CashRegister) (*domain.CashRegister, error) {
	if register.ID == "" {
		register.ID = xid.New("reg")
	}
	if register.OpeningDate.IsZero() {
		register.OpeningDate = time.Now().UTC()
	}
	register.Status = domain.RegisterStatusOpen

	// The partial unique index on (tenant_id) WHERE status='OPEN' turns a
	// concurrent double-open into a unique violation instead of a race.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_registers (id, tenant_id, user_id, opening_date, initial_amount,
			final_amount, cash_amount, card_amount, transfer_amount, expected_amount, difference, status, notes)
		VALUES ($1,$2,$3,$4,$5,0,0,0,0,0,0,$6,$7)
	`, register.ID, register.TenantID, register.UserID, register.OpeningDate, register.InitialAmount,
		register.Status, nullIfEmpty(register.Notes))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrRegisterOpen
		}
		return nil, err
	}
	return &register, nil
}

func (s *Store) GetOpenRegister(ctx context.Context, tenantID string) (*domain.CashRegister, error) {
	reg, err := scanRegister(s.db.QueryRowContext(ctx, `
		SELECT `+registerColumns+` FROM cash_registers WHERE tenant_id = $1 AND status = 'OPEN'
	`, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &reg, nil
}

func (s *Store) GetRegister(ctx context.Context, tenantID string, registerID string) (*domain.CashRegister, error) {
	reg, err := scanRegister(s.db.QueryRowContext(ctx, `
		SELECT `+registerColumns+` FROM cash_registers WHERE id = $1 AND tenant_id = $2
	`, registerID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &reg, nil
}

func (s *Store) CloseRegister(ctx context.Context, register domain.CashRegister) (*domain.CashRegister, error) {
	closing := time.Now().UTC()
	if register.ClosingDate != nil {
		closing = *register.ClosingDate
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE cash_registers
		SET closing_date=$3, final_amount=$4, cash_amount=$5, card_amount=$6, transfer_amount=$7,
			expected_amount=$8, difference=$9, status='CLOSED', notes=$10
		WHERE id = $1 AND tenant_id = $2 AND status = 'OPEN'
	`, register.ID, register.TenantID, closing, register.FinalAmount, register.CashAmount,
		register.CardAmount, register.TransferAmount, register.ExpectedAmount, register.Difference,
		nullIfEmpty(register.Notes))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		existing, err := s.GetRegister(ctx, register.TenantID, register.ID)
		if err != nil {
			return nil, err
		}
		if existing.Status == domain.RegisterStatusClosed {
			return nil, store.ErrRegisterClosed
		}
		return nil, store.ErrNotFound
	}
	return s.GetRegister(ctx, register.TenantID, register.ID)
}

func (s *Store) ListClosedRegisters(ctx context.Context, tenantID string, limit int) ([]domain.CashRegister, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+registerColumns+` FROM cash_registers
		WHERE tenant_id = $1 AND status = 'CLOSED'
		ORDER BY opening_date DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	registers := make([]domain.CashRegister, 0, limit)
	for rows.Next() {
		reg, err := scanRegister(rows)
		if err != nil {
			return nil, err
		}
		registers = append(registers, reg)
	}
	return registers, rows.Err()
}

func (s *Store) SalesTotalsByMethod(ctx context.Context, tenantID string, registerID string) (map[string]decimal.Decimal, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*), COALESCE(SUM(total), 0)
		FROM sales
		WHERE tenant_id = $1 AND cash_register_id = $2 AND status = 'COMPLETED'
		GROUP BY payment_method
	`, tenantID, registerID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	totals := map[string]decimal.Decimal{}
	count := 0
	for rows.Next() {
		var method string
		var methodCount int
		var total decimal.Decimal
		if err := rows.Scan(&method, &methodCount, &total); err != nil {
			return nil, 0, err
		}
		totals[method] = total
		count += methodCount
	}
	return totals, count, rows.Err()
}

// nextSequence bumps the named per-tenant counter inside the caller's
// transaction and returns the new value.
func nextSequence(ctx context.Context, tx *sql.Tx, tenantID string, name string) (int64, error) {
	var value int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO tenant_sequences (tenant_id, name, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, name) DO UPDATE SET value = tenant_sequences.value + 1
		RETURNING value
	`, tenantID, name).Scan(&value)
	return value, err
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer pgTx.Rollback()

	// Conditional decrement: zero rows means the product is missing or the
	// stock does not cover the quantity, never a negative balance.
	for _, item := range sale.Items {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $3, updated_at = now()
			WHERE id = $1 AND tenant_id = $2 AND stock >= $3
		`, item.ProductID, sale.TenantID, item.Quantity)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var name string
			err := pgTx.QueryRowContext(ctx, `
				SELECT name FROM products WHERE id = $1 AND tenant_id = $2
			`, item.ProductID, sale.TenantID).Scan(&name)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, name)
		}
	}

	seq, err := nextSequence(ctx, pgTx, sale.TenantID, "sale")
	if err != nil {
		return nil, err
	}
	sale.SaleNumber = fmt.Sprintf("V-%06d", seq)
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Status = domain.SaleStatusCompleted

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, tenant_id, sale_number, user_id, customer_id, cash_register_id,
			subtotal, discount, tax, total, payment_method, status, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, sale.TenantID, sale.SaleNumber, sale.UserID, nullIfEmpty(sale.CustomerID),
		sale.CashRegisterID, sale.Subtotal, sale.Discount, sale.Tax, sale.Total,
		sale.PaymentMethod, sale.Status, nullIfEmpty(sale.Notes), sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	for i := range sale.Items {
		sale.Items[i].ID = xid.New("sitem")
		sale.Items[i].SaleID = sale.ID
		item := sale.Items[i]
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price, discount, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.Discount, item.Subtotal); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

const saleColumns = `id, tenant_id, sale_number, user_id, COALESCE(customer_id,''), cash_register_id,
	subtotal, discount, tax, total, payment_method, status, COALESCE(notes,''), created_at`

func scanSale(scanner interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	err := scanner.Scan(&sale.ID, &sale.TenantID, &sale.SaleNumber, &sale.UserID, &sale.CustomerID,
		&sale.CashRegisterID, &sale.Subtotal, &sale.Discount, &sale.Tax, &sale.Total,
		&sale.PaymentMethod, &sale.Status, &sale.Notes, &sale.CreatedAt)
	return sale, err
}

func (s *Store) GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE id = $1 AND tenant_id = $2
	`, saleID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	items, err := s.saleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE tenant_id = $1`
	args := []any{tenantID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	saleIDs := make([]string, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		saleIDs = append(saleIDs, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.saleItems(ctx, saleIDs)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) saleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	result := make(map[string][]domain.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, discount, subtotal
		FROM sale_items
		WHERE sale_id = ANY($1)
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Discount, &item.Subtotal); err != nil {
			return nil, err
		}
		result[item.SaleID] = append(result[item.SaleID], item)
	}
	return result, rows.Err()
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if len(purchase.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer pgTx.Rollback()

	for _, item := range purchase.Items {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + $3, cost_price = $4, updated_at = now()
			WHERE id = $1 AND tenant_id = $2
		`, item.ProductID, purchase.TenantID, item.Quantity, item.UnitCost)
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
	}

	seq, err := nextSequence(ctx, pgTx, purchase.TenantID, "purchase")
	if err != nil {
		return nil, err
	}
	purchase.PurchaseNumber = fmt.Sprintf("C-%06d", seq)
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	purchase.Status = "COMPLETED"

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO purchases (id, tenant_id, purchase_number, supplier_id, user_id,
			subtotal, tax, total, status, invoice_number, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, purchase.ID, purchase.TenantID, purchase.PurchaseNumber, nullIfEmpty(purchase.SupplierID),
		purchase.UserID, purchase.Subtotal, purchase.Tax, purchase.Total, purchase.Status,
		nullIfEmpty(purchase.InvoiceNumber), nullIfEmpty(purchase.Notes), purchase.CreatedAt)
	if err != nil {
		return nil, err
	}

	for i := range purchase.Items {
		purchase.Items[i].ID = xid.New("pitem")
		purchase.Items[i].PurchaseID = purchase.ID
		item := purchase.Items[i]
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO purchase_items (id, purchase_id, product_id, quantity, unit_cost, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.ID, item.PurchaseID, item.ProductID, item.Quantity, item.UnitCost, item.Subtotal); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &purchase, nil
}

const purchaseColumns = `id, tenant_id, purchase_number, COALESCE(supplier_id,''), user_id,
	subtotal, tax, total, status, COALESCE(invoice_number,''), COALESCE(notes,''), created_at`

func scanPurchase(scanner interface{ Scan(...any) error }) (domain.Purchase, error) {
	var p domain.Purchase
	err := scanner.Scan(&p.ID, &p.TenantID, &p.PurchaseNumber, &p.SupplierID, &p.UserID,
		&p.Subtotal, &p.Tax, &p.Total, &p.Status, &p.InvoiceNumber, &p.Notes, &p.CreatedAt)
	return p, err
}

func (s *Store) GetPurchase(ctx context.Context, tenantID string, purchaseID string) (*domain.Purchase, error) {
	purchase, err := scanPurchase(s.db.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 AND tenant_id = $2
	`, purchaseID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	items, err := s.purchaseItems(ctx, []string{purchase.ID})
	if err != nil {
		return nil, err
	}
	purchase.Items = items[purchase.ID]
	return &purchase, nil
}

func (s *Store) ListPurchases(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE tenant_id = $1`
	args := []any{tenantID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 16)
	ids := make([]string, 0, 16)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.purchaseItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range purchases {
		purchases[i].Items = items[purchases[i].ID]
	}
	return purchases, nil
}

func (s *Store) purchaseItems(ctx context.Context, purchaseIDs []string) (map[string][]domain.PurchaseItem, error) {
	result := make(map[string][]domain.PurchaseItem, len(purchaseIDs))
	if len(purchaseIDs) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, purchase_id, product_id, quantity, unit_cost, subtotal
		FROM purchase_items
		WHERE purchase_id = ANY($1)
	`, purchaseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.PurchaseItem
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.Quantity, &item.UnitCost, &item.Subtotal); err != nil {
			return nil, err
		}
		result[item.PurchaseID] = append(result[item.PurchaseID], item)
	}
	return result, rows.Err()
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	supplier.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, tenant_id, name, contact, phone, email, address, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, supplier.ID, supplier.TenantID, supplier.Name, nullIfEmpty(supplier.Contact),
		nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Email), nullIfEmpty(supplier.Address), supplier.Active)
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers SET name=$3, contact=$4, phone=$5, email=$6, address=$7, active=$8
		WHERE id = $1 AND tenant_id = $2
	`, supplier.ID, supplier.TenantID, supplier.Name, nullIfEmpty(supplier.Contact),
		nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Email), nullIfEmpty(supplier.Address), supplier.Active)
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
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context, tenantID string) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, COALESCE(contact,''), COALESCE(phone,''), COALESCE(email,''), COALESCE(address,''), active
		FROM suppliers
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 8)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.TenantID, &sup.Name, &sup.Contact, &sup.Phone, &sup.Email, &sup.Address, &sup.Active); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	customer.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, tenant_id, name, email, phone, address, tax_id, notes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, customer.ID, customer.TenantID, customer.Name, nullIfEmpty(customer.Email),
		nullIfEmpty(customer.Phone), nullIfEmpty(customer.Address), nullIfEmpty(customer.TaxID),
		nullIfEmpty(customer.Notes), customer.Active)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET name=$3, email=$4, phone=$5, address=$6, tax_id=$7, notes=$8, active=$9
		WHERE id = $1 AND tenant_id = $2
	`, customer.ID, customer.TenantID, customer.Name, nullIfEmpty(customer.Email),
		nullIfEmpty(customer.Phone), nullIfEmpty(customer.Address), nullIfEmpty(customer.TaxID),
		nullIfEmpty(customer.Notes), customer.Active)
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
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''),
			COALESCE(tax_id,''), COALESCE(notes,''), active
		FROM customers
		WHERE id = $1 AND tenant_id = $2
	`, customerID, tenantID).Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxID, &c.Notes, &c.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, tenantID string, search string) ([]domain.Customer, error) {
	query := `
		SELECT id, tenant_id, name, COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''),
			COALESCE(tax_id,''), COALESCE(notes,''), active
		FROM customers
		WHERE tenant_id = $1`
	args := []any{tenantID}
	if needle := strings.TrimSpace(search); needle != "" {
		args = append(args, "%"+strings.ToLower(needle)+"%")
		idx := fmt.Sprintf("$%d", len(args))
		query += ` AND (lower(name) LIKE ` + idx + ` OR lower(COALESCE(phone,'')) LIKE ` + idx +
			` OR lower(COALESCE(email,'')) LIKE ` + idx + `)`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 16)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxID, &c.Notes, &c.Active); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	now := time.Now().UTC()
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = now
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, tenant_id, user_id, category_id, expense_date, amount,
			description, payment_method, reference, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, expense.ID, expense.TenantID, expense.UserID, nullIfEmpty(expense.CategoryID),
		expense.ExpenseDate, expense.Amount, expense.Description, expense.PaymentMethod,
		nullIfEmpty(expense.Reference), nullIfEmpty(expense.Notes), expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Expense, error) {
	query := `
		SELECT id, tenant_id, user_id, COALESCE(category_id,''), expense_date, amount,
			description, payment_method, COALESCE(reference,''), COALESCE(notes,''), created_at
		FROM expenses
		WHERE tenant_id = $1`
	args := []any{tenantID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(` AND expense_date >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(` AND expense_date < $%d`, len(args))
	}
	query += ` ORDER BY expense_date DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 16)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.CategoryID, &e.ExpenseDate, &e.Amount,
			&e.Description, &e.PaymentMethod, &e.Reference, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if category.ID == "" {
		category.ID = xid.New("expcat")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_categories (id, tenant_id, name) VALUES ($1,$2,$3)
	`, category.ID, category.TenantID, category.Name)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Store) ListExpenseCategories(ctx context.Context, tenantID string) ([]domain.ExpenseCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name FROM expense_categories WHERE tenant_id = $1 ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.ExpenseCategory, 0, 8)
	for rows.Next() {
		var c domain.ExpenseCategory
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, tenant_id, actor, action, entity, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.TenantID, entry.Actor, entry.Action, entry.Entity,
		nullIfEmpty(entry.EntityID), nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, tenantID string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, actor, action, entity, COALESCE(entity_id,''), COALESCE(detail,''), created_at
		FROM audit_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.Actor, &entry.Action, &entry.Entity,
			&entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return val
}
