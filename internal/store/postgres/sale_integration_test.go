package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
)

func TestCreateSaleDecrementsStock(t *testing.T) {
	databaseURL := os.Getenv("MOTOPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set MOTOPOS_TEST_DATABASE_URL to run postgres integration test")
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
	tenantID := fmt.Sprintf("tenant-it-%d", stamp)
	userID := fmt.Sprintf("user-it-%d", stamp)
	productID := fmt.Sprintf("prod-it-%d", stamp)
	registerID := fmt.Sprintf("reg-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id IN (SELECT id FROM sales WHERE tenant_id = $1)`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM tenant_sequences WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_registers WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, plan, active, created_at)
		VALUES ($1, 'Taller IT', $1, 'BASIC', true, now())
	`, tenantID); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, password_hash, role, active, created_at)
		VALUES ($1, $2, $1 || '@it.local', 'Tester', 'x', 'ADMIN', true, now())
	`, userID, tenantID); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, sku, name, cost_price, sale_price, stock, min_stock, active, created_at, updated_at)
		VALUES ($1, $2, $1, 'Bujía IT', 1000, 2500, 3, 5, true, now(), now())
	`, productID, tenantID); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_registers (id, tenant_id, user_id, opening_date, initial_amount, status)
		VALUES ($1, $2, $3, now(), 10000, 'OPEN')
	`, registerID, tenantID, userID); err != nil {
		t.Fatalf("insert register: %v", err)
	}

	price := decimal.NewFromInt(2500)
	sale := domain.Sale{
		TenantID:       tenantID,
		UserID:         userID,
		CashRegisterID: registerID,
		Subtotal:       price.Mul(decimal.NewFromInt(2)),
		Total:          price.Mul(decimal.NewFromInt(2)),
		PaymentMethod:  domain.PaymentCash,
		Items: []domain.SaleItem{{
			ProductID: productID,
			Quantity:  2,
			UnitPrice: price,
			Subtotal:  price.Mul(decimal.NewFromInt(2)),
		}},
	}
	created, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.SaleNumber != "V-000001" {
		t.Fatalf("sale number = %q, want V-000001", created.SaleNumber)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 1 {
		t.Fatalf("stock = %d, want 1", stock)
	}

	// Only one unit left, so a two-unit sale must fail and roll back.
	if _, err := s.CreateSale(ctx, sale); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 1 {
		t.Fatalf("stock after failed sale = %d, want 1", stock)
	}
}
