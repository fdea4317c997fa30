package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/cache"
	"motopos/backend/internal/domain"
	"motopos/backend/internal/store/memory"
)

const testTenant = "tenant-demo"

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	return NewEngine(repo, cache.NoopReportCache{}, time.Minute), repo
}

func seedProduct(t *testing.T, repo *memory.Store, sku string) domain.Product {
	t.Helper()
	products, err := repo.ListProducts(context.Background(), testTenant, domain.ProductFilter{Search: sku})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	for _, p := range products {
		if p.SKU == sku {
			return p
		}
	}
	t.Fatalf("seed product %s not found", sku)
	return domain.Product{}
}

func TestSalesReportAggregates(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	product := seedProduct(t, repo, "BUJ-010")

	price := decimal.NewFromInt(4500)
	for i := 0; i < 2; i++ {
		_, err := repo.CreateSale(ctx, domain.Sale{
			TenantID:       testTenant,
			UserID:         "user-test",
			CashRegisterID: "reg-test",
			PaymentMethod:  domain.PaymentCash,
			Subtotal:       price.Mul(decimal.NewFromInt(2)),
			Total:          price.Mul(decimal.NewFromInt(2)),
			Items: []domain.SaleItem{{
				ProductID: product.ID,
				Quantity:  2,
				UnitPrice: price,
				Subtotal:  price.Mul(decimal.NewFromInt(2)),
			}},
		})
		if err != nil {
			t.Fatalf("create sale: %v", err)
		}
	}

	now := time.Now().UTC()
	rep, err := engine.SalesReport(ctx, testTenant, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if rep.SalesCount != 2 {
		t.Fatalf("sales count = %d, want 2", rep.SalesCount)
	}
	if want := price.Mul(decimal.NewFromInt(4)); !rep.TotalSales.Equal(want) {
		t.Fatalf("total sales = %s, want %s", rep.TotalSales, want)
	}
	if !rep.ByPaymentMethod[domain.PaymentCash].Equal(rep.TotalSales) {
		t.Fatalf("cash bucket = %s", rep.ByPaymentMethod[domain.PaymentCash])
	}
	if len(rep.TopProducts) != 1 || rep.TopProducts[0].Quantity != 4 {
		t.Fatalf("top products = %+v", rep.TopProducts)
	}
	if rep.TopProducts[0].Name != product.Name {
		t.Fatalf("top product name = %q", rep.TopProducts[0].Name)
	}
	if len(rep.ByDay) != 1 || rep.ByDay[0].Count != 2 {
		t.Fatalf("by day = %+v", rep.ByDay)
	}
}

func TestSalesReportDiscountCountsSaleLevelOnly(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	product := seedProduct(t, repo, "BUJ-010")

	// Item discounts are already folded into the line subtotals; only the
	// sale-level discount counts toward the report total.
	price := decimal.NewFromInt(4500)
	if _, err := repo.CreateSale(ctx, domain.Sale{
		TenantID:       testTenant,
		UserID:         "user-test",
		CashRegisterID: "reg-test",
		PaymentMethod:  domain.PaymentCash,
		Discount:       decimal.NewFromInt(1000),
		Subtotal:       price.Mul(decimal.NewFromInt(2)).Sub(decimal.NewFromInt(500)),
		Total:          price.Mul(decimal.NewFromInt(2)).Sub(decimal.NewFromInt(1500)),
		Items: []domain.SaleItem{{
			ProductID: product.ID,
			Quantity:  2,
			UnitPrice: price,
			Discount:  decimal.NewFromInt(500),
			Subtotal:  price.Mul(decimal.NewFromInt(2)).Sub(decimal.NewFromInt(500)),
		}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	now := time.Now().UTC()
	rep, err := engine.SalesReport(ctx, testTenant, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if want := decimal.NewFromInt(1000); !rep.TotalDiscount.Equal(want) {
		t.Fatalf("total discount = %s, want %s", rep.TotalDiscount, want)
	}
}

func TestProfitReportMargins(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()
	product := seedProduct(t, repo, "ACE-10W40")

	// Revenue 22000, cost of sales 13000 at the current cost price.
	price := decimal.NewFromInt(11000)
	if _, err := repo.CreateSale(ctx, domain.Sale{
		TenantID:       testTenant,
		UserID:         "user-test",
		CashRegisterID: "reg-test",
		PaymentMethod:  domain.PaymentCash,
		Subtotal:       price.Mul(decimal.NewFromInt(2)),
		Total:          price.Mul(decimal.NewFromInt(2)),
		Items: []domain.SaleItem{{
			ProductID: product.ID,
			Quantity:  2,
			UnitPrice: price,
			Subtotal:  price.Mul(decimal.NewFromInt(2)),
		}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := repo.CreateExpense(ctx, domain.Expense{
		TenantID:      testTenant,
		UserID:        "user-test",
		Amount:        decimal.NewFromInt(2000),
		Description:   "Luz",
		PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	now := time.Now().UTC()
	rep, err := engine.ProfitReport(ctx, testTenant, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("profit report: %v", err)
	}
	if !rep.TotalRevenue.Equal(decimal.NewFromInt(22000)) {
		t.Fatalf("revenue = %s", rep.TotalRevenue)
	}
	if !rep.CostOfSales.Equal(decimal.NewFromInt(13000)) {
		t.Fatalf("cost of sales = %s", rep.CostOfSales)
	}
	if !rep.GrossProfit.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("gross profit = %s", rep.GrossProfit)
	}
	if !rep.NetProfit.Equal(decimal.NewFromInt(7000)) {
		t.Fatalf("net profit = %s", rep.NetProfit)
	}
	// 9000/22000 and 7000/22000, rounded to two decimals.
	if want := decimal.RequireFromString("40.91"); !rep.GrossMargin.Equal(want) {
		t.Fatalf("gross margin = %s, want %s", rep.GrossMargin, want)
	}
	if want := decimal.RequireFromString("31.82"); !rep.NetMargin.Equal(want) {
		t.Fatalf("net margin = %s, want %s", rep.NetMargin, want)
	}
}

func TestProfitReportZeroRevenue(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rep, err := engine.ProfitReport(ctx, testTenant, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("profit report: %v", err)
	}
	if !rep.GrossMargin.IsZero() || !rep.NetMargin.IsZero() {
		t.Fatalf("margins should be zero without revenue: %s / %s", rep.GrossMargin, rep.NetMargin)
	}
}

func TestExpensesReportUncategorizedBucket(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	if _, err := repo.CreateExpense(ctx, domain.Expense{
		TenantID:      testTenant,
		UserID:        "user-test",
		Amount:        decimal.NewFromInt(3000),
		Description:   "Varios",
		PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	now := time.Now().UTC()
	rep, err := engine.ExpensesReport(ctx, testTenant, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("expenses report: %v", err)
	}
	if rep.ExpensesCount != 1 {
		t.Fatalf("expenses count = %d", rep.ExpensesCount)
	}
	if len(rep.ByCategory) != 1 || rep.ByCategory[0].Label != "Sin categoría" {
		t.Fatalf("by category = %+v", rep.ByCategory)
	}
}

func TestInventoryReportBucketsStock(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	if _, err := repo.CreateProduct(ctx, domain.Product{
		TenantID:  testTenant,
		SKU:       "AGOT-01",
		Name:      "Espejo retrovisor",
		CostPrice: decimal.NewFromInt(1500),
		SalePrice: decimal.NewFromInt(3000),
		Stock:     0,
		MinStock:  2,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	rep, err := engine.InventoryReport(ctx, testTenant)
	if err != nil {
		t.Fatalf("inventory report: %v", err)
	}
	if rep.ProductCount != 6 {
		t.Fatalf("product count = %d, want 6", rep.ProductCount)
	}
	if len(rep.OutOfStock) != 1 || rep.OutOfStock[0].SKU != "AGOT-01" {
		t.Fatalf("out of stock = %+v", rep.OutOfStock)
	}
	if len(rep.LowStock) != 0 {
		t.Fatalf("low stock = %+v", rep.LowStock)
	}
}

func TestReportCacheRoundTrip(t *testing.T) {
	repo := memory.NewSeeded()
	memCache := newMapCache()
	engine := NewEngine(repo, memCache, time.Minute)
	ctx := context.Background()

	now := time.Now().UTC()
	first, err := engine.SalesReport(ctx, testTenant, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if len(memCache.data) != 1 {
		t.Fatalf("expected one cached entry, got %d", len(memCache.data))
	}

	// A write between reads is invisible until invalidation.
	product := seedProduct(t, repo, "BUJ-010")
	if _, err := repo.CreateSale(ctx, domain.Sale{
		TenantID:       testTenant,
		UserID:         "user-test",
		CashRegisterID: "reg-test",
		PaymentMethod:  domain.PaymentCash,
		Total:          decimal.NewFromInt(4500),
		Subtotal:       decimal.NewFromInt(4500),
		Items: []domain.SaleItem{{
			ProductID: product.ID, Quantity: 1,
			UnitPrice: decimal.NewFromInt(4500), Subtotal: decimal.NewFromInt(4500),
		}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	cached, err := engine.SalesReport(ctx, testTenant, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("cached report: %v", err)
	}
	if cached.SalesCount != first.SalesCount {
		t.Fatalf("cache bypassed: %d != %d", cached.SalesCount, first.SalesCount)
	}

	engine.Invalidate(ctx, testTenant)
	if len(memCache.data) != 0 {
		t.Fatalf("cache not cleared: %d entries", len(memCache.data))
	}
}

type mapCache struct {
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	payload, ok := c.data[key]
	return payload, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	c.data[key] = payload
	return nil
}

func (c *mapCache) InvalidateTenant(_ context.Context, _ string) error {
	c.data = map[string][]byte{}
	return nil
}
