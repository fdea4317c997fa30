package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/cache"
	"motopos/backend/internal/domain"
	"motopos/backend/internal/report"
	"motopos/backend/internal/store"
	"motopos/backend/internal/store/memory"
)

const testTenant = "tenant-demo"

func newTestService() *Service {
	repo := memory.NewSeeded()
	reports := report.NewEngine(repo, cache.NoopReportCache{}, time.Minute)
	return New(repo, reports)
}

func testActor(ctx context.Context) context.Context {
	return WithActor(ctx, domain.Actor{
		UserID:   "user-test",
		UserName: "Vendedor Test",
		TenantID: testTenant,
		Role:     domain.RoleAdmin,
	})
}

func findProduct(t *testing.T, svc *Service, ctx context.Context, sku string) domain.Product {
	t.Helper()
	products, err := svc.ListProducts(ctx, testTenant, domain.ProductFilter{Search: sku})
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

func openTestRegister(t *testing.T, svc *Service, ctx context.Context, initial string) *domain.CashRegister {
	t.Helper()
	reg, err := svc.OpenRegister(ctx, testTenant, domain.OpenRegisterRequest{
		InitialAmount: decimal.RequireFromString(initial),
	})
	if err != nil {
		t.Fatalf("open register: %v", err)
	}
	return reg
}

func TestOpenRegisterRejectsSecondOpen(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())

	openTestRegister(t, svc, ctx, "10000")

	_, err := svc.OpenRegister(ctx, testTenant, domain.OpenRegisterRequest{
		InitialAmount: decimal.NewFromInt(5000),
	})
	if !errors.Is(err, store.ErrRegisterOpen) {
		t.Fatalf("expected ErrRegisterOpen, got %v", err)
	}
}

func TestCreateSaleRequiresOpenRegister(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	product := findProduct(t, svc, ctx, "BUJ-010")

	_, err := svc.CreateSale(ctx, testTenant, domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, UnitPrice: product.SalePrice},
		},
	})
	if !errors.Is(err, store.ErrNoOpenRegister) {
		t.Fatalf("expected ErrNoOpenRegister, got %v", err)
	}
}

func TestCreateSaleDecrementsStockAndNumbersSales(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	openTestRegister(t, svc, ctx, "10000")
	product := findProduct(t, svc, ctx, "BUJ-010")

	sale, err := svc.CreateSale(ctx, testTenant, domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 3, UnitPrice: product.SalePrice},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.SaleNumber != "V-000001" {
		t.Fatalf("sale number = %q, want V-000001", sale.SaleNumber)
	}
	if sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("sale status = %q", sale.Status)
	}
	wantTotal := product.SalePrice.Mul(decimal.NewFromInt(3))
	if !sale.Total.Equal(wantTotal) {
		t.Fatalf("sale total = %s, want %s", sale.Total, wantTotal)
	}

	after, err := svc.GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != product.Stock-3 {
		t.Fatalf("stock = %d, want %d", after.Stock, product.Stock-3)
	}

	second, err := svc.CreateSale(ctx, testTenant, domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCard,
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, UnitPrice: product.SalePrice},
		},
	})
	if err != nil {
		t.Fatalf("create second sale: %v", err)
	}
	if second.SaleNumber != "V-000002" {
		t.Fatalf("second sale number = %q, want V-000002", second.SaleNumber)
	}
}

func TestCreateSaleRejectsInsufficientStock(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	openTestRegister(t, svc, ctx, "10000")
	product := findProduct(t, svc, ctx, "CAD-428")

	_, err := svc.CreateSale(ctx, testTenant, domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: product.Stock + 1, UnitPrice: product.SalePrice},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	var stockErr *StockError
	if !errors.As(err, &stockErr) || len(stockErr.Products) != 1 {
		t.Fatalf("expected StockError naming one product, got %v", err)
	}

	after, err := svc.GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != product.Stock {
		t.Fatalf("stock changed on rejected sale: %d != %d", after.Stock, product.Stock)
	}
}

func TestCloseRegisterComputesTotals(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	reg := openTestRegister(t, svc, ctx, "100000")

	spark := findProduct(t, svc, ctx, "BUJ-010")
	oil := findProduct(t, svc, ctx, "ACE-10W40")

	// 50000 cash + 30000 card in sales.
	if _, err := svc.CreateSale(ctx, testTenant, domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItemRequest{
			{ProductID: spark.ID, Quantity: 10, UnitPrice: decimal.NewFromInt(5000)},
		},
	}); err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	if _, err := svc.CreateSale(ctx, testTenant, domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCard,
		Items: []domain.SaleItemRequest{
			{ProductID: oil.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(10000)},
		},
	}); err != nil {
		t.Fatalf("card sale: %v", err)
	}

	res, err := svc.CloseRegister(ctx, testTenant, reg.ID, domain.CloseRegisterRequest{
		CashAmount: decimal.NewFromInt(150000),
		CardAmount: decimal.NewFromInt(30000),
	})
	if err != nil {
		t.Fatalf("close register: %v", err)
	}

	if !res.CashSales.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("cash sales = %s, want 50000", res.CashSales)
	}
	if !res.ExpectedCash.Equal(decimal.NewFromInt(150000)) {
		t.Fatalf("expected cash = %s, want 150000", res.ExpectedCash)
	}
	if !res.CashDifference.IsZero() {
		t.Fatalf("cash difference = %s, want 0", res.CashDifference)
	}
	if !res.Register.ExpectedAmount.Equal(decimal.NewFromInt(180000)) {
		t.Fatalf("expected amount = %s, want 180000", res.Register.ExpectedAmount)
	}
	if !res.Register.Difference.IsZero() {
		t.Fatalf("difference = %s, want 0", res.Register.Difference)
	}
	if res.Register.Status != domain.RegisterStatusClosed {
		t.Fatalf("register status = %q", res.Register.Status)
	}

	_, err = svc.CloseRegister(ctx, testTenant, reg.ID, domain.CloseRegisterRequest{})
	if !errors.Is(err, store.ErrRegisterClosed) {
		t.Fatalf("expected ErrRegisterClosed on second close, got %v", err)
	}
}

func TestRegisterSummarySubtractsExpenses(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	openTestRegister(t, svc, ctx, "20000")

	product := findProduct(t, svc, ctx, "FIL-001")
	if _, err := svc.CreateSale(ctx, testTenant, domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(6000)},
		},
	}); err != nil {
		t.Fatalf("sale: %v", err)
	}
	if _, err := svc.CreateExpense(ctx, testTenant, domain.CreateExpenseRequest{
		Amount:        decimal.NewFromInt(5000),
		Description:   "Flete repuestos",
		PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("expense: %v", err)
	}

	summary, err := svc.RegisterSummary(ctx, testTenant, "")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.ExpectedCash.Equal(decimal.NewFromInt(32000)) {
		t.Fatalf("expected cash = %s, want 32000", summary.ExpectedCash)
	}
	if !summary.NetCash.Equal(decimal.NewFromInt(27000)) {
		t.Fatalf("net cash = %s, want 27000", summary.NetCash)
	}
	if summary.SalesCount != 1 {
		t.Fatalf("sales count = %d, want 1", summary.SalesCount)
	}
}

func TestRegisterSummaryByIDWorksAfterClose(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	reg := openTestRegister(t, svc, ctx, "20000")

	product := findProduct(t, svc, ctx, "FIL-001")
	if _, err := svc.CreateSale(ctx, testTenant, domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItemRequest{
			{ProductID: product.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(6000)},
		},
	}); err != nil {
		t.Fatalf("sale: %v", err)
	}
	if _, err := svc.CloseRegister(ctx, testTenant, reg.ID, domain.CloseRegisterRequest{
		CashAmount: decimal.NewFromInt(26000),
	}); err != nil {
		t.Fatalf("close register: %v", err)
	}

	// No open register, so the implicit lookup fails while the explicit
	// one still resolves the closed session.
	if _, err := svc.RegisterSummary(ctx, testTenant, ""); !errors.Is(err, store.ErrNoOpenRegister) {
		t.Fatalf("expected ErrNoOpenRegister, got %v", err)
	}
	summary, err := svc.RegisterSummary(ctx, testTenant, reg.ID)
	if err != nil {
		t.Fatalf("summary by id: %v", err)
	}
	if summary.Register.Status != domain.RegisterStatusClosed {
		t.Fatalf("register status = %q", summary.Register.Status)
	}
	if !summary.ExpectedCash.Equal(decimal.NewFromInt(26000)) {
		t.Fatalf("expected cash = %s, want 26000", summary.ExpectedCash)
	}
	if summary.SalesCount != 1 {
		t.Fatalf("sales count = %d, want 1", summary.SalesCount)
	}
}

func TestCreatePurchaseIncrementsStockAndUpdatesCost(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	product := findProduct(t, svc, ctx, "PAS-205")

	newCost := decimal.NewFromInt(5800)
	purchase, err := svc.CreatePurchase(ctx, testTenant, domain.CreatePurchaseRequest{
		Items: []domain.PurchaseItemRequest{
			{ProductID: product.ID, Quantity: 10, UnitCost: newCost},
		},
		Tax: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if purchase.PurchaseNumber != "C-000001" {
		t.Fatalf("purchase number = %q, want C-000001", purchase.PurchaseNumber)
	}
	wantTotal := newCost.Mul(decimal.NewFromInt(10)).Add(decimal.NewFromInt(1000))
	if !purchase.Total.Equal(wantTotal) {
		t.Fatalf("purchase total = %s, want %s", purchase.Total, wantTotal)
	}

	after, err := svc.GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != product.Stock+10 {
		t.Fatalf("stock = %d, want %d", after.Stock, product.Stock+10)
	}
	if !after.CostPrice.Equal(newCost) {
		t.Fatalf("cost price = %s, want %s", after.CostPrice, newCost)
	}
}

func TestTenantIsolation(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	product := findProduct(t, svc, ctx, "BUJ-010")

	if _, err := svc.GetProduct(ctx, "tenant-otro", product.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}

	products, err := svc.ListProducts(ctx, "tenant-otro", domain.ProductFilter{})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected no products for foreign tenant, got %d", len(products))
	}
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())

	_, err := svc.CreateProduct(ctx, testTenant, domain.CreateProductRequest{
		SKU:       "buj-010",
		Name:      "Bujía duplicada",
		SalePrice: decimal.NewFromInt(4500),
	})
	if !errors.Is(err, store.ErrDuplicateSKU) {
		t.Fatalf("expected ErrDuplicateSKU, got %v", err)
	}
}
