package report

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/cache"
	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
)

// Engine builds the reporting views over sales, purchases and expenses.
// Results are cached per tenant and period; write paths invalidate the
// tenant's keys, so the TTL only bounds staleness when invalidation is
// unavailable (noop cache).
type Engine struct {
	repo     store.Repository
	cache    cache.ReportCache
	cacheTTL time.Duration
}

func NewEngine(repo store.Repository, cacheStore cache.ReportCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Engine{
		repo:     repo,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

func (e *Engine) Invalidate(ctx context.Context, tenantID string) {
	_ = e.cache.InvalidateTenant(ctx, tenantID)
}

func cacheKey(tenantID string, kind string, from time.Time, to time.Time) string {
	return fmt.Sprintf("report:%s:%s:%d:%d", tenantID, kind, from.Unix(), to.Unix())
}

func getCached[T any](ctx context.Context, e *Engine, key string) (*T, bool) {
	payload, ok, err := e.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, false
	}
	return &out, true
}

func setCached[T any](ctx context.Context, e *Engine, key string, value T) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = e.cache.Set(ctx, key, payload, e.cacheTTL)
}

func (e *Engine) SalesReport(ctx context.Context, tenantID string, from time.Time, to time.Time) (*domain.SalesReport, error) {
	key := cacheKey(tenantID, "sales", from, to)
	if cached, ok := getCached[domain.SalesReport](ctx, e, key); ok {
		return cached, nil
	}

	sales, err := e.repo.ListSales(ctx, tenantID, from, to, 0)
	if err != nil {
		return nil, err
	}

	report := domain.SalesReport{
		From:            from,
		To:              to,
		ByPaymentMethod: map[string]decimal.Decimal{},
	}

	type productAgg struct {
		quantity int
		total    decimal.Decimal
	}
	byDay := map[string]*domain.ReportBucket{}
	byProduct := map[string]*productAgg{}

	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		report.TotalSales = report.TotalSales.Add(sale.Total)
		report.TotalDiscount = report.TotalDiscount.Add(sale.Discount)
		report.SalesCount++
		report.ByPaymentMethod[sale.PaymentMethod] = report.ByPaymentMethod[sale.PaymentMethod].Add(sale.Total)

		day := sale.CreatedAt.Format("2006-01-02")
		bucket, ok := byDay[day]
		if !ok {
			bucket = &domain.ReportBucket{Label: day}
			byDay[day] = bucket
		}
		bucket.Count++
		bucket.Total = bucket.Total.Add(sale.Total)

		for _, item := range sale.Items {
			agg, ok := byProduct[item.ProductID]
			if !ok {
				agg = &productAgg{}
				byProduct[item.ProductID] = agg
			}
			agg.quantity += item.Quantity
			agg.total = agg.total.Add(item.Subtotal)
		}
	}

	report.ByDay = sortedBuckets(byDay)

	productIDs := make([]string, 0, len(byProduct))
	for id := range byProduct {
		productIDs = append(productIDs, id)
	}
	products, err := e.repo.GetProductsByIDs(ctx, tenantID, productIDs)
	if err != nil {
		return nil, err
	}
	top := make([]domain.TopProduct, 0, len(byProduct))
	for id, agg := range byProduct {
		name := id
		if p, ok := products[id]; ok {
			name = p.Name
		}
		top = append(top, domain.TopProduct{ProductID: id, Name: name, Quantity: agg.quantity, Total: agg.total})
	}
	slices.SortFunc(top, func(a, b domain.TopProduct) int {
		if a.Quantity != b.Quantity {
			return b.Quantity - a.Quantity
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(top) > 10 {
		top = top[:10]
	}
	report.TopProducts = top

	setCached(ctx, e, key, report)
	return &report, nil
}

func (e *Engine) ExpensesReport(ctx context.Context, tenantID string, from time.Time, to time.Time) (*domain.ExpensesReport, error) {
	key := cacheKey(tenantID, "expenses", from, to)
	if cached, ok := getCached[domain.ExpensesReport](ctx, e, key); ok {
		return cached, nil
	}

	expenses, err := e.repo.ListExpenses(ctx, tenantID, from, to, 0)
	if err != nil {
		return nil, err
	}
	categories, err := e.repo.ListExpenseCategories(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	categoryNames := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	report := domain.ExpensesReport{From: from, To: to}
	byCategory := map[string]*domain.ReportBucket{}
	byDay := map[string]*domain.ReportBucket{}

	for _, expense := range expenses {
		report.TotalExpenses = report.TotalExpenses.Add(expense.Amount)
		report.ExpensesCount++

		label := "Sin categoría"
		if name, ok := categoryNames[expense.CategoryID]; ok && expense.CategoryID != "" {
			label = name
		}
		bucket, ok := byCategory[label]
		if !ok {
			bucket = &domain.ReportBucket{Label: label}
			byCategory[label] = bucket
		}
		bucket.Count++
		bucket.Total = bucket.Total.Add(expense.Amount)

		day := expense.ExpenseDate.Format("2006-01-02")
		dayBucket, ok := byDay[day]
		if !ok {
			dayBucket = &domain.ReportBucket{Label: day}
			byDay[day] = dayBucket
		}
		dayBucket.Count++
		dayBucket.Total = dayBucket.Total.Add(expense.Amount)
	}

	report.ByCategory = sortedBuckets(byCategory)
	report.ByDay = sortedBuckets(byDay)

	setCached(ctx, e, key, report)
	return &report, nil
}

func (e *Engine) ProfitReport(ctx context.Context, tenantID string, from time.Time, to time.Time) (*domain.ProfitReport, error) {
	key := cacheKey(tenantID, "profit", from, to)
	if cached, ok := getCached[domain.ProfitReport](ctx, e, key); ok {
		return cached, nil
	}

	sales, err := e.repo.ListSales(ctx, tenantID, from, to, 0)
	if err != nil {
		return nil, err
	}
	expenses, err := e.repo.ListExpenses(ctx, tenantID, from, to, 0)
	if err != nil {
		return nil, err
	}
	purchases, err := e.repo.ListPurchases(ctx, tenantID, from, to, 0)
	if err != nil {
		return nil, err
	}

	report := domain.ProfitReport{From: from, To: to}

	productIDs := make([]string, 0, 32)
	seen := map[string]bool{}
	for _, sale := range sales {
		for _, item := range sale.Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				productIDs = append(productIDs, item.ProductID)
			}
		}
	}
	products, err := e.repo.GetProductsByIDs(ctx, tenantID, productIDs)
	if err != nil {
		return nil, err
	}

	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		report.TotalRevenue = report.TotalRevenue.Add(sale.Total)
		for _, item := range sale.Items {
			if p, ok := products[item.ProductID]; ok {
				report.CostOfSales = report.CostOfSales.Add(p.CostPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
			}
		}
	}
	for _, expense := range expenses {
		report.TotalExpenses = report.TotalExpenses.Add(expense.Amount)
	}
	for _, purchase := range purchases {
		report.TotalPurchases = report.TotalPurchases.Add(purchase.Total)
	}

	report.GrossProfit = report.TotalRevenue.Sub(report.CostOfSales)
	report.NetProfit = report.GrossProfit.Sub(report.TotalExpenses)
	if report.TotalRevenue.IsPositive() {
		hundred := decimal.NewFromInt(100)
		report.GrossMargin = report.GrossProfit.Mul(hundred).Div(report.TotalRevenue).Round(2)
		report.NetMargin = report.NetProfit.Mul(hundred).Div(report.TotalRevenue).Round(2)
	}

	setCached(ctx, e, key, report)
	return &report, nil
}

func (e *Engine) InventoryReport(ctx context.Context, tenantID string) (*domain.InventoryReport, error) {
	products, err := e.repo.ListProducts(ctx, tenantID, domain.ProductFilter{})
	if err != nil {
		return nil, err
	}

	report := domain.InventoryReport{
		LowStock:   []domain.Product{},
		OutOfStock: []domain.Product{},
	}
	for _, p := range products {
		report.ProductCount++
		report.TotalStock += p.Stock
		qty := decimal.NewFromInt(int64(p.Stock))
		report.StockValueCost = report.StockValueCost.Add(p.CostPrice.Mul(qty))
		report.StockValueSale = report.StockValueSale.Add(p.SalePrice.Mul(qty))
		if p.Stock == 0 {
			report.OutOfStock = append(report.OutOfStock, p)
		} else if p.Stock <= p.MinStock {
			report.LowStock = append(report.LowStock, p)
		}
	}
	return &report, nil
}

func sortedBuckets(m map[string]*domain.ReportBucket) []domain.ReportBucket {
	buckets := make([]domain.ReportBucket, 0, len(m))
	for _, b := range m {
		buckets = append(buckets, *b)
	}
	slices.SortFunc(buckets, func(a, b domain.ReportBucket) int { return strings.Compare(a.Label, b.Label) })
	return buckets
}
