package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
)

func (s *Service) CreateSale(ctx context.Context, tenantID string, req domain.CreateSaleRequest) (*domain.Sale, error) {
	if len(req.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if !validPaymentMethod(req.PaymentMethod) {
		return nil, store.ErrInvalidTransaction
	}
	if req.Discount.IsNegative() || req.Tax.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	register, err := s.repo.GetOpenRegister(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNoOpenRegister
		}
		return nil, err
	}

	productIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.UnitPrice.IsNegative() || item.Discount.IsNegative() {
			return nil, store.ErrInvalidTransaction
		}
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, tenantID, productIDs)
	if err != nil {
		return nil, err
	}

	short := make([]string, 0, 2)
	for _, item := range req.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if product.Stock < item.Quantity {
			short = append(short, product.Name)
		}
	}
	if len(short) > 0 {
		return nil, &StockError{Products: short}
	}

	subtotal := decimal.Zero
	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, item := range req.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.Discount)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, domain.SaleItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			Subtotal:  lineTotal,
		})
	}
	total := subtotal.Sub(req.Discount).Add(req.Tax)
	if total.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	actor, _ := ActorFromContext(ctx)
	sale := domain.Sale{
		TenantID:       tenantID,
		UserID:         actor.UserID,
		CustomerID:     req.CustomerID,
		CashRegisterID: register.ID,
		Subtotal:       subtotal,
		Discount:       req.Discount,
		Tax:            req.Tax,
		Total:          total,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
		Items:          items,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return nil, err
	}
	s.reports.Invalidate(ctx, tenantID)
	s.logAudit(ctx, tenantID, "sale.create", "sale", created.ID, created.SaleNumber)
	return created, nil
}

func (s *Service) GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, tenantID, saleID)
}

func (s *Service) ListSales(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListSales(ctx, tenantID, from, to, limit)
}

func (s *Service) TodaySales(ctx context.Context, tenantID string) (domain.DaySummary, error) {
	from, to := todayRange()
	sales, err := s.repo.ListSales(ctx, tenantID, from, to, 0)
	if err != nil {
		return domain.DaySummary{}, err
	}
	summary := domain.DaySummary{}
	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		summary.Count++
		summary.Total = summary.Total.Add(sale.Total)
	}
	return summary, nil
}

func (s *Service) CreatePurchase(ctx context.Context, tenantID string, req domain.CreatePurchaseRequest) (*domain.Purchase, error) {
	if len(req.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if req.Tax.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	productIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.UnitCost.IsNegative() {
			return nil, store.ErrInvalidTransaction
		}
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, tenantID, productIDs)
	if err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if _, ok := products[item.ProductID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	subtotal := decimal.Zero
	items := make([]domain.PurchaseItem, 0, len(req.Items))
	for _, item := range req.Items {
		lineTotal := item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, domain.PurchaseItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			Subtotal:  lineTotal,
		})
	}

	actor, _ := ActorFromContext(ctx)
	purchase := domain.Purchase{
		TenantID:      tenantID,
		SupplierID:    req.SupplierID,
		UserID:        actor.UserID,
		Subtotal:      subtotal,
		Tax:           req.Tax,
		Total:         subtotal.Add(req.Tax),
		InvoiceNumber: req.InvoiceNumber,
		Notes:         req.Notes,
		Items:         items,
	}

	created, err := s.repo.CreatePurchase(ctx, purchase)
	if err != nil {
		return nil, err
	}
	s.reports.Invalidate(ctx, tenantID)
	s.logAudit(ctx, tenantID, "purchase.create", "purchase", created.ID, created.PurchaseNumber)
	return created, nil
}

func (s *Service) GetPurchase(ctx context.Context, tenantID string, purchaseID string) (*domain.Purchase, error) {
	return s.repo.GetPurchase(ctx, tenantID, purchaseID)
}

func (s *Service) ListPurchases(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Purchase, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListPurchases(ctx, tenantID, from, to, limit)
}

func (s *Service) TodayPurchases(ctx context.Context, tenantID string) (domain.DaySummary, error) {
	from, to := todayRange()
	purchases, err := s.repo.ListPurchases(ctx, tenantID, from, to, 0)
	if err != nil {
		return domain.DaySummary{}, err
	}
	summary := domain.DaySummary{}
	for _, p := range purchases {
		summary.Count++
		summary.Total = summary.Total.Add(p.Total)
	}
	return summary, nil
}
