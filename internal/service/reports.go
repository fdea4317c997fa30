package service

import (
	"context"
	"time"

	"motopos/backend/internal/domain"
)

func (s *Service) SalesReport(ctx context.Context, tenantID string, from time.Time, to time.Time) (*domain.SalesReport, error) {
	return s.reports.SalesReport(ctx, tenantID, from, to)
}

func (s *Service) ExpensesReport(ctx context.Context, tenantID string, from time.Time, to time.Time) (*domain.ExpensesReport, error) {
	return s.reports.ExpensesReport(ctx, tenantID, from, to)
}

func (s *Service) ProfitReport(ctx context.Context, tenantID string, from time.Time, to time.Time) (*domain.ProfitReport, error) {
	return s.reports.ProfitReport(ctx, tenantID, from, to)
}

func (s *Service) InventoryReport(ctx context.Context, tenantID string) (*domain.InventoryReport, error) {
	return s.reports.InventoryReport(ctx, tenantID)
}
