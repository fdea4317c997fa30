package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
)

func (s *Service) OpenRegister(ctx context.Context, tenantID string, req domain.OpenRegisterRequest) (*domain.CashRegister, error) {
	if req.InitialAmount.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	actor, _ := ActorFromContext(ctx)
	register := domain.CashRegister{
		TenantID:      tenantID,
		UserID:        actor.UserID,
		InitialAmount: req.InitialAmount,
		Notes:         req.Notes,
	}
	created, err := s.repo.OpenRegister(ctx, register)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "register.open", "cash_register", created.ID, "")
	return created, nil
}

func (s *Service) CurrentRegister(ctx context.Context, tenantID string) (*domain.CashRegister, error) {
	return s.repo.GetOpenRegister(ctx, tenantID)
}

// CloseRegister squares the drawer against recorded sales. The counted cash
// is compared against initial + CASH/MIXED sales, while the persisted
// difference compares the whole count (cash+card+transfer) against
// initial + total sales.
func (s *Service) CloseRegister(ctx context.Context, tenantID string, registerID string, req domain.CloseRegisterRequest) (*domain.CloseRegisterResponse, error) {
	register, err := s.repo.GetRegister(ctx, tenantID, registerID)
	if err != nil {
		return nil, err
	}
	if register.Status != domain.RegisterStatusOpen {
		return nil, store.ErrRegisterClosed
	}
	if req.CashAmount.IsNegative() || req.CardAmount.IsNegative() || req.TransferAmount.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	byMethod, _, err := s.repo.SalesTotalsByMethod(ctx, tenantID, registerID)
	if err != nil {
		return nil, err
	}

	cashSales := byMethod[domain.PaymentCash].Add(byMethod[domain.PaymentMixed])
	totalSales := decimal.Zero
	for _, total := range byMethod {
		totalSales = totalSales.Add(total)
	}

	expectedCash := register.InitialAmount.Add(cashSales)
	cashDifference := req.CashAmount.Sub(expectedCash)

	finalAmount := req.CashAmount.Add(req.CardAmount).Add(req.TransferAmount)
	expectedAmount := register.InitialAmount.Add(totalSales)

	now := time.Now().UTC()
	register.CashAmount = req.CashAmount
	register.CardAmount = req.CardAmount
	register.TransferAmount = req.TransferAmount
	register.FinalAmount = finalAmount
	register.ExpectedAmount = expectedAmount
	register.Difference = finalAmount.Sub(expectedAmount)
	register.ClosingDate = &now
	if req.Notes != "" {
		register.Notes = req.Notes
	}

	closed, err := s.repo.CloseRegister(ctx, *register)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "register.close", "cash_register", closed.ID, closed.Difference.String())

	return &domain.CloseRegisterResponse{
		Register:       *closed,
		SalesByMethod:  byMethod,
		CashSales:      cashSales,
		ExpectedCash:   expectedCash,
		CashDifference: cashDifference,
	}, nil
}

// RegisterSummary reports the live totals of the open register, including
// expenses recorded during the session.
// RegisterSummary works on any register; with an empty registerID it falls
// back to the tenant's currently open one.
func (s *Service) RegisterSummary(ctx context.Context, tenantID string, registerID string) (*domain.RegisterSummary, error) {
	var register *domain.CashRegister
	var err error
	if registerID == "" {
		register, err = s.repo.GetOpenRegister(ctx, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, store.ErrNoOpenRegister
			}
			return nil, err
		}
	} else {
		register, err = s.repo.GetRegister(ctx, tenantID, registerID)
		if err != nil {
			return nil, err
		}
	}

	byMethod, count, err := s.repo.SalesTotalsByMethod(ctx, tenantID, register.ID)
	if err != nil {
		return nil, err
	}

	totalSales := decimal.Zero
	for _, total := range byMethod {
		totalSales = totalSales.Add(total)
	}
	expectedCash := register.InitialAmount.
		Add(byMethod[domain.PaymentCash]).
		Add(byMethod[domain.PaymentMixed])

	until := time.Now().UTC()
	if register.ClosingDate != nil {
		until = *register.ClosingDate
	}
	expenses, err := s.repo.ListExpenses(ctx, tenantID, register.OpeningDate, until, 0)
	if err != nil {
		return nil, err
	}
	totalExpenses := decimal.Zero
	for _, e := range expenses {
		totalExpenses = totalExpenses.Add(e.Amount)
	}

	return &domain.RegisterSummary{
		Register:      *register,
		SalesByMethod: byMethod,
		TotalSales:    totalSales,
		SalesCount:    count,
		ExpectedCash:  expectedCash,
		TotalExpenses: totalExpenses,
		NetCash:       expectedCash.Sub(totalExpenses),
	}, nil
}

func (s *Service) RegisterHistory(ctx context.Context, tenantID string, limit int) ([]domain.CashRegister, error) {
	if limit <= 0 {
		limit = 30
	}
	return s.repo.ListClosedRegisters(ctx, tenantID, limit)
}
