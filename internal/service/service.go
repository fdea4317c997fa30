package service

import (
	"context"
	"log"
	"strings"
	"time"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/report"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// StockError reports which products could not cover the requested quantity.
type StockError struct {
	Products []string
}

func (e *StockError) Error() string {
	return "Stock insuficiente para: " + strings.Join(e.Products, ", ")
}

func (e *StockError) Unwrap() error { return store.ErrInsufficientStock }

type Service struct {
	repo    store.Repository
	reports *report.Engine
}

func New(repo store.Repository, reports *report.Engine) *Service {
	return &Service{repo: repo, reports: reports}
}

// defaultExpenseCategories seeds every new tenant with the categories the
// dashboard expects to exist.
var defaultExpenseCategories = []string{"Alquiler", "Servicios", "Sueldos", "Impuestos", "Otros"}

func (s *Service) RegisterTenant(ctx context.Context, req domain.RegisterTenantRequest, passwordHash string) (*domain.Tenant, *domain.User, error) {
	if strings.TrimSpace(req.BusinessName) == "" || strings.TrimSpace(req.AdminEmail) == "" {
		return nil, nil, store.ErrInvalidTransaction
	}
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if slug == "" {
		slug = slugify(req.BusinessName)
	}

	tenant := domain.Tenant{
		Name: strings.TrimSpace(req.BusinessName),
		Slug: slug,
		Plan: "FREE",
	}
	admin := domain.User{
		Email:        strings.ToLower(strings.TrimSpace(req.AdminEmail)),
		Name:         strings.TrimSpace(req.AdminName),
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
	}
	categories := make([]domain.ExpenseCategory, 0, len(defaultExpenseCategories))
	for _, name := range defaultExpenseCategories {
		categories = append(categories, domain.ExpenseCategory{Name: name})
	}

	createdTenant, createdAdmin, err := s.repo.ProvisionTenant(ctx, tenant, admin, categories)
	if err != nil {
		return nil, nil, err
	}
	s.logAudit(ctx, createdTenant.ID, "tenant.register", "tenant", createdTenant.ID, createdTenant.Name)
	return createdTenant, createdAdmin, nil
}

func (s *Service) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	return s.repo.GetTenant(ctx, tenantID)
}

func (s *Service) CreateProduct(ctx context.Context, tenantID string, req domain.CreateProductRequest) (*domain.Product, error) {
	if strings.TrimSpace(req.SKU) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if req.CostPrice.IsNegative() || req.SalePrice.IsNegative() || req.Stock < 0 {
		return nil, store.ErrInvalidTransaction
	}

	product := domain.Product{
		TenantID:    tenantID,
		SKU:         strings.TrimSpace(req.SKU),
		Barcode:     strings.TrimSpace(req.Barcode),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Brand:       req.Brand,
		Model:       req.Model,
		Year:        req.Year,
		CategoryID:  req.CategoryID,
		CostPrice:   req.CostPrice,
		SalePrice:   req.SalePrice,
		Stock:       req.Stock,
		MinStock:    req.MinStock,
		Location:    req.Location,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "product.create", "product", created.ID, created.SKU)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, tenantID string, productID string, req domain.UpdateProductRequest) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}

	if req.Barcode != nil {
		product.Barcode = *req.Barcode
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, store.ErrInvalidTransaction
		}
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
	}
	if req.Model != nil {
		product.Model = *req.Model
	}
	if req.Year != nil {
		product.Year = *req.Year
	}
	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return nil, store.ErrInvalidTransaction
		}
		product.CostPrice = *req.CostPrice
	}
	if req.SalePrice != nil {
		if req.SalePrice.IsNegative() {
			return nil, store.ErrInvalidTransaction
		}
		product.SalePrice = *req.SalePrice
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return nil, store.ErrInvalidTransaction
		}
		product.MinStock = *req.MinStock
	}
	if req.Location != nil {
		product.Location = *req.Location
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	updated, err := s.repo.UpdateProduct(ctx, *product)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "product.update", "product", updated.ID, updated.SKU)
	return updated, nil
}

func (s *Service) GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, tenantID, productID)
}

func (s *Service) ListProducts(ctx context.Context, tenantID string, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, tenantID, filter)
}

func (s *Service) CreateCategory(ctx context.Context, tenantID string, name string) (*domain.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	return s.repo.CreateCategory(ctx, domain.Category{TenantID: tenantID, Name: strings.TrimSpace(name)})
}

func (s *Service) ListCategories(ctx context.Context, tenantID string) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx, tenantID)
}

func (s *Service) CreateSupplier(ctx context.Context, tenantID string, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	supplier.TenantID = tenantID
	supplier.ID = ""
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *Service) UpdateSupplier(ctx context.Context, tenantID string, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	supplier.TenantID = tenantID
	return s.repo.UpdateSupplier(ctx, supplier)
}

func (s *Service) ListSuppliers(ctx context.Context, tenantID string) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx, tenantID)
}

func (s *Service) CreateCustomer(ctx context.Context, tenantID string, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	customer.TenantID = tenantID
	customer.ID = ""
	return s.repo.CreateCustomer(ctx, customer)
}

func (s *Service) UpdateCustomer(ctx context.Context, tenantID string, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	customer.TenantID = tenantID
	return s.repo.UpdateCustomer(ctx, customer)
}

func (s *Service) GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, tenantID, customerID)
}

func (s *Service) ListCustomers(ctx context.Context, tenantID string, search string) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, tenantID, search)
}

func (s *Service) CreateExpense(ctx context.Context, tenantID string, req domain.CreateExpenseRequest) (*domain.Expense, error) {
	if strings.TrimSpace(req.Description) == "" || !req.Amount.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}
	if !validPaymentMethod(req.PaymentMethod) {
		return nil, store.ErrInvalidTransaction
	}

	actor, _ := ActorFromContext(ctx)
	expense := domain.Expense{
		TenantID:      tenantID,
		UserID:        actor.UserID,
		CategoryID:    req.CategoryID,
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
		PaymentMethod: req.PaymentMethod,
		Reference:     req.Reference,
		Notes:         req.Notes,
	}
	if req.ExpenseDate != nil {
		expense.ExpenseDate = *req.ExpenseDate
	}

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return nil, err
	}
	s.reports.Invalidate(ctx, tenantID)
	s.logAudit(ctx, tenantID, "expense.create", "expense", created.ID, created.Description)
	return created, nil
}

func (s *Service) ListExpenses(ctx context.Context, tenantID string, limit int) ([]domain.Expense, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListExpenses(ctx, tenantID, time.Time{}, time.Time{}, limit)
}

func (s *Service) TodayExpenses(ctx context.Context, tenantID string) (domain.DaySummary, error) {
	from, to := todayRange()
	expenses, err := s.repo.ListExpenses(ctx, tenantID, from, to, 0)
	if err != nil {
		return domain.DaySummary{}, err
	}
	summary := domain.DaySummary{}
	for _, e := range expenses {
		summary.Count++
		summary.Total = summary.Total.Add(e.Amount)
	}
	return summary, nil
}

func (s *Service) CreateExpenseCategory(ctx context.Context, tenantID string, name string) (*domain.ExpenseCategory, error) {
	if strings.TrimSpace(name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	return s.repo.CreateExpenseCategory(ctx, domain.ExpenseCategory{TenantID: tenantID, Name: strings.TrimSpace(name)})
}

func (s *Service) ListExpenseCategories(ctx context.Context, tenantID string) ([]domain.ExpenseCategory, error) {
	return s.repo.ListExpenseCategories(ctx, tenantID)
}

func (s *Service) ListAuditLogs(ctx context.Context, tenantID string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, tenantID, limit)
}

func (s *Service) logAudit(ctx context.Context, tenantID string, action string, entity string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{UserName: "Sistema", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:        xid.New("audit"),
		TenantID:  tenantID,
		Actor:     actor.UserName,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entity, entityID, err)
	}
}

func validPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer, domain.PaymentMixed:
		return true
	}
	return false
}

func todayRange() (time.Time, time.Time) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		}
		return -1
	}, slug)
	return strings.Trim(slug, "-")
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.UserName != "" {
		return actor.UserName
	}
	return "Sistema"
}
