package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrRegisterOpen       = errors.New("register already open")
	ErrRegisterClosed     = errors.New("register already closed")
	ErrDuplicateSKU       = errors.New("duplicate sku")
	ErrNoOpenRegister     = errors.New("no open register")
)

// Repository is the persistence boundary. Every method operates inside a
// single tenant: callers pass the tenant id explicitly (or embedded in the
// entity), and lookups outside the tenant report ErrNotFound.
type Repository interface {
	ProvisionTenant(ctx context.Context, tenant domain.Tenant, admin domain.User, categories []domain.ExpenseCategory) (*domain.Tenant, *domain.User, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUser(ctx context.Context, tenantID string, userID string) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	ListUsers(ctx context.Context, tenantID string) ([]domain.User, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, tenantID string, ids []string) (map[string]domain.Product, error)
	ListProducts(ctx context.Context, tenantID string, filter domain.ProductFilter) ([]domain.Product, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context, tenantID string) ([]domain.Category, error)

	OpenRegister(ctx context.Context, register domain.CashRegister) (*domain.CashRegister, error)
	GetOpenRegister(ctx context.Context, tenantID string) (*domain.CashRegister, error)
	GetRegister(ctx context.Context, tenantID string, registerID string) (*domain.CashRegister, error)
	CloseRegister(ctx context.Context, register domain.CashRegister) (*domain.CashRegister, error)
	ListClosedRegisters(ctx context.Context, tenantID string, limit int) ([]domain.CashRegister, error)
	SalesTotalsByMethod(ctx context.Context, tenantID string, registerID string) (map[string]decimal.Decimal, int, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchase(ctx context.Context, tenantID string, purchaseID string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Purchase, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context, tenantID string) ([]domain.Supplier, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, tenantID string, search string) ([]domain.Customer, error)

	CreateOrder(ctx context.Context, order domain.Order, entry domain.OrderHistory) (*domain.Order, error)
	GetOrder(ctx context.Context, tenantID string, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, tenantID string, status string, orderType string, limit int) ([]domain.Order, error)
	SetOrderStatus(ctx context.Context, tenantID string, orderID string, fromStatus string, toStatus string, entries []domain.OrderHistory) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order, entry domain.OrderHistory) (*domain.Order, error)
	ReplaceOrderItems(ctx context.Context, order domain.Order, entry domain.OrderHistory) (*domain.Order, error)
	ListOrderHistory(ctx context.Context, tenantID string, orderID string) ([]domain.OrderHistory, error)
	ListPendingRestockProductIDs(ctx context.Context, tenantID string) (map[string]bool, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Expense, error)
	CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error)
	ListExpenseCategories(ctx context.Context, tenantID string) ([]domain.ExpenseCategory, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, tenantID string, limit int) ([]domain.AuditLog, error)
}
