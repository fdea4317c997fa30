package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
	Tenant    Tenant    `json:"tenant"`
}

type RegisterTenantRequest struct {
	BusinessName  string `json:"businessName"`
	Slug          string `json:"slug"`
	AdminName     string `json:"adminName"`
	AdminEmail    string `json:"adminEmail"`
	AdminPassword string `json:"adminPassword"`
}

type CreateProductRequest struct {
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	Model       string          `json:"model"`
	Year        string          `json:"year"`
	CategoryID  string          `json:"categoryId"`
	CostPrice   decimal.Decimal `json:"costPrice"`
	SalePrice   decimal.Decimal `json:"salePrice"`
	Stock       int             `json:"stock"`
	MinStock    int             `json:"minStock"`
	Location    string          `json:"location"`
}

type UpdateProductRequest struct {
	Barcode     *string          `json:"barcode"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Brand       *string          `json:"brand"`
	Model       *string          `json:"model"`
	Year        *string          `json:"year"`
	CategoryID  *string          `json:"categoryId"`
	CostPrice   *decimal.Decimal `json:"costPrice"`
	SalePrice   *decimal.Decimal `json:"salePrice"`
	MinStock    *int             `json:"minStock"`
	Location    *string          `json:"location"`
	Active      *bool            `json:"active"`
}

type ProductFilter struct {
	Search   string
	LowStock bool
	All      bool
}

type OpenRegisterRequest struct {
	InitialAmount decimal.Decimal `json:"initialAmount"`
	Notes         string          `json:"notes"`
}

type CloseRegisterRequest struct {
	CashAmount     decimal.Decimal `json:"cashAmount"`
	CardAmount     decimal.Decimal `json:"cardAmount"`
	TransferAmount decimal.Decimal `json:"transferAmount"`
	Notes          string          `json:"notes"`
}

type CloseRegisterResponse struct {
	Register       CashRegister               `json:"register"`
	SalesByMethod  map[string]decimal.Decimal `json:"salesByMethod"`
	CashSales      decimal.Decimal            `json:"cashSales"`
	ExpectedCash   decimal.Decimal            `json:"expectedCash"`
	CashDifference decimal.Decimal            `json:"cashDifference"`
}

type RegisterSummary struct {
	Register      CashRegister               `json:"register"`
	SalesByMethod map[string]decimal.Decimal `json:"salesByMethod"`
	TotalSales    decimal.Decimal            `json:"totalSales"`
	SalesCount    int                        `json:"salesCount"`
	ExpectedCash  decimal.Decimal            `json:"expectedCash"`
	TotalExpenses decimal.Decimal            `json:"totalExpenses"`
	NetCash       decimal.Decimal            `json:"netCash"`
}

type SaleItemRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Discount  decimal.Decimal `json:"discount"`
}

type CreateSaleRequest struct {
	Items         []SaleItemRequest `json:"items"`
	CustomerID    string            `json:"customerId"`
	Discount      decimal.Decimal   `json:"discount"`
	Tax           decimal.Decimal   `json:"tax"`
	PaymentMethod string            `json:"paymentMethod"`
	Notes         string            `json:"notes"`
}

type PurchaseItemRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unitCost"`
}

type CreatePurchaseRequest struct {
	Items         []PurchaseItemRequest `json:"items"`
	SupplierID    string                `json:"supplierId"`
	Tax           decimal.Decimal       `json:"tax"`
	InvoiceNumber string                `json:"invoiceNumber"`
	Notes         string                `json:"notes"`
}

type OrderItemRequest struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type CreateOrderRequest struct {
	Type         string             `json:"type"`
	SupplierID   string             `json:"supplierId"`
	CustomerID   string             `json:"customerId"`
	Priority     string             `json:"priority"`
	ExpectedDate *time.Time         `json:"expectedDate"`
	Tax          decimal.Decimal    `json:"tax"`
	Notes        string             `json:"notes"`
	Items        []OrderItemRequest `json:"items"`
}

type UpdateOrderRequest struct {
	SupplierID   *string    `json:"supplierId"`
	Priority     *string    `json:"priority"`
	ExpectedDate *time.Time `json:"expectedDate"`
	Notes        *string    `json:"notes"`
}

type UpdateOrderItemRequest struct {
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
}

type CreateExpenseRequest struct {
	CategoryID    string          `json:"categoryId"`
	ExpenseDate   *time.Time      `json:"expenseDate"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"paymentMethod"`
	Reference     string          `json:"reference"`
	Notes         string          `json:"notes"`
}

type DaySummary struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type SalesReport struct {
	From            time.Time                  `json:"from"`
	To              time.Time                  `json:"to"`
	TotalSales      decimal.Decimal            `json:"totalSales"`
	TotalDiscount   decimal.Decimal            `json:"totalDiscount"`
	SalesCount      int                        `json:"salesCount"`
	ByPaymentMethod map[string]decimal.Decimal `json:"byPaymentMethod"`
	ByDay           []ReportBucket             `json:"byDay"`
	TopProducts     []TopProduct               `json:"topProducts"`
}

type ReportBucket struct {
	Label string          `json:"label"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type TopProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

type ExpensesReport struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	ExpensesCount int             `json:"expensesCount"`
	ByCategory    []ReportBucket  `json:"byCategory"`
	ByDay         []ReportBucket  `json:"byDay"`
}

type ProfitReport struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	CostOfSales    decimal.Decimal `json:"costOfSales"`
	GrossProfit    decimal.Decimal `json:"grossProfit"`
	TotalExpenses  decimal.Decimal `json:"totalExpenses"`
	TotalPurchases decimal.Decimal `json:"totalPurchases"`
	NetProfit      decimal.Decimal `json:"netProfit"`
	GrossMargin    decimal.Decimal `json:"grossMargin"`
	NetMargin      decimal.Decimal `json:"netMargin"`
}

type InventoryReport struct {
	ProductCount   int             `json:"productCount"`
	TotalStock     int             `json:"totalStock"`
	StockValueCost decimal.Decimal `json:"stockValueCost"`
	StockValueSale decimal.Decimal `json:"stockValueSale"`
	LowStock       []Product       `json:"lowStock"`
	OutOfStock     []Product       `json:"outOfStock"`
}
