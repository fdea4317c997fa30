package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Roles disponibles para los usuarios de un comercio.
const (
	RoleAdmin  = "ADMIN"
	RoleSeller = "SELLER"
)

const (
	RegisterStatusOpen   = "OPEN"
	RegisterStatusClosed = "CLOSED"
)

const (
	PaymentCash     = "CASH"
	PaymentCard     = "CARD"
	PaymentTransfer = "TRANSFER"
	PaymentMixed    = "MIXED"
)

const (
	SaleStatusCompleted = "COMPLETED"
	SaleStatusCancelled = "CANCELLED"
)

const (
	OrderTypeRestock  = "RESTOCK"
	OrderTypeCustomer = "CUSTOMER"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusOrdered   = "ORDERED"
	OrderStatusPartial   = "PARTIAL"
	OrderStatusReceived  = "RECEIVED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

const (
	HistoryCreated          = "CREATED"
	HistoryStatusChanged    = "STATUS_CHANGED"
	HistoryEdited           = "EDITED"
	HistoryItemAdded        = "ITEM_ADDED"
	HistoryItemRemoved      = "ITEM_REMOVED"
	HistoryItemUpdated      = "ITEM_UPDATED"
	HistoryInventoryUpdated = "INVENTORY_UPDATED"
	HistoryNoteAdded        = "NOTE_ADDED"
)

type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Plan      string    `json:"plan"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Category struct {
	ID       string `json:"id"`
	TenantID string `json:"-"`
	Name     string `json:"name"`
}

type Product struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"-"`
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Brand       string          `json:"brand,omitempty"`
	Model       string          `json:"model,omitempty"`
	Year        string          `json:"year,omitempty"`
	CategoryID  string          `json:"categoryId,omitempty"`
	CostPrice   decimal.Decimal `json:"costPrice"`
	SalePrice   decimal.Decimal `json:"salePrice"`
	Stock       int             `json:"stock"`
	MinStock    int             `json:"minStock"`
	Location    string          `json:"location,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type CashRegister struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"-"`
	UserID         string          `json:"userId"`
	OpeningDate    time.Time       `json:"openingDate"`
	ClosingDate    *time.Time      `json:"closingDate,omitempty"`
	InitialAmount  decimal.Decimal `json:"initialAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
	CashAmount     decimal.Decimal `json:"cashAmount"`
	CardAmount     decimal.Decimal `json:"cardAmount"`
	TransferAmount decimal.Decimal `json:"transferAmount"`
	ExpectedAmount decimal.Decimal `json:"expectedAmount"`
	Difference     decimal.Decimal `json:"difference"`
	Status         string          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
}

type SaleItem struct {
	ID        string          `json:"id"`
	SaleID    string          `json:"-"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Discount  decimal.Decimal `json:"discount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Sale struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"-"`
	SaleNumber     string          `json:"saleNumber"`
	UserID         string          `json:"userId"`
	CustomerID     string          `json:"customerId,omitempty"`
	CashRegisterID string          `json:"cashRegisterId"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"paymentMethod"`
	Status         string          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	Items          []SaleItem      `json:"items"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type PurchaseItem struct {
	ID         string          `json:"id"`
	PurchaseID string          `json:"-"`
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type Purchase struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"-"`
	PurchaseNumber string          `json:"purchaseNumber"`
	SupplierID     string          `json:"supplierId,omitempty"`
	UserID         string          `json:"userId"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	Status         string          `json:"status"`
	InvoiceNumber  string          `json:"invoiceNumber,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Items          []PurchaseItem  `json:"items"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Supplier struct {
	ID       string `json:"id"`
	TenantID string `json:"-"`
	Name     string `json:"name"`
	Contact  string `json:"contact,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address,omitempty"`
	Active   bool   `json:"active"`
}

type Customer struct {
	ID       string `json:"id"`
	TenantID string `json:"-"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	TaxID    string `json:"taxId,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Active   bool   `json:"active"`
}

type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"-"`
	ProductID   string          `json:"productId,omitempty"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Received    bool            `json:"received"`
	ReceivedQty int             `json:"receivedQty"`
}

type Order struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"-"`
	OrderNumber  string          `json:"orderNumber"`
	Type         string          `json:"type"`
	SupplierID   string          `json:"supplierId,omitempty"`
	CustomerID   string          `json:"customerId,omitempty"`
	Status       string          `json:"status"`
	Priority     string          `json:"priority"`
	ExpectedDate *time.Time      `json:"expectedDate,omitempty"`
	ReceivedDate *time.Time      `json:"receivedDate,omitempty"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	Notes        string          `json:"notes,omitempty"`
	CreatedByID  string          `json:"createdById,omitempty"`
	Items        []OrderItem     `json:"items"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type OrderHistory struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	OldValue    string    `json:"oldValue,omitempty"`
	NewValue    string    `json:"newValue,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ExpenseCategory struct {
	ID       string `json:"id"`
	TenantID string `json:"-"`
	Name     string `json:"name"`
}

type Expense struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"-"`
	UserID        string          `json:"userId"`
	CategoryID    string          `json:"categoryId,omitempty"`
	ExpenseDate   time.Time       `json:"expenseDate"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"paymentMethod"`
	Reference     string          `json:"reference,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type AuditLog struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"-"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entityId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Actor identifies the authenticated user behind a request.
type Actor struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	TenantID string `json:"tenantId"`
	Role     string `json:"role"`
}
