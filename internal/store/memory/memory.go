package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
)

type Store struct {
	mu                sync.RWMutex
	tenantsByID       map[string]domain.Tenant
	usersByID         map[string]domain.User
	productsByID      map[string]domain.Product
	categoriesByID    map[string]domain.Category
	registersByID     map[string]domain.CashRegister
	openRegisterBy    map[string]string
	salesByID         map[string]domain.Sale
	purchasesByID     map[string]domain.Purchase
	suppliersByID     map[string]domain.Supplier
	customersByID     map[string]domain.Customer
	ordersByID        map[string]domain.Order
	orderHistory      map[string][]domain.OrderHistory
	expensesByID      map[string]domain.Expense
	expenseCategories map[string]domain.ExpenseCategory
	auditLogs         []domain.AuditLog
	saleSeq           map[string]int
	purchaseSeq       map[string]int
	orderSeq          map[string]int
}

func New() *Store {
	return &Store{
		tenantsByID:       map[string]domain.Tenant{},
		usersByID:         map[string]domain.User{},
		productsByID:      map[string]domain.Product{},
		categoriesByID:    map[string]domain.Category{},
		registersByID:     map[string]domain.CashRegister{},
		openRegisterBy:    map[string]string{},
		salesByID:         map[string]domain.Sale{},
		purchasesByID:     map[string]domain.Purchase{},
		suppliersByID:     map[string]domain.Supplier{},
		customersByID:     map[string]domain.Customer{},
		ordersByID:        map[string]domain.Order{},
		orderHistory:      map[string][]domain.OrderHistory{},
		expensesByID:      map[string]domain.Expense{},
		expenseCategories: map[string]domain.ExpenseCategory{},
		saleSeq:           map[string]int{},
		purchaseSeq:       map[string]int{},
		orderSeq:          map[string]int{},
	}
}

// NewSeeded returns a store preloaded with a demo tenant, an admin user and a
// small motorcycle-parts catalog so the server is usable without Postgres.
// The admin password comes from SEED_ADMIN_PASSWORD (dev default otherwise).
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	tenant := domain.Tenant{
		ID:        "tenant-demo",
		Name:      "Repuestos Demo",
		Slug:      "demo",
		Plan:      "FREE",
		Active:    true,
		CreatedAt: now,
	}
	s.tenantsByID[tenant.ID] = tenant

	password := envOr("SEED_ADMIN_PASSWORD", "admin123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD to override.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[memory-store] seed user skipped: %v", err)
	} else {
		admin := domain.User{
			ID:           "user-demo-admin",
			TenantID:     tenant.ID,
			Email:        "admin@demo.local",
			Name:         "Admin Demo",
			PasswordHash: string(hash),
			Role:         domain.RoleAdmin,
			Active:       true,
			CreatedAt:    now,
		}
		s.usersByID[admin.ID] = admin
	}

	for _, c := range []string{"Alquiler", "Servicios", "Sueldos", "Otros"} {
		cat := domain.ExpenseCategory{ID: xid.New("expcat"), TenantID: tenant.ID, Name: c}
		s.expenseCategories[cat.ID] = cat
	}

	seedProducts := []domain.Product{
		{SKU: "FIL-001", Name: "Filtro de aceite HF303", Brand: "Hiflofiltro", CostPrice: dec("3500"), SalePrice: dec("6000"), Stock: 40, MinStock: 10},
		{SKU: "BUJ-010", Name: "Bujía NGK CR7E", Brand: "NGK", CostPrice: dec("2800"), SalePrice: dec("4500"), Stock: 60, MinStock: 15},
		{SKU: "CAD-428", Name: "Cadena 428H x 118", Brand: "DID", CostPrice: dec("18000"), SalePrice: dec("28000"), Stock: 12, MinStock: 4},
		{SKU: "PAS-205", Name: "Pastillas de freno delanteras", Brand: "Frasle", CostPrice: dec("5200"), SalePrice: dec("9000"), Stock: 25, MinStock: 8},
		{SKU: "ACE-10W40", Name: "Aceite 10W40 semisintético 1L", Brand: "Motul", CostPrice: dec("6500"), SalePrice: dec("11000"), Stock: 80, MinStock: 20},
	}
	for _, p := range seedProducts {
		p.ID = xid.New("prod")
		p.TenantID = tenant.ID
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.productsByID[p.ID] = p
	}

	return s
}

func (s *Store) ProvisionTenant(ctx context.Context, tenant domain.Tenant, admin domain.User, categories []domain.ExpenseCategory) (*domain.Tenant, *domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tenantsByID {
		if t.Slug == tenant.Slug {
			return nil, nil, fmt.Errorf("%w: slug taken", store.ErrInvalidTransaction)
		}
	}
	for _, u := range s.usersByID {
		if strings.EqualFold(u.Email, admin.Email) {
			return nil, nil, fmt.Errorf("%w: email taken", store.ErrInvalidTransaction)
		}
	}

	if tenant.ID == "" {
		tenant.ID = xid.New("tenant")
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	tenant.Active = true
	s.tenantsByID[tenant.ID] = tenant

	if admin.ID == "" {
		admin.ID = xid.New("user")
	}
	admin.TenantID = tenant.ID
	admin.Active = true
	admin.CreatedAt = tenant.CreatedAt
	s.usersByID[admin.ID] = admin

	for _, c := range categories {
		if c.ID == "" {
			c.ID = xid.New("expcat")
		}
		c.TenantID = tenant.ID
		s.expenseCategories[c.ID] = c
	}

	createdTenant := tenant
	createdAdmin := admin
	return &createdTenant, &createdAdmin, nil
}

func (s *Store) GetTenant(_ context.Context, tenantID string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenantsByID[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := tenant
	return &found, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.usersByID {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUser(_ context.Context, tenantID string, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByID[userID]
	if !ok || u.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := u
	return &found, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.usersByID {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, fmt.Errorf("%w: email taken", store.ErrInvalidTransaction)
		}
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByID[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) ListUsers(_ context.Context, tenantID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, 8)
	for _, u := range s.usersByID {
		if u.TenantID == tenantID {
			users = append(users, u)
		}
	}
	slices.SortFunc(users, func(a, b domain.User) int { return cmpString(a.Email, b.Email) })
	return users, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.productsByID {
		if p.TenantID == product.TenantID && strings.EqualFold(p.SKU, product.SKU) {
			return nil, store.ErrDuplicateSKU
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	product.Active = true
	if product.MinStock <= 0 {
		product.MinStock = 5
	}
	s.productsByID[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.productsByID[product.ID]
	if !ok || existing.TenantID != product.TenantID {
		return nil, store.ErrNotFound
	}
	product.SKU = existing.SKU
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProduct(_ context.Context, tenantID string, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[productID]
	if !ok || p.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, tenantID string, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.productsByID[id]; ok && p.TenantID == tenantID {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) ListProducts(_ context.Context, tenantID string, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	products := make([]domain.Product, 0, 64)
	for _, p := range s.productsByID {
		if p.TenantID != tenantID {
			continue
		}
		if !filter.All && !p.Active {
			continue
		}
		if filter.LowStock && p.Stock > p.MinStock {
			continue
		}
		if needle != "" && !matchesProduct(p, needle) {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int { return cmpString(a.Name, b.Name) })
	return products, nil
}

func matchesProduct(p domain.Product, needle string) bool {
	for _, field := range []string{p.Name, p.SKU, p.Barcode, p.Brand} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	s.categoriesByID[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListCategories(_ context.Context, tenantID string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, 8)
	for _, c := range s.categoriesByID {
		if c.TenantID == tenantID {
			categories = append(categories, c)
		}
	}
	slices.SortFunc(categories, func(a, b domain.Category) int { return cmpString(a.Name, b.Name) })
	return categories, nil
}

func (s *Store) OpenRegister(_ context.Context, register domain.CashRegister) (*domain.CashRegister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, open := s.openRegisterBy[register.TenantID]; open {
		return nil, store.ErrRegisterOpen
	}
	if register.ID == "" {
		register.ID = xid.New("reg")
	}
	if register.OpeningDate.IsZero() {
		register.OpeningDate = time.Now().UTC()
	}
	register.Status = domain.RegisterStatusOpen
	register.ClosingDate = nil
	s.registersByID[register.ID] = register
	s.openRegisterBy[register.TenantID] = register.ID
	created := register
	return &created, nil
}

func (s *Store) GetOpenRegister(_ context.Context, tenantID string) (*domain.CashRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.openRegisterBy[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	reg := s.registersByID[id]
	found := reg
	return &found, nil
}

func (s *Store) GetRegister(_ context.Context, tenantID string, registerID string) (*domain.CashRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registersByID[registerID]
	if !ok || reg.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := reg
	return &found, nil
}

func (s *Store) CloseRegister(_ context.Context, register domain.CashRegister) (*domain.CashRegister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.registersByID[register.ID]
	if !ok || existing.TenantID != register.TenantID {
		return nil, store.ErrNotFound
	}
	if existing.Status != domain.RegisterStatusOpen {
		return nil, store.ErrRegisterClosed
	}

	register.UserID = existing.UserID
	register.OpeningDate = existing.OpeningDate
	register.InitialAmount = existing.InitialAmount
	register.Status = domain.RegisterStatusClosed
	if register.ClosingDate == nil {
		now := time.Now().UTC()
		register.ClosingDate = &now
	}
	s.registersByID[register.ID] = register
	delete(s.openRegisterBy, register.TenantID)
	closed := register
	return &closed, nil
}

func (s *Store) ListClosedRegisters(_ context.Context, tenantID string, limit int) ([]domain.CashRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	registers := make([]domain.CashRegister, 0, 16)
	for _, r := range s.registersByID {
		if r.TenantID == tenantID && r.Status == domain.RegisterStatusClosed {
			registers = append(registers, r)
		}
	}
	slices.SortFunc(registers, func(a, b domain.CashRegister) int {
		return b.OpeningDate.Compare(a.OpeningDate)
	})
	if limit > 0 && len(registers) > limit {
		registers = registers[:limit]
	}
	return registers, nil
}

func (s *Store) SalesTotalsByMethod(_ context.Context, tenantID string, registerID string) (map[string]decimal.Decimal, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := map[string]decimal.Decimal{}
	count := 0
	for _, sale := range s.salesByID {
		if sale.TenantID != tenantID || sale.CashRegisterID != registerID || sale.Status != domain.SaleStatusCompleted {
			continue
		}
		totals[sale.PaymentMethod] = totals[sale.PaymentMethod].Add(sale.Total)
		count++
	}
	return totals, count, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	// Validate every line before mutating stock so a failed sale leaves
	// inventory untouched.
	for _, item := range sale.Items {
		p, ok := s.productsByID[item.ProductID]
		if !ok || p.TenantID != sale.TenantID {
			return nil, store.ErrNotFound
		}
		if p.Stock < item.Quantity {
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, p.Name)
		}
	}
	for _, item := range sale.Items {
		p := s.productsByID[item.ProductID]
		p.Stock -= item.Quantity
		p.UpdatedAt = time.Now().UTC()
		s.productsByID[item.ProductID] = p
	}

	s.saleSeq[sale.TenantID]++
	sale.SaleNumber = fmt.Sprintf("V-%06d", s.saleSeq[sale.TenantID])
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Status = domain.SaleStatusCompleted
	for i := range sale.Items {
		sale.Items[i].ID = xid.New("sitem")
		sale.Items[i].SaleID = sale.ID
	}
	s.salesByID[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[saleID]
	if !ok || sale.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := cloneSale(sale)
	return &found, nil
}

func (s *Store) ListSales(_ context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 32)
	for _, sale := range s.salesByID {
		if sale.TenantID != tenantID {
			continue
		}
		if !from.IsZero() && sale.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !sale.CreatedAt.Before(to) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(purchase.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	for _, item := range purchase.Items {
		p, ok := s.productsByID[item.ProductID]
		if !ok || p.TenantID != purchase.TenantID {
			return nil, store.ErrNotFound
		}
	}
	now := time.Now().UTC()
	for _, item := range purchase.Items {
		p := s.productsByID[item.ProductID]
		p.Stock += item.Quantity
		p.CostPrice = item.UnitCost
		p.UpdatedAt = now
		s.productsByID[item.ProductID] = p
	}

	s.purchaseSeq[purchase.TenantID]++
	purchase.PurchaseNumber = fmt.Sprintf("C-%06d", s.purchaseSeq[purchase.TenantID])
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = now
	}
	purchase.Status = "COMPLETED"
	for i := range purchase.Items {
		purchase.Items[i].ID = xid.New("pitem")
		purchase.Items[i].PurchaseID = purchase.ID
	}
	s.purchasesByID[purchase.ID] = clonePurchase(purchase)
	created := clonePurchase(purchase)
	return &created, nil
}

func (s *Store) GetPurchase(_ context.Context, tenantID string, purchaseID string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, ok := s.purchasesByID[purchaseID]
	if !ok || purchase.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := clonePurchase(purchase)
	return &found, nil
}

func (s *Store) ListPurchases(_ context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, 16)
	for _, p := range s.purchasesByID {
		if p.TenantID != tenantID {
			continue
		}
		if !from.IsZero() && p.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !p.CreatedAt.Before(to) {
			continue
		}
		purchases = append(purchases, clonePurchase(p))
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(purchases) > limit {
		purchases = purchases[:limit]
	}
	return purchases, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	supplier.Active = true
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.suppliersByID[supplier.ID]
	if !ok || existing.TenantID != supplier.TenantID {
		return nil, store.ErrNotFound
	}
	s.suppliersByID[supplier.ID] = supplier
	updated := supplier
	return &updated, nil
}

func (s *Store) ListSuppliers(_ context.Context, tenantID string) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, 8)
	for _, sup := range s.suppliersByID {
		if sup.TenantID == tenantID {
			suppliers = append(suppliers, sup)
		}
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int { return cmpString(a.Name, b.Name) })
	return suppliers, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	customer.Active = true
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customersByID[customer.ID]
	if !ok || existing.TenantID != customer.TenantID {
		return nil, store.ErrNotFound
	}
	s.customersByID[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) GetCustomer(_ context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[customerID]
	if !ok || c.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := c
	return &found, nil
}

func (s *Store) ListCustomers(_ context.Context, tenantID string, search string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	customers := make([]domain.Customer, 0, 16)
	for _, c := range s.customersByID {
		if c.TenantID != tenantID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Phone), needle) &&
			!strings.Contains(strings.ToLower(c.Email), needle) {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int { return cmpString(a.Name, b.Name) })
	return customers, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order, entry domain.OrderHistory) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(order.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	now := time.Now().UTC()
	period := now.Format("200601")
	key := order.TenantID + "::" + period
	s.orderSeq[key]++
	order.OrderNumber = fmt.Sprintf("PED-%s-%04d", period, s.orderSeq[key])
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	if order.Priority == "" {
		order.Priority = domain.PriorityNormal
	}
	for i := range order.Items {
		order.Items[i].ID = xid.New("oitem")
		order.Items[i].OrderID = order.ID
	}
	s.ordersByID[order.ID] = cloneOrder(order)
	s.appendHistoryLocked(order.ID, entry)
	created := cloneOrder(order)
	return &created, nil
}

func (s *Store) GetOrder(_ context.Context, tenantID string, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[orderID]
	if !ok || order.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := cloneOrder(order)
	return &found, nil
}

func (s *Store) ListOrders(_ context.Context, tenantID string, status string, orderType string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, 16)
	for _, o := range s.ordersByID {
		if o.TenantID != tenantID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		if orderType != "" && o.Type != orderType {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) SetOrderStatus(_ context.Context, tenantID string, orderID string, fromStatus string, toStatus string, entries []domain.OrderHistory) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[orderID]
	if !ok || order.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	if order.Status != fromStatus {
		return nil, store.ErrInvalidTransaction
	}

	now := time.Now().UTC()

	// A restock order entering RECEIVED applies stock once, here, under the
	// same lock that flips the status.
	if order.Type == domain.OrderTypeRestock && toStatus == domain.OrderStatusReceived {
		for i, item := range order.Items {
			if item.ProductID == "" {
				continue
			}
			p, found := s.productsByID[item.ProductID]
			if found && p.TenantID == tenantID {
				p.Stock += item.Quantity
				p.UpdatedAt = now
				s.productsByID[item.ProductID] = p
			}
			order.Items[i].Received = true
			order.Items[i].ReceivedQty = item.Quantity
		}
	}

	order.Status = toStatus
	order.UpdatedAt = now
	if toStatus == domain.OrderStatusReceived || toStatus == domain.OrderStatusDelivered {
		if order.ReceivedDate == nil {
			received := now
			order.ReceivedDate = &received
		}
	}
	s.ordersByID[orderID] = cloneOrder(order)
	for _, entry := range entries {
		s.appendHistoryLocked(orderID, entry)
	}
	updated := cloneOrder(order)
	return &updated, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order, entry domain.OrderHistory) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ordersByID[order.ID]
	if !ok || existing.TenantID != order.TenantID {
		return nil, store.ErrNotFound
	}
	order.Items = existing.Items
	order.Status = existing.Status
	order.OrderNumber = existing.OrderNumber
	order.CreatedAt = existing.CreatedAt
	order.UpdatedAt = time.Now().UTC()
	s.ordersByID[order.ID] = cloneOrder(order)
	s.appendHistoryLocked(order.ID, entry)
	updated := cloneOrder(order)
	return &updated, nil
}

func (s *Store) ReplaceOrderItems(_ context.Context, order domain.Order, entry domain.OrderHistory) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ordersByID[order.ID]
	if !ok || existing.TenantID != order.TenantID {
		return nil, store.ErrNotFound
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = xid.New("oitem")
		}
		order.Items[i].OrderID = order.ID
	}
	existing.Items = order.Items
	existing.Subtotal = order.Subtotal
	existing.Tax = order.Tax
	existing.Total = order.Total
	existing.UpdatedAt = time.Now().UTC()
	s.ordersByID[order.ID] = cloneOrder(existing)
	s.appendHistoryLocked(order.ID, entry)
	updated := cloneOrder(existing)
	return &updated, nil
}

func (s *Store) ListOrderHistory(_ context.Context, tenantID string, orderID string) ([]domain.OrderHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[orderID]
	if !ok || order.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	entries := slices.Clone(s.orderHistory[orderID])
	return entries, nil
}

func (s *Store) ListPendingRestockProductIDs(_ context.Context, tenantID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := map[string]bool{}
	for _, o := range s.ordersByID {
		if o.TenantID != tenantID || o.Type != domain.OrderTypeRestock {
			continue
		}
		switch o.Status {
		case domain.OrderStatusPending, domain.OrderStatusOrdered, domain.OrderStatusPartial:
		default:
			continue
		}
		for _, item := range o.Items {
			if item.ProductID != "" {
				ids[item.ProductID] = true
			}
		}
	}
	return ids, nil
}

func (s *Store) appendHistoryLocked(orderID string, entry domain.OrderHistory) {
	if entry.Action == "" {
		return
	}
	if entry.ID == "" {
		entry.ID = xid.New("ohist")
	}
	entry.OrderID = orderID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.CreatedBy == "" {
		entry.CreatedBy = "Sistema"
	}
	s.orderHistory[orderID] = append(s.orderHistory[orderID], entry)
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	now := time.Now().UTC()
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = now
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = now
	}
	s.expensesByID[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, 16)
	for _, e := range s.expensesByID {
		if e.TenantID != tenantID {
			continue
		}
		if !from.IsZero() && e.ExpenseDate.Before(from) {
			continue
		}
		if !to.IsZero() && !e.ExpenseDate.Before(to) {
			continue
		}
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int { return b.ExpenseDate.Compare(a.ExpenseDate) })
	if limit > 0 && len(expenses) > limit {
		expenses = expenses[:limit]
	}
	return expenses, nil
}

func (s *Store) CreateExpenseCategory(_ context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" {
		category.ID = xid.New("expcat")
	}
	s.expenseCategories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListExpenseCategories(_ context.Context, tenantID string) ([]domain.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.ExpenseCategory, 0, 8)
	for _, c := range s.expenseCategories {
		if c.TenantID == tenantID {
			categories = append(categories, c)
		}
	}
	slices.SortFunc(categories, func(a, b domain.ExpenseCategory) int { return cmpString(a.Name, b.Name) })
	return categories, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, tenantID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, 32)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		if s.auditLogs[i].TenantID != tenantID {
			continue
		}
		logs = append(logs, s.auditLogs[i])
		if limit > 0 && len(logs) >= limit {
			break
		}
	}
	return logs, nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	cloned := sale
	cloned.Items = slices.Clone(sale.Items)
	return cloned
}

func clonePurchase(purchase domain.Purchase) domain.Purchase {
	cloned := purchase
	cloned.Items = slices.Clone(purchase.Items)
	return cloned
}

func cloneOrder(order domain.Order) domain.Order {
	cloned := order
	cloned.Items = slices.Clone(order.Items)
	if order.ReceivedDate != nil {
		received := *order.ReceivedDate
		cloned.ReceivedDate = &received
	}
	if order.ExpectedDate != nil {
		expected := *order.ExpectedDate
		cloned.ExpectedDate = &expected
	}
	return cloned
}

func cmpString(a string, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func envOr(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
