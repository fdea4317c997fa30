package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
)

// orderTransitions is the supplier-order state machine. DELIVERED and
// CANCELLED are terminal.
var orderTransitions = map[string][]string{
	domain.OrderStatusPending:   {domain.OrderStatusOrdered, domain.OrderStatusCancelled},
	domain.OrderStatusOrdered:   {domain.OrderStatusPartial, domain.OrderStatusReceived, domain.OrderStatusCancelled},
	domain.OrderStatusPartial:   {domain.OrderStatusReceived, domain.OrderStatusCancelled},
	domain.OrderStatusReceived:  {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered: nil,
	domain.OrderStatusCancelled: nil,
}

func transitionAllowed(from string, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validPriority(priority string) bool {
	switch priority {
	case domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh, domain.PriorityUrgent:
		return true
	}
	return false
}

func orderEditable(status string) bool {
	return status == domain.OrderStatusPending || status == domain.OrderStatusOrdered
}

func (s *Service) CreateOrder(ctx context.Context, tenantID string, req domain.CreateOrderRequest) (*domain.Order, error) {
	if req.Type != domain.OrderTypeRestock && req.Type != domain.OrderTypeCustomer {
		return nil, store.ErrInvalidTransaction
	}
	if len(req.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !validPriority(priority) {
		return nil, store.ErrInvalidTransaction
	}

	productIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return nil, store.ErrInvalidTransaction
		}
		if item.ProductID != "" {
			productIDs = append(productIDs, item.ProductID)
		}
	}
	products, err := s.repo.GetProductsByIDs(ctx, tenantID, productIDs)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		name := strings.TrimSpace(item.ProductName)
		if item.ProductID != "" {
			product, ok := products[item.ProductID]
			if !ok {
				return nil, store.ErrNotFound
			}
			if name == "" {
				name = product.Name
			}
		}
		if name == "" {
			return nil, store.ErrInvalidTransaction
		}
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    lineTotal,
		})
	}

	actor, _ := ActorFromContext(ctx)
	order := domain.Order{
		TenantID:     tenantID,
		Type:         req.Type,
		SupplierID:   req.SupplierID,
		CustomerID:   req.CustomerID,
		Status:       domain.OrderStatusPending,
		Priority:     priority,
		ExpectedDate: req.ExpectedDate,
		Subtotal:     subtotal,
		Tax:          req.Tax,
		Total:        subtotal.Add(req.Tax),
		Notes:        req.Notes,
		CreatedByID:  actor.UserID,
		Items:        items,
	}

	entry := domain.OrderHistory{
		Action:      domain.HistoryCreated,
		Description: fmt.Sprintf("Pedido creado con %d artículos", len(items)),
		CreatedBy:   actorName(ctx),
	}
	created, err := s.repo.CreateOrder(ctx, order, entry)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "order.create", "order", created.ID, created.OrderNumber)
	return created, nil
}

func (s *Service) GetOrder(ctx context.Context, tenantID string, orderID string) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, tenantID, orderID)
}

func (s *Service) ListOrders(ctx context.Context, tenantID string, status string, orderType string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListOrders(ctx, tenantID, status, orderType, limit)
}

func (s *Service) OrderHistory(ctx context.Context, tenantID string, orderID string) ([]domain.OrderHistory, error) {
	return s.repo.ListOrderHistory(ctx, tenantID, orderID)
}

// UpdateOrderStatus moves an order through the state machine. A restock order
// entering RECEIVED applies the ordered quantities to product stock inside
// the same repository transaction, so the increment happens exactly once.
func (s *Service) UpdateOrderStatus(ctx context.Context, tenantID string, orderID string, newStatus string) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(order.Status, newStatus) {
		return nil, store.ErrInvalidTransaction
	}

	entries := []domain.OrderHistory{{
		Action:      domain.HistoryStatusChanged,
		Description: fmt.Sprintf("Estado cambiado de %s a %s", order.Status, newStatus),
		OldValue:    order.Status,
		NewValue:    newStatus,
		CreatedBy:   actorName(ctx),
	}}

	if order.Type == domain.OrderTypeRestock && newStatus == domain.OrderStatusReceived {
		lines := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			if item.ProductID == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s +%d", item.ProductName, item.Quantity))
		}
		if len(lines) > 0 {
			entries = append(entries, domain.OrderHistory{
				Action:      domain.HistoryInventoryUpdated,
				Description: "Stock actualizado: " + strings.Join(lines, ", "),
				CreatedBy:   actorName(ctx),
			})
		}
	}

	updated, err := s.repo.SetOrderStatus(ctx, tenantID, orderID, order.Status, newStatus, entries)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "order.status", "order", updated.ID, newStatus)
	return updated, nil
}

func (s *Service) UpdateOrder(ctx context.Context, tenantID string, orderID string, req domain.UpdateOrderRequest) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !orderEditable(order.Status) {
		return nil, store.ErrInvalidTransaction
	}

	changed := make([]string, 0, 4)
	if req.SupplierID != nil && *req.SupplierID != order.SupplierID {
		order.SupplierID = *req.SupplierID
		changed = append(changed, "proveedor")
	}
	if req.Priority != nil && *req.Priority != order.Priority {
		if !validPriority(*req.Priority) {
			return nil, store.ErrInvalidTransaction
		}
		order.Priority = *req.Priority
		changed = append(changed, "prioridad")
	}
	if req.ExpectedDate != nil {
		order.ExpectedDate = req.ExpectedDate
		changed = append(changed, "fecha estimada")
	}
	if req.Notes != nil && *req.Notes != order.Notes {
		order.Notes = *req.Notes
		changed = append(changed, "notas")
	}
	if len(changed) == 0 {
		return order, nil
	}

	entry := domain.OrderHistory{
		Action:      domain.HistoryEdited,
		Description: "Pedido editado: " + strings.Join(changed, ", "),
		CreatedBy:   actorName(ctx),
	}
	return s.repo.UpdateOrder(ctx, *order, entry)
}

func (s *Service) AddOrderItem(ctx context.Context, tenantID string, orderID string, req domain.OrderItemRequest) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !orderEditable(order.Status) {
		return nil, store.ErrInvalidTransaction
	}
	if req.Quantity <= 0 || req.UnitPrice.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	name := strings.TrimSpace(req.ProductName)
	if req.ProductID != "" {
		product, err := s.repo.GetProduct(ctx, tenantID, req.ProductID)
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = product.Name
		}
	}
	if name == "" {
		return nil, store.ErrInvalidTransaction
	}

	order.Items = append(order.Items, domain.OrderItem{
		ProductID:   req.ProductID,
		ProductName: name,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Subtotal:    req.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
	})
	recomputeOrderTotals(order)

	entry := domain.OrderHistory{
		Action:      domain.HistoryItemAdded,
		Description: fmt.Sprintf("Artículo agregado: %s x%d", name, req.Quantity),
		CreatedBy:   actorName(ctx),
	}
	return s.repo.ReplaceOrderItems(ctx, *order, entry)
}

func (s *Service) UpdateOrderItem(ctx context.Context, tenantID string, orderID string, itemID string, req domain.UpdateOrderItemRequest) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !orderEditable(order.Status) {
		return nil, store.ErrInvalidTransaction
	}

	idx := -1
	for i, item := range order.Items {
		if item.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, store.ErrNotFound
	}

	item := &order.Items[idx]
	oldValue := fmt.Sprintf("x%d @ %s", item.Quantity, item.UnitPrice.String())
	if req.Quantity != nil {
		if *req.Quantity <= 0 {
			return nil, store.ErrInvalidTransaction
		}
		item.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return nil, store.ErrInvalidTransaction
		}
		item.UnitPrice = *req.UnitPrice
	}
	item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	recomputeOrderTotals(order)

	entry := domain.OrderHistory{
		Action:      domain.HistoryItemUpdated,
		Description: fmt.Sprintf("Artículo actualizado: %s", item.ProductName),
		OldValue:    oldValue,
		NewValue:    fmt.Sprintf("x%d @ %s", item.Quantity, item.UnitPrice.String()),
		CreatedBy:   actorName(ctx),
	}
	return s.repo.ReplaceOrderItems(ctx, *order, entry)
}

func (s *Service) RemoveOrderItem(ctx context.Context, tenantID string, orderID string, itemID string) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !orderEditable(order.Status) {
		return nil, store.ErrInvalidTransaction
	}
	if len(order.Items) == 1 {
		return nil, store.ErrInvalidTransaction
	}

	removed := ""
	items := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if item.ID == itemID {
			removed = item.ProductName
			continue
		}
		items = append(items, item)
	}
	if removed == "" {
		return nil, store.ErrNotFound
	}
	order.Items = items
	recomputeOrderTotals(order)

	entry := domain.OrderHistory{
		Action:      domain.HistoryItemRemoved,
		Description: "Artículo eliminado: " + removed,
		CreatedBy:   actorName(ctx),
	}
	return s.repo.ReplaceOrderItems(ctx, *order, entry)
}

// AutoRestock creates a restock order covering every active product at or
// below its minimum, skipping products already covered by an open restock
// order. Returns nil when nothing needs restocking.
func (s *Service) AutoRestock(ctx context.Context, tenantID string) (*domain.Order, error) {
	products, err := s.repo.ListProducts(ctx, tenantID, domain.ProductFilter{LowStock: true})
	if err != nil {
		return nil, err
	}
	covered, err := s.repo.ListPendingRestockProductIDs(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	priority := domain.PriorityNormal
	items := make([]domain.OrderItem, 0, len(products))
	subtotal := decimal.Zero
	for _, p := range products {
		if covered[p.ID] {
			continue
		}
		qty := p.MinStock - p.Stock + 5
		if qty < 1 {
			qty = 1
		}
		if p.Stock == 0 {
			priority = domain.PriorityUrgent
		}
		lineTotal := p.CostPrice.Mul(decimal.NewFromInt(int64(qty)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    qty,
			UnitPrice:   p.CostPrice,
			Subtotal:    lineTotal,
		})
	}
	if len(items) == 0 {
		return nil, nil
	}

	actor, _ := ActorFromContext(ctx)
	order := domain.Order{
		TenantID:    tenantID,
		Type:        domain.OrderTypeRestock,
		Status:      domain.OrderStatusPending,
		Priority:    priority,
		Subtotal:    subtotal,
		Total:       subtotal,
		Notes:       "Generado automáticamente por stock bajo",
		CreatedByID: actor.UserID,
		Items:       items,
	}
	entry := domain.OrderHistory{
		Action:      domain.HistoryCreated,
		Description: fmt.Sprintf("Pedido de reposición automático con %d artículos", len(items)),
		CreatedBy:   actorName(ctx),
	}
	created, err := s.repo.CreateOrder(ctx, order, entry)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "order.autorestock", "order", created.ID, created.OrderNumber)
	return created, nil
}

func recomputeOrderTotals(order *domain.Order) {
	subtotal := decimal.Zero
	for _, item := range order.Items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	order.Subtotal = subtotal
	order.Total = subtotal.Add(order.Tax)
}
