package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
)

func createRestockOrder(t *testing.T, svc *Service, ctx context.Context, product domain.Product, qty int) *domain.Order {
	t.Helper()
	order, err := svc.CreateOrder(ctx, testTenant, domain.CreateOrderRequest{
		Type: domain.OrderTypeRestock,
		Items: []domain.OrderItemRequest{
			{ProductID: product.ID, Quantity: qty, UnitPrice: product.CostPrice},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestCreateOrderAssignsMonthlyNumber(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	product := findProduct(t, svc, ctx, "FIL-001")

	first := createRestockOrder(t, svc, ctx, product, 5)
	second := createRestockOrder(t, svc, ctx, product, 5)

	period := time.Now().UTC().Format("200601")
	if want := fmt.Sprintf("PED-%s-0001", period); first.OrderNumber != want {
		t.Fatalf("order number = %q, want %q", first.OrderNumber, want)
	}
	if want := fmt.Sprintf("PED-%s-0002", period); second.OrderNumber != want {
		t.Fatalf("order number = %q, want %q", second.OrderNumber, want)
	}
	if first.Status != domain.OrderStatusPending {
		t.Fatalf("new order status = %q", first.Status)
	}
	if first.Items[0].ProductName != product.Name {
		t.Fatalf("item name = %q, want %q", first.Items[0].ProductName, product.Name)
	}
}

func TestCreateOrderAcceptsAllPriorities(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	product := findProduct(t, svc, ctx, "FIL-001")

	for _, priority := range []string{domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh, domain.PriorityUrgent} {
		order, err := svc.CreateOrder(ctx, testTenant, domain.CreateOrderRequest{
			Type:     domain.OrderTypeRestock,
			Priority: priority,
			Items: []domain.OrderItemRequest{
				{ProductID: product.ID, Quantity: 1, UnitPrice: product.CostPrice},
			},
		})
		if err != nil {
			t.Fatalf("priority %s: %v", priority, err)
		}
		if order.Priority != priority {
			t.Fatalf("priority = %q, want %q", order.Priority, priority)
		}
	}

	if _, err := svc.CreateOrder(ctx, testTenant, domain.CreateOrderRequest{
		Type:     domain.OrderTypeRestock,
		Priority: "YA",
		Items: []domain.OrderItemRequest{
			{ProductID: product.ID, Quantity: 1, UnitPrice: product.CostPrice},
		},
	}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid priority to be rejected, got %v", err)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	product := findProduct(t, svc, ctx, "FIL-001")
	order := createRestockOrder(t, svc, ctx, product, 5)

	// PENDING cannot jump straight to RECEIVED.
	if _, err := svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusReceived); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction, got %v", err)
	}

	order, err := svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusOrdered)
	if err != nil {
		t.Fatalf("to ORDERED: %v", err)
	}
	order, err = svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusReceived)
	if err != nil {
		t.Fatalf("to RECEIVED: %v", err)
	}
	if order.ReceivedDate == nil {
		t.Fatalf("received date not set")
	}
	order, err = svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("to DELIVERED: %v", err)
	}

	// DELIVERED is terminal.
	if _, err := svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusCancelled); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected terminal state to reject transition, got %v", err)
	}
}

func TestReceiveRestockAppliesStockOnce(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	product := findProduct(t, svc, ctx, "CAD-428")
	order := createRestockOrder(t, svc, ctx, product, 8)

	if _, err := svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusOrdered); err != nil {
		t.Fatalf("to ORDERED: %v", err)
	}
	order, err := svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusReceived)
	if err != nil {
		t.Fatalf("to RECEIVED: %v", err)
	}
	if !order.Items[0].Received || order.Items[0].ReceivedQty != 8 {
		t.Fatalf("item not marked received: %+v", order.Items[0])
	}

	after, err := svc.GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != product.Stock+8 {
		t.Fatalf("stock = %d, want %d", after.Stock, product.Stock+8)
	}

	history, err := svc.OrderHistory(ctx, testTenant, order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var statusChanges, inventoryUpdates int
	for _, entry := range history {
		switch entry.Action {
		case domain.HistoryStatusChanged:
			statusChanges++
		case domain.HistoryInventoryUpdated:
			inventoryUpdates++
		}
	}
	if statusChanges != 2 {
		t.Fatalf("status change entries = %d, want 2", statusChanges)
	}
	if inventoryUpdates != 1 {
		t.Fatalf("inventory update entries = %d, want 1", inventoryUpdates)
	}

	// The terminal delivery step must not touch stock again.
	if _, err := svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusDelivered); err != nil {
		t.Fatalf("to DELIVERED: %v", err)
	}
	final, err := svc.GetProduct(ctx, testTenant, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if final.Stock != product.Stock+8 {
		t.Fatalf("stock applied twice: %d", final.Stock)
	}
}

func TestOrderNotEditableAfterReceived(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	product := findProduct(t, svc, ctx, "FIL-001")
	order := createRestockOrder(t, svc, ctx, product, 5)

	for _, status := range []string{domain.OrderStatusOrdered, domain.OrderStatusReceived} {
		if _, err := svc.UpdateOrderStatus(ctx, testTenant, order.ID, status); err != nil {
			t.Fatalf("to %s: %v", status, err)
		}
	}

	notes := "cambio tardío"
	if _, err := svc.UpdateOrder(ctx, testTenant, order.ID, domain.UpdateOrderRequest{Notes: &notes}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected edit rejection, got %v", err)
	}
	if _, err := svc.AddOrderItem(ctx, testTenant, order.ID, domain.OrderItemRequest{
		ProductID: product.ID, Quantity: 1, UnitPrice: product.CostPrice,
	}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected item add rejection, got %v", err)
	}
}

func TestRemoveLastOrderItemRejected(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())
	product := findProduct(t, svc, ctx, "FIL-001")
	order := createRestockOrder(t, svc, ctx, product, 5)

	if _, err := svc.RemoveOrderItem(ctx, testTenant, order.ID, order.Items[0].ID); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected last item removal to fail, got %v", err)
	}
}

func TestAutoRestockCreatesOrderForLowStock(t *testing.T) {
	svc := newTestService()
	ctx := testActor(context.Background())

	// Seed catalog starts healthy, so nothing to restock.
	order, err := svc.AutoRestock(ctx, testTenant)
	if err != nil {
		t.Fatalf("auto restock: %v", err)
	}
	if order != nil {
		t.Fatalf("expected no order for healthy stock, got %+v", order)
	}

	low, err := svc.CreateProduct(ctx, testTenant, domain.CreateProductRequest{
		SKU:       "KIT-ARR-01",
		Name:      "Kit de arrastre 428",
		CostPrice: decimal.NewFromInt(22000),
		SalePrice: decimal.NewFromInt(35000),
		Stock:     0,
		MinStock:  4,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	order, err = svc.AutoRestock(ctx, testTenant)
	if err != nil {
		t.Fatalf("auto restock: %v", err)
	}
	if order == nil {
		t.Fatalf("expected restock order")
	}
	if order.Priority != domain.PriorityUrgent {
		t.Fatalf("priority = %q, want URGENT", order.Priority)
	}
	var found bool
	for _, item := range order.Items {
		if item.ProductID == low.ID {
			found = true
			// minStock 4, stock 0, plus the safety margin of 5.
			if item.Quantity != 9 {
				t.Fatalf("suggested qty = %d, want 9", item.Quantity)
			}
		}
	}
	if !found {
		t.Fatalf("low stock product missing from restock order")
	}

	// A pending restock order covers the product, so no duplicate.
	again, err := svc.AutoRestock(ctx, testTenant)
	if err != nil {
		t.Fatalf("auto restock: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no duplicate restock order, got %+v", again)
	}

	// A partially received shipment still covers its products.
	if _, err := svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusOrdered); err != nil {
		t.Fatalf("to ORDERED: %v", err)
	}
	if _, err := svc.UpdateOrderStatus(ctx, testTenant, order.ID, domain.OrderStatusPartial); err != nil {
		t.Fatalf("to PARTIAL: %v", err)
	}
	again, err = svc.AutoRestock(ctx, testTenant)
	if err != nil {
		t.Fatalf("auto restock: %v", err)
	}
	if again != nil {
		t.Fatalf("expected PARTIAL order to keep covering the product, got %+v", again)
	}
}
