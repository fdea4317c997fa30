package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
)

const orderColumns = `id, tenant_id, order_number, type, COALESCE(supplier_id,''), COALESCE(customer_id,''),
	status, priority, expected_date, received_date, subtotal, tax, total, COALESCE(notes,''),
	COALESCE(created_by_id,''), created_at, updated_at`

func scanOrder(scanner interface{ Scan(...any) error }) (domain.Order, error) {
	var order domain.Order
	var expected, received sql.NullTime
	err := scanner.Scan(&order.ID, &order.TenantID, &order.OrderNumber, &order.Type, &order.SupplierID,
		&order.CustomerID, &order.Status, &order.Priority, &expected, &received,
		&order.Subtotal, &order.Tax, &order.Total, &order.Notes, &order.CreatedByID,
		&order.CreatedAt, &order.UpdatedAt)
	if expected.Valid {
		t := expected.Time
		order.ExpectedDate = &t
	}
	if received.Valid {
		t := received.Time
		order.ReceivedDate = &t
	}
	return order, err
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order, entry domain.OrderHistory) (*domain.Order, error) {
	if len(order.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer pgTx.Rollback()

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if order.ID == "" {
		order.ID = xid.New("order")
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	if order.Priority == "" {
		order.Priority = domain.PriorityNormal
	}

	// Order numbers restart every month per tenant.
	period := order.CreatedAt.Format("200601")
	seq, err := nextSequence(ctx, pgTx, order.TenantID, "order:"+period)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = fmt.Sprintf("PED-%s-%04d", period, seq)

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO orders (id, tenant_id, order_number, type, supplier_id, customer_id, status,
			priority, expected_date, subtotal, tax, total, notes, created_by_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, order.ID, order.TenantID, order.OrderNumber, order.Type, nullIfEmpty(order.SupplierID),
		nullIfEmpty(order.CustomerID), order.Status, order.Priority, nullTime(order.ExpectedDate),
		order.Subtotal, order.Tax, order.Total, nullIfEmpty(order.Notes),
		nullIfEmpty(order.CreatedByID), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for i := range order.Items {
		order.Items[i].ID = xid.New("oitem")
		order.Items[i].OrderID = order.ID
		if err := insertOrderItem(ctx, pgTx, order.Items[i]); err != nil {
			return nil, err
		}
	}

	if err := insertOrderHistory(ctx, pgTx, order.ID, entry); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

func insertOrderItem(ctx context.Context, tx *sql.Tx, item domain.OrderItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, subtotal, received, received_qty)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, item.ID, item.OrderID, nullIfEmpty(item.ProductID), item.ProductName, item.Quantity,
		item.UnitPrice, item.Subtotal, item.Received, item.ReceivedQty)
	return err
}

func insertOrderHistory(ctx context.Context, tx *sql.Tx, orderID string, entry domain.OrderHistory) error {
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
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_history (id, order_id, action, description, old_value, new_value, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.OrderID, entry.Action, entry.Description, nullIfEmpty(entry.OldValue),
		nullIfEmpty(entry.NewValue), entry.CreatedBy, entry.CreatedAt)
	return err
}

func (s *Store) GetOrder(ctx context.Context, tenantID string, orderID string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1 AND tenant_id = $2
	`, orderID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	items, err := s.orderItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, tenantID string, status string, orderType string, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1`
	args := []any{tenantID}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if orderType != "" {
		args = append(args, orderType)
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 16)
	ids := make([]string, 0, 16)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (s *Store) orderItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	result := make(map[string][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, COALESCE(product_id,''), product_name, quantity, unit_price, subtotal, received, received_qty
		FROM order_items
		WHERE order_id = ANY($1)
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Subtotal, &item.Received, &item.ReceivedQty); err != nil {
			return nil, err
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	return result, rows.Err()
}

func (s *Store) SetOrderStatus(ctx context.Context, tenantID string, orderID string, fromStatus string, toStatus string, entries []domain.OrderHistory) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer pgTx.Rollback()

	order, err := scanOrder(pgTx.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1 AND tenant_id = $2 FOR UPDATE
	`, orderID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if order.Status != fromStatus {
		return nil, store.ErrInvalidTransaction
	}

	now := time.Now().UTC()
	var receivedDate any
	if toStatus == domain.OrderStatusReceived || toStatus == domain.OrderStatusDelivered {
		if order.ReceivedDate != nil {
			receivedDate = *order.ReceivedDate
		} else {
			receivedDate = now
		}
	} else {
		receivedDate = nullTime(order.ReceivedDate)
	}

	if _, err := pgTx.ExecContext(ctx, `
		UPDATE orders SET status=$3, received_date=$4, updated_at=$5
		WHERE id = $1 AND tenant_id = $2
	`, orderID, tenantID, toStatus, receivedDate, now); err != nil {
		return nil, err
	}

	// Receiving a restock order puts the goods into inventory exactly once,
	// in the same transaction as the status flip.
	if order.Type == domain.OrderTypeRestock && toStatus == domain.OrderStatusReceived {
		items, err := s.orderItemsTx(ctx, pgTx, orderID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.ProductID == "" {
				continue
			}
			if _, err := pgTx.ExecContext(ctx, `
				UPDATE products SET stock = stock + $3, updated_at = now()
				WHERE id = $1 AND tenant_id = $2
			`, item.ProductID, tenantID, item.Quantity); err != nil {
				return nil, err
			}
			if _, err := pgTx.ExecContext(ctx, `
				UPDATE order_items SET received = true, received_qty = quantity WHERE id = $1
			`, item.ID); err != nil {
				return nil, err
			}
		}
	}

	for _, entry := range entries {
		if err := insertOrderHistory(ctx, pgTx, orderID, entry); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, tenantID, orderID)
}

func (s *Store) orderItemsTx(ctx context.Context, tx *sql.Tx, orderID string) ([]domain.OrderItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, COALESCE(product_id,''), product_name, quantity, unit_price, subtotal, received, received_qty
		FROM order_items
		WHERE order_id = $1
		FOR UPDATE
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Subtotal, &item.Received, &item.ReceivedQty); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order, entry domain.OrderHistory) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer pgTx.Rollback()

	res, err := pgTx.ExecContext(ctx, `
		UPDATE orders SET supplier_id=$3, customer_id=$4, priority=$5, expected_date=$6, notes=$7, updated_at=now()
		WHERE id = $1 AND tenant_id = $2
	`, order.ID, order.TenantID, nullIfEmpty(order.SupplierID), nullIfEmpty(order.CustomerID),
		order.Priority, nullTime(order.ExpectedDate), nullIfEmpty(order.Notes))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if err := insertOrderHistory(ctx, pgTx, order.ID, entry); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, order.TenantID, order.ID)
}

func (s *Store) ReplaceOrderItems(ctx context.Context, order domain.Order, entry domain.OrderHistory) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer pgTx.Rollback()

	res, err := pgTx.ExecContext(ctx, `
		UPDATE orders SET subtotal=$3, tax=$4, total=$5, updated_at=now()
		WHERE id = $1 AND tenant_id = $2
	`, order.ID, order.TenantID, order.Subtotal, order.Tax, order.Total)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return nil, err
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = xid.New("oitem")
		}
		order.Items[i].OrderID = order.ID
		if err := insertOrderItem(ctx, pgTx, order.Items[i]); err != nil {
			return nil, err
		}
	}

	if err := insertOrderHistory(ctx, pgTx, order.ID, entry); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, order.TenantID, order.ID)
}

func (s *Store) ListOrderHistory(ctx context.Context, tenantID string, orderID string) ([]domain.OrderHistory, error) {
	if _, err := s.GetOrder(ctx, tenantID, orderID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, action, description, COALESCE(old_value,''), COALESCE(new_value,''), created_by, created_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.OrderHistory, 0, 8)
	for rows.Next() {
		var entry domain.OrderHistory
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Action, &entry.Description,
			&entry.OldValue, &entry.NewValue, &entry.CreatedBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (s *Store) ListPendingRestockProductIDs(ctx context.Context, tenantID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT oi.product_id
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.tenant_id = $1 AND o.type = 'RESTOCK' AND o.status IN ('PENDING','ORDERED','PARTIAL')
			AND oi.product_id IS NOT NULL
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	covered := map[string]bool{}
	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			return nil, err
		}
		covered[productID] = true
	}
	return covered, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
