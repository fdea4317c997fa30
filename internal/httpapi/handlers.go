package httpapi

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"motopos/backend/internal/domain"
	"motopos/backend/internal/service"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("demasiados intentos, intente más tarde"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRegisterTenant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("demasiados intentos, intente más tarde"))
		return
	}

	var req domain.RegisterTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hash, err := HashPassword(req.AdminPassword)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tenant, admin, err := a.service.RegisterTenant(r.Context(), req, hash)
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	token, expiresAt, err := a.auth.IssueToken(*admin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *admin,
		Tenant:    *tenant,
	})
}

func tenantID(r *http.Request) string {
	actor, _ := service.ActorFromContext(r.Context())
	return actor.TenantID
}

func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	actor, _ := service.ActorFromContext(r.Context())
	if actor.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, errors.New("No autorizado"))
		return false
	}
	return true
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := domain.ProductFilter{
			Search:   r.URL.Query().Get("search"),
			LowStock: r.URL.Query().Get("lowStock") == "true",
			All:      r.URL.Query().Get("all") == "true",
		}
		products, err := a.service.ListProducts(r.Context(), tenantID(r), filter)
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		if !a.requireAdmin(w, r) {
			return
		}
		var req domain.CreateProductRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), tenantID(r), req)
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, product)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/products/"), "/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("Producto no encontrado"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), tenantID(r), id)
		if err != nil {
			a.writeServiceError(w, err, "Producto no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodPatch:
		if !a.requireAdmin(w, r) {
			return
		}
		var req domain.UpdateProductRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.UpdateProduct(r.Context(), tenantID(r), id, req)
		if err != nil {
			a.writeServiceError(w, err, "Producto no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, product)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := a.service.ListCategories(r.Context(), tenantID(r))
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
	case http.MethodPost:
		if !a.requireAdmin(w, r) {
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		category, err := a.service.CreateCategory(r.Context(), tenantID(r), req.Name)
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, category)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleRegisterOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req domain.OpenRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	register, err := a.service.OpenRegister(r.Context(), tenantID(r), req)
	if err != nil {
		a.writeServiceError(w, err, "Caja no encontrada")
		return
	}
	writeJSON(w, http.StatusCreated, register)
}

func (a *API) handleRegisterCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	register, err := a.service.CurrentRegister(r.Context(), tenantID(r))
	if err != nil {
		a.writeServiceError(w, err, "No hay una caja abierta")
		return
	}
	writeJSON(w, http.StatusOK, register)
}

func (a *API) handleRegisterSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	summary, err := a.service.RegisterSummary(r.Context(), tenantID(r), "")
	if err != nil {
		a.writeServiceError(w, err, "No hay una caja abierta")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleRegisterHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	registers, err := a.service.RegisterHistory(r.Context(), tenantID(r), queryInt(r, "limit"))
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registers": registers})
}

func (a *API) handleRegisterActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/cash-register/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) == 2 && parts[1] == "close" && r.Method == http.MethodPost {
		var req domain.CloseRegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.CloseRegister(r.Context(), tenantID(r), parts[0], req)
		if err != nil {
			a.writeServiceError(w, err, "Caja no encontrada")
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if len(parts) == 2 && parts[1] == "summary" && r.Method == http.MethodGet {
		summary, err := a.service.RegisterSummary(r.Context(), tenantID(r), parts[0])
		if err != nil {
			a.writeServiceError(w, err, "Caja no encontrada")
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}
	writeError(w, http.StatusNotFound, errors.New("Caja no encontrada"))
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		from, to, err := parseDateRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sales, err := a.service.ListSales(r.Context(), tenantID(r), from, to, queryInt(r, "limit"))
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.CreateSaleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.CreateSale(r.Context(), tenantID(r), req)
		if err != nil {
			a.writeServiceError(w, err, "Producto no encontrado")
			return
		}
		writeJSON(w, http.StatusCreated, sale)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleSalesToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	summary, err := a.service.TodaySales(r.Context(), tenantID(r))
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sales/"), "/")
	if id == "" || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, errors.New("Venta no encontrada"))
		return
	}
	sale, err := a.service.GetSale(r.Context(), tenantID(r), id)
	if err != nil {
		a.writeServiceError(w, err, "Venta no encontrada")
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		from, to, err := parseDateRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		purchases, err := a.service.ListPurchases(r.Context(), tenantID(r), from, to, queryInt(r, "limit"))
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
	case http.MethodPost:
		var req domain.CreatePurchaseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		purchase, err := a.service.CreatePurchase(r.Context(), tenantID(r), req)
		if err != nil {
			a.writeServiceError(w, err, "Producto no encontrado")
			return
		}
		writeJSON(w, http.StatusCreated, purchase)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handlePurchasesToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	summary, err := a.service.TodayPurchases(r.Context(), tenantID(r))
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handlePurchaseActions(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/purchases/"), "/")
	if id == "" || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, errors.New("Compra no encontrada"))
		return
	}
	purchase, err := a.service.GetPurchase(r.Context(), tenantID(r), id)
	if err != nil {
		a.writeServiceError(w, err, "Compra no encontrada")
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		orders, err := a.service.ListOrders(r.Context(), tenantID(r),
			r.URL.Query().Get("status"), r.URL.Query().Get("type"), queryInt(r, "limit"))
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	case http.MethodPost:
		var req domain.CreateOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := a.service.CreateOrder(r.Context(), tenantID(r), req)
		if err != nil {
			a.writeServiceError(w, err, "Producto no encontrado")
			return
		}
		writeJSON(w, http.StatusCreated, order)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleAutoRestock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	order, err := a.service.AutoRestock(r.Context(), tenantID(r))
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	if order == nil {
		writeJSON(w, http.StatusOK, map[string]any{"created": false})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"created": true, "order": order})
}

func (a *API) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/orders/"), "/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("Pedido no encontrado"))
		return
	}
	orderID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		order, err := a.service.GetOrder(r.Context(), tenantID(r), orderID)
		if err != nil {
			a.writeServiceError(w, err, "Pedido no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, order)
	case len(parts) == 1 && r.Method == http.MethodPatch:
		var req domain.UpdateOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := a.service.UpdateOrder(r.Context(), tenantID(r), orderID, req)
		if err != nil {
			a.writeServiceError(w, err, "Pedido no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, order)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPost:
		var req struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := a.service.UpdateOrderStatus(r.Context(), tenantID(r), orderID, req.Status)
		if err != nil {
			a.writeServiceError(w, err, "Pedido no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, order)
	case len(parts) == 2 && parts[1] == "history" && r.Method == http.MethodGet:
		entries, err := a.service.OrderHistory(r.Context(), tenantID(r), orderID)
		if err != nil {
			a.writeServiceError(w, err, "Pedido no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": entries})
	case len(parts) == 2 && parts[1] == "items" && r.Method == http.MethodPost:
		var req domain.OrderItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := a.service.AddOrderItem(r.Context(), tenantID(r), orderID, req)
		if err != nil {
			a.writeServiceError(w, err, "Pedido no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, order)
	case len(parts) == 3 && parts[1] == "items" && r.Method == http.MethodPatch:
		var req domain.UpdateOrderItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order, err := a.service.UpdateOrderItem(r.Context(), tenantID(r), orderID, parts[2], req)
		if err != nil {
			a.writeServiceError(w, err, "Pedido no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, order)
	case len(parts) == 3 && parts[1] == "items" && r.Method == http.MethodDelete:
		order, err := a.service.RemoveOrderItem(r.Context(), tenantID(r), orderID, parts[2])
		if err != nil {
			a.writeServiceError(w, err, "Pedido no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, order)
	default:
		writeError(w, http.StatusNotFound, errors.New("Pedido no encontrado"))
	}
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		expenses, err := a.service.ListExpenses(r.Context(), tenantID(r), queryInt(r, "limit"))
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
	case http.MethodPost:
		var req domain.CreateExpenseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		expense, err := a.service.CreateExpense(r.Context(), tenantID(r), req)
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, expense)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleExpensesToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	summary, err := a.service.TodayExpenses(r.Context(), tenantID(r))
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleExpenseCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := a.service.ListExpenseCategories(r.Context(), tenantID(r))
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
	case http.MethodPost:
		if !a.requireAdmin(w, r) {
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		category, err := a.service.CreateExpenseCategory(r.Context(), tenantID(r), req.Name)
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, category)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.ListCustomers(r.Context(), tenantID(r), r.URL.Query().Get("search"))
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
	case http.MethodPost:
		var customer domain.Customer
		if err := decodeJSON(r, &customer); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.service.CreateCustomer(r.Context(), tenantID(r), customer)
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/customers/"), "/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("Cliente no encontrado"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		customer, err := a.service.GetCustomer(r.Context(), tenantID(r), id)
		if err != nil {
			a.writeServiceError(w, err, "Cliente no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, customer)
	case http.MethodPatch:
		var customer domain.Customer
		if err := decodeJSON(r, &customer); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer.ID = id
		updated, err := a.service.UpdateCustomer(r.Context(), tenantID(r), customer)
		if err != nil {
			a.writeServiceError(w, err, "Cliente no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		suppliers, err := a.service.ListSuppliers(r.Context(), tenantID(r))
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
	case http.MethodPost:
		var supplier domain.Supplier
		if err := decodeJSON(r, &supplier); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.service.CreateSupplier(r.Context(), tenantID(r), supplier)
		if err != nil {
			a.writeServiceError(w, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (a *API) handleSupplierActions(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/suppliers/"), "/")
	if id == "" || r.Method != http.MethodPatch {
		writeError(w, http.StatusNotFound, errors.New("Proveedor no encontrado"))
		return
	}
	var supplier domain.Supplier
	if err := decodeJSON(r, &supplier); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	supplier.ID = id
	updated, err := a.service.UpdateSupplier(r.Context(), tenantID(r), supplier)
	if err != nil {
		a.writeServiceError(w, err, "Proveedor no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	logs, err := a.service.ListAuditLogs(r.Context(), tenantID(r), queryInt(r, "limit"))
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	from, to, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := a.service.SalesReport(r.Context(), tenantID(r), from, to)
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		a.writeSalesReportCSV(w, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) writeSalesReportCSV(w http.ResponseWriter, report *domain.SalesReport) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=ventas-%s.csv", report.From.Format("2006-01-02")))
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"fecha", "ventas", "total"})
	for _, bucket := range report.ByDay {
		_ = writer.Write([]string{bucket.Label, strconv.Itoa(bucket.Count), bucket.Total.String()})
	}
	_ = writer.Write([]string{})
	_ = writer.Write([]string{"producto", "cantidad", "total"})
	for _, top := range report.TopProducts {
		_ = writer.Write([]string{top.Name, strconv.Itoa(top.Quantity), top.Total.String()})
	}
	writer.Flush()
}

func (a *API) handleExpensesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	from, to, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := a.service.ExpensesReport(r.Context(), tenantID(r), from, to)
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleProfitReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	from, to, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := a.service.ProfitReport(r.Context(), tenantID(r), from, to)
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleInventoryReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	report, err := a.service.InventoryReport(r.Context(), tenantID(r))
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, key string) int {
	val, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return val
}

// parseDateRange reads from/to query params (YYYY-MM-DD), defaulting to the
// last 30 days. The upper bound is exclusive and shifted one day so a "to"
// date includes that whole day.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30).Truncate(24 * time.Hour)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parámetro from inválido")
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parámetro to inválido")
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("rango de fechas inválido")
	}
	return from, to, nil
}
