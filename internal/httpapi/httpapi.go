package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"motopos/backend/internal/service"
	"motopos/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	log           *logrus.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *logrus.Logger) *API {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		log:           logger,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/register", a.handleRegisterTenant)

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, anyRole...))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, anyRole...))
	mux.HandleFunc("/api/v1/categories", a.requireAuth(a.handleCategories, anyRole...))

	mux.HandleFunc("/api/v1/cash-register/open", a.requireAuth(a.handleRegisterOpen, anyRole...))
	mux.HandleFunc("/api/v1/cash-register/current", a.requireAuth(a.handleRegisterCurrent, anyRole...))
	mux.HandleFunc("/api/v1/cash-register/summary", a.requireAuth(a.handleRegisterSummary, anyRole...))
	mux.HandleFunc("/api/v1/cash-register/history", a.requireAuth(a.handleRegisterHistory, anyRole...))
	mux.HandleFunc("/api/v1/cash-register/", a.requireAuth(a.handleRegisterActions, anyRole...))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, anyRole...))
	mux.HandleFunc("/api/v1/sales/today", a.requireAuth(a.handleSalesToday, anyRole...))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions, anyRole...))

	mux.HandleFunc("/api/v1/purchases", a.requireAuth(a.handlePurchases, "ADMIN"))
	mux.HandleFunc("/api/v1/purchases/today", a.requireAuth(a.handlePurchasesToday, "ADMIN"))
	mux.HandleFunc("/api/v1/purchases/", a.requireAuth(a.handlePurchaseActions, "ADMIN"))

	mux.HandleFunc("/api/v1/orders", a.requireAuth(a.handleOrders, anyRole...))
	mux.HandleFunc("/api/v1/orders/auto-restock", a.requireAuth(a.handleAutoRestock, "ADMIN"))
	mux.HandleFunc("/api/v1/orders/", a.requireAuth(a.handleOrderActions, anyRole...))

	mux.HandleFunc("/api/v1/expenses", a.requireAuth(a.handleExpenses, anyRole...))
	mux.HandleFunc("/api/v1/expenses/today", a.requireAuth(a.handleExpensesToday, anyRole...))
	mux.HandleFunc("/api/v1/expense-categories", a.requireAuth(a.handleExpenseCategories, anyRole...))

	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers, anyRole...))
	mux.HandleFunc("/api/v1/customers/", a.requireAuth(a.handleCustomerActions, anyRole...))
	mux.HandleFunc("/api/v1/suppliers", a.requireAuth(a.handleSuppliers, "ADMIN"))
	mux.HandleFunc("/api/v1/suppliers/", a.requireAuth(a.handleSupplierActions, "ADMIN"))

	mux.HandleFunc("/api/v1/reports/sales", a.requireAuth(a.handleSalesReport, "ADMIN"))
	mux.HandleFunc("/api/v1/reports/expenses", a.requireAuth(a.handleExpensesReport, "ADMIN"))
	mux.HandleFunc("/api/v1/reports/profit", a.requireAuth(a.handleProfitReport, "ADMIN"))
	mux.HandleFunc("/api/v1/reports/inventory", a.requireAuth(a.handleInventoryReport, "ADMIN"))

	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "ADMIN"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("No autorizado"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, errors.New("No autorizado"))
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("No autorizado"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		a.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   recorder.status,
			"duration": time.Since(startedAt).String(),
		}).Info("request")
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses return a generic message so internals (SQL errors, file
	// paths) never reach the client.
	msg := err.Error()
	if status >= 500 {
		logrus.WithError(err).Error("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeServiceError maps the store sentinels to HTTP statuses with the
// user-facing Spanish messages the dashboard shows verbatim.
func (a *API) writeServiceError(w http.ResponseWriter, err error, notFoundMsg string) {
	var stockErr *service.StockError
	switch {
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, stockErr)
	case errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusConflict, errors.New("Stock insuficiente"))
	case errors.Is(err, store.ErrRegisterOpen):
		writeError(w, http.StatusConflict, errors.New("Ya existe una caja abierta"))
	case errors.Is(err, store.ErrRegisterClosed):
		writeError(w, http.StatusConflict, errors.New("La caja ya está cerrada"))
	case errors.Is(err, store.ErrNoOpenRegister):
		writeError(w, http.StatusConflict, errors.New("No hay una caja abierta"))
	case errors.Is(err, store.ErrDuplicateSKU):
		writeError(w, http.StatusConflict, errors.New("El SKU ya existe"))
	case errors.Is(err, store.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "Recurso no encontrado"
		}
		writeError(w, http.StatusNotFound, errors.New(notFoundMsg))
	case errors.Is(err, store.ErrInvalidTransaction):
		writeError(w, http.StatusBadRequest, errors.New("Solicitud inválida"))
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// anyRole lists the roles every authenticated endpoint accepts.
var anyRole = []string{"ADMIN", "SELLER"}
