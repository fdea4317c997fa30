package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"motopos/backend/internal/cache"
	"motopos/backend/internal/report"
	"motopos/backend/internal/service"
	"motopos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	reports := report.NewEngine(repo, cache.NoopReportCache{}, time.Minute)
	svc := service.New(repo, reports)
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, repo)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return New(svc, auth, "*", logger)
}

func login(t *testing.T, handler http.Handler) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"email":    "admin@demo.local",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	if body.Token == "" {
		t.Fatalf("empty token")
	}
	return body.Token
}

func doJSON(t *testing.T, handler http.Handler, token string, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, "", http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, "", http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "admin@demo.local",
		"password": "incorrecta",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "credenciales inválidas" {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestProductsRequireAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, "", http.MethodGet, "/api/v1/products", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListProducts(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, token, http.MethodGet, "/api/v1/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Products []map[string]any `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 5 {
		t.Fatalf("products = %d, want 5", len(body.Products))
	}
}

func TestSaleFlowThroughAPI(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler)

	// Selling without an open register is rejected with a spanish message.
	rec := doJSON(t, handler, token, http.MethodGet, "/api/v1/products?search=BUJ-010", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", rec.Code)
	}
	var search struct {
		Products []struct {
			ID        string          `json:"id"`
			SalePrice json.RawMessage `json:"salePrice"`
		} `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&search); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(search.Products) != 1 {
		t.Fatalf("search hits = %d, want 1", len(search.Products))
	}
	productID := search.Products[0].ID

	salePayload := map[string]any{
		"paymentMethod": "CASH",
		"items": []map[string]any{
			{"productId": productID, "quantity": 2, "unitPrice": "4500"},
		},
	}
	rec = doJSON(t, handler, token, http.MethodPost, "/api/v1/sales", salePayload)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 without register, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, token, http.MethodPost, "/api/v1/cash-register/open", map[string]any{
		"initialAmount": "10000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open register: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var opened struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&opened); err != nil {
		t.Fatalf("decode register: %v", err)
	}

	rec = doJSON(t, handler, token, http.MethodPost, "/api/v1/sales", salePayload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		SaleNumber string `json:"saleNumber"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if created.SaleNumber != "V-000001" {
		t.Fatalf("sale number = %q", created.SaleNumber)
	}

	rec = doJSON(t, handler, token, http.MethodPost,
		fmt.Sprintf("/api/v1/cash-register/%s/close", opened.ID), map[string]any{
			"cashAmount": "19000",
		})
	if rec.Code != http.StatusOK {
		t.Fatalf("close register: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var closed struct {
		CashDifference json.Number `json:"cashDifference"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&closed); err != nil {
		t.Fatalf("decode close: %v", err)
	}

	// The closed session is still summarizable by id.
	rec = doJSON(t, handler, token, http.MethodGet,
		fmt.Sprintf("/api/v1/cash-register/%s/summary", opened.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary by id: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var summary struct {
		SalesCount int `json:"salesCount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.SalesCount != 1 {
		t.Fatalf("sales count = %d, want 1", summary.SalesCount)
	}
}

func TestDoubleOpenRegisterConflict(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler)

	payload := map[string]any{"initialAmount": "5000"}
	rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/cash-register/open", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first open: expected 201, got %d", rec.Code)
	}
	rec = doJSON(t, handler, token, http.MethodPost, "/api/v1/cash-register/open", payload)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second open: expected 409, got %d", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "Ya existe una caja abierta" {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, token, http.MethodPost, "/api/v1/cash-register/open", map[string]any{
		"initialAmount": "5000",
		"sorpresa":      true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestRegisterTenantIssuesToken(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, "", http.MethodPost, "/api/v1/auth/register", map[string]string{
		"businessName":  "Motorepuestos El Rayo",
		"adminName":     "Laura",
		"adminEmail":    "laura@elrayo.local",
		"adminPassword": "clave-segura",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Token == "" || body.User.Role != "ADMIN" {
		t.Fatalf("unexpected register response: %+v", body)
	}
}

func TestNotFoundUsesSpanishMessage(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, token, http.MethodGet, "/api/v1/orders/no-existe", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "Pedido no encontrado" {
		t.Fatalf("error = %q", body.Error)
	}
}
