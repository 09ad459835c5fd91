package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mahalpos/internal/cache"
	"mahalpos/internal/service"
	"mahalpos/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopProductCache{}, 5*time.Second)
	auth := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginToken(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	if body.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}
	return body.AccessToken
}

func authedRequest(method, path, token string, payload any) *http.Request {
	var req *http.Request
	if payload != nil {
		body, _ := json.Marshal(payload)
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrong-password",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleLogin_RateLimited(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrong-password",
	})

	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.9:4321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last)
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestProductListAndSearch(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/products?q=rice", token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Products []struct {
			Name string `json:"name"`
		} `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 1 || body.Products[0].Name != "Rice 5kg" {
		t.Fatalf("unexpected search result: %+v", body.Products)
	}
}

func TestProductLookupNotFound(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/products/99999", token, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateProductForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "New Item", "price": "1.00", "quantity": 5,
	}))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCreateAndDeleteProductAsAdmin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "New Item", "price": "1.25", "quantity": 5,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created struct {
		Product struct {
			ID      int64  `json:"id"`
			Code    string `json:"code"`
			Barcode string `json:"barcode"`
		} `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if created.Product.Code == "" || created.Product.Barcode == "" {
		t.Fatalf("expected generated codes, got %+v", created.Product)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", created.Product.ID), token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, fmt.Sprintf("/api/v1/products/%d", created.Product.ID), token, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCheckoutFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	// Seeded product 1 is Sugar 1kg at 2.50 with 80 in stock.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"payment_method": "cash",
		"cart": []map[string]any{
			{"id": 1, "name": "Sugar 1kg", "price": "2.50", "quantity": 2},
		},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success       bool   `json:"success"`
		ReceiptNumber string `json:"receipt_number"`
		Total         string `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !resp.Success || resp.ReceiptNumber == "" {
		t.Fatalf("unexpected checkout response: %+v", resp)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/products/1", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on lookup, got %d", rec.Code)
	}
	var lookup struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&lookup); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if lookup.Quantity != 78 {
		t.Fatalf("quantity after checkout = %d, want 78", lookup.Quantity)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/receipts/"+resp.ReceiptNumber, token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on receipt lookup, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutEmptyCartRejected(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"payment_method": "cash",
		"cart":           []map[string]any{},
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutInsufficientStockConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"payment_method": "cash",
		"cart": []map[string]any{
			{"id": 1, "name": "Sugar 1kg", "price": "2.50", "quantity": 100000},
		},
	}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error == "" {
		t.Fatal("expected error message naming the product")
	}
}

func TestCashLedgerAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	cashierToken := loginToken(t, handler, "cashier", "cashier123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/cash", cashierToken, nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	adminToken := loginToken(t, handler, "admin", "admin123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/cash", adminToken, map[string]any{
		"amount": "-12.00",
		"note":   "supplier payout",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/cash", adminToken, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ledger struct {
		Entries []struct {
			Note string `json:"note"`
		} `json:"entries"`
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&ledger); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(ledger.Entries) != 1 || ledger.Entries[0].Note != "supplier payout" {
		t.Fatalf("unexpected ledger: %+v", ledger)
	}
}

func TestDailyReportEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := loginToken(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/reports/daily", adminToken, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/reports/daily?date=not-a-date", adminToken, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestCreateCashierAndLogin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := loginToken(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users/cashiers", adminToken, map[string]string{
		"username": "kasir2",
		"password": "kasir2pass",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	if token := loginToken(t, handler, "kasir2", "kasir2pass"); token == "" {
		t.Fatal("new cashier could not log in")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users/cashiers", adminToken, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Cashiers []struct {
			Username string `json:"username"`
		} `json:"cashiers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	found := false
	for _, c := range body.Cashiers {
		if c.Username == "kasir2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("kasir2 missing from cashier list: %+v", body.Cashiers)
	}
}

func TestCodegenEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := loginToken(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/products/codegen", adminToken, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Code    string `json:"code"`
		Barcode string `json:"barcode"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Barcode) != 13 || body.Code == "" {
		t.Fatalf("unexpected codegen payload: %+v", body)
	}
}
