package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"electrostock/internal/auth"
	"electrostock/internal/cache"
	"electrostock/internal/domain"
	"electrostock/internal/mailer"
	"electrostock/internal/service"
	"electrostock/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAPI(t *testing.T) *API {
	t.Helper()
	repo := memory.NewSeeded()
	svc := service.New(repo)
	authManager := auth.NewManager(testSecret, time.Hour, repo, cache.NewMemoryCodeStore(), mailer.LogMailer{})
	return New(svc, authManager, "http://127.0.0.1:3000")
}

func doRequest(t *testing.T, api *API, method string, path string, body string, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, api *API, email string, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := doRequest(t, api, http.MethodPost, "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected token in login response")
	}
	return resp.Token
}

func loginAdmin(t *testing.T, api *API) string {
	return loginAs(t, api, "admin@electrostock.local", "Admin#123")
}

func loginEmployee(t *testing.T, api *API) string {
	return loginAs(t, api, "vendedor@electrostock.local", "Vendedor#123")
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/api/v1/products", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginThenListProducts(t *testing.T) {
	api := newTestAPI(t)
	token := loginEmployee(t, api)

	rec := doRequest(t, api, http.MethodGet, "/api/v1/products", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Products) != 6 {
		t.Fatalf("expected 6 seeded products, got %d", len(resp.Products))
	}
}

func TestLoginRateLimitPerClient(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"nope@example.com","password":"bad"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:4321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on sixth attempt, got %d", last)
	}
}

func TestStockAdjustIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)

	employee := loginEmployee(t, api)
	rec := doRequest(t, api, http.MethodPost, "/api/v1/inventory/adjust", `{"product_id":"prd-usb32","new_stock":50,"reason":"conteo"}`, employee)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	admin := loginAdmin(t, api)
	rec = doRequest(t, api, http.MethodPost, "/api/v1/inventory/adjust", `{"product_id":"prd-usb32","new_stock":50,"reason":"conteo"}`, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestReceiptAndSaleFlow(t *testing.T) {
	api := newTestAPI(t)
	token := loginEmployee(t, api)

	rec := doRequest(t, api, http.MethodPost, "/api/v1/inventory/receipt", `{"product_id":"prd-usb32","quantity":10,"note":"reposicion"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("receipt: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, api, http.MethodPost, "/api/v1/sales", `{"lines":[{"product_id":"prd-usb32","quantity":2}]}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var saleResp struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &saleResp); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if saleResp.Sale.ID == "" {
		t.Fatalf("expected generated sale id in response")
	}

	rec = doRequest(t, api, http.MethodGet, "/api/v1/sales/"+saleResp.Sale.ID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, api, http.MethodGet, "/api/v1/products/prd-usb32", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: expected 200, got %d", rec.Code)
	}
	var productResp struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &productResp); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if productResp.Product.Stock != 68 {
		t.Fatalf("expected stock 68 (60 + 10 - 2), got %d", productResp.Product.Stock)
	}
}

func TestSaleWithInsufficientStockConflicts(t *testing.T) {
	api := newTestAPI(t)
	token := loginEmployee(t, api)

	rec := doRequest(t, api, http.MethodPost, "/api/v1/sales", `{"lines":[{"product_id":"prd-teclado","quantity":5000}]}`, token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSalesReportExportAsAttachment(t *testing.T) {
	api := newTestAPI(t)

	employee := loginEmployee(t, api)
	rec := doRequest(t, api, http.MethodPost, "/api/v1/sales", `{"lines":[{"product_id":"prd-hdmi2","quantity":1}]}`, employee)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d", rec.Code)
	}

	admin := loginAdmin(t, api)

	rec = doRequest(t, api, http.MethodGet, "/api/v1/reports/sales?period=last_week&format=txt", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "Reporte_ventas.txt") {
		t.Fatalf("expected txt attachment, got %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "REPORTE: VENTAS") {
		t.Fatalf("unexpected txt body: %q", rec.Body.String())
	}

	rec = doRequest(t, api, http.MethodGet, "/api/v1/reports/sales?period=last_week&format=csv", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "Reporte_ventas.csv") {
		t.Fatalf("expected csv attachment, got %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "Tipo,Desde,Hasta,TotalVentas") {
		t.Fatalf("unexpected csv body: %q", rec.Body.String())
	}
}

func TestReportsRejectEmployees(t *testing.T) {
	api := newTestAPI(t)
	token := loginEmployee(t, api)

	rec := doRequest(t, api, http.MethodGet, "/api/v1/reports/sales?period=last_week", "", token)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestReportRequiresRange(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAdmin(t, api)

	rec := doRequest(t, api, http.MethodGet, "/api/v1/reports/sales", "", admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without period or from/to, got %d", rec.Code)
	}

	rec = doRequest(t, api, http.MethodGet, "/api/v1/reports/sales?from=2026-08-01&to=2026-08-29", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with explicit range, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSupplierCascadeOverAPI(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAdmin(t, api)

	rec := doRequest(t, api, http.MethodGet, "/api/v1/suppliers/prov-techdist/products", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, api, http.MethodDelete, "/api/v1/suppliers/prov-techdist", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, api, http.MethodGet, "/api/v1/products/prd-usb32", "", admin)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for cascaded product, got %d", rec.Code)
	}
}

func TestRegisterValidationOverAPI(t *testing.T) {
	api := newTestAPI(t)

	rec := doRequest(t, api, http.MethodPost, "/api/v1/auth/register", `{"name":"Ana","email":"ana@example.com","password":"weak"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, api, http.MethodPost, "/api/v1/auth/register", `{"name":"Ana","email":"ana@example.com","password":"Fuerte#123"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Duplicate email conflicts.
	rec = doRequest(t, api, http.MethodPost, "/api/v1/auth/register", `{"name":"Ana","email":"ana@example.com","password":"Fuerte#123"}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	token := loginEmployee(t, api)

	rec := doRequest(t, api, http.MethodDelete, "/api/v1/movements", "", token)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSaleEditOverAPI(t *testing.T) {
	api := newTestAPI(t)

	employee := loginEmployee(t, api)
	rec := doRequest(t, api, http.MethodPost, "/api/v1/sales", `{"lines":[{"product_id":"prd-usb32","quantity":2}]}`, employee)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d", rec.Code)
	}
	var saleResp struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &saleResp); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	// Editing a closed sale is an admin correction.
	rec = doRequest(t, api, http.MethodPatch, "/api/v1/sales/"+saleResp.Sale.ID, `{"lines":[{"product_id":"prd-usb32","quantity":1}]}`, employee)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee edit, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	admin := loginAdmin(t, api)
	rec = doRequest(t, api, http.MethodPatch, "/api/v1/sales/"+saleResp.Sale.ID, `{"lines":[{"product_id":"prd-usb32","quantity":1}]}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var editResp struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &editResp); err != nil {
		t.Fatalf("decode edited sale: %v", err)
	}
	if len(editResp.Sale.Lines) != 1 || editResp.Sale.Lines[0].Quantity != 1 {
		t.Fatalf("expected single line of quantity 1, got %+v", editResp.Sale.Lines)
	}

	rec = doRequest(t, api, http.MethodGet, "/api/v1/products/prd-usb32", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: expected 200, got %d", rec.Code)
	}
	var productResp struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &productResp); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if productResp.Product.Stock != 59 {
		t.Fatalf("expected stock 59 (60 - 2 + 1), got %d", productResp.Product.Stock)
	}
}

func TestDateRangeCoversWholeLastDay(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales?from=2026-08-01&to=2026-08-29", nil)
	from, to, err := parseDateRangeQuery(req, true)
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}
	if !from.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from %s", from)
	}
	// A sale in the last second of the day must fall inside the range.
	lastSecond := time.Date(2026, 8, 29, 23, 59, 59, 500000000, time.UTC)
	if to.Before(lastSecond) {
		t.Fatalf("expected to cover %s, got %s", lastSecond, to)
	}
	if !to.Before(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected to stay inside the day, got %s", to)
	}
}
