package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techsolutions/backend/internal/cache"
	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/metrics"
	"techsolutions/backend/internal/service"
	"techsolutions/backend/internal/store/memory"
)

const (
	adminID  = "123456789"
	adminPwd = "Admin123"
	clerkID  = "987654321"
	clerkPwd = "User1234"
)

// newTestAPI builds a full API over a seeded in-memory store so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T) (*API, *memory.Store) {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", adminPwd)
	t.Setenv("SEED_USER_PASSWORD", clerkPwd)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := memory.NewSeeded()
	recorder := metrics.New()
	svc := service.New(repo, cache.NoopCatalogCache{}, time.Minute, recorder, logger)
	auth := NewAuthManager("test-secret-key-with-enough-length!", time.Hour, repo)

	return New(svc, auth, "*", recorder, logger), repo
}

func fetchCSRFToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotEmpty(t, body["csrf_token"])
	return body["csrf_token"]
}

func login(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()
	payload, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.AccessToken
}

// call issues an authenticated request, attaching a CSRF token to mutating
// methods.
func call(t *testing.T, handler http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, handler))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func saleBody(productID int64, qty string) map[string]any {
	return map[string]any{
		"customer": map[string]string{
			"first_name": "Ana",
			"last_name":  "Mora",
			"id_number":  "111222333",
			"email":      "ana@example.com",
		},
		"discount_percent": "10",
		"quantities": map[string]string{
			strconv.FormatInt(productID, 10): qty,
		},
	}
}

func registerSale(t *testing.T, handler http.Handler, token string, productID int64, qty string) domain.SaleResult {
	t.Helper()
	rec := call(t, handler, http.MethodPost, "/api/v1/sales", token, saleBody(productID, qty))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result domain.SaleResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	return result
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
}

func TestHandleLogin(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	token := login(t, handler, adminID, adminPwd)
	assert.NotEmpty(t, token)

	payload, _ := json.Marshal(domain.LoginRequest{Username: adminID, Password: "wrong-password"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSellableProductsRequiresAuth(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/sellable", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSellableProductsHidesInactiveAndOutOfStock(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, clerkID, clerkPwd)

	rec := call(t, handler, http.MethodGet, "/api/v1/products/sellable", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []domain.SellableProduct `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 5)
	for _, p := range body.Data {
		assert.NotEqual(t, "USB-C Hub", p.Name)
		assert.NotEqual(t, "Portable Projector", p.Name)
		assert.Positive(t, p.Stock)
	}

	rec = call(t, handler, http.MethodGet, "/api/v1/products/sellable?q=sto-", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Data, 2)
}

func TestRegisterSaleAndReadBack(t *testing.T) {
	api, repo := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, clerkID, clerkPwd)
	keyboard, ok := repo.ProductBySKU("PER-KB-001")
	require.True(t, ok)

	result := registerSale(t, handler, token, keyboard.ID, "2")
	assert.True(t, result.CustomerCreated)
	assert.Contains(t, result.Notices, "sale registered")
	stock, _ := repo.Stock(keyboard.ID)
	assert.Equal(t, 23, stock)

	rec := call(t, handler, http.MethodGet, "/api/v1/sales/"+strconv.FormatInt(result.Sale.ID, 10), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.SaleSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, "Ana Mora", summary.CustomerName)
	assert.Equal(t, "Sales Clerk", summary.EmployeeName)
	assert.Equal(t, "630.00", summary.Total.StringFixed(2))

	rec = call(t, handler, http.MethodGet, "/api/v1/sales?limit=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []domain.SaleSummary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list.Data, 1)

	rec = call(t, handler, http.MethodGet, "/api/v1/customers/lookup?id_number=111222333", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var customer domain.Customer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&customer))
	assert.Equal(t, "Ana", customer.FirstName)
}

func TestRegisterSaleReportsViolations(t *testing.T) {
	api, repo := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, clerkID, clerkPwd)
	monitor, ok := repo.ProductBySKU("DSP-MN-001")
	require.True(t, ok)

	rec := call(t, handler, http.MethodPost, "/api/v1/sales", token, saleBody(monitor.ID, "9"))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	var body struct {
		Error      string              `json:"error"`
		Violations []service.Violation `json:"violations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Violations, 1)
	assert.Equal(t, "insufficient_stock", body.Violations[0].Code)
	assert.Equal(t, monitor.ID, body.Violations[0].ProductID)

	stock, _ := repo.Stock(monitor.ID)
	assert.Equal(t, 8, stock)

	rec = call(t, handler, http.MethodPost, "/api/v1/sales", token, saleBody(monitor.ID, "0"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditAndDeleteSaleAsAdmin(t *testing.T) {
	api, repo := newTestAPI(t)
	handler := api.Handler()
	clerk := login(t, handler, clerkID, clerkPwd)
	admin := login(t, handler, adminID, adminPwd)
	ssd, ok := repo.ProductBySKU("STO-SS-001")
	require.True(t, ok)

	result := registerSale(t, handler, clerk, ssd.ID, "5")
	path := "/api/v1/sales/" + strconv.FormatInt(result.Sale.ID, 10)
	edit := map[string]any{"quantities": map[string]string{strconv.FormatInt(ssd.ID, 10): "2"}}

	rec := call(t, handler, http.MethodPatch, path, clerk, edit)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, handler, http.MethodPatch, path, admin, edit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stock, _ := repo.Stock(ssd.ID)
	assert.Equal(t, 13, stock)

	tooMany := map[string]any{"quantities": map[string]string{strconv.FormatInt(ssd.ID, 10): "16"}}
	rec = call(t, handler, http.MethodPatch, path, admin, tooMany)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, handler, http.MethodDelete, path, clerk, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, handler, http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	stock, _ = repo.Stock(ssd.ID)
	assert.Equal(t, 13, stock)

	rec = call(t, handler, http.MethodGet, path, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditLogsAreAdminOnly(t *testing.T) {
	api, repo := newTestAPI(t)
	handler := api.Handler()
	clerk := login(t, handler, clerkID, clerkPwd)
	admin := login(t, handler, adminID, adminPwd)
	mouse, ok := repo.ProductBySKU("PER-MS-002")
	require.True(t, ok)
	registerSale(t, handler, clerk, mouse.ID, "1")

	rec := call(t, handler, http.MethodGet, "/api/v1/audit-logs", clerk, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, handler, http.MethodGet, "/api/v1/audit-logs", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []domain.AuditLog `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "sale_create", body.Data[0].Action)
	assert.Equal(t, "customer_create", body.Data[1].Action)
}

func TestSaleActionsRejectBadID(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, adminID, adminPwd)

	rec := call(t, handler, http.MethodGet, "/api/v1/sales/abc", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
