package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteLabelCollapsesIDs(t *testing.T) {
	assert.Equal(t, "/api/v1/sales/:id", RouteLabel("/api/v1/sales/42"))
	assert.Equal(t, "/api/v1/sales", RouteLabel("/api/v1/sales"))
	assert.Equal(t, "/healthz", RouteLabel("/healthz"))
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.SaleRegistered(3)
	r.SaleRegistered(2)
	r.SaleRejected("insufficient_stock")
	r.ObserveHTTP(http.MethodGet, "/api/v1/sales/9", http.StatusOK, 10*time.Millisecond)
	r.CatalogLookup(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.salesTotal.WithLabelValues("registered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.salesTotal.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.unitsSold))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/api/v1/sales/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.catalogLookup.WithLabelValues("hit")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SaleRegistered(1)
		r.SaleRejected("x")
		r.SaleChanged("update", "ok")
		r.ObserveHTTP("GET", "/", 200, time.Millisecond)
		r.CatalogLookup(false)
	})
}

func TestHandlerExposesSeries(t *testing.T) {
	r := New()
	r.SaleRegistered(1)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sales_registered_total")
}
