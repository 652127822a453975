package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns every collector the backend exports. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	salesTotal    *prometheus.CounterVec
	saleEdits     *prometheus.CounterVec
	unitsSold     prometheus.Counter
	catalogLookup *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		salesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_registered_total",
			Help: "Sale registration attempts by outcome.",
		}, []string{"outcome"}),
		saleEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sale_edits_total",
			Help: "Sale edit and delete attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		unitsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sale_units_sold_total",
			Help: "Units decremented from inventory by registered sales.",
		}),
		catalogLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_lookups_total",
			Help: "Sellable catalog lookups by cache result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpDuration,
		r.salesTotal,
		r.saleEdits,
		r.unitsSold,
		r.catalogLookup,
	)
	return r
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveHTTP(method string, path string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	route := RouteLabel(path)
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Recorder) SaleRegistered(units int) {
	if r == nil {
		return
	}
	r.salesTotal.WithLabelValues("registered").Inc()
	r.unitsSold.Add(float64(units))
}

func (r *Recorder) SaleRejected(reason string) {
	if r == nil {
		return
	}
	r.salesTotal.WithLabelValues(reason).Inc()
}

func (r *Recorder) SaleChanged(operation string, outcome string) {
	if r == nil {
		return
	}
	r.saleEdits.WithLabelValues(operation, outcome).Inc()
}

func (r *Recorder) CatalogLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.catalogLookup.WithLabelValues(result).Inc()
}

// RouteLabel collapses numeric path segments so per-sale URLs share a series.
func RouteLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
