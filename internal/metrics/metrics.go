// Package metrics exposes Prometheus collectors for HTTP traffic and
// inventory movements.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"sweet-shop/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so several servers can coexist in one process
type Collector struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	unitsPurchased *prometheus.CounterVec
	unitsRestocked *prometheus.CounterVec
	purchases      prometheus.Counter
	restocks       prometheus.Counter
}

// NewCollector creates a collector with every metric registered under namespace
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "sweet_shop"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	c.purchases = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "purchases_total",
		Help:      "Number of successful purchases.",
	})

	c.restocks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "restocks_total",
		Help:      "Number of successful restocks.",
	})

	c.unitsPurchased = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "units_purchased_total",
			Help:      "Units sold, by category.",
		},
		[]string{"category"},
	)

	c.unitsRestocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "units_restocked_total",
			Help:      "Units added to stock, by category.",
		},
		[]string{"category"},
	)

	c.registry.MustRegister(
		c.httpInFlight,
		c.httpRequests,
		c.httpDuration,
		c.purchases,
		c.restocks,
		c.unitsPurchased,
		c.unitsRestocked,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	return c
}

// Registry returns the registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the registered metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latencies labelled by chi route pattern
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		method := strings.ToUpper(r.Method)

		c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// routePattern keeps label cardinality bounded by using the matched pattern
// instead of the raw path
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// SweetPurchased implements service.InventoryObserver
func (c *Collector) SweetPurchased(sweet *domain.Sweet, quantity int) {
	c.purchases.Inc()
	c.unitsPurchased.WithLabelValues(categoryLabel(sweet)).Add(float64(quantity))
}

// SweetRestocked implements service.InventoryObserver
func (c *Collector) SweetRestocked(sweet *domain.Sweet, quantity int) {
	c.restocks.Inc()
	c.unitsRestocked.WithLabelValues(categoryLabel(sweet)).Add(float64(quantity))
}

func categoryLabel(sweet *domain.Sweet) string {
	if sweet == nil || sweet.Category == "" {
		return "unknown"
	}
	return strings.ToLower(sweet.Category)
}
