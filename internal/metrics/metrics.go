// Package metrics exposes snapshot, refresh and request metrics on a private
// prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/orderrisk/internal/inspection"
	"github.com/sells-group/orderrisk/internal/resilience"
)

// Registry holds the application collectors.
type Registry struct {
	reg *prometheus.Registry

	SnapshotFetched     prometheus.Gauge
	SnapshotRecords     prometheus.Gauge
	SnapshotRestaurants prometheus.Gauge
	SnapshotInstalls    *prometheus.CounterVec
	RefreshFailures     prometheus.Counter
	BreakerState        prometheus.Gauge
	OrdersLoaded        prometheus.Gauge
	Requests            *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// NewRegistry creates and registers every collector.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		SnapshotFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderrisk_inspection_snapshot_fetched_timestamp_seconds",
			Help: "Unix time the installed inspection snapshot was fetched.",
		}),
		SnapshotRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderrisk_inspection_snapshot_records",
			Help: "Inspection records in the installed snapshot.",
		}),
		SnapshotRestaurants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderrisk_inspection_snapshot_restaurants",
			Help: "Distinct CAMIS values in the installed snapshot.",
		}),
		SnapshotInstalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderrisk_inspection_snapshot_installs_total",
			Help: "Snapshots installed, by source.",
		}, []string{"source"}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderrisk_inspection_refresh_failures_total",
			Help: "Inspection fetches that failed.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderrisk_inspection_breaker_state",
			Help: "Provider circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}),
		OrdersLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderrisk_orders_loaded",
			Help: "Orders in the loaded order set.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderrisk_http_requests_total",
			Help: "HTTP requests, by route pattern and status code.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orderrisk_http_request_duration_seconds",
			Help:    "HTTP request latency, by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	r.reg.MustRegister(
		r.SnapshotFetched, r.SnapshotRecords, r.SnapshotRestaurants, r.SnapshotInstalls,
		r.RefreshFailures, r.BreakerState, r.OrdersLoaded, r.Requests, r.RequestDuration,
	)
	return r
}

// Handler serves the registry in the prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// SnapshotInstalled implements inspection.Observer.
func (r *Registry) SnapshotInstalled(s *inspection.Snapshot, source string) {
	r.SnapshotFetched.Set(float64(s.FetchedAt.Unix()))
	r.SnapshotRecords.Set(float64(len(s.Records)))
	r.SnapshotRestaurants.Set(float64(s.Restaurants()))
	r.SnapshotInstalls.WithLabelValues(source).Inc()
}

// RefreshFailed implements inspection.Observer.
func (r *Registry) RefreshFailed(error) {
	r.RefreshFailures.Inc()
}

// BreakerChanged is a resilience.CircuitBreakerConfig OnStateChange hook.
func (r *Registry) BreakerChanged(_, to resilience.CircuitState) {
	r.BreakerState.Set(float64(to))
}

// Middleware records request counts and latency by chi route pattern.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		r.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
