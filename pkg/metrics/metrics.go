// Package metrics defines prometheus collectors for virtual table lifecycle,
// in-flight values and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	connectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extras_vtab_connects_total",
			Help: "Total number of virtual table connects by module.",
		},
		[]string{"module"},
	)
	disconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extras_vtab_disconnects_total",
			Help: "Total number of virtual table disconnects by module.",
		},
		[]string{"module"},
	)
	cursorsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "extras_vtab_cursors_open",
			Help: "Number of currently open cursors by module.",
		},
		[]string{"module"},
	)
	filtersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extras_vtab_filters_total",
			Help: "Total number of cursor filter calls by module and plan.",
		},
		[]string{"module", "plan"},
	)
	rowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extras_vtab_rows_total",
			Help: "Total number of cursor advances by module.",
		},
		[]string{"module"},
	)
	valuesInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extras_value_inflight",
			Help: "Number of text and blob results owned by the database engine.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extras_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extras_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		connectsTotal,
		disconnectsTotal,
		cursorsOpen,
		filtersTotal,
		rowsTotal,
		valuesInflight,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Connected counts a table connect.
func Connected(module string) { connectsTotal.WithLabelValues(module).Inc() }

// Disconnected counts a table disconnect.
func Disconnected(module string) { disconnectsTotal.WithLabelValues(module).Inc() }

// CursorOpened increments the open cursors gauge.
func CursorOpened(module string) { cursorsOpen.WithLabelValues(module).Inc() }

// CursorClosed decrements the open cursors gauge.
func CursorClosed(module string) { cursorsOpen.WithLabelValues(module).Dec() }

// Filtered counts a filter call with the plan it ran.
func Filtered(module, plan string) { filtersTotal.WithLabelValues(module, plan).Inc() }

// Advanced counts a cursor advance.
func Advanced(module string) { rowsTotal.WithLabelValues(module).Inc() }

// SetInflight sets the in-flight values gauge. Signature fits value.WithObserver.
func SetInflight(n int) { valuesInflight.Set(float64(n)) }

// HTTP is a middleware counting requests and their latency by path.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, code).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, code).Observe(time.Since(start).Seconds())
	})
}
