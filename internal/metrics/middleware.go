package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// OperationOther labels routes outside the flag API, and unmatched requests.
const OperationOther = "other"

// operations maps "METHOD pattern" to the flag operation a route performs.
var operations = map[string]string{
	"POST /v1/entities/{id}/flag":        "mark",
	"DELETE /v1/entities/{id}/flag":      "unmark",
	"PUT /v1/entities/{id}/flag":         "set",
	"GET /v1/entities/{id}/flag":         "status",
	"POST /v1/entities/{id}/flag/toggle": "toggle",
	"POST /v1/entities/{id}/delete":      "entity_delete",
	"POST /v1/entities/{id}/restore":     "entity_restore",
	"POST /v1/entities/{id}/purge":       "entity_purge",
	"GET /v1/flagged":                    "list",
	"GET /v1/scopes/{scope}/flagged":     "list_scope",
	"POST /v1/admin/reindex":             "reindex",
	"POST /v1/admin/reindex/{id}":        "reindex_entity",
	"GET /health":                        "health",
}

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flagdex",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagdex",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "operation", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
}

// Operation names the flag operation the routed request performed.
// Call it after the router has matched; before that every request is OperationOther.
func Operation(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return OperationOther
	}
	if op, ok := operations[r.Method+" "+rctx.RoutePattern()]; ok {
		return op
	}
	return OperationOther
}

// Middleware records HTTP request duration and count, labeled by flag operation.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(ww.status)
			op := Operation(r)

			// Use chi route pattern for path normalization
			path := normalizePath(chi.RouteContext(r.Context()).RoutePattern())

			httpRequestDuration.WithLabelValues(op, status).Observe(duration)
			httpRequestsTotal.WithLabelValues(r.Method, path, op, status).Inc()
		})
	}
}

// normalizePath normalizes paths to prevent high cardinality in metrics labels.
func normalizePath(path string) string {
	if path == "" {
		return "unknown"
	}
	return path
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}
