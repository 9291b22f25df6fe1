package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/observability"
)

// statusRecorder captures the status and body size written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.written += int64(n)
	return n, err
}

// routeGroups collapses request paths into bounded endpoint labels when no
// chi pattern is available. Order matters: first prefix match wins.
var routeGroups = []struct {
	prefix   string
	exact    bool
	endpoint string
}{
	{prefix: "/", exact: true, endpoint: "/"},
	{prefix: "/version", exact: true, endpoint: "/version"},
	{prefix: "/metrics", exact: true, endpoint: "/metrics"},
	{prefix: "/uploads", exact: true, endpoint: "/uploads"},
	{prefix: "/ratelimit", exact: true, endpoint: "/ratelimit"},
	{prefix: "/health", endpoint: "/health/*"},
	{prefix: "/uploads/", endpoint: "/uploads/{id}"},
	{prefix: "/v1/", endpoint: "/v1/*"},
	{prefix: "/admin/", endpoint: "/admin/*"},
}

// EndpointLabel returns the chi route pattern, falling back to routeGroups.
// The result is a bounded label safe to use in metric tags.
func EndpointLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	for _, group := range routeGroups {
		if group.exact && path == group.prefix {
			return group.endpoint
		}
		if !group.exact && strings.HasPrefix(path, group.prefix) {
			return group.endpoint
		}
	}
	return "/unknown"
}

// errorClass labels a failed response. 429 is kept apart from other client
// errors because it reflects remote throttling passed through the gateway.
func errorClass(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "throttled"
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return ""
	}
}

// RequestMetrics emits per-request counters, duration and size series and
// logs one line per request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		obs := requestObservation{
			method:   r.Method,
			endpoint: EndpointLabel(r),
			status:   rec.status,
			duration: time.Since(start),
			reqSize:  max(r.ContentLength, 0),
			respSize: rec.written,
		}
		obs.emit()

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", obs.method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", obs.endpoint),
				zap.Int("status", obs.status),
				zap.Duration("duration", obs.duration),
				zap.Int64("request_size", obs.reqSize),
				zap.Int64("response_size", obs.respSize),
				zap.String("request_id", GetRequestID(r.Context())),
			)
		}
	})
}

type requestObservation struct {
	method   string
	endpoint string
	status   int
	duration time.Duration
	reqSize  int64
	respSize int64
}

func (o requestObservation) emit() {
	sys := observability.TelemetrySystem
	route := map[string]string{"method": o.method, "endpoint": o.endpoint}
	labels := map[string]string{"method": o.method, "endpoint": o.endpoint, "status": strconv.Itoa(o.status)}

	_ = sys.Counter("http_requests_total", 1, labels)
	_ = sys.Histogram("http_request_duration_ms", o.duration, labels)
	_ = sys.Gauge("http_request_size_bytes", float64(o.reqSize), route)
	_ = sys.Gauge("http_response_size_bytes", float64(o.respSize), route)

	if class := errorClass(o.status); class != "" {
		errLabels := map[string]string{
			"method":     o.method,
			"endpoint":   o.endpoint,
			"status":     strconv.Itoa(o.status),
			"error_type": class,
		}
		_ = sys.Counter("http_errors_total", 1, errLabels)
	}
}
