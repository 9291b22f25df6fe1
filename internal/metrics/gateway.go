package metrics

import (
	"strconv"
	"time"

	"github.com/namelens/ascgate/internal/observability"
)

// Gateway metrics following Prometheus conventions
const (
	RequestsTotal       = "gateway_requests_total"
	RequestDuration     = "gateway_request_duration_ms"
	RetriesTotal        = "gateway_retries_total"
	ThrottleWaitsTotal  = "gateway_throttle_waits_total"
	TokenRefreshTotal   = "gateway_token_refresh_total"
	UploadPartsTotal    = "gateway_upload_parts_total"
	UploadPartSizeBytes = "gateway_upload_part_size_bytes"
	UploadsTotal        = "gateway_uploads_total"
)

// RecordRequest records one network attempt against the remote API.
// status is 0 when the attempt failed before a response arrived.
func RecordRequest(method string, status int, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	labels := map[string]string{
		"method": method,
		"status": strconv.Itoa(status),
	}
	_ = observability.TelemetrySystem.Counter(RequestsTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(RequestDuration, duration, labels)
}

// RecordRetry records a retry decision; reason is the failure kind that caused it.
func RecordRetry(reason string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RetriesTotal,
			1,
			map[string]string{"reason": reason},
		)
	}
}

// RecordThrottleWait records a wait imposed by the local window ("local")
// or by the server ("server").
func RecordThrottleWait(source string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ThrottleWaitsTotal,
			1,
			map[string]string{"source": source},
		)
	}
}

// RecordTokenRefresh records a signing attempt.
func RecordTokenRefresh(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			TokenRefreshTotal,
			1,
			map[string]string{"status": status},
		)
	}
}

// RecordUploadPart records one byte-range transfer.
func RecordUploadPart(status int, size int64) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		UploadPartsTotal,
		1,
		map[string]string{"status": strconv.Itoa(status)},
	)
	_ = observability.TelemetrySystem.Gauge(UploadPartSizeBytes, float64(size), nil)
}

// RecordUpload records the outcome of a whole upload.
func RecordUpload(kind string, state string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			UploadsTotal,
			1,
			map[string]string{
				"kind":  kind,
				"state": state,
			},
		)
	}
}
