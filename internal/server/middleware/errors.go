package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/metrics"
	"github.com/namelens/ascgate/internal/observability"
)

// Recovery converts panics into a 500 error envelope carrying the request
// ID. The stack goes to the server log only; the response carries the
// redacted panic value.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			requestID := GetRequestID(r.Context())
			message := core.Redact(fmt.Sprintf("panic: %v", recovered))
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Handler panicked",
					zap.String("request_id", requestID),
					zap.String("path", r.URL.Path),
					zap.String("panic", message),
					zap.ByteString("stack", debug.Stack()),
				)
			}
			metrics.RecordPanic()

			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", message).WithCorrelationID(requestID)
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)
			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

// ErrorResponse is the JSON body of every error returned by the server.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// writeErrorResponse mirrors the server package writer; it lives here to
// avoid an import cycle.
func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   envelope.Context,
			RequestID: envelope.CorrelationID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
