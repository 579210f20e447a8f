package middleware

import (
	"net/http"

	"github.com/R3E-Network/attestation_layer/internal/errors"
	"github.com/R3E-Network/attestation_layer/internal/httputil"
	"github.com/R3E-Network/attestation_layer/internal/logging"
)

// TraceHeader carries the request trace ID in both directions.
const TraceHeader = "X-Trace-ID"

// TracingMiddleware attaches a trace ID to the request context and response.
// An incoming X-Trace-ID is reused.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" || len(traceID) > 128 {
			traceID = logging.NewTraceID()
		}

		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), traceID)))
	})
}

// RecoveryMiddleware turns a handler panic into a 500 and logs it.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					logger.Error(r.Context(), "handler panic", nil, map[string]interface{}{
						"panic":  p,
						"path":   r.URL.Path,
						"method": r.Method,
					})
					httputil.WriteError(w, errors.Internal("internal error", nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
