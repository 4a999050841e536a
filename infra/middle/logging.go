package middle

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mstgnz/hyperpay/infra/logger"
)

// RequestIDHeader carries the request id in and out
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request an id, reusing the inbound header when present
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the request id assigned by RequestID
func GetRequestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}

// RequestLogger logs one line per request. Query strings are left out since
// return URLs carry gateway identifiers.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		fields := map[string]any{
			"method":        r.Method,
			"path":          r.URL.Path,
			"status":        status,
			"bytes":         ww.BytesWritten(),
			"processing_ms": time.Since(start).Milliseconds(),
			"client_ip":     GetClientIP(r),
		}

		ctx := logger.LogContext{RequestID: GetRequestID(r.Context()), Fields: fields}
		switch {
		case status >= 500:
			logger.Error("Request failed", nil, ctx)
		case status >= 400:
			logger.Warn("Request rejected", ctx)
		default:
			logger.Info("Request handled", ctx)
		}
	})
}
