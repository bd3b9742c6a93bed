package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ExpenseCertify/api/constants"
	"ExpenseCertify/internal/logger"
)

type contextKey string

const RequestIDKey contextKey = "requestID"

const headerRequestID = "X-Request-ID"

// GetRequestIDFromCtx returns the id assigned by RequestContext.
func GetRequestIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestContext tags the request with an id, reusing the caller's
// X-Request-ID when present, and echoes it on the response.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
	})
}

// Recoverer turns a handler panic into a 500 envelope.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Component("api").WithFields(logrus.Fields{
					"request_id": GetRequestIDFromCtx(r.Context()),
					"path":       r.URL.Path,
					"panic":      rec,
				}).Error("handler panicked")
				RespondWithError(w, http.StatusInternalServerError, constants.ErrInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// AccessLog logs one line per request with status and latency.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		entry := logger.Component("api").WithFields(logrus.Fields{
			"request_id": GetRequestIDFromCtx(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"client":     extractClientIP(r),
			"status":     rw.statusCode,
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
		if rw.statusCode >= 500 {
			entry.Error("request served")
			return
		}
		entry.Info("request served")
	})
}
