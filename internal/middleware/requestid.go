package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"childgen/internal/infra"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

const maxRequestIDLength = 128

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" || len(rid) > maxRequestIDLength {
			rid = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LoggerFromContext returns the request-scoped logger installed by Logger,
// or fallback when none is present.
func LoggerFromContext(ctx context.Context, fallback *infra.Logger) *infra.Logger {
	if l, ok := ctx.Value(loggerKey).(*infra.Logger); ok && l != nil {
		return l
	}
	return fallback
}
