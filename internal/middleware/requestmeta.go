package middleware

import (
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/serroba/link-preview/internal/handlers"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestMeta is a middleware that adds request id, client IP and user-agent to the request context.
// An incoming X-Request-ID is reused; otherwise a new one is generated. The id is echoed back.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			RequestID: requestID(ctx),
			ClientIP:  extractClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
		}

		ctx.SetHeader(RequestIDHeader, meta.RequestID)

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

// AccessLog logs one line per request once the handler has finished.
func AccessLog(logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()

		next(ctx)

		meta := handlers.RequestMetaFromContext(ctx.Context())

		logger.Info("request",
			zap.String("method", ctx.Method()),
			zap.String("path", ctx.URL().Path),
			zap.Int("status", ctx.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", meta.RequestID),
			zap.String("client_ip", meta.ClientIP),
		)
	}
}

func requestID(ctx huma.Context) string {
	if id := strings.TrimSpace(ctx.Header(RequestIDHeader)); id != "" && len(id) <= maxRequestIDLength {
		return id
	}

	return uuid.NewString()
}

func extractClientIP(ctx huma.Context) string {
	// Check X-Forwarded-For first (may contain multiple IPs)
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		// Take the first IP (original client)
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP
	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to remote addr
	host := ctx.RemoteAddr()
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}

	return host
}
