package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/serroba/link-preview/internal/handlers"
	"github.com/serroba/link-preview/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testOutput struct {
	Body string `json:"body"`
}

func setupTestAPI(t *testing.T) (*chi.Mux, huma.API) {
	t.Helper()

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.RequestMeta(api))

	return router, api
}

func TestRequestMeta(t *testing.T) {
	t.Run("extracts user-agent and client ip", func(t *testing.T) {
		router, api := setupTestAPI(t)

		ctxChan := make(chan context.Context, 1)

		huma.Get(api, "/test", func(ctx context.Context, _ *struct{}) (*testOutput, error) {
			ctxChan <- ctx

			return &testOutput{Body: "ok"}, nil
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("User-Agent", "TestAgent/1.0")
		req.Header.Set("X-Forwarded-For", "192.168.1.1, 10.0.0.1")

		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		meta := handlers.RequestMetaFromContext(<-ctxChan)
		assert.Equal(t, "TestAgent/1.0", meta.UserAgent)
		assert.Equal(t, "192.168.1.1", meta.ClientIP)
	})

	t.Run("generates request id and echoes it", func(t *testing.T) {
		router, api := setupTestAPI(t)

		ctxChan := make(chan context.Context, 1)

		huma.Get(api, "/test", func(ctx context.Context, _ *struct{}) (*testOutput, error) {
			ctxChan <- ctx

			return &testOutput{Body: "ok"}, nil
		})

		w := httptest.NewRecorder()

		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		meta := handlers.RequestMetaFromContext(<-ctxChan)
		_, err := uuid.Parse(meta.RequestID)
		require.NoError(t, err)
		assert.Equal(t, meta.RequestID, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("reuses incoming request id", func(t *testing.T) {
		router, api := setupTestAPI(t)

		huma.Get(api, "/test", func(_ context.Context, _ *struct{}) (*testOutput, error) {
			return &testOutput{Body: "ok"}, nil
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(middleware.RequestIDHeader, "upstream-id")

		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, "upstream-id", w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("extracts IP from X-Forwarded-For with single IP", func(t *testing.T) {
		router, api := setupTestAPI(t)

		huma.Get(api, "/test", func(_ context.Context, _ *struct{}) (*testOutput, error) {
			return &testOutput{Body: "ok"}, nil
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Forwarded-For", "192.168.1.1")

		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("extracts first IP from X-Forwarded-For with multiple IPs", func(t *testing.T) {
		router, api := setupTestAPI(t)

		huma.Get(api, "/test", func(_ context.Context, _ *struct{}) (*testOutput, error) {
			return &testOutput{Body: "ok"}, nil
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Forwarded-For", "192.168.1.1, 10.0.0.1, 172.16.0.1")

		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("extracts IP from X-Real-IP when X-Forwarded-For is absent", func(t *testing.T) {
		router, api := setupTestAPI(t)

		huma.Get(api, "/test", func(_ context.Context, _ *struct{}) (*testOutput, error) {
			return &testOutput{Body: "ok"}, nil
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Real-IP", "10.0.0.1")

		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("falls back to host when no IP headers present", func(t *testing.T) {
		router, api := setupTestAPI(t)

		huma.Get(api, "/test", func(_ context.Context, _ *struct{}) (*testOutput, error) {
			return &testOutput{Body: "ok"}, nil
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)

		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.RequestMeta(api), middleware.AccessLog(zap.New(core)))

	huma.Get(api, "/missing", func(_ context.Context, _ *struct{}) (*testOutput, error) {
		return nil, huma.Error404NotFound("nope")
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-9")

	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/missing", fields["path"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, "req-9", fields["request_id"])
}
