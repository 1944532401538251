package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusOK        = "ok"
	statusDegraded  = "degraded"
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	pingTimeout = 2 * time.Second
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PostgresChecker adapts pgxpool.Pool to Checker interface.
type PostgresChecker struct {
	pool *pgxpool.Pool
}

// NewPostgresChecker creates a new PostgreSQL health checker.
func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresChecker) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Handler handles health check operations.
type Handler struct {
	checkers map[string]Checker
}

// NewHandler creates a health handler over named dependency checkers.
func NewHandler(checkers map[string]Checker) *Handler {
	return &Handler{checkers: checkers}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status       string            `doc:"ok or degraded"            json:"status"`
		Dependencies map[string]string `doc:"Per-dependency ping result" json:"dependencies,omitempty"`
	}
}

// Check performs a health check of the application and its dependencies.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp := &Response{}
	resp.Body.Status = statusOK

	if len(h.checkers) > 0 {
		resp.Body.Dependencies = make(map[string]string, len(h.checkers))
	}

	for name, checker := range h.checkers {
		if err := checker.Ping(ctx); err != nil {
			resp.Body.Dependencies[name] = statusUnhealthy
			resp.Body.Status = statusDegraded

			continue
		}

		resp.Body.Dependencies[name] = statusHealthy
	}

	return resp, nil
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Health"},
	}, h.Check)
}
