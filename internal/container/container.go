package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/link-preview/internal/messaging"
	"github.com/serroba/link-preview/internal/shortener"
	"github.com/serroba/link-preview/internal/store"
	"go.uber.org/zap"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

const connectTimeout = 5 * time.Second

type Options struct {
	Port                int    `default:"8888"           help:"Port to listen on"                                   short:"p"`
	BaseURL             string `help:"Public base URL for short links (default http://localhost:<port>)"`
	Store               string `default:"memory"         help:"Record store backend"`
	RedisAddr           string `default:"localhost:6379" help:"Redis server address"                                short:"r"`
	DatabaseURL         string `help:"Postgres connection string"`
	CacheTTL            int    `default:"300"            help:"Resolve cache TTL in seconds (0 disables the cache)"`
	SlugMaxAttempts     int    `default:"5"              help:"Slug allocation attempts before giving up"`
	RegisterTimeoutMs   int    `default:"8000"           help:"Registration deadline in milliseconds"`
	ScreenshotEndpoint  string `help:"Screenshot service endpoint (empty disables screenshots)"`
	ScreenshotTimeoutMs int    `default:"5000"           help:"Screenshot deadline in milliseconds"`
	Events              bool   `default:"false"          help:"Publish record events to Redis streams"`
	ConsumerGroup       string `default:"registry"       help:"Redis stream consumer group"`
	LogFormat           string `default:"json"           help:"Log output format"`
	LogLevel            string `default:"info"           help:"Minimum log level"`
}

// PublicBaseURL returns the configured base URL or the local default.
func (o *Options) PublicBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

// CacheEnabled reports whether resolved records are cached in Redis.
// The memory store is never cached.
func (o *Options) CacheEnabled() bool {
	return o.Store != StoreMemory && o.CacheTTL > 0
}

// UsesRedis reports whether any component needs a Redis connection.
func (o *Options) UsesRedis() bool {
	return o.Store == StoreRedis || o.CacheEnabled() || o.Events
}

// LoggerPackage provides the application logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})
}

// NewLogger builds a zap logger. The json format uses the production
// configuration, console the development one.
func NewLogger(format, level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config

	switch format {
	case "json", "":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	cfg.Level = lvl

	return cfg.Build()
}

// RedisPackage provides the Redis client. Nothing connects until a component asks for it.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		opts := do.MustInvoke[*Options](i)

		return redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
		}), nil
	})
}

// PostgresPackage provides the Postgres connection pool.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*pgxpool.Pool, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("database url is required for the %s store", StorePostgres)
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		return pool, nil
	})
}

// RepositoryPackage provides the record store selected by the options, wrapped
// in the Redis read-through cache when enabled.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*store.RedisCache, error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.CacheEnabled() {
			return nil, nil
		}

		backend, err := newBackend(i, opts)
		if err != nil {
			return nil, err
		}

		return store.NewRedisCache(
			backend,
			do.MustInvoke[*redis.Client](i),
			time.Duration(opts.CacheTTL)*time.Second,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (shortener.Store, error) {
		if cache := do.MustInvoke[*store.RedisCache](i); cache != nil {
			return cache, nil
		}

		return newBackend(i, do.MustInvoke[*Options](i))
	})
}

func newBackend(i *do.Injector, opts *Options) (shortener.Store, error) {
	switch opts.Store {
	case StoreMemory:
		return store.NewMemoryStore(), nil
	case StoreRedis:
		return store.NewRedisStore(do.MustInvoke[*redis.Client](i)), nil
	case StorePostgres:
		pg := store.NewPostgresStore(do.MustInvoke[*pgxpool.Pool](i))

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}

		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Store)
	}
}

// PublisherGroupPackage provides the Redis stream publisher group.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     client,
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}
