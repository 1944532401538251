package container

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/link-preview/internal/events"
	"github.com/serroba/link-preview/internal/handlers"
	"github.com/serroba/link-preview/internal/health"
	"github.com/serroba/link-preview/internal/messaging"
	"github.com/serroba/link-preview/internal/middleware"
	"github.com/serroba/link-preview/internal/screenshot"
	"github.com/serroba/link-preview/internal/shortener"
	"github.com/serroba/link-preview/internal/store"
	"go.uber.org/zap"
)

const outputNameLength = 21

// ScreenshotPackage provides the screenshot pipeline. An empty endpoint
// disables it and every capture fails, so registrations fall back.
func ScreenshotPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (shortener.ScreenshotPipeline, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.ScreenshotEndpoint == "" {
			logger.Info("screenshot pipeline disabled")

			return screenshot.Disabled{}, nil
		}

		httpClient := &http.Client{Timeout: time.Duration(opts.ScreenshotTimeoutMs) * time.Millisecond}

		return screenshot.NewClient(opts.ScreenshotEndpoint, httpClient, logger), nil
	})
}

// EventsPackage provides the record-registered publish function. With events
// disabled every publish is dropped.
func EventsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (messaging.Publish[events.RecordRegisteredEvent], error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.Events {
			return messaging.NoopPublish[events.RecordRegisteredEvent](), nil
		}

		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return messaging.NewPublishFunc[events.RecordRegisteredEvent](group.Publisher(), events.TopicRecordRegistered), nil
	})
}

// RegistryPackage provides the registrar, resolver and their HTTP handler.
func RegistryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*shortener.Registrar, error) {
		opts := do.MustInvoke[*Options](i)

		generate, err := shortener.NewHexTokenGenerator()
		if err != nil {
			return nil, fmt.Errorf("failed to create slug generator: %w", err)
		}

		recordStore := do.MustInvoke[shortener.Store](i)
		allocator := shortener.NewAllocator(recordStore, generate, opts.SlugMaxAttempts)

		return shortener.NewRegistrar(
			recordStore,
			allocator,
			do.MustInvoke[shortener.ScreenshotPipeline](i),
			shortener.RegistrarConfig{
				BaseURL:        opts.PublicBaseURL(),
				Timeout:        time.Duration(opts.RegisterTimeoutMs) * time.Millisecond,
				CaptureTimeout: time.Duration(opts.ScreenshotTimeoutMs) * time.Millisecond,
			},
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*shortener.Resolver, error) {
		return shortener.NewResolver(do.MustInvoke[shortener.Store](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*handlers.RegistryHandler, error) {
		opts := do.MustInvoke[*Options](i)

		outputName, err := nanoid.Standard(outputNameLength)
		if err != nil {
			return nil, fmt.Errorf("failed to create output name generator: %w", err)
		}

		return handlers.NewRegistryHandler(
			do.MustInvoke[*shortener.Registrar](i),
			do.MustInvoke[*shortener.Resolver](i),
			do.MustInvoke[shortener.ScreenshotPipeline](i),
			outputName,
			time.Duration(opts.ScreenshotTimeoutMs)*time.Millisecond,
			do.MustInvoke[messaging.Publish[events.RecordRegisteredEvent]](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// HTTPPackage provides the router and the huma API with every route registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)

		handlers.UseErrorMapping()

		api := humachi.New(router, huma.DefaultConfig("Link Preview", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api), middleware.AccessLog(logger))

		handlers.RegisterRoutes(api, do.MustInvoke[*handlers.RegistryHandler](i))
		health.RegisterRoutes(api, health.NewHandler(healthCheckers(i)))

		return api, nil
	})
}

func healthCheckers(i *do.Injector) map[string]health.Checker {
	opts := do.MustInvoke[*Options](i)
	checkers := map[string]health.Checker{}

	if opts.UsesRedis() {
		checkers["redis"] = health.NewRedisChecker(do.MustInvoke[*redis.Client](i))
	}

	if opts.Store == StorePostgres {
		checkers["postgres"] = health.NewPostgresChecker(do.MustInvoke[*pgxpool.Pool](i))
	}

	return checkers
}

// ConsumerGroupPackage provides the consumer group that processes record events.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: opts.ConsumerGroup,
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}

		// Only a live cache needs refreshing; the processor must see a nil
		// interface rather than a nil pointer.
		var refresher events.CacheRefresher
		if cache := do.MustInvoke[*store.RedisCache](i); cache != nil {
			refresher = cache
		}

		processor := events.NewProcessor(refresher, logger)

		group := messaging.NewConsumerGroup(opts.ConsumerGroup, subscriber, logger)
		group.Add(messaging.NewConsumer[events.RecordRegisteredEvent](
			subscriber,
			events.TopicRecordRegistered,
			processor.HandleRecordRegistered,
			logger,
		))

		return group, nil
	})
}
