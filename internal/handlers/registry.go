package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/link-preview/internal/errx"
	"github.com/serroba/link-preview/internal/events"
	"github.com/serroba/link-preview/internal/messaging"
	"github.com/serroba/link-preview/internal/preview"
	"github.com/serroba/link-preview/internal/shortener"
	"go.uber.org/zap"
)

const (
	msgRegisterFailed   = "failed to register url"
	msgResolveFailed    = "failed to resolve url"
	msgCodeNotFound     = "short code not found"
	msgCodeRequired     = "short code is required"
	msgScreenshotURL    = "url query parameter is required"
	msgScreenshotFailed = "screenshot capture failed"

	pageCacheControl = "public, max-age=60"

	// PublishTimeout bounds the best-effort event publish after a registration.
	PublishTimeout = 2 * time.Second
)

// RegistryHandler serves registration, resolution and ad-hoc screenshots.
type RegistryHandler struct {
	registrar         *shortener.Registrar
	resolver          *shortener.Resolver
	pipeline          shortener.ScreenshotPipeline
	outputName        func() string
	captureTimeout    time.Duration
	publishRegistered messaging.Publish[events.RecordRegisteredEvent]
	logger            *zap.Logger
}

// NewRegistryHandler creates a new registry handler.
func NewRegistryHandler(
	registrar *shortener.Registrar,
	resolver *shortener.Resolver,
	pipeline shortener.ScreenshotPipeline,
	outputName func() string,
	captureTimeout time.Duration,
	publishRegistered messaging.Publish[events.RecordRegisteredEvent],
	logger *zap.Logger,
) *RegistryHandler {
	if captureTimeout <= 0 {
		captureTimeout = shortener.DefaultCaptureTimeout
	}

	return &RegistryHandler{
		registrar:         registrar,
		resolver:          resolver,
		pipeline:          pipeline,
		outputName:        outputName,
		captureTimeout:    captureTimeout,
		publishRegistered: publishRegistered,
		logger:            logger,
	}
}

func (h *RegistryHandler) RegisterURL(ctx context.Context, req *RegisterURLRequest) (*TextResponse, error) {
	result, err := h.registrar.Register(ctx, shortener.Registration{
		CanonicalURL:        req.Body.URL,
		Title:               req.Body.Title,
		Description:         req.Body.Description,
		ImageURL:            req.Body.ImageURL,
		ScreenshotSourceURL: req.Body.ImageScreenshotURL,
	})
	if err != nil {
		return nil, h.toHTTPError(ctx, err, msgRegisterFailed)
	}

	meta := RequestMetaFromContext(ctx)

	publishCtx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	publishCtx = messaging.ContextWithMetadata(publishCtx, map[string]string{
		messaging.MetadataRequestID: meta.RequestID,
	})

	if err := h.publishRegistered(publishCtx, events.NewRecordRegisteredEvent(result)); err != nil {
		h.logger.Error("failed to publish registration event",
			zap.String("code", string(result.Record.Code)),
			zap.Error(err),
		)
	}

	return newTextResponse(result.ShortLink), nil
}

func (h *RegistryHandler) Resolve(ctx context.Context, req *ResolveRequest) (*PageResponse, error) {
	record, err := h.resolver.Resolve(ctx, req.Code)
	if err != nil {
		return nil, h.toHTTPError(ctx, err, msgResolveFailed)
	}

	page, err := preview.Render(record)
	if err != nil {
		return nil, h.toHTTPError(ctx, errx.E("handlers.Resolve", errx.DataCorruption, err), msgResolveFailed)
	}

	return &PageResponse{
		ContentType:  "text/html; charset=utf-8",
		CacheControl: pageCacheControl,
		Body:         page,
	}, nil
}

// ResolveEmpty answers requests for the bare root, which carry no short code.
func (h *RegistryHandler) ResolveEmpty(_ context.Context, _ *struct{}) (*PageResponse, error) {
	return nil, huma.Error400BadRequest(msgCodeRequired)
}

func (h *RegistryHandler) Screenshot(ctx context.Context, req *ScreenshotRequest) (*TextResponse, error) {
	if req.URL == "" {
		return nil, huma.Error400BadRequest(msgScreenshotURL)
	}

	if err := shortener.ValidateURL(req.URL); err != nil {
		return nil, huma.Error400BadRequest("url: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, h.captureTimeout)
	defer cancel()

	name := h.outputName()

	imageURL, err := h.pipeline.Capture(ctx, req.URL, name)
	if err != nil {
		h.logger.Warn("ad-hoc screenshot failed",
			zap.String("source", req.URL),
			zap.String("name", name),
			zap.Error(err),
		)

		return nil, huma.Error502BadGateway(msgScreenshotFailed)
	}

	return newTextResponse(imageURL), nil
}

// toHTTPError maps an error kind to a huma error. Only validation reasons reach
// the client; everything else gets the fixed fallback message.
func (h *RegistryHandler) toHTTPError(ctx context.Context, err error, fallback string) error {
	switch errx.KindOf(err) {
	case errx.InvalidArgument:
		return huma.Error400BadRequest(errx.Reason(err))
	case errx.NotFound:
		return huma.Error404NotFound(msgCodeNotFound)
	default:
		h.logger.Error(fallback,
			zap.String("op", errx.OpOf(err)),
			zap.Stringer("kind", errx.KindOf(err)),
			zap.String("request_id", RequestMetaFromContext(ctx).RequestID),
			zap.Error(err),
		)

		return huma.Error500InternalServerError(fallback)
	}
}
