package shortener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/serroba/link-preview/internal/errx"
	"go.uber.org/zap"
)

const (
	// DefaultRegisterTimeout bounds a whole registration, screenshot included.
	DefaultRegisterTimeout = 8 * time.Second
	// DefaultCaptureTimeout bounds the screenshot step of a registration.
	DefaultCaptureTimeout = 5 * time.Second

	releaseTimeout = 2 * time.Second
)

var (
	errURLRequired   = errors.New("url is required")
	errImageRequired = errors.New("imageUrl or imageScreenshotUrl is required")
	errEmptyCapture  = errors.New("screenshot pipeline returned no image url")
)

// ScreenshotPipeline renders sourceURL and hosts the image under outputName.
type ScreenshotPipeline interface {
	Capture(ctx context.Context, sourceURL, outputName string) (string, error)
}

// Registration is a request to map a canonical URL to a short code.
type Registration struct {
	CanonicalURL        string
	Title               string
	Description         string
	ImageURL            string
	ScreenshotSourceURL string
}

// Validate checks the registration and returns the dedup key of its URL.
func (r Registration) Validate() (URLKey, error) {
	if strings.TrimSpace(r.CanonicalURL) == "" {
		return "", errURLRequired
	}

	if err := ValidateURL(r.CanonicalURL); err != nil {
		return "", fmt.Errorf("url: %w", err)
	}

	if r.ImageURL == "" && r.ScreenshotSourceURL == "" {
		return "", errImageRequired
	}

	if r.ImageURL != "" {
		if err := ValidateURL(r.ImageURL); err != nil {
			return "", fmt.Errorf("imageUrl: %w", err)
		}
	}

	if r.ScreenshotSourceURL != "" {
		if err := ValidateURL(r.ScreenshotSourceURL); err != nil {
			return "", fmt.Errorf("imageScreenshotUrl: %w", err)
		}
	}

	return NewURLKey(r.CanonicalURL)
}

// Result is the outcome of a successful registration.
type Result struct {
	Record    *Record
	ShortLink string
	Created   bool
}

// RegistrarConfig tunes a Registrar.
type RegistrarConfig struct {
	BaseURL        string
	Timeout        time.Duration
	CaptureTimeout time.Duration
}

// Registrar registers canonical URLs, deduplicating by URL key.
type Registrar struct {
	store          Store
	allocator      *Allocator
	pipeline       ScreenshotPipeline
	baseURL        string
	timeout        time.Duration
	captureTimeout time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

// NewRegistrar creates a registrar. The capture timeout is kept below the
// overall timeout so a slow pipeline still leaves room to persist.
func NewRegistrar(
	store Store,
	allocator *Allocator,
	pipeline ScreenshotPipeline,
	cfg RegistrarConfig,
	logger *zap.Logger,
) *Registrar {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRegisterTimeout
	}

	captureTimeout := cfg.CaptureTimeout
	if captureTimeout <= 0 {
		captureTimeout = DefaultCaptureTimeout
	}

	if captureTimeout >= timeout {
		captureTimeout = timeout / 2
	}

	return &Registrar{
		store:          store,
		allocator:      allocator,
		pipeline:       pipeline,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		timeout:        timeout,
		captureTimeout: captureTimeout,
		now:            time.Now,
		logger:         logger,
	}
}

// ShortLink builds the public link for code.
func (r *Registrar) ShortLink(code Code) string {
	return r.baseURL + "/" + string(code)
}

// Register creates the record for an unseen URL or refreshes the metadata of a
// known one. The short code of a known URL never changes.
func (r *Registrar) Register(ctx context.Context, reg Registration) (*Result, error) {
	const op = "shortener.Registrar.Register"

	key, err := reg.Validate()
	if err != nil {
		return nil, errx.E(op, errx.InvalidArgument, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	matches, err := r.store.FindByURLKey(ctx, key)
	if err != nil {
		return nil, errx.E(op, errx.UpstreamFailure, err)
	}

	switch len(matches) {
	case 0:
		return r.create(ctx, reg, key)
	case 1:
		existing := matches[0]
		image := r.capture(ctx, reg.ScreenshotSourceURL, existing.Code, reg.ImageURL)

		return r.update(ctx, existing, reg, image)
	default:
		return nil, errx.E(op, errx.DataCorruption,
			fmt.Errorf("%d records share url key %s", len(matches), key))
	}
}

func (r *Registrar) create(ctx context.Context, reg Registration, key URLKey) (*Result, error) {
	const op = "shortener.Registrar.create"

	code, err := r.allocator.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	record := &Record{
		Code:               code,
		CanonicalURL:       reg.CanonicalURL,
		URLKey:             key,
		Title:              reg.Title,
		Description:        reg.Description,
		ImageURL:           r.capture(ctx, reg.ScreenshotSourceURL, code, reg.ImageURL),
		ImageScreenshotURL: reg.ScreenshotSourceURL,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	stored, created, err := r.store.Commit(ctx, record)
	if err != nil {
		r.release(ctx, code)

		return nil, errx.E(op, errx.UpstreamFailure, err)
	}

	if !created {
		r.logger.Info("url registered concurrently, updating existing record",
			zap.String("code", string(stored.Code)),
			zap.String("discarded_code", string(code)),
		)

		return r.update(ctx, stored, reg, record.ImageURL)
	}

	r.logger.Info("url registered",
		zap.String("code", string(stored.Code)),
		zap.String("url", stored.CanonicalURL),
	)

	return &Result{Record: stored, ShortLink: r.ShortLink(stored.Code), Created: true}, nil
}

// update overwrites the metadata of existing. An empty image keeps the
// existing one.
func (r *Registrar) update(ctx context.Context, existing *Record, reg Registration, image string) (*Result, error) {
	const op = "shortener.Registrar.update"

	if image == "" {
		image = existing.ImageURL
	}

	updated, err := r.store.Update(ctx, existing.Code, RecordUpdate{
		Title:              reg.Title,
		Description:        reg.Description,
		ImageURL:           image,
		ImageScreenshotURL: reg.ScreenshotSourceURL,
		UpdatedAt:          r.now(),
	})
	if err != nil {
		return nil, errx.E(op, errx.UpstreamFailure, err)
	}

	r.logger.Info("url registration updated", zap.String("code", string(updated.Code)))

	return &Result{Record: updated, ShortLink: r.ShortLink(updated.Code), Created: false}, nil
}

// capture runs the screenshot pipeline on a best-effort basis. Any failure,
// including running out of time, yields fallback.
func (r *Registrar) capture(ctx context.Context, source string, code Code, fallback string) string {
	if source == "" {
		return fallback
	}

	captureCtx, cancel := context.WithTimeout(ctx, r.captureTimeout)
	defer cancel()

	imageURL, err := r.pipeline.Capture(captureCtx, source, string(code))
	if err == nil && imageURL != "" {
		return imageURL
	}

	if err == nil {
		err = errEmptyCapture
	}

	r.logger.Warn("screenshot capture failed, using fallback image",
		zap.String("code", string(code)),
		zap.String("source", source),
		zap.Bool("has_fallback", fallback != ""),
		zap.Error(err),
	)

	return fallback
}

func (r *Registrar) release(ctx context.Context, code Code) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := r.store.Release(releaseCtx, code); err != nil {
		r.logger.Error("failed to release reserved code",
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}
}
