// Package events defines the registry's domain events and the consumer-side
// processing applied to them.
package events

import (
	"context"
	"time"

	"github.com/serroba/link-preview/internal/messaging"
	"github.com/serroba/link-preview/internal/shortener"
	"go.uber.org/zap"
)

// TopicRecordRegistered is the stream carrying RecordRegisteredEvent.
const TopicRecordRegistered = "registry.record_registered"

// RecordRegisteredEvent is emitted after every successful registration.
type RecordRegisteredEvent struct {
	Code         string    `json:"code"`
	CanonicalURL string    `json:"canonicalUrl"`
	ShortLink    string    `json:"shortLink"`
	Created      bool      `json:"created"`
	HasImage     bool      `json:"hasImage"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// NewRecordRegisteredEvent builds the event for a registration result.
func NewRecordRegisteredEvent(result *shortener.Result) *RecordRegisteredEvent {
	return &RecordRegisteredEvent{
		Code:         string(result.Record.Code),
		CanonicalURL: result.Record.CanonicalURL,
		ShortLink:    result.ShortLink,
		Created:      result.Created,
		HasImage:     result.Record.ImageURL != "",
		RegisteredAt: result.Record.UpdatedAt,
	}
}

// CacheRefresher reloads a record into the read cache.
type CacheRefresher interface {
	Refresh(ctx context.Context, code shortener.Code) error
}

// Processor handles record-registered events.
type Processor struct {
	cache  CacheRefresher
	logger *zap.Logger
}

// NewProcessor creates a processor. A nil cache skips cache refreshes.
func NewProcessor(cache CacheRefresher, logger *zap.Logger) *Processor {
	return &Processor{cache: cache, logger: logger}
}

// HandleRecordRegistered logs the registration and refreshes the cached
// record so the next resolve sees the new metadata.
func (p *Processor) HandleRecordRegistered(ctx context.Context, event *RecordRegisteredEvent) error {
	p.logger.Info("record registered",
		zap.String("code", event.Code),
		zap.String("url", event.CanonicalURL),
		zap.Bool("created", event.Created),
		zap.Bool("has_image", event.HasImage),
		zap.String("request_id", messaging.MetadataFromContext(ctx)[messaging.MetadataRequestID]),
	)

	if p.cache == nil {
		return nil
	}

	return p.cache.Refresh(ctx, shortener.Code(event.Code))
}
