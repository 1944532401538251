package messaging

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// MetadataRequestID carries the id of the HTTP request that produced an event.
const MetadataRequestID = "request_id"

type metadataKey struct{}

// ContextWithMetadata returns a context whose metadata is copied onto every
// message published with it. Existing entries are kept unless overwritten.
func ContextWithMetadata(ctx context.Context, md map[string]string) context.Context {
	merged := make(map[string]string, len(md))

	for k, v := range MetadataFromContext(ctx) {
		merged[k] = v
	}

	for k, v := range md {
		if v != "" {
			merged[k] = v
		}
	}

	return context.WithValue(ctx, metadataKey{}, merged)
}

// MetadataFromContext returns the message metadata carried by ctx.
func MetadataFromContext(ctx context.Context) map[string]string {
	if md, ok := ctx.Value(metadataKey{}).(map[string]string); ok {
		return md
	}

	return nil
}

// Publish is a function that publishes a typed event.
type Publish[T any] func(ctx context.Context, event *T) error

// NewPublishFunc creates a typed publish function for a specific topic.
func NewPublishFunc[T any](publisher message.Publisher, topic string) Publish[T] {
	return func(ctx context.Context, event *T) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.SetContext(ctx)

		for k, v := range MetadataFromContext(ctx) {
			msg.Metadata.Set(k, v)
		}

		return publisher.Publish(topic, msg)
	}
}

// NoopPublish returns a publish function that drops every event.
func NoopPublish[T any]() Publish[T] {
	return func(context.Context, *T) error { return nil }
}

// PublisherGroup manages the underlying publisher lifecycle.
type PublisherGroup struct {
	publisher message.Publisher
}

// NewPublisherGroup creates a new publisher group.
func NewPublisherGroup(publisher message.Publisher) *PublisherGroup {
	return &PublisherGroup{publisher: publisher}
}

// Publisher returns the underlying message publisher for creating typed publish functions.
func (g *PublisherGroup) Publisher() message.Publisher {
	return g.publisher
}

// Shutdown closes the underlying publisher.
func (g *PublisherGroup) Shutdown() error {
	return g.publisher.Close()
}
