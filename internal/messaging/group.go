package messaging

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Runnable represents a component that can be started and shutdown.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

type topicReporter interface {
	Topic() string
}

// ConsumerGroup runs the consumers of one stream consumer group and owns the
// subscriber they share.
type ConsumerGroup struct {
	name       string
	consumers  []Runnable
	started    int
	subscriber message.Subscriber
	logger     *zap.Logger
}

// NewConsumerGroup creates a consumer group named after the stream consumer group.
func NewConsumerGroup(name string, subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		name:       name,
		subscriber: subscriber,
		logger:     logger.With(zap.String("group", name)),
	}
}

// Name returns the stream consumer group name.
func (g *ConsumerGroup) Name() string {
	return g.name
}

// Add registers a consumer to the group.
func (g *ConsumerGroup) Add(consumer Runnable) {
	g.consumers = append(g.consumers, consumer)
}

// Topics lists the topics of the registered consumers that report one.
func (g *ConsumerGroup) Topics() []string {
	topics := make([]string, 0, len(g.consumers))

	for _, consumer := range g.consumers {
		if r, ok := consumer.(topicReporter); ok {
			topics = append(topics, r.Topic())
		}
	}

	return topics
}

// Start starts the consumers in order. A cancelled ctx or a failing consumer
// stops the ones already started.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for i, consumer := range g.consumers {
		if err := ctx.Err(); err != nil {
			g.rollback(i)

			return fmt.Errorf("consumer group %s: start cancelled: %w", g.name, err)
		}

		if err := consumer.Start(ctx); err != nil {
			g.rollback(i)

			return fmt.Errorf("consumer group %s: failed to start consumer %d: %w", g.name, i, err)
		}

		if r, ok := consumer.(topicReporter); ok {
			g.logger.Info("consumer started", zap.String("topic", r.Topic()))
		}
	}

	g.started = len(g.consumers)

	g.logger.Info("consumer group started", zap.Int("count", len(g.consumers)))

	return nil
}

// rollback shuts down the first n consumers in reverse order.
func (g *ConsumerGroup) rollback(n int) {
	for j := n - 1; j >= 0; j-- {
		if err := g.consumers[j].Shutdown(); err != nil {
			g.logger.Warn("rollback shutdown failed", zap.Int("consumer", j), zap.Error(err))
		}
	}
}

// Shutdown stops the started consumers and closes the subscriber.
func (g *ConsumerGroup) Shutdown() error {
	g.logger.Info("shutting down consumer group")

	var firstErr error

	for _, consumer := range g.consumers[:g.started] {
		if err := consumer.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	g.started = 0

	if err := g.subscriber.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
