// Package eventbus provides event-driven communication for run lifecycle
// notifications. Publishing is fire-and-forget: the engine never blocks a
// transaction on a consumer.
package eventbus

import (
	"context"

	"github.com/runline/runline/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
