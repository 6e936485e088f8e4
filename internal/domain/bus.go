package domain

import (
	"context"
	"time"
)

// BusMessage is one delivery from the event bus. Channel carries the
// concrete channel the payload arrived on, which matters for pattern
// subscriptions like "user:*".
type BusMessage struct {
	Channel string
	Payload []byte
}

// EventBus is the process-external pub/sub transport between services and the
// event distribution hub. Implemented by the Redis-backed bus.
type EventBus interface {
	// Publish sends a raw payload on a channel.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a read-only stream of messages for the given
	// channel (glob patterns allowed). The returned channel closes when
	// ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan BusMessage, error)
}

// RateLimiter limits request rates per key.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the given
	// limit per window, counting the request if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
