// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus provides the in-process publish/subscribe used for stage and
// credential change notifications.
package bus

import "context"

// Bus publishes typed messages to topic subscribers.
type Bus[T any] interface {
	Publish(ctx context.Context, topic string, msg T) error
	TryPublish(topic string, msg T) int
	Subscribe(ctx context.Context, topic string) (Subscriber[T], error)
}

// Subscriber receives messages for one topic until closed.
type Subscriber[T any] interface {
	C() <-chan T
	Close() error
}
