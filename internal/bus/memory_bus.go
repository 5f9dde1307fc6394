// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// MemoryBus is an in-memory pub/sub. It is not durable and provides
// in-process delivery only.
type MemoryBus[T any] struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub[T]
	buffer int
	closed bool
}

const dropLogEvery = 100

var dropCount atomic.Uint64

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("bus closed")

func NewMemoryBus[T any]() *MemoryBus[T] {
	return &MemoryBus[T]{subs: make(map[string][]*memSub[T]), buffer: DefaultBuffer}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func recordDrop(topic, reason string) {
	metrics.IncBusDropReason(topic, reason)
	count := dropCount.Add(1)
	if count%dropLogEvery == 0 {
		log.L().Warn().
			Str("topic", topic).
			Str(log.FieldReason, reason).
			Uint64("dropped", count).
			Msg("memory bus dropped messages")
	}
}

// Publish delivers msg to every subscriber of topic, blocking on full
// subscribers until ctx is done. Subscribers closed mid-publish are skipped.
func (b *MemoryBus[T]) Publish(ctx context.Context, topic string, msg T) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	delivered := 0
	defer func() { metrics.AddBusDelivered(topic, delivered) }()
	for _, s := range b.snapshot(topic) {
		ok, err := s.send(ctx, msg)
		if err != nil {
			recordDrop(topic, publishDropReason(err))
			return fmt.Errorf("publish topic %q: %w", topic, err)
		}
		if ok {
			delivered++
		}
	}
	return nil
}

// TryPublish delivers msg without blocking. Subscribers whose buffer is full
// miss the message. It returns the number of subscribers reached.
func (b *MemoryBus[T]) TryPublish(topic string, msg T) int {
	delivered := 0
	for _, s := range b.snapshot(topic) {
		if s.trySend(msg) {
			delivered++
		} else {
			recordDrop(topic, "full")
		}
	}
	metrics.AddBusDelivered(topic, delivered)
	return delivered
}

// snapshot copies the subscriber list so sends happen without the bus lock.
func (b *MemoryBus[T]) snapshot(topic string) []*memSub[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.subs[topic])
}

// Subscribe registers a subscriber for topic. The subscription is closed
// automatically when ctx ends.
func (b *MemoryBus[T]) Subscribe(ctx context.Context, topic string) (Subscriber[T], error) {
	s := newMemSub(b, topic)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() { _ = s.Close() })
		s.stop = stop
	}
	return s, nil
}

// Subscribers reports the number of live subscribers on topic.
func (b *MemoryBus[T]) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close closes every subscription. Further subscribes fail.
func (b *MemoryBus[T]) Close() {
	b.mu.Lock()
	all := b.subs
	b.subs = make(map[string][]*memSub[T])
	b.closed = true
	b.mu.Unlock()

	for _, lst := range all {
		for _, s := range lst {
			s.closeChan()
		}
	}
}

type memSub[T any] struct {
	b     *MemoryBus[T]
	topic string
	ch    chan T
	// done is closed before ch so blocked senders can leave first.
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	stop   func() bool
}

func newMemSub[T any](b *MemoryBus[T], topic string) *memSub[T] {
	return &memSub[T]{b: b, topic: topic, ch: make(chan T, b.buffer), done: make(chan struct{})}
}

func (s *memSub[T]) send(ctx context.Context, msg T) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, nil
	}
	select {
	case s.ch <- msg:
		return true, nil
	case <-s.done:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *memSub[T]) trySend(msg T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *memSub[T]) C() <-chan T {
	return s.ch
}

func (s *memSub[T]) Close() error {
	if s.stop != nil {
		s.stop()
	}
	s.b.mu.Lock()
	lst := s.b.subs[s.topic]
	out := make([]*memSub[T], 0, len(lst))
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	s.b.mu.Unlock()
	s.closeChan()
	return nil
}

func (s *memSub[T]) closeChan() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

var _ Bus[any] = (*MemoryBus[any])(nil)
