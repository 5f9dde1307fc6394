// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stage

import (
	"context"
	"sync"
	"time"

	"github.com/kenttv99/MM-sub001/internal/bus"
	xglog "github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/metrics"
	"github.com/rs/zerolog"
)

const changeTopic = "stage.changed"

// Change is published to subscribers for every accepted transition.
type Change struct {
	From   Stage
	To     Stage
	Reason string
	At     time.Time
}

// Store owns the current stage, the transition history and the
// authentication-checked flag for one client session.
// Check-then-append happens under a single lock, so concurrent callers see
// transitions applied in call order and must tolerate rejection.
type Store struct {
	mu          sync.Mutex
	current     Stage
	history     []HistoryEntry
	authChecked bool
	route       RouteContext

	now    func() time.Time
	logger zerolog.Logger
	bus    *bus.MemoryBus[Change]
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRoute sets the initial route context.
func WithRoute(rc RouteContext) Option {
	return func(s *Store) { s.route = rc }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store positioned at Initial with an empty history.
func NewStore(opts ...Option) *Store {
	s := &Store{
		current: Initial,
		now:     time.Now,
		logger:  xglog.WithComponent("stage"),
		bus:     bus.NewMemoryBus[Change](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the current stage.
func (s *Store) Current() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// History returns a copy of the accepted transitions.
func (s *Store) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// AuthChecked reports whether authentication status has been resolved.
func (s *Store) AuthChecked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authChecked
}

// MarkAuthChecked records that authentication resolved, successfully or not.
func (s *Store) MarkAuthChecked() {
	s.mu.Lock()
	s.authChecked = true
	s.mu.Unlock()
}

// Route returns the current route context.
func (s *Store) Route() RouteContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route
}

// SetRoute replaces the route context. It does not change the stage.
func (s *Store) SetRoute(rc RouteContext) {
	s.mu.Lock()
	s.route = rc
	s.mu.Unlock()
}

// SetStage requests a transition. Rejections are logged and reported in the
// returned Decision; state is unchanged and no error is raised.
//
// On admin routes every request is rewritten to Completed. Outside admin
// routes, stages past Authentication require MarkAuthChecked first.
// A forced re-authentication clears the auth flag.
func (s *Store) SetStage(requested Stage, opts ...GuardOption) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.current
	target := requested
	admin := s.route.IsAdminRoute
	if admin && requested.Valid() {
		target = Completed
	}

	d := CanChangeStage(from, target, s.history, opts...)
	if d.Allowed && target != from {
		if !admin && !s.authChecked && target.Index() > Authentication.Index() {
			d = Decision{Allowed: false, Reason: ReasonAuthNotChecked}
		}
	}
	if d.Allowed && admin && target != from {
		d.Reason = ReasonAdminFastTrack
	}

	if !d.Allowed {
		metrics.RecordStageRejection(d.Reason)
		s.logger.Debug().
			Str(xglog.FieldEvent, "stage.rejected").
			Str(xglog.FieldStage, from.String()).
			Str("requested", requested.String()).
			Str(xglog.FieldReason, d.Reason).
			Msg("stage transition rejected")
		return d
	}
	if target == from {
		return d
	}

	if d.Reason == ReasonForcedReauth {
		s.authChecked = false
	}
	s.apply(from, target, d.Reason)
	return d
}

// apply appends a history entry and notifies subscribers. Caller holds mu.
func (s *Store) apply(from, to Stage, reason string) {
	at := s.now()
	ts := at.UnixMilli()
	if n := len(s.history); n > 0 && ts <= s.history[n-1].Timestamp {
		ts = s.history[n-1].Timestamp + 1
	}
	s.history = append(s.history, HistoryEntry{Stage: to, Timestamp: ts})
	s.current = to

	metrics.RecordStageTransition(from.String(), to.String())
	s.logger.Debug().
		Str(xglog.FieldEvent, "stage.changed").
		Str(xglog.FieldOldStage, from.String()).
		Str(xglog.FieldNewStage, to.String()).
		Str(xglog.FieldReason, reason).
		Msg("stage transition accepted")

	// Non-blocking under the lock keeps delivery order equal to apply order.
	s.bus.TryPublish(changeTopic, Change{From: from, To: to, Reason: reason, At: at})
}

// Reset returns the store to Initial with an empty history and the auth flag
// cleared, as on a full reload. Subscribers are notified when the stage
// actually changes.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.current
	s.current = Initial
	s.history = nil
	s.authChecked = false
	if from != Initial {
		s.bus.TryPublish(changeTopic, Change{From: from, To: Initial, Reason: ReasonReset, At: s.now()})
	}
}

// Subscribe returns a subscription receiving every accepted change. The
// subscription ends when ctx is done or Close is called.
func (s *Store) Subscribe(ctx context.Context) (bus.Subscriber[Change], error) {
	return s.bus.Subscribe(ctx, changeTopic)
}

// Close ends all subscriptions.
func (s *Store) Close() {
	s.bus.Close()
}
