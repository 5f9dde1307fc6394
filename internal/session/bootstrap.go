// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"errors"
	"sync"

	"github.com/kenttv99/MM-sub001/internal/boundary"
	"github.com/kenttv99/MM-sub001/internal/loading"
	xglog "github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/platform"
	"github.com/kenttv99/MM-sub001/internal/stage"
	"golang.org/x/sync/errgroup"
)

// Snapshot is what a page load produced.
type Snapshot struct {
	Stage         stage.Stage
	Auth          platform.AuthStatus
	Events        []platform.Event
	User          *platform.User
	Notifications []platform.Notification
	Tickets       []platform.Ticket
}

// collector guards the snapshot. A guarded section that outlives its safety
// timeout may still write after Bootstrap has returned.
type collector struct {
	mu   sync.Mutex
	snap Snapshot
}

func (c *collector) set(fn func(*Snapshot)) {
	c.mu.Lock()
	fn(&c.snap)
	c.mu.Unlock()
}

func (c *collector) get() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Bootstrap runs a full page load: auth check, static content, then the
// per-user data when authenticated. Section failures are collected and
// returned together; the session still reaches Completed so the page stays
// usable. Only a cancelled ctx stops the load early.
func (s *Session) Bootstrap(ctx context.Context) (Snapshot, error) {
	ctx = xglog.ContextWithSessionID(ctx, s.ID)
	var (
		snap collector
		errs []error
	)

	s.Stage.SetStage(stage.Authentication)
	errs = append(errs, s.section("auth", func() error {
		return s.Flags.Guard(ctx, loading.Static, s.safetyTimeout, func(ctx context.Context) error {
			r := s.Platform.CheckAuth(ctx)
			if r.IsAuthError() {
				// Stale credential, already cleared by the client.
				return nil
			}
			st, err := r.Unwrap()
			if err != nil {
				return err
			}
			snap.set(func(sn *Snapshot) { sn.Auth = st })
			return nil
		})
	}))
	// A failed check still counts as checked: the user is treated as anonymous.
	s.Stage.MarkAuthChecked()
	if err := ctx.Err(); err != nil {
		return s.finish(&snap, append(errs, err))
	}

	s.Stage.SetStage(stage.StaticContent)
	errs = append(errs, s.section("events", func() error {
		return s.Flags.Guard(ctx, loading.Static, s.safetyTimeout, func(ctx context.Context) error {
			events, err := s.Platform.ListEvents(ctx, platform.ListEventsParams{}).Unwrap()
			if err != nil {
				return err
			}
			snap.set(func(sn *Snapshot) { sn.Events = events })
			return nil
		})
	}))
	if err := ctx.Err(); err != nil {
		return s.finish(&snap, append(errs, err))
	}

	s.Stage.SetStage(stage.DynamicContent)
	s.Stage.SetStage(stage.DataLoading)
	if snap.get().Auth.Authenticated {
		errs = append(errs, s.section("user", func() error {
			return s.Flags.Guard(ctx, loading.Dynamic, s.safetyTimeout, func(ctx context.Context) error {
				return s.loadUserData(ctx, &snap)
			})
		}))
	}

	s.Stage.SetStage(stage.Completed)
	return s.finish(&snap, errs)
}

// loadUserData fetches the per-user resources concurrently. One failure does
// not cancel its siblings.
func (s *Session) loadUserData(ctx context.Context, snap *collector) error {
	var (
		g             errgroup.Group
		user          platform.User
		notifications []platform.Notification
		tickets       []platform.Ticket
	)
	g.Go(func() (err error) {
		user, err = s.Platform.Me(ctx).Unwrap()
		return err
	})
	g.Go(func() (err error) {
		notifications, err = s.Platform.Notifications(ctx).Unwrap()
		return err
	})
	g.Go(func() (err error) {
		tickets, err = s.Platform.MyTickets(ctx).Unwrap()
		return err
	})
	err := g.Wait()
	snap.set(func(sn *Snapshot) {
		if user.ID != 0 {
			sn.User = &user
		}
		sn.Notifications = notifications
		sn.Tickets = tickets
	})
	return err
}

func (s *Session) section(name string, fn func() error) error {
	err := boundary.Run(name, fn)
	if err != nil {
		s.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "session.section_failed").
			Str("section", name).
			Msg("page section failed")
	}
	return err
}

func (s *Session) finish(c *collector, errs []error) (Snapshot, error) {
	s.Flags.Reset()
	snap := c.get()
	snap.Stage = s.Stage.Current()
	s.logger.Info().
		Str(xglog.FieldEvent, "session.bootstrap").
		Str(xglog.FieldStage, snap.Stage.String()).
		Bool("authenticated", snap.Auth.Authenticated).
		Int("events", len(snap.Events)).
		Msg("bootstrap finished")
	return snap, errors.Join(errs...)
}
