// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session ties one client session together: the stage store, the
// loading flags, the gated API client and the credential event bus.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kenttv99/MM-sub001/internal/api"
	"github.com/kenttv99/MM-sub001/internal/bus"
	"github.com/kenttv99/MM-sub001/internal/cache"
	"github.com/kenttv99/MM-sub001/internal/config"
	"github.com/kenttv99/MM-sub001/internal/dedup"
	"github.com/kenttv99/MM-sub001/internal/loading"
	xglog "github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/platform"
	"github.com/kenttv99/MM-sub001/internal/platform/httpx"
	"github.com/kenttv99/MM-sub001/internal/ratelimit"
	"github.com/kenttv99/MM-sub001/internal/stage"
	"github.com/kenttv99/MM-sub001/internal/tokenstore"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const authTopic = "auth.changed"

// Source says what caused a credential change.
type Source string

const (
	SourceLogin    Source = "login"
	SourceLogout   Source = "logout"
	SourceExpired  Source = "expired"
	SourceExternal Source = "external"
)

// AuthChanged is published whenever a stored credential appears or goes away.
type AuthChanged struct {
	Key     string
	Present bool
	Source  Source
}

// Deps overrides the collaborators New would otherwise build from config.
// Zero fields are built from configuration.
type Deps struct {
	Tokens     tokenstore.Store
	Cache      cache.Cache
	HTTPClient *http.Client
	Clock      func() time.Time
}

// Session is the per-client coordinator context.
type Session struct {
	ID       string
	Stage    *stage.Store
	Flags    *loading.Flags
	API      *api.Client
	Platform *platform.Client

	policy        *dedup.Policy
	tokens        tokenstore.Store
	cache         cache.Cache
	auth          *bus.MemoryBus[AuthChanged]
	safetyTimeout time.Duration
	logger        zerolog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closers []func() error
	once    sync.Once
}

// New builds a session from cfg. The returned session owns every resource it
// opened and releases them on Close.
func New(cfg config.AppConfig, deps Deps) (_ *Session, err error) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:            id,
		Flags:         &loading.Flags{},
		auth:          bus.NewMemoryBus[AuthChanged](),
		safetyTimeout: cfg.SafetyTimeout,
		logger:        xglog.WithComponent("session").With().Str(xglog.FieldSessionID, id).Logger(),
		cancel:        cancel,
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	storeOpts := []stage.Option{stage.WithLogger(s.logger)}
	if deps.Clock != nil {
		storeOpts = append(storeOpts, stage.WithClock(deps.Clock))
	}
	s.Stage = stage.NewStore(storeOpts...)

	if s.tokens = deps.Tokens; s.tokens == nil {
		if s.tokens, err = s.openTokens(ctx, cfg.TokenStore); err != nil {
			return nil, err
		}
	}
	if s.cache = deps.Cache; s.cache == nil {
		s.cache = s.openCache(cfg.Cache)
		s.closers = append(s.closers, s.cache.Close)
	}

	s.policy = dedup.NewPolicy(ratelimit.New(ratelimit.Config{
		Window:      cfg.RateLimit.Window,
		MaxCount:    cfg.RateLimit.MaxCount,
		GlobalRate:  rate.Limit(cfg.RateLimit.GlobalRate),
		GlobalBurst: cfg.RateLimit.GlobalBurst,
		IdleTTL:     5 * time.Minute,
	}))

	router, err := api.NewRouter(cfg.PublicBaseURL, cfg.AdminBaseURL)
	if err != nil {
		return nil, err
	}
	hc := deps.HTTPClient
	if hc == nil {
		hc = httpx.NewClient(cfg.RequestTimeout, httpx.WithTracing(), httpx.WithCookieJar())
		s.closers = append(s.closers, func() error {
			hc.CloseIdleConnections()
			return nil
		})
	}
	cacheTTL := cfg.Cache.TTL
	if cfg.Cache.Backend == config.CacheNone {
		cacheTTL = 0
	}
	s.API, err = api.NewClient(api.Options{
		Router:           router,
		Stage:            s.Stage,
		Tokens:           s.tokens,
		Policy:           s.policy,
		Cache:            s.cache,
		CacheTTL:         cacheTTL,
		HTTPClient:       hc,
		Timeout:          cfg.RequestTimeout,
		BreakerThreshold: cfg.Breaker.Threshold,
		BreakerReset:     cfg.Breaker.ResetTimeout,
		OnAuthFailure: func(b api.Backend, status int) {
			s.publish(AuthChanged{Key: b.TokenKey(), Present: false, Source: SourceExpired})
		},
	})
	if err != nil {
		return nil, err
	}
	s.Platform = platform.New(s.API, s.tokens, platform.WithCredentialHook(func(c tokenstore.Change) {
		src := SourceLogout
		if c.Present {
			src = SourceLogin
		}
		s.publish(AuthChanged{Key: c.Key, Present: c.Present, Source: src})
	}))

	s.logger.Info().
		Str(xglog.FieldEvent, "session.created").
		Str("token_store", cfg.TokenStore.Backend).
		Str("cache", cfg.Cache.Backend).
		Msg("session ready")
	return s, nil
}

func (s *Session) openTokens(ctx context.Context, cfg config.TokenStoreConfig) (tokenstore.Store, error) {
	switch cfg.Backend {
	case config.TokenFile:
		f := tokenstore.NewFile(cfg.Path)
		ch, err := f.Watch(ctx)
		if err != nil {
			// Another process can no longer log us out, but the store works.
			s.logger.Warn().Err(err).Str(xglog.FieldPath, cfg.Path).Msg("token file watch unavailable")
			return f, nil
		}
		s.wg.Add(1)
		go s.forwardExternal(ch)
		return f, nil
	case config.TokenBadger:
		b, err := tokenstore.OpenBadger(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open token store: %w", err)
		}
		s.closers = append(s.closers, b.Close)
		return b, nil
	default:
		return tokenstore.NewMemory(), nil
	}
}

func (s *Session) forwardExternal(ch <-chan tokenstore.Change) {
	defer s.wg.Done()
	for c := range ch {
		s.publish(AuthChanged{Key: c.Key, Present: c.Present, Source: SourceExternal})
	}
}

func (s *Session) openCache(cfg config.CacheConfig) cache.Cache {
	switch cfg.Backend {
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, s.logger)
		if err == nil {
			return rc
		}
		s.logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis cache unavailable, falling back to memory")
		return cache.NewMemoryCache(time.Minute)
	case config.CacheMemory:
		return cache.NewMemoryCache(time.Minute)
	default:
		return cache.NewNoOpCache()
	}
}

func (s *Session) publish(ev AuthChanged) {
	s.auth.TryPublish(authTopic, ev)
	s.logger.Info().
		Str(xglog.FieldEvent, "auth.changed").
		Str("key", ev.Key).
		Bool("present", ev.Present).
		Str("source", string(ev.Source)).
		Msg("credential changed")
}

// AuthEvents subscribes to credential changes until ctx is done.
func (s *Session) AuthEvents(ctx context.Context) (bus.Subscriber[AuthChanged], error) {
	return s.auth.Subscribe(ctx, authTopic)
}

// Navigate moves the session to path. In-flight requests from the previous
// page are superseded and both loading flags drop. Admin pages skip straight
// to Completed.
func (s *Session) Navigate(path string) stage.RouteContext {
	rc := stage.RouteFromPath(path)
	s.Stage.SetRoute(rc)
	s.policy.CancelAll(dedup.ErrSuperseded)
	s.Flags.Reset()
	if rc.IsAdminRoute {
		s.Stage.SetStage(stage.Completed)
	}
	s.logger.Debug().
		Str(xglog.FieldEvent, "session.navigate").
		Str(xglog.FieldPath, rc.Path).
		Bool("admin", rc.IsAdminRoute).
		Msg("route changed")
	return rc
}

// Login re-enters Authentication, exchanges creds and advances the session
// straight to Completed on success. On failure the user stays anonymous and
// the session returns to the stage it was in before the attempt.
func (s *Session) Login(ctx context.Context, creds platform.Credentials) api.Result[platform.TokenResponse] {
	prev := s.Stage.Current()
	s.Stage.SetStage(stage.Authentication, stage.ForceReauth())
	r := s.Platform.Login(ctx, creds)
	s.Stage.MarkAuthChecked()
	switch {
	case r.Ok():
		s.Stage.SetStage(stage.Completed)
	case prev > stage.Authentication:
		s.Stage.SetStage(prev)
	}
	return r
}

// Close stops background watchers, ends subscriptions and closes owned
// stores. It is safe to call more than once.
func (s *Session) Close() error {
	var errs []error
	s.once.Do(func() {
		s.cancel()
		if s.policy != nil {
			s.policy.CancelAll(context.Canceled)
		}
		s.wg.Wait()
		s.auth.Close()
		if s.Stage != nil {
			s.Stage.Close()
		}
		for i := len(s.closers) - 1; i >= 0; i-- {
			if err := s.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
