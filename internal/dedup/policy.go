// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package dedup is the single request policy shared by every client call:
// a keyed rate limit plus last-writer-wins cancellation of in-flight
// requests with the same signature.
package dedup

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/kenttv99/MM-sub001/internal/metrics"
	"github.com/kenttv99/MM-sub001/internal/ratelimit"
)

var (
	// ErrSuperseded is the cancellation cause of a request replaced by a newer
	// one with the same key.
	ErrSuperseded = errors.New("dedup: superseded by newer request")
	// ErrRateLimited is returned by Begin when the key is over budget.
	ErrRateLimited = errors.New("dedup: rate limited")
)

// Key builds a request signature from method, URL and extra params. Query
// parameters from the URL and params are merged and sorted.
func Key(method, rawURL string, params url.Values) string {
	method = strings.ToUpper(method)
	if method == "" {
		method = "GET"
	}
	path := rawURL
	q := url.Values{}
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
		if u.Host != "" {
			path = u.Scheme + "://" + u.Host + u.Path
		}
		for k, vs := range u.Query() {
			q[k] = append(q[k], vs...)
		}
	}
	for k, vs := range params {
		q[k] = append(q[k], vs...)
	}
	if len(q) == 0 {
		return method + " " + path
	}
	return method + " " + path + "?" + q.Encode()
}

type flight struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// Policy tracks in-flight requests by key. A nil limiter disables rate
// limiting.
type Policy struct {
	limiter *ratelimit.Limiter

	mu       sync.Mutex
	seq      uint64
	inflight map[string]flight
}

// NewPolicy creates a policy backed by limiter.
func NewPolicy(limiter *ratelimit.Limiter) *Policy {
	return &Policy{limiter: limiter, inflight: make(map[string]flight)}
}

// Begin registers a request for key. Any in-flight request with the same key
// is cancelled with cause ErrSuperseded. The returned release must be called
// once the request, including reading its body, is finished.
func (p *Policy) Begin(ctx context.Context, key string) (context.Context, func(), error) {
	if p.limiter != nil && !p.limiter.TryAcquire(key) {
		return ctx, func() {}, ErrRateLimited
	}

	reqCtx, cancel := context.WithCancelCause(ctx)

	p.mu.Lock()
	if prev, ok := p.inflight[key]; ok {
		prev.cancel(ErrSuperseded)
		metrics.RequestsSupersededTotal.Inc()
	}
	p.seq++
	id := p.seq
	p.inflight[key] = flight{id: id, cancel: cancel}
	p.mu.Unlock()

	release := func() {
		p.mu.Lock()
		if cur, ok := p.inflight[key]; ok && cur.id == id {
			delete(p.inflight, key)
		}
		p.mu.Unlock()
		cancel(nil)
	}
	return reqCtx, release, nil
}

// InFlight reports whether a request for key is currently registered.
func (p *Policy) InFlight(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[key]
	return ok
}

// CancelAll cancels every in-flight request, as on unmount.
func (p *Policy) CancelAll(cause error) {
	p.mu.Lock()
	all := p.inflight
	p.inflight = make(map[string]flight)
	p.mu.Unlock()
	for _, f := range all {
		f.cancel(cause)
	}
}

// Superseded reports whether ctx was cancelled by a newer request.
func Superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}
