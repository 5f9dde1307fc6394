// SPDX-License-Identifier: MIT

// Package ratelimit provides a keyed client-side limiter used to stop
// runaway request loops before they reach the backends.
package ratelimit

import (
	"sync"
	"time"

	"github.com/kenttv99/MM-sub001/internal/metrics"
	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration
type Config struct {
	// Per-key budget: at most MaxCount acquisitions per Window, with bursts
	// up to MaxCount.
	Window   time.Duration
	MaxCount int

	// Global limits across all keys. Zero disables the global bucket.
	GlobalRate  rate.Limit
	GlobalBurst int

	// Keys idle longer than IdleTTL are dropped on the next sweep.
	IdleTTL time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Window:      time.Second,
		MaxCount:    5,
		GlobalRate:  50,
		GlobalBurst: 100,
		IdleTTL:     5 * time.Minute,
	}
}

type keyLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter manages per-key token buckets.
type Limiter struct {
	config Config
	global *rate.Limiter

	mu        sync.Mutex
	perKey    map[string]*keyLimiter
	lastSweep time.Time
	now       func() time.Time
}

// New creates a new rate limiter with the given config
func New(config Config) *Limiter {
	if config.Window <= 0 {
		config.Window = time.Second
	}
	if config.MaxCount <= 0 {
		config.MaxCount = 1
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 5 * time.Minute
	}
	l := &Limiter{
		config: config,
		perKey: make(map[string]*keyLimiter),
		now:    time.Now,
	}
	if config.GlobalRate > 0 {
		l.global = rate.NewLimiter(config.GlobalRate, max(config.GlobalBurst, 1))
	}
	l.lastSweep = l.now()
	return l
}

func (l *Limiter) perKeyRate() rate.Limit {
	return rate.Limit(float64(l.config.MaxCount) / l.config.Window.Seconds())
}

// TryAcquire reports whether a request with signature key may proceed now.
// It never blocks.
func (l *Limiter) TryAcquire(key string) bool {
	now := l.now()

	l.mu.Lock()
	kl, ok := l.perKey[key]
	if !ok {
		kl = &keyLimiter{lim: rate.NewLimiter(l.perKeyRate(), l.config.MaxCount)}
		l.perKey[key] = kl
	}
	kl.lastSeen = now
	allowed := kl.lim.AllowN(now, 1)
	l.maybeSweep(now)
	l.mu.Unlock()

	if !allowed {
		metrics.RateLimitRejectedTotal.WithLabelValues("per_key").Inc()
		return false
	}

	if l.global != nil && !l.global.AllowN(now, 1) {
		metrics.RateLimitRejectedTotal.WithLabelValues("global").Inc()
		return false
	}
	return true
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perKey)
}

// maybeSweep removes idle keys. Caller holds mu.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.config.IdleTTL {
		return
	}
	for k, kl := range l.perKey {
		if now.Sub(kl.lastSeen) >= l.config.IdleTTL {
			delete(l.perKey, k)
		}
	}
	l.lastSweep = now
}
