// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dedup

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/kenttv99/MM-sub001/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "GET /v1/events", Key("", "/v1/events", nil))
	assert.Equal(t, "POST /registration/register", Key("post", "/registration/register", nil))
	assert.Equal(t,
		Key("GET", "/v1/events?page=2&q=go", nil),
		Key("GET", "/v1/events?q=go", url.Values{"page": {"2"}}),
		"params merge with the query in sorted order")
	assert.Equal(t, "GET https://cdn.example.org/a.png", Key("GET", "https://cdn.example.org/a.png", nil))
}

func TestBeginSupersedesInFlight(t *testing.T) {
	p := NewPolicy(nil)

	first, releaseFirst, err := p.Begin(context.Background(), "GET /v1/events")
	require.NoError(t, err)
	second, releaseSecond, err := p.Begin(context.Background(), "GET /v1/events")
	require.NoError(t, err)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("first request was not cancelled")
	}
	assert.True(t, Superseded(first))
	assert.NoError(t, second.Err())

	// Releasing the stale request must not unregister the newer one.
	releaseFirst()
	assert.True(t, p.InFlight("GET /v1/events"))

	releaseSecond()
	assert.False(t, p.InFlight("GET /v1/events"))
	assert.False(t, Superseded(second))
}

func TestBeginDifferentKeysIndependent(t *testing.T) {
	p := NewPolicy(nil)
	a, ra, err := p.Begin(context.Background(), "a")
	require.NoError(t, err)
	defer ra()
	b, rb, err := p.Begin(context.Background(), "b")
	require.NoError(t, err)
	defer rb()

	assert.NoError(t, a.Err())
	assert.NoError(t, b.Err())
}

func TestBeginRateLimited(t *testing.T) {
	p := NewPolicy(ratelimit.New(ratelimit.Config{Window: time.Minute, MaxCount: 2}))

	for i := 0; i < 2; i++ {
		_, release, err := p.Begin(context.Background(), "k")
		require.NoError(t, err)
		release()
	}
	_, release, err := p.Begin(context.Background(), "k")
	require.ErrorIs(t, err, ErrRateLimited)
	release()
	assert.False(t, p.InFlight("k"))
}

func TestCancelAll(t *testing.T) {
	p := NewPolicy(nil)
	unmounted := errors.New("unmounted")
	ctx, release, err := p.Begin(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	p.CancelAll(unmounted)
	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), unmounted)
	assert.False(t, p.InFlight("k"))
}
