// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stage

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fixedClock returns the same instant on every call.
func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestStoreStartsAtInitial(t *testing.T) {
	s := NewStore()
	assert.Equal(t, Initial, s.Current())
	assert.Empty(t, s.History())
	assert.False(t, s.AuthChecked())
}

func TestStoreIdempotentSetStage(t *testing.T) {
	s := NewStore(WithClock(fixedClock(1000)))
	require.True(t, s.SetStage(Authentication).Allowed)
	before := s.History()

	for i := 0; i < 3; i++ {
		d := s.SetStage(Authentication)
		assert.True(t, d.Allowed)
		assert.Equal(t, ReasonAlreadyInStage, d.Reason)
	}
	assert.Empty(t, cmp.Diff(before, s.History()))
}

func TestStoreRequiresAuthCheck(t *testing.T) {
	s := NewStore()
	require.True(t, s.SetStage(Authentication).Allowed)

	d := s.SetStage(StaticContent)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonAuthNotChecked, d.Reason)
	assert.Equal(t, Authentication, s.Current())

	s.MarkAuthChecked()
	assert.True(t, s.SetStage(StaticContent).Allowed)
	assert.Equal(t, StaticContent, s.Current())
}

func TestStoreRegressionBlocked(t *testing.T) {
	s := NewStore()
	s.MarkAuthChecked()
	require.True(t, s.SetStage(DataLoading).Allowed)
	before := s.History()

	d := s.SetStage(Authentication)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRegression, d.Reason)
	assert.Equal(t, DataLoading, s.Current())
	assert.Empty(t, cmp.Diff(before, s.History()))
}

func TestStoreForcedReauthClearsAuthFlag(t *testing.T) {
	s := NewStore()
	s.MarkAuthChecked()
	require.True(t, s.SetStage(Completed).Allowed)

	d := s.SetStage(Authentication, ForceReauth())
	require.True(t, d.Allowed)
	assert.Equal(t, ReasonForcedReauth, d.Reason)
	assert.Equal(t, Authentication, s.Current())
	assert.False(t, s.AuthChecked())
	assert.False(t, s.SetStage(StaticContent).Allowed)
}

func TestStoreAdminRouteFastTracks(t *testing.T) {
	s := NewStore(WithRoute(RouteFromPath("/admin/events")))

	d := s.SetStage(StaticContent)
	require.True(t, d.Allowed)
	assert.Equal(t, ReasonAdminFastTrack, d.Reason)
	assert.Equal(t, Completed, s.Current())
	assert.False(t, s.AuthChecked(), "admin fast-track must not need the auth flag")

	d = s.SetStage(DataLoading)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonAlreadyInStage, d.Reason)
	assert.Len(t, s.History(), 1)
}

func TestStoreHistoryTimestampsStrictlyIncrease(t *testing.T) {
	s := NewStore(WithClock(fixedClock(5000)))
	s.MarkAuthChecked()
	for _, st := range []Stage{Authentication, StaticContent, DynamicContent, DataLoading, Completed} {
		require.True(t, s.SetStage(st).Allowed)
	}

	want := []HistoryEntry{
		{Stage: Authentication, Timestamp: 5000},
		{Stage: StaticContent, Timestamp: 5001},
		{Stage: DynamicContent, Timestamp: 5002},
		{Stage: DataLoading, Timestamp: 5003},
		{Stage: Completed, Timestamp: 5004},
	}
	if diff := cmp.Diff(want, s.History()); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreMonotonicUnderRandomRequests(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewStore()
	s.MarkAuthChecked()

	all := All()
	for i := 0; i < 500; i++ {
		s.SetStage(all[rng.Intn(len(all))])
	}
	h := s.History()
	for i := 1; i < len(h); i++ {
		assert.Greater(t, h[i].Stage.Index(), h[i-1].Stage.Index())
		assert.Greater(t, h[i].Timestamp, h[i-1].Timestamp)
	}
}

func TestStoreSubscribersReceiveChangesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewStore()
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := s.Subscribe(ctx)
	require.NoError(t, err)

	s.MarkAuthChecked()
	s.SetStage(Authentication)
	s.SetStage(Authentication) // no-op, not published
	s.SetStage(Initial)        // rejected, not published
	s.SetStage(StaticContent)

	first := <-sub.C()
	assert.Equal(t, Initial, first.From)
	assert.Equal(t, Authentication, first.To)
	second := <-sub.C()
	assert.Equal(t, Authentication, second.From)
	assert.Equal(t, StaticContent, second.To)

	select {
	case c := <-sub.C():
		t.Fatalf("unexpected change %+v", c)
	default:
	}
}

func TestStoreReset(t *testing.T) {
	s := NewStore()
	defer s.Close()
	sub, err := s.Subscribe(context.Background())
	require.NoError(t, err)

	s.MarkAuthChecked()
	s.SetStage(Completed)
	<-sub.C()

	s.Reset()
	assert.Equal(t, Initial, s.Current())
	assert.Empty(t, s.History())
	assert.False(t, s.AuthChecked())
	c := <-sub.C()
	assert.Equal(t, ReasonReset, c.Reason)
	assert.Equal(t, Initial, c.To)
}

func TestStoreConcurrentSetStage(t *testing.T) {
	s := NewStore()
	s.MarkAuthChecked()

	var wg sync.WaitGroup
	for _, st := range All() {
		wg.Add(1)
		go func(st Stage) {
			defer wg.Done()
			s.SetStage(st)
		}(st)
	}
	wg.Wait()

	h := s.History()
	require.NotEmpty(t, h)
	for i := 1; i < len(h); i++ {
		assert.Greater(t, h[i].Stage.Index(), h[i-1].Stage.Index())
	}
	assert.Equal(t, h[len(h)-1].Stage, s.Current())
}
