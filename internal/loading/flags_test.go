// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package loading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleHelpers(t *testing.T) {
	var f Flags
	assert.False(t, f.Busy())

	f.StartStaticLoading()
	assert.True(t, f.StaticLoading())
	assert.True(t, f.Busy())

	f.EndStaticStartDynamic()
	assert.False(t, f.StaticLoading())
	assert.True(t, f.DynamicLoading())
	assert.True(t, f.Busy())

	f.EndDynamicLoading()
	assert.False(t, f.Busy())
}

func TestDynamicFlagTogglesIndependently(t *testing.T) {
	var f Flags
	for i := 0; i < 3; i++ {
		f.SetDynamic(true)
		assert.True(t, f.Busy())
		f.SetDynamic(false)
		assert.False(t, f.Busy())
	}
}

func TestGuardClearsFlagOnSuccessAndFailure(t *testing.T) {
	var f Flags
	err := f.Guard(context.Background(), Dynamic, time.Second, func(context.Context) error {
		assert.True(t, f.DynamicLoading())
		return nil
	})
	require.NoError(t, err)
	assert.False(t, f.DynamicLoading())

	boom := errors.New("boom")
	err = f.Guard(context.Background(), Static, time.Second, func(context.Context) error {
		assert.True(t, f.StaticLoading())
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, f.StaticLoading())
}

func TestGuardSafetyTimeout(t *testing.T) {
	var f Flags
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := f.Guard(context.Background(), Dynamic, 30*time.Millisecond, func(context.Context) error {
		// Never settles on its own.
		<-release
		return nil
	})
	require.ErrorIs(t, err, ErrSafetyTimeout)
	assert.False(t, f.DynamicLoading())
	assert.Less(t, time.Since(start), time.Second)
}

func TestGuardParentCancellation(t *testing.T) {
	var f Flags
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := f.Guard(ctx, Static, time.Second, func(c context.Context) error {
		<-c.Done()
		return c.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.StaticLoading())
}

func TestGuardRepanicsInCaller(t *testing.T) {
	var f Flags
	assert.PanicsWithValue(t, "render failed", func() {
		_ = f.Guard(context.Background(), Static, time.Second, func(context.Context) error {
			panic("render failed")
		})
	})
	assert.False(t, f.StaticLoading())
}

func TestGuardDeadlineFromFnIsSafetyTimeout(t *testing.T) {
	var f Flags
	// fn honours its context and reports the deadline itself.
	err := f.Guard(context.Background(), Static, 20*time.Millisecond, func(c context.Context) error {
		<-c.Done()
		return c.Err()
	})
	require.ErrorIs(t, err, ErrSafetyTimeout)

	stuck := &Flags{}
	err = stuck.Guard(context.Background(), Dynamic, time.Second, func(context.Context) error {
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a deadline unrelated to the safety timer passes through")
	assert.NotErrorIs(t, err, ErrSafetyTimeout)
}
