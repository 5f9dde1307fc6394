// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package loading holds the static/dynamic loading flags shown as spinners.
// Flags are driven by callers and are independent of the stage store.
package loading

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	xglog "github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/metrics"
)

// DefaultSafetyTimeout bounds how long a guarded operation may hold a flag.
const DefaultSafetyTimeout = 8 * time.Second

// ErrSafetyTimeout is returned when a guarded operation outlives its timeout.
var ErrSafetyTimeout = errors.New("loading: safety timeout expired")

// Kind selects a flag.
type Kind int

const (
	Static Kind = iota
	Dynamic
)

func (k Kind) String() string {
	if k == Dynamic {
		return "dynamic"
	}
	return "static"
}

// Flags is safe for concurrent use. The zero value has both flags off.
type Flags struct {
	static  atomic.Bool
	dynamic atomic.Bool
}

func (f *Flags) StaticLoading() bool  { return f.static.Load() }
func (f *Flags) DynamicLoading() bool { return f.dynamic.Load() }

// Busy reports whether a full-screen spinner should be shown.
func (f *Flags) Busy() bool { return f.StaticLoading() || f.DynamicLoading() }

func (f *Flags) SetStatic(v bool)  { f.static.Store(v) }
func (f *Flags) SetDynamic(v bool) { f.dynamic.Store(v) }

// Set switches the flag selected by k.
func (f *Flags) Set(k Kind, v bool) {
	if k == Dynamic {
		f.SetDynamic(v)
		return
	}
	f.SetStatic(v)
}

// StartStaticLoading marks layout content as loading.
func (f *Flags) StartStaticLoading() {
	f.SetStatic(true)
}

// EndStaticStartDynamic hands over from layout loading to data loading.
func (f *Flags) EndStaticStartDynamic() {
	f.SetDynamic(true)
	f.SetStatic(false)
}

// EndDynamicLoading clears the data loading flag.
func (f *Flags) EndDynamicLoading() {
	f.SetDynamic(false)
}

// Reset clears both flags.
func (f *Flags) Reset() {
	f.SetStatic(false)
	f.SetDynamic(false)
}

// outcome is what the guarded goroutine hands back: an error, or the value
// it panicked with.
type outcome struct {
	err       error
	panicked  bool
	recovered any
}

// Guard raises flag k for the duration of fn. The flag is cleared on every
// return path. If fn has not returned after timeout, Guard returns
// ErrSafetyTimeout without waiting further; fn's context is cancelled.
// A panic in fn is re-raised in the caller's goroutine, so an enclosing
// recover sees it; the flag is still cleared.
func (f *Flags) Guard(ctx context.Context, k Kind, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultSafetyTimeout
	}
	f.Set(k, true)
	defer f.Set(k, false)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{panicked: true, recovered: r}
			}
		}()
		done <- outcome{err: fn(runCtx)}
	}()

	// expired is true when the safety timer fired and the caller did not
	// cancel on its own.
	expired := func() bool {
		return errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	}

	select {
	case out := <-done:
		if out.panicked {
			panic(out.recovered)
		}
		if errors.Is(out.err, context.DeadlineExceeded) && expired() {
			return f.safetyTimeout(k, timeout)
		}
		return out.err
	case <-runCtx.Done():
		if expired() {
			return f.safetyTimeout(k, timeout)
		}
		return ctx.Err()
	}
}

func (f *Flags) safetyTimeout(k Kind, timeout time.Duration) error {
	metrics.SafetyTimeoutsTotal.WithLabelValues(k.String()).Inc()
	logger := xglog.WithComponent("loading")
	logger.Warn().
		Str(xglog.FieldEvent, "loading.safety_timeout").
		Str("flag", k.String()).
		Dur("timeout", timeout).
		Msg("loading flag forced off")
	return ErrSafetyTimeout
}
