// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package boundary contains panics raised while producing a view so that
// one broken section degrades to a placeholder instead of taking down the
// session.
package boundary

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/metrics"
)

// ErrRendered marks a contained failure. The wrapping *Failure carries
// the placeholder to show.
var ErrRendered = errors.New("boundary: render failed")

// Placeholder is the generic retry surface shown in place of a failed view.
type Placeholder struct {
	Title  string
	Action string
}

// DefaultPlaceholder is shown for every contained failure.
var DefaultPlaceholder = Placeholder{
	Title:  "We are experiencing technical difficulties",
	Action: "refresh",
}

// Failure is the error returned by Run after a recovered panic.
type Failure struct {
	Boundary    string
	Value       any
	Stack       string
	Placeholder Placeholder
}

func (f *Failure) Error() string {
	return fmt.Sprintf("boundary %s: %v", f.Boundary, f.Value)
}

func (f *Failure) Unwrap() error { return ErrRendered }

// Run calls fn and converts a panic into a *Failure. Errors returned by fn
// pass through unchanged.
func Run(name string, fn func() error) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		buf := make([]byte, 8192)
		n := runtime.Stack(buf, false)

		metrics.PanicsRecoveredTotal.WithLabelValues(name).Inc()
		logger := log.WithComponent("boundary")
		logger.Error().
			Str(log.FieldEvent, "panic.recovered").
			Str("boundary", name).
			Interface("panic_value", rec).
			Str("stack_trace", string(buf[:n])).
			Msg("panic contained by boundary")

		err = &Failure{Boundary: name, Value: rec, Stack: string(buf[:n]), Placeholder: DefaultPlaceholder}
	}()
	return fn()
}

// PlaceholderFor returns the placeholder to show for err, if any.
func PlaceholderFor(err error) (Placeholder, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Placeholder, true
	}
	return Placeholder{}, false
}
