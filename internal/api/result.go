// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import "fmt"

// Kind tags the variant held by a Result.
type Kind int

const (
	KindSuccess Kind = iota
	KindFailure
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindAborted:
		return "aborted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Abort reasons besides the gate's skip reason.
const (
	ReasonSuperseded  = "superseded"
	ReasonRateLimited = "rate limited"
	ReasonCancelled   = "cancelled"
)

// FailureDetail describes a request that was sent and did not succeed.
// Status is 0 for transport failures. Auth marks 401/403 responses, after
// which the stored credential has already been cleared and Redirect names
// the login surface to send the user to.
type FailureDetail struct {
	Status   int
	Message  string
	Auth     bool
	Redirect string
	Err      error
}

// Result is the outcome of a gated backend call: exactly one of a decoded
// value, a failure or an abort.
type Result[T any] struct {
	Kind    Kind
	Value   T
	Failure FailureDetail
	Reason  string
}

// Success wraps a decoded value.
func Success[T any](v T) Result[T] {
	return Result[T]{Kind: KindSuccess, Value: v}
}

// Failure wraps a failed request.
func Failure[T any](f FailureDetail) Result[T] {
	return Result[T]{Kind: KindFailure, Failure: f}
}

// Aborted wraps a request that was never sent or was cancelled locally.
func Aborted[T any](reason string) Result[T] {
	return Result[T]{Kind: KindAborted, Reason: reason}
}

func (r Result[T]) Ok() bool        { return r.Kind == KindSuccess }
func (r Result[T]) IsAborted() bool { return r.Kind == KindAborted }

// IsAuthError reports a 401/403 failure.
func (r Result[T]) IsAuthError() bool { return r.Kind == KindFailure && r.Failure.Auth }

// Match dispatches on the variant. Nil handlers are skipped.
func (r Result[T]) Match(onSuccess func(T), onFailure func(FailureDetail), onAborted func(reason string)) {
	switch r.Kind {
	case KindSuccess:
		if onSuccess != nil {
			onSuccess(r.Value)
		}
	case KindFailure:
		if onFailure != nil {
			onFailure(r.Failure)
		}
	case KindAborted:
		if onAborted != nil {
			onAborted(r.Reason)
		}
	}
}

// AbortError is returned by Unwrap for aborted results.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string { return "api: request aborted: " + e.Reason }

// Unwrap converts the result into Go's value-or-error form.
func (r Result[T]) Unwrap() (T, error) {
	switch r.Kind {
	case KindSuccess:
		return r.Value, nil
	case KindAborted:
		var zero T
		return zero, &AbortError{Reason: r.Reason}
	default:
		var zero T
		if r.Failure.Err != nil {
			return zero, r.Failure.Err
		}
		return zero, &Error{Sentinel: sentinelForStatus(r.Failure.Status), Op: "request", Status: r.Failure.Status, Body: r.Failure.Message}
	}
}

// convert carries a non-success result over to another value type.
func convert[T, U any](r Result[T]) Result[U] {
	return Result[U]{Kind: r.Kind, Failure: r.Failure, Reason: r.Reason}
}
