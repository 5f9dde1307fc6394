// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by client spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	BackendKey  = "evc.backend"
	CategoryKey = "evc.request.category"
	OutcomeKey  = "evc.request.outcome"
	StageKey    = "evc.stage"

	SessionIDKey = "evc.session_id"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RequestAttributes describes one gated backend call.
func RequestAttributes(method, route, backend, category string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(BackendKey, backend),
		attribute.String(CategoryKey, category),
	}
}

// OutcomeAttributes records how a call ended. A zero status is omitted.
func OutcomeAttributes(outcome string, statusCode int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(OutcomeKey, outcome)}
	if statusCode != 0 {
		attrs = append(attrs, attribute.Int(HTTPStatusCodeKey, statusCode))
	}
	return attrs
}

// StageAttributes tags a span with the session's loading stage.
func StageAttributes(sessionID, stage string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	return append(attrs, attribute.String(StageKey, stage))
}

// ErrorAttributes marks a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
