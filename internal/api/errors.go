// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kenttv99/MM-sub001/internal/resilience"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrForbidden    = errors.New("backend: access forbidden")
	ErrUpstream     = errors.New("backend: request failed")
	ErrBadResponse  = errors.New("backend: invalid response format or malformed data")
	ErrTimeout      = errors.New("backend: request timed out")
	ErrCircuitOpen  = resilience.ErrCircuitOpen
)

// Error wraps a sentinel with what the client knew at the time of failure.
type Error struct {
	Sentinel error
	Op       string
	Status   int
	Body     string
	Err      error // Nested lower-level error (e.g. net.Error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("api: %s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// sentinelForStatus maps a non-2xx status to its sentinel.
func sentinelForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	default:
		return ErrUpstream
	}
}

const maxMessageLen = 512

// messageFromBody extracts a human readable message. JSON bodies with a
// "detail" or "message" field win; otherwise the raw text is used.
func messageFromBody(body []byte, status int) string {
	var doc struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &doc); err == nil {
		if len(doc.Detail) > 0 && string(doc.Detail) != "null" {
			var s string
			if json.Unmarshal(doc.Detail, &s) == nil {
				return s
			}
			// Validation errors arrive as structured detail.
			return truncate(string(doc.Detail))
		}
		if doc.Message != "" {
			return doc.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return truncate(text)
	}
	return http.StatusText(status)
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen] + "..."
}
