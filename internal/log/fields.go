// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"

	FieldEvent     = "event"
	FieldComponent = "component"

	// Stage fields
	FieldStage    = "stage"
	FieldOldStage = "old_stage"
	FieldNewStage = "new_stage"
	FieldReason   = "reason"

	// Request fields
	FieldPath     = "path"
	FieldMethod   = "method"
	FieldBackend  = "backend"
	FieldStatus   = "status"
	FieldCategory = "category"
)
