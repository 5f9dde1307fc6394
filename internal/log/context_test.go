// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{name: "nil context", ctx: nil, requestID: "test-id-123", want: "test-id-123"},
		{name: "background context", ctx: context.Background(), requestID: "req-456", want: "req-456"},
		{name: "empty request ID", ctx: context.Background(), requestID: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			assert.Equal(t, tt.want, RequestIDFromContext(ctx))
		})
	}
}

func TestFromContextHelpersHandleNil(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	assert.Empty(t, RequestIDFromContext(nil))
	//nolint:staticcheck
	assert.Empty(t, SessionIDFromContext(nil))
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "evc-test"})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "rid-1")
	ctx = ContextWithSessionID(ctx, "sid-1")

	l := WithComponentFromContext(ctx, "stage")
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rid-1", entry[FieldRequestID])
	assert.Equal(t, "sid-1", entry[FieldSessionID])
	assert.Equal(t, "stage", entry[FieldComponent])
	assert.Equal(t, "evc-test", entry["service"])
}

func TestConfigureReplacesBaseLogger(t *testing.T) {
	var first, second bytes.Buffer
	Configure(Config{Level: "info", Output: &first})
	L().Info().Msg("one")
	Configure(Config{Level: "info", Output: &second})
	t.Cleanup(func() { Configure(Config{}) })
	L().Info().Msg("two")

	assert.Contains(t, first.String(), `"one"`)
	assert.NotContains(t, first.String(), `"two"`)
	assert.Contains(t, second.String(), `"two"`)
}

func TestConfigureConsole(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf, Console: true})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("cli")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.False(t, json.Valid(buf.Bytes()), "console output should not be JSON")
}
