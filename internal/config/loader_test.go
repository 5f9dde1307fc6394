// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "v1.2.3"
	assert.Equal(t, want, cfg)
}

func TestLoad_ValidMinimal(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("testdata", "valid-minimal.yaml"), "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://events.local:8000", cfg.PublicBaseURL)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, TokenMemory, cfg.TokenStore.Backend)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.RateLimit.MaxCount)
}

func TestLoad_FullFile(t *testing.T) {
	cfg, err := NewLoader(filepath.Join("testdata", "full.yaml"), "test").Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.SafetyTimeout)
	assert.Equal(t, RateLimitConfig{Window: 2 * time.Second, MaxCount: 3, GlobalRate: 10, GlobalBurst: 20}, cfg.RateLimit)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 2, cfg.Cache.RedisDB)
	assert.Equal(t, TokenBadger, cfg.TokenStore.Backend)
	assert.Equal(t, BreakerConfig{Threshold: 3, ResetTimeout: 10 * time.Second}, cfg.Breaker)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http", cfg.Telemetry.Exporter)
	assert.InDelta(t, 0.25, cfg.Telemetry.SamplingRate, 1e-9)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_UnknownKeyFails(t *testing.T) {
	_, err := NewLoader(filepath.Join("testdata", "invalid-unknown-key.yaml"), "test").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got: %v", err)
}

func TestLoad_MultiDocumentFails(t *testing.T) {
	_, err := NewLoader(filepath.Join("testdata", "multi-document.yaml"), "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().PublicBaseURL, cfg.PublicBaseURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv(EnvPublicURL, "http://from-env:9000")
	t.Setenv(EnvRateLimitMax, "9")
	t.Setenv(EnvCacheBackend, "MEMORY")
	t.Setenv(EnvRequestTimeout, "2s")
	t.Setenv(EnvTelemetryEnabled, "false")

	loader := NewLoader(filepath.Join("testdata", "full.yaml"), "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:9000", cfg.PublicBaseURL)
	assert.Equal(t, 9, cfg.RateLimit.MaxCount)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Telemetry.Enabled)
	// File value survives where env is silent.
	assert.Equal(t, "https://admin.events.example", cfg.AdminBaseURL)

	assert.Contains(t, loader.ConsumedEnvKeys, EnvPublicURL)
	assert.Contains(t, loader.ConsumedEnvKeys, EnvTelemetrySampling)
}

func TestLoad_InvalidEnvFailsValidation(t *testing.T) {
	t.Setenv(EnvCacheBackend, "memcached")

	_, err := NewLoader("", "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "memcached")
}
