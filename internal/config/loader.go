// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Environment variable names.
const (
	EnvPublicURL         = "EVC_PUBLIC_URL"
	EnvAdminURL          = "EVC_ADMIN_URL"
	EnvRequestTimeout    = "EVC_REQUEST_TIMEOUT"
	EnvSafetyTimeout     = "EVC_SAFETY_TIMEOUT"
	EnvRateLimitWindow   = "EVC_RATELIMIT_WINDOW"
	EnvRateLimitMax      = "EVC_RATELIMIT_MAX"
	EnvRateLimitGlobal   = "EVC_RATELIMIT_GLOBAL_RATE"
	EnvRateLimitBurst    = "EVC_RATELIMIT_GLOBAL_BURST"
	EnvCacheBackend      = "EVC_CACHE_BACKEND"
	EnvCacheTTL          = "EVC_CACHE_TTL"
	EnvRedisAddr         = "EVC_REDIS_ADDR"
	EnvRedisPassword     = "EVC_REDIS_PASSWORD"
	EnvRedisDB           = "EVC_REDIS_DB"
	EnvTokenStore        = "EVC_TOKEN_STORE"
	EnvTokenPath         = "EVC_TOKEN_PATH"
	EnvBreakerThreshold  = "EVC_BREAKER_THRESHOLD"
	EnvBreakerReset      = "EVC_BREAKER_RESET"
	EnvLogLevel          = "EVC_LOG_LEVEL"
	EnvLogService        = "EVC_LOG_SERVICE"
	EnvLogFormat         = "EVC_LOG_FORMAT"
	EnvTelemetryEnabled  = "EVC_TELEMETRY_ENABLED"
	EnvTelemetryExporter = "EVC_TELEMETRY_EXPORTER"
	EnvTelemetryEndpoint = "EVC_TELEMETRY_ENDPOINT"
	EnvTelemetrySampling = "EVC_TELEMETRY_SAMPLING"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// The file is parsed strictly before env is applied, then the result is
// validated.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields cause an error to prevent silent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) envDur(key string, cur *time.Duration) {
	l.ConsumedEnvKeys[key] = struct{}{}
	*cur = ParseDuration(key, *cur)
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.PublicBaseURL = l.envString(EnvPublicURL, cfg.PublicBaseURL)
	cfg.AdminBaseURL = l.envString(EnvAdminURL, cfg.AdminBaseURL)
	l.envDur(EnvRequestTimeout, &cfg.RequestTimeout)
	l.envDur(EnvSafetyTimeout, &cfg.SafetyTimeout)

	l.envDur(EnvRateLimitWindow, &cfg.RateLimit.Window)
	cfg.RateLimit.MaxCount = l.envInt(EnvRateLimitMax, cfg.RateLimit.MaxCount)
	cfg.RateLimit.GlobalRate = l.envFloat(EnvRateLimitGlobal, cfg.RateLimit.GlobalRate)
	cfg.RateLimit.GlobalBurst = l.envInt(EnvRateLimitBurst, cfg.RateLimit.GlobalBurst)

	cfg.Cache.Backend = strings.ToLower(l.envString(EnvCacheBackend, cfg.Cache.Backend))
	l.envDur(EnvCacheTTL, &cfg.Cache.TTL)
	cfg.Cache.RedisAddr = l.envString(EnvRedisAddr, cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString(EnvRedisPassword, cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt(EnvRedisDB, cfg.Cache.RedisDB)

	cfg.TokenStore.Backend = strings.ToLower(l.envString(EnvTokenStore, cfg.TokenStore.Backend))
	cfg.TokenStore.Path = l.envString(EnvTokenPath, cfg.TokenStore.Path)

	cfg.Breaker.Threshold = l.envInt(EnvBreakerThreshold, cfg.Breaker.Threshold)
	l.envDur(EnvBreakerReset, &cfg.Breaker.ResetTimeout)

	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = l.envString(EnvLogService, cfg.LogService)
	cfg.LogFormat = strings.ToLower(l.envString(EnvLogFormat, cfg.LogFormat))

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = strings.ToLower(l.envString(EnvTelemetryExporter, cfg.Telemetry.Exporter))
	cfg.Telemetry.Endpoint = l.envString(EnvTelemetryEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTelemetrySampling, cfg.Telemetry.SamplingRate)
}
