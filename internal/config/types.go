// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the resolved client configuration.
type AppConfig struct {
	PublicBaseURL  string        `yaml:"publicBaseURL"`
	AdminBaseURL   string        `yaml:"adminBaseURL"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	SafetyTimeout  time.Duration `yaml:"safetyTimeout"`

	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Cache      CacheConfig      `yaml:"cache"`
	TokenStore TokenStoreConfig `yaml:"tokenStore"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
	// LogFormat is "json" or "console".
	LogFormat string `yaml:"logFormat"`

	// Version is injected from the binary, never read from file or env.
	Version string `yaml:"-"`
}

// RateLimitConfig bounds how often a single request signature may be sent.
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxCount    int           `yaml:"maxCount"`
	GlobalRate  float64       `yaml:"globalRate"`
	GlobalBurst int           `yaml:"globalBurst"`
}

// CacheConfig selects the response cache.
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // none|memory|redis
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
}

// TokenStoreConfig selects where bearer tokens are persisted.
type TokenStoreConfig struct {
	Backend string `yaml:"backend"` // memory|file|badger
	Path    string `yaml:"path"`
}

// BreakerConfig tunes the per-backend circuit breakers.
type BreakerConfig struct {
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"resetTimeout"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc|http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Backend names.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"

	TokenMemory = "memory"
	TokenFile   = "file"
	TokenBadger = "badger"
)
