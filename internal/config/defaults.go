// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults returns the baseline configuration.
func Defaults() AppConfig {
	return AppConfig{
		PublicBaseURL:  "http://localhost:8000",
		AdminBaseURL:   "http://localhost:8001",
		RequestTimeout: 10 * time.Second,
		SafetyTimeout:  8 * time.Second,
		RateLimit: RateLimitConfig{
			Window:      time.Second,
			MaxCount:    5,
			GlobalRate:  50,
			GlobalBurst: 100,
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     30 * time.Second,
		},
		TokenStore: TokenStoreConfig{
			Backend: TokenFile,
			Path:    defaultTokenPath(),
		},
		Breaker: BreakerConfig{
			Threshold:    5,
			ResetTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
		LogLevel:   "info",
		LogService: "evc",
		LogFormat:  "json",
	}
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "evc", "tokens.json")
}
