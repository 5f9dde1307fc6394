// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate rejects configurations the client cannot run with.
// All problems are reported together.
func Validate(cfg AppConfig) error {
	var errs []error

	for name, raw := range map[string]string{"publicBaseURL": cfg.PublicBaseURL, "adminBaseURL": cfg.AdminBaseURL} {
		if err := validateBaseURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, errors.New("requestTimeout must be positive"))
	}
	if cfg.SafetyTimeout <= 0 {
		errs = append(errs, errors.New("safetyTimeout must be positive"))
	}
	if cfg.RateLimit.Window <= 0 || cfg.RateLimit.MaxCount <= 0 {
		errs = append(errs, errors.New("rateLimit window and maxCount must be positive"))
	}
	if cfg.RateLimit.GlobalRate < 0 || cfg.RateLimit.GlobalBurst < 0 {
		errs = append(errs, errors.New("rateLimit global rate and burst must not be negative"))
	}

	switch cfg.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if cfg.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redisAddr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of none|memory|redis", cfg.Cache.Backend))
	}
	if cfg.Cache.Backend != CacheNone && cfg.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}

	switch cfg.TokenStore.Backend {
	case TokenMemory, TokenBadger:
	case TokenFile:
		if strings.TrimSpace(cfg.TokenStore.Path) == "" {
			errs = append(errs, errors.New("tokenStore.path is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("tokenStore.backend %q is not one of memory|file|badger", cfg.TokenStore.Backend))
	}

	if cfg.Breaker.Threshold <= 0 || cfg.Breaker.ResetTimeout <= 0 {
		errs = append(errs, errors.New("breaker threshold and resetTimeout must be positive"))
	}

	if cfg.LogFormat != "" && cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("logFormat %q is not one of json|console", cfg.LogFormat))
	}

	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Exporter != "grpc" && cfg.Telemetry.Exporter != "http" {
			errs = append(errs, fmt.Errorf("telemetry.exporter %q is not one of grpc|http", cfg.Telemetry.Exporter))
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			errs = append(errs, errors.New("telemetry.samplingRate must be within [0,1]"))
		}
	}

	return errors.Join(errs...)
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is missing")
	}
	return nil
}
