// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kenttv99/MM-sub001/internal/log"
	"github.com/rs/zerolog"
)

func envLogger() zerolog.Logger {
	return log.WithComponent("config")
}

func sensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password")
}

// ParseString reads a string from environment variable or returns default value.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	logger := envLogger()
	if value, exists := os.LookupEnv(key); exists {
		switch {
		case value == "":
			logger.Debug().
				Str("key", key).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		case sensitive(key):
			logger.Debug().
				Str("key", key).
				Str("source", "environment").
				Bool("sensitive", true).
				Msg("using environment variable")
		default:
			logger.Debug().
				Str("key", key).
				Str("value", value).
				Str("source", "environment").
				Msg("using environment variable")
		}
		return value
	}
	return defaultValue
}

// parseEnv returns parse(value) for a set, non-empty key and def otherwise.
// Unparseable values fall back to def with a warning.
func parseEnv[T any](key string, def T, kind string, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	out, err := parse(strings.TrimSpace(v))
	if err != nil {
		logger := envLogger()
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Interface("default", def).
			Msgf("invalid %s in environment variable, using default", kind)
		return def
	}
	return out
}

// ParseInt reads an integer, falling back to defaultValue on parse errors.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, "integer", strconv.Atoi)
}

// ParseDuration reads a duration in Go format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, "duration", time.ParseDuration)
}

// ParseFloat reads a float64.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, "float", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseBool accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, "boolean", func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
}
