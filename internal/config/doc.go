// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads client configuration with precedence
// ENV > YAML file > defaults.
package config
