package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // falls back to EVC_LOG_LEVEL, then info
	Output  io.Writer // defaults to os.Stdout
	Service string
	Version string
	// Console renders human-readable lines instead of JSON.
	Console bool
}

var (
	mu   sync.RWMutex
	base zerolog.Logger
)

func parseLevel(candidates ...string) zerolog.Level {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if lvl, err := zerolog.ParseLevel(c); err == nil {
			return lvl
		}
	}
	return zerolog.InfoLevel
}

// Configure (re)initialises the global zerolog logger. The CLI calls it once
// with safe defaults and again after the configuration file is loaded.
func Configure(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level, os.Getenv("EVC_LOG_LEVEL")))
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stdout
	if cfg.Output != nil {
		w = cfg.Output
	}
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	}
	if cfg.Service == "" {
		cfg.Service = "evc"
	}

	l := zerolog.New(w).With().
		Timestamp().
		Str("service", cfg.Service).
		Str("version", cfg.Version).
		Logger()

	mu.Lock()
	base = l
	mu.Unlock()
}

// L returns a pointer to a copy of the base logger.
func L() *zerolog.Logger {
	l := Base()
	return &l
}

func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

func init() {
	Configure(Config{})
}
