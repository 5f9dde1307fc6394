// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// evc is the command line front end of the event platform client.
//
// Usage:
//
//	evc [-config file.yaml] bootstrap   run a full page load and print the snapshot
//	evc [-config file.yaml] events      list public events
//	evc mock [-public :8000] [-admin :8001]
//	evc config validate|dump
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kenttv99/MM-sub001/internal/config"
	xglog "github.com/kenttv99/MM-sub001/internal/log"
)

var (
	version   = "v0.4.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("evc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "%s (commit: %s, built: %s)\n", version, commit, buildDate)
		return 0
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}

	// Safe defaults until config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "evc", Version: version, Output: stderr})

	switch rest[0] {
	case "config":
		return runConfigCLI(rest[1:], stdout, stderr)
	case "mock":
		return runMock(ctx, rest[1:], stderr)
	case "bootstrap":
		return runBootstrap(ctx, strings.TrimSpace(*configPath), rest[1:], stdout, stderr)
	case "events":
		return runEvents(ctx, strings.TrimSpace(*configPath), rest[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", rest[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  evc [-config config.yaml] bootstrap [-format=json|text]")
	fmt.Fprintln(w, "  evc [-config config.yaml] events [-search term] [-status s] [-page n -size n]")
	fmt.Fprintln(w, "  evc mock [-public :8000] [-admin :8001] [-rotate]")
	fmt.Fprintln(w, "  evc config validate|dump [-f config.yaml]")
	fmt.Fprintln(w, "  evc -version")
}

// loadConfig applies ENV > file > defaults and reconfigures logging.
func loadConfig(path string, stderr io.Writer) (config.AppConfig, error) {
	cfg, err := config.NewLoader(path, version).Load()
	if err != nil {
		return cfg, err
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
		Console: cfg.LogFormat == "console",
		Output:  stderr,
	})
	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger := xglog.WithComponent("cli")
	logger.Debug().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldPath, path).
		Msg("configuration loaded")
	return cfg, nil
}
