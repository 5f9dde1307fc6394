// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kenttv99/MM-sub001/internal/boundary"
	xglog "github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/platform"
	"github.com/kenttv99/MM-sub001/internal/session"
	"github.com/kenttv99/MM-sub001/internal/telemetry"
)

// withSession loads config, starts tracing and opens a session for fn.
func withSession(ctx context.Context, path string, stderr io.Writer, fn func(*session.Session) int) int {
	cfg, err := loadConfig(path, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describe(path), err)
		return 1
	}
	logger := xglog.WithComponent("cli")

	tp, err := telemetry.NewProvider(ctx, telemetry.FromAppConfig(cfg))
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.init_failed").Msg("tracing disabled")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	sess, err := session.New(cfg, session.Deps{})
	if err != nil {
		fmt.Fprintf(stderr, "session: %v\n", err)
		return 1
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn().Err(err).Msg("session close failed")
		}
	}()
	return fn(sess)
}

func runBootstrap(ctx context.Context, path string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("evc bootstrap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	return withSession(ctx, path, stderr, func(s *session.Session) int {
		snap, err := s.Bootstrap(ctx)
		code := 0
		if err != nil {
			reportFailure(stderr, err)
			code = 1
		}
		if werr := writeSnapshot(stdout, *format, snap); werr != nil {
			fmt.Fprintf(stderr, "output: %v\n", werr)
			return 2
		}
		return code
	})
}

func runEvents(ctx context.Context, path string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("evc events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var p platform.ListEventsParams
	fs.StringVar(&p.Search, "search", "", "filter by title")
	fs.StringVar(&p.Status, "status", "", "filter by status")
	fs.IntVar(&p.Page, "page", 0, "page number (1-based)")
	fs.IntVar(&p.Size, "size", 0, "page size")
	format := fs.String("format", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	return withSession(ctx, path, stderr, func(s *session.Session) int {
		// The listing is only admitted once the page has loaded.
		if _, err := s.Bootstrap(ctx); err != nil {
			logger := xglog.WithComponent("cli")
			logger.Debug().Err(err).Msg("bootstrap reported errors")
		}
		events, err := s.Platform.ListEvents(ctx, p).Unwrap()
		if err != nil {
			reportFailure(stderr, err)
			return 1
		}
		if err := writeEvents(stdout, *format, events); err != nil {
			fmt.Fprintf(stderr, "output: %v\n", err)
			return 2
		}
		return 0
	})
}

func reportFailure(w io.Writer, err error) {
	if ph, ok := boundary.PlaceholderFor(err); ok {
		fmt.Fprintf(w, "%s (%s)\n", ph.Title, ph.Action)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

func writeSnapshot(w io.Writer, format string, snap session.Snapshot) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "text":
		fmt.Fprintf(w, "stage:          %s\n", snap.Stage)
		fmt.Fprintf(w, "authenticated:  %t\n", snap.Auth.Authenticated)
		if snap.User != nil {
			fmt.Fprintf(w, "user:           %s <%s>\n", snap.User.FIO, snap.User.Email)
			fmt.Fprintf(w, "tickets:        %d\n", len(snap.Tickets))
			fmt.Fprintf(w, "notifications:  %d\n", len(snap.Notifications))
		}
		fmt.Fprintf(w, "events:         %d\n", len(snap.Events))
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func writeEvents(w io.Writer, format string, events []platform.Event) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	case "text":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tSTART\tSTATUS\tAVAILABLE")
		for _, e := range events {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d/%d\n",
				e.ID, e.Title, e.StartDate.Format(time.DateTime), e.Status, e.TicketsAvailable, e.TicketsTotal)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
