// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	xglog "github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/mockbackend"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func runMock(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("evc mock", flag.ContinueOnError)
	fs.SetOutput(stderr)
	publicAddr := fs.String("public", ":8000", "listen address of the public backend")
	adminAddr := fs.String("admin", ":8001", "listen address of the admin backend")
	rotate := fs.Bool("rotate", false, "rotate bearer tokens on every authenticated call")
	rateLimit := fs.Int("ratelimit", 0, "requests per client IP per -window (0 disables)")
	window := fs.Duration("window", time.Minute, "rate limit window")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var opts []mockbackend.Option
	if *rotate {
		opts = append(opts, mockbackend.WithTokenRotation())
	}
	if *rateLimit > 0 {
		opts = append(opts, mockbackend.WithRateLimit(*rateLimit, *window))
	}

	pl, err := net.Listen("tcp", *publicAddr)
	if err != nil {
		fmt.Fprintf(stderr, "listen %s: %v\n", *publicAddr, err)
		return 1
	}
	al, err := net.Listen("tcp", *adminAddr)
	if err != nil {
		_ = pl.Close()
		fmt.Fprintf(stderr, "listen %s: %v\n", *adminAddr, err)
		return 1
	}

	if err := serveMock(ctx, mockbackend.New(opts...), pl, al); err != nil {
		fmt.Fprintf(stderr, "mock backend: %v\n", err)
		return 1
	}
	return 0
}

// serveMock serves both backends until ctx ends, then shuts them down.
func serveMock(ctx context.Context, b *mockbackend.Backend, public, admin net.Listener) error {
	logger := xglog.WithComponent("mock")
	servers := []*http.Server{
		{Handler: b.PublicHandler(), ReadHeaderTimeout: 5 * time.Second},
		{Handler: b.AdminHandler(), ReadHeaderTimeout: 5 * time.Second},
	}
	listeners := []net.Listener{public, admin}

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		ln := listeners[i]
		logger.Info().
			Str(xglog.FieldEvent, "mock.listen").
			Str("addr", ln.Addr().String()).
			Msg("mock backend listening")
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		// Detached so shutdown can complete after the parent is cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		logger.Info().Str(xglog.FieldEvent, "mock.stopped").Msg("mock backend stopped")
		return errors.Join(errs...)
	})
	return g.Wait()
}
