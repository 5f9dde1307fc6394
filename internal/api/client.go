// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api is the gated HTTP client every backend call goes through.
// A call is checked against the current loading stage, deduplicated,
// authenticated from the token store and sent through a per-backend
// circuit breaker. The outcome is a Result value, never a panic.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/kenttv99/MM-sub001/internal/cache"
	"github.com/kenttv99/MM-sub001/internal/dedup"
	"github.com/kenttv99/MM-sub001/internal/gate"
	"github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/metrics"
	"github.com/kenttv99/MM-sub001/internal/platform/httpx"
	"github.com/kenttv99/MM-sub001/internal/resilience"
	"github.com/kenttv99/MM-sub001/internal/stage"
	"github.com/kenttv99/MM-sub001/internal/telemetry"
	"github.com/kenttv99/MM-sub001/internal/tokenstore"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderRequestID    = "X-Request-ID"
	HeaderRefreshToken = "X-Refresh-Token"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// StageSource reports the loading stage requests are gated against.
type StageSource interface {
	Current() stage.Stage
}

// AuthFailureFunc is called after a 401/403 cleared the credential for b.
type AuthFailureFunc func(b Backend, status int)

// Request describes one backend call. Path is a same-origin path such as
// "/v1/public/events" or an absolute URL for external resources.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	// Bypass skips the stage gate for callers that know the stage has
	// already advanced.
	Bypass bool
	// NoCache disables the response cache for this call.
	NoCache bool
}

// Options wires a Client. Router, Stage and Tokens are required.
type Options struct {
	Router     *Router
	Stage      StageSource
	Tokens     tokenstore.Store
	Policy     *dedup.Policy
	Cache      cache.Cache
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Timeout    time.Duration

	BreakerThreshold int
	BreakerReset     time.Duration

	OnAuthFailure AuthFailureFunc
}

// Client sends gated requests to the public and admin backends.
type Client struct {
	router   *Router
	stage    StageSource
	tokens   tokenstore.Store
	policy   *dedup.Policy
	cache    cache.Cache
	cacheTTL time.Duration
	http     *http.Client
	timeout  time.Duration
	breakers map[Backend]*resilience.CircuitBreaker
	onAuth   AuthFailureFunc
	logger   zerolog.Logger
}

// NewClient validates opts and builds a client.
func NewClient(opts Options) (*Client, error) {
	if opts.Router == nil || opts.Stage == nil || opts.Tokens == nil {
		return nil, errors.New("api: router, stage and tokens are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpx.NewClient(opts.Timeout, httpx.WithTracing())
	}
	if opts.Policy == nil {
		opts.Policy = dedup.NewPolicy(nil)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNoOpCache()
	}

	c := &Client{
		router:   opts.Router,
		stage:    opts.Stage,
		tokens:   opts.Tokens,
		policy:   opts.Policy,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		http:     opts.HTTPClient,
		timeout:  opts.Timeout,
		breakers: make(map[Backend]*resilience.CircuitBreaker, 3),
		onAuth:   opts.OnAuthFailure,
		logger:   log.WithComponent("api"),
	}
	for _, b := range []Backend{BackendPublic, BackendAdmin, BackendExternal} {
		c.breakers[b] = resilience.NewCircuitBreaker("api_"+string(b), opts.BreakerThreshold, opts.BreakerReset)
	}
	return c, nil
}

// Breaker exposes the circuit breaker guarding b.
func (c *Client) Breaker(b Backend) *resilience.CircuitBreaker {
	return c.breakers[b]
}

// response is what survived the round trip.
type response struct {
	status int
	header http.Header
	body   []byte
}

// Do runs req through the gate and the request policy and returns the raw
// response body on success.
func (c *Client) Do(ctx context.Context, req Request) Result[[]byte] {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	backend := BackendFor(req.Path)
	current := c.stage.Current()

	reqID := log.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
		ctx = log.ContextWithRequestID(ctx, reqID)
	}
	logger := log.WithContext(ctx, c.logger).With().
		Str(log.FieldMethod, method).
		Str(log.FieldPath, req.Path).
		Str(log.FieldBackend, string(backend)).
		Logger()

	verdict := gate.Check(req.Path, current, req.Bypass)
	ctx, span := telemetry.Tracer("evc/api").Start(ctx, "api."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.RequestAttributes(method, req.Path, string(backend), verdict.Category.String())...),
		trace.WithAttributes(telemetry.StageAttributes(log.SessionIDFromContext(ctx), current.String())...),
	)
	defer span.End()

	finish := func(r Result[[]byte], outcome string) Result[[]byte] {
		metrics.RecordClientRequest(string(backend), outcome)
		span.SetAttributes(telemetry.OutcomeAttributes(outcome, r.Failure.Status)...)
		if r.Kind == KindFailure {
			span.SetAttributes(telemetry.ErrorAttributes(failureClass(r.Failure))...)
			span.SetStatus(codes.Error, r.Failure.Message)
		}
		return r
	}

	if !verdict.Allowed {
		metrics.RecordGateAbort(verdict.Category.String(), current.String())
		logger.Debug().
			Str(log.FieldEvent, "request.skipped").
			Str(log.FieldStage, current.String()).
			Str(log.FieldCategory, verdict.Category.String()).
			Msg(verdict.Reason)
		return finish(Aborted[[]byte](verdict.Reason), "aborted")
	}

	key := dedup.Key(method, req.Path, req.Query)
	cacheable := method == http.MethodGet && !req.NoCache && c.cacheTTL > 0 && verdict.Category == gate.CategoryPublic
	if cacheable {
		if body, ok := c.cache.Get(key); ok {
			logger.Debug().Str(log.FieldEvent, "request.cache_hit").Msg("served from cache")
			return finish(Success(body), "cached")
		}
	}

	reqCtx, release, err := c.policy.Begin(ctx, key)
	defer release()
	if errors.Is(err, dedup.ErrRateLimited) {
		logger.Debug().Str(log.FieldEvent, "request.rate_limited").Msg("request rate limited")
		return finish(Aborted[[]byte](ReasonRateLimited), "aborted")
	}

	resp, err := c.send(reqCtx, backend, method, reqID, req)
	if resp != nil {
		c.persistRefreshToken(backend, resp.header, logger)
	}
	switch {
	case err == nil:
	case dedup.Superseded(reqCtx):
		logger.Debug().Str(log.FieldEvent, "request.superseded").Msg("request superseded by newer call")
		return finish(Aborted[[]byte](ReasonSuperseded), "aborted")
	case errors.Is(ctx.Err(), context.Canceled):
		return finish(Aborted[[]byte](ReasonCancelled), "aborted")
	default:
		f := transportFailure(err)
		logger.Warn().Err(err).Str(log.FieldEvent, "request.failed").Int(log.FieldStatus, f.Status).Msg("backend request failed")
		return finish(Failure[[]byte](f), "failure")
	}

	switch {
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		c.clearCredential(backend, logger)
		logger.Warn().
			Str(log.FieldEvent, "request.auth_failed").
			Int(log.FieldStatus, resp.status).
			Msg("credential rejected, cleared local token")
		if c.onAuth != nil {
			c.onAuth(backend, resp.status)
		}
		msg := messageFromBody(resp.body, resp.status)
		return finish(Failure[[]byte](FailureDetail{
			Status:   resp.status,
			Message:  msg,
			Auth:     true,
			Redirect: backend.LoginPath(),
			Err:      &Error{Sentinel: sentinelForStatus(resp.status), Op: method + " " + req.Path, Status: resp.status, Body: msg},
		}), "auth")
	case resp.status < 200 || resp.status > 299:
		msg := messageFromBody(resp.body, resp.status)
		logger.Info().Str(log.FieldEvent, "request.rejected").Int(log.FieldStatus, resp.status).Msg(msg)
		return finish(Failure[[]byte](FailureDetail{
			Status:  resp.status,
			Message: msg,
			Err:     &Error{Sentinel: sentinelForStatus(resp.status), Op: method + " " + req.Path, Status: resp.status, Body: msg},
		}), "failure")
	}

	if cacheable {
		c.cache.Set(key, resp.body, c.cacheTTL)
	} else if method != http.MethodGet && backend != BackendExternal {
		// A write may invalidate anything previously read.
		c.cache.Clear()
	}
	return finish(Success(resp.body), "success")
}

// send performs the round trip inside the backend's circuit breaker. 5xx
// responses count as breaker failures and come back as errors alongside the
// response; every other status is returned as a response.
func (c *Client) send(ctx context.Context, backend Backend, method, reqID string, req Request) (*response, error) {
	_, target, err := c.router.Resolve(req.Path, req.Query)
	if err != nil {
		return nil, &Error{Sentinel: ErrUpstream, Op: "resolve", Err: err}
	}

	var payload []byte
	if req.Body != nil {
		if payload, err = json.Marshal(req.Body); err != nil {
			return nil, &Error{Sentinel: ErrUpstream, Op: "encode body", Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out *response
	start := time.Now()
	err = c.breakers[backend].Execute(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(payload))
		if err != nil {
			return &Error{Sentinel: ErrUpstream, Op: "build request", Err: err}
		}
		c.decorate(httpReq, backend, reqID, req, payload != nil)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		out = &response{status: resp.StatusCode, header: resp.Header, body: body}
		if resp.StatusCode >= 500 {
			msg := messageFromBody(body, resp.StatusCode)
			return &Error{Sentinel: ErrUpstream, Op: method + " " + req.Path, Status: resp.StatusCode, Body: msg}
		}
		return nil
	}, countsAsFailure)
	metrics.ClientRequestDuration.WithLabelValues(string(backend)).Observe(time.Since(start).Seconds())

	if err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) decorate(r *http.Request, backend Backend, reqID string, req Request, hasBody bool) {
	for k, vs := range req.Header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	r.Header.Set("Accept", "application/json")
	if hasBody {
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set(HeaderRequestID, reqID)

	if key := backend.TokenKey(); key != "" {
		token, err := tokenstore.Lookup(c.tokens, key)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("token lookup failed, sending unauthenticated")
		}
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// failureClass buckets a failure for span attributes.
func failureClass(f FailureDetail) string {
	switch {
	case f.Auth:
		return "auth"
	case f.Status == 0:
		return "transport"
	case f.Status >= 500:
		return "upstream"
	default:
		return "client"
	}
}

// countsAsFailure keeps local cancellations out of the breaker's failure
// count.
func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func (c *Client) persistRefreshToken(backend Backend, h http.Header, logger zerolog.Logger) {
	token := h.Get(HeaderRefreshToken)
	key := backend.TokenKey()
	if token == "" || key == "" {
		return
	}
	if err := c.tokens.Set(key, token); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("failed to persist refreshed token")
		return
	}
	metrics.TokenRotationsTotal.WithLabelValues(key).Inc()
}

func (c *Client) clearCredential(backend Backend, logger zerolog.Logger) {
	key := backend.TokenKey()
	if key == "" {
		return
	}
	if err := c.tokens.Delete(key); err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		logger.Error().Err(err).Str("key", key).Msg("failed to clear token")
	}
}

// transportFailure classifies an error that produced no usable response.
func transportFailure(err error) FailureDetail {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Body
		if msg == "" {
			msg = apiErr.Error()
		}
		return FailureDetail{Status: apiErr.Status, Message: msg, Err: apiErr}
	}

	var netErr net.Error
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return FailureDetail{Message: "service temporarily unavailable", Err: &Error{Sentinel: ErrCircuitOpen, Op: "send", Err: err}}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return FailureDetail{Message: "request timed out", Err: &Error{Sentinel: ErrTimeout, Op: "send", Err: err}}
	default:
		return FailureDetail{Message: err.Error(), Err: &Error{Sentinel: ErrUpstream, Op: "send", Err: err}}
	}
}

// Fetch runs req and decodes a successful body into T. An empty body
// decodes to the zero value.
func Fetch[T any](ctx context.Context, c *Client, req Request) Result[T] {
	r := c.Do(ctx, req)
	if r.Kind != KindSuccess {
		return convert[[]byte, T](r)
	}

	var v T
	if len(bytes.TrimSpace(r.Value)) == 0 {
		return Success(v)
	}
	if err := json.Unmarshal(r.Value, &v); err != nil {
		return Failure[T](FailureDetail{
			Status:  http.StatusOK,
			Message: "invalid response from server",
			Err:     &Error{Sentinel: ErrBadResponse, Op: "decode " + req.Path, Err: err},
		})
	}
	return Success(v)
}
