// Package httpx builds the hardened HTTP clients used for backend calls.
package httpx

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultClientTimeout         = 10 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 5 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
)

// Option customises a client built by NewClient.
type Option func(*options)

type options struct {
	traced bool
	jar    bool
}

// WithTracing wraps the transport with otelhttp so every backend call
// produces a client span and propagates trace context.
func WithTracing() Option { return func(o *options) { o.traced = true } }

// WithCookieJar attaches a public-suffix aware cookie jar. The backends set
// session cookies next to bearer tokens.
func WithCookieJar() Option { return func(o *options) { o.jar = true } }

// NewClient returns a hardened HTTP client for backend calls.
func NewClient(timeout time.Duration, opts ...Option) *http.Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	dialTimeout := min(timeout, defaultDialTimeout)
	responseHeaderTimeout := min(timeout, defaultResponseHeaderTimeout)

	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
	if o.traced {
		transport = otelhttp.NewTransport(transport)
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	if o.jar {
		// cookiejar.New never returns a non-nil error.
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		client.Jar = jar
	}
	return client
}
