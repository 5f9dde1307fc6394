// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_client_requests_total",
		Help: "Backend requests by backend and outcome (success|cached|failure|auth|aborted)",
	}, []string{"backend", "outcome"})

	ClientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evc_client_request_duration_seconds",
		Help:    "Backend round-trip latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	TokenRotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_token_rotations_total",
		Help: "Tokens persisted from X-Refresh-Token response headers",
	}, []string{"key"})

	RateLimitRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_ratelimit_rejected_total",
		Help: "Requests refused by the client-side rate limiter",
	}, []string{"scope"})

	RequestsSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evc_requests_superseded_total",
		Help: "In-flight requests cancelled by a newer request with the same key",
	})
)

// RecordClientRequest counts a finished request.
func RecordClientRequest(backend, outcome string) {
	ClientRequestsTotal.WithLabelValues(backend, outcome).Inc()
}
