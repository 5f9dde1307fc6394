// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_stage_transitions_total",
		Help: "Accepted loading stage transitions",
	}, []string{"from", "to"})

	StageRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_stage_rejections_total",
		Help: "Rejected loading stage transitions by reason",
	}, []string{"reason"})

	GateAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_gate_aborts_total",
		Help: "Outbound requests skipped by the stage gate, by request category and stage",
	}, []string{"category", "stage"})

	PanicsRecoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_panics_recovered_total",
		Help: "Render-time panics contained by a boundary",
	}, []string{"boundary"})

	SafetyTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_loading_safety_timeouts_total",
		Help: "Loading flags forced off by the safety timer",
	}, []string{"flag"})
)

// RecordStageTransition counts an accepted transition.
func RecordStageTransition(from, to string) {
	StageTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordStageRejection counts a rejected transition.
func RecordStageRejection(reason string) {
	StageRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordGateAbort counts a request that was never sent.
func RecordGateAbort(category, stage string) {
	GateAbortsTotal.WithLabelValues(category, stage).Inc()
}
