// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	busDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_bus_delivered_total",
		Help: "Bus messages handed to a subscriber channel, by topic",
	}, []string{"topic"})

	// BusDroppedTotal counts messages a subscriber never received.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evc_bus_dropped_total",
		Help: "Bus messages lost before reaching a subscriber, by topic and reason",
	}, []string{"topic", "reason"})
)

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// AddBusDelivered adds n deliveries on topic. Zero is ignored.
func AddBusDelivered(topic string, n int) {
	if n <= 0 {
		return
	}
	busDelivered.WithLabelValues(orUnknown(topic)).Add(float64(n))
}

// IncBusDropReason records one lost message. Empty labels become "unknown".
func IncBusDropReason(topic, reason string) {
	BusDroppedTotal.WithLabelValues(orUnknown(topic), orUnknown(reason)).Inc()
}
