// SPDX-License-Identifier: MIT
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeVecValue(t *testing.T, gaugeVec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gaugeVec.WithLabelValues(labels...).Write(metric))
	return metric.GetGauge().GetValue()
}

func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counterVec.WithLabelValues(labels...).Write(metric))
	return metric.GetCounter().GetValue()
}

func TestSetCircuitBreakerState_OneHot(t *testing.T) {
	SetCircuitBreakerState("api_public", "open")
	assert.Equal(t, 1.0, getGaugeVecValue(t, circuitBreakerState, "api_public", "open"))
	assert.Equal(t, 0.0, getGaugeVecValue(t, circuitBreakerState, "api_public", "closed"))
	assert.Equal(t, 0.0, getGaugeVecValue(t, circuitBreakerState, "api_public", "half-open"))

	SetCircuitBreakerState("api_public", "closed")
	assert.Equal(t, 0.0, getGaugeVecValue(t, circuitBreakerState, "api_public", "open"))
	assert.Equal(t, 1.0, getGaugeVecValue(t, circuitBreakerState, "api_public", "closed"))
}

func TestRecordCircuitBreakerTrip(t *testing.T) {
	initial := getCounterVecValue(t, CircuitBreakerTrips, "api_admin")
	RecordCircuitBreakerTrip("api_admin")
	assert.Equal(t, initial+1, getCounterVecValue(t, CircuitBreakerTrips, "api_admin"))
}

func TestIncBusDropReason_DefaultsEmptyLabels(t *testing.T) {
	initial := getCounterVecValue(t, BusDroppedTotal, "unknown", "unknown")
	IncBusDropReason("", "")
	assert.Equal(t, initial+1, getCounterVecValue(t, BusDroppedTotal, "unknown", "unknown"))
}

func TestAddBusDelivered(t *testing.T) {
	initial := getCounterVecValue(t, busDelivered, "metrics.test")
	AddBusDelivered("metrics.test", 3)
	AddBusDelivered("metrics.test", 0)
	assert.Equal(t, initial+3, getCounterVecValue(t, busDelivered, "metrics.test"))
}

func TestStageCounters(t *testing.T) {
	tests := []struct {
		name   string
		record func()
		vec    *prometheus.CounterVec
		labels []string
	}{
		{"transition", func() { RecordStageTransition("initial", "authentication") }, StageTransitionsTotal, []string{"initial", "authentication"}},
		{"rejection", func() { RecordStageRejection("regression blocked") }, StageRejectionsTotal, []string{"regression blocked"}},
		{"gate abort", func() { RecordGateAbort("user", "initial") }, GateAbortsTotal, []string{"user", "initial"}},
		{"client request", func() { RecordClientRequest("public", "aborted") }, ClientRequestsTotal, []string{"public", "aborted"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initial := getCounterVecValue(t, tt.vec, tt.labels...)
			tt.record()
			assert.Equal(t, initial+1, getCounterVecValue(t, tt.vec, tt.labels...))
		})
	}
}
