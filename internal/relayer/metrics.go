// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects every Prometheus collector the relayer emits. A single
// instance is constructed per RelayerLoop and threaded into every
// component constructor; each instance owns its registry so tests stay
// isolated from the global default.
type Metrics struct {
	registry *prometheus.Registry

	blockhashAgeSeconds prometheus.Gauge
	blockhashRefreshFailures prometheus.Counter

	nonceAcquireTotal  *prometheus.CounterVec
	nonceStateGauge    *prometheus.GaugeVec
	nonceMaintenanceDuration prometheus.Histogram

	keyLeaseTotal    *prometheus.CounterVec
	keyTierAvailable *prometheus.GaugeVec

	adapterOutcomeTotal *prometheus.CounterVec
	circuitBreakerTrips prometheus.Counter

	confirmationRatio      prometheus.Gauge
	confirmationTimeouts   prometheus.Counter
	confirmationDuration   prometheus.Histogram

	queueDepth   prometheus.Gauge
	queueDropped prometheus.Counter
}

// NewMetrics builds a Metrics set backed by its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		blockhashAgeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relayer_blockhash_age_seconds",
			Help: "Age of the cached blockhash at last read.",
		}),
		blockhashRefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relayer_blockhash_refresh_failures_total",
			Help: "Failed blockhash refresh attempts.",
		}),
		nonceAcquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_nonce_acquire_total",
			Help: "Nonce acquisition attempts by outcome.",
		}, []string{"outcome"}),
		nonceStateGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayer_nonce_state_count",
			Help: "Nonce pool entries by state.",
		}, []string{"state"}),
		nonceMaintenanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "relayer_nonce_maintenance_duration_seconds",
			Help: "Duration of each nonce-pool maintenance cycle.",
		}),
		keyLeaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_key_lease_total",
			Help: "Explorer key lease attempts by outcome.",
		}, []string{"outcome"}),
		keyTierAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayer_key_tier_available_count",
			Help: "Available key count by tier.",
		}, []string{"tier"}),
		adapterOutcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_adapter_outcome_total",
			Help: "Adapter submission outcomes by provider and result.",
		}, []string{"provider", "outcome"}),
		circuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relayer_circuit_breaker_trips_total",
			Help: "Times the circuit breaker abandoned a result.",
		}),
		confirmationRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relayer_confirmation_ratio",
			Help: "Confirmed over submitted signatures, last run.",
		}),
		confirmationTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relayer_confirmation_timeouts_total",
			Help: "Signatures that never resolved before the deadline.",
		}),
		confirmationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "relayer_confirmation_duration_seconds",
			Help: "Wall-clock time from submission to resolution.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relayer_queue_depth",
			Help: "Current FIFO backlog depth.",
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relayer_queue_dropped_total",
			Help: "Backlog entries dropped due to overflow.",
		}),
	}

	reg.MustRegister(
		m.blockhashAgeSeconds, m.blockhashRefreshFailures,
		m.nonceAcquireTotal, m.nonceStateGauge, m.nonceMaintenanceDuration,
		m.keyLeaseTotal, m.keyTierAvailable,
		m.adapterOutcomeTotal, m.circuitBreakerTrips,
		m.confirmationRatio, m.confirmationTimeouts, m.confirmationDuration,
		m.queueDepth, m.queueDropped,
	)
	return m
}

// Registry exposes the underlying Prometheus registry for an embedding
// process to serve on its own /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
