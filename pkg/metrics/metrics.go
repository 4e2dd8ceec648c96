// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the worker and gateway's Prometheus
// instrumentation: proof throughput, proof latency, and queue depth.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process-wide instrument set. Construct one with
// NewMetrics and register it with a prometheus.Registerer.
type Metrics struct {
	ProofsTotal        *prometheus.CounterVec
	ProofDuration      prometheus.Histogram
	QueueDepth         prometheus.Gauge
	VerificationsTotal *prometheus.CounterVec
}

// NewMetrics constructs the instrument set. outcome is "completed" or
// "failed" on ProofsTotal, "valid" or "invalid" on VerificationsTotal.
func NewMetrics() *Metrics {
	return &Metrics{
		ProofsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mpesa_credit_proof",
			Name:      "proofs_total",
			Help:      "Proof generation attempts by outcome.",
		}, []string{"outcome"}),
		ProofDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mpesa_credit_proof",
			Name:      "proof_duration_seconds",
			Help:      "Time spent inside zkVM prove, including signing.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mpesa_credit_proof",
			Name:      "queue_depth",
			Help:      "Approximate number of sessions awaiting proof generation.",
		}),
		VerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mpesa_credit_proof",
			Name:      "verifications_total",
			Help:      "Verification requests by result.",
		}, []string{"result"}),
	}
}

// MustRegister registers every instrument with reg, panicking on
// duplicate registration (a programmer error, not a runtime
// condition).
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.ProofsTotal, m.ProofDuration, m.QueueDepth, m.VerificationsTotal)
}
