// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package metrics exposes Prometheus collectors for engine runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autoswarm"

// Recorder holds the engine's collectors. A nil *Recorder records nothing.
type Recorder struct {
	runs         *prometheus.CounterVec
	batches      prometheus.Counter
	nodes        *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	inflight     prometheus.Gauge
}

// NewRecorder registers the collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Engine runs by final status.",
		}, []string{"status"}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_started_total",
			Help:      "Batches started across all runs.",
		}),
		nodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_total",
			Help:      "Node executions by terminal status.",
		}, []string{"status"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Wall time of a node execution.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}, []string{"status"}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes_inflight",
			Help:      "Nodes currently waiting on the collaborator.",
		}),
	}
}

// RunFinished counts a run.
func (r *Recorder) RunFinished(status string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
}

// BatchStarted counts a batch.
func (r *Recorder) BatchStarted() {
	if r == nil {
		return
	}
	r.batches.Inc()
}

// NodeStarted marks a node in flight.
func (r *Recorder) NodeStarted() {
	if r == nil {
		return
	}
	r.inflight.Inc()
}

// NodeFinished records a node's outcome and duration.
func (r *Recorder) NodeFinished(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.inflight.Dec()
	r.nodes.WithLabelValues(status).Inc()
	r.nodeDuration.WithLabelValues(status).Observe(d.Seconds())
}
