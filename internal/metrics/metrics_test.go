// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.BatchStarted()
	r.BatchStarted()
	r.NodeStarted()
	r.NodeStarted()
	r.NodeFinished("completed", 250*time.Millisecond)
	r.NodeFinished("failed", time.Second)
	r.RunFinished("completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.batches))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nodes.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nodes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.inflight))
	assert.Equal(t, 2, testutil.CollectAndCount(r.nodeDuration))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.RunFinished("completed")
		r.BatchStarted()
		r.NodeStarted()
		r.NodeFinished("failed", time.Second)
	})
}
