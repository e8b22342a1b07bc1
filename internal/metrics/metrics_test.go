package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderRegistersGatherableMetrics(t *testing.T) {
	recorder, registry := NewPrometheusRecorder()
	recorder.RecordOverrun("mic-1")
	recorder.RecordUnderrun("speakers-1")
	recorder.RecordDropped("mic-1", "queue-full")
	recorder.RecordDriftMS("speakers-1", 1.5)
	recorder.RecordVULevel("mic-1", 3, -6.0, -18.0)
	recorder.SetWorkerState("mic-1", "input", 2)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["mixer_queue_overrun_total"])
	assert.True(t, names["mixer_queue_underrun_total"])
	assert.True(t, names["mixer_clock_drift_milliseconds"])
	assert.True(t, names["mixer_vu_peak_db"])
	assert.True(t, names["mixer_worker_state"])
}

func TestPrometheusRecorderDoesNotPolluteDefaultRegistry(t *testing.T) {
	before := testutilGatherCount(t, prometheus.DefaultGatherer)
	_, _ = NewPrometheusRecorder()
	after := testutilGatherCount(t, prometheus.DefaultGatherer)
	assert.Equal(t, before, after)
}

func testutilGatherCount(t *testing.T, g prometheus.Gatherer) int {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	return len(families)
}

func TestTestRecorderCountsCalls(t *testing.T) {
	r := NewTestRecorder()
	r.RecordOverrun("mic-1")
	r.RecordOverrun("mic-1")
	r.RecordUnderrun("speakers-1")
	r.RecordDropped("mic-1", "full")
	r.RecordDriftMS("speakers-1", 2.25)

	assert.Equal(t, 2, r.Overruns["mic-1"])
	assert.Equal(t, 1, r.Underruns["speakers-1"])
	assert.Equal(t, 1, r.Dropped["mic-1/full"])
	assert.InDelta(t, 2.25, r.LastDriftMS["speakers-1"], 0.001)
}

func TestNoOpRecorderDoesNotPanic(t *testing.T) {
	var r Recorder = NoOpRecorder{}
	r.RecordOverrun("x")
	r.RecordUnderrun("x")
	r.RecordDropped("x", "y")
	r.RecordDriftMS("x", 1)
	r.RecordQueueOccupancy("x", 50)
	r.RecordVULevel("x", 1, -1, -2)
	r.SetWorkerState("x", "input", 1)
}
