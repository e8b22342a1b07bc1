// Package metrics exposes the mixer core's operational counters through
// a small Recorder interface, so pipeline components depend on an
// interface rather than a concrete Prometheus type. Production wiring
// uses PrometheusRecorder; tests can substitute TestRecorder or
// NoOpRecorder without touching a real registry.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the narrow surface every pipeline component records
// through. A device ID or worker kind is passed as the label rather than
// baked into separate metric names, so the metric set does not grow with
// the number of registered devices.
type Recorder interface {
	RecordOverrun(deviceID string)
	RecordUnderrun(deviceID string)
	RecordDropped(deviceID string, reason string)
	RecordDriftMS(deviceID string, driftMS float64)
	RecordQueueOccupancy(deviceID string, percent float64)
	RecordVULevel(deviceID string, channel uint32, peakDB, rmsDB float64)
	SetWorkerState(deviceID string, kind string, state int)
}

// PrometheusRecorder records every metric into a dedicated registry,
// avoiding the global default registry so multiple mixer instances in
// one process (as in tests) never collide on metric registration.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	overruns    *prometheus.CounterVec
	underruns   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	driftMS     *prometheus.GaugeVec
	occupancy   *prometheus.GaugeVec
	vuPeakDB    *prometheus.GaugeVec
	vuRMSDB     *prometheus.GaugeVec
	workerState *prometheus.GaugeVec
}

// NewPrometheusRecorder builds a recorder and registers every metric
// against a fresh registry, returned alongside it for an HTTP handler to
// serve.
func NewPrometheusRecorder() (*PrometheusRecorder, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusRecorder{
		registry: registry,
		overruns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mixer",
			Subsystem: "queue",
			Name:      "overrun_total",
			Help:      "Samples dropped because a hardware input ring was full.",
		}, []string{"device_id"}),
		underruns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mixer",
			Subsystem: "queue",
			Name:      "underrun_total",
			Help:      "Output chunks padded with silence because too few samples were buffered.",
		}, []string{"device_id"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mixer",
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Frames dropped on a full internal queue.",
		}, []string{"device_id", "reason"}),
		driftMS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mixer",
			Subsystem: "clock",
			Name:      "drift_milliseconds",
			Help:      "Most recent measured clock drift in milliseconds.",
		}, []string{"device_id"}),
		occupancy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mixer",
			Subsystem: "queue",
			Name:      "occupancy_percent",
			Help:      "Estimated occupancy percentage of a queue.",
		}, []string{"device_id"}),
		vuPeakDB: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mixer",
			Subsystem: "vu",
			Name:      "peak_db",
			Help:      "Most recent peak level in dBFS.",
		}, []string{"device_id", "channel"}),
		vuRMSDB: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mixer",
			Subsystem: "vu",
			Name:      "rms_db",
			Help:      "Most recent RMS level in dBFS.",
		}, []string{"device_id", "channel"}),
		workerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mixer",
			Subsystem: "worker",
			Name:      "state",
			Help:      "Worker lifecycle state as an integer (see mixer.WorkerState).",
		}, []string{"device_id", "kind"}),
	}, registry
}

func (r *PrometheusRecorder) RecordOverrun(deviceID string) {
	r.overruns.WithLabelValues(deviceID).Inc()
}

func (r *PrometheusRecorder) RecordUnderrun(deviceID string) {
	r.underruns.WithLabelValues(deviceID).Inc()
}

func (r *PrometheusRecorder) RecordDropped(deviceID string, reason string) {
	r.dropped.WithLabelValues(deviceID, reason).Inc()
}

func (r *PrometheusRecorder) RecordDriftMS(deviceID string, driftMS float64) {
	r.driftMS.WithLabelValues(deviceID).Set(driftMS)
}

func (r *PrometheusRecorder) RecordQueueOccupancy(deviceID string, percent float64) {
	r.occupancy.WithLabelValues(deviceID).Set(percent)
}

func (r *PrometheusRecorder) RecordVULevel(deviceID string, channel uint32, peakDB, rmsDB float64) {
	label := strconv.FormatUint(uint64(channel), 10)
	r.vuPeakDB.WithLabelValues(deviceID, label).Set(peakDB)
	r.vuRMSDB.WithLabelValues(deviceID, label).Set(rmsDB)
}

func (r *PrometheusRecorder) SetWorkerState(deviceID string, kind string, state int) {
	r.workerState.WithLabelValues(deviceID, kind).Set(float64(state))
}

// NoOpRecorder discards every recorded metric. Used where a component
// requires a Recorder but a caller has not wired Prometheus, e.g. in
// lightweight unit tests.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOverrun(string)                          {}
func (NoOpRecorder) RecordUnderrun(string)                         {}
func (NoOpRecorder) RecordDropped(string, string)                  {}
func (NoOpRecorder) RecordDriftMS(string, float64)                 {}
func (NoOpRecorder) RecordQueueOccupancy(string, float64)          {}
func (NoOpRecorder) RecordVULevel(string, uint32, float64, float64) {}
func (NoOpRecorder) SetWorkerState(string, string, int)            {}

// TestRecorder captures every call for assertion in tests, grounded on
// the pattern used elsewhere in this codebase for recorder testing.
type TestRecorder struct {
	mu          sync.Mutex
	Overruns    map[string]int
	Underruns   map[string]int
	Dropped     map[string]int
	LastDriftMS map[string]float64
}

func NewTestRecorder() *TestRecorder {
	return &TestRecorder{
		Overruns:    make(map[string]int),
		Underruns:   make(map[string]int),
		Dropped:     make(map[string]int),
		LastDriftMS: make(map[string]float64),
	}
}

func (r *TestRecorder) RecordOverrun(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Overruns[deviceID]++
}

func (r *TestRecorder) RecordUnderrun(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Underruns[deviceID]++
}

func (r *TestRecorder) RecordDropped(deviceID string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dropped[deviceID+"/"+reason]++
}

func (r *TestRecorder) RecordDriftMS(deviceID string, driftMS float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LastDriftMS[deviceID] = driftMS
}

func (r *TestRecorder) RecordQueueOccupancy(string, float64)           {}
func (r *TestRecorder) RecordVULevel(string, uint32, float64, float64) {}
func (r *TestRecorder) SetWorkerState(string, string, int)             {}
