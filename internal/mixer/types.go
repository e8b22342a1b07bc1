// Package mixer implements the real-time pipeline core: per-input
// workers (resample + effects + pan/mute), the mixing layer (sum,
// peak-aware normalize, master gain), per-output workers (resample +
// chunk), and the pipeline manager that owns their lifecycles.
package mixer

import "time"

// ProcessedFrame is one input worker's output: a chunk of interleaved
// stereo samples at the mix sample rate, ready to be summed by the
// mixing layer.
type ProcessedFrame struct {
	Samples   []float32
	SourceID  string
	Channels  int
	Timestamp time.Time
}

// MixedFrame is the mixing layer's output, fanned out to every output
// worker via the broadcast queue.
type MixedFrame struct {
	Samples    []float32
	SampleRate int
	Timestamp  time.Time
	InputCount int
}

// DeviceMeta describes a registered device's fixed properties.
type DeviceMeta struct {
	ID         string
	NativeRate int
	Channels   int
}

// WorkerState is a one-shot lifecycle: restart means constructing a new
// worker, never resetting this one.
type WorkerState int

const (
	StateCreated WorkerState = iota
	StateStarted
	StateRunning
	StateStopping
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SinkFunc delivers one device-chunk-sized block of interleaved samples
// to an output device. It must not block for long: the output worker's
// loop is otherwise clear to keep draining the mixer's broadcast.
type SinkFunc func(samples []float32) error

const maxInputDrainSamples = 8192
