// Package queue implements the pipeline's lock-free queue primitives: the
// hardware-callback-facing SPSC ring, its paired atomic occupancy
// tracker, and the mixer's non-blocking broadcast fan-out to output
// workers.
package queue

import "sync/atomic"

// Info is a point-in-time snapshot of a Tracker's occupancy estimate.
type Info struct {
	Capacity          uint64
	EstimatedOccupancy uint64
	UsagePercent       float64
	Available          uint64
}

// Tracker pairs with a single queue and estimates its occupancy from two
// monotonically increasing counters. Both counters are updated with
// sync/atomic loads/adds, but the two are read separately, not as one
// snapshot — callers must never treat Info() as exact; it is a
// drift/backpressure heuristic only, never a correctness signal.
type Tracker struct {
	capacity uint64
	written  atomic.Uint64
	read     atomic.Uint64

	// cumulative is the running drift adjustment in fixed-point units of
	// adjustScale, so repeated same-direction AdjustRatio calls converge
	// toward maxAdjust instead of each returning an identical small step.
	cumulative atomic.Int64
	lastSign   atomic.Int32
}

// adjustScale is the fixed-point scale backing Tracker.cumulative.
const adjustScale = 1e9

// NewTracker creates a tracker for a queue of the given capacity.
func NewTracker(capacity uint64) *Tracker {
	return &Tracker{capacity: capacity}
}

// RecordWritten advances the write counter by n.
func (t *Tracker) RecordWritten(n uint64) {
	t.written.Add(n)
}

// RecordRead advances the read counter by n.
func (t *Tracker) RecordRead(n uint64) {
	t.read.Add(n)
}

// Info returns the current occupancy estimate.
func (t *Tracker) Info() Info {
	written := t.written.Load()
	read := t.read.Load()

	var occupancy uint64
	if written > read {
		occupancy = written - read
	}
	if occupancy > t.capacity {
		occupancy = t.capacity
	}

	usage := 0.0
	if t.capacity > 0 {
		usage = float64(occupancy) / float64(t.capacity) * 100
	}

	return Info{
		Capacity:           t.capacity,
		EstimatedOccupancy: occupancy,
		UsagePercent:       usage,
		Available:          t.capacity - occupancy,
	}
}

// AdjustRatio computes a drift-corrected resample ratio nudge given the
// current fill level: target fill is 50%; above 55% supply is
// outrunning the consumer (nudge up), below 45% the reverse (nudge
// down), clamped to ±maxAdjust. A sustained skew in one direction
// compounds by step on every call instead of re-applying the same flat
// step forever, so callers polling on an interval eventually reach the
// clamp rather than topping out at one step's worth of correction. A
// reversal in drift direction resets accumulation and returns the
// single-step value for the new direction; a call landing in the dead
// zone returns the held value and resets nothing.
func (t *Tracker) AdjustRatio(step, maxAdjust float64) float64 {
	info := t.Info()

	var sign int32
	switch {
	case info.UsagePercent > 55:
		sign = 1
	case info.UsagePercent < 45:
		sign = -1
	default:
		return float64(t.cumulative.Load()) / adjustScale
	}

	prevSign := t.lastSign.Swap(sign)

	var next float64
	if prevSign == sign {
		next = float64(t.cumulative.Load())/adjustScale + step*float64(sign)
	} else {
		next = step * float64(sign)
	}
	next = clampAdjust(next, maxAdjust)
	t.cumulative.Store(int64(next * adjustScale))
	return next
}

func clampAdjust(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}
