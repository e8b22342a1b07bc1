package dsp

import "math"

// peakDecay is the per-sample-group decay applied by PeakDetector; it
// lets the meter fall gracefully instead of jumping straight to the new
// sample's level.
const peakDecay = 0.999

// PeakDetector tracks a decaying running peak. It is meant for metering
// (VU), not for gain control — the limiter has its own envelope.
type PeakDetector struct {
	peak float64
}

// NewPeakDetector returns a detector with an initial peak of zero.
func NewPeakDetector() *PeakDetector {
	return &PeakDetector{}
}

// Process updates the running peak from a block of samples and returns
// the current value.
func (d *PeakDetector) Process(samples []float32) float64 {
	d.peak *= peakDecay
	for _, s := range samples {
		v := math.Abs(float64(validateFloat(float64(s))))
		if v > d.peak {
			d.peak = v
		}
	}
	d.peak = flushDenormal(d.peak)
	return d.peak
}

// Reset zeros the running peak.
func (d *PeakDetector) Reset() {
	d.peak = 0
}

// RMSDetector maintains a sliding-window RMS over a 100 ms ring buffer of
// squared samples, evicting the oldest entries by ring index as new ones
// arrive.
type RMSDetector struct {
	window    []float64
	pos       int
	count     int
	sumSquare float64
}

// NewRMSDetector sizes the sliding window to 100 ms at sampleRate.
func NewRMSDetector(sampleRate int) *RMSDetector {
	size := sampleRate / 10
	if size < 1 {
		size = 1
	}
	return &RMSDetector{window: make([]float64, size)}
}

// Process folds a block of samples into the running sum-of-squares and
// returns the current RMS.
func (d *RMSDetector) Process(samples []float32) float64 {
	for _, s := range samples {
		v := validateFloat(float64(s))
		sq := v * v

		old := d.window[d.pos]
		d.sumSquare += sq - old
		d.window[d.pos] = sq
		d.pos = (d.pos + 1) % len(d.window)
		if d.count < len(d.window) {
			d.count++
		}
	}
	if d.sumSquare < 0 {
		// Guards against floating-point drift driving the running sum
		// slightly negative after many eviction cycles.
		d.sumSquare = 0
	}
	if d.count == 0 {
		return 0
	}
	mean := d.sumSquare / float64(d.count)
	return flushDenormal(math.Sqrt(mean))
}

// Reset clears the window and running sum.
func (d *RMSDetector) Reset() {
	for i := range d.window {
		d.window[i] = 0
	}
	d.pos = 0
	d.count = 0
	d.sumSquare = 0
}
