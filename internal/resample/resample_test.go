package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFastIdentityRatioIsCopy(t *testing.T) {
	r := NewFast(48000, 48000, 2)
	in := []float32{0.1, -0.2, 0.3, -0.4, 0.5, -0.6}
	out := r.Push(in)
	assert.Equal(t, in, out)
}

func TestFastUpsampleProducesMoreFrames(t *testing.T) {
	r := NewFast(8000, 16000, 1)
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 10))
	}
	out := r.Push(in)
	// Roughly double the frames; allow slack for the fractional tail
	// staying buffered in the FIFO.
	assert.Greater(t, len(out), 150)
}

func TestFastTrimsOverflowingPendingBuffer(t *testing.T) {
	r := NewFast(44100, 48000, 1)

	// Simulate a stalled consumer: the FIFO accumulates well beyond the
	// cap without ever being drained by Push's consumption loop.
	r.fifo = make([]float32, int(2.0*44100))
	r.cursor = 10

	r.trimOverflow()

	capFrames := int(overflowCapSeconds * r.inRate)
	targetFrames := int(overflowTargetRatio * r.inRate)
	assert.LessOrEqual(t, r.availableFrames(), capFrames)
	assert.InDelta(t, targetFrames, r.availableFrames(), 1)
}

func TestFastTrimOverflowLeavesCursorNonNegative(t *testing.T) {
	r := NewFast(44100, 48000, 1)
	r.fifo = make([]float32, int(2.0*44100))
	r.cursor = 10

	r.trimOverflow()

	assert.GreaterOrEqual(t, r.cursor, 0.0)
}

func TestFastTrimOverflowNoopBelowCap(t *testing.T) {
	r := NewFast(44100, 48000, 1)
	r.fifo = make([]float32, 1000)
	r.cursor = 5

	r.trimOverflow()

	assert.Len(t, r.fifo, 1000)
	assert.Equal(t, 5.0, r.cursor)
}

func TestFixedInputFramesNeededThenGetOutput(t *testing.T) {
	r := NewFixed(44100, 48000, 2)
	needed := r.InputFramesNeeded(512)
	assert.Greater(t, needed, 0)

	in := make([]float32, needed*2)
	for i := range in {
		in[i] = 0.1
	}
	r.PushInput(in)
	out := r.GetOutput(512)
	assert.Len(t, out, 512*2)
}

func TestFixedPadsWithZerosOnUnderrun(t *testing.T) {
	r := NewFixed(44100, 48000, 2)
	// No input pushed at all; GetOutput must still return exactly the
	// requested length instead of blocking or panicking.
	out := r.GetOutput(256)
	assert.Len(t, out, 256*2)
}

func TestSetSampleRatesPreserveStateDoesNotPanic(t *testing.T) {
	r := NewFast(48000, 48000, 1)
	r.Push([]float32{1, 2, 3})
	r.SetSampleRates(44100, 48000, true)
	assert.NotNil(t, r) // FIFO-preserving path must not panic
}
