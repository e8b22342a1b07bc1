// Package resample implements the two streaming sample-rate-converter
// flavors the pipeline needs: a fast/variable-output converter for input
// workers, and a fixed-output converter with an input-frames-needed query
// for output workers. Both share a linear-interpolation core — grounded
// on the fractional read-head approach common in small Go audio shims,
// rather than wrapping an external resampling library: no library in the
// retrieved reference set has a worked usage example to ground a real
// API against, so this is a from-scratch implementation instead of a
// fabricated binding.
package resample

import "math"

// identityTolerance is the ratio deviation from 1.0 below which the
// converter bypasses interpolation entirely and copies samples through,
// satisfying the "resample(x, fs, fs) == x" identity property exactly.
const identityTolerance = 1e-3

// Overflow trimming bounds for Fast's pending-input FIFO: a stalled
// input worker (not Push-ing for a while, then resuming) can otherwise
// accumulate unbounded input. Once the FIFO exceeds overflowCapSeconds
// of audio, it is trimmed back down to overflowTargetRatio of a
// one-second cap, crossfading over the trim boundary to avoid an
// audible click.
const (
	overflowCapSeconds  = 1.25
	overflowTargetRatio = 0.875
	overflowFadeMS      = 5.0
)

// core holds the linear-interpolation state shared by Fast and Fixed.
type core struct {
	channels int
	inRate   float64
	outRate  float64
	step     float64 // input frames advanced per output frame

	fifo   []float32 // interleaved, pending input frames
	cursor float64   // fractional read position, in input frames, into fifo
}

func newCore(inRate, outRate float64, channels int) *core {
	c := &core{channels: channels}
	c.setRates(inRate, outRate)
	return c
}

func (c *core) setRates(inRate, outRate float64) {
	c.inRate = inRate
	c.outRate = outRate
	if outRate <= 0 {
		c.step = 1
		return
	}
	c.step = inRate / outRate
}

func (c *core) ratio() float64 {
	if c.inRate == 0 {
		return 1
	}
	return c.outRate / c.inRate
}

func (c *core) isIdentity() bool {
	return math.Abs(c.ratio()-1) < identityTolerance
}

func (c *core) frameAt(frameIdx, channel int) float32 {
	i := frameIdx*c.channels + channel
	if i < 0 || i >= len(c.fifo) {
		return 0
	}
	return c.fifo[i]
}

func (c *core) availableFrames() int {
	if c.channels == 0 {
		return 0
	}
	return len(c.fifo) / c.channels
}

// dropConsumedFrames removes whole frames already passed by the cursor
// from the front of the FIFO, keeping only the fractional remainder.
func (c *core) dropConsumedFrames() {
	consumed := int(c.cursor)
	if consumed <= 0 {
		return
	}
	if consumed > c.availableFrames() {
		consumed = c.availableFrames()
	}
	c.fifo = c.fifo[consumed*c.channels:]
	c.cursor -= float64(consumed)
}

// Fast is the variable-output resampler used by input workers: callers
// push arbitrary-sized chunks and get back whatever frames are currently
// realizable; any boundary fraction is absorbed in the internal FIFO.
type Fast struct {
	core
}

// NewFast constructs a variable-output resampler.
func NewFast(inRate, outRate float64, channels int) *Fast {
	return &Fast{core: *newCore(inRate, outRate, channels)}
}

// SetSampleRates adjusts the conversion ratio. preserveState must be true
// for drift correction to work as specified; it is accepted as a
// parameter (rather than always assumed) so call sites document the
// intent the way §4.3 requires.
func (f *Fast) SetSampleRates(inRate, outRate float64, preserveState bool) {
	if !preserveState {
		f.fifo = nil
		f.cursor = 0
	}
	f.setRates(inRate, outRate)
}

// Push appends interleaved input samples and returns as many interleaved
// output samples as the currently buffered input supports.
func (f *Fast) Push(input []float32) []float32 {
	if f.isIdentity() {
		return append([]float32(nil), input...)
	}

	f.fifo = append(f.fifo, input...)
	f.trimOverflow()
	frames := f.availableFrames()

	var out []float32
	for {
		idx := int(f.cursor)
		if idx+1 >= frames {
			break
		}
		frac := float32(f.cursor - float64(idx))
		for ch := 0; ch < f.channels; ch++ {
			a := f.frameAt(idx, ch)
			b := f.frameAt(idx+1, ch)
			out = append(out, a+(b-a)*frac)
		}
		f.cursor += f.step
	}
	f.dropConsumedFrames()
	return out
}

// Reset drops all buffered input and resets the fractional cursor.
func (f *Fast) Reset() {
	f.fifo = nil
	f.cursor = 0
}

// trimOverflow drops the oldest frames once the pending FIFO exceeds
// overflowCapSeconds of audio at the input rate, crossfading the last
// overflowFadeMS of the dropped region into the retained region's head
// rather than truncating at a hard boundary.
func (f *Fast) trimOverflow() {
	if f.inRate <= 0 {
		return
	}
	capFrames := int(overflowCapSeconds * f.inRate)
	available := f.availableFrames()
	if available <= capFrames {
		return
	}

	targetFrames := int(overflowTargetRatio * f.inRate)
	if targetFrames <= 0 || targetFrames >= available {
		return
	}
	drop := available - targetFrames

	fadeFrames := int(overflowFadeMS / 1000 * f.inRate)
	if fadeFrames > targetFrames {
		fadeFrames = targetFrames
	}
	if fadeFrames > drop {
		fadeFrames = drop
	}

	for i := 0; i < fadeFrames; i++ {
		t := float32(i) / float32(fadeFrames)
		droppedFrame := drop - fadeFrames + i
		keptFrame := drop + i
		for ch := 0; ch < f.channels; ch++ {
			droppedIdx := droppedFrame*f.channels + ch
			keptIdx := keptFrame*f.channels + ch
			if droppedIdx < 0 || keptIdx >= len(f.fifo) {
				continue
			}
			f.fifo[keptIdx] = f.fifo[droppedIdx]*(1-t) + f.fifo[keptIdx]*t
		}
	}

	f.fifo = f.fifo[drop*f.channels:]
	f.cursor -= float64(drop)
	if f.cursor < 0 {
		f.cursor = 0
	}
}

// Fixed is the fixed-output resampler used by output workers: callers
// request exactly N output frames per channel, querying InputFramesNeeded
// first so they can supply enough source material; only as a last resort
// (to avoid an underrun) does GetOutput pad with zeros.
type Fixed struct {
	core
}

// NewFixed constructs a fixed-output resampler.
func NewFixed(inRate, outRate float64, channels int) *Fixed {
	return &Fixed{core: *newCore(inRate, outRate, channels)}
}

// SetSampleRates adjusts the conversion ratio, as Fast.SetSampleRates.
func (f *Fixed) SetSampleRates(inRate, outRate float64, preserveState bool) {
	if !preserveState {
		f.fifo = nil
		f.cursor = 0
	}
	f.setRates(inRate, outRate)
}

// OutRate returns the converter's current output rate, for drift
// telemetry and tests.
func (f *Fixed) OutRate() float64 { return f.outRate }

// PushInput appends interleaved input samples to the internal FIFO.
func (f *Fixed) PushInput(input []float32) {
	f.fifo = append(f.fifo, input...)
}

// InputFramesNeeded reports how many additional input frames must be
// pushed before GetOutput(outFrames) can be satisfied without padding.
func (f *Fixed) InputFramesNeeded(outFrames int) int {
	if f.isIdentity() {
		missing := outFrames - f.availableFrames()
		if missing < 0 {
			return 0
		}
		return missing
	}
	endCursor := f.cursor + float64(outFrames)*f.step
	neededFrames := int(math.Ceil(endCursor)) + 1
	missing := neededFrames - f.availableFrames()
	if missing < 0 {
		return 0
	}
	return missing
}

// GetOutput produces exactly outFrames frames (outFrames*channels
// samples), padding the FIFO with zeros if the caller under-supplied
// input via PushInput (an underrun condition the caller should count).
func (f *Fixed) GetOutput(outFrames int) []float32 {
	if f.isIdentity() {
		return f.getOutputIdentity(outFrames)
	}

	if missing := f.InputFramesNeeded(outFrames); missing > 0 {
		f.fifo = append(f.fifo, make([]float32, missing*f.channels)...)
	}

	out := make([]float32, 0, outFrames*f.channels)
	for i := 0; i < outFrames; i++ {
		idx := int(f.cursor)
		frac := float32(f.cursor - float64(idx))
		for ch := 0; ch < f.channels; ch++ {
			a := f.frameAt(idx, ch)
			b := f.frameAt(idx+1, ch)
			out = append(out, a+(b-a)*frac)
		}
		f.cursor += f.step
	}
	f.dropConsumedFrames()
	return out
}

func (f *Fixed) getOutputIdentity(outFrames int) []float32 {
	have := f.availableFrames()
	if have < outFrames {
		f.fifo = append(f.fifo, make([]float32, (outFrames-have)*f.channels)...)
	}
	out := append([]float32(nil), f.fifo[:outFrames*f.channels]...)
	f.fifo = f.fifo[outFrames*f.channels:]
	return out
}

// Reset drops all buffered input and resets the fractional cursor.
func (f *Fixed) Reset() {
	f.fifo = nil
	f.cursor = 0
}
