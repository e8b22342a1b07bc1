package dsp

const dcBlockerFreq = 20.0
const dcBlockerQ = 0.7

// ChainParams mirrors the effects-related fields of an AudioChannel
// record: everything needed to (re)configure a Chain's EQ, compressor
// and limiter without touching its delay lines.
type ChainParams struct {
	Enabled bool

	EQLowDB  float64
	EQMidDB  float64
	EQHighDB float64

	CompressorEnabled bool
	Compressor        CompressorParams

	LimiterEnabled   bool
	LimiterThreshold float64
}

// monoChain is one L or R instance of the four stages. Stereo samples
// must never share a single instance of these — each stage's state is
// frequency/envelope history for one continuous signal, and interleaving
// L and R through the same instance would alias two unrelated signals
// into one delay line.
type monoChain struct {
	dcBlocker  *Biquad
	eq         *Equalizer
	compressor *Compressor
	limiter    *Limiter
}

func newMonoChain(sampleRate float64) *monoChain {
	return &monoChain{
		dcBlocker:  NewHighPass(sampleRate, dcBlockerFreq, dcBlockerQ),
		eq:         NewEqualizer(sampleRate),
		compressor: NewCompressor(sampleRate, CompressorParams{ThresholdDB: 0, Ratio: 1, AttackMS: 10, ReleaseMS: 100}),
		limiter:    NewLimiter(sampleRate, 0),
	}
}

func (m *monoChain) setParams(p ChainParams) {
	m.eq.SetGain(EQBandLow, p.EQLowDB)
	m.eq.SetGain(EQBandMid, p.EQMidDB)
	m.eq.SetGain(EQBandHigh, p.EQHighDB)
	m.compressor.SetParams(p.Compressor)
	m.limiter.SetThreshold(p.LimiterThreshold)
}

func (m *monoChain) process(x float64, p ChainParams) float64 {
	x = m.dcBlocker.Process(x)
	x = m.eq.Process(x)
	if p.CompressorEnabled {
		x = m.compressor.Process(x)
	}
	if p.LimiterEnabled {
		x = m.limiter.Process(x)
	}
	return x
}

func (m *monoChain) reset() {
	m.dcBlocker.Reset()
	m.eq.Reset()
	m.compressor.Reset()
	m.limiter.Reset()
}

// Chain is the fixed-order per-input effects chain: DC-blocker → 3-band
// EQ → compressor → limiter, run independently on the left and right
// channels of an interleaved stereo buffer. When Enabled is false,
// Process is a no-op (samples pass through completely unchanged) — the
// stages are still held ready so re-enabling never clicks.
type Chain struct {
	params ChainParams
	left   *monoChain
	right  *monoChain
}

// NewChain builds a chain with all stages flat/bypassed and disabled,
// matching the Rust source's effects_chain.rs default.
func NewChain(sampleRate float64) *Chain {
	return &Chain{
		left:  newMonoChain(sampleRate),
		right: newMonoChain(sampleRate),
	}
}

// SetParams applies new parameters to both channels. Every coefficient
// change routes through the stage's update_*_coeffs-equivalent method,
// so delay lines are never reset by a parameter change.
func (c *Chain) SetParams(p ChainParams) {
	c.params = p
	c.left.setParams(p)
	c.right.setParams(p)
}

// Process runs one interleaved stereo buffer through the chain in
// place. When the chain is disabled the buffer is left untouched.
// Samples alternate by index between the left (even) and right (odd)
// instances whatever the buffer's length; there is no mono path.
func (c *Chain) Process(samples []float32) {
	if !c.params.Enabled {
		return
	}
	for i := 0; i < len(samples); i++ {
		x := float64(samples[i])
		if i%2 == 0 {
			x = c.left.process(x, c.params)
		} else {
			x = c.right.process(x, c.params)
		}
		samples[i] = float32(x)
	}
}

// Reset clears every stage's delay line / envelope on both channels.
func (c *Chain) Reset() {
	c.left.reset()
	c.right.reset()
}
