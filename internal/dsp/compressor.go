package dsp

import "math"

const (
	envelopeFloorDB = -100
	envelopeCeilDB  = 40
)

// CompressorParams holds the user-facing controls for Compressor.
type CompressorParams struct {
	ThresholdDB float64 // [-40, 0]
	Ratio       float64 // [1, 10]
	AttackMS    float64 // [0.1, 100]
	ReleaseMS   float64 // [10, 1000]
}

// Compressor is a dB-domain envelope-follower compressor: it tracks the
// input level in dB with separate attack/release one-pole coefficients,
// and reduces gain once the envelope exceeds the threshold.
type Compressor struct {
	sampleRate float64
	params     CompressorParams
	envelopeDB float64
}

// NewCompressor constructs a compressor with its envelope reset to the
// floor (silence).
func NewCompressor(sampleRate float64, params CompressorParams) *Compressor {
	return &Compressor{
		sampleRate: sampleRate,
		params:     params,
		envelopeDB: envelopeFloorDB,
	}
}

// SetParams updates the threshold/ratio/attack/release without touching
// the envelope, matching the effects chain's no-click contract.
func (c *Compressor) SetParams(params CompressorParams) {
	c.params = params
}

// Process applies gain reduction to one sample.
func (c *Compressor) Process(x float64) float64 {
	x = validateFloat(x)

	inputDB := linearToDBClamped(math.Abs(x), envelopeFloorDB, envelopeCeilDB)

	var tauMS float64
	if inputDB > c.envelopeDB {
		tauMS = c.params.AttackMS
	} else {
		tauMS = c.params.ReleaseMS
	}
	coeff := onePoleCoeff(tauMS, c.sampleRate)
	c.envelopeDB = coeff*c.envelopeDB + (1-coeff)*inputDB
	c.envelopeDB = flushDenormal(c.envelopeDB)

	gain := 1.0
	if c.envelopeDB > c.params.ThresholdDB {
		reduction := (c.envelopeDB - c.params.ThresholdDB) * (1 - 1/c.params.Ratio)
		reduction = clamp(reduction, 0, 60)
		gain = safeDBToLinear(-reduction)
		gain = clamp(gain, 0.001, 2)
	}

	return validateFloat(x * gain)
}

// Reset returns the envelope to the floor.
func (c *Compressor) Reset() {
	c.envelopeDB = envelopeFloorDB
}

// onePoleCoeff returns exp(-1/(tau*fs)) for a time constant given in
// milliseconds.
func onePoleCoeff(tauMS, fs float64) float64 {
	if tauMS <= 0 {
		return 0
	}
	tau := tauMS / 1000
	return math.Exp(-1 / (tau * fs))
}

func linearToDBClamped(linear, floor, ceil float64) float64 {
	db := 20 * safeLog10(linear)
	if db < floor {
		return floor
	}
	if db > ceil {
		return ceil
	}
	return db
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
