package dsp

import "math"

// lookaheadMS is the limiter's look-ahead window: the envelope is formed
// from the incoming (not-yet-output) sample while the signal itself is
// delayed by the same amount, so gain reduction is already in effect by
// the time the loud sample reaches the output.
const lookaheadMS = 2.0

// The limiter's own attack/release time constants are not exposed on
// AudioChannel (only ThresholdDB and Enabled are); a brick-wall limiter
// needs a near-instant attack and a moderate release to avoid pumping.
const (
	limiterAttackMS  = 1.0
	limiterReleaseMS = 50.0
)

// Limiter is a look-ahead brick-wall limiter: same dB-domain envelope
// follower as Compressor, but with an effectively infinite ratio (full
// gain reduction above threshold) and a gain ceiling of 1.0 — it never
// amplifies.
type Limiter struct {
	sampleRate  float64
	thresholdDB float64
	envelopeDB  float64

	delay    []float64
	delayPos int
}

// NewLimiter constructs a limiter with its look-ahead delay line sized
// for sampleRate and its envelope reset to the floor.
func NewLimiter(sampleRate, thresholdDB float64) *Limiter {
	delayLen := int(math.Round(sampleRate * lookaheadMS / 1000))
	if delayLen < 1 {
		delayLen = 1
	}
	return &Limiter{
		sampleRate:  sampleRate,
		thresholdDB: thresholdDB,
		envelopeDB:  envelopeFloorDB,
		delay:       make([]float64, delayLen),
	}
}

// SetThreshold updates the ceiling without touching the delay line or
// envelope.
func (l *Limiter) SetThreshold(thresholdDB float64) {
	l.thresholdDB = thresholdDB
}

// Process delays x by the look-ahead window and applies gain reduction
// derived from the envelope of the (not yet emitted) incoming sample.
func (l *Limiter) Process(x float64) float64 {
	x = validateFloat(x)

	inputDB := linearToDBClamped(math.Abs(x), envelopeFloorDB, envelopeCeilDB)

	var tauMS float64
	if inputDB > l.envelopeDB {
		tauMS = limiterAttackMS
	} else {
		tauMS = limiterReleaseMS
	}
	coeff := onePoleCoeff(tauMS, l.sampleRate)
	l.envelopeDB = coeff*l.envelopeDB + (1-coeff)*inputDB
	l.envelopeDB = flushDenormal(l.envelopeDB)

	gain := 1.0
	if l.envelopeDB > l.thresholdDB {
		reduction := clamp(l.envelopeDB-l.thresholdDB, 0, 60)
		gain = safeDBToLinear(-reduction)
	}
	gain = clamp(gain, 0.001, 1.0)

	delayed := l.delay[l.delayPos]
	l.delay[l.delayPos] = x
	l.delayPos = (l.delayPos + 1) % len(l.delay)

	return validateFloat(delayed * gain)
}

// Reset clears the delay line and resets the envelope to the floor.
func (l *Limiter) Reset() {
	for i := range l.delay {
		l.delay[i] = 0
	}
	l.delayPos = 0
	l.envelopeDB = envelopeFloorDB
}
