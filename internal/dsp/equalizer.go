package dsp

// EQBand identifies one of the three fixed bands of Equalizer.
type EQBand int

const (
	EQBandLow EQBand = iota
	EQBandMid
	EQBandHigh
)

func (b EQBand) String() string {
	switch b {
	case EQBandLow:
		return "low"
	case EQBandMid:
		return "mid"
	case EQBandHigh:
		return "high"
	default:
		return "unknown"
	}
}

const (
	eqLowFreq  = 200.0
	eqMidFreq  = 1000.0
	eqHighFreq = 8000.0
	eqQ        = 0.7
)

// Equalizer is a fixed 3-band EQ: low shelf at 200 Hz, mid peak at 1 kHz,
// high shelf at 8 kHz, all Q=0.7.
type Equalizer struct {
	sampleRate float64
	low        *Biquad
	mid        *Biquad
	high       *Biquad
}

// NewEqualizer builds an equalizer with all three bands flat (0 dB).
func NewEqualizer(sampleRate float64) *Equalizer {
	return &Equalizer{
		sampleRate: sampleRate,
		low:        NewLowShelf(sampleRate, eqLowFreq, eqQ, 0),
		mid:        NewPeak(sampleRate, eqMidFreq, eqQ, 0),
		high:       NewHighShelf(sampleRate, eqHighFreq, eqQ, 0),
	}
}

// SetGain updates one band's gain in place; the delay line for every
// band (including the one being updated) is left untouched.
func (e *Equalizer) SetGain(band EQBand, gainDB float64) {
	switch band {
	case EQBandLow:
		e.low.UpdateLowShelf(e.sampleRate, eqLowFreq, eqQ, gainDB)
	case EQBandMid:
		e.mid.UpdatePeakCoeffs(e.sampleRate, eqMidFreq, eqQ, gainDB)
	case EQBandHigh:
		e.high.UpdateHighShelf(e.sampleRate, eqHighFreq, eqQ, gainDB)
	}
}

// Process runs one sample through all three bands in series.
func (e *Equalizer) Process(x float64) float64 {
	x = e.low.Process(x)
	x = e.mid.Process(x)
	x = e.high.Process(x)
	return x
}

// Reset zeros all three bands' delay lines.
func (e *Equalizer) Reset() {
	e.low.Reset()
	e.mid.Reset()
	e.high.Reset()
}
