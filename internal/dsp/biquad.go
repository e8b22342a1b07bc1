package dsp

import "math"

// Biquad is a direct-form-I second-order IIR filter with coefficients
// normalized so that a0 ≡ 1. Every constructor fills in b0..b2, a1, a2;
// process() never divides. Delay-line state (x1, x2, y1, y2) survives
// coefficient updates so that changing a filter's frequency/gain/Q while
// audio is flowing through it never clicks.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// Process filters one sample.
func (f *Biquad) Process(x float64) float64 {
	x = validateFloat(x)

	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	y = validateFloat(y)

	f.x2 = flushDenormal(f.x1)
	f.x1 = flushDenormal(x)
	f.y2 = flushDenormal(f.y1)
	f.y1 = flushDenormal(y)

	return y
}

// Reset zeros the delay line. Coefficients are left untouched.
func (f *Biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// coeffs is the shared RBJ-cookbook intermediate state for the four
// constructors below.
type coeffs struct {
	w0, cosW0, sinW0, alpha float64
}

func computeCoeffs(fs, freq, q float64) coeffs {
	w0 := 2 * math.Pi * freq / fs
	return coeffs{
		w0:    w0,
		cosW0: math.Cos(w0),
		sinW0: math.Sin(w0),
		alpha: math.Sin(w0) / (2 * q),
	}
}

func (f *Biquad) setNormalized(b0, b1, b2, a0, a1, a2 float64) {
	f.b0 = b0 / a0
	f.b1 = b1 / a0
	f.b2 = b2 / a0
	f.a1 = a1 / a0
	f.a2 = a2 / a0
}

// NewLowShelf builds a low-shelf biquad: boosts/cuts below freq by gainDB.
func NewLowShelf(fs, freq, q, gainDB float64) *Biquad {
	f := &Biquad{}
	f.UpdateLowShelf(fs, freq, q, gainDB)
	return f
}

// UpdateLowShelf recomputes low-shelf coefficients in place, preserving
// the delay line (no click).
func (f *Biquad) UpdateLowShelf(fs, freq, q, gainDB float64) {
	c := computeCoeffs(fs, freq, q)
	a := math.Pow(10, gainDB/40)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) - (a-1)*c.cosW0 + 2*sqrtA*c.alpha)
	b1 := 2 * a * ((a - 1) - (a+1)*c.cosW0)
	b2 := a * ((a + 1) - (a-1)*c.cosW0 - 2*sqrtA*c.alpha)
	a0 := (a + 1) + (a-1)*c.cosW0 + 2*sqrtA*c.alpha
	a1 := -2 * ((a - 1) + (a+1)*c.cosW0)
	a2 := (a + 1) + (a-1)*c.cosW0 - 2*sqrtA*c.alpha

	f.setNormalized(b0, b1, b2, a0, a1, a2)
}

// NewHighShelf builds a high-shelf biquad: boosts/cuts above freq by gainDB.
func NewHighShelf(fs, freq, q, gainDB float64) *Biquad {
	f := &Biquad{}
	f.UpdateHighShelf(fs, freq, q, gainDB)
	return f
}

// UpdateHighShelf recomputes high-shelf coefficients in place.
func (f *Biquad) UpdateHighShelf(fs, freq, q, gainDB float64) {
	c := computeCoeffs(fs, freq, q)
	a := math.Pow(10, gainDB/40)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) + (a-1)*c.cosW0 + 2*sqrtA*c.alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*c.cosW0)
	b2 := a * ((a + 1) + (a-1)*c.cosW0 - 2*sqrtA*c.alpha)
	a0 := (a + 1) - (a-1)*c.cosW0 + 2*sqrtA*c.alpha
	a1 := 2 * ((a - 1) - (a+1)*c.cosW0)
	a2 := (a + 1) - (a-1)*c.cosW0 - 2*sqrtA*c.alpha

	f.setNormalized(b0, b1, b2, a0, a1, a2)
}

// NewPeak builds a peaking-EQ biquad: boosts/cuts a band centered on freq.
func NewPeak(fs, freq, q, gainDB float64) *Biquad {
	f := &Biquad{}
	f.UpdatePeakCoeffs(fs, freq, q, gainDB)
	return f
}

// UpdatePeakCoeffs recomputes peaking-EQ coefficients in place.
func (f *Biquad) UpdatePeakCoeffs(fs, freq, q, gainDB float64) {
	c := computeCoeffs(fs, freq, q)
	a := math.Pow(10, gainDB/40)

	b0 := 1 + c.alpha*a
	b1 := -2 * c.cosW0
	b2 := 1 - c.alpha*a
	a0 := 1 + c.alpha/a
	a1 := -2 * c.cosW0
	a2 := 1 - c.alpha/a

	f.setNormalized(b0, b1, b2, a0, a1, a2)
}

// NewHighPass builds a high-pass biquad used as the effects chain's
// DC-blocker (typically 20 Hz, Q=0.7).
func NewHighPass(fs, freq, q float64) *Biquad {
	f := &Biquad{}
	f.UpdateHighPassCoeffs(fs, freq, q)
	return f
}

// UpdateHighPassCoeffs recomputes high-pass coefficients in place.
func (f *Biquad) UpdateHighPassCoeffs(fs, freq, q float64) {
	c := computeCoeffs(fs, freq, q)

	b0 := (1 + c.cosW0) / 2
	b1 := -(1 + c.cosW0)
	b2 := (1 + c.cosW0) / 2
	a0 := 1 + c.alpha
	a1 := -2 * c.cosW0
	a2 := 1 - c.alpha

	f.setNormalized(b0, b1, b2, a0, a1, a2)
}
