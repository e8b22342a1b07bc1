package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBiquadCoeffUpdatePreservesDelayLine(t *testing.T) {
	f := NewLowShelf(48000, 200, 0.7, 0)
	// Push a nonzero signal through so the delay line is nonzero.
	for i := 0; i < 8; i++ {
		f.Process(0.5)
	}

	fresh := NewLowShelf(48000, 200, 0.7, 0)
	fresh.Reset()

	f.UpdateLowShelf(48000, 200, 0.7, 6) // change gain in place
	got := f.Process(0)
	want := fresh.Process(0)

	assert.NotEqual(t, want, got, "coefficient update must not reset delay line")
}

func TestBiquadResetThenZerosYieldsZeros(t *testing.T) {
	f := NewPeak(48000, 1000, 0.7, 6)
	for i := 0; i < 16; i++ {
		f.Process(0.3)
	}
	f.Reset()
	for i := 0; i < 4; i++ {
		got := f.Process(0)
		assert.Equal(t, 0.0, got)
	}
}

func TestBiquadFlushesNaNInput(t *testing.T) {
	f := NewHighPass(48000, 20, 0.7)
	got := f.Process(math.NaN())
	assert.False(t, math.IsNaN(got))
	assert.False(t, math.IsInf(got, 0))
}

func TestRMSDetectorSineRMS(t *testing.T) {
	const fs = 48000
	d := NewRMSDetector(fs)
	samples := make([]float32, fs/10)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 1000 * float64(i) / fs))
	}
	rms := d.Process(samples)
	// A full-scale sine's RMS is amplitude/sqrt(2).
	assert.InDelta(t, 1/math.Sqrt2, rms, 0.02)
}

func TestPeakDetectorDecays(t *testing.T) {
	d := NewPeakDetector()
	d.Process([]float32{0.9})
	first := d.Process([]float32{0})
	second := d.Process([]float32{0})
	assert.Less(t, second, first)
}

func TestCompressorReducesGainAboveThreshold(t *testing.T) {
	c := NewCompressor(48000, CompressorParams{ThresholdDB: -20, Ratio: 4, AttackMS: 1, ReleaseMS: 50})
	var last float64
	for i := 0; i < 4800; i++ {
		last = c.Process(0.9)
	}
	require.Less(t, math.Abs(last), 0.9)
}

func TestCompressorResetZeroInputYieldsZero(t *testing.T) {
	c := NewCompressor(48000, CompressorParams{ThresholdDB: -20, Ratio: 4, AttackMS: 1, ReleaseMS: 50})
	for i := 0; i < 100; i++ {
		c.Process(0.8)
	}
	c.Reset()
	assert.Equal(t, 0.0, c.Process(0))
}

func TestLimiterNeverAmplifies(t *testing.T) {
	l := NewLimiter(48000, -1)
	for i := 0; i < 1000; i++ {
		out := l.Process(1.5)
		assert.LessOrEqual(t, math.Abs(out), 1.5+1e-9)
	}
}

func TestLimiterResetThenZeros(t *testing.T) {
	l := NewLimiter(48000, -3)
	for i := 0; i < 200; i++ {
		l.Process(0.9)
	}
	l.Reset()
	for i := 0; i < len(l.delay)+1; i++ {
		out := l.Process(0)
		assert.Equal(t, 0.0, out)
	}
}

func TestEffectsChainBypassIsIdentity(t *testing.T) {
	c := NewChain(48000)
	c.SetParams(ChainParams{Enabled: false})
	in := []float32{0.1, -0.2, 0.3, -0.4}
	out := append([]float32(nil), in...)
	c.Process(out)
	assert.Equal(t, in, out)
}

func TestEffectsChainOutputNeverNaNOrInf(t *testing.T) {
	c := NewChain(48000)
	c.SetParams(ChainParams{
		Enabled:           true,
		EQLowDB:           6,
		EQMidDB:           -4,
		EQHighDB:          3,
		CompressorEnabled: true,
		Compressor:        CompressorParams{ThresholdDB: -18, Ratio: 4, AttackMS: 5, ReleaseMS: 80},
		LimiterEnabled:    true,
		LimiterThreshold:  -1,
	})
	buf := make([]float32, 256)
	for i := range buf {
		buf[i] = float32(math.Sin(float64(i)))
	}
	c.Process(buf)
	for _, s := range buf {
		assert.False(t, math.IsNaN(float64(s)))
		assert.False(t, math.IsInf(float64(s), 0))
	}
}
