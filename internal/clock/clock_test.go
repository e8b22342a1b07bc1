package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAudioClockCreation(t *testing.T) {
	c := New(48000, 512)
	assert.Equal(t, uint32(48000), c.SampleRate())
	assert.Equal(t, uint64(0), c.SamplesProcessed())
	assert.Equal(t, 0.0, c.PlaybackSeconds())
}

func TestAudioClockUpdateSyncsOnInterval(t *testing.T) {
	c := New(48000, 512)

	_, synced := c.Update(256)
	assert.False(t, synced)

	_, synced = c.Update(256)
	assert.True(t, synced)
	assert.Equal(t, uint64(512), c.SamplesProcessed())
}

func TestAudioClockReset(t *testing.T) {
	c := New(48000, 512)
	c.Update(512)
	assert.Equal(t, uint64(512), c.SamplesProcessed())

	c.Reset()
	assert.Equal(t, uint64(0), c.SamplesProcessed())
	assert.Equal(t, 0.0, c.PlaybackSeconds())
}

func TestTimingMetricsTracksVariation(t *testing.T) {
	m := NewTimingMetrics()
	assert.Equal(t, 0.0, m.VariationPercentage())
	assert.True(t, m.IsPerformanceAcceptable())

	sync := TimingSync{
		SamplesProcessed:   512,
		CallbackIntervalUS: 15000,
		ExpectedIntervalUS: 10000,
		TimingVariation:    5000,
		IsDriftSignificant: true,
	}
	m.Update(sync)

	assert.Equal(t, uint64(1), m.TotalCallbacks)
	assert.Equal(t, uint64(1), m.SignificantVariations)
	assert.Equal(t, 100.0, m.VariationPercentage())
	assert.False(t, m.IsPerformanceAcceptable())
}

func TestTimingMetricsReset(t *testing.T) {
	m := NewTimingMetrics()
	m.Update(TimingSync{IsDriftSignificant: true, ExpectedIntervalUS: 1})
	m.Reset()
	assert.Equal(t, uint64(0), m.TotalCallbacks)
}
