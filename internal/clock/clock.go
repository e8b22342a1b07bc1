// Package clock provides the pipeline's master audio clock: sample
// position tracking, hardware-callback timing-drift detection, and the
// rolling performance metrics the health surface reports from.
package clock

import (
	"log/slog"
	"sync"
	"time"

	"github.com/beats-galore/mixer-core/internal/logging"
)

// AudioClock tracks the pipeline's sample position and compares
// successive hardware-callback intervals against the expected interval
// for its sync point, flagging drift beyond normal jitter. It is driven
// by the mixer on every produced frame, never by a wall-clock timer:
// callback-driven audio has no independent "expected" arrival time, only
// consistency between one callback and the next.
type AudioClock struct {
	mu sync.Mutex

	sampleRate          uint32
	samplesProcessed    uint64
	startTime           time.Time
	lastSyncTime        time.Time
	syncIntervalSamples uint64
	logCounter          uint64

	logger *slog.Logger
}

// New constructs a clock for the given sample rate, syncing on every
// hardwareBufferSize samples processed until SetHardwareBufferSize
// updates that interval with the stream's real buffer size.
func New(sampleRate uint32, hardwareBufferSize uint32) *AudioClock {
	now := time.Now()
	return &AudioClock{
		sampleRate:          sampleRate,
		startTime:           now,
		lastSyncTime:        now,
		syncIntervalSamples: uint64(hardwareBufferSize),
		logger:              logging.ForService("audio-clock"),
	}
}

// SetHardwareBufferSize updates the sync interval once the real hardware
// stream buffer size is known.
func (c *AudioClock) SetHardwareBufferSize(size uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.syncIntervalSamples == uint64(size) {
		return
	}
	old := c.syncIntervalSamples
	c.syncIntervalSamples = uint64(size)
	c.logger.Info("sync interval updated", "old_samples", old, "new_samples", c.syncIntervalSamples)
}

// Update advances the clock by samplesAdded and, on reaching a sync
// point, returns timing information for this interval. Most calls
// return (TimingSync{}, false).
func (c *AudioClock) Update(samplesAdded int) (TimingSync, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samplesProcessed += uint64(samplesAdded)
	if c.syncIntervalSamples == 0 || c.samplesProcessed%c.syncIntervalSamples != 0 {
		return TimingSync{}, false
	}

	now := time.Now()
	callbackIntervalUS := float64(now.Sub(c.lastSyncTime).Microseconds())
	expectedIntervalUS := float64(c.syncIntervalSamples) * 1_000_000.0 / float64(c.sampleRate)
	variationThreshold := expectedIntervalUS * 0.10
	timingVariation := abs(callbackIntervalUS - expectedIntervalUS)

	sync := TimingSync{
		SamplesProcessed:   c.samplesProcessed,
		CallbackIntervalUS: callbackIntervalUS,
		ExpectedIntervalUS: expectedIntervalUS,
		TimingVariation:    timingVariation,
		IsDriftSignificant: timingVariation > variationThreshold,
	}

	if sync.IsDriftSignificant {
		c.logCounter++
		if c.logCounter%1000 == 0 {
			c.logger.Warn("timing variation",
				"occurrence", c.logCounter,
				"callback_interval_us", callbackIntervalUS,
				"expected_interval_us", expectedIntervalUS,
				"variation_us", timingVariation,
				"variation_pct", sync.VariationPercentage())
		}
	}

	c.lastSyncTime = now
	return sync, true
}

// SamplesProcessed returns the clock's current sample position.
func (c *AudioClock) SamplesProcessed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samplesProcessed
}

// PlaybackSeconds returns the clock's sample position as elapsed audio
// time.
func (c *AudioClock) PlaybackSeconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.samplesProcessed) / float64(c.sampleRate)
}

// ElapsedRealTime returns wall-clock time since the clock was created or
// last reset.
func (c *AudioClock) ElapsedRealTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.startTime)
}

// DriftMS returns the gap, in milliseconds, between audio time and real
// time — positive means the audio clock is ahead of the wall clock.
func (c *AudioClock) DriftMS() float64 {
	c.mu.Lock()
	start := c.startTime
	processed := c.samplesProcessed
	rate := c.sampleRate
	c.mu.Unlock()

	audioMS := float64(processed) / float64(rate) * 1000.0
	realMS := float64(time.Since(start).Milliseconds())
	return audioMS - realMS
}

// Reset zeroes the clock's sample position and timing state, typically
// called when the pipeline stops and restarts.
func (c *AudioClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.samplesProcessed = 0
	c.startTime = now
	c.lastSyncTime = now
	c.logCounter = 0
	c.logger.Info("clock reset")
}

// SampleRate returns the clock's configured sample rate.
func (c *AudioClock) SampleRate() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampleRate
}

// SetSampleRate updates the clock's sample rate for dynamic
// reconfiguration.
func (c *AudioClock) SetSampleRate(rate uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate == c.sampleRate {
		return
	}
	c.logger.Info("sample rate change", "old_hz", c.sampleRate, "new_hz", rate)
	c.sampleRate = rate
}

// TimingSync is the per-sync-point snapshot returned by AudioClock.Update.
type TimingSync struct {
	SamplesProcessed   uint64
	CallbackIntervalUS float64
	ExpectedIntervalUS float64
	TimingVariation    float64
	IsDriftSignificant bool
}

// VariationPercentage expresses TimingVariation as a percentage of the
// expected interval.
func (s TimingSync) VariationPercentage() float64 {
	if s.ExpectedIntervalUS > 0 {
		return s.TimingVariation / s.ExpectedIntervalUS * 100.0
	}
	return 0
}

// IsAcceptable reports whether this sync point's timing was within
// normal bounds.
func (s TimingSync) IsAcceptable() bool {
	return !s.IsDriftSignificant
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
