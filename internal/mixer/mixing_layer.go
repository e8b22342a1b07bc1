package mixer

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/beats-galore/mixer-core/internal/clock"
	"github.com/beats-galore/mixer-core/internal/logging"
	"github.com/beats-galore/mixer-core/internal/queue"
	"github.com/beats-galore/mixer-core/internal/vu"
)

const (
	normalizeThreshold = 0.8
	clipGuardThreshold = 0.9
	clipGuardScale     = 0.85
)

// MixingLayer sums the most recent ProcessedFrame from every registered
// input, applies peak-aware normalization and a clip guard, scales by
// master gain, and fans the result out to every output worker.
type MixingLayer struct {
	mu            sync.Mutex
	latest        map[string]ProcessedFrame
	nominalFrames int
	masterGain    float64

	in         <-chan ProcessedFrame
	broadcast  *queue.Broadcast
	audioClock *clock.AudioClock
	timing     *clock.TimingMetrics
	vuService  *vu.Service

	sampleRate int
	logger     *slog.Logger
}

// NewMixingLayer constructs a mixing layer reading ProcessedFrames from
// in and fanning MixedFrames out through broadcast.
func NewMixingLayer(in <-chan ProcessedFrame, broadcast *queue.Broadcast, audioClock *clock.AudioClock, sampleRate, nominalFrames int, vuService *vu.Service) *MixingLayer {
	return &MixingLayer{
		latest:        make(map[string]ProcessedFrame),
		nominalFrames: nominalFrames,
		masterGain:    1.0,
		in:            in,
		broadcast:     broadcast,
		audioClock:    audioClock,
		timing:        clock.NewTimingMetrics(),
		vuService:     vuService,
		sampleRate:    sampleRate,
		logger:        logging.ForService("mixing-layer"),
	}
}

// SetMasterGain updates the single post-sum gain multiply applied on
// every tick.
func (m *MixingLayer) SetMasterGain(gain float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masterGain = gain
}

// RemoveInput drops a since-removed input's buffered slot.
func (m *MixingLayer) RemoveInput(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.latest, sourceID)
}

// TimingMetrics returns the layer's rolling drift-performance accumulator.
func (m *MixingLayer) TimingMetrics() *clock.TimingMetrics { return m.timing }

// Run processes incoming frames until ctx is canceled or the input
// channel closes.
func (m *MixingLayer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-m.in:
			if !ok {
				return
			}
			m.storeAndTick(frame)
		}
	}
}

func (m *MixingLayer) storeAndTick(frame ProcessedFrame) {
	m.mu.Lock()
	m.latest[frame.SourceID] = frame
	nMax := 0
	active := 0
	for _, f := range m.latest {
		if len(f.Samples) > 0 && len(f.Samples) > nMax {
			nMax = len(f.Samples)
		}
	}
	if nMax == 0 {
		nMax = m.nominalFrames
	}
	scratch := make([]float32, nMax)
	for _, f := range m.latest {
		if len(f.Samples) == 0 {
			continue
		}
		active++
		n := len(f.Samples)
		if n > nMax {
			n = nMax
		}
		for i := 0; i < n; i++ {
			scratch[i] += f.Samples[i]
		}
	}
	masterGain := m.masterGain
	m.mu.Unlock()

	normalize(scratch, active)
	applyMasterGain(scratch, masterGain)

	mixed := MixedFrame{
		Samples:    scratch,
		SampleRate: m.sampleRate,
		Timestamp:  time.Now(),
		InputCount: active,
	}
	m.broadcast.Send(mixed.Samples)

	if m.vuService != nil {
		m.vuService.ProcessMaster(mixed.Samples)
	}

	if m.audioClock != nil {
		framesPerChannel := len(mixed.Samples) / 2
		if sync, ok := m.audioClock.Update(framesPerChannel); ok {
			m.timing.Update(sync)
		}
	}
}

// normalize applies the peak-aware normalization and clip guard in
// place: with more than one active input, scale down toward 0.8 peak;
// regardless, re-measure and scale by 0.85 if the result still clips
// above 0.9.
func normalize(buf []float32, activeInputs int) {
	if activeInputs > 1 {
		if peak := peakOf(buf); peak > normalizeThreshold {
			scale := float32(normalizeThreshold / peak)
			for i := range buf {
				buf[i] *= scale
			}
		}
	}
	if peak := peakOf(buf); peak > clipGuardThreshold {
		for i := range buf {
			buf[i] *= clipGuardScale
		}
	}
}

func applyMasterGain(buf []float32, gain float64) {
	if gain == 1.0 {
		return
	}
	g := float32(gain)
	for i := range buf {
		buf[i] *= g
	}
}

func peakOf(buf []float32) float64 {
	peak := 0.0
	for _, s := range buf {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	return peak
}
