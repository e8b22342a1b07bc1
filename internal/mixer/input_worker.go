package mixer

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beats-galore/mixer-core/internal/config"
	"github.com/beats-galore/mixer-core/internal/dsp"
	"github.com/beats-galore/mixer-core/internal/logging"
	"github.com/beats-galore/mixer-core/internal/queue"
	"github.com/beats-galore/mixer-core/internal/resample"
	"github.com/beats-galore/mixer-core/internal/vu"
)

// InputWorker owns one input device's processing chain: drain the
// hardware ring, resample up to the mix rate, run the effects chain,
// apply gain/pan/mute/solo, and forward the result to the mixing layer.
type InputWorker struct {
	deviceID   string
	deviceRate int
	mixRate    int

	ring   *queue.HardwareRing
	notify *queue.Notify

	resampler *resample.Fast
	effects   *dsp.Chain
	vuService *vu.Service

	channelMu sync.RWMutex
	channel   config.AudioChannel

	anySolo atomic.Bool // set by the mixer's channel table on every command-plane tick

	out chan<- ProcessedFrame

	state  atomic.Int32
	cancel context.CancelFunc

	droppedOnSend atomic.Uint64
	logger        *slog.Logger
}

// NewInputWorker constructs a worker in the Created state. Call Start to
// begin the Running loop.
func NewInputWorker(deviceID string, deviceRate, mixRate int, ring *queue.HardwareRing, notify *queue.Notify, out chan<- ProcessedFrame, vuService *vu.Service) *InputWorker {
	w := &InputWorker{
		deviceID:   deviceID,
		deviceRate: deviceRate,
		mixRate:    mixRate,
		ring:       ring,
		notify:     notify,
		effects:    dsp.NewChain(float64(mixRate)),
		vuService:  vuService,
		out:        out,
		logger:     logging.ForService("input-worker"),
	}
	w.state.Store(int32(StateCreated))
	if deviceRate != mixRate {
		w.resampler = resample.NewFast(float64(deviceRate), float64(mixRate), 2)
	}
	return w
}

// SetChannel installs the AudioChannel control record this worker reads
// for gain/pan/mute/solo/effects parameters. Safe to call concurrently
// with Run: changes are observed at the top of the next loop iteration.
func (w *InputWorker) SetChannel(ch config.AudioChannel) {
	w.channelMu.Lock()
	w.channel = ch
	w.channelMu.Unlock()

	w.effects.SetParams(dsp.ChainParams{
		Enabled:           ch.EffectsEnabled,
		EQLowDB:           ch.EQLowDB,
		EQMidDB:           ch.EQMidDB,
		EQHighDB:          ch.EQHighDB,
		CompressorEnabled: ch.CompEnabled,
		Compressor: dsp.CompressorParams{
			ThresholdDB: ch.Compressor.ThresholdDB,
			Ratio:       ch.Compressor.Ratio,
			AttackMS:    ch.Compressor.AttackMS,
			ReleaseMS:   ch.Compressor.ReleaseMS,
		},
		LimiterEnabled:   ch.LimiterEnabled,
		LimiterThreshold: ch.LimiterThreshDB,
	})
}

// SetAnySolo records whether any channel in the configuration is
// currently soloed, which this worker needs to decide its own muting.
func (w *InputWorker) SetAnySolo(v bool) {
	w.anySolo.Store(v)
}

// State returns the worker's current lifecycle state.
func (w *InputWorker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// DeviceID returns the device this worker is bound to.
func (w *InputWorker) DeviceID() string { return w.deviceID }

// OverrunCount returns how many samples this worker's hardware ring has
// dropped because the consumer fell behind the producer.
func (w *InputWorker) OverrunCount() uint64 { return w.ring.OverrunCount() }

// QueueOccupancyPercent estimates how full the hardware ring is, for
// telemetry purposes.
func (w *InputWorker) QueueOccupancyPercent() float64 {
	return w.ring.Tracker().Info().UsagePercent
}

// Start transitions Created → Started and spawns the running loop.
func (w *InputWorker) Start(ctx context.Context) {
	if !w.state.CompareAndSwap(int32(StateCreated), int32(StateStarted)) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(runCtx)
}

// Stop transitions toward Stopped: the running loop observes ctx.Done,
// drains remaining samples, and exits on its own.
func (w *InputWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *InputWorker) run(ctx context.Context) {
	w.state.Store(int32(StateRunning))
	defer w.state.Store(int32(StateStopped))

	buf := make([]float32, 0, maxInputDrainSamples)

	for {
		select {
		case <-ctx.Done():
			w.drainAndForward(buf)
			return
		case <-w.notify.C():
			buf = w.ring.Drain(buf, maxInputDrainSamples)
			if len(buf) == 0 {
				continue
			}
			if !w.processAndForward(buf) {
				return
			}
		}
	}
}

// drainAndForward flushes whatever remains in the ring on shutdown so
// no trailing samples are lost mid-chunk.
func (w *InputWorker) drainAndForward(buf []float32) {
	for {
		buf = w.ring.Drain(buf, maxInputDrainSamples)
		if len(buf) == 0 {
			return
		}
		if !w.processAndForward(buf) {
			return
		}
	}
}

func (w *InputWorker) processAndForward(drained []float32) bool {
	samples := drained
	if w.resampler != nil {
		samples = w.resampler.Push(samples)
	}
	if len(samples) == 0 {
		return true
	}

	w.effects.Process(samples)

	w.channelMu.RLock()
	ch := w.channel
	w.channelMu.RUnlock()

	applyGainPan(samples, ch.Gain, ch.Pan)

	muted := ch.Muted || (w.anySolo.Load() && !ch.Solo)
	if muted {
		for i := range samples {
			samples[i] = 0
		}
	}

	if w.vuService != nil {
		w.vuService.ProcessChannel(w.deviceID, ch.ID, samples)
	}

	frame := ProcessedFrame{
		Samples:   append([]float32(nil), samples...),
		SourceID:  w.deviceID,
		Channels:  2,
		Timestamp: time.Now(),
	}

	select {
	case w.out <- frame:
		return true
	default:
		n := w.droppedOnSend.Add(1)
		if n <= 5 || n%1000 == 0 {
			w.logger.Warn("mixer feed full, dropping processed frame", "device_id", w.deviceID, "dropped_total", n)
		}
		return true
	}
}

// applyGainPan applies linear gain then equal-power pan in place over
// interleaved stereo samples.
func applyGainPan(samples []float32, gain, pan float64) {
	if gain != 1.0 {
		g := float32(gain)
		for i := range samples {
			samples[i] *= g
		}
	}
	if pan == 0 || len(samples) < 2 {
		return
	}
	left, right := equalPowerPanGains(pan)
	lg, rg := float32(left), float32(right)
	for i := 0; i+1 < len(samples); i += 2 {
		samples[i] *= lg
		samples[i+1] *= rg
	}
}

// equalPowerPanGains implements the resolved equal-power pan law:
// L *= cos((pan+1)*pi/4), R *= sin((pan+1)*pi/4).
func equalPowerPanGains(pan float64) (left, right float64) {
	angle := (pan + 1) * math.Pi / 4
	return math.Cos(angle), math.Sin(angle)
}
