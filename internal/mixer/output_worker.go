package mixer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/beats-galore/mixer-core/internal/logging"
	"github.com/beats-galore/mixer-core/internal/queue"
	"github.com/beats-galore/mixer-core/internal/resample"
)

const driftCheckInterval = time.Second

// OutputWorker receives MixedFrames from the broadcast queue, resamples
// down to the device's native rate, accumulates samples into
// device-chunk-sized blocks, and hands each block to a SinkFunc.
type OutputWorker struct {
	deviceID   string
	mixRate    int
	deviceRate int
	chunkSize  int

	resampler *resample.Fixed
	buffer    []float32
	sink      SinkFunc

	frames  <-chan queue.MixedFrame
	sub     queue.Subscription
	tracker *queue.Tracker

	deadline time.Duration

	underrunCount atomic.Uint64
	state         atomic.Int32
	cancel        context.CancelFunc

	onError   func(deviceID string, err error)
	onSuccess func(deviceID string)

	logger *slog.Logger
}

// NewOutputWorker constructs an output worker subscribed to broadcast,
// draining to sink in chunkSize-sample blocks at deviceRate. It
// subscribes its own drift tracker from broadcast, sized to the mix
// rate's nominal ring capacity, so adjustDrift always has live
// occupancy data to correct from.
func NewOutputWorker(deviceID string, mixRate, deviceRate, chunkSize int, broadcast *queue.Broadcast, sink SinkFunc) *OutputWorker {
	frames, tracker, sub := broadcast.Subscribe(queue.ClampRingCapacity(mixRate))
	w := &OutputWorker{
		deviceID:   deviceID,
		mixRate:    mixRate,
		deviceRate: deviceRate,
		chunkSize:  chunkSize,
		sink:       sink,
		frames:     frames,
		sub:        sub,
		tracker:    tracker,
		logger:     logging.ForService("output-worker"),
	}
	w.state.Store(int32(StateCreated))
	if mixRate != deviceRate {
		w.resampler = resample.NewFixed(float64(mixRate), float64(deviceRate), 2)
	}
	w.deadline = chunkDeadline(deviceRate, chunkSize)
	return w
}

// chunkDeadline is how long a device chunk's worth of samples takes to
// play out, doubled for slack: if no new frame fills the buffer within
// that window, the device is starved and must be fed padded silence
// rather than left waiting.
func chunkDeadline(deviceRate, chunkSize int) time.Duration {
	if deviceRate <= 0 || chunkSize <= 0 {
		return driftCheckInterval
	}
	framesPerChannel := chunkSize / 2
	if framesPerChannel <= 0 {
		framesPerChannel = chunkSize
	}
	return 2 * time.Duration(framesPerChannel) * time.Second / time.Duration(deviceRate)
}

// SetErrorHandlers wires callbacks invoked on every delivery outcome:
// onError when the sink fails (immediately before the worker stops
// itself), onSuccess after every successful delivery. Either may be
// nil. Must be called before Start.
func (w *OutputWorker) SetErrorHandlers(onError func(deviceID string, err error), onSuccess func(deviceID string)) {
	w.onError = onError
	w.onSuccess = onSuccess
}

// DeviceID returns the device this worker delivers to.
func (w *OutputWorker) DeviceID() string { return w.deviceID }

// State returns the worker's current lifecycle state.
func (w *OutputWorker) State() WorkerState { return WorkerState(w.state.Load()) }

// UnderrunCount returns how many times the worker has padded a
// delivered chunk with zeros due to insufficient buffered samples.
func (w *OutputWorker) UnderrunCount() uint64 { return w.underrunCount.Load() }

// Start transitions Created → Started and spawns the running loop.
func (w *OutputWorker) Start(ctx context.Context) {
	if !w.state.CompareAndSwap(int32(StateCreated), int32(StateStarted)) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(runCtx)
}

// Stop unsubscribes from the broadcast and signals the loop to exit.
func (w *OutputWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.sub.Unsubscribe()
}

func (w *OutputWorker) run(ctx context.Context) {
	w.state.Store(int32(StateRunning))
	defer w.state.Store(int32(StateStopped))

	driftTicker := time.NewTicker(driftCheckInterval)
	defer driftTicker.Stop()

	deadlineTicker := time.NewTicker(w.deadline)
	defer deadlineTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-driftTicker.C:
			w.adjustDrift()
		case <-deadlineTicker.C:
			if len(w.buffer) < w.chunkSize {
				w.flushUnderrun()
			}
		case frame, ok := <-w.frames:
			if !ok {
				return
			}
			w.tracker.RecordRead(uint64(len(frame.Samples)))
			w.ingest(frame.Samples)
		}
	}
}

func (w *OutputWorker) ingest(samples []float32) {
	var deviceSamples []float32
	if w.resampler != nil {
		w.resampler.PushInput(samples)
		outFrames := len(samples) * w.deviceRate / w.mixRate / 2
		if outFrames <= 0 {
			outFrames = 1
		}
		deviceSamples = w.resampler.GetOutput(outFrames)
	} else {
		deviceSamples = samples
	}

	w.buffer = append(w.buffer, deviceSamples...)

	for len(w.buffer) >= w.chunkSize {
		chunk := append([]float32(nil), w.buffer[:w.chunkSize]...)
		w.buffer = w.buffer[w.chunkSize:]
		if err := w.deliver(chunk); err != nil {
			w.fail(err)
			return
		}
	}
}

func (w *OutputWorker) deliver(chunk []float32) error {
	if err := w.sink(chunk); err != nil {
		w.logger.Error("device sink failed", "device_id", w.deviceID, "error", err)
		return err
	}
	if w.onSuccess != nil {
		w.onSuccess(w.deviceID)
	}
	return nil
}

// fail reports a delivery failure to the pipeline manager and stops the
// worker: a device whose sink is erroring is no better than a stopped
// one, and the manager's health surface needs to see both.
func (w *OutputWorker) fail(err error) {
	w.logger.Error("output worker stopping after sink failure", "device_id", w.deviceID, "error", err)
	if w.onError != nil {
		w.onError(w.deviceID, err)
	}
	w.Stop()
}

// flushUnderrun pads the accumulator with zeros and delivers exactly one
// chunk, used when a caller insists a chunk be delivered regardless of
// buffered depth.
func (w *OutputWorker) flushUnderrun() {
	missing := w.chunkSize - len(w.buffer)
	if missing > 0 {
		w.buffer = append(w.buffer, make([]float32, missing)...)
		n := w.underrunCount.Add(1)
		if n <= 5 || n%1000 == 0 {
			w.logger.Warn("output underrun, padding with zeros", "device_id", w.deviceID, "underrun_total", n)
		}
	}
	chunk := append([]float32(nil), w.buffer[:w.chunkSize]...)
	w.buffer = w.buffer[w.chunkSize:]
	if err := w.deliver(chunk); err != nil {
		w.fail(err)
	}
}

// adjustDrift nudges the output resampler's ratio based on the inbound
// feed's estimated occupancy, per the ±0.5% clamp and 45/55% dead zone.
func (w *OutputWorker) adjustDrift() {
	if w.resampler == nil {
		return
	}
	const step = 0.0001 // 0.01%
	const maxAdjust = 0.005
	adjust := w.tracker.AdjustRatio(step, maxAdjust)
	if adjust == 0 {
		return
	}
	newOutRate := float64(w.deviceRate) * (1 + adjust)
	w.resampler.SetSampleRates(float64(w.mixRate), newOutRate, true)
}
