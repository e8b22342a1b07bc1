package mixer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beats-galore/mixer-core/internal/clock"
	"github.com/beats-galore/mixer-core/internal/command"
	"github.com/beats-galore/mixer-core/internal/config"
	mixererrors "github.com/beats-galore/mixer-core/internal/errors"
	"github.com/beats-galore/mixer-core/internal/health"
	"github.com/beats-galore/mixer-core/internal/logging"
	"github.com/beats-galore/mixer-core/internal/metrics"
	"github.com/beats-galore/mixer-core/internal/queue"
	"github.com/beats-galore/mixer-core/internal/validation"
	"github.com/beats-galore/mixer-core/internal/vu"
)

// defaultMetricsInterval is how often StartMetricsReporting samples
// worker-level counters when the caller doesn't specify one.
const defaultMetricsInterval = 2 * time.Second

// defaultCommandPlaneInterval is the command-plane task's fallback tick
// when the mix rate or nominal buffer size aren't set.
const defaultCommandPlaneInterval = 10 * time.Millisecond

// InputRegistration is returned from AddInputDevice: the device
// collaborator's hardware callback pushes samples into Ring and pulses
// Notify after every push.
type InputRegistration struct {
	Ring   *queue.HardwareRing
	Notify *queue.Notify
}

// Manager owns every input/output worker and queue in the pipeline,
// serializes start order (inputs → mixer → outputs) and stop order
// (reverse), and surfaces aggregate health.
type Manager struct {
	mu sync.Mutex

	cfg        config.MixerConfig
	mixRate    int
	nominal    int
	audioClock *clock.AudioClock
	commands   *command.Processor
	vuService  *vu.Service

	feed      chan ProcessedFrame
	broadcast *queue.Broadcast
	mixing    *MixingLayer

	inputs  map[string]*InputWorker
	outputs map[string]*OutputWorker

	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	consecutiveErrors map[string]int

	recorder      metrics.Recorder
	healthMonitor *health.Monitor

	logger *slog.Logger
}

// NewManager constructs a pipeline manager bound to the given
// configuration, using cfg.SampleRate as the internal mix rate.
func NewManager(cfg config.MixerConfig) *Manager {
	nominal := cfg.BufferSize
	if nominal <= 0 {
		nominal = 512
	}
	audioClock := clock.New(uint32(cfg.SampleRate), uint32(nominal))
	vuService := vu.New(cfg.SampleRate, 30)
	broadcast := queue.NewBroadcast()
	feed := make(chan ProcessedFrame, 256)

	m := &Manager{
		cfg:               cfg,
		mixRate:           cfg.SampleRate,
		nominal:           nominal,
		audioClock:        audioClock,
		commands:          command.NewProcessor(cfg, audioClock, 64),
		vuService:         vuService,
		feed:              feed,
		broadcast:         broadcast,
		inputs:            make(map[string]*InputWorker),
		outputs:           make(map[string]*OutputWorker),
		consecutiveErrors: make(map[string]int),
		recorder:          metrics.NoOpRecorder{},
		logger:            logging.ForService("pipeline-manager"),
	}
	m.mixing = NewMixingLayer(feed, broadcast, audioClock, cfg.SampleRate, nominal, vuService)
	return m
}

// Commands exposes the manager's command processor for external callers
// to Submit control-plane mutations.
func (m *Manager) Commands() *command.Processor { return m.commands }

// SetRecorder wires a metrics recorder into the manager. The default is
// a no-op recorder, so calling this is optional.
func (m *Manager) SetRecorder(r metrics.Recorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = r
}

// SetHealthMonitor wires a host resource monitor whose degraded samples
// fold into HealthCheck's issue list.
func (m *Manager) SetHealthMonitor(hm *health.Monitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthMonitor = hm
}

// StartMetricsReporting spawns a goroutine that samples every worker's
// overrun/underrun/occupancy/drift/VU counters on interval and pushes
// them through the configured Recorder, until ctx is done. Safe to call
// even with the default no-op recorder.
func (m *Manager) StartMetricsReporting(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultMetricsInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reportMetrics()
			}
		}
	}()
}

func (m *Manager) reportMetrics() {
	m.mu.Lock()
	recorder := m.recorder
	inputs := make([]*InputWorker, 0, len(m.inputs))
	for _, w := range m.inputs {
		inputs = append(inputs, w)
	}
	outputs := make([]*OutputWorker, 0, len(m.outputs))
	for _, w := range m.outputs {
		outputs = append(outputs, w)
	}
	vuService := m.vuService
	driftMS := m.audioClock.DriftMS()
	m.mu.Unlock()

	for _, w := range inputs {
		recorder.SetWorkerState(w.DeviceID(), "input", int(w.State()))
		recorder.RecordQueueOccupancy(w.DeviceID(), w.QueueOccupancyPercent())
		recorder.RecordDriftMS(w.DeviceID(), driftMS)
		if overruns := w.OverrunCount(); overruns > 0 {
			recorder.RecordOverrun(w.DeviceID())
		}

		w.channelMu.RLock()
		channelID := w.channel.ID
		w.channelMu.RUnlock()
		if reading, ok := vuService.LastChannelReading(channelID); ok {
			recorder.RecordVULevel(w.DeviceID(), channelID, maxF64(reading.PeakL, reading.PeakR), maxF64(reading.RMSL, reading.RMSR))
		}
	}

	for _, w := range outputs {
		recorder.SetWorkerState(w.DeviceID(), "output", int(w.State()))
		if underruns := w.UnderrunCount(); underruns > 0 {
			recorder.RecordUnderrun(w.DeviceID())
		}
	}
}

func maxF64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// AddInputDevice registers a new input device, creating its hardware
// ring and worker. If the pipeline is already running, the worker
// starts immediately.
func (m *Manager) AddInputDevice(id string, nativeRate, channels int, channel config.AudioChannel) (*InputRegistration, error) {
	if err := validation.DeviceID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.inputs[id]; exists {
		return nil, mixererrors.Newf("input device %q already registered", id).
			Category(mixererrors.CategoryAlreadyRegistered).Build()
	}

	capacity := queue.ClampRingCapacity(nativeRate)
	ring := queue.NewHardwareRing(capacity)
	notify := queue.NewNotify()

	worker := NewInputWorker(id, nativeRate, m.mixRate, ring, notify, m.feed, m.vuService)
	worker.SetChannel(channel)
	m.vuService.RegisterChannel(channel.ID)
	m.inputs[id] = worker

	if m.running {
		worker.Start(m.ctx)
	}

	m.logger.Info("input device registered", "device_id", id, "native_rate", nativeRate, "channels", channels)
	return &InputRegistration{Ring: ring, Notify: notify}, nil
}

// RemoveInputDevice stops and removes a registered input device.
func (m *Manager) RemoveInputDevice(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	worker, exists := m.inputs[id]
	if !exists {
		return mixererrors.Newf("input device %q not registered", id).
			Category(mixererrors.CategoryNotRegistered).Build()
	}
	worker.Stop()
	delete(m.inputs, id)
	m.mixing.RemoveInput(id)
	delete(m.consecutiveErrors, id)
	m.logger.Info("input device removed", "device_id", id)
	return nil
}

// AddOutputDevice registers a new output device and its worker, wired
// to the mixing layer's broadcast and delivering chunks through sink.
func (m *Manager) AddOutputDevice(id string, nativeRate, chunkSize int, sink SinkFunc) error {
	if err := validation.DeviceID(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.outputs[id]; exists {
		return mixererrors.Newf("output device %q already registered", id).
			Category(mixererrors.CategoryAlreadyRegistered).Build()
	}

	worker := NewOutputWorker(id, m.mixRate, nativeRate, chunkSize, m.broadcast, sink)
	worker.SetErrorHandlers(func(deviceID string, err error) {
		m.NoteWorkerError(deviceID)
	}, m.NoteWorkerSuccess)
	m.outputs[id] = worker

	if m.running {
		worker.Start(m.ctx)
	}

	m.logger.Info("output device registered", "device_id", id, "native_rate", nativeRate, "chunk_size", chunkSize)
	return nil
}

// RemoveOutputDevice stops and removes a registered output device.
func (m *Manager) RemoveOutputDevice(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	worker, exists := m.outputs[id]
	if !exists {
		return mixererrors.Newf("output device %q not registered", id).
			Category(mixererrors.CategoryNotRegistered).Build()
	}
	worker.Stop()
	delete(m.outputs, id)
	m.logger.Info("output device removed", "device_id", id)
	return nil
}

// Start begins the pipeline: inputs, then the mixing layer, then
// outputs, matching the spec's required start order.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	for _, w := range m.inputs {
		w.Start(m.ctx)
	}
	go m.mixing.Run(m.ctx)
	for _, w := range m.outputs {
		w.Start(m.ctx)
	}
	go m.runCommandPlane(m.ctx)

	m.logger.Info("pipeline started", "inputs", len(m.inputs), "outputs", len(m.outputs))
}

// runCommandPlane periodically drains the command processor and pushes
// the resulting configuration out to every worker, so AddChannel,
// SetChannelVolume, Mute, Solo, and similar submissions submitted while
// the pipeline is running actually reach it instead of sitting in the
// processor's queue until the next explicit ApplyPendingCommands call.
// The tick is paced to one mix-rate buffer period, so workers observe
// new values within a frame boundary of submission.
func (m *Manager) runCommandPlane(ctx context.Context) {
	ticker := time.NewTicker(m.commandPlaneInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ApplyPendingCommands()
		}
	}
}

func (m *Manager) commandPlaneInterval() time.Duration {
	if m.mixRate <= 0 || m.nominal <= 0 {
		return defaultCommandPlaneInterval
	}
	interval := time.Duration(m.nominal) * time.Second / time.Duration(m.mixRate)
	if interval <= 0 {
		return defaultCommandPlaneInterval
	}
	return interval
}

// Stop halts the pipeline in reverse start order: outputs, then the
// mixing layer (via context cancellation), then inputs.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}

	for _, w := range m.outputs {
		w.Stop()
	}
	m.cancel()
	for _, w := range m.inputs {
		w.Stop()
	}

	m.running = false
	m.logger.Info("pipeline stopped")
}

// Status is the pipeline's aggregate snapshot surface.
type Status struct {
	Running      bool
	InputCount   int
	OutputCount  int
	SampleRate   int
	InputStates  map[string]WorkerState
	OutputStates map[string]WorkerState
}

// Status reports each worker's lifecycle state alongside pipeline-wide
// counters.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	inputStates := make(map[string]WorkerState, len(m.inputs))
	for id, w := range m.inputs {
		inputStates[id] = w.State()
	}
	outputStates := make(map[string]WorkerState, len(m.outputs))
	for id, w := range m.outputs {
		outputStates[id] = w.State()
	}

	return Status{
		Running:      m.running,
		InputCount:   len(m.inputs),
		OutputCount:  len(m.outputs),
		SampleRate:   m.mixRate,
		InputStates:  inputStates,
		OutputStates: outputStates,
	}
}

// HealthCheckResult is the pipeline's health surface. HealthScore is the
// percentage (0–100) of devices counted healthy; unacceptable timing
// performance and a degraded host add Issues and clear Healthy but do
// not lower the score.
type HealthCheckResult struct {
	Healthy        bool
	HealthScore    float64
	Issues         []string
	HealthyDevices int
	TotalDevices   int
}

// NoteWorkerError records a worker error against its device's
// consecutive-error count, used by HealthCheck to flag devices that
// have failed three or more times in a row without an intervening
// success.
func (m *Manager) NoteWorkerError(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveErrors[deviceID]++
}

// NoteWorkerSuccess resets a device's consecutive-error count.
func (m *Manager) NoteWorkerSuccess(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.consecutiveErrors, deviceID)
}

// HealthCheck computes the pipeline's aggregate health: a device is
// unhealthy if it has accumulated 3+ consecutive errors or its worker
// has stopped while the pipeline is still running.
func (m *Manager) HealthCheck() HealthCheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := len(m.inputs) + len(m.outputs)
	healthy := 0
	var issues []string

	checkWorker := func(id string, state WorkerState) {
		ok := true
		if m.running && state == StateStopped {
			ok = false
			issues = append(issues, id+": worker stopped unexpectedly")
		}
		if m.consecutiveErrors[id] >= 3 {
			ok = false
			issues = append(issues, id+": 3+ consecutive errors")
		}
		if ok {
			healthy++
		}
	}

	for id, w := range m.inputs {
		checkWorker(id, w.State())
	}
	for id, w := range m.outputs {
		checkWorker(id, w.State())
	}

	if !m.mixing.TimingMetrics().IsPerformanceAcceptable() {
		issues = append(issues, "timing performance degraded")
	}

	if m.healthMonitor != nil {
		if sample := m.healthMonitor.Status(); sample.Degraded {
			issues = append(issues, sample.Issues...)
		}
	}

	score := 100.0
	if total > 0 {
		score = float64(healthy) / float64(total) * 100.0
	}

	return HealthCheckResult{
		Healthy:        len(issues) == 0,
		HealthScore:    score,
		Issues:         issues,
		HealthyDevices: healthy,
		TotalDevices:   total,
	}
}

// ApplyPendingCommands drains the command queue and pushes the
// resulting configuration snapshot out to every input worker, updating
// each one's AudioChannel and the shared solo flag.
func (m *Manager) ApplyPendingCommands() {
	m.commands.Drain()
	cfg := m.commands.Snapshot()

	anySolo := false
	for _, ch := range cfg.Channels {
		if ch.Solo {
			anySolo = true
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mixing.SetMasterGain(cfg.MasterGain)
	for _, ch := range cfg.Channels {
		if w, ok := m.inputs[ch.InputDeviceID]; ok {
			w.SetChannel(ch)
			w.SetAnySolo(anySolo)
		}
	}
}
