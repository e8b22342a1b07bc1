// Package vu computes and throttles the peak/RMS level telemetry the
// pipeline emits for each input channel and for the mixed master output.
package vu

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beats-galore/mixer-core/internal/dsp"
	"github.com/beats-galore/mixer-core/internal/logging"
)

const dbFloor = -100.0

// ChannelReading is one channel's VU snapshot.
type ChannelReading struct {
	DeviceID string
	Channel  uint32
	PeakL    float64
	PeakR    float64
	RMSL     float64
	RMSR     float64
	IsStereo bool
	TimeUS   int64
}

// MasterReading is the mixed-output VU snapshot.
type MasterReading struct {
	PeakL  float64
	PeakR  float64
	RMSL   float64
	RMSR   float64
	TimeUS int64
}

// channelAnalyzers pairs the per-channel left/right detectors and a
// cached most recently computed reading (emitted or not), per the master/channel level cache
// pattern: consumers that poll between emissions still see the most
// recent value rather than a stale zero.
type channelAnalyzers struct {
	peakL, peakR *dsp.PeakDetector
	rmsL, rmsR   *dsp.RMSDetector
	lastReading  ChannelReading
}

// Service computes peak/RMS levels for every registered channel plus the
// master bus, emitting throttled ChannelReading/MasterReading values on
// Emit-style calls no faster than minEventIntervalUS apart.
type Service struct {
	mu sync.Mutex

	sampleRate int
	channels   map[uint32]*channelAnalyzers

	masterPeakL, masterPeakR *dsp.PeakDetector
	masterRMSL, masterRMSR   *dsp.RMSDetector
	masterLast               MasterReading

	lastEventUS        atomic.Int64
	minEventIntervalUS int64
	emitFailureLogged  map[uint32]bool

	logger *slog.Logger
}

// New constructs a VU service emitting at most emitRateHz events per
// second, sized for the given sample rate.
func New(sampleRate int, emitRateHz int) *Service {
	if emitRateHz <= 0 {
		emitRateHz = 30
	}
	return &Service{
		sampleRate:         sampleRate,
		channels:           make(map[uint32]*channelAnalyzers),
		masterPeakL:        dsp.NewPeakDetector(),
		masterPeakR:        dsp.NewPeakDetector(),
		masterRMSL:         dsp.NewRMSDetector(sampleRate),
		masterRMSR:         dsp.NewRMSDetector(sampleRate),
		minEventIntervalUS: int64(1_000_000 / emitRateHz),
		emitFailureLogged:  make(map[uint32]bool),
		logger:             logging.ForService("vu"),
	}
}

// RegisterChannel allocates analyzers for a new channel ID, idempotent
// if already registered.
func (s *Service) RegisterChannel(channelID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channelID]; ok {
		return
	}
	s.channels[channelID] = &channelAnalyzers{
		peakL: dsp.NewPeakDetector(),
		peakR: dsp.NewPeakDetector(),
		rmsL:  dsp.NewRMSDetector(s.sampleRate),
		rmsR:  dsp.NewRMSDetector(s.sampleRate),
	}
}

// UnregisterChannel drops a channel's analyzers.
func (s *Service) UnregisterChannel(channelID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channelID)
	delete(s.emitFailureLogged, channelID)
}

// ProcessChannel analyzes one channel's interleaved stereo samples and
// returns (reading, true) if the emission throttle allows a new event
// this call; otherwise it returns the freshly computed reading (also
// cached) and false.
func (s *Service) ProcessChannel(deviceID string, channelID uint32, samples []float32) (ChannelReading, bool) {
	if len(samples) == 0 {
		return ChannelReading{}, false
	}

	s.mu.Lock()
	ch, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return ChannelReading{}, false
	}
	s.mu.Unlock()

	left, right := deinterleaveStereo(samples)

	peakL := ch.peakL.Process(left)
	rmsL := ch.rmsL.Process(left)

	var peakR, rmsR float64
	isStereo := len(right) > 0
	if isStereo {
		peakR = ch.peakR.Process(right)
		rmsR = ch.rmsR.Process(right)
	}

	reading := ChannelReading{
		DeviceID: deviceID,
		Channel:  channelID,
		PeakL:    linearToDB(peakL),
		PeakR:    linearToDB(peakR),
		RMSL:     linearToDB(rmsL),
		RMSR:     linearToDB(rmsR),
		IsStereo: isStereo,
		TimeUS:   nowMicros(),
	}

	s.mu.Lock()
	ch.lastReading = reading
	s.mu.Unlock()

	if !s.shouldEmit() {
		return reading, false
	}
	return reading, true
}

// ProcessMaster analyzes the mixed master bus's interleaved stereo
// samples with the same throttle contract as ProcessChannel.
func (s *Service) ProcessMaster(samples []float32) (MasterReading, bool) {
	if len(samples) == 0 {
		return MasterReading{}, false
	}

	left, right := deinterleaveStereo(samples)

	peakL := s.masterPeakL.Process(left)
	rmsL := s.masterRMSL.Process(left)
	peakR := s.masterPeakR.Process(right)
	rmsR := s.masterRMSR.Process(right)

	reading := MasterReading{
		PeakL:  linearToDB(peakL),
		PeakR:  linearToDB(peakR),
		RMSL:   linearToDB(rmsL),
		RMSR:   linearToDB(rmsR),
		TimeUS: nowMicros(),
	}

	s.mu.Lock()
	s.masterLast = reading
	s.mu.Unlock()

	if !s.shouldEmit() {
		return reading, false
	}
	return reading, true
}

// LastChannelReading returns the most recently computed reading for a
// channel, regardless of throttle state.
func (s *Service) LastChannelReading(channelID uint32) (ChannelReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return ChannelReading{}, false
	}
	return ch.lastReading, true
}

// LastMasterReading returns the most recently computed master reading.
func (s *Service) LastMasterReading() MasterReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.masterLast
}

// NoteDeliveryFailure logs a channel's VU delivery failure once, then
// silences further logging for that channel per the spec's "log once,
// then silence" contract for repeating delivery failures.
func (s *Service) NoteDeliveryFailure(channelID uint32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitFailureLogged[channelID] {
		return
	}
	s.emitFailureLogged[channelID] = true
	s.logger.Warn("vu event delivery failed", "channel", channelID, "error", err)
}

func (s *Service) shouldEmit() bool {
	nowUS := nowMicros()
	last := s.lastEventUS.Load()
	if nowUS-last >= s.minEventIntervalUS {
		s.lastEventUS.Store(nowUS)
		return true
	}
	return false
}

func deinterleaveStereo(samples []float32) (left, right []float32) {
	left = make([]float32, 0, (len(samples)+1)/2)
	right = make([]float32, 0, len(samples)/2)
	for i, s := range samples {
		if i%2 == 0 {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	return left, right
}

func linearToDB(v float64) float64 {
	if v > 0 {
		if db := 20.0 * math.Log10(v); db > dbFloor {
			return db
		}
	}
	return dbFloor
}

func nowMicros() int64 {
	return time.Now().UnixMicro()
}
