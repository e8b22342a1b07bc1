// Package devicebackend is a reference malgo-based implementation of the
// pipeline's device contract: a capture source that pushes into a
// HardwareRing/Notify pair, and a playback sink usable as a
// mixer.SinkFunc. Nothing in internal/mixer imports this package — it
// exists to demonstrate wiring a real OS audio backend to the core
// without the core depending on any particular backend.
package devicebackend

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	mixererrors "github.com/beats-galore/mixer-core/internal/errors"
	"github.com/beats-galore/mixer-core/internal/logging"
	"github.com/beats-galore/mixer-core/internal/queue"
)

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, mixererrors.Newf("unsupported operating system %q", runtime.GOOS).
			Category(mixererrors.CategoryDevice).Build()
	}
}

// CaptureSource owns a malgo capture device whose callback pushes
// interleaved float32 samples into a HardwareRing and pulses a Notify,
// exactly the contract InputWorker expects on the other end.
type CaptureSource struct {
	deviceID string
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	ring     *queue.HardwareRing
	notify   *queue.Notify
	running  atomic.Bool
	logger   *slog.Logger
}

// NewCaptureSource opens a malgo capture device at sampleRate/channels,
// wired to push into ring and pulse notify on every callback.
func NewCaptureSource(deviceID string, sampleRate uint32, channels uint32, ring *queue.HardwareRing, notify *queue.Notify) (*CaptureSource, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, mixererrors.Newf("init malgo context: %v", err).
			Category(mixererrors.CategoryDevice).Context("device_id", deviceID).Build()
	}

	src := &CaptureSource{
		deviceID: deviceID,
		ctx:      malgoCtx,
		ring:     ring,
		notify:   notify,
		logger:   logging.ForService("devicebackend-capture"),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = channels
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: src.onData,
		Stop: src.onStop,
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, mixererrors.Newf("init malgo device: %v", err).
			Category(mixererrors.CategoryDevice).Context("device_id", deviceID).Build()
	}
	src.device = device

	return src, nil
}

// Start begins capture; Data callbacks fire on malgo's own audio thread
// until Stop is called.
func (s *CaptureSource) Start(ctx context.Context) error {
	if err := s.device.Start(); err != nil {
		return mixererrors.Newf("start capture device: %v", err).
			Category(mixererrors.CategoryDevice).Context("device_id", s.deviceID).Build()
	}
	s.running.Store(true)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts capture and releases the device and context.
func (s *CaptureSource) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	_ = s.device.Stop()
	s.device.Uninit()
	_ = s.ctx.Uninit()
}

func (s *CaptureSource) onData(_ []byte, input []byte, frameCount uint32) {
	samples := bytesToFloat32(input)
	s.ring.Push(samples)
	s.notify.Pulse()
}

func (s *CaptureSource) onStop() {
	s.logger.Warn("capture device stopped unexpectedly", "device_id", s.deviceID)
}

// PlaybackSink owns a malgo playback device and a bounded handoff
// channel: Sink, used as a mixer.SinkFunc, writes the next chunk into
// the channel; the malgo callback copies buffered chunks into its
// output buffer as they become available, writing silence if none are
// ready rather than blocking the audio thread.
type PlaybackSink struct {
	deviceID string
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	chunks   chan []float32
	pending  []float32
	running  atomic.Bool
	logger   *slog.Logger
}

// NewPlaybackSink opens a malgo playback device at sampleRate/channels.
func NewPlaybackSink(deviceID string, sampleRate uint32, channels uint32) (*PlaybackSink, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, mixererrors.Newf("init malgo context: %v", err).
			Category(mixererrors.CategoryDevice).Context("device_id", deviceID).Build()
	}

	sink := &PlaybackSink{
		deviceID: deviceID,
		ctx:      malgoCtx,
		chunks:   make(chan []float32, 8),
		logger:   logging.ForService("devicebackend-playback"),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = channels
	deviceConfig.SampleRate = sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: sink.onData,
		Stop: sink.onStop,
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, mixererrors.Newf("init malgo device: %v", err).
			Category(mixererrors.CategoryDevice).Context("device_id", deviceID).Build()
	}
	sink.device = device

	return sink, nil
}

// Start begins playback.
func (s *PlaybackSink) Start() error {
	if err := s.device.Start(); err != nil {
		return mixererrors.Newf("start playback device: %v", err).
			Category(mixererrors.CategoryDevice).Context("device_id", s.deviceID).Build()
	}
	s.running.Store(true)
	return nil
}

// Stop halts playback and releases the device and context.
func (s *PlaybackSink) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	_ = s.device.Stop()
	s.device.Uninit()
	_ = s.ctx.Uninit()
	close(s.chunks)
}

// Sink is a mixer.SinkFunc: it hands samples to the malgo callback via a
// bounded channel, dropping the chunk rather than blocking the caller
// if the channel is full.
func (s *PlaybackSink) Sink(samples []float32) error {
	cp := append([]float32(nil), samples...)
	select {
	case s.chunks <- cp:
		return nil
	default:
		return mixererrors.Newf("playback handoff full, dropping chunk").
			Category(mixererrors.CategoryQueueOverrun).Context("device_id", s.deviceID).Build()
	}
}

func (s *PlaybackSink) onData(output []byte, _ []byte, frameCount uint32) {
	needed := int(frameCount) * floatBytes
	for len(s.pending) < needed {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				break
			}
			s.pending = append(s.pending, float32ToBytes(chunk)...)
		default:
			// Nothing buffered: pad the remainder with silence rather
			// than block the audio thread.
			padding := make([]byte, needed-len(s.pending))
			s.pending = append(s.pending, padding...)
		}
		if len(s.pending) >= needed {
			break
		}
	}
	copy(output, s.pending[:needed])
	s.pending = s.pending[needed:]
}

func (s *PlaybackSink) onStop() {
	s.logger.Warn("playback device stopped unexpectedly", "device_id", s.deviceID)
}

const floatBytes = 4

func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/floatBytes)
	for i := range out {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func float32ToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*floatBytes)
	for i, s := range samples {
		bits := math.Float32bits(s)
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}
