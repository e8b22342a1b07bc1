package mixer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/beats-galore/mixer-core/internal/queue"
)

func TestOutputWorkerDeliversChunks(t *testing.T) {
	defer goleak.VerifyNone(t)

	broadcast := queue.NewBroadcast()
	var mu sync.Mutex
	var delivered [][]float32
	sink := func(samples []float32) error {
		mu.Lock()
		delivered = append(delivered, append([]float32(nil), samples...))
		mu.Unlock()
		return nil
	}

	w := NewOutputWorker("speakers", 48000, 48000, 4, broadcast, sink)
	w.deadline = time.Hour // deadline-triggered underrun padding is covered separately
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	broadcast.Send([]float32{0.1, 0.2, 0.3, 0.4})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return w.State() == StateStopped }, time.Second, time.Millisecond)
}

func TestOutputWorkerPadsOnUnderrun(t *testing.T) {
	defer goleak.VerifyNone(t)

	broadcast := queue.NewBroadcast()
	var mu sync.Mutex
	var delivered int
	sink := func(samples []float32) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	}

	// A large chunk size and a tiny deadline forces flushUnderrun before
	// enough samples ever accumulate.
	w := NewOutputWorker("speakers-2", 48000, 48000, 4096, broadcast, sink)
	w.deadline = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.Eventually(t, func() bool {
		return w.UnderrunCount() > 0
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Greater(t, delivered, 0)
	mu.Unlock()
}

func TestOutputWorkerUnsubscribesOnStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	broadcast := queue.NewBroadcast()
	sink := func(samples []float32) error { return nil }
	w := NewOutputWorker("speakers-3", 48000, 48000, 4, broadcast, sink)

	ctx := context.Background()
	w.Start(ctx)
	require.Eventually(t, func() bool { return broadcast.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	w.Stop()
	require.Eventually(t, func() bool { return broadcast.SubscriberCount() == 0 }, time.Second, time.Millisecond)
}

func TestChunkDeadlineFallsBackOnInvalidInput(t *testing.T) {
	assert.Equal(t, driftCheckInterval, chunkDeadline(0, 100))
	assert.Equal(t, driftCheckInterval, chunkDeadline(48000, 0))
	assert.Greater(t, chunkDeadline(48000, 512), time.Duration(0))
}

func TestOutputWorkerAdjustDriftNudgesResamplerOnSkew(t *testing.T) {
	broadcast := queue.NewBroadcast()
	sink := func(samples []float32) error { return nil }

	// mixRate != deviceRate so NewOutputWorker builds a resampler; the
	// tracker's capacity is ClampRingCapacity(48000) == 4800, so writing
	// 3000 samples without any matching read pushes usage to 62.5%,
	// past the 55% "supply outrunning consumer" threshold.
	w := NewOutputWorker("speakers", 48000, 44100, 4, broadcast, sink)
	require.NotNil(t, w.resampler)

	before := w.resampler.OutRate()
	w.tracker.RecordWritten(3000)

	w.adjustDrift()

	assert.NotEqual(t, before, w.resampler.OutRate())
}

func TestOutputWorkerAdjustDriftNoopWithoutResampler(t *testing.T) {
	broadcast := queue.NewBroadcast()
	sink := func(samples []float32) error { return nil }

	w := NewOutputWorker("speakers", 48000, 48000, 4, broadcast, sink)
	require.Nil(t, w.resampler)

	w.tracker.RecordWritten(1000)
	w.adjustDrift() // must not panic with a nil resampler
}

func TestOutputWorkerSinkFailureStopsWorkerAndNotifiesManager(t *testing.T) {
	defer goleak.VerifyNone(t)

	broadcast := queue.NewBroadcast()
	sink := func(samples []float32) error { return assert.AnError }

	w := NewOutputWorker("speakers-4", 48000, 48000, 4, broadcast, sink)

	var mu sync.Mutex
	var errDeviceID string
	var successCalls int
	w.SetErrorHandlers(func(deviceID string, err error) {
		mu.Lock()
		errDeviceID = deviceID
		mu.Unlock()
	}, func(deviceID string) {
		mu.Lock()
		successCalls++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	broadcast.Send([]float32{0.1, 0.2, 0.3, 0.4})

	require.Eventually(t, func() bool { return w.State() == StateStopped }, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "speakers-4", errDeviceID)
	assert.Zero(t, successCalls)
}

func TestOutputWorkerOnSuccessCalledOnEachDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	broadcast := queue.NewBroadcast()
	sink := func(samples []float32) error { return nil }
	w := NewOutputWorker("speakers-5", 48000, 48000, 4, broadcast, sink)

	var mu sync.Mutex
	var successCalls int
	w.SetErrorHandlers(nil, func(deviceID string) {
		mu.Lock()
		successCalls++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	broadcast.Send([]float32{0.1, 0.2, 0.3, 0.4})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return successCalls == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return w.State() == StateStopped }, time.Second, time.Millisecond)
}
