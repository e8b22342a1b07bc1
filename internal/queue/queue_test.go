package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerUsagePercentAndAdjust(t *testing.T) {
	tr := NewTracker(100)
	tr.RecordWritten(60)
	info := tr.Info()
	assert.InDelta(t, 60.0, info.UsagePercent, 0.01)
	assert.Equal(t, uint64(40), info.Available)
	assert.Greater(t, tr.AdjustRatio(0.0001, 0.005), 0.0)

	tr.RecordRead(55)
	assert.Less(t, tr.AdjustRatio(0.0001, 0.005), 0.0)
}

func TestTrackerAdjustRatioDeadZone(t *testing.T) {
	tr := NewTracker(100)
	tr.RecordWritten(50)
	assert.Equal(t, 0.0, tr.AdjustRatio(0.0001, 0.005))
}

func TestHardwareRingOverrunsOnFull(t *testing.T) {
	ring := NewHardwareRing(8)
	samples := make([]float32, 64)
	for i := range samples {
		samples[i] = float32(i)
	}
	ring.Push(samples)
	assert.Greater(t, ring.OverrunCount(), uint64(0))
}

func TestHardwareRingDrainRoundTrip(t *testing.T) {
	ring := NewHardwareRing(64)
	in := []float32{0.1, 0.2, 0.3, 0.4, 0.5}
	ring.Push(in)

	out := ring.Drain(nil, 8)
	require.Len(t, out, len(in))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1e-6)
	}
	assert.True(t, ring.IsEmpty())
}

func TestBroadcastFanOutDoesNotBlock(t *testing.T) {
	b := NewBroadcast()
	ch1, _, sub1 := b.Subscribe(4096)
	ch2, _, sub2 := b.Subscribe(4096)
	defer sub1.Unsubscribe()
	defer sub2.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Send([]float32{float32(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast send blocked on slow subscribers")
	}

	select {
	case f := <-ch1:
		assert.NotNil(t, f.Samples)
	default:
		t.Fatal("expected at least one frame buffered for ch1")
	}
	select {
	case f := <-ch2:
		assert.NotNil(t, f.Samples)
	default:
		t.Fatal("expected at least one frame buffered for ch2")
	}
}

func TestBroadcastUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcast()
	ch, _, sub := b.Subscribe(4096)
	sub.Unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())
}
