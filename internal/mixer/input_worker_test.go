package mixer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/beats-galore/mixer-core/internal/config"
	"github.com/beats-galore/mixer-core/internal/queue"
	"github.com/beats-galore/mixer-core/internal/vu"
)

func TestInputWorkerProcessesAndForwards(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := queue.NewHardwareRing(1024)
	notify := queue.NewNotify()
	out := make(chan ProcessedFrame, 4)
	vuService := vu.New(48000, 30)
	vuService.RegisterChannel(1)

	w := NewInputWorker("mic-1", 48000, 48000, ring, notify, out, vuService)
	w.SetChannel(config.AudioChannel{ID: 1, Gain: 1.0})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	ring.Push([]float32{0.1, 0.2, 0.3, 0.4})
	notify.Pulse()

	select {
	case frame := <-out:
		assert.Equal(t, "mic-1", frame.SourceID)
		assert.Len(t, frame.Samples, 4)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for processed frame")
	}

	cancel()
	require.Eventually(t, func() bool { return w.State() == StateStopped }, time.Second, time.Millisecond)
}

func TestInputWorkerMutesWhenMuted(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := queue.NewHardwareRing(1024)
	notify := queue.NewNotify()
	out := make(chan ProcessedFrame, 4)

	w := NewInputWorker("mic-2", 48000, 48000, ring, notify, out, nil)
	w.SetChannel(config.AudioChannel{ID: 2, Gain: 1.0, Muted: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	ring.Push([]float32{1, 1, 1, 1})
	notify.Pulse()

	select {
	case frame := <-out:
		for _, s := range frame.Samples {
			assert.Equal(t, float32(0), s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for processed frame")
	}
}

func TestInputWorkerMutesWhenSoloedElsewhere(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := queue.NewHardwareRing(1024)
	notify := queue.NewNotify()
	out := make(chan ProcessedFrame, 4)

	w := NewInputWorker("mic-3", 48000, 48000, ring, notify, out, nil)
	w.SetChannel(config.AudioChannel{ID: 3, Gain: 1.0})
	w.SetAnySolo(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	ring.Push([]float32{1, 1, 1, 1})
	notify.Pulse()

	select {
	case frame := <-out:
		for _, s := range frame.Samples {
			assert.Equal(t, float32(0), s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for processed frame")
	}
}

func TestInputWorkerDoubleStartIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	ring := queue.NewHardwareRing(1024)
	notify := queue.NewNotify()
	out := make(chan ProcessedFrame, 4)

	w := NewInputWorker("mic-4", 48000, 48000, ring, notify, out, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	w.Start(ctx) // second call must be a no-op, not a second goroutine
	require.Eventually(t, func() bool { return w.State() == StateRunning }, time.Second, time.Millisecond)
}
