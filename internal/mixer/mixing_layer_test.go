package mixer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/beats-galore/mixer-core/internal/clock"
	"github.com/beats-galore/mixer-core/internal/queue"
)

func newTestMixingLayer(t *testing.T) (*MixingLayer, chan ProcessedFrame, *queue.Broadcast) {
	t.Helper()
	in := make(chan ProcessedFrame, 8)
	broadcast := queue.NewBroadcast()
	audioClock := clock.New(48000, 512)
	layer := NewMixingLayer(in, broadcast, audioClock, 48000, 512, nil)
	return layer, in, broadcast
}

func TestMixingLayerSumsActiveInputs(t *testing.T) {
	layer, in, broadcast := newTestMixingLayer(t)
	frames, _, sub := broadcast.Subscribe(4096)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go layer.Run(ctx)

	in <- ProcessedFrame{SourceID: "a", Samples: []float32{0.1, 0.1}}
	in <- ProcessedFrame{SourceID: "b", Samples: []float32{0.2, 0.2}}

	var mixed queue.MixedFrame
	require.Eventually(t, func() bool {
		select {
		case mixed = <-frames:
			return len(mixed.Samples) == 2 && mixed.Samples[0] > 0.25
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestMixingLayerNormalizesAboveThreshold(t *testing.T) {
	defer goleak.VerifyNone(t)
	layer, in, broadcast := newTestMixingLayer(t)
	frames, _, sub := broadcast.Subscribe(4096)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go layer.Run(ctx)

	// Two loud inputs summing well past the normalize threshold.
	in <- ProcessedFrame{SourceID: "a", Samples: []float32{0.9, 0.9}}
	in <- ProcessedFrame{SourceID: "b", Samples: []float32{0.9, 0.9}}

	select {
	case mixed := <-frames:
		for _, s := range mixed.Samples {
			assert.LessOrEqual(t, s, float32(normalizeThreshold+0.01))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for mixed frame")
	}
}

func TestMixingLayerRemoveInputDropsSlot(t *testing.T) {
	layer, in, _ := newTestMixingLayer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go layer.Run(ctx)

	in <- ProcessedFrame{SourceID: "a", Samples: []float32{0.5, 0.5}}
	time.Sleep(10 * time.Millisecond)

	layer.RemoveInput("a")
	layer.mu.Lock()
	_, exists := layer.latest["a"]
	layer.mu.Unlock()
	assert.False(t, exists)
}

func TestNormalizeSingleInputOnlyClipGuards(t *testing.T) {
	buf := []float32{0.95, 0.95}
	normalize(buf, 1)
	assert.InDelta(t, 0.95*clipGuardScale, float64(buf[0]), 0.001)
}

func TestNormalizeScalesMultiInputPeak(t *testing.T) {
	buf := []float32{1.0, -1.0}
	normalize(buf, 2)
	assert.LessOrEqual(t, peakOf(buf), clipGuardThreshold+0.01)
}
