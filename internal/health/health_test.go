package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorSamplesOnStart(t *testing.T) {
	m := NewMonitor(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return !m.Status().Timestamp.IsZero()
	}, time.Second, time.Millisecond)

	status := m.Status()
	assert.GreaterOrEqual(t, status.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, status.MemPercent, 0.0)
}

func TestMonitorStopWaitsForLoopExit(t *testing.T) {
	m := NewMonitor(time.Millisecond)
	m.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	m.Stop() // must return promptly, proving the loop goroutine exited
}

func TestMonitorDefaultsIntervalWhenNonPositive(t *testing.T) {
	m := NewMonitor(0)
	assert.Equal(t, 30*time.Second, m.interval)
}
