// Package health samples host CPU and memory usage on an interval and
// folds the readings into the pipeline's aggregate health surface,
// independent of per-device health tracked by the mixer package itself.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/beats-galore/mixer-core/internal/logging"
)

// Thresholds above which a Sample is considered degraded, matching the
// monitor package's warning/critical split without the notification
// plumbing: the mixer core only needs a boolean signal to fold into its
// own HealthCheck.
const (
	cpuWarnPercent = 80.0
	memWarnPercent = 85.0
)

// Sample is one host-resource reading.
type Sample struct {
	CPUPercent float64
	MemPercent float64
	Degraded   bool
	Issues     []string
	Timestamp  time.Time
}

// Monitor periodically samples host CPU and memory and retains the most
// recent reading for Status() to hand to the pipeline manager.
type Monitor struct {
	mu       sync.RWMutex
	last     Sample
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewMonitor constructs a host resource monitor sampling at interval.
func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		interval: interval,
		logger:   logging.ForService("health-monitor"),
	}
}

// Start begins the periodic sampling loop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.sample()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop halts the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Status returns the most recent sample.
func (m *Monitor) Status() Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Monitor) sample() {
	var issues []string

	cpuPercents, err := cpu.Percent(0, false)
	cpuPercent := 0.0
	if err != nil {
		m.logger.Warn("cpu sample failed", "error", err)
	} else if len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}
	if cpuPercent > cpuWarnPercent {
		issues = append(issues, "CPU usage above warning threshold")
	}

	memPercent := 0.0
	if vm, err := mem.VirtualMemory(); err != nil {
		m.logger.Warn("memory sample failed", "error", err)
	} else {
		memPercent = vm.UsedPercent
	}
	if memPercent > memWarnPercent {
		issues = append(issues, "memory usage above warning threshold")
	}

	sample := Sample{
		CPUPercent: cpuPercent,
		MemPercent: memPercent,
		Degraded:   len(issues) > 0,
		Issues:     issues,
		Timestamp:  time.Now(),
	}

	m.mu.Lock()
	m.last = sample
	m.mu.Unlock()
}
