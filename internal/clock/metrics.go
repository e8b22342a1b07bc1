package clock

import "time"

// TimingMetrics accumulates a rolling view of AudioClock sync points:
// how often drift crossed the significant threshold, the worst
// variation seen, and an exponential moving average of the callback
// interval, used to decide whether overall pipeline timing performance
// is acceptable.
type TimingMetrics struct {
	TotalCallbacks            uint64
	TotalSamplesProcessed     uint64
	SignificantVariations     uint64
	MaxVariationUS            float64
	AverageCallbackIntervalUS float64
	LastUpdate                time.Time
}

// NewTimingMetrics constructs a zeroed metrics accumulator.
func NewTimingMetrics() *TimingMetrics {
	return &TimingMetrics{LastUpdate: time.Now()}
}

// Update folds a new TimingSync into the rolling metrics.
func (m *TimingMetrics) Update(sync TimingSync) {
	m.TotalCallbacks++
	m.TotalSamplesProcessed = sync.SamplesProcessed

	if sync.IsDriftSignificant {
		m.SignificantVariations++
	}
	if sync.TimingVariation > m.MaxVariationUS {
		m.MaxVariationUS = sync.TimingVariation
	}

	const alpha = 0.1
	if m.AverageCallbackIntervalUS == 0 {
		m.AverageCallbackIntervalUS = sync.CallbackIntervalUS
	} else {
		m.AverageCallbackIntervalUS = (1-alpha)*m.AverageCallbackIntervalUS + alpha*sync.CallbackIntervalUS
	}

	m.LastUpdate = time.Now()
}

// VariationPercentage returns the share of callbacks that crossed the
// significant-drift threshold.
func (m *TimingMetrics) VariationPercentage() float64 {
	if m.TotalCallbacks == 0 {
		return 0
	}
	return float64(m.SignificantVariations) / float64(m.TotalCallbacks) * 100.0
}

// IsPerformanceAcceptable reports whether timing performance is within
// bounds: fewer than 5% of callbacks showing significant variation.
func (m *TimingMetrics) IsPerformanceAcceptable() bool {
	return m.VariationPercentage() < 5.0
}

// Reset clears the accumulator, typically called when the pipeline
// restarts.
func (m *TimingMetrics) Reset() {
	*m = *NewTimingMetrics()
}
