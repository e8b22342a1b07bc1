// Package logging provides structured logging for the mixer core using
// log/slog. Unlike a full application logger, the core never opens files
// on its own: callers that want rotation can pass a lumberjack (or any
// io.Writer) into Init.
package logging

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
)

const (
	// LevelTrace is for per-sample-group diagnostics; must stay disabled
	// in production, it is far too chatty for the audio thread otherwise.
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

var (
	mu            sync.RWMutex
	structured    *slog.Logger
	human         *slog.Logger
	currentLevel  = new(slog.LevelVar)
	initOnce      sync.Once
)

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			if label, exists := levelNames[level]; exists {
				a.Value = slog.StringValue(label)
			}
		}
	}
	if a.Value.Kind() == slog.KindFloat64 {
		truncated := math.Trunc(a.Value.Float64()*100) / 100.0
		a.Value = slog.Float64Value(truncated)
	}
	return a
}

// Init sets up the default structured (JSON to structuredOut) and
// human-readable (text to humanOut) loggers. Passing nil for either
// writer falls back to stderr / stdout respectively. Safe to call once;
// subsequent calls are no-ops.
func Init(structuredOut, humanOut io.Writer) {
	initOnce.Do(func() {
		if structuredOut == nil {
			structuredOut = os.Stderr
		}
		if humanOut == nil {
			humanOut = os.Stdout
		}
		currentLevel.Set(slog.LevelInfo)

		jsonHandler := slog.NewJSONHandler(structuredOut, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		})
		textHandler := slog.NewTextHandler(humanOut, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		})

		mu.Lock()
		structured = slog.New(jsonHandler)
		human = slog.New(textHandler)
		mu.Unlock()

		slog.SetDefault(structured)
	})
}

// SetLevel changes the minimum level for both loggers.
func SetLevel(level slog.Level) {
	currentLevel.Set(level)
}

// ForService returns a logger tagged with "service", falling back to
// slog.Default() if Init has not run yet (so early-boot logging is never
// nil).
func ForService(service string) *slog.Logger {
	mu.RLock()
	base := structured
	mu.RUnlock()
	if base == nil {
		base = slog.Default()
	}
	return base.With("service", service)
}

// Trace logs at LevelTrace using the default logger. Gate calls to this
// behind a cheap boolean check in hot loops; slog still evaluates args
// otherwise.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// RateLimiter throttles repeated log lines the way the original pipeline
// workers do: log the first few occurrences, then only every Nth.
type RateLimiter struct {
	mu       sync.Mutex
	count    uint64
	burst    uint64
	interval uint64
}

// NewRateLimiter logs the first `burst` occurrences, then one in every
// `interval` thereafter.
func NewRateLimiter(burst, interval uint64) *RateLimiter {
	if interval == 0 {
		interval = 1
	}
	return &RateLimiter{burst: burst, interval: interval}
}

// Allow reports whether the caller should emit a log line for this
// occurrence.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	if r.count <= r.burst {
		return true
	}
	return (r.count-r.burst)%r.interval == 0
}
