package queue

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"
)

const (
	// MinRingCapacity / MaxRingCapacity bound the hardware ring's sample
	// capacity (ClampRingCapacity's ~100ms target) to [4096, 16384]
	// samples, per §4.4.
	MinRingCapacity = 4096
	MaxRingCapacity = 16384

	bytesPerSample = 4 // float32
)

// ClampRingCapacity sizes a ring to ~100ms of audio at sampleRate,
// clamped to [MinRingCapacity, MaxRingCapacity].
func ClampRingCapacity(sampleRate int) int {
	capacity := sampleRate / 10
	if capacity < MinRingCapacity {
		return MinRingCapacity
	}
	if capacity > MaxRingCapacity {
		return MaxRingCapacity
	}
	return capacity
}

// Notify is a single-producer, single-consumer wakeup: the producer
// pulses it after every push, the consumer parks on it when the ring is
// empty. A buffered channel of size 1 gives "at least one pending wakeup
// coalesces" semantics without the producer ever blocking.
type Notify struct {
	ch chan struct{}
}

// NewNotify constructs a ready-to-use Notify.
func NewNotify() *Notify {
	return &Notify{ch: make(chan struct{}, 1)}
}

// Pulse wakes the consumer, coalescing with any already-pending wakeup.
// Never blocks.
func (n *Notify) Pulse() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the next Pulse.
func (n *Notify) Wait() {
	<-n.ch
}

// C exposes the underlying channel for use in a select alongside a
// cancellation context.
func (n *Notify) C() <-chan struct{} {
	return n.ch
}

// HardwareRing is the SPSC ring between an OS audio callback (producer)
// and an input worker (consumer). It is wait-free on both ends and
// allocates nothing after construction: the producer drops samples and
// counts an overrun on a full ring rather than blocking or growing.
type HardwareRing struct {
	buf      *ringbuffer.RingBuffer
	tracker  *Tracker
	overrun  atomicCounter
	capacity int

	// encodeBuf is not used: Push and Drain each encode/decode through
	// their own stack-local scratch array, which keeps both ends
	// allocation-free on the audio thread.
	encodeBuf [bytesPerSample]byte
}

// NewHardwareRing constructs a ring sized for capacity samples.
func NewHardwareRing(capacitySamples int) *HardwareRing {
	return &HardwareRing{
		buf:      ringbuffer.New(capacitySamples * bytesPerSample),
		tracker:  NewTracker(uint64(capacitySamples)),
		capacity: capacitySamples,
	}
}

// Tracker returns the ring's paired occupancy tracker.
func (r *HardwareRing) Tracker() *Tracker { return r.tracker }

// OverrunCount returns the number of samples dropped because the ring
// was full when Push was called.
func (r *HardwareRing) OverrunCount() uint64 { return r.overrun.load() }

// Push is called from the hardware callback. It never blocks: any
// sample that does not fit is dropped and counted.
func (r *HardwareRing) Push(samples []float32) {
	var scratch [bytesPerSample]byte
	written := 0
	for _, s := range samples {
		binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(s))
		n, _ := r.buf.Write(scratch[:])
		if n < bytesPerSample {
			r.overrun.add(1)
			continue
		}
		written++
	}
	if written > 0 {
		r.tracker.RecordWritten(uint64(written))
	}
}

// Drain pops up to maxSamples samples into out (reusing its backing
// array if it has enough capacity) and returns the slice actually
// filled. Called from the input worker only.
func (r *HardwareRing) Drain(out []float32, maxSamples int) []float32 {
	out = out[:0]
	var scratch [bytesPerSample]byte
	for i := 0; i < maxSamples; i++ {
		n, err := r.buf.Read(scratch[:])
		if err != nil || n < bytesPerSample {
			break
		}
		bits := binary.LittleEndian.Uint32(scratch[:])
		out = append(out, math.Float32frombits(bits))
	}
	if len(out) > 0 {
		r.tracker.RecordRead(uint64(len(out)))
	}
	return out
}

// IsEmpty reports whether the ring currently has no buffered samples.
func (r *HardwareRing) IsEmpty() bool {
	return r.buf.IsEmpty()
}

// atomicCounter is a tiny sync/atomic.Uint64 wrapper kept private so
// HardwareRing's zero value isn't usable (it must go through New). It
// backs the overrun count on the Push path, which must never block or
// contend a lock against the hardware callback.
type atomicCounter struct {
	v atomic.Uint64
}

func (c *atomicCounter) add(n uint64) {
	c.v.Add(n)
}

func (c *atomicCounter) load() uint64 {
	return c.v.Load()
}
