package queue

import "sync"

// MixedFrame is the unit the mixer broadcasts to every registered output
// worker: one block of interleaved mixed samples stamped with the frame
// sequence it was produced at.
type MixedFrame struct {
	Sequence uint64
	Samples  []float32
}

// outputSlot is a single output worker's non-blocking mailbox. It holds
// only the most recent MixedFrame: a slow consumer lags by dropping
// stale frames rather than ever back-pressuring the mixer. tracker
// estimates this subscriber's occupancy against the producer so its
// output worker can drift-correct its resampler.
type outputSlot struct {
	ch      chan MixedFrame
	tracker *Tracker
}

// Broadcast fans a single producer's MixedFrames out to any number of
// output workers without ever blocking the producer. Each output gets
// its own buffered channel; if an output hasn't drained its previous
// frame in time, the broadcast drops the stale one and replaces it
// in-place rather than queuing up memory or stalling the mixer thread.
type Broadcast struct {
	mu   sync.RWMutex
	subs map[uint64]*outputSlot
	next uint64
	seq  uint64
}

// NewBroadcast constructs an empty broadcast fan-out.
func NewBroadcast() *Broadcast {
	return &Broadcast{subs: make(map[uint64]*outputSlot)}
}

// Subscription identifies one registered output receiver.
type Subscription struct {
	id uint64
	b  *Broadcast
}

// Subscribe registers a new output worker and returns its receive
// channel, its drift tracker, and a handle used to Unsubscribe later.
// The channel is buffered to depth 1: Send replaces a
// pending-but-undrained frame instead of blocking. trackerCapacity
// sizes the returned Tracker's full-scale backlog, in samples — it
// should reflect the feed's nominal rate, e.g. ClampRingCapacity(mixRate).
func (b *Broadcast) Subscribe(trackerCapacity int) (<-chan MixedFrame, *Tracker, Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	if trackerCapacity <= 0 {
		trackerCapacity = MinRingCapacity
	}
	slot := &outputSlot{ch: make(chan MixedFrame, 1), tracker: NewTracker(uint64(trackerCapacity))}
	b.subs[id] = slot
	return slot.ch, slot.tracker, Subscription{id: id, b: b}
}

// Unsubscribe removes a previously registered output worker.
func (s Subscription) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if slot, ok := s.b.subs[s.id]; ok {
		close(slot.ch)
		delete(s.b.subs, s.id)
	}
}

// Send replicates samples to every registered output. It never blocks:
// a receiver that hasn't drained its previous frame has that frame
// evicted and replaced, per the "slow consumers may lag but never
// back-pressure the mixer" contract.
func (b *Broadcast) Send(samples []float32) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.seq++
	frame := MixedFrame{Sequence: b.seq, Samples: samples}

	for _, slot := range b.subs {
		slot.tracker.RecordWritten(uint64(len(samples)))
		select {
		case slot.ch <- frame:
		default:
			select {
			case <-slot.ch:
			default:
			}
			select {
			case slot.ch <- frame:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of currently registered outputs.
func (b *Broadcast) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
