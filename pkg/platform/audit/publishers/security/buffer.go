package security

import (
	"sync"

	audit "custodia/pkg/platform/audit"
)

// ringBuffer is a bounded FIFO of security events. When full the oldest
// event is overwritten and counted as dropped.
type ringBuffer struct {
	mu      sync.Mutex
	events  []audit.SecurityEvent
	head    int
	count   int
	dropped int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &ringBuffer{events: make([]audit.SecurityEvent, capacity)}
}

func (b *ringBuffer) enqueue(event audit.SecurityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.events)
	b.events[(b.head+b.count)%capacity] = event
	if b.count == capacity {
		b.head = (b.head + 1) % capacity
		b.dropped++
		return
	}
	b.count++
}

func (b *ringBuffer) dequeueBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	out := make([]audit.SecurityEvent, n)
	for i := range n {
		out[i] = b.events[b.head]
		b.head = (b.head + 1) % len(b.events)
	}
	b.count -= n
	return out
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *ringBuffer) droppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
