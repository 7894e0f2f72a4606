package engine

import (
	"sync"

	"sentinel-engine/internal/threat"
)

// Ring is a fixed-capacity circular buffer of the most recent threat
// events. It backs fast recent-window summaries without hitting storage;
// it is best effort and never authoritative. Unlike a queue, a full ring
// overwrites its oldest entry.
type Ring struct {
	mu     sync.Mutex
	buffer []*threat.Event
	size   int
	next   int
	count  int
}

// NewRing creates a ring with the specified capacity.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 10000
	}
	return &Ring{
		buffer: make([]*threat.Event, size),
		size:   size,
	}
}

// Add records a threat event, evicting the oldest entry when full.
func (r *Ring) Add(event *threat.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer[r.next] = event
	r.next = (r.next + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// Snapshot returns the buffered events, oldest first.
func (r *Ring) Snapshot() []*threat.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*threat.Event, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += r.size
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buffer[(start+i)%r.size])
	}
	return out
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return r.size
}
