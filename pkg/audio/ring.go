package audio

import "sync"

// FrameRing is a fixed-capacity ring of recent transport frames, oldest
// overwritten first. One ring is kept per speaker so that the moments before
// a wake event stay available; it is cleared when a capture session starts.
// Safe for concurrent use.
type FrameRing struct {
	mu     sync.Mutex
	frames []Frame
	next   int
	full   bool
}

// NewFrameRing creates a ring holding at most capacity frames. capacity must
// be positive.
func NewFrameRing(capacity int) *FrameRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &FrameRing{frames: make([]Frame, capacity)}
}

// Push appends a frame, overwriting the oldest entry when full.
func (r *FrameRing) Push(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[r.next] = f
	r.next++
	if r.next == len(r.frames) {
		r.next = 0
		r.full = true
	}
}

// Snapshot returns the buffered frames in arrival order.
func (r *FrameRing) Snapshot() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]Frame, r.next)
		copy(out, r.frames[:r.next])
		return out
	}
	out := make([]Frame, len(r.frames))
	n := copy(out, r.frames[r.next:])
	copy(out[n:], r.frames[:r.next])
	return out
}

// Len reports the number of buffered frames.
func (r *FrameRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.frames)
	}
	return r.next
}

// Clear discards all buffered frames.
func (r *FrameRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
	r.full = false
	for i := range r.frames {
		r.frames[i] = Frame{}
	}
}
