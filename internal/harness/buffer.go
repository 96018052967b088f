package harness

import "sync"

// ringBuffer is a fixed-size circular byte buffer holding the raw output
// history of a session, escape codes included, for post-hoc debugging.
type ringBuffer struct {
	mu    sync.RWMutex
	data  []byte
	start int
	end   int
	full  bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{data: make([]byte, size)}
}

// Write appends p, overwriting the oldest bytes when full.
func (r *ringBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range p {
		r.data[r.end] = b
		r.end = (r.end + 1) % len(r.data)
		if r.full {
			r.start = (r.start + 1) % len(r.data)
		}
		if r.end == r.start {
			r.full = true
		}
	}
	return len(p), nil
}

// Bytes returns the buffered history in order.
func (r *ringBuffer) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.start == r.end && !r.full {
		return nil
	}
	if r.full || r.end <= r.start {
		out := make([]byte, 0, len(r.data))
		out = append(out, r.data[r.start:]...)
		return append(out, r.data[:r.end]...)
	}
	out := make([]byte, r.end-r.start)
	copy(out, r.data[r.start:r.end])
	return out
}
