// Package window provides the fixed-length sample buffer that feeds the classifier
package window

import "sync"

// Sample is one observation in a signal stream: a flattened video frame
// tensor or one accelerometer/gyroscope tick, depending on the source.
type Sample []float32

// Window holds the most recent N samples of a signal stream.
// Once full, every Push evicts the oldest sample.
type Window struct {
	mu    sync.Mutex
	buf   []Sample
	head  int
	count int
}

// New creates a window with the given capacity.
func New(capacity int) *Window {
	if capacity <= 0 {
		panic("window: capacity must be positive")
	}
	return &Window{
		buf: make([]Sample, capacity),
	}
}

// Capacity returns the fixed window size N.
func (w *Window) Capacity() int {
	return len(w.buf)
}

// Len returns the number of samples currently held (0..N).
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Full reports whether the warm-up phase is over.
func (w *Window) Full() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count == len(w.buf)
}

// Push appends a sample, evicting the oldest one when the window is full.
func (w *Window) Push(s Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Snapshot returns a copy of the current contents in arrival order.
// The copy is safe to hand to a classifier while new samples keep arriving.
func (w *Window) Snapshot() []Sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Sample, w.count)
	start := w.head - w.count
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(start+i)%len(w.buf)]
	}
	return out
}
