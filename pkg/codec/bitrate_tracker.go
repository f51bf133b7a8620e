package codec

import (
	"sync"
	"time"
)

// BitrateTracker measures the bit rate of an encoded stream over a sliding
// window ending at the newest sample. It is safe for concurrent use.
type BitrateTracker struct {
	window time.Duration

	mu      sync.Mutex
	samples []sample
	total   int
}

type sample struct {
	size int
	at   time.Time
}

func NewBitrateTracker(window time.Duration) *BitrateTracker {
	return &BitrateTracker{window: window}
}

// AddFrame records an encoded frame of size bytes produced at t. Samples
// must be added in time order.
func (bt *BitrateTracker) AddFrame(size int, t time.Time) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	bt.total += size
	bt.samples = append(bt.samples, sample{size, t})

	cutoff := t.Add(-bt.window)
	drop := 0
	for drop < len(bt.samples) && !bt.samples[drop].at.After(cutoff) {
		drop++
	}
	bt.samples = append(bt.samples[:0], bt.samples[drop:]...)
}

// Bitrate returns bits per second within the window, or 0 until the window
// holds two samples.
func (bt *BitrateTracker) Bitrate() float64 {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if len(bt.samples) < 2 {
		return 0
	}
	span := bt.samples[len(bt.samples)-1].at.Sub(bt.samples[0].at).Seconds()
	if span <= 0 {
		return 0
	}
	var bytes int
	for _, s := range bt.samples {
		bytes += s.size
	}
	return float64(bytes*8) / span
}

// Total returns every byte ever added.
func (bt *BitrateTracker) Total() int {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.total
}
