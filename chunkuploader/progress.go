package chunkuploader

import (
	"fmt"
	"sync"
)

// ProgressTracker holds the number of bytes sent for every chunk of one file.
// Every chunk writes its own slot only; the aggregate is computed under the lock
// so it always reflects a consistent snapshot of the whole table.
type ProgressTracker struct {
	totalBytes int64
	sizes      []int64
	sent       []int64
	sum        int64
	mu         sync.Mutex
}

// NewProgressTracker creates a zeroed tracker with one slot per chunk.
func NewProgressTracker(totalBytes int64, chunks []Chunk) *ProgressTracker {
	sizes := make([]int64, len(chunks))
	for i, c := range chunks {
		sizes[i] = c.Size()
	}
	return &ProgressTracker{
		totalBytes: totalBytes,
		sizes:      sizes,
		sent:       make([]int64, len(chunks)),
	}
}

// Len returns the number of slots.
func (t *ProgressTracker) Len() int {
	return len(t.sent)
}

// Record stores the cumulative byte count sent for the chunk at index and
// returns the overall percentage. Counts lower than the stored one are ignored
// and counts above the chunk size are clamped to it.
func (t *ProgressTracker) Record(index int, bytes int64) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.sent) {
		return 0, fmt.Errorf("chunk index %d out of range [0, %d)", index, len(t.sent))
	}

	if bytes > t.sizes[index] {
		bytes = t.sizes[index]
	}
	if bytes > t.sent[index] {
		t.sum += bytes - t.sent[index]
		t.sent[index] = bytes
	}

	return t.percentage(), nil
}

// Sent returns the bytes recorded for the chunk at index.
func (t *ProgressTracker) Sent(index int) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.sent) {
		return 0
	}
	return t.sent[index]
}

// SentBytes returns the sum of all slots.
func (t *ProgressTracker) SentBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sum
}

// Percentage returns floor(100 * sum / totalBytes). An empty file is reported as done.
func (t *ProgressTracker) Percentage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentage()
}

func (t *ProgressTracker) percentage() int {
	if t.totalBytes <= 0 {
		return 100
	}
	return int(100 * t.sum / t.totalBytes)
}
