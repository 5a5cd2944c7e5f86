package chunkuploader

import (
	"sync"
	"time"
)

// Stats tracks chunk settlement for reporting.
type Stats struct {
	sum       time.Duration
	succeeded int64
	failed    int64
	bytes     int64
	mu        sync.Mutex
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Record stores the settlement of one chunk.
func (s *Stats) Record(r ChunkResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Status != StatusSucceeded {
		s.failed++
		return
	}
	s.sum += r.Duration
	s.succeeded++
	s.bytes += r.Sent
}

// Average returns the average send duration of succeeded chunks.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.succeeded == 0 {
		return 0
	}
	return s.sum / time.Duration(s.succeeded)
}

// SucceededCount returns the number of succeeded chunks.
func (s *Stats) SucceededCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded
}

// FailedCount returns the number of failed chunks.
func (s *Stats) FailedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Bytes returns the number of bytes of succeeded chunks.
func (s *Stats) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}
