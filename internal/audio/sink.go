package audio

import (
	"errors"
	"sync"
)

// ErrBufferUnavailable is returned when the accumulated samples were already
// taken by another owner.
var ErrBufferUnavailable = errors.New("audio: sample buffer unavailable")

// SampleSink accumulates samples pushed from the device callback. Every
// method holds the lock for a single push, copy or drain.
type SampleSink struct {
	mu    sync.Mutex
	buf   []float32
	taken bool
}

// Push appends samples in arrival order. Pushes after Take are dropped.
func (s *SampleSink) Push(samples []float32) {
	s.mu.Lock()
	if !s.taken {
		s.buf = append(s.buf, samples...)
	}
	s.mu.Unlock()
}

// Len returns the number of buffered samples.
func (s *SampleSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Tail returns a copy of the most recent n samples (fewer if not available).
func (s *SampleSink) Tail(n int) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.buf) {
		n = len(s.buf)
	}
	out := make([]float32, n)
	copy(out, s.buf[len(s.buf)-n:])
	return out
}

// Drain removes and returns everything buffered so far while leaving the
// sink open for further pushes.
func (s *SampleSink) Drain() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf
	s.buf = nil
	return out
}

// Take transfers ownership of the buffered samples to the caller and closes
// the sink. It succeeds exactly once.
func (s *SampleSink) Take() ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken {
		return nil, ErrBufferUnavailable
	}
	s.taken = true
	out := s.buf
	s.buf = nil
	return out, nil
}
