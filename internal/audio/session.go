package audio

import (
	"sync"

	"github.com/google/uuid"
)

// Session is a live capture: the device stream plus the sink it fills.
type Session struct {
	ID uuid.UUID

	format  Format
	sink    *SampleSink
	stream  inputStream
	release func()

	stopOnce sync.Once
}

// Format returns the stream configuration negotiated at start.
func (s *Session) Format() Format {
	return s.format
}

// Len returns the number of samples buffered so far.
func (s *Session) Len() int {
	return s.sink.Len()
}

// Tail copies the most recent n samples without consuming them.
func (s *Session) Tail(n int) []float32 {
	return s.sink.Tail(n)
}

// Drain cuts everything captured so far into a recording while the stream
// keeps running.
func (s *Session) Drain() *Recording {
	return s.newRecording(s.sink.Drain())
}

// Stop halts the device stream and takes ownership of the remaining
// samples. It returns ErrBufferUnavailable if the samples were already taken.
func (s *Session) Stop() (*Recording, error) {
	s.stopStream()

	samples, err := s.sink.Take()
	if err != nil {
		return nil, err
	}
	return s.newRecording(samples), nil
}

// stopStream stops and releases the device exactly once.
func (s *Session) stopStream() {
	s.stopOnce.Do(func() {
		if s.stream != nil {
			_ = s.stream.Stop()
			s.stream.Uninit()
		}
		if s.release != nil {
			s.release()
		}
	})
}

func (s *Session) newRecording(samples []float32) *Recording {
	return &Recording{
		SessionID: s.ID,
		Samples:   samples,
		Format:    s.format,
	}
}

// onData is the device callback. It converts the frame bytes outside the
// sink lock and appends them in one push.
func (s *Session) onData(_, pInput []byte, frameCount uint32) {
	sampleCount := int(frameCount) * s.format.Channels
	samples := decodeSamples(pInput, s.format.SampleFormat, sampleCount)
	if len(samples) == 0 {
		return
	}
	s.sink.Push(samples)
}
