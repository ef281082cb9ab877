package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/chaz8081/gostt-assistant/internal/audio"
)

type fakeSession struct {
	mu      sync.Mutex
	format  audio.Format
	buf     []float32
	stopped int
}

func (s *fakeSession) push(samples []float32) {
	s.mu.Lock()
	s.buf = append(s.buf, samples...)
	s.mu.Unlock()
}

func (s *fakeSession) Format() audio.Format { return s.format }

func (s *fakeSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func (s *fakeSession) Tail(n int) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, len(s.buf))
	return append([]float32(nil), s.buf[len(s.buf)-n:]...)
}

func (s *fakeSession) Drain() *audio.Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf
	s.buf = nil
	return &audio.Recording{Samples: out, Format: s.format}
}

func (s *fakeSession) Stop() (*audio.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	if s.stopped > 1 {
		return nil, audio.ErrBufferUnavailable
	}
	out := s.buf
	s.buf = nil
	return &audio.Recording{Samples: out, Format: s.format}, nil
}

type fakeSource struct {
	sess *fakeSession
	err  error
}

func (f *fakeSource) Open() (Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

// script returns a listening func that pushes one chunk per poll and reports
// false once the chunks run out.
func script(sess *fakeSession, chunks ...[]float32) func() bool {
	i := 0
	return func() bool {
		if i >= len(chunks) {
			return false
		}
		sess.push(chunks[i])
		i++
		return true
	}
}

func tone(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(math.Pi*float64(i)/2))
	}
	return out
}

func silence(n int) []float32 {
	return make([]float32, n)
}

func collect(recs *[]*audio.Recording) func(*audio.Recording) error {
	return func(r *audio.Recording) error {
		*recs = append(*recs, r)
		return nil
	}
}

var monoKHz = audio.Format{SampleRate: 1000, Channels: 1, SampleFormat: audio.FormatF32}

func TestFixedDurationEmitsOneRecording(t *testing.T) {
	sess := &fakeSession{format: monoKHz}
	listening := script(sess, tone(100), tone(100), silence(50))

	var recs []*audio.Recording
	f := &FixedDuration{PollInterval: time.Millisecond, MaxDuration: time.Minute}
	if err := f.Run(context.Background(), &fakeSource{sess: sess}, listening, collect(&recs)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d recordings, want 1", len(recs))
	}
	if len(recs[0].Samples) != 250 {
		t.Errorf("recording has %d samples, want 250", len(recs[0].Samples))
	}
	if sess.stopped != 1 {
		t.Errorf("session stopped %d times, want 1", sess.stopped)
	}
}

func TestFixedDurationMaxDuration(t *testing.T) {
	sess := &fakeSession{format: monoKHz}
	sess.push(tone(10))

	var recs []*audio.Recording
	f := &FixedDuration{PollInterval: time.Millisecond, MaxDuration: 20 * time.Millisecond}

	done := make(chan error, 1)
	go func() {
		done <- f.Run(context.Background(), &fakeSource{sess: sess}, func() bool { return true }, collect(&recs))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop at the maximum duration")
	}
	if len(recs) != 1 {
		t.Errorf("got %d recordings, want 1", len(recs))
	}
}

func TestFixedDurationEmptyCapture(t *testing.T) {
	sess := &fakeSession{format: monoKHz}
	var recs []*audio.Recording
	f := &FixedDuration{PollInterval: time.Millisecond}
	if err := f.Run(context.Background(), &fakeSource{sess: sess}, func() bool { return false }, collect(&recs)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d recordings from an empty capture", len(recs))
	}
}

func TestRunContextCancelled(t *testing.T) {
	sess := &fakeSession{format: monoKHz}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &FixedDuration{PollInterval: time.Millisecond}
	if err := f.Run(ctx, &fakeSource{sess: sess}, func() bool { return true }, func(*audio.Recording) error { return nil }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sess.stopped != 1 {
		t.Errorf("session stopped %d times, want 1", sess.stopped)
	}
}

func TestOpenError(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("%w: no input device", audio.ErrDeviceUnavailable)}
	strategies := map[string]Strategy{
		"fixed": &FixedDuration{PollInterval: time.Millisecond},
		"vad":   &SlidingVAD{PollInterval: time.Millisecond},
	}
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			err := s.Run(context.Background(), src, func() bool { return true }, func(*audio.Recording) error { return nil })
			if !errors.Is(err, audio.ErrDeviceUnavailable) {
				t.Errorf("Run error = %v, want ErrDeviceUnavailable", err)
			}
		})
	}
}

func TestSlidingVADEmitsSegments(t *testing.T) {
	sess := &fakeSession{format: monoKHz}
	listening := script(sess, tone(1000), silence(800), tone(1000))

	var recs []*audio.Recording
	s := &SlidingVAD{
		PollInterval: time.Millisecond,
		Window:       3 * time.Second,
		Trailing:     700 * time.Millisecond,
		MinSpeech:    time.Second,
	}
	if err := s.Run(context.Background(), &fakeSource{sess: sess}, listening, collect(&recs)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("got %d recordings, want 2", len(recs))
	}
	if got := len(recs[0].Samples); got != 1800 {
		t.Errorf("first segment has %d samples, want 1800", got)
	}
	if got := len(recs[1].Samples); got != 1000 {
		t.Errorf("remainder has %d samples, want 1000", got)
	}
}

func TestSlidingVADWaitsForMinSpeech(t *testing.T) {
	sess := &fakeSession{format: monoKHz}
	// Speech then silence, but never enough buffered to run the detector.
	listening := script(sess, tone(300), silence(300))

	var recs []*audio.Recording
	s := &SlidingVAD{PollInterval: time.Millisecond, MinSpeech: time.Second, Trailing: 200 * time.Millisecond}
	if err := s.Run(context.Background(), &fakeSource{sess: sess}, listening, collect(&recs)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(recs) != 1 || len(recs[0].Samples) != 600 {
		t.Fatalf("want a single 600-sample remainder, got %d recordings", len(recs))
	}
}

func TestSlidingVADCapsSegmentLength(t *testing.T) {
	sess := &fakeSession{format: monoKHz}
	// Continuous speech with no pause for the detector to find.
	listening := script(sess, tone(1000), tone(1000), tone(1000), tone(1000))

	var recs []*audio.Recording
	s := &SlidingVAD{
		PollInterval: time.Millisecond,
		MinSpeech:    time.Second,
		MaxSegment:   2500 * time.Millisecond,
	}
	if err := s.Run(context.Background(), &fakeSource{sess: sess}, listening, collect(&recs)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("got %d recordings, want 2", len(recs))
	}
	if got := len(recs[0].Samples); got != 3000 {
		t.Errorf("first segment has %d samples, want 3000", got)
	}
	if got := len(recs[1].Samples); got != 1000 {
		t.Errorf("remainder has %d samples, want 1000", got)
	}
}

func TestSlidingVADEmitError(t *testing.T) {
	sess := &fakeSession{format: monoKHz}
	listening := script(sess, tone(1000), silence(800), tone(1000))
	boom := errors.New("downstream closed")

	s := &SlidingVAD{PollInterval: time.Millisecond}
	err := s.Run(context.Background(), &fakeSource{sess: sess}, listening, func(*audio.Recording) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	if sess.stopped != 1 {
		t.Errorf("session stopped %d times, want 1", sess.stopped)
	}
}

func TestNew(t *testing.T) {
	if _, err := New("fixed", FixedDuration{}, SlidingVAD{}); err != nil {
		t.Errorf("New(fixed): %v", err)
	}
	if _, err := New("vad", FixedDuration{}, SlidingVAD{}); err != nil {
		t.Errorf("New(vad): %v", err)
	}
	if _, err := New("auto", FixedDuration{}, SlidingVAD{}); err == nil {
		t.Error("New(auto) succeeded, want error")
	}
}

func TestMixDown(t *testing.T) {
	got := mixDown([]float32{1, 3, -1, 1}, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 0 {
		t.Errorf("mixDown = %v, want [2 0]", got)
	}
}
