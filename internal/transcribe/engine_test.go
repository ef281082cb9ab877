package transcribe

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubState records what it was asked to decode and returns canned segments.
type stubState struct {
	mu       sync.Mutex
	lengths  []int
	params   []DecodeParameters
	segments [][]string
	err      error
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (s *stubState) Decode(p DecodeParameters, samples []float32) ([][]string, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)
	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.lengths = append(s.lengths, len(samples))
	s.params = append(s.params, p)
	s.mu.Unlock()
	return s.segments, s.err
}

type stubBackend struct {
	state   *stubState
	err     error
	created int
	closed  bool
}

func (b *stubBackend) NewState() (DecodeState, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.created++
	return b.state, nil
}

func (b *stubBackend) Close() error {
	b.closed = true
	return nil
}

func TestTranscribeOddLength(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{16001, 16000},
		{16000, 16000},
		{3, 2},
	}
	for _, tt := range tests {
		state := &stubState{}
		e := NewEngine(&stubBackend{state: state}, DefaultParameters(), nil)
		sess, err := e.NewSession()
		if err != nil {
			t.Fatalf("NewSession: %v", err)
		}
		if _, err := sess.Transcribe(make([]float32, tt.in)); err != nil {
			t.Fatalf("Transcribe(%d): %v", tt.in, err)
		}
		if len(state.lengths) != 1 || state.lengths[0] != tt.want {
			t.Errorf("Transcribe(%d) decoded %v samples, want %d", tt.in, state.lengths, tt.want)
		}
	}
}

func TestTranscribeSingleSampleSkipsDecode(t *testing.T) {
	state := &stubState{}
	e := NewEngine(&stubBackend{state: state}, DefaultParameters(), nil)
	text, err := e.Process([]float32{0.5})
	if err != nil || text != "" {
		t.Fatalf("Process = %q, %v", text, err)
	}
	if len(state.lengths) != 0 {
		t.Errorf("decoder called with %v", state.lengths)
	}
}

func TestTranscribeDropsBoundaryTokens(t *testing.T) {
	state := &stubState{segments: [][]string{
		{"[_BEG_]", " And", " so", " my", "[_TT_150]"},
		{"[_BEG_]", " fellow", " Americans", "[_TT_300]"},
		{"[_BEG_]", "[_TT_400]"},
	}}
	e := NewEngine(&stubBackend{state: state}, DefaultParameters(), nil)

	text, err := e.Process(make([]float32, 32000))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if want := "And so my fellow Americans"; text != want {
		t.Errorf("Process = %q, want %q", text, want)
	}
}

func TestTranscribeDecodeError(t *testing.T) {
	state := &stubState{err: errors.New("ggml abort")}
	e := NewEngine(&stubBackend{state: state}, DefaultParameters(), nil)
	_, err := e.Process(make([]float32, 100))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Process error = %v, want ErrDecode", err)
	}
}

func TestNewSessionError(t *testing.T) {
	e := NewEngine(&stubBackend{err: errors.New("out of memory")}, DefaultParameters(), nil)
	if _, err := e.NewSession(); !errors.Is(err, ErrDecode) {
		t.Errorf("NewSession error = %v, want ErrDecode", err)
	}
}

func TestParamsIdenticalAcrossCalls(t *testing.T) {
	state := &stubState{}
	params := DefaultParameters()
	e := NewEngine(&stubBackend{state: state}, params, nil)

	for range 3 {
		if _, err := e.Process(make([]float32, 10)); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	for i, p := range state.params {
		if p != params {
			t.Errorf("call %d used %+v, want %+v", i, p, params)
		}
	}
}

func TestSessionSerializesDecodes(t *testing.T) {
	state := &stubState{}
	e := NewEngine(&stubBackend{state: state}, DefaultParameters(), nil)
	sess, err := e.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = sess.Transcribe(make([]float32, 64))
		}()
	}
	wg.Wait()

	if state.overlap.Load() {
		t.Error("two decodes ran on one session at the same time")
	}
	if len(state.lengths) != 8 {
		t.Errorf("got %d decodes, want 8", len(state.lengths))
	}
}

func TestEngineClose(t *testing.T) {
	b := &stubBackend{state: &stubState{}}
	if err := NewEngine(b, DefaultParameters(), nil).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !b.closed {
		t.Error("backend not closed")
	}
}

func TestDefaultParameters(t *testing.T) {
	p := DefaultParameters()
	if p.Language != "en" || p.Threads != 8 || !p.TokenTimestamps || p.PrintProgress || p.Translate {
		t.Errorf("DefaultParameters() = %+v", p)
	}
	if p.Duration != 30*time.Second {
		t.Errorf("Duration = %v, want 30s", p.Duration)
	}
}

func TestLoadModelErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "nope.bin")},
		{"directory", dir},
		{"empty", empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadModel(tt.path)
			if !errors.Is(err, ErrModelLoad) {
				t.Errorf("LoadModel(%q) error = %v, want ErrModelLoad", tt.path, err)
			}
		})
	}
}

func TestModelHandleEnsureOnce(t *testing.T) {
	h := &ModelHandle{Path: filepath.Join(t.TempDir(), "missing.bin")}
	_, err1 := h.Ensure()
	_, err2 := h.Ensure()
	if !errors.Is(err1, ErrModelLoad) {
		t.Fatalf("Ensure error = %v", err1)
	}
	if err1 != err2 {
		t.Errorf("second Ensure returned a different error: %v vs %v", err1, err2)
	}
}
