package transcribe

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// DecodeState is one decoder context. It runs a full pass over samples and
// returns the token texts of each segment, in order.
type DecodeState interface {
	Decode(params DecodeParameters, samples []float32) ([][]string, error)
}

// Backend creates decode states against a loaded model.
type Backend interface {
	NewState() (DecodeState, error)
}

// Engine runs transcription sessions with one fixed set of parameters.
type Engine struct {
	backend Backend
	params  DecodeParameters
	log     *slog.Logger
}

// NewEngine creates an engine. params is copied and never changes.
func NewEngine(backend Backend, params DecodeParameters, logger *slog.Logger) *Engine {
	if backend == nil {
		panic("transcribe: nil backend")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{backend: backend, params: params, log: logger.With("component", "transcribe")}
}

// Params returns the decode parameters used for every call.
func (e *Engine) Params() DecodeParameters {
	return e.params
}

// Session owns one decode state. Only one decode runs on it at a time.
type Session struct {
	mu     sync.Mutex
	state  DecodeState
	params DecodeParameters
	log    *slog.Logger
}

// NewSession creates a fresh decode state.
func (e *Engine) NewSession() (*Session, error) {
	state, err := e.backend.NewState()
	if err != nil {
		return nil, fmt.Errorf("%w: create decode state: %w", ErrDecode, err)
	}
	return &Session{state: state, params: e.params, log: e.log}, nil
}

// Transcribe decodes samples into text. The last sample of an odd-length
// buffer is dropped. Every token except the first and last of each segment
// contributes to the result.
func (s *Session) Transcribe(samples []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(samples)%2 != 0 {
		samples = samples[:len(samples)-1]
	}
	if len(samples) == 0 {
		return "", nil
	}

	segments, err := s.state.Decode(s.params, samples)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var b strings.Builder
	for _, tokens := range segments {
		if len(tokens) <= 2 {
			continue
		}
		for _, tok := range tokens[1 : len(tokens)-1] {
			b.WriteString(tok)
		}
	}

	text := strings.TrimSpace(b.String())
	s.log.Debug("transcribed", "samples", len(samples), "segments", len(segments), "chars", len(text))
	return text, nil
}

// Process runs a one-off session over samples.
func (e *Engine) Process(samples []float32) (string, error) {
	sess, err := e.NewSession()
	if err != nil {
		return "", err
	}
	return sess.Transcribe(samples)
}

// Close releases the backend if it holds resources.
func (e *Engine) Close() error {
	if c, ok := e.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ Transcriber = (*Engine)(nil)
