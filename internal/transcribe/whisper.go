package transcribe

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperBackend creates whisper.cpp decode contexts on a shared Model.
type WhisperBackend struct {
	Model *Model
	Log   *slog.Logger
}

// NewState creates a whisper context.
func (b *WhisperBackend) NewState() (DecodeState, error) {
	ctx, err := b.Model.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("transcribe: create context: %w", err)
	}
	log := b.Log
	if log == nil {
		log = slog.Default()
	}
	return &whisperState{inferenceMu: &b.Model.inferenceMu, ctx: ctx, log: log}, nil
}

// Close releases the model.
func (b *WhisperBackend) Close() error {
	return b.Model.Close()
}

// whisperContext is the part of whisper.Context a decode uses. Process
// stores its segments in the model, not the context, so NextSegment reads
// whatever the model decoded last.
type whisperContext interface {
	SetLanguage(string) error
	SetTranslate(bool)
	SetThreads(uint)
	SetTokenTimestamps(bool)
	SetDuration(time.Duration)
	Process([]float32, whisper.EncoderBeginCallback, whisper.SegmentCallback, whisper.ProgressCallback) error
	NextSegment() (whisper.Segment, error)
}

type whisperState struct {
	inferenceMu *sync.Mutex
	ctx         whisperContext
	log         *slog.Logger
}

func (s *whisperState) apply(p DecodeParameters) error {
	if err := s.ctx.SetLanguage(p.Language); err != nil {
		return fmt.Errorf("transcribe: set language %q: %w", p.Language, err)
	}
	s.ctx.SetTranslate(p.Translate)
	if p.Threads > 0 {
		s.ctx.SetThreads(p.Threads)
	}
	s.ctx.SetTokenTimestamps(p.TokenTimestamps)
	if p.Duration > 0 {
		s.ctx.SetDuration(p.Duration)
	}
	return nil
}

func (s *whisperState) Decode(params DecodeParameters, samples []float32) ([][]string, error) {
	if err := s.apply(params); err != nil {
		return nil, err
	}

	var progress whisper.ProgressCallback
	if params.PrintProgress {
		progress = func(pct int) {
			s.log.Debug("decode progress", "percent", pct)
		}
	}

	// The segments live in the shared model until the next Process, so the
	// lock covers reading them too.
	s.inferenceMu.Lock()
	defer s.inferenceMu.Unlock()

	if err := s.ctx.Process(samples, nil, nil, progress); err != nil {
		return nil, fmt.Errorf("transcribe: process: %w", err)
	}

	var segments [][]string
	for {
		seg, err := s.ctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transcribe: next segment: %w", err)
		}
		tokens := make([]string, len(seg.Tokens))
		for i, tok := range seg.Tokens {
			tokens[i] = tok.Text
		}
		segments = append(segments, tokens)
	}
	return segments, nil
}
