// Package capture runs a capture session for as long as the caller stays in
// listening mode and cuts it into recordings.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/gostt-assistant/internal/audio"
)

// Default timings.
const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultMaxDuration  = 30 * time.Second
)

// Session is the part of a live capture a strategy needs.
type Session interface {
	Format() audio.Format
	Len() int
	Tail(n int) []float32
	Drain() *audio.Recording
	Stop() (*audio.Recording, error)
}

// Source starts capture sessions.
type Source interface {
	Open() (Session, error)
}

// EngineSource adapts an audio.Engine to Source.
type EngineSource struct {
	Engine *audio.Engine
}

// Open starts a capture session on the default input device.
func (s EngineSource) Open() (Session, error) {
	return s.Engine.StartCapture()
}

// Strategy decides when a running session yields a recording. Run blocks
// until listening reports false, the context is done, or emit fails. Every
// recording is passed to emit in capture order.
type Strategy interface {
	Run(ctx context.Context, src Source, listening func() bool, emit func(*audio.Recording) error) error
}

// New returns the strategy for name ("fixed" or "vad").
func New(name string, fixed FixedDuration, sliding SlidingVAD) (Strategy, error) {
	switch name {
	case "fixed":
		return &fixed, nil
	case "vad":
		return &sliding, nil
	default:
		return nil, fmt.Errorf("capture: unknown strategy %q", name)
	}
}

// pollLoop ticks every interval until stop reports true or ctx is done.
// onTick runs on every tick that did not stop the loop.
func pollLoop(ctx context.Context, interval time.Duration, stop func() bool, onTick func() error) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if stop() {
				return nil
			}
			if onTick != nil {
				if err := onTick(); err != nil {
					return err
				}
			}
		}
	}
}

// finish stops the session and emits whatever is left, if anything.
func finish(sess Session, emit func(*audio.Recording) error, log *slog.Logger) error {
	rec, err := sess.Stop()
	if err != nil {
		return fmt.Errorf("capture: stopping session: %w", err)
	}
	if len(rec.Samples) == 0 {
		log.Debug("capture ended with no samples")
		return nil
	}
	log.Debug("capture segment", "samples", len(rec.Samples), "duration", rec.Duration())
	return emit(rec)
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
