package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/gostt-assistant/internal/audio"
)

// FixedDuration records a single recording that ends when listening stops
// or MaxDuration elapses.
type FixedDuration struct {
	PollInterval time.Duration
	MaxDuration  time.Duration
	Logger       *slog.Logger
}

// Run implements Strategy.
func (f *FixedDuration) Run(ctx context.Context, src Source, listening func() bool, emit func(*audio.Recording) error) error {
	log := orDefault(f.Logger).With("component", "capture", "strategy", "fixed")

	sess, err := src.Open()
	if err != nil {
		return fmt.Errorf("capture: starting session: %w", err)
	}

	maxDur := f.MaxDuration
	if maxDur <= 0 {
		maxDur = DefaultMaxDuration
	}
	deadline := time.Now().Add(maxDur)

	stop := func() bool {
		if !listening() {
			return true
		}
		if time.Now().After(deadline) {
			log.Info("maximum capture duration reached", "max", maxDur)
			return true
		}
		return false
	}

	if err := pollLoop(ctx, f.PollInterval, stop, nil); err != nil {
		_, _ = sess.Stop()
		return err
	}
	return finish(sess, emit, log)
}
