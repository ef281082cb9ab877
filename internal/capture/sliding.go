package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/gostt-assistant/internal/audio"
	"github.com/chaz8081/gostt-assistant/internal/vad"
)

// Default sliding-window tuning.
const (
	DefaultWindow    = 3 * time.Second
	DefaultTrailing  = 700 * time.Millisecond
	DefaultMinSpeech = time.Second
)

// SlidingVAD keeps the session open and cuts a recording each time the
// detector finds the end of an utterance at the tail of the buffer.
type SlidingVAD struct {
	PollInterval time.Duration
	// Window is how much recent audio the detector looks at.
	Window time.Duration
	// Trailing is the silence span that ends an utterance.
	Trailing time.Duration
	// MinSpeech is the buffered audio required before the detector runs.
	MinSpeech time.Duration
	// MaxSegment cuts a segment even without a pause, so no segment runs
	// past the decoder's duration ceiling. Defaults to DefaultMaxDuration.
	MaxSegment time.Duration
	Detector   vad.Detector
	Logger     *slog.Logger
}

// Run implements Strategy.
func (s *SlidingVAD) Run(ctx context.Context, src Source, listening func() bool, emit func(*audio.Recording) error) error {
	log := orDefault(s.Logger).With("component", "capture", "strategy", "vad")

	sess, err := src.Open()
	if err != nil {
		return fmt.Errorf("capture: starting session: %w", err)
	}

	format := sess.Format()
	channels := max(format.Channels, 1)
	window := durationOr(s.Window, DefaultWindow)
	trailingMs := int(durationOr(s.Trailing, DefaultTrailing) / time.Millisecond)
	minSamples := samplesFor(durationOr(s.MinSpeech, DefaultMinSpeech), format)
	windowSamples := samplesFor(window, format)
	maxSamples := samplesFor(durationOr(s.MaxSegment, DefaultMaxDuration), format)

	det := s.Detector
	if det.Threshold == 0 {
		det = vad.Default()
	}

	check := func() error {
		if sess.Len() >= maxSamples {
			rec := sess.Drain()
			log.Debug("segment reached max length", "samples", len(rec.Samples), "duration", rec.Duration())
			return emit(rec)
		}
		if sess.Len() < minSamples {
			return nil
		}
		mono := mixDown(sess.Tail(windowSamples), channels)
		if !det.HasSpeechEnded(mono, format.SampleRate, trailingMs) {
			return nil
		}
		rec := sess.Drain()
		if len(rec.Samples) == 0 {
			return nil
		}
		log.Debug("speech ended", "samples", len(rec.Samples), "duration", rec.Duration())
		return emit(rec)
	}

	if err := pollLoop(ctx, s.PollInterval, func() bool { return !listening() }, check); err != nil {
		_, _ = sess.Stop()
		return err
	}
	return finish(sess, emit, log)
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// samplesFor converts a duration into an interleaved sample count.
func samplesFor(d time.Duration, f audio.Format) int {
	frames := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return frames * max(f.Channels, 1)
}

// mixDown averages interleaved frames into a mono buffer.
func mixDown(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	out := make([]float32, len(samples)/channels)
	for i := range out {
		var sum float32
		for c := range channels {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
