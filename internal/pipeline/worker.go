package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaz8081/gostt-assistant/internal/audio"
	"github.com/chaz8081/gostt-assistant/internal/mode"
	"github.com/chaz8081/gostt-assistant/internal/resample"
	"github.com/chaz8081/gostt-assistant/internal/stream"
	"github.com/chaz8081/gostt-assistant/internal/transcribe"
)

// run is one Listening episode: capture until the mode moves on, decode
// every segment, present the response, then leave Processing.
func (c *Controller) run(epoch uint64) {
	log := c.log.With("epoch", epoch)
	log.Debug("worker started")

	sess, err := c.cfg.Engine.NewSession()
	if err != nil {
		log.Error("creating decode session", "error", err)
	}

	segments := make(chan *audio.Recording, 4)
	transcript := make(chan string, 1)
	go func() {
		var parts []string
		n := 0
		for rec := range segments {
			n++
			if c.ctx.Err() != nil {
				continue
			}
			if text := c.decode(sess, rec, n); text != "" {
				parts = append(parts, text)
			}
		}
		transcript <- strings.Join(parts, " ")
	}()

	c.cfg.Metrics.CaptureStarted()
	listening := func() bool { return c.machine.In(mode.Listening, epoch) }
	captureErr := c.cfg.Strategy.Run(c.ctx, c.cfg.Source, listening, func(rec *audio.Recording) error {
		select {
		case segments <- rec:
			return nil
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	})
	close(segments)

	if c.ctx.Err() != nil {
		// A decode in flight still holds the model.
		<-transcript
		log.Debug("worker stopped by shutdown")
		return
	}

	if captureErr != nil {
		c.cfg.Metrics.CaptureFailed()
		log.Error("capture failed", "error", captureErr)
		if errors.Is(captureErr, audio.ErrDeviceUnavailable) {
			c.cfg.Notifier.Notify("Microphone unavailable", captureErr.Error())
		}
	}

	// Max duration or a capture failure ends Listening from here; after a
	// user trigger this is a no-op.
	c.machine.Finish(mode.Listening, epoch)

	text := <-transcript
	c.respond(text, log)

	if captureErr != nil && c.machine.Cycle() == mode.CycleListening {
		// Going round again would reopen the failed device straight away.
		log.Warn("capture failed; staying in processing until the next trigger")
		return
	}
	c.machine.Finish(mode.Processing, epoch)
	log.Debug("worker finished")
}

// decode converts one captured segment and transcribes it. Failures are
// logged and yield "".
func (c *Controller) decode(sess *transcribe.Session, rec *audio.Recording, n int) string {
	log := c.log.With("session", rec.SessionID, "segment", n)

	if c.cfg.DebugDir != "" {
		path := filepath.Join(c.cfg.DebugDir, fmt.Sprintf("%s-%03d.wav", rec.SessionID, n))
		if err := os.MkdirAll(c.cfg.DebugDir, 0o755); err != nil {
			log.Warn("creating debug dir", "error", err)
		} else if err := rec.WriteWAV(path); err != nil {
			log.Warn("writing debug wav", "path", path, "error", err)
		} else {
			log.Debug("wrote debug wav", "path", path)
		}
	}

	dur := rec.Duration()
	c.cfg.Metrics.Segment(dur)
	if dur < c.cfg.MinDuration {
		log.Info("recording too short, skipping", "duration", dur)
		return ""
	}
	if sess == nil {
		return ""
	}

	rec.DownmixToMono()
	if _, err := resample.Resample(rec, c.cfg.TargetRate); err != nil {
		log.Error("resampling", "from", rec.Format.SampleRate, "to", c.cfg.TargetRate, "error", err)
		return ""
	}

	start := time.Now()
	text, err := sess.Transcribe(rec.Samples)
	elapsed := time.Since(start)
	c.cfg.Metrics.Transcribed(elapsed, err)
	if err != nil {
		log.Error("transcription failed", "error", err)
		return ""
	}
	log.Info("transcribed", "duration", dur, "elapsed", elapsed.Round(time.Millisecond), "text", text)
	return text
}

// respond presents the transcript, or the completion streamed for it.
func (c *Controller) respond(transcript string, log *slog.Logger) {
	c.respondMu.Lock()
	defer c.respondMu.Unlock()

	c.cfg.Presenter.Begin()
	if transcript == "" {
		log.Info("no speech detected")
		c.end("", log)
		return
	}

	if c.cfg.Prompt == nil || c.cfg.Streamer == nil {
		c.cfg.Presenter.Delta(transcript)
		c.end(transcript, log)
		return
	}

	msgs := c.cfg.Prompt.Build(c.ctx, transcript)
	body, err := c.cfg.Streamer.Stream(c.ctx, msgs)
	if err != nil {
		c.cfg.Metrics.CompletionFailed()
		log.Error("completion request failed", "error", err)
		c.end("", log)
		return
	}
	defer body.Close()

	var reply strings.Builder
	err = stream.Consume(c.ctx, body, stream.NewDemuxer(c.cfg.Field, c.cfg.Logger), func(delta string) {
		reply.WriteString(delta)
		c.cfg.Metrics.Delta()
		c.cfg.Presenter.Delta(delta)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.cfg.Metrics.CompletionFailed()
		log.Error("reading completion stream", "error", err)
	}

	if err == nil {
		c.cfg.Prompt.Reply(transcript, reply.String())
	}
	c.end(reply.String(), log)
}

// end closes the presentation and hands the text to the speaker.
func (c *Controller) end(text string, log *slog.Logger) {
	if err := c.cfg.Presenter.End(); err != nil {
		log.Error("presenting response", "error", err)
	}
	if text == "" || c.cfg.Speaker == nil {
		return
	}
	if err := c.cfg.Speaker.Speak(c.ctx, text); err != nil {
		log.Error("speaking response", "error", err)
	}
}
