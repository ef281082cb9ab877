// Package pipeline wires the mode machine to capture, transcription and
// response presentation. Every Listening episode gets one worker goroutine.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/gostt-assistant/internal/capture"
	"github.com/chaz8081/gostt-assistant/internal/completion"
	"github.com/chaz8081/gostt-assistant/internal/metrics"
	"github.com/chaz8081/gostt-assistant/internal/mode"
	"github.com/chaz8081/gostt-assistant/internal/notify"
	"github.com/chaz8081/gostt-assistant/internal/transcribe"
)

// Presenter is the surface that shows a response as it streams in.
type Presenter interface {
	Begin()
	Delta(text string)
	End() error
}

// Speaker reads a finished response aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Tray reflects the current mode to the user, e.g. as an icon.
type Tray interface {
	SetMode(m mode.Mode)
}

// LogTray is a Tray that only logs.
type LogTray struct {
	Log *slog.Logger
}

// SetMode logs the icon change.
func (t LogTray) SetMode(m mode.Mode) {
	log := t.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("tray icon", "mode", m)
}

// Streamer opens a streamed completion for a message list.
type Streamer interface {
	Stream(ctx context.Context, messages []completion.Message) (io.ReadCloser, error)
}

// Config holds the worker's collaborators. Strategy, Source, Engine and
// Presenter are required; the rest are optional.
type Config struct {
	Strategy  capture.Strategy
	Source    capture.Source
	Engine    *transcribe.Engine
	Presenter Presenter

	// TargetRate is the decoder's input rate.
	TargetRate int
	// MinDuration drops shorter recordings before decoding.
	MinDuration time.Duration
	// DebugDir receives a WAV of every captured segment when set.
	DebugDir string

	// Prompt and Streamer enable the completion step; with either nil the
	// transcript itself is presented.
	Prompt   *completion.Prompt
	Streamer Streamer
	// Field is the delta path inside each streamed chunk.
	Field string

	Speaker  Speaker
	Notifier notify.Notifier
	Tray     Tray
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Controller implements mode.Effects. It must be attached to its machine
// before the first trigger.
type Controller struct {
	cfg     Config
	ctx     context.Context
	machine *mode.Machine
	log     *slog.Logger

	// respondMu keeps presentations from overlapping when a new episode
	// finishes before an older one has been presented. Begin through End
	// of one response happen under it.
	respondMu sync.Mutex
	wg        sync.WaitGroup
}

// NewController creates a controller whose workers stop when ctx is done.
func NewController(ctx context.Context, cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tray == nil {
		cfg.Tray = LogTray{Log: cfg.Logger}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Log{Logger: cfg.Logger}
	}
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = transcribe.SampleRate
	}
	return &Controller{cfg: cfg, ctx: ctx, log: cfg.Logger.With("component", "pipeline")}
}

// Attach binds the machine whose transitions this controller serves.
func (c *Controller) Attach(m *mode.Machine) {
	c.machine = m
}

// EnterInactive implements mode.Effects.
func (c *Controller) EnterInactive(t mode.Transition) {
	c.observe(t)
}

// EnterListening implements mode.Effects. It starts the episode's worker
// and returns without waiting for it.
func (c *Controller) EnterListening(t mode.Transition) {
	c.observe(t)
	if c.machine == nil {
		panic("pipeline: controller not attached to a machine")
	}
	if c.ctx.Err() != nil {
		c.log.Debug("shutting down, not starting a worker")
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(t.Epoch)
	}()
}

// EnterProcessing implements mode.Effects. The presenter is opened by the
// worker once the previous response is done.
func (c *Controller) EnterProcessing(t mode.Transition) {
	c.observe(t)
}

func (c *Controller) observe(t mode.Transition) {
	c.cfg.Tray.SetMode(t.To)
	c.cfg.Metrics.Transition(t.To.String(), string(t.Source))
}

// Wait blocks until every worker, and every decode it started, has
// returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}
