// Package audio captures microphone input from the default device into a
// float32 sample sink and turns finished captures into recordings.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
)

var (
	// ErrDeviceUnavailable means no input device could be opened or started.
	ErrDeviceUnavailable = errors.New("audio: input device unavailable")
	// ErrSessionActive means a capture session is already running.
	ErrSessionActive = errors.New("audio: capture session already active")
)

// dataProc matches the malgo device data callback.
type dataProc func(pOutputSamples, pInputSamples []byte, frameCount uint32)

// inputStream is the subset of *malgo.Device the engine drives.
type inputStream interface {
	Start() error
	Stop() error
	Uninit()
}

// streamOpener initializes (but does not start) a capture stream on the
// default input device and reports the configuration it negotiated.
type streamOpener func(onData dataProc) (inputStream, Format, error)

// Engine opens capture sessions on the default input device. At most one
// session is active at a time.
type Engine struct {
	ctx  *malgo.AllocatedContext
	open streamOpener
	log  *slog.Logger

	mu     sync.Mutex
	active *Session
}

// NewEngine initializes the audio context. Call Close() when done.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w: %w", ErrDeviceUnavailable, err)
	}

	e := newEngine(nil, logger)
	e.ctx = ctx
	e.open = e.openDefaultDevice
	return e, nil
}

func newEngine(open streamOpener, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{open: open, log: logger.With("component", "audio")}
}

// openDefaultDevice leaves format, channels and sample rate at zero so
// miniaudio uses the device's native configuration, then reads it back.
func (e *Engine) openDefaultDevice(onData dataProc) (inputStream, Format, error) {
	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)

	device, err := malgo.InitDevice(e.ctx.Context, deviceCfg, malgo.DeviceCallbacks{
		Data: malgo.DataProc(onData),
	})
	if err != nil {
		return nil, Format{}, err
	}

	format := Format{
		SampleRate:   int(device.SampleRate()),
		Channels:     int(device.CaptureChannels()),
		SampleFormat: fromMalgo(device.CaptureFormat()),
	}
	return device, format, nil
}

// StartCapture opens the default input device and begins streaming samples
// into a new session's sink.
func (e *Engine) StartCapture() (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		return nil, ErrSessionActive
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	s := &Session{
		ID:   id,
		sink: &SampleSink{},
	}

	// The callback reads s.format, which is set before the stream starts.
	stream, format, err := e.open(s.onData)
	if err != nil {
		return nil, fmt.Errorf("initializing capture device: %w: %w", ErrDeviceUnavailable, err)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 || format.SampleFormat == FormatUnknown {
		stream.Uninit()
		return nil, fmt.Errorf("negotiating capture format %s: %w", format, ErrDeviceUnavailable)
	}
	s.format = format
	s.stream = stream

	if err := stream.Start(); err != nil {
		stream.Uninit()
		return nil, fmt.Errorf("starting capture device: %w: %w", ErrDeviceUnavailable, err)
	}

	s.release = func() {
		e.mu.Lock()
		if e.active == s {
			e.active = nil
		}
		e.mu.Unlock()
	}
	e.active = s

	e.log.Debug("capture started", "session", s.ID, "format", format.String())
	return s, nil
}

// MicrophoneAllowed probes the default input device by opening and closing
// a stream. It reports false when the platform refuses access.
func (e *Engine) MicrophoneAllowed() (bool, error) {
	stream, _, err := e.open(func(_, _ []byte, _ uint32) {})
	if err != nil {
		return false, fmt.Errorf("probing capture device: %w: %w", ErrDeviceUnavailable, err)
	}
	stream.Uninit()
	return true, nil
}

// Close stops any active session and releases the audio context.
func (e *Engine) Close() error {
	e.mu.Lock()
	active := e.active
	e.mu.Unlock()

	if active != nil {
		active.stopStream()
	}

	if e.ctx != nil {
		if err := e.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		e.ctx.Free()
		e.ctx = nil
	}
	return nil
}

// PermissionChecker reports whether the process may record from the
// microphone. Platform-specific prompts live behind this interface.
type PermissionChecker interface {
	MicrophoneAllowed() (bool, error)
}

var _ PermissionChecker = (*Engine)(nil)
