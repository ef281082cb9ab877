// Package inject presents text in the active application, either by
// simulating keystrokes or through the clipboard.
package inject

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/go-vgo/robotgo"
)

// keyboard is the slice of robotgo the injector uses.
type keyboard interface {
	Type(text string)
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
	Paste() error
}

type robotKeyboard struct{}

func (robotKeyboard) Type(text string) { robotgo.Type(text) }

func (robotKeyboard) ReadClipboard() (string, error) { return robotgo.ReadAll() }

func (robotKeyboard) WriteClipboard(text string) error { return robotgo.WriteAll(text) }

func (robotKeyboard) Paste() error {
	mod := "ctrl"
	if runtime.GOOS == "darwin" {
		mod = "cmd"
	}
	return robotgo.KeyTap("v", mod)
}

// Injector handles typing or pasting text into the active application.
// In type mode deltas appear as they arrive; in paste mode the full text is
// pasted once the response is complete.
type Injector struct {
	method string // "type" or "paste"
	kb     keyboard
	log    *slog.Logger

	mu  sync.Mutex
	buf strings.Builder
}

// NewInjector creates an Injector with the given method.
// method must be "type" (keystroke simulation) or "paste" (clipboard).
func NewInjector(method string, logger *slog.Logger) *Injector {
	return newInjector(method, robotKeyboard{}, logger)
}

func newInjector(method string, kb keyboard, logger *slog.Logger) *Injector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{method: method, kb: kb, log: logger.With("component", "inject")}
}

// Begin starts a new response.
func (inj *Injector) Begin() {
	inj.mu.Lock()
	inj.buf.Reset()
	inj.mu.Unlock()
}

// Delta presents one increment of text.
func (inj *Injector) Delta(text string) {
	if text == "" {
		return
	}
	inj.mu.Lock()
	defer inj.mu.Unlock()

	inj.buf.WriteString(text)
	if inj.method != "paste" {
		inj.kb.Type(text)
	}
}

// End finishes the response. In paste mode this is where the text appears.
func (inj *Injector) End() error {
	inj.mu.Lock()
	text := inj.buf.String()
	inj.buf.Reset()
	inj.mu.Unlock()

	if inj.method != "paste" || text == "" {
		return nil
	}
	return inj.paste(text)
}

// Inject sends text to the active application in one go.
func (inj *Injector) Inject(text string) error {
	if text == "" {
		return nil
	}
	if inj.method == "paste" {
		return inj.paste(text)
	}
	inj.kb.Type(text)
	return nil
}

// paste copies text to the clipboard and pastes it. Faster for long text;
// the previous clipboard is restored afterwards, best effort.
func (inj *Injector) paste(text string) error {
	prev, err := inj.kb.ReadClipboard()
	if err != nil {
		inj.log.Debug("reading clipboard", "error", err)
	}

	if err := inj.kb.WriteClipboard(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	if err := inj.kb.Paste(); err != nil {
		return fmt.Errorf("inject: paste keystroke: %w", err)
	}

	_ = inj.kb.WriteClipboard(prev)
	return nil
}
