package hotkey

import (
	"fmt"
	"log/slog"

	"github.com/chaz8081/gostt-assistant/internal/mode"
)

// Triggerer is the part of the mode machine the dispatcher drives.
type Triggerer interface {
	Trigger(src mode.Source) mode.Mode
	TriggerFrom(expected mode.Mode, src mode.Source) (mode.Mode, bool)
}

// Dispatcher maps key events onto mode triggers.
type Dispatcher struct {
	machine Triggerer
	hold    bool
	down    bool
	log     *slog.Logger
}

// NewDispatcher creates a dispatcher for style "hold" or "toggle".
func NewDispatcher(machine Triggerer, style string, logger *slog.Logger) (*Dispatcher, error) {
	if style != "hold" && style != "toggle" {
		return nil, fmt.Errorf("hotkey: unknown mode %q (must be hold or toggle)", style)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{machine: machine, hold: style == "hold", log: logger.With("component", "hotkey")}, nil
}

// Handle applies one event. Key auto-repeat presses are ignored until the
// matching release.
func (d *Dispatcher) Handle(ev Event) {
	switch ev.Type {
	case EventPress:
		if d.down {
			return
		}
		d.down = true
		if d.hold {
			d.from(mode.Inactive)
			return
		}
		d.machine.Trigger(mode.SourceHotkey)
	case EventRelease:
		if !d.down {
			return
		}
		d.down = false
		if d.hold {
			d.from(mode.Listening)
		}
	}
}

func (d *Dispatcher) from(expected mode.Mode) {
	if cur, ok := d.machine.TriggerFrom(expected, mode.SourceHotkey); !ok {
		d.log.Debug("hotkey ignored", "expected", expected, "current", cur)
	}
}

// Run handles events until the channel closes.
func (d *Dispatcher) Run(events <-chan Event) {
	for ev := range events {
		d.Handle(ev)
	}
}
