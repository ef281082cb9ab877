package hotkey

import (
	"testing"

	"github.com/chaz8081/gostt-assistant/internal/mode"
)

type nopEffects struct{}

func (nopEffects) EnterInactive(mode.Transition)   {}
func (nopEffects) EnterListening(mode.Transition)  {}
func (nopEffects) EnterProcessing(mode.Transition) {}

func newMachine() *mode.Machine {
	return mode.New(nopEffects{}, mode.CycleInactive, nil)
}

func TestDispatcherToggle(t *testing.T) {
	m := newMachine()
	d, err := NewDispatcher(m, "toggle", nil)
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		ev   EventType
		want mode.Mode
	}{
		{EventPress, mode.Listening},
		{EventPress, mode.Listening}, // auto-repeat
		{EventRelease, mode.Listening},
		{EventPress, mode.Processing},
		{EventRelease, mode.Processing},
		{EventPress, mode.Inactive},
	}
	for i, s := range steps {
		d.Handle(Event{Type: s.ev})
		if got := m.Current(); got != s.want {
			t.Fatalf("step %d (%v): mode = %v, want %v", i, s.ev, got, s.want)
		}
	}
}

func TestDispatcherHold(t *testing.T) {
	m := newMachine()
	d, err := NewDispatcher(m, "hold", nil)
	if err != nil {
		t.Fatal(err)
	}

	d.Handle(Event{Type: EventPress})
	if m.Current() != mode.Listening {
		t.Fatalf("after press: %v, want listening", m.Current())
	}
	d.Handle(Event{Type: EventRelease})
	if m.Current() != mode.Processing {
		t.Fatalf("after release: %v, want processing", m.Current())
	}

	// Pressing while processing must not skip ahead.
	d.Handle(Event{Type: EventPress})
	d.Handle(Event{Type: EventRelease})
	if m.Current() != mode.Processing {
		t.Errorf("press during processing moved the mode to %v", m.Current())
	}
}

func TestDispatcherRun(t *testing.T) {
	m := newMachine()
	d, _ := NewDispatcher(m, "toggle", nil)

	ch := make(chan Event, 4)
	ch <- Event{Type: EventPress}
	ch <- Event{Type: EventRelease}
	ch <- Event{Type: EventPress}
	close(ch)
	d.Run(ch)

	if m.Current() != mode.Processing {
		t.Errorf("mode = %v, want processing", m.Current())
	}
}

func TestNewDispatcherRejectsUnknownStyle(t *testing.T) {
	if _, err := NewDispatcher(newMachine(), "tap", nil); err == nil {
		t.Error("NewDispatcher accepted an unknown style")
	}
}
