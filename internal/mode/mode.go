// Package mode owns the transcription mode: Inactive, Listening or
// Processing. Every transition comes from an explicit trigger and runs the
// target state's entry effects before the trigger returns.
package mode

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Mode is the current transcription mode.
type Mode int

const (
	Inactive Mode = iota
	Listening
	Processing
)

func (m Mode) String() string {
	switch m {
	case Inactive:
		return "inactive"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Source identifies what issued a trigger.
type Source string

const (
	SourceHotkey Source = "hotkey"
	SourceTray   Source = "tray"
	SourceWorker Source = "worker"
)

// Cycle selects where Processing goes on the next trigger.
type Cycle int

const (
	// CycleInactive: Inactive -> Listening -> Processing -> Inactive.
	CycleInactive Cycle = iota
	// CycleListening: Processing returns straight to Listening.
	CycleListening
)

// ParseCycle maps a config string to a Cycle.
func ParseCycle(s string) (Cycle, error) {
	switch s {
	case "inactive", "":
		return CycleInactive, nil
	case "listening":
		return CycleListening, nil
	default:
		return CycleInactive, fmt.Errorf("mode: unknown cycle %q (supported: inactive, listening)", s)
	}
}

// Transition records one mode change. Epoch increases every time Listening
// is entered, so a worker can tell its own episode from a later one.
type Transition struct {
	From   Mode
	To     Mode
	Source Source
	Epoch  uint64
	At     time.Time
}

// Effects are the entry actions for each mode. They run on the triggering
// goroutine with the state lock released, so they may read the machine, but
// they must not call Trigger synchronously.
type Effects interface {
	EnterInactive(t Transition)
	EnterListening(t Transition)
	EnterProcessing(t Transition)
}

const historySize = 64

// Machine is the single authoritative copy of the mode.
type Machine struct {
	// transMu orders transitions together with their entry effects.
	transMu sync.Mutex

	mu      sync.Mutex
	current Mode
	epoch   uint64
	history []Transition

	cycle   Cycle
	effects Effects
	log     *slog.Logger
}

// New creates a machine in Inactive.
func New(effects Effects, cycle Cycle, logger *slog.Logger) *Machine {
	if effects == nil {
		panic("mode: New called with nil effects")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cycle:   cycle,
		effects: effects,
		log:     logger.With("component", "mode"),
	}
}

// Current returns the mode at the time of the call. Callers must re-read
// rather than hold on to the value across a side effect.
func (m *Machine) Current() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Epoch returns the current listening epoch.
func (m *Machine) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Cycle returns the configured cycle.
func (m *Machine) Cycle() Cycle {
	return m.cycle
}

// IsListening reports whether the mode is Listening.
func (m *Machine) IsListening() bool {
	return m.Current() == Listening
}

// In reports whether the machine is in mode within the given epoch.
func (m *Machine) In(mode Mode, epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == mode && m.epoch == epoch
}

// Trigger advances to the next mode in the cycle and returns it.
func (m *Machine) Trigger(src Source) Mode {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	t := m.advance(src)
	m.mu.Unlock()

	m.enter(t)
	return t.To
}

// TriggerFrom advances only if the machine is currently in expected. It is
// used by hold-to-talk press/release events.
func (m *Machine) TriggerFrom(expected Mode, src Source) (Mode, bool) {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	if m.current != expected {
		cur := m.current
		m.mu.Unlock()
		return cur, false
	}
	t := m.advance(src)
	m.mu.Unlock()

	m.enter(t)
	return t.To, true
}

// Finish is how a worker leaves a mode once its work is done: it advances
// only if the machine is still in mode within the worker's epoch.
func (m *Machine) Finish(mode Mode, epoch uint64) (Mode, bool) {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	if m.current != mode || m.epoch != epoch {
		cur := m.current
		m.mu.Unlock()
		return cur, false
	}
	t := m.advance(SourceWorker)
	m.mu.Unlock()

	m.enter(t)
	return t.To, true
}

// Transitions returns a copy of the recent transition history, oldest first.
func (m *Machine) Transitions() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// advance computes and records the next transition. Caller holds m.mu.
func (m *Machine) advance(src Source) Transition {
	from := m.current
	to := m.next(from)
	if to == Listening {
		m.epoch++
	}
	m.current = to

	t := Transition{From: from, To: to, Source: src, Epoch: m.epoch, At: time.Now()}
	if len(m.history) == historySize {
		copy(m.history, m.history[1:])
		m.history = m.history[:historySize-1]
	}
	m.history = append(m.history, t)
	return t
}

func (m *Machine) next(from Mode) Mode {
	switch from {
	case Inactive:
		return Listening
	case Listening:
		return Processing
	default:
		if m.cycle == CycleListening {
			return Listening
		}
		return Inactive
	}
}

// enter runs the entry effects of t.To. Caller holds transMu but not mu.
func (m *Machine) enter(t Transition) {
	m.log.Info("mode changed", "from", t.From, "to", t.To, "source", t.Source, "epoch", t.Epoch)

	switch t.To {
	case Inactive:
		m.effects.EnterInactive(t)
	case Listening:
		m.effects.EnterListening(t)
	case Processing:
		m.effects.EnterProcessing(t)
	}
}
