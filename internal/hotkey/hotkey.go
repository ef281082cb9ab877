// Package hotkey turns a global key combination into mode triggers.
//
// In "toggle" mode every press advances the mode cycle. In "hold" mode a
// press starts listening and the release ends it.
package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType is the physical key action.
type EventType int

const (
	// EventPress is emitted when the combination goes down.
	EventPress EventType = iota
	// EventRelease is emitted when the combination comes back up.
	EventRelease
)

func (t EventType) String() string {
	if t == EventPress {
		return "press"
	}
	return "release"
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener owns the global hook for one key combination.
type Listener struct {
	keys []string
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewListener creates a Listener for the given key combo.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "r"]).
func NewListener(keys []string) *Listener {
	return &Listener{
		keys: keys,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.keys, func(hook.Event) { l.emit(EventPress) })
	hook.Register(hook.KeyUp, l.keys, func(hook.Event) { l.emit(EventRelease) })

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// emit never blocks the hook goroutine; events beyond the buffer are lost.
func (l *Listener) emit(t EventType) {
	select {
	case l.ch <- Event{Type: t}:
	default:
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
