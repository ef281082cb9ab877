// Command test-hotkey is a manual test for the global hotkey listener.
// Run it, then press Ctrl+Shift+R to see the mode transitions it drives.
// No audio is captured. Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--mode hold|toggle] [--cycle inactive|listening]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/gostt-assistant/internal/hotkey"
	"github.com/chaz8081/gostt-assistant/internal/mode"
)

// printEffects prints every entry action instead of performing it.
type printEffects struct{}

func (printEffects) EnterInactive(t mode.Transition) {
	fmt.Printf("--- INACTIVE   (from %s, %s)\n", t.From, t.Source)
}

func (printEffects) EnterListening(t mode.Transition) {
	fmt.Printf(">>> LISTENING  (from %s, %s, epoch %d)\n", t.From, t.Source, t.Epoch)
}

func (printEffects) EnterProcessing(t mode.Transition) {
	fmt.Printf("<<< PROCESSING (from %s, %s)\n", t.From, t.Source)
}

func main() {
	style := flag.String("mode", "toggle", "hotkey mode: hold or toggle")
	cycleName := flag.String("cycle", "inactive", "where processing goes next: inactive or listening")
	flag.Parse()

	cycle, err := mode.ParseCycle(*cycleName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	machine := mode.New(printEffects{}, cycle, nil)

	keys := []string{"ctrl", "shift", "r"}
	fmt.Printf("Listening for Ctrl+Shift+R in %q mode...\n", *style)
	fmt.Println("Press Ctrl+C to exit.")

	listener := hotkey.NewListener(keys)
	dispatcher, err := hotkey.NewDispatcher(machine, *style, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	go func() {
		dispatcher.Run(listener.Events())
		fmt.Println("Event channel closed.")
		for _, t := range machine.Transitions() {
			fmt.Printf("  %s  %s -> %s (%s)\n", t.At.Format("15:04:05.000"), t.From, t.To, t.Source)
		}
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
