// Package dispatch delivers final text into the Roblox chat box via
// clipboard paste and simulated keystrokes, falling back to a
// clipboard-only copy when the window is not focused.
package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"
)

// Destination says where a dispatched message ended up.
type Destination int

const (
	// Clipboard means the text was only copied to the clipboard.
	Clipboard Destination = iota
	// TargetWindow means the text was typed into the target window.
	TargetWindow
)

// String implements fmt.Stringer.
func (d Destination) String() string {
	if d == TargetWindow {
		return "target window"
	}
	return "clipboard"
}

// Outcome is the result of one dispatch call.
type Outcome struct {
	Delivered   bool
	Destination Destination
}

// keyDelay paces the chat-open / paste / submit taps so the game UI
// keeps up.
const keyDelay = 100 * time.Millisecond

// Dispatcher sends text to the target application. The OS-facing
// operations are function fields so tests can run without a display.
type Dispatcher struct {
	activeTitle    func() string
	writeClipboard func(string) error
	keyTap         func(key string, mods ...interface{}) error
	sleep          func(time.Duration)
}

// New creates a robotgo-backed Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		activeTitle:    func() string { return robotgo.GetTitle() },
		writeClipboard: robotgo.WriteAll,
		keyTap:         robotgo.KeyTap,
		sleep:          time.Sleep,
	}
}

// Dispatch copies text to the clipboard and, when the focused window
// title contains windowFragment, opens the chat box and pastes it.
// Keystrokes are never sent at an unfocused target. Injection failures
// are non-fatal: the clipboard copy already happened, so the outcome
// degrades to clipboard-only and the error is returned for reporting.
func (d *Dispatcher) Dispatch(text, windowFragment string) (Outcome, error) {
	if !strings.Contains(d.activeTitle(), windowFragment) {
		if err := d.writeClipboard(text); err != nil {
			return Outcome{}, fmt.Errorf("dispatch: write to clipboard: %w", err)
		}
		return Outcome{Delivered: false, Destination: Clipboard}, nil
	}

	if err := d.writeClipboard(text); err != nil {
		return Outcome{}, fmt.Errorf("dispatch: write to clipboard: %w", err)
	}

	if err := d.injectSequence(); err != nil {
		return Outcome{Delivered: false, Destination: Clipboard}, fmt.Errorf("dispatch: %w", err)
	}

	return Outcome{Delivered: true, Destination: TargetWindow}, nil
}

// injectSequence opens chat, pastes, and submits.
func (d *Dispatcher) injectSequence() error {
	if err := d.keyTap("/"); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	d.sleep(keyDelay)

	if err := d.keyTap("v", "ctrl"); err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	d.sleep(keyDelay)

	if err := d.keyTap("enter"); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	return nil
}
