// Package hotkey provides the global recording-toggle hotkey using
// gohook. The binding can be swapped at runtime without a window where
// the old and new keys are both (or neither) active: matching happens
// against an atomically stored keycode instead of re-registering the
// OS hook.
package hotkey

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	hook "github.com/robotn/gohook"
)

// Event is emitted on each press of the toggle hotkey.
type Event struct {
	Key string
}

// Listener watches the global keyboard stream for the toggle key.
type Listener struct {
	binding atomic.Uint64 // packed keycode, see pack/unpack
	name    atomic.Value  // string, current key name

	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewListener creates a Listener bound to the named key (e.g. "f2").
func NewListener(key string) (*Listener, error) {
	l := &Listener{
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
	if err := l.Rebind(key); err != nil {
		return nil, err
	}
	return l, nil
}

// Events returns the channel that receives toggle events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Rebind atomically replaces the toggle binding. The new key name is
// verified before the swap, so an invalid name leaves the old binding
// untouched.
func (l *Listener) Rebind(key string) error {
	code, err := parseKey(key)
	if err != nil {
		return err
	}
	l.name.Store(strings.ToLower(key))
	l.binding.Store(pack(code))
	return nil
}

// Key returns the currently bound key name.
func (l *Listener) Key() string {
	name, _ := l.name.Load().(string)
	return name
}

// Start consumes the raw keyboard stream and emits a toggle event for
// each press of the bound key. Blocks until Stop is called; run it in
// a goroutine.
func (l *Listener) Start() {
	evChan := hook.Start()
	defer hook.End()

	for {
		select {
		case <-l.done:
			close(l.ch)
			return
		case ev, ok := <-evChan:
			if !ok {
				close(l.ch)
				return
			}
			if ev.Kind != hook.KeyDown {
				continue
			}
			if pack(ev.Keycode) != l.binding.Load() {
				continue
			}
			select {
			case l.ch <- Event{Key: l.Key()}:
			default: // don't block if channel is full
			}
		}
	}
}

// Stop terminates the listener. Safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

// parseKey maps a key name to its gohook keycode.
func parseKey(key string) (uint16, error) {
	name := strings.ToLower(strings.TrimSpace(key))
	code, ok := hook.Keycode[name]
	if !ok {
		return 0, fmt.Errorf("hotkey: unknown key %q", key)
	}
	return code, nil
}

// pack widens a keycode so the zero value of the atomic never matches
// a real key (keycode 0 is valid on some platforms).
func pack(code uint16) uint64 {
	return uint64(code) | 1<<32
}
