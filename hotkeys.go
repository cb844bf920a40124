// Package main - hotkeys.go
//
// Global start/stop hotkeys through robotn/gohook. The handlers only flip the
// shared run flag; the fishing loop picks the change up on its next tick.
//
// gohook has no per-key unregister, so a binding change tears the whole hook
// down (hook.End) and registers the new keys from scratch.
package main

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// HotkeyListener owns the global keyboard hook
type HotkeyListener struct {
	status *SharedStatus
	keys   func(name string) string

	mu      sync.Mutex
	active  bool
	bound   [2]string
	stopped chan struct{}
}

// NewHotkeyListener creates a listener resolving bindings through keys
func NewHotkeyListener(status *SharedStatus, keys func(string) string) *HotkeyListener {
	return &HotkeyListener{status: status, keys: keys}
}

// hotkeyAction is what a key press asks for
type hotkeyAction int

const (
	hotkeyStart hotkeyAction = iota
	hotkeyStop
	hotkeyToggle
)

// trigger applies a hotkey action. Key repeat delivers several KeyDown events
// for one press, so requests that would not change the flag are dropped.
func (h *HotkeyListener) trigger(a hotkeyAction) {
	running := h.status.IsRunning()
	switch {
	case a == hotkeyToggle && running, a == hotkeyStop && running:
		LogInfo("[HOTKEY] Stop key pressed")
		h.status.RequestStop()
	case a == hotkeyToggle && !running, a == hotkeyStart && !running:
		LogInfo("[HOTKEY] Start key pressed")
		h.status.RequestStart()
	}
}

// bindings returns the gohook names of the start and stop keys
func (h *HotkeyListener) bindings() [2]string {
	return [2]string{InputKeyName(h.keys(KeyStart)), InputKeyName(h.keys(KeyStop))}
}

// Start registers the hotkeys and runs the hook event loop in the background
func (h *HotkeyListener) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active {
		return
	}

	b := h.bindings()
	for _, k := range b {
		if _, ok := KeyCode(k); !ok {
			LogWarn("[HOTKEY] Key %q has no code on this platform, it will not fire", k)
		}
	}
	if b[0] == b[1] {
		hook.Register(hook.KeyDown, []string{b[0]}, func(hook.Event) { h.trigger(hotkeyToggle) })
	} else {
		hook.Register(hook.KeyDown, []string{b[0]}, func(hook.Event) { h.trigger(hotkeyStart) })
		hook.Register(hook.KeyDown, []string{b[1]}, func(hook.Event) { h.trigger(hotkeyStop) })
	}

	s := hook.Start()
	done := make(chan struct{})
	h.active, h.bound, h.stopped = true, b, done
	LogInfo("[HOTKEY] Listening: start=%s stop=%s", b[0], b[1])

	go func() {
		defer close(done)
		<-hook.Process(s)
	}()
}

// Stop ends the hook and waits for the event loop to exit
func (h *HotkeyListener) Stop() {
	h.mu.Lock()
	if !h.active {
		h.mu.Unlock()
		return
	}
	done := h.stopped
	h.active = false
	h.mu.Unlock()

	hook.End()
	<-done
	LogDebug("[HOTKEY] Hook stopped")
}

// Reload re-registers the hotkeys when the bindings changed
func (h *HotkeyListener) Reload() {
	h.mu.Lock()
	changed := h.active && h.bound != h.bindings()
	h.mu.Unlock()
	if !changed {
		return
	}
	LogInfo("[HOTKEY] Bindings changed, re-registering")
	h.Stop()
	h.Start()
}
