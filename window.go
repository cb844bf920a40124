// Package main - window.go
//
// Game window discovery and focus through robotgo's process/window helpers.
package main

import (
	"strings"
	"sync"

	"github.com/go-vgo/robotgo"
)

// GameWindow locates the game window by its exact title.
type GameWindow struct {
	title func() string

	pid int
	mu  sync.Mutex
}

// NewGameWindow creates a locator; title is read on every Select so config
// reloads take effect on the next start.
func NewGameWindow(title func() string) *GameWindow {
	return &GameWindow{title: title}
}

// Select finds the window whose title equals the configured title and brings
// it to the foreground. Returns ("", false) when no such window exists.
func (w *GameWindow) Select() (string, bool) {
	want := w.title()
	ids, err := robotgo.FindIds("")
	if err != nil {
		LogDebug("[WINDOW] Process enumeration failed: %v", err)
		return "", false
	}
	for _, pid := range ids {
		title := strings.TrimSpace(robotgo.GetTitle(pid))
		if title == "" || title != want {
			continue
		}
		w.mu.Lock()
		w.pid = pid
		w.mu.Unlock()
		if err := robotgo.ActivePid(pid); err != nil {
			LogDebug("[WINDOW] Activate %d failed: %v", pid, err)
		}
		LogInfo("[WINDOW] Selected '%s' (pid %d)", title, pid)
		return title, true
	}
	return "", false
}

// Rect returns the current bounds of the selected window.
// ok is false when the window is gone, minimized or has no area.
func (w *GameWindow) Rect(title string) (Region, bool) {
	w.mu.Lock()
	pid := w.pid
	w.mu.Unlock()
	if pid == 0 || title == "" {
		return Region{}, false
	}
	if robotgo.GetTitle(pid) != title {
		return Region{}, false
	}
	x, y, width, height := robotgo.GetBounds(pid)
	r := Region{Left: x, Top: y, Width: width, Height: height}
	if r.Empty() {
		return Region{}, false
	}
	return r, true
}

// Focus brings the selected window to the foreground
func (w *GameWindow) Focus(title string) {
	w.mu.Lock()
	pid := w.pid
	w.mu.Unlock()
	if pid == 0 {
		return
	}
	if err := robotgo.ActivePid(pid); err != nil {
		LogDebug("[WINDOW] Focus '%s' failed: %v", title, err)
	}
}
