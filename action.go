// Package main - action.go
//
// This file implements game actions through native input simulation (robotgo).
// All keyboard and mouse operations go to whatever window has focus, so the
// control loop focuses the game window before clicks that must land on it.
//
// Key Responsibilities:
//   - Keyboard event simulation (tap, hold, release)
//   - Mouse event simulation (move, click, press, release)
//   - Minimum delay between consecutive inputs
//
// Timing:
// Every input waits on a RateLimiter first, so two actions are never sent closer
// than the configured input delay (50ms by default). This keeps the input stream
// close to human timing and gives the game a frame to react.
//
// Key Names:
// Callers pass the resolved names from settings ("F", "ESC", "A"). They are
// converted to robotgo names with InputKeyName ("f", "esc", "a").
package main

import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
)

// KeyMode represents keyboard action type
type KeyMode int

const (
	KeyPress   KeyMode = iota // Press and release
	KeyHold                   // Hold down
	KeyRelease                // Release held key
)

// String returns the string representation of KeyMode
func (m KeyMode) String() string {
	switch m {
	case KeyPress:
		return "press"
	case KeyHold:
		return "hold"
	case KeyRelease:
		return "release"
	default:
		return "unknown"
	}
}

// MouseMode represents mouse action type
type MouseMode int

const (
	MouseMove    MouseMode = iota // Move cursor only
	MouseClick                    // Move and click
	MousePress                    // Press and hold
	MouseRelease                  // Release held button
)

// DefaultInputDelay is the minimum time between two inputs
const DefaultInputDelay = 50 * time.Millisecond

// Action provides game input through robotgo.
//
// Lifecycle:
//   1. Create Action with NewAction(delay)
//   2. Call action methods (SendKey, Click, MouseDown, ...)
//   3. Each call waits for the rate limiter, then emits the native event
//
// Error Handling:
// robotgo reports failures for key events only; they are wrapped and returned.
// Mouse calls have no error path and always return nil.
type Action struct {
	limiter *RateLimiter
}

// NewAction creates a new Action instance
//
// Parameters:
//   - delay: Minimum delay between inputs (values <= 0 use DefaultInputDelay)
//
// Returns:
//   - *Action: New action controller
func NewAction(delay time.Duration) *Action {
	if delay <= 0 {
		delay = DefaultInputDelay
	}
	return &Action{
		limiter: NewRateLimiter(delay),
	}
}

// SendKey simulates a keyboard event.
//
// Parameters:
//   - key: Resolved key name (e.g., "F", "ESC", "A", "M")
//   - mode: KeyPress (tap), KeyHold (press down), or KeyRelease (release)
//
// Returns:
//   - error: robotgo error, nil on success
//
// Examples:
//   SendKey("ESC", KeyPress)   → robotgo.KeyTap("esc")
//   SendKey("A", KeyHold)      → robotgo.KeyToggle("a", "down")
//   SendKey("A", KeyRelease)   → robotgo.KeyToggle("a", "up")
func (a *Action) SendKey(key string, mode KeyMode) error {
	name := InputKeyName(key)
	if name == "" {
		return fmt.Errorf("empty key name")
	}

	a.limiter.Wait()

	var err error
	switch mode {
	case KeyPress:
		err = robotgo.KeyTap(name)
	case KeyHold:
		err = robotgo.KeyToggle(name, "down")
	case KeyRelease:
		err = robotgo.KeyToggle(name, "up")
	default:
		return fmt.Errorf("unknown key mode %d", mode)
	}
	if err != nil {
		return fmt.Errorf("key %s %s: %w", mode, name, err)
	}
	LogDebug("Key %s: %s", mode, name)
	return nil
}

// MouseEvent performs a mouse action at screen coordinates.
//
// Parameters:
//   - mode: MouseMove, MouseClick, MousePress or MouseRelease
//   - x, y: Absolute screen coordinates (ignored for MousePress/MouseRelease)
func (a *Action) MouseEvent(mode MouseMode, x, y int) error {
	a.limiter.Wait()

	switch mode {
	case MouseMove:
		robotgo.Move(x, y)
	case MouseClick:
		robotgo.Move(x, y)
		robotgo.Click("left")
	case MousePress:
		if err := robotgo.Toggle("left"); err != nil {
			return fmt.Errorf("mouse down: %w", err)
		}
	case MouseRelease:
		if err := robotgo.Toggle("left", "up"); err != nil {
			return fmt.Errorf("mouse up: %w", err)
		}
	default:
		return fmt.Errorf("unknown mouse mode %d", mode)
	}
	LogDebug("Mouse %d at (%d, %d)", mode, x, y)
	return nil
}

// Click moves to (x, y) and clicks the left button
func (a *Action) Click(x, y int) error {
	return a.MouseEvent(MouseClick, x, y)
}

// MoveMouse moves the cursor to (x, y)
func (a *Action) MoveMouse(x, y int) error {
	return a.MouseEvent(MouseMove, x, y)
}

// MouseDown presses and holds the left button at the current position
func (a *Action) MouseDown() error {
	return a.MouseEvent(MousePress, 0, 0)
}

// MouseUp releases the left button
func (a *Action) MouseUp() error {
	return a.MouseEvent(MouseRelease, 0, 0)
}
