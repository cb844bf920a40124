// Package main - movement.go
//
// This file implements high-level input sequences for the fishing loop.
// MovementCoordinator turns logical key names (left_key, esc_key, ...) into
// actuator calls and keeps track of which movement keys are held.
//
// Key Responsibilities:
//   - Logical key press/hold/release through the configured bindings
//   - Minigame lane translation (hold left, hold right, or center)
//   - Guaranteed release of held movement keys and the mouse button
//   - Recovery key sequence (cancel, then interact)
//
// Lane Keys:
//
//	lane -1: hold left_key,  release right_key
//	lane  0: release both
//	lane  1: hold right_key, release left_key
//
// Held state is tracked so a key is only toggled when its state changes; the
// explicit release helpers always send the release regardless of tracked state.
package main

import (
	"sync"
	"time"
)

// MovementCoordinator provides logical-key input on top of an Actuator.
type MovementCoordinator struct {
	input Actuator
	keys  func(name string) string
	clock Clock

	held map[string]bool
	mu   sync.Mutex
}

// NewMovementCoordinator creates a new movement coordinator
//
// Parameters:
//   - input: Actuator receiving the native events
//   - keys: Resolves a logical name (e.g. KeyLeft) to a bound key ("A")
//   - clock: Used for the pauses inside key sequences
func NewMovementCoordinator(input Actuator, keys func(string) string, clock Clock) *MovementCoordinator {
	return &MovementCoordinator{
		input: input,
		keys:  keys,
		clock: clock,
		held:  make(map[string]bool),
	}
}

// PressKey taps the key bound to a logical name
func (mc *MovementCoordinator) PressKey(name string) {
	key := mc.keys(name)
	if err := mc.input.SendKey(key, KeyPress); err != nil {
		LogWarn("Press %s (%s) failed: %v", name, key, err)
	}
}

// HoldKey holds the key bound to a logical name
func (mc *MovementCoordinator) HoldKey(name string) {
	mc.mu.Lock()
	if mc.held[name] {
		mc.mu.Unlock()
		return
	}
	mc.held[name] = true
	mc.mu.Unlock()

	key := mc.keys(name)
	if err := mc.input.SendKey(key, KeyHold); err != nil {
		LogWarn("Hold %s (%s) failed: %v", name, key, err)
	}
}

// ReleaseKey releases the key bound to a logical name if it is held
func (mc *MovementCoordinator) ReleaseKey(name string) {
	mc.mu.Lock()
	if !mc.held[name] {
		mc.mu.Unlock()
		return
	}
	mc.mu.Unlock()
	mc.forceRelease(name)
}

func (mc *MovementCoordinator) forceRelease(name string) {
	mc.mu.Lock()
	delete(mc.held, name)
	mc.mu.Unlock()

	key := mc.keys(name)
	if err := mc.input.SendKey(key, KeyRelease); err != nil {
		LogWarn("Release %s (%s) failed: %v", name, key, err)
	}
}

// IsHeld reports whether a logical key is currently held
func (mc *MovementCoordinator) IsHeld(name string) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.held[name]
}

// ApplyLane holds and releases the movement keys for lane.
//
// Returns the activity describing the resulting key state.
func (mc *MovementCoordinator) ApplyLane(lane Lane) Activity {
	switch {
	case lane < 0:
		mc.HoldKey(KeyLeft)
		mc.ReleaseKey(KeyRight)
		return ActivityMovingLeft
	case lane > 0:
		mc.HoldKey(KeyRight)
		mc.ReleaseKey(KeyLeft)
		return ActivityMovingRight
	default:
		mc.ReleaseKey(KeyLeft)
		mc.ReleaseKey(KeyRight)
		return ActivityCenterLane
	}
}

// ReleaseLaneKeys sends a release for both movement keys unconditionally
func (mc *MovementCoordinator) ReleaseLaneKeys() {
	mc.forceRelease(KeyLeft)
	mc.forceRelease(KeyRight)
}

// MouseDown holds the primary button
func (mc *MovementCoordinator) MouseDown() {
	if err := mc.input.MouseDown(); err != nil {
		LogWarn("Mouse down failed: %v", err)
	}
}

// MouseUp releases the primary button
func (mc *MovementCoordinator) MouseUp() {
	if err := mc.input.MouseUp(); err != nil {
		LogWarn("Mouse up failed: %v", err)
	}
}

// ReleaseAll releases the mouse button and both movement keys
func (mc *MovementCoordinator) ReleaseAll() {
	mc.MouseUp()
	mc.ReleaseLaneKeys()
}

// ClickAt clicks an absolute screen point
func (mc *MovementCoordinator) ClickAt(p Point) {
	LogDebug("Clicking at (%d, %d)", p.X, p.Y)
	if err := mc.input.Click(p.X, p.Y); err != nil {
		LogWarn("Click at (%d, %d) failed: %v", p.X, p.Y, err)
	}
}

// MoveTo moves the cursor to an absolute screen point
func (mc *MovementCoordinator) MoveTo(p Point) {
	if err := mc.input.MoveMouse(p.X, p.Y); err != nil {
		LogWarn("Move to (%d, %d) failed: %v", p.X, p.Y, err)
	}
}

// Wait pauses on the coordinator's clock
func (mc *MovementCoordinator) Wait(d time.Duration) {
	mc.clock.Sleep(d)
}

// CancelAndInteract presses the cancel key and then the interact key,
// each followed by pause.
func (mc *MovementCoordinator) CancelAndInteract(pause time.Duration) {
	mc.PressKey(KeyEsc)
	mc.Wait(pause)
	mc.PressKey(KeyFish)
	mc.Wait(pause)
}
