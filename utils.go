// Package main - utils.go
//
// This file provides utility functions and helper structures used throughout the bot.
// Includes timing, rate limiting, bounded retries and small math helpers.
//
// Major Components:
//
// 1. Clock:
//    - Clock interface (Now/Sleep) used by the control loop for every wait
//    - realClock is the wall clock; tests substitute a virtual clock
//
// 2. Performance Timing:
//    - Timer struct for measuring operation duration
//    - Used around captures and template matches at debug level
//
// 3. Rate Limiting:
//    - RateLimiter enforces minimum time between operations
//    - Wait blocks until the next slot, Allow is non-blocking
//    - Used by Action to keep a human-like gap between inputs
//
// 4. Retry With Verification:
//    - RetryUntil runs attempt -> verify up to N times and stops on the first success
//    - Used for "click then confirm" interactions (continue button)
//
// 5. Utility Functions:
//    - FormatDuration: Converts duration to human-readable string (e.g., "2m 30s")
//    - Clamp: Restricts a value to a min/max range
//    - SafeGo: Launches goroutines with panic recovery
//
// SafeGo Usage:
// All long-running goroutines (control loop, publisher, hotkeys, watcher) use SafeGo
// so a panic is logged and the goroutine terminates without taking the process down.
package main

import (
	"fmt"
	"sync"
	"time"
)

// Clock abstracts time for the control loop.
//
// Every wait inside the loop goes through Sleep so that cancellation is observed
// at the next tick and tests can run minutes of game time instantly.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Timer provides performance timing functionality
type Timer struct {
	name      string
	startTime time.Time
}

// NewTimer creates and starts a new timer with given name
func NewTimer(name string) *Timer {
	return &Timer{
		name:      name,
		startTime: time.Now(),
	}
}

// Elapsed returns the elapsed time since timer creation
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.startTime)
}

// Stop logs the elapsed time and returns the duration
func (t *Timer) Stop() time.Duration {
	elapsed := t.Elapsed()
	LogDebug("Timer [%s] stopped: %v", t.name, elapsed)
	return elapsed
}

// FormatDuration formats a duration into human-readable string
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Clamp restricts a value between min and max
func Clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// SafeGo runs a function in a goroutine with panic recovery
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				LogError("Panic recovered in goroutine: %v", r)
			}
		}()
		fn()
	}()
}

// RateLimiter limits execution rate
type RateLimiter struct {
	lastExec time.Time
	interval time.Duration
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter with specified interval
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
	}
}

// Allow checks if enough time has passed since last execution
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastExec) >= rl.interval {
		rl.lastExec = now
		return true
	}
	return false
}

// Wait blocks until the interval since the previous execution has passed,
// then records the current time as the new execution time.
func (rl *RateLimiter) Wait() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if remaining := rl.interval - time.Since(rl.lastExec); remaining > 0 {
		time.Sleep(remaining)
	}
	rl.lastExec = time.Now()
}

// Reset resets the rate limiter
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.lastExec = time.Time{}
}

// RetryUntil runs attempt followed by verify up to maxAttempts times.
//
// Parameters:
//   - maxAttempts: upper bound on attempt calls (values < 1 are treated as 1)
//   - attempt: the action, receives the zero-based attempt index
//   - verify: reports whether the action took effect
//
// Returns:
//   - int: number of attempts made
//   - bool: true when verify succeeded
func RetryUntil(maxAttempts int, attempt func(i int), verify func() bool) (int, bool) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for i := 0; i < maxAttempts; i++ {
		attempt(i)
		if verify() {
			return i + 1, true
		}
	}
	return maxAttempts, false
}
