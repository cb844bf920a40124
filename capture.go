// Package main - capture.go
//
// Screen capture with bounded retries. A failed capture is a perception miss,
// so CaptureRegion reports (nil, false) instead of an error.
package main

import (
	"image"
	"time"

	"github.com/kbinani/screenshot"
)

const (
	captureAttempts = 3
	captureDelay    = 100 * time.Millisecond
)

// Capturer grabs a screen region.
type Capturer interface {
	CaptureRegion(r Region) (*image.RGBA, bool)
}

// ScreenCapturer captures the desktop through kbinani/screenshot.
type ScreenCapturer struct {
	grab func(image.Rectangle) (*image.RGBA, error)
}

// NewScreenCapturer creates a capturer for the primary display set
func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{grab: screenshot.CaptureRect}
}

// CaptureRegion captures r, retrying up to 3 times 100ms apart.
func (c *ScreenCapturer) CaptureRegion(r Region) (*image.RGBA, bool) {
	if r.Empty() {
		return nil, false
	}
	for i := 0; i < captureAttempts; i++ {
		img, err := c.grab(r.Rect())
		if err == nil && img != nil && !img.Bounds().Empty() {
			return img, true
		}
		LogDebug("[IMAGE] Capture attempt %d/%d failed for %+v: %v", i+1, captureAttempts, r, err)
		if i < captureAttempts-1 {
			time.Sleep(captureDelay)
		}
	}
	LogWarn("[IMAGE] Capture failed after %d attempts", captureAttempts)
	return nil, false
}
