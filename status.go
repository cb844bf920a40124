// Package main - status.go
//
// This file implements SharedStatus, the thread-safe state shared between the
// control loop and everything that observes or steers it (hotkeys, tray menu,
// status server, monitor).
//
// Lock Groups:
//   - running: atomic.Bool, the single source of truth for "should the bot run"
//   - activity + detail: one RWMutex
//   - stats: one RWMutex
//   - detection boxes + window rect: one RWMutex
//
// Each lock is held only for the read or write statement itself, never across a
// capture or an input action. Snapshot reads each group separately, so fields may
// come from slightly different instants but each field is read atomically.
package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Activity is the closed set of phases the control loop reports.
type Activity int

const (
	ActivityIdle Activity = iota
	ActivityWaitingForStart
	ActivitySelectingWindow
	ActivityWaitingForDefaultScreen
	ActivityCastingLine
	ActivityWaitingForFish
	ActivityFishDetected
	ActivityPlayingMinigame
	ActivityDetectingArrow
	ActivityMovingLeft
	ActivityMovingRight
	ActivityCenterLane
	ActivityWaitingForContinue
	ActivityClickingContinue
	ActivityDetectingFishType
	ActivityRecoveringFromTimeout
	ActivityHandlingBrokenRod
	ActivitySelectingNewRod
	ActivityMinigameFailed
	ActivityStopped
)

// String returns the machine-readable tag used in the snapshot JSON
func (a Activity) String() string {
	switch a {
	case ActivityIdle:
		return "idle"
	case ActivityWaitingForStart:
		return "waiting_for_start"
	case ActivitySelectingWindow:
		return "selecting_window"
	case ActivityWaitingForDefaultScreen:
		return "waiting_for_default_screen"
	case ActivityCastingLine:
		return "casting_line"
	case ActivityWaitingForFish:
		return "waiting_for_fish"
	case ActivityFishDetected:
		return "fish_detected"
	case ActivityPlayingMinigame:
		return "playing_minigame"
	case ActivityDetectingArrow:
		return "detecting_arrow"
	case ActivityMovingLeft:
		return "moving_left"
	case ActivityMovingRight:
		return "moving_right"
	case ActivityCenterLane:
		return "center_lane"
	case ActivityWaitingForContinue:
		return "waiting_for_continue"
	case ActivityClickingContinue:
		return "clicking_continue"
	case ActivityDetectingFishType:
		return "detecting_fish_type"
	case ActivityRecoveringFromTimeout:
		return "recovering_from_timeout"
	case ActivityHandlingBrokenRod:
		return "handling_broken_rod"
	case ActivitySelectingNewRod:
		return "selecting_new_rod"
	case ActivityMinigameFailed:
		return "minigame_failed"
	case ActivityStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Description returns the human-readable text shown in the tray and overlay
func (a Activity) Description() string {
	switch a {
	case ActivityIdle:
		return "Idle"
	case ActivityWaitingForStart:
		return "Waiting for Start (F9)"
	case ActivitySelectingWindow:
		return "Selecting game window..."
	case ActivityWaitingForDefaultScreen:
		return "Looking for fishing spot..."
	case ActivityCastingLine:
		return "Casting fishing line..."
	case ActivityWaitingForFish:
		return "Waiting for fish to bite..."
	case ActivityFishDetected:
		return "Fish detected! Starting minigame..."
	case ActivityPlayingMinigame:
		return "Playing fishing minigame..."
	case ActivityDetectingArrow:
		return "Detecting arrow direction..."
	case ActivityMovingLeft:
		return "Moving LEFT in minigame"
	case ActivityMovingRight:
		return "Moving RIGHT in minigame"
	case ActivityCenterLane:
		return "Holding CENTER lane"
	case ActivityWaitingForContinue:
		return "Waiting for continue button..."
	case ActivityClickingContinue:
		return "Clicking continue button..."
	case ActivityDetectingFishType:
		return "Detecting fish type..."
	case ActivityRecoveringFromTimeout:
		return "Recovering from timeout..."
	case ActivityHandlingBrokenRod:
		return "Broken rod detected!"
	case ActivitySelectingNewRod:
		return "Selecting new fishing rod..."
	case ActivityMinigameFailed:
		return "Minigame failed, restarting..."
	case ActivityStopped:
		return "Bot stopped"
	default:
		return "Unknown"
	}
}

// Stats holds the cumulative counters of the current session.
type Stats struct {
	Catches int
	Misses  int
	XP      int
	Rate    float64
}

// computeRate returns 100*catches/(catches+misses), or 0 with no attempts.
func computeRate(catches, misses int) float64 {
	total := catches + misses
	if total <= 0 {
		return 0
	}
	return float64(catches) / float64(total) * 100
}

// StatsJSON is the wire form of Stats; rate is pre-formatted with two decimals.
type StatsJSON struct {
	Catches int    `json:"catches"`
	Misses  int    `json:"misses"`
	XP      int    `json:"xp"`
	Rate    string `json:"rate"`
}

// Snapshot is the structured view of SharedStatus consumed by UIs.
type Snapshot struct {
	Running     bool      `json:"running"`
	Activity    string    `json:"activity"`
	ActivityTag string    `json:"activity_tag"`
	Detail      string    `json:"detail"`
	Stats       StatsJSON `json:"stats"`
}

// Detections is the payload of the detection overlay endpoint.
type Detections struct {
	Boxes  []DetectionBox `json:"boxes"`
	Window *Region        `json:"window"`
}

// SharedStatus is the explicitly constructed status object passed to every
// component that reads or steers the bot.
type SharedStatus struct {
	running atomic.Bool

	phaseMu  sync.RWMutex
	activity Activity
	detail   string

	statsMu sync.RWMutex
	stats   Stats

	visMu  sync.RWMutex
	boxes  []DetectionBox
	window *Region
}

// NewSharedStatus creates a stopped status with the WaitingForStart activity.
func NewSharedStatus() *SharedStatus {
	return &SharedStatus{activity: ActivityWaitingForStart}
}

// IsRunning reports the run flag
func (s *SharedStatus) IsRunning() bool {
	return s.running.Load()
}

// SetRunning stores the run flag and moves the activity to
// WaitingForDefaultScreen (true) or Stopped (false).
func (s *SharedStatus) SetRunning(running bool) {
	s.running.Store(running)
	if running {
		s.SetActivity(ActivityWaitingForDefaultScreen)
	} else {
		s.SetActivity(ActivityStopped)
	}
}

// RequestStart is the edge produced by hotkeys and UI buttons.
// It only flips the flag; the control loop runs the Start protocol on its next tick.
func (s *SharedStatus) RequestStart() {
	LogInfo("[CONTROL] Start requested")
	s.SetRunning(true)
}

// RequestStop flips the flag off; the control loop runs the Stop protocol on its next tick.
func (s *SharedStatus) RequestStop() {
	LogInfo("[CONTROL] Stop requested")
	s.SetRunning(false)
}

// Activity returns the current activity
func (s *SharedStatus) Activity() Activity {
	s.phaseMu.RLock()
	defer s.phaseMu.RUnlock()
	return s.activity
}

// SetActivity sets the current activity
func (s *SharedStatus) SetActivity(a Activity) {
	s.phaseMu.Lock()
	s.activity = a
	s.phaseMu.Unlock()
}

// Detail returns the free-text detail message
func (s *SharedStatus) Detail() string {
	s.phaseMu.RLock()
	defer s.phaseMu.RUnlock()
	return s.detail
}

// SetDetail sets the free-text detail message
func (s *SharedStatus) SetDetail(format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.phaseMu.Lock()
	s.detail = msg
	s.phaseMu.Unlock()
}

// Report sets activity and detail together.
func (s *SharedStatus) Report(a Activity, format string, args ...interface{}) {
	s.SetActivity(a)
	s.SetDetail(format, args...)
}

// Stats returns a copy of the session counters
func (s *SharedStatus) Stats() Stats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// UpdateStats overwrites the counters and recomputes the rate
func (s *SharedStatus) UpdateStats(catches, misses, xp int) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats = Stats{Catches: catches, Misses: misses, XP: xp, Rate: computeRate(catches, misses)}
}

// IncrementCatch adds one catch and its xp
func (s *SharedStatus) IncrementCatch(xp int) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.Catches++
	s.stats.XP += xp
	s.stats.Rate = computeRate(s.stats.Catches, s.stats.Misses)
}

// IncrementMiss adds one escaped fish
func (s *SharedStatus) IncrementMiss() {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.Misses++
	s.stats.Rate = computeRate(s.stats.Catches, s.stats.Misses)
}

// ResetStats zeroes the counters for a new session
func (s *SharedStatus) ResetStats() {
	s.statsMu.Lock()
	s.stats = Stats{}
	s.statsMu.Unlock()
}

// AddDetection appends a detection box
func (s *SharedStatus) AddDetection(b DetectionBox) {
	s.visMu.Lock()
	s.boxes = append(s.boxes, b)
	s.visMu.Unlock()
}

// ClearDetections removes all detection boxes
func (s *SharedStatus) ClearDetections() {
	s.visMu.Lock()
	s.boxes = nil
	s.visMu.Unlock()
}

// SetWindow publishes the game window rectangle; nil clears it
func (s *SharedStatus) SetWindow(r *Region) {
	s.visMu.Lock()
	if r != nil {
		cp := *r
		r = &cp
	}
	s.window = r
	s.visMu.Unlock()
}

// Detections returns a copy of the boxes and the window rect
func (s *SharedStatus) Detections() Detections {
	s.visMu.RLock()
	defer s.visMu.RUnlock()
	d := Detections{Boxes: make([]DetectionBox, len(s.boxes))}
	copy(d.Boxes, s.boxes)
	if s.window != nil {
		w := *s.window
		d.Window = &w
	}
	return d
}

// Snapshot reads every field group once and returns the structured view
func (s *SharedStatus) Snapshot() Snapshot {
	st := s.Stats()
	a := s.Activity()
	return Snapshot{
		Running:     s.IsRunning(),
		Activity:    a.Description(),
		ActivityTag: a.String(),
		Detail:      s.Detail(),
		Stats: StatsJSON{
			Catches: st.Catches,
			Misses:  st.Misses,
			XP:      st.XP,
			Rate:    fmt.Sprintf("%.2f", st.Rate),
		},
	}
}

// JSON encodes the snapshot
func (s *SharedStatus) JSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
