// Package main - fishing.go
//
// This file implements the Fishing Behavior, the perception-driven control loop.
// Every decision is taken from screen captures; the loop polls cues at a fixed
// tick and reacts with mouse and keyboard input.
//
// States (reported through SharedStatus activities):
//   - WaitingForStart: Run flag is off
//   - SelectingWindow: Start protocol looking for the game window
//   - WaitingForDefaultScreen: Polling for the idle fishing screen
//   - HandlingBrokenRod / SelectingNewRod: Rod replacement instead of casting
//   - CastingLine -> WaitingForFish: Cast at window center, poll for a bite
//   - FishDetected -> PlayingMinigame: Mouse held, arrows steer the lane
//   - WaitingForContinue -> DetectingFishType -> ClickingContinue: Catch flow
//   - MinigameFailed: Escape flow (default screen came back first)
//   - RecoveringFromTimeout: No cue recognized for the stall limit
//   - Stopped: Stop protocol ran
//
// State Transitions:
//   WaitingForDefaultScreen -> HandlingBrokenRod (broken rod cue) -> WaitingForDefaultScreen
//   WaitingForDefaultScreen -> CastingLine -> WaitingForFish
//   WaitingForFish -> FishDetected -> PlayingMinigame
//   PlayingMinigame -> WaitingForContinue ... -> WaitingForDefaultScreen (catch)
//   PlayingMinigame -> MinigameFailed -> WaitingForDefaultScreen (escape)
//   any -> RecoveringFromTimeout -> (new session) -> WaitingForDefaultScreen
//   any -> Stopped (run flag cleared, or window lost during recovery)
//
// Run Flag:
// SharedStatus.IsRunning is the only authority. Hotkeys, the tray and the HTTP
// API flip it; the loop compares it with its local "active" state at the top of
// every tick and runs the Start or Stop protocol to reconcile the two.
//
// Blocking:
// Every wait goes through Clock.Sleep inside a loop that re-checks the run flag
// and the stall timer, so a stop is observed within one tick.
package main

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Perception is the image side of the loop (ImageAnalyzer in production)
type Perception interface {
	FindImage(rect Region, cue string, threshold float64) MatchResult
	FindArrow(rect Region) (Arrow, float64)
	FindFishName(rect Region) (string, float64)
}

// Actuator emits native input (Action in production)
type Actuator interface {
	Click(x, y int) error
	MoveMouse(x, y int) error
	MouseDown() error
	MouseUp() error
	SendKey(key string, mode KeyMode) error
}

// WindowLocator finds and tracks the game window (GameWindow in production)
type WindowLocator interface {
	Select() (string, bool)
	Rect(title string) (Region, bool)
	Focus(title string)
}

// CatchJournal records sessions and outcomes (Journal in production)
type CatchJournal interface {
	OpenSession() (Session, error)
	CloseSession() (bool, error)
	HasOpenSession() bool
	LogCatch(caught bool, fishType string, xp int)
	LogBrokenRod()
}

// FishLookup validates fish names and awards xp (FishCatalog in production)
type FishLookup interface {
	Exists(fishType string) bool
	XPByType(fishType string) int
}

// Cue thresholds per call site
const (
	thresholdRare       = 0.9  // broken rod, use rod, bite, default screen during minigame
	thresholdContinue   = 0.8  // continue button while playing
	thresholdStillThere = 0.75 // continue button re-check after clicking
	thresholdArrow      = 0.8  // arrow score must be strictly above this
)

// Fixed pauses of the loop
const (
	idlePoll          = 100 * time.Millisecond
	spotFoundPause    = 200 * time.Millisecond
	rodKeyPause       = 200 * time.Millisecond
	useRodPause       = 1 * time.Second
	castPause         = 1 * time.Second
	bitePause         = 50 * time.Millisecond
	arrowPause        = 200 * time.Millisecond
	minigameReport    = 5 * time.Second
	resultRenderPause = 500 * time.Millisecond
	ocrRetryPause     = 500 * time.Millisecond
	continueClickWait = 500 * time.Millisecond
	continueRetries   = 3
	escapePause       = 500 * time.Millisecond
	recoveryKeyPause  = 1 * time.Second
	recoveryPause     = 1 * time.Second
	restartPause      = 500 * time.Millisecond
	windowRetryPause  = 1 * time.Second
	windowLostPause   = 1 * time.Second
)

// FishingConfig is the loop tuning derived from bot.toml
type FishingConfig struct {
	CheckInterval    time.Duration
	SpamInterval     time.Duration
	NoProgressLimit  time.Duration
	TerminalCheck    time.Duration
	Threshold        float64
	OCRAttempts      int
	OCRMinConfidence float64
	WindowTitle      string
}

// FishingConfigFrom converts the decoded bot.toml into loop tuning
func FishingConfigFrom(c BotConfig) FishingConfig {
	return FishingConfig{
		CheckInterval:    c.Loop.CheckInterval(),
		SpamInterval:     c.Loop.SpamInterval(),
		NoProgressLimit:  c.Loop.NoProgressLimit(),
		TerminalCheck:    c.Loop.TerminalCheck(),
		Threshold:        c.Loop.Threshold,
		OCRAttempts:      c.OCR.Attempts,
		OCRMinConfidence: c.OCR.MinConfidence,
		WindowTitle:      c.Window.Title,
	}
}

// progressTimer records the last time a cue was recognized
type progressTimer struct {
	clock Clock
	last  time.Time
	mu    sync.Mutex
}

func (p *progressTimer) reset() {
	p.mu.Lock()
	p.last = p.clock.Now()
	p.mu.Unlock()
}

func (p *progressTimer) elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Now().Sub(p.last)
}

// FishingDeps bundles the collaborators of FishingBehavior
type FishingDeps struct {
	Status  *SharedStatus
	Eyes    Perception
	Input   Actuator
	Window  WindowLocator
	Journal CatchJournal
	Fish    FishLookup
	Keys    func(name string) string
	Clock   Clock
	Config  FishingConfig
}

// FishingBehavior is the control loop state machine.
type FishingBehavior struct {
	status  *SharedStatus
	eyes    Perception
	move    *MovementCoordinator
	window  WindowLocator
	journal CatchJournal
	fish    FishLookup
	keys    func(string) string
	clock   Clock

	progress progressTimer
	ctx      context.Context

	cfg   FishingConfig
	cfgMu sync.RWMutex

	mu          sync.Mutex
	active      bool
	title       string
	startedAt   time.Time
	retryAt     time.Time // earliest next window lookup after a miss
	continuePos *Point
}

// NewFishingBehavior wires the loop. A nil Clock uses the wall clock.
func NewFishingBehavior(d FishingDeps) *FishingBehavior {
	clock := d.Clock
	if clock == nil {
		clock = realClock{}
	}
	fb := &FishingBehavior{
		status:  d.Status,
		eyes:    d.Eyes,
		move:    NewMovementCoordinator(d.Input, d.Keys, clock),
		window:  d.Window,
		journal: d.Journal,
		fish:    d.Fish,
		keys:    d.Keys,
		clock:   clock,
		ctx:     context.Background(),
		cfg:     d.Config,
	}
	fb.progress = progressTimer{clock: clock}
	fb.progress.reset()
	return fb
}

// SetConfig replaces the tuning; applied from the next use on
func (fb *FishingBehavior) SetConfig(cfg FishingConfig) {
	fb.cfgMu.Lock()
	fb.cfg = cfg
	fb.cfgMu.Unlock()
}

func (fb *FishingBehavior) conf() FishingConfig {
	fb.cfgMu.RLock()
	defer fb.cfgMu.RUnlock()
	return fb.cfg
}

// IsActive reports whether a session is running on the loop side
func (fb *FishingBehavior) IsActive() bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.active
}

func (fb *FishingBehavior) windowTitle() string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.title
}

// ContinuePosition returns the remembered continue-button position
func (fb *FishingBehavior) ContinuePosition() (Point, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.continuePos == nil {
		return Point{}, false
	}
	return *fb.continuePos, true
}

// alive reports whether the loop should keep going inside a phase
func (fb *FishingBehavior) alive() bool {
	return fb.ctx.Err() == nil && fb.status.IsRunning()
}

func (fb *FishingBehavior) stalled() bool {
	return fb.progress.elapsed() > fb.conf().NoProgressLimit
}

// Run drives the loop until ctx is cancelled, then runs the Stop protocol.
//
// Algorithm:
//   1. Report WaitingForStart with the configured start key
//   2. tick() repeatedly while ctx is alive
//   3. On exit release all input and close the session
func (fb *FishingBehavior) Run(ctx context.Context) {
	fb.ctx = ctx
	fb.status.Report(ActivityWaitingForStart, "Press %s to start", fb.keys(KeyStart))
	LogInfo("[INIT] Fishing loop waiting for start key (%s)", fb.keys(KeyStart))

	for ctx.Err() == nil {
		fb.tick()
	}

	if fb.IsActive() {
		fb.move.ReleaseAll()
		fb.stop("Bot stopped")
	}
	LogInfo("[STOP] Fishing loop exited")
}

// tick runs one outer loop iteration.
func (fb *FishingBehavior) tick() {
	cfg := fb.conf()
	fb.reconcile()

	if !fb.status.IsRunning() {
		fb.clock.Sleep(idlePoll)
		return
	}
	title := fb.windowTitle()
	if title == "" {
		fb.clock.Sleep(idlePoll)
		return
	}

	if fb.stalled() {
		fb.recover(title)
		return
	}

	rect, ok := fb.window.Rect(title)
	if !ok {
		fb.status.SetWindow(nil)
		fb.status.SetDetail("Waiting for game window...")
		fb.clock.Sleep(cfg.CheckInterval)
		return
	}
	fb.status.ClearDetections()
	fb.status.SetWindow(&rect)

	if fb.find(rect, CueDefaultScreen, cfg.Threshold).Found {
		fb.progress.reset()
		fb.status.Report(ActivityWaitingForDefaultScreen, "Fishing spot found")
		fb.clock.Sleep(spotFoundPause)

		if fb.handleBrokenRod(rect) {
			return
		}

		fb.cast(rect)
		fb.waitForBite(title, rect)
	}

	fb.clock.Sleep(cfg.CheckInterval)
}

// reconcile aligns the loop's local state with the shared run flag
func (fb *FishingBehavior) reconcile() {
	running := fb.status.IsRunning()
	fb.mu.Lock()
	active, title, retryAt := fb.active, fb.title, fb.retryAt
	fb.mu.Unlock()

	if running && !active && title == "" && !fb.clock.Now().Before(retryAt) {
		fb.start()
	}
	if !running && active {
		fb.stop("Bot stopped by user")
	}
}

// start runs the Start protocol. The run flag is only read here; whoever
// requested the start already set it.
//
// Outcomes:
//   - No window: Idle, "No game window found" (retried after windowRetryPause)
//   - Stop requested during the lookup: Stopped, no session opened
//   - Open session: "Session already active"
//   - Otherwise: new session, stats reset, "Connected to: <title>"
func (fb *FishingBehavior) start() {
	cfg := fb.conf()
	LogDebug("[START] start() called")
	fb.status.Report(ActivitySelectingWindow, "Looking for %s window...", cfg.WindowTitle)

	title, ok := fb.window.Select()
	if !ok {
		LogDebug("[START] No game window found")
		fb.mu.Lock()
		fb.retryAt = fb.clock.Now().Add(windowRetryPause)
		fb.mu.Unlock()
		fb.status.Report(ActivityIdle, "No game window found")
		return
	}
	if !fb.status.IsRunning() {
		LogInfo("[START] Stop requested while selecting the window")
		fb.status.Report(ActivityStopped, "Bot stopped by user")
		return
	}

	if _, err := fb.journal.OpenSession(); err != nil {
		if errors.Is(err, ErrSessionActive) {
			LogInfo("[START] Session already started, stop first")
			fb.status.SetDetail("Session already active")
			return
		}
		LogWarn("[START] Failed to record session: %v", err)
	}

	fb.mu.Lock()
	fb.title = title
	fb.active = true
	fb.startedAt = fb.clock.Now()
	fb.retryAt = time.Time{}
	fb.mu.Unlock()

	fb.progress.reset()
	fb.status.ResetStats()
	fb.status.Report(ActivityWaitingForDefaultScreen, "Connected to: %s", title)
	LogInfo("[START] Started on window '%s'", title)
}

// stop runs the Stop protocol. It does nothing when no session is open and the
// loop is not active.
func (fb *FishingBehavior) stop(reason string) {
	LogDebug("[STOP] stop(%q) called", reason)
	if !fb.journal.HasOpenSession() && !fb.IsActive() {
		LogDebug("[STOP] No active session to stop")
		return
	}

	fb.endSession()
	fb.status.SetRunning(false)
	fb.status.SetWindow(nil)
	fb.status.Report(ActivityStopped, reason)
	LogInfo("[STOP] %s", reason)
}

// endSession closes the journal session and clears the loop's local state.
// The run flag is not touched.
func (fb *FishingBehavior) endSession() {
	if _, err := fb.journal.CloseSession(); err != nil {
		LogWarn("[STOP] Failed to close session: %v", err)
	}

	fb.mu.Lock()
	wasActive, startedAt := fb.active, fb.startedAt
	fb.active = false
	fb.title = ""
	fb.retryAt = time.Time{}
	fb.continuePos = nil
	fb.mu.Unlock()

	if wasActive {
		LogInfo("[STOP] Ran for %s", FormatDuration(fb.clock.Now().Sub(startedAt)))
	}
}

// restart replaces the session after a successful recovery. A Stop that
// arrives during the pause wins over the restart.
func (fb *FishingBehavior) restart() {
	fb.endSession()
	fb.clock.Sleep(restartPause)
	if !fb.status.IsRunning() {
		LogInfo("[RECOVERY] Stop requested during restart")
		fb.status.SetWindow(nil)
		fb.status.Report(ActivityStopped, "Bot stopped by user")
		return
	}
	fb.start()
}

// find runs a cue match and publishes a detection box for positive results
func (fb *FishingBehavior) find(rect Region, cue string, threshold float64) MatchResult {
	m := fb.eyes.FindImage(rect, cue, threshold)
	if m.Found {
		color := "#00FF00"
		switch cue {
		case CueBrokenPole:
			color = "#FF0000"
		case CueContinue, CueContinueHighlight, CueUseRod:
			color = "#0080FF"
		}
		fb.status.AddDetection(m.Box(cue, color))
	}
	return m
}

// handleBrokenRod replaces a broken rod. Returns true when the rod was broken,
// in which case the tick must not cast.
func (fb *FishingBehavior) handleBrokenRod(rect Region) bool {
	if !fb.find(rect, CueBrokenPole, thresholdRare).Found {
		return false
	}

	LogInfo("Broken pole detected -> pressing rods key")
	fb.status.Report(ActivityHandlingBrokenRod, "Broken rod! Selecting new rod...")
	fb.progress.reset()
	fb.journal.LogBrokenRod()

	fb.move.PressKey(KeyRods)
	fb.clock.Sleep(rodKeyPause)

	if m := fb.find(rect, CueUseRod, thresholdRare); m.Found {
		fb.status.Report(ActivitySelectingNewRod, "Clicking Use Rod button...")
		fb.progress.reset()
		fb.move.ClickAt(m.Location)
		fb.clock.Sleep(useRodPause)
	}
	return true
}

// cast clicks the window center to throw the line
func (fb *FishingBehavior) cast(rect Region) {
	fb.status.Report(ActivityCastingLine, "Casting fishing line...")
	fb.move.ClickAt(rect.Center())
	fb.progress.reset()
	fb.clock.Sleep(castPause)
	fb.status.Report(ActivityWaitingForFish, "Waiting for fish to bite...")
}

// waitForBite polls for the bite cue and hands over to the minigame
func (fb *FishingBehavior) waitForBite(title string, rect Region) {
	cfg := fb.conf()
	for fb.alive() {
		if fb.stalled() {
			fb.recover(title)
			return
		}
		if m := fb.find(rect, CueCatchFish, thresholdRare); m.Found {
			fb.progress.reset()
			fb.move.MoveTo(m.Location)
			fb.clock.Sleep(bitePause)
			fb.playMinigame(title)
			return
		}
		fb.clock.Sleep(cfg.CheckInterval)
	}
}

// playMinigame holds the mouse and steers the lane until a terminal cue.
//
// Algorithm (per tick of SpamInterval):
//   1. Stall check -> recover
//   2. Arrow with score > 0.8 -> shift lane, report, pause 200ms
//   3. Apply lane keys
//   4. Every 5s report tick count and lane
//   5. Every TerminalCheck: continue (plain, then highlighted) at 0.8 and
//      default screen at 0.9; continue wins, default screen means escape
//
// Every exit path releases the mouse button and both movement keys.
func (fb *FishingBehavior) playMinigame(title string) {
	cfg := fb.conf()
	LogInfo("[MINIGAME] Fish took the bait")
	fb.status.Report(ActivityFishDetected, "Fish took the bait!")
	fb.progress.reset()

	lane := LaneCenter
	fb.move.MouseDown()
	fb.status.Report(ActivityPlayingMinigame, "Holding click for minigame...")

	counter := 0
	lastPrint := fb.clock.Now()
	lastCheck := fb.clock.Now()

	for fb.alive() {
		if fb.stalled() {
			fb.recover(title)
			return
		}

		counter++
		fb.clock.Sleep(cfg.SpamInterval)

		rect, ok := fb.window.Rect(title)
		if !ok {
			continue
		}

		if arrow, score := fb.eyes.FindArrow(rect); arrow != ArrowNone && score > thresholdArrow {
			fb.progress.reset()
			fb.status.SetActivity(ActivityDetectingArrow)
			lane = lane.Shift(arrow)
			if arrow == ArrowRight {
				fb.status.Report(ActivityMovingRight, "Arrow RIGHT detected, lane = %d", lane)
			} else {
				fb.status.Report(ActivityMovingLeft, "Arrow LEFT detected, lane = %d", lane)
			}
			fb.clock.Sleep(arrowPause)
		}

		if fb.move.ApplyLane(lane) == ActivityCenterLane {
			fb.status.SetActivity(ActivityCenterLane)
		}

		if fb.clock.Now().Sub(lastPrint) >= minigameReport {
			LogDebug("[MINIGAME] %d ticks, lane=%d", counter, lane)
			fb.status.SetDetail("Minigame: %d ticks, lane = %d", counter, lane)
			lastPrint = fb.clock.Now()
		}

		if fb.clock.Now().Sub(lastCheck) >= cfg.TerminalCheck {
			cont := fb.find(rect, CueContinue, thresholdContinue)
			if !cont.Found {
				cont = fb.find(rect, CueContinueHighlight, thresholdContinue)
			}
			escaped := fb.find(rect, CueDefaultScreen, thresholdRare)
			lastCheck = fb.clock.Now()

			if cont.Found {
				fb.onContinue(title, rect, cont.Location)
				return
			}
			if escaped.Found {
				fb.onEscape()
				return
			}
		}
	}

	fb.move.ReleaseAll()
}

// onContinue handles a caught fish: identify, score, log and dismiss.
func (fb *FishingBehavior) onContinue(title string, rect Region, pos Point) {
	fb.progress.reset()
	fb.status.Report(ActivityWaitingForContinue, "Continue button found!")

	fb.mu.Lock()
	if fb.continuePos == nil {
		p := pos
		fb.continuePos = &p
	}
	fb.mu.Unlock()

	LogInfo("[MINIGAME] Continue button found, releasing click")
	fb.move.MouseUp()

	fb.status.Report(ActivityDetectingFishType, "Detecting fish type...")
	fb.clock.Sleep(resultRenderPause)
	fishType := fb.detectFish(rect)

	xp := fb.xpFor(fishType)
	fb.status.IncrementCatch(xp)
	st := fb.status.Stats()
	LogInfo("Catch recorded: catches=%d, misses=%d, xp=%d, rate=%.1f%%", st.Catches, st.Misses, st.XP, st.Rate)
	fb.journal.LogCatch(true, fishType, xp)

	fb.status.Report(ActivityClickingContinue, "Clicking continue button...")
	fb.clickContinue(title, rect)

	fb.move.ReleaseLaneKeys()
	fb.status.Report(ActivityWaitingForDefaultScreen, "Ready for next catch")
}

// detectFish runs OCR up to OCRAttempts times and returns the first name
// whose confidence reaches OCRMinConfidence, or "".
func (fb *FishingBehavior) detectFish(rect Region) string {
	cfg := fb.conf()
	for attempt := 1; attempt <= cfg.OCRAttempts; attempt++ {
		fb.status.SetDetail("Detecting fish (attempt %d/%d)...", attempt, cfg.OCRAttempts)
		name, score := fb.eyes.FindFishName(rect)
		if name != "" {
			if !fb.fish.Exists(name) {
				LogWarn("[CONFIG] Fish '%s' not found in fish_config.json", name)
			}
			if score >= cfg.OCRMinConfidence {
				LogInfo("[FISH_DETECT] Detected fish: %s (score: %.3f)", name, score)
				fb.status.SetDetail("Caught: %s (%.0f%% match)", name, score*100)
				return name
			}
		}
		fb.clock.Sleep(ocrRetryPause)
	}
	return ""
}

// xpFor returns the catalog xp, or 1 for unidentified or unknown fish
func (fb *FishingBehavior) xpFor(fishType string) int {
	if fishType == "" {
		return 1
	}
	if xp := fb.fish.XPByType(fishType); xp > 0 {
		return xp
	}
	return 1
}

// clickContinue clicks the remembered continue position until the button is gone
func (fb *FishingBehavior) clickContinue(title string, rect Region) {
	tries, ok := RetryUntil(continueRetries,
		func(i int) {
			fb.window.Focus(title)
			if pos, saved := fb.ContinuePosition(); saved {
				fb.move.ClickAt(pos)
				fb.status.SetDetail("Click attempt %d/%d", i+1, continueRetries)
				fb.clock.Sleep(continueClickWait)
			}
		},
		func() bool {
			return !fb.eyes.FindImage(rect, CueContinue, thresholdStillThere).Found &&
				!fb.eyes.FindImage(rect, CueContinueHighlight, thresholdStillThere).Found
		},
	)
	if !ok {
		LogWarn("[MINIGAME] Continue button still visible after %d clicks", tries)
	}
}

// onEscape handles a fish that got away
func (fb *FishingBehavior) onEscape() {
	LogInfo("[MINIGAME] Minigame failed. Fish escaped.")
	fb.status.Report(ActivityMinigameFailed, "Minigame failed, fish escaped!")
	fb.move.ReleaseAll()

	fb.status.IncrementMiss()
	fb.journal.LogCatch(false, "", 0)

	fb.clock.Sleep(escapePause)
	fb.status.Report(ActivityWaitingForDefaultScreen, "Ready for next catch")
}

// recover runs the stall recovery protocol.
//
// Algorithm:
//   1. Release mouse and movement keys
//   2. While running:
//      - window gone: Stop ("Game window lost")
//      - default screen at 0.9: close session, pause, start (new session)
//      - otherwise: cancel key, interact key, pause, retry
func (fb *FishingBehavior) recover(title string) {
	limit := fb.conf().NoProgressLimit
	LogInfo("[RECOVERY] No progress for %s, starting recovery", limit)
	fb.status.Report(ActivityRecoveringFromTimeout, "No progress for %ds, recovering...", int(limit.Seconds()))
	fb.move.ReleaseAll()

	for fb.alive() {
		rect, ok := fb.window.Rect(title)
		if !ok {
			fb.stop("Game window lost")
			fb.clock.Sleep(windowLostPause)
			continue
		}

		if fb.find(rect, CueDefaultScreen, thresholdRare).Found {
			LogInfo("[RECOVERY] Default screen detected, restarting session")
			fb.status.SetDetail("Recovery successful, restarting...")
			fb.progress.reset()

			fb.restart()
			return
		}

		fb.status.SetDetail("Pressing ESC and fish key...")
		fb.move.CancelAndInteract(recoveryKeyPause)
		fb.progress.reset()
		fb.clock.Sleep(recoveryPause)
	}
}
