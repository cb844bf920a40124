package main

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when the loop sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time

	onSleep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
}

// fakeGame plays the game side: it answers perception queries from its phase
// and moves between phases when the loop sends input.
//
// Phases: idle -> waiting (cast click) -> minigame (mouse down)
// -> result (mouse up) -> done (click while result)
type fakeGame struct {
	clock *fakeClock

	title    string
	windowOK bool
	rect     Region

	phase      string
	minigameAt time.Time
	events     []string

	find      func(g *fakeGame, cue string) MatchResult
	arrow     func(g *fakeGame) (Arrow, float64)
	fishName  string
	fishScore float64
	fishCalls int

	selects  int
	onSelect func(g *fakeGame)
}

func newFakeGame(clock *fakeClock) *fakeGame {
	return &fakeGame{
		clock:    clock,
		title:    "Game",
		windowOK: true,
		rect:     Region{Left: 0, Top: 0, Width: 1920, Height: 1080},
		phase:    "idle",
	}
}

func hit(x, y int, score float64) MatchResult {
	return MatchResult{Found: true, Location: Point{X: x, Y: y}, Score: score, Size: Point{X: 40, Y: 20}}
}

func (g *fakeGame) sinceMinigame() time.Duration {
	return g.clock.Now().Sub(g.minigameAt)
}

func (g *fakeGame) sent(event string) bool {
	for _, e := range g.events {
		if e == event {
			return true
		}
	}
	return false
}

func (g *fakeGame) count(event string) int {
	n := 0
	for _, e := range g.events {
		if e == event {
			n++
		}
	}
	return n
}

func (g *fakeGame) indexOf(event string) int {
	for i, e := range g.events {
		if e == event {
			return i
		}
	}
	return -1
}

// Perception

func (g *fakeGame) FindImage(rect Region, cue string, threshold float64) MatchResult {
	if g.find == nil {
		return MatchResult{}
	}
	return g.find(g, cue)
}

func (g *fakeGame) FindArrow(rect Region) (Arrow, float64) {
	if g.arrow == nil {
		return ArrowNone, 0
	}
	return g.arrow(g)
}

func (g *fakeGame) FindFishName(rect Region) (string, float64) {
	g.fishCalls++
	return g.fishName, g.fishScore
}

// Actuator

func (g *fakeGame) Click(x, y int) error {
	g.events = append(g.events, fmt.Sprintf("click %d,%d", x, y))
	switch {
	case g.phase == "idle" && x == g.rect.Center().X && y == g.rect.Center().Y:
		g.phase = "waiting"
	case g.phase == "result":
		g.phase = "done"
	}
	return nil
}

func (g *fakeGame) MoveMouse(x, y int) error {
	g.events = append(g.events, fmt.Sprintf("move %d,%d", x, y))
	return nil
}

func (g *fakeGame) MouseDown() error {
	g.events = append(g.events, "down")
	if g.phase == "waiting" {
		g.phase = "minigame"
		g.minigameAt = g.clock.Now()
	}
	return nil
}

func (g *fakeGame) MouseUp() error {
	g.events = append(g.events, "up")
	if g.phase == "minigame" {
		g.phase = "result"
	}
	return nil
}

func (g *fakeGame) SendKey(key string, mode KeyMode) error {
	g.events = append(g.events, fmt.Sprintf("key %s %s", key, mode))
	return nil
}

// WindowLocator

func (g *fakeGame) Select() (string, bool) {
	g.selects++
	if g.onSelect != nil {
		g.onSelect(g)
	}
	if !g.windowOK {
		return "", false
	}
	return g.title, true
}

func (g *fakeGame) Rect(title string) (Region, bool) {
	if !g.windowOK || title != g.title {
		return Region{}, false
	}
	return g.rect, true
}

func (g *fakeGame) Focus(title string) {
	g.events = append(g.events, "focus")
}

type fakeFish map[string]int

func (f fakeFish) Exists(name string) bool { _, ok := f[name]; return ok }
func (f fakeFish) XPByType(name string) int { return f[name] }

var testKeys = map[string]string{
	KeyStart: "F9",
	KeyStop:  "F10",
	KeyRods:  "M",
	KeyBait:  "N",
	KeyFish:  "F",
	KeyEsc:   "ESC",
	KeyLeft:  "A",
	KeyRight: "D",
}

func testFishingConfig() FishingConfig {
	return FishingConfigFrom(DefaultBotConfig())
}

func newTestBehavior(t *testing.T, g *fakeGame) (*FishingBehavior, *SharedStatus, *Journal) {
	t.Helper()
	status := NewSharedStatus()
	journal := NewJournal(t.TempDir())
	fb := NewFishingBehavior(FishingDeps{
		Status:  status,
		Eyes:    g,
		Input:   g,
		Window:  g,
		Journal: journal,
		Fish:    fakeFish{"glass_bottle": 5, "bluegill": 12},
		Keys:    func(name string) string { return testKeys[name] },
		Clock:   g.clock,
		Config:  testFishingConfig(),
	})
	return fb, status, journal
}

// catchScript shows the continue button one second into the minigame
func catchScript(cue string) func(g *fakeGame, cue string) MatchResult {
	return func(g *fakeGame, c string) MatchResult {
		switch c {
		case CueDefaultScreen:
			if g.phase == "idle" {
				return hit(960, 1000, 0.95)
			}
		case CueCatchFish:
			if g.phase == "waiting" {
				return hit(1200, 600, 0.93)
			}
		case cue:
			if (g.phase == "minigame" && g.sinceMinigame() >= time.Second) || g.phase == "result" {
				return hit(1500, 900, 0.95)
			}
		}
		return MatchResult{}
	}
}

func TestFishingSuccessfulCatch(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = catchScript(CueContinue)
	g.fishName, g.fishScore = "glass_bottle", DefaultOCRConfidence
	fb, status, journal := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()

	if g.phase != "done" {
		t.Fatalf("expected game phase done, got %s (events %v)", g.phase, g.events)
	}
	if !fb.IsActive() {
		t.Fatal("expected loop to be active after start")
	}

	st := status.Stats()
	if st.Catches != 1 || st.Misses != 0 || st.XP != 5 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.Rate != 100 {
		t.Errorf("expected rate 100, got %.1f", st.Rate)
	}

	catches := journal.Catches()
	if len(catches) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(catches))
	}
	if !catches[0].Catch || catches[0].FishType == nil || *catches[0].FishType != "glass_bottle" {
		t.Errorf("unexpected catch entry: %+v", catches[0])
	}

	if status.Activity() != ActivityWaitingForDefaultScreen {
		t.Errorf("expected WaitingForDefaultScreen, got %s", status.Activity())
	}
	if status.Detail() != "Ready for next catch" {
		t.Errorf("unexpected detail %q", status.Detail())
	}

	down, up := g.indexOf("down"), g.indexOf("up")
	if down < 0 || up < down {
		t.Errorf("expected mouse down before up, events %v", g.events)
	}
	if !g.sent("key A release") || !g.sent("key D release") {
		t.Errorf("expected both lane keys released, events %v", g.events)
	}
	if !g.sent("click 960,540") {
		t.Errorf("expected cast at window center, events %v", g.events)
	}
	if !g.sent("click 1500,900") {
		t.Errorf("expected click on continue button, events %v", g.events)
	}

	pos, ok := fb.ContinuePosition()
	if !ok || pos != (Point{X: 1500, Y: 900}) {
		t.Errorf("unexpected continue position %v %v", pos, ok)
	}
}

func TestFishingHighlightedContinueFallback(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = catchScript(CueContinueHighlight)
	g.fishName, g.fishScore = "bluegill", 0.81
	fb, status, _ := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()

	if !g.sent("click 1500,900") {
		t.Errorf("expected click at highlighted continue position, events %v", g.events)
	}
	if st := status.Stats(); st.Catches != 1 || st.XP != 12 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestFishingEscape(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = func(g *fakeGame, cue string) MatchResult {
		switch cue {
		case CueDefaultScreen:
			if g.phase == "idle" || (g.phase == "minigame" && g.sinceMinigame() >= 2*time.Second) {
				return hit(960, 1000, 0.95)
			}
		case CueCatchFish:
			if g.phase == "waiting" {
				return hit(1200, 600, 0.93)
			}
		}
		return MatchResult{}
	}
	fb, status, journal := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()

	st := status.Stats()
	if st.Catches != 0 || st.Misses != 1 || st.XP != 0 || st.Rate != 0 {
		t.Errorf("unexpected stats: %+v", st)
	}

	catches := journal.Catches()
	if len(catches) != 1 || catches[0].Catch || catches[0].FishType != nil {
		t.Fatalf("unexpected journal: %+v", catches)
	}
	if !g.sent("up") || !g.sent("key A release") || !g.sent("key D release") {
		t.Errorf("expected input released, events %v", g.events)
	}
	if status.Activity() != ActivityWaitingForDefaultScreen || status.Detail() != "Ready for next catch" {
		t.Errorf("unexpected status %s %q", status.Activity(), status.Detail())
	}
	if g.fishCalls != 0 {
		t.Errorf("expected no fish identification on escape, got %d calls", g.fishCalls)
	}
}

func TestFishingArrowsSteerLane(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = catchScript(CueContinue)
	arrows := []Arrow{ArrowRight, ArrowRight, ArrowNone, ArrowLeft}
	calls := 0
	g.arrow = func(g *fakeGame) (Arrow, float64) {
		defer func() { calls++ }()
		if calls < len(arrows) {
			return arrows[calls], 0.9
		}
		return ArrowNone, 0
	}
	fb, status, _ := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()

	if n := g.count("key D hold"); n != 1 {
		t.Errorf("expected right key held once, got %d (events %v)", n, g.events)
	}
	if g.sent("key A hold") {
		t.Errorf("left key must not be held when returning to center, events %v", g.events)
	}
	hold, release := g.indexOf("key D hold"), g.indexOf("key D release")
	if release < hold {
		t.Errorf("expected right key released after hold, events %v", g.events)
	}
}

func TestFishingLowConfidenceFishIsUnidentified(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = catchScript(CueContinue)
	g.fishName, g.fishScore = "glass_bottle", 0.4
	fb, status, journal := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()

	if g.fishCalls != 5 {
		t.Errorf("expected 5 identification attempts, got %d", g.fishCalls)
	}
	if st := status.Stats(); st.Catches != 1 || st.XP != 1 {
		t.Errorf("unidentified catch should award 1 xp: %+v", st)
	}
	if c := journal.Catches(); len(c) != 1 || c[0].FishType != nil {
		t.Errorf("expected catch without fish type: %+v", c)
	}
}

func TestFishingUnknownFishAwardsOneXP(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = catchScript(CueContinue)
	g.fishName, g.fishScore = "mystery_eel", 0.88
	fb, status, journal := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()

	if st := status.Stats(); st.XP != 1 {
		t.Errorf("expected 1 xp for fish missing from catalog, got %d", st.XP)
	}
	c := journal.Catches()
	if len(c) != 1 || c[0].FishType == nil || *c[0].FishType != "mystery_eel" {
		t.Errorf("expected fish type recorded: %+v", c)
	}
	if g.fishCalls != 1 {
		t.Errorf("expected first confident read accepted, got %d calls", g.fishCalls)
	}
}

func TestFishingBrokenRod(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = func(g *fakeGame, cue string) MatchResult {
		switch cue {
		case CueDefaultScreen:
			return hit(960, 1000, 0.95)
		case CueBrokenPole:
			return hit(100, 100, 0.97)
		case CueUseRod:
			return hit(700, 400, 0.92)
		}
		return MatchResult{}
	}
	fb, status, journal := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()

	if !g.sent("key M press") {
		t.Errorf("expected rods key press, events %v", g.events)
	}
	if !g.sent("click 700,400") {
		t.Errorf("expected click on use rod button, events %v", g.events)
	}
	if g.sent("click 960,540") {
		t.Error("must not cast while the rod is broken")
	}
	if n := len(journal.BrokenRods()); n != 1 {
		t.Errorf("expected 1 broken rod entry, got %d", n)
	}
	if status.Activity() != ActivitySelectingNewRod {
		t.Errorf("expected SelectingNewRod, got %s", status.Activity())
	}
}

func TestFishingStallRecoveryRestartsSession(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = func(g *fakeGame, cue string) MatchResult {
		if cue == CueDefaultScreen && g.sent("key F press") {
			return hit(960, 1000, 0.95)
		}
		return MatchResult{}
	}
	fb, status, journal := newTestBehavior(t, g)
	start := g.clock.Now()

	status.RequestStart()
	for i := 0; i < 5000 && len(journal.Sessions()) < 2; i++ {
		fb.tick()
	}

	if elapsed := g.clock.Now().Sub(start); elapsed < 45*time.Second {
		t.Errorf("recovery started too early: %s", elapsed)
	}

	esc, fish := g.indexOf("key ESC press"), g.indexOf("key F press")
	if esc < 0 || fish < esc {
		t.Errorf("expected cancel then interact key, events %v", g.events)
	}

	sessions := journal.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].Open() || !sessions[1].Open() {
		t.Errorf("expected first session closed and second open: %+v", sessions)
	}
	if !status.IsRunning() || !fb.IsActive() {
		t.Error("expected loop running after recovery")
	}
	if !strings.HasPrefix(status.Detail(), "Connected to: ") {
		t.Errorf("unexpected detail %q", status.Detail())
	}
}

func TestFishingRecoveryWindowLostStops(t *testing.T) {
	g := newFakeGame(newFakeClock())
	fb, status, journal := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()
	g.windowOK = false
	g.clock.Sleep(46 * time.Second)
	fb.tick()

	if status.IsRunning() || fb.IsActive() {
		t.Error("expected loop stopped after losing the window")
	}
	if status.Activity() != ActivityStopped || status.Detail() != "Game window lost" {
		t.Errorf("unexpected status %s %q", status.Activity(), status.Detail())
	}
	if journal.HasOpenSession() {
		t.Error("expected session closed")
	}
}

func TestFishingStartWithoutWindow(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.windowOK = false
	fb, status, journal := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()

	if status.Activity() != ActivityIdle || status.Detail() != "No game window found" {
		t.Errorf("unexpected status %s %q", status.Activity(), status.Detail())
	}
	if !status.IsRunning() {
		t.Error("run flag should stay set so start is retried")
	}
	if fb.IsActive() || len(journal.Sessions()) != 0 {
		t.Error("no session should be opened without a window")
	}

	g.windowOK = true
	failedAt := g.clock.Now()
	for i := 0; i < 100 && !fb.IsActive(); i++ {
		fb.tick()
	}
	if !fb.IsActive() {
		t.Fatal("expected retry to connect once the window appears")
	}
	if g.selects != 2 {
		t.Errorf("window lookup should back off between attempts, got %d lookups", g.selects)
	}
	if waited := g.clock.Now().Sub(failedAt); waited < windowRetryPause {
		t.Errorf("retried after %s, want at least %s", waited, windowRetryPause)
	}
}

func TestFishingStopIsIdempotent(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = catchScript(CueContinue)
	g.fishName, g.fishScore = "glass_bottle", DefaultOCRConfidence
	fb, status, journal := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()
	status.RequestStop()
	fb.tick()

	if status.Activity() != ActivityStopped || status.Detail() != "Bot stopped by user" {
		t.Fatalf("unexpected status %s %q", status.Activity(), status.Detail())
	}
	before := status.Stats()

	fb.stop("second stop")
	fb.tick()

	if status.Stats() != before {
		t.Errorf("stats changed on repeated stop: %+v -> %+v", before, status.Stats())
	}
	if status.Activity() != ActivityStopped || status.Detail() != "Bot stopped by user" {
		t.Errorf("repeated stop changed status: %s %q", status.Activity(), status.Detail())
	}
	if _, ok := fb.ContinuePosition(); ok {
		t.Error("continue position should be cleared on stop")
	}
	sessions := journal.Sessions()
	if len(sessions) != 1 || sessions[0].Open() {
		t.Errorf("expected one closed session: %+v", sessions)
	}
}

func TestFishingStopDuringWindowSelection(t *testing.T) {
	g := newFakeGame(newFakeClock())
	fb, status, journal := newTestBehavior(t, g)
	g.onSelect = func(*fakeGame) { status.RequestStop() }

	status.RequestStart()
	fb.tick()

	if status.IsRunning() || fb.IsActive() {
		t.Error("stop requested during window lookup must win")
	}
	if status.Activity() != ActivityStopped {
		t.Errorf("expected Stopped, got %s", status.Activity())
	}
	if n := len(journal.Sessions()); n != 0 {
		t.Errorf("no session should be opened, got %d", n)
	}

	fb.tick()
	if g.selects != 1 {
		t.Errorf("stopped loop must not look for the window again, got %d lookups", g.selects)
	}
}

func TestFishingStopDuringRecoveryRestart(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = func(g *fakeGame, cue string) MatchResult {
		if cue == CueDefaultScreen && g.sent("key F press") {
			return hit(960, 1000, 0.95)
		}
		return MatchResult{}
	}
	fb, status, journal := newTestBehavior(t, g)

	stopped := false
	g.clock.onSleep = func(d time.Duration) {
		if !stopped && d == restartPause && g.sent("key F press") {
			stopped = true
			status.RequestStop()
		}
	}

	status.RequestStart()
	for i := 0; i < 5000 && !stopped; i++ {
		fb.tick()
	}
	if !stopped {
		t.Fatal("recovery never reached the restart pause")
	}
	fb.tick()

	if status.IsRunning() || fb.IsActive() {
		t.Error("stop requested during the restart pause must win")
	}
	if status.Activity() != ActivityStopped || status.Detail() != "Bot stopped by user" {
		t.Errorf("unexpected status %s %q", status.Activity(), status.Detail())
	}
	sessions := journal.Sessions()
	if len(sessions) != 1 || sessions[0].Open() {
		t.Errorf("expected the single session closed and no new one: %+v", sessions)
	}
	if g.selects != 1 {
		t.Errorf("restart must not look for the window after the stop, got %d lookups", g.selects)
	}
}

func TestFishingContinueClickRetries(t *testing.T) {
	g := newFakeGame(newFakeClock())
	base := catchScript(CueContinue)
	g.find = func(g *fakeGame, cue string) MatchResult {
		if cue == CueContinue && g.phase == "done" {
			g.events = append(g.events, "look continue")
			if g.count("click 1500,900") < 2 {
				return hit(1500, 900, 0.9)
			}
			return MatchResult{}
		}
		return base(g, cue)
	}
	g.fishName, g.fishScore = "bluegill", DefaultOCRConfidence
	fb, status, _ := newTestBehavior(t, g)

	status.RequestStart()
	fb.tick()

	if n := g.count("click 1500,900"); n != 2 {
		t.Fatalf("expected 2 clicks at the remembered position, got %d (events %v)", n, g.events)
	}
	first := g.indexOf("click 1500,900")
	look := g.indexOf("look continue")
	last := -1
	for i, e := range g.events {
		if e == "click 1500,900" {
			last = i
		}
	}
	if !(first < look && look < last) {
		t.Errorf("expected a re-check between clicks, events %v", g.events)
	}
	if n := g.count("look continue"); n != 2 {
		t.Errorf("expected clicking to stop once the button is gone, got %d checks", n)
	}
	if n := g.count("focus"); n != 2 {
		t.Errorf("expected the window focused before each click, got %d", n)
	}
	if st := status.Stats(); st.Catches != 1 {
		t.Errorf("retries must not count extra catches: %+v", st)
	}
}

func TestFishingStopDuringMinigameReleasesInput(t *testing.T) {
	g := newFakeGame(newFakeClock())
	g.find = func(g *fakeGame, cue string) MatchResult {
		switch cue {
		case CueDefaultScreen:
			if g.phase == "idle" {
				return hit(960, 1000, 0.95)
			}
		case CueCatchFish:
			if g.phase == "waiting" {
				return hit(1200, 600, 0.93)
			}
		}
		return MatchResult{}
	}
	fb, status, journal := newTestBehavior(t, g)

	calls := 0
	stopAt := -1
	g.arrow = func(g *fakeGame) (Arrow, float64) {
		calls++
		if calls == 3 {
			stopAt = len(g.events)
			status.RequestStop()
		}
		return ArrowRight, 0.9
	}

	status.RequestStart()
	fb.tick()
	fb.tick()

	if stopAt < 0 {
		t.Fatal("minigame never started")
	}
	after := g.events[stopAt:]
	for _, want := range []string{"up", "key A release", "key D release"} {
		found := false
		for _, e := range after {
			if e == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %q after the stop, events %v", want, after)
		}
	}
	if journal.HasOpenSession() {
		t.Error("expected session closed")
	}
	if status.Activity() != ActivityStopped || fb.IsActive() {
		t.Errorf("expected stopped loop, got %s active=%v", status.Activity(), fb.IsActive())
	}
	if st := status.Stats(); st.Catches != 0 || st.Misses != 0 {
		t.Errorf("an interrupted minigame is neither catch nor miss: %+v", st)
	}
}

func TestProgressTimer(t *testing.T) {
	clock := newFakeClock()
	p := progressTimer{clock: clock}
	p.reset()
	clock.Sleep(3 * time.Second)
	if got := p.elapsed(); got != 3*time.Second {
		t.Errorf("expected 3s, got %s", got)
	}
	p.reset()
	if got := p.elapsed(); got != 0 {
		t.Errorf("expected 0 after reset, got %s", got)
	}
}
