// Package main - tray.go
//
// This file implements the system tray UI. Uses getlantern/systray library for
// cross-platform tray menu support.
//
// Menu Structure:
//
//	Fish Bot
//	├─ Status: <activity description>   (read-only)
//	├─ <detail>                         (read-only)
//	├─ <catches | misses | xp | rate>   (read-only)
//	├─ Start
//	├─ Stop
//	├─ Hotkeys: F9 / F10                (read-only)
//	└─ Quit
//
// The read-only lines are refreshed from SharedStatus.Snapshot every 250ms.
// Start and Stop only flip the run flag, the same as the hotkeys.
//
// Lifecycle:
//  1. NewTrayApp: Create instance with the shared status
//  2. Run: Start systray (blocking call)
//  3. onReady: Build the menu, start the refresh loop and event handler
//  4. Quit: Request stop, wait for the loop to close the session, exit
package main

import (
	"fmt"
	"time"

	"github.com/getlantern/systray"
)

const (
	trayRefreshInterval = 250 * time.Millisecond
	trayQuitWait        = time.Second
)

// TrayApp manages the system tray application.
type TrayApp struct {
	status *SharedStatus

	// loopActive reports whether the fishing loop still holds a session
	loopActive func() bool
	// hotkeys returns the current start/stop bindings for display
	hotkeys func() (start, stop string)
	// onExit runs after the tray closes (cancels the app context)
	onExit func()

	statusItem  *systray.MenuItem
	detailItem  *systray.MenuItem
	statsItem   *systray.MenuItem
	startItem   *systray.MenuItem
	stopItem    *systray.MenuItem
	hotkeysItem *systray.MenuItem
	quitItem    *systray.MenuItem

	done chan struct{}
}

// NewTrayApp creates a new tray application
func NewTrayApp(status *SharedStatus, loopActive func() bool, hotkeys func() (string, string), onExit func()) *TrayApp {
	return &TrayApp{
		status:     status,
		loopActive: loopActive,
		hotkeys:    hotkeys,
		onExit:     onExit,
		done:       make(chan struct{}),
	}
}

// Run starts the tray application; blocks until Quit
func (t *TrayApp) Run() {
	LogInfo("Starting system tray application")
	systray.Run(t.onReady, func() {
		LogInfo("System tray onExit callback triggered")
		close(t.done)
		if t.onExit != nil {
			t.onExit()
		}
	})
	LogInfo("System tray Run() returned")
}

// onReady is called when the tray is ready
func (t *TrayApp) onReady() {
	systray.SetTitle("Fish Bot")
	systray.SetTooltip("Fishing minigame bot")

	t.statusItem = systray.AddMenuItem("Status: Starting...", "Current activity")
	t.statusItem.Disable()
	t.detailItem = systray.AddMenuItem("", "Current detail")
	t.detailItem.Disable()
	t.statsItem = systray.AddMenuItem(formatStatsLine(Stats{}), "Session statistics")
	t.statsItem.Disable()

	systray.AddSeparator()

	t.startItem = systray.AddMenuItem("Start", "Start fishing")
	t.stopItem = systray.AddMenuItem("Stop", "Stop fishing")

	systray.AddSeparator()

	start, stop := t.hotkeys()
	t.hotkeysItem = systray.AddMenuItem(formatHotkeysLine(start, stop), "Global hotkeys")
	t.hotkeysItem.Disable()

	systray.AddSeparator()
	t.quitItem = systray.AddMenuItem("Quit", "Stop the bot and exit")

	t.refresh()
	go t.refreshLoop()
	go t.handleEvents()
}

// handleEvents handles tray menu events
func (t *TrayApp) handleEvents() {
	for {
		select {
		case <-t.startItem.ClickedCh:
			if !t.status.IsRunning() {
				LogInfo("[TRAY] Start clicked")
				t.status.RequestStart()
			}
		case <-t.stopItem.ClickedCh:
			if t.status.IsRunning() {
				LogInfo("[TRAY] Stop clicked")
				t.status.RequestStop()
			}
		case <-t.quitItem.ClickedCh:
			LogInfo("Quit requested by user")
			t.quit()
			return
		case <-t.done:
			return
		}
	}
}

// quit stops the bot and gives the loop one tick to close the session
func (t *TrayApp) quit() {
	t.status.RequestStop()
	deadline := time.Now().Add(trayQuitWait)
	for t.loopActive() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	LogInfo("Quitting system tray...")
	systray.Quit()
}

func (t *TrayApp) refreshLoop() {
	ticker := time.NewTicker(trayRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

// refresh copies the snapshot into the menu lines
func (t *TrayApp) refresh() {
	snap := t.status.Snapshot()
	t.statusItem.SetTitle(fmt.Sprintf("Status: %s", snap.Activity))
	t.detailItem.SetTitle(snap.Detail)
	t.statsItem.SetTitle(formatStatsLine(t.status.Stats()))

	if snap.Running {
		t.startItem.Disable()
		t.stopItem.Enable()
	} else {
		t.startItem.Enable()
		t.stopItem.Disable()
	}

	start, stop := t.hotkeys()
	t.hotkeysItem.SetTitle(formatHotkeysLine(start, stop))
}

// formatStatsLine renders "12 catches | 3 misses | 450 xp | 80.00%"
func formatStatsLine(st Stats) string {
	return fmt.Sprintf("%d catches | %d misses | %d xp | %.2f%%", st.Catches, st.Misses, st.XP, st.Rate)
}

func formatHotkeysLine(start, stop string) string {
	return fmt.Sprintf("Hotkeys: %s / %s", start, stop)
}
