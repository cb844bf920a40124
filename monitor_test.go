package main

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestMonitorURLs(t *testing.T) {
	if got := wsURL("127.0.0.1:7878"); got != "ws://127.0.0.1:7878/ws" {
		t.Errorf("wsURL = %q", got)
	}
	if got := controlURL("localhost:9000", "start"); got != "http://localhost:9000/api/start" {
		t.Errorf("controlURL = %q", got)
	}
}

func TestMonitorViewOffline(t *testing.T) {
	m := newMonitorModel("127.0.0.1:7878", nil)
	view := m.View()
	for _, want := range []string{"Fish Bot Monitor", "OFFLINE", "q quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if m.listen() != nil {
		t.Error("listen without a connection must return nil")
	}
}

func TestMonitorUpdateSnapshot(t *testing.T) {
	m := newMonitorModel("127.0.0.1:7878", nil)
	snap := Snapshot{
		Running:  true,
		Activity: ActivityPlayingMinigame.Description(),
		Detail:   "Arrow RIGHT detected, lane = 1",
		Stats:    StatsJSON{Catches: 3, Misses: 1, XP: 42, Rate: "75.00"},
	}

	model, _ := m.Update(snapshotMsg(snap))
	m = model.(*monitorModel)
	if !m.connected || m.snap.Stats.XP != 42 {
		t.Fatalf("snapshot not applied: %+v", m.snap)
	}

	view := m.View()
	for _, want := range []string{"RUNNING", "75.00%", "42", "lane = 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMonitorUpdateDisconnectAndErrors(t *testing.T) {
	m := newMonitorModel("127.0.0.1:7878", nil)
	m.connected = true

	model, _ := m.Update(disconnectedMsg{err: errors.New("eof")})
	m = model.(*monitorModel)
	if m.connected || !strings.Contains(m.errMsg, "eof") {
		t.Errorf("disconnect not recorded: connected=%v err=%q", m.connected, m.errMsg)
	}

	model, _ = m.Update(controlDoneMsg{err: errors.New("start: 500 Internal Server Error")})
	m = model.(*monitorModel)
	if !strings.Contains(m.View(), "500") {
		t.Error("control error must be shown")
	}

	model, _ = m.Update(controlDoneMsg{})
	m = model.(*monitorModel)
	if m.errMsg != "" {
		t.Errorf("successful control must clear the error, got %q", m.errMsg)
	}
}

func TestMonitorKeys(t *testing.T) {
	m := newMonitorModel("127.0.0.1:7878", nil)

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}); cmd == nil {
		t.Error("s must issue a start request")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}); cmd == nil {
		t.Error("x must issue a stop request")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q must quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q must produce tea.QuitMsg")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("z")}); cmd != nil {
		t.Error("unbound key must do nothing")
	}
}

func TestCardPlaceholder(t *testing.T) {
	if !strings.Contains(card("Detail", ""), "-") {
		t.Error("empty card value must render a placeholder")
	}
}
