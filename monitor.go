// Package main - monitor.go
//
// Terminal monitor for a running bot. Connects to the status server's
// websocket and renders every snapshot; s/x post start/stop requests.
package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

var (
	monitorTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F0F0F0")).
				Bold(true).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#C89A3A"))
	cardStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	stoppedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

type snapshotMsg Snapshot

type disconnectedMsg struct{ err error }

type controlDoneMsg struct{ err error }

// monitorModel implements the Bubble Tea monitor UI.
type monitorModel struct {
	addr   string
	conn   *websocket.Conn
	client *http.Client

	snap      Snapshot
	connected bool
	errMsg    string
	updated   time.Time

	spinner spinner.Model
}

func newMonitorModel(addr string, conn *websocket.Conn) *monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle
	return &monitorModel{
		addr:      addr,
		conn:      conn,
		client:    &http.Client{Timeout: 5 * time.Second},
		connected: conn != nil,
		spinner:   sp,
	}
}

// Init implements tea.Model.
func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

// listen reads one snapshot from the websocket
func (m *monitorModel) listen() tea.Cmd {
	if m.conn == nil {
		return nil
	}
	conn := m.conn
	return func() tea.Msg {
		var snap Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			return disconnectedMsg{err: err}
		}
		return snapshotMsg(snap)
	}
}

// control posts to /api/start or /api/stop
func (m *monitorModel) control(action string) tea.Cmd {
	target := controlURL(m.addr, action)
	client := m.client
	return func() tea.Msg {
		resp, err := client.Post(target, "application/json", nil)
		if err != nil {
			return controlDoneMsg{err: err}
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return controlDoneMsg{err: fmt.Errorf("%s: %s", action, resp.Status)}
		}
		return controlDoneMsg{}
	}
}

// Update implements tea.Model.
func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			return m, m.control("start")
		case "x":
			return m, m.control("stop")
		}
		return m, nil
	case snapshotMsg:
		m.snap = Snapshot(msg)
		m.connected = true
		m.updated = time.Now()
		return m, m.listen()
	case disconnectedMsg:
		m.connected = false
		m.errMsg = fmt.Sprintf("disconnected: %v", msg.err)
		return m, nil
	case controlDoneMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		} else {
			m.errMsg = ""
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *monitorModel) View() string {
	var b strings.Builder
	b.WriteString(monitorTitleStyle.Render("Fish Bot Monitor"))
	b.WriteString("\n")

	state := stoppedStyle.Render("STOPPED")
	if m.snap.Running {
		state = m.spinner.View() + " " + runningStyle.Render("RUNNING")
	}
	if !m.connected {
		state = errorStyle.Render("OFFLINE")
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		card("State", state),
		card("Activity", m.snap.Activity),
	)
	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Catches", fmt.Sprintf("%d", m.snap.Stats.Catches)),
		card("Misses", fmt.Sprintf("%d", m.snap.Stats.Misses)),
		card("XP", fmt.Sprintf("%d", m.snap.Stats.XP)),
		card("Rate", m.snap.Stats.Rate+"%"),
	)

	b.WriteString(top)
	b.WriteString("\n")
	b.WriteString(card("Detail", m.snap.Detail))
	b.WriteString("\n")
	b.WriteString(stats)
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render("s start • x stop • q quit"))
	return b.String()
}

func card(title, value string) string {
	if value == "" {
		value = "-"
	}
	return cardStyle.Render(cardTitleStyle.Render(title) + "\n" + cardValueStyle.Render(value))
}

// wsURL builds the websocket URL for a host:port address
func wsURL(addr string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	return u.String()
}

// controlURL builds the start/stop endpoint for a host:port address
func controlURL(addr, action string) string {
	u := url.URL{Scheme: "http", Host: addr, Path: "/api/" + action}
	return u.String()
}

// RunMonitor connects to addr and runs the monitor until the user quits
func RunMonitor(addr string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(addr), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	p := tea.NewProgram(newMonitorModel(addr, conn), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}
