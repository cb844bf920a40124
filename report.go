// Package main - report.go
//
// Daily statistics report rendered with lipgloss for the stats command.
package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const reportBarWidth = 30

var (
	reportHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	reportMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	reportBarStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#1890FF"))
	reportWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FA8C16"))
)

// RenderDaySummary renders the report for one day
func RenderDaySummary(s DaySummary) string {
	var b strings.Builder
	b.WriteString(reportHeaderStyle.Render("Fishing report " + s.Date))
	b.WriteString("\n\n")

	if s.Caught+s.Missed == 0 && s.BrokenRods == 0 {
		b.WriteString(reportMutedStyle.Render("No activity recorded."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		card("Caught", fmt.Sprintf("%d", s.Caught)),
		card("Missed", fmt.Sprintf("%d", s.Missed)),
		card("XP", fmt.Sprintf("%d", s.XP)),
		card("XP/hour", fmt.Sprintf("%.1f", s.XPPerHour)),
		card("Catch rate", fmt.Sprintf("%.1f%%", s.CatchRate)),
	))
	b.WriteString("\n")

	if s.BrokenRods > 0 {
		b.WriteString(reportWarnStyle.Render(fmt.Sprintf("Broken rods: %d", s.BrokenRods)))
		b.WriteString("\n")
	}

	if len(s.Fish) > 0 {
		b.WriteString("\n")
		b.WriteString(reportHeaderStyle.Render("Catches by fish"))
		b.WriteString("\n")
		b.WriteString(renderFishBars(s.Fish))
	}

	if len(s.Hours) > 0 {
		b.WriteString("\n")
		b.WriteString(reportHeaderStyle.Render("By hour"))
		b.WriteString("\n")
		for _, h := range s.Hours {
			line := fmt.Sprintf("%02d:00  %3d caught  %3d missed  %5d xp", h.Hour, h.Catch, h.Fail, h.XP)
			if h.BrokenRods > 0 {
				line += reportWarnStyle.Render(fmt.Sprintf("  %d broken", h.BrokenRods))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderFishBars draws one bar per fish scaled to the most caught one
func renderFishBars(fish []FishCount) string {
	width := 0
	top := 0
	for _, f := range fish {
		width = max(width, len(f.Type))
		top = max(top, f.Count)
	}

	var b strings.Builder
	for _, f := range fish {
		n := 0
		if top > 0 {
			n = f.Count * reportBarWidth / top
		}
		n = max(n, 1)
		fmt.Fprintf(&b, "%-*s %s %d\n", width, f.Type, reportBarStyle.Render(strings.Repeat("█", n)), f.Count)
	}
	return b.String()
}

// RenderDates lists the days that have data
func RenderDates(dates []string) string {
	if len(dates) == 0 {
		return reportMutedStyle.Render("No statistics recorded yet.") + "\n"
	}
	var b strings.Builder
	b.WriteString(reportHeaderStyle.Render("Available dates"))
	b.WriteString("\n")
	for _, d := range dates {
		b.WriteString("  " + d + "\n")
	}
	b.WriteString(reportMutedStyle.Render("Run: fish-bot stats <date>"))
	b.WriteString("\n")
	return b.String()
}
