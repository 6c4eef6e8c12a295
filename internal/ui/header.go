package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the status bar: cache state, freshness, window and
// totals.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)

	parts := []string{bg.Render("squint", styles.Logo)}

	if !m.hasData {
		if m.lastErr != nil {
			parts = append(parts,
				bg.Render("UNAVAILABLE", styles.DangerText),
				bg.Render(firstLine(m.lastErr.Error()), styles.MutedText))
		} else {
			parts = append(parts, bg.Render("Connecting…", styles.WarningText))
		}
		return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
	}

	rollup := m.data.rollup
	status := m.data.status

	source := rollup.Source
	if source == "" {
		source = status.State
	}
	parts = append(parts, styles.StatusStyle(source).Render(strings.ToUpper(source)))

	if !status.GeneratedAt.IsZero() {
		age := m.data.fetchedAt.Sub(status.GeneratedAt)
		parts = append(parts, bg.Render("snapshot", styles.FaintText)+bg.Space()+
			bg.Render(humanizeDuration(age)+" ago", styles.Text))
	}

	parts = append(parts,
		bg.Render("window", styles.FaintText)+bg.Space()+bg.Render(rollup.Window, styles.AccentText),
		bg.Render(formatCount(rollup.Summary.Requests)+" req", styles.Text),
		bg.Render(formatBytes(rollup.Summary.TrafficBytes), styles.Text),
		bg.Render(fmt.Sprintf("%d clients", rollup.Summary.ActiveClients), styles.Text),
	)

	switch {
	case status.Degraded:
		parts = append(parts, bg.Render(fmt.Sprintf("DEGRADED (%d failures)", status.ConsecutiveFailures), styles.DangerText))
	case status.LastError != "":
		parts = append(parts, bg.Render("last refresh failed", styles.WarningText))
	}
	if status.Refreshing || m.refreshing {
		parts = append(parts, bg.Render("refreshing", styles.WarningText))
	}
	if m.lastErr != nil {
		parts = append(parts, bg.Render("fetch error", styles.DangerText))
	}
	if rollup.Error != "" {
		parts = append(parts, bg.Render(truncateMiddle(rollup.Error, 40), styles.DangerText))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// renderTabs renders the view selector with the origin and flash message.
func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	tabs := make([]string, 0, len(viewNames))
	for i, name := range viewNames {
		label := fmt.Sprintf("<%d> %s", i+1, name)
		if View(i) == m.currentView {
			tabs = append(tabs, styles.Selected.Padding(0, 1).Render(label))
			continue
		}
		tabs = append(tabs, bg.Spaces(1)+bg.Render(label, styles.MutedText)+bg.Spaces(1))
	}
	left := strings.Join(tabs, bg.Space())

	var right []string
	if m.flash != "" {
		right = append(right, bg.Render(truncateMiddle(m.flash, 60), styles.WarningText))
	}
	if m.origin != "" {
		right = append(right, bg.Render(truncateMiddle(m.origin, 50), styles.FaintText))
	}
	right = append(right, bg.Render("h help", styles.FaintText))
	rightText := bg.Join(right, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(rightText)
	if gap < 1 {
		return bg.FillLine(left, m.width)
	}
	return bg.FillLine(left+bg.Spaces(gap)+rightText, m.width)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
