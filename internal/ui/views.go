package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/squint/internal/aggregate"
)

const (
	barMaxWidth = 50
	labelWidth  = 16
)

// renderTraffic draws one bar per bucket, sized by traffic.
func (m Model) renderTraffic() string {
	styles := m.theme.Styles()
	rollup := m.data.rollup

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(
		fmt.Sprintf(" Traffic per %s, last %s", rollup.Granularity, rollup.Window)))
	b.WriteString("\n\n")

	if len(rollup.Buckets) == 0 {
		b.WriteString(styles.MutedText.Render("  No requests in this window"))
		return b.String()
	}

	var peak int64
	for _, bucket := range rollup.Buckets {
		peak = max(peak, bucket.TrafficBytes)
	}
	width := min(barMaxWidth, max(m.width-labelWidth-30, 10))

	for _, bucket := range rollup.Buckets {
		label := bucketLabel(bucket.Start, rollup.Granularity)
		bar := renderBar(bucket.TrafficBytes, peak, width)
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Width(labelWidth).Render(label))
		b.WriteString(styles.Bar.Render(bar))
		b.WriteString(strings.Repeat(" ", width-lipgloss.Width(bar)+1))
		b.WriteString(styles.Text.Render(fmt.Sprintf("%9s %8s req", formatBytes(bucket.TrafficBytes), formatCount(bucket.Requests))))
		b.WriteString("\n")
	}

	if len(rollup.Monthly) > 1 {
		b.WriteString("\n")
		b.WriteString(styles.AccentText.Bold(true).Render(" Per month"))
		b.WriteString("\n")
		for _, bucket := range rollup.Monthly {
			b.WriteString(" ")
			b.WriteString(styles.MutedText.Width(labelWidth).Render(bucket.Start.Format("2006-01")))
			b.WriteString(styles.Text.Render(fmt.Sprintf("%9s %8s req", formatBytes(bucket.TrafficBytes), formatCount(bucket.Requests))))
			b.WriteString("\n")
		}
	}

	if codes := rollup.Summary.StatusCodes; len(codes) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.AccentText.Bold(true).Render(" Status codes"))
		b.WriteString("\n ")
		for _, code := range sortedCodes(codes) {
			class := statusClass(code)
			b.WriteString(styles.StatusTextStyle(class).Render(fmt.Sprintf("%d", code)))
			b.WriteString(styles.MutedText.Render(fmt.Sprintf(" %s  ", formatCount(codes[code]))))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderDomains draws the top domains table.
func (m Model) renderDomains() string {
	styles := m.theme.Styles()
	domains := m.data.rollup.Domains

	var b strings.Builder
	b.WriteString(styles.TableHeader.Width(m.width).Render(
		fmt.Sprintf(" %-4s %-40s %10s %12s", "#", "DOMAIN", "REQUESTS", "TRAFFIC")))
	b.WriteString("\n")
	if len(domains) == 0 {
		b.WriteString(styles.MutedText.Render("  No domains in this window"))
		return b.String()
	}
	for i, d := range domains {
		b.WriteString(styles.Text.Render(fmt.Sprintf(" %-4d %-40s %10s %12s",
			i+1, truncateMiddle(d.Domain, 40), formatCount(d.Requests), formatBytes(d.TrafficBytes))))
		b.WriteString("\n")
	}
	return b.String()
}

// renderClients draws clients active in the trailing month.
func (m Model) renderClients() string {
	styles := m.theme.Styles()
	clients := m.data.clients.Clients
	now := m.data.fetchedAt

	var b strings.Builder
	b.WriteString(styles.TableHeader.Width(m.width).Render(
		fmt.Sprintf(" %-39s %10s %10s %10s %10s %10s", "CLIENT", "DAY REQ", "DAY", "MONTH REQ", "MONTH", "SEEN")))
	b.WriteString("\n")
	if len(clients) == 0 {
		b.WriteString(styles.MutedText.Render("  No active clients"))
		return b.String()
	}
	for _, c := range clients {
		seen := "-"
		if !c.LastActivity.IsZero() {
			seen = humanizeDuration(now.Sub(c.LastActivity))
		}
		b.WriteString(styles.Text.Render(fmt.Sprintf(" %-39s %10s %10s %10s %10s %10s",
			truncateMiddle(c.ClientAddress, 39),
			formatCount(c.DayRequests), formatBytes(c.DayTraffic),
			formatCount(c.MonthRequests), formatBytes(c.MonthTraffic), seen)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderRecent draws the newest requests.
func (m Model) renderRecent() string {
	styles := m.theme.Styles()
	conns := m.data.recent.Connections

	var b strings.Builder
	b.WriteString(styles.TableHeader.Width(m.width).Render(
		fmt.Sprintf(" %-19s %-15s %-7s %-5s %9s  %s", "TIME", "CLIENT", "METHOD", "CODE", "BYTES", "DOMAIN")))
	b.WriteString("\n")
	if m.data.recent.Error != "" {
		b.WriteString(styles.DangerText.Render("  " + m.data.recent.Error))
		b.WriteString("\n")
	}
	if len(conns) == 0 {
		b.WriteString(styles.MutedText.Render("  No recent requests"))
		return b.String()
	}
	for _, c := range conns {
		b.WriteString(styles.MutedText.Render(fmt.Sprintf(" %-19s ", c.Timestamp.Format("2006-01-02 15:04:05"))))
		b.WriteString(styles.Text.Render(fmt.Sprintf("%-15s %-7s ", truncateMiddle(c.ClientAddress, 15), c.Method)))
		b.WriteString(styles.StatusTextStyle(statusClass(c.StatusCode)).Render(fmt.Sprintf("%-5d", c.StatusCode)))
		b.WriteString(styles.Text.Render(fmt.Sprintf(" %9s  %s", formatBytes(c.Bytes), c.Domain)))
		b.WriteString("\n")
	}
	return b.String()
}

func bucketLabel(start time.Time, granularity string) string {
	switch granularity {
	case aggregate.Hourly.String():
		return start.Format("Jan 02 15:04")
	case aggregate.Daily.String():
		return start.Format("Mon Jan 02")
	default:
		return start.Format("2006-01")
	}
}
