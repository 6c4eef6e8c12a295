package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/five82/squint/internal/accesslog"
)

const (
	dayKey   = "day"
	monthKey = "month"

	maxWindowHours = 24 * 366
)

// Window is a trailing time range ending at the aggregation's "now".
type Window struct {
	Key  string
	Span time.Duration
}

var (
	Day   = Window{Key: dayKey, Span: 24 * time.Hour}
	Month = Window{Key: monthKey, Span: 30 * 24 * time.Hour}
)

// Hours returns an n-hour window keyed "<n>h".
func Hours(n int) Window {
	return Window{Key: strconv.Itoa(n) + "h", Span: time.Duration(n) * time.Hour}
}

// ParseWindow accepts "day", "month", "<n>h" or a bare hour count. An empty
// string means Day.
func ParseWindow(raw string) (Window, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "", dayKey:
		return Day, nil
	case monthKey:
		return Month, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
	if err != nil || n <= 0 || n > maxWindowHours {
		return Window{}, fmt.Errorf("invalid window %q", raw)
	}
	switch n {
	case 24:
		return Day, nil
	case 720:
		return Month, nil
	}
	return Hours(n), nil
}

func (w Window) String() string {
	return w.Key
}

// Since returns the inclusive lower bound of the window.
func (w Window) Since(now time.Time) time.Time {
	return now.Add(-w.Span)
}

// Granularity picks hourly buckets for windows up to two days and daily
// buckets beyond that.
func (w Window) Granularity() Granularity {
	if w.Span <= 48*time.Hour {
		return Hourly
	}
	return Daily
}

// Filter returns the suffix of an ascending entry slice that falls inside the
// window. The result shares the input's backing array.
func (w Window) Filter(entries []accesslog.Entry, now time.Time) []accesslog.Entry {
	since := w.Since(now)
	i := sort.Search(len(entries), func(i int) bool {
		return !entries[i].Timestamp.Before(since)
	})
	return entries[i:]
}
