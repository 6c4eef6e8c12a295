package aggregate

import (
	"slices"
	"strings"
	"time"

	"github.com/five82/squint/internal/accesslog"
)

// ClientStat is one client's usage over the trailing day and month.
type ClientStat struct {
	ClientAddress string    `json:"client_address"`
	DayTraffic    int64     `json:"day_traffic"`
	MonthTraffic  int64     `json:"month_traffic"`
	DayRequests   int64     `json:"day_requests"`
	MonthRequests int64     `json:"month_requests"`
	LastActivity  time.Time `json:"last_activity"`
}

// Clients builds one ClientStat per client address in entries. LastActivity
// spans the whole input; the day and month counters only include entries
// inside Day and Month measured from now.
func Clients(entries []accesslog.Entry, now time.Time) map[string]ClientStat {
	dayLimit := Day.Since(now)
	monthLimit := Month.Since(now)

	out := make(map[string]ClientStat)
	for _, e := range entries {
		addr := e.ClientAddress
		if addr == "" {
			continue
		}
		st := out[addr]
		st.ClientAddress = addr
		if e.Timestamp.After(st.LastActivity) {
			st.LastActivity = e.Timestamp
		}
		if !e.Timestamp.Before(dayLimit) {
			st.DayTraffic += e.Bytes
			st.DayRequests++
		}
		if !e.Timestamp.Before(monthLimit) {
			st.MonthTraffic += e.Bytes
			st.MonthRequests++
		}
		out[addr] = st
	}
	return out
}

// ActiveClients lists clients with at least one request in the trailing month,
// busiest first.
func ActiveClients(stats map[string]ClientStat) []ClientStat {
	out := make([]ClientStat, 0, len(stats))
	for _, st := range stats {
		if st.MonthRequests > 0 {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b ClientStat) int {
		if a.MonthRequests != b.MonthRequests {
			if a.MonthRequests > b.MonthRequests {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ClientAddress, b.ClientAddress)
	})
	return out
}
