package aggregate

import "github.com/five82/squint/internal/accesslog"

// Summary holds window-wide totals.
type Summary struct {
	Requests      int64         `json:"total_requests"`
	TrafficBytes  int64         `json:"total_bytes"`
	ActiveClients int           `json:"active_clients"`
	StatusCodes   map[int]int64 `json:"status_codes"`
}

// Summarize totals entries.
func Summarize(entries []accesslog.Entry) Summary {
	s := Summary{StatusCodes: make(map[int]int64)}
	clients := make(map[string]struct{})
	for _, e := range entries {
		s.Requests++
		s.TrafficBytes += e.Bytes
		s.StatusCodes[e.StatusCode]++
		if e.ClientAddress != "" {
			clients[e.ClientAddress] = struct{}{}
		}
	}
	s.ActiveClients = len(clients)
	return s
}
