package aggregate

import (
	"time"

	"github.com/five82/squint/internal/accesslog"
)

// Connection is a display-oriented view of one entry.
type Connection struct {
	Timestamp     time.Time `json:"timestamp"`
	ClientAddress string    `json:"client_address"`
	Domain        string    `json:"domain"`
	URL           string    `json:"url"`
	Method        string    `json:"method"`
	StatusCode    int       `json:"status_code"`
	Bytes         int64     `json:"bytes"`
}

// Connections converts ascending entries into connections, newest first.
func Connections(entries []accesslog.Entry, extractor *DomainExtractor) []Connection {
	out := make([]Connection, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, toConnection(entries[i], extractor))
	}
	return out
}

func toConnection(e accesslog.Entry, extractor *DomainExtractor) Connection {
	return Connection{
		Timestamp:     e.Timestamp,
		ClientAddress: e.ClientAddress,
		Domain:        extractor.Domain(e),
		URL:           e.URL,
		Method:        e.Method,
		StatusCode:    e.StatusCode,
		Bytes:         e.Bytes,
	}
}

// ClientDetail describes one client's history and its usage in a window.
type ClientDetail struct {
	ClientAddress string       `json:"client_address"`
	Window        string       `json:"window"`
	Connections   []Connection `json:"connections"`
	Buckets       []Bucket     `json:"buckets"`
	Domains       []DomainStat `json:"domains"`
	Summary       Summary      `json:"summary"`
}

// ClientActivity collects every connection of addr in entries (newest first)
// and rolls up the ones inside w.
func (e *Engine) ClientActivity(entries []accesslog.Entry, addr string, w Window, now time.Time) ClientDetail {
	var own []accesslog.Entry
	for _, entry := range entries {
		if entry.ClientAddress == addr {
			own = append(own, entry)
		}
	}
	inWindow := w.Filter(own, now)
	return ClientDetail{
		ClientAddress: addr,
		Window:        w.Key,
		Connections:   Connections(own, e.domains),
		Buckets:       Buckets(inWindow, w.Granularity()),
		Domains:       TopDomains(inWindow, e.topN, e.domains),
		Summary:       Summarize(inWindow),
	}
}
