package aggregate

import (
	"slices"
	"time"

	"github.com/five82/squint/internal/accesslog"
)

// Granularity is the time unit a bucket covers.
type Granularity int

const (
	Hourly Granularity = iota
	Daily
	Monthly
)

func (g Granularity) String() string {
	switch g {
	case Hourly:
		return "hour"
	case Daily:
		return "day"
	case Monthly:
		return "month"
	default:
		return "unknown"
	}
}

// Truncate returns the start of the unit containing t, in t's location.
func (g Granularity) Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	switch g {
	case Hourly:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
	case Daily:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	}
}

// Bucket aggregates the entries of one time unit.
type Bucket struct {
	Start        time.Time `json:"start"`
	TrafficBytes int64     `json:"traffic_bytes"`
	Requests     int64     `json:"request_count"`
}

// Buckets groups entries by g and returns the buckets in chronological order.
func Buckets(entries []accesslog.Entry, g Granularity) []Bucket {
	index := make(map[int64]int)
	var out []Bucket
	for _, e := range entries {
		start := g.Truncate(e.Timestamp)
		key := start.Unix()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Bucket{Start: start})
		}
		out[i].TrafficBytes += e.Bytes
		out[i].Requests++
	}
	slices.SortFunc(out, func(a, b Bucket) int {
		return a.Start.Compare(b.Start)
	})
	return out
}
