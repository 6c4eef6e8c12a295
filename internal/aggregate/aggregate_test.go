package aggregate

import (
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/squint/internal/accesslog"
)

func moscow(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return loc
}

func entry(ts time.Time, client, method, url string, bytes int64) accesslog.Entry {
	return accesslog.Entry{
		Timestamp:     ts,
		ClientAddress: client,
		Method:        method,
		URL:           url,
		Bytes:         bytes,
		StatusCode:    200,
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    Window
		wantErr bool
	}{
		{"", Day, false},
		{"day", Day, false},
		{" Month ", Month, false},
		{"24", Day, false},
		{"720h", Month, false},
		{"6h", Hours(6), false},
		{"6", Hours(6), false},
		{"0", Window{}, true},
		{"-3h", Window{}, true},
		{"week", Window{}, true},
		{"999999", Window{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindow_FilterAndGranularity(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	entries := []accesslog.Entry{
		entry(now.Add(-72*time.Hour), "a", "GET", "http://a/", 1),
		entry(now.Add(-24*time.Hour), "a", "GET", "http://a/", 2),
		entry(now.Add(-time.Hour), "a", "GET", "http://a/", 3),
	}

	day := Day.Filter(entries, now)
	require.Len(t, day, 2, "window lower bound is inclusive")
	assert.Equal(t, int64(2), day[0].Bytes)
	assert.Len(t, Hours(2).Filter(entries, now), 1)
	assert.Len(t, Month.Filter(entries, now), 3)
	assert.Empty(t, Hours(1).Filter(nil, now))

	assert.Equal(t, Hourly, Day.Granularity())
	assert.Equal(t, Hourly, Hours(48).Granularity())
	assert.Equal(t, Daily, Month.Granularity())
}

func TestGranularity_TruncateKeepsLocation(t *testing.T) {
	loc := moscow(t)
	ts := time.Date(2024, 5, 17, 13, 45, 12, 999, loc)

	assert.Equal(t, time.Date(2024, 5, 17, 13, 0, 0, 0, loc), Hourly.Truncate(ts))
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, loc), Daily.Truncate(ts))
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, loc), Monthly.Truncate(ts))
}

func TestBuckets_ChronologicalAndConserveTraffic(t *testing.T) {
	loc := moscow(t)
	base := time.Date(2024, 5, 17, 10, 0, 0, 0, loc)
	var entries []accesslog.Entry
	var total int64
	for i := 0; i < 50; i++ {
		b := int64(i * 37)
		total += b
		entries = append(entries, entry(base.Add(time.Duration(i)*47*time.Minute), "c", "GET", "http://x/", b))
	}

	for _, g := range []Granularity{Hourly, Daily, Monthly} {
		t.Run(g.String(), func(t *testing.T) {
			buckets := Buckets(entries, g)
			var sumBytes, sumReqs int64
			for i, b := range buckets {
				sumBytes += b.TrafficBytes
				sumReqs += b.Requests
				assert.Equal(t, g.Truncate(b.Start), b.Start)
				if i > 0 {
					assert.True(t, buckets[i-1].Start.Before(b.Start))
				}
			}
			assert.Equal(t, total, sumBytes)
			assert.Equal(t, int64(len(entries)), sumReqs)
		})
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		method, url, want string
	}{
		{"GET", "http://example.com/page", "example.com"},
		{"GET", "http://Example.COM:8080/x?y=1", "example.com:8080"},
		{"CONNECT", "https://example.org:443", "example.org"},
		{"CONNECT", "example.org:443", "example.org"},
		{"CONNECT", "https://[2001:db8::1]:443", "2001:db8::1"},
		{"CONNECT", "https://", UnknownDomain},
		{"GET", "/relative/path", UnknownDomain},
		{"GET", "http://%zz/", UnknownDomain},
		{"GET", "", UnknownDomain},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.method, tt.url))
		})
	}
}

func TestDomainExtractor_Bounded(t *testing.T) {
	ex := NewDomainExtractor(3)
	for i := 0; i < 10; i++ {
		e := entry(time.Now(), "c", "GET", fmt.Sprintf("http://host%d.example/", i), 1)
		assert.Equal(t, fmt.Sprintf("host%d.example", i), ex.Domain(e))
	}
	assert.Equal(t, 3, ex.Len())

	var nilEx *DomainExtractor
	assert.Equal(t, "a.example", nilEx.Domain(entry(time.Now(), "c", "GET", "http://a.example/", 1)))
}

func TestTopDomains(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var entries []accesslog.Entry
	add := func(url string, n int) {
		for i := 0; i < n; i++ {
			entries = append(entries, entry(ts, "c", "GET", url, 10))
		}
	}
	add("http://a.example/", 3)
	add("http://b.example/", 5)
	add("not a url at all", 1)
	add("http://c.example/", 3)
	add("http://d.example/", 1)
	entries = append(entries, entry(ts, "c", "CONNECT", "https://b.example:443", 10))

	top := TopDomains(entries, 3, NewDomainExtractor(0))
	require.Len(t, top, 3)
	assert.Equal(t, DomainStat{Domain: "b.example", Requests: 6, TrafficBytes: 60}, top[0])
	// a and c tie; the ascending stable sort keeps a before c, so the
	// reversed top list has c first.
	assert.Equal(t, "c.example", top[1].Domain)
	assert.Equal(t, "a.example", top[2].Domain)

	all := TopDomains(entries, 100, nil)
	require.Len(t, all, 5)
	seen := map[string]bool{}
	var requests int64
	for i, d := range all {
		assert.False(t, seen[d.Domain], "duplicate domain %s", d.Domain)
		seen[d.Domain] = true
		requests += d.Requests
		if i > 0 {
			assert.GreaterOrEqual(t, all[i-1].Requests, d.Requests)
		}
	}
	assert.True(t, seen[UnknownDomain], "unknown domains are kept")
	assert.Equal(t, int64(len(entries)), requests)

	assert.Equal(t, top, TopDomains(entries, 3, nil), "ranking is deterministic")
	assert.Len(t, TopDomains(entries, 0, nil), 5, "non-positive n uses the default of 10")
}

func TestClients(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	entries := []accesslog.Entry{
		entry(now.Add(-40*24*time.Hour), "10.0.0.1", "GET", "http://a/", 1000),
		entry(now.Add(-10*24*time.Hour), "10.0.0.1", "GET", "http://a/", 100),
		entry(now.Add(-2*time.Hour), "10.0.0.1", "GET", "http://a/", 10),
		entry(now.Add(-50*24*time.Hour), "10.0.0.2", "GET", "http://a/", 7),
		entry(now.Add(-time.Hour), "", "GET", "http://a/", 1),
	}

	stats := Clients(entries, now)
	require.Len(t, stats, 2)

	one := stats["10.0.0.1"]
	assert.Equal(t, int64(10), one.DayTraffic)
	assert.Equal(t, int64(1), one.DayRequests)
	assert.Equal(t, int64(110), one.MonthTraffic)
	assert.Equal(t, int64(2), one.MonthRequests)
	assert.Equal(t, now.Add(-2*time.Hour), one.LastActivity)

	two := stats["10.0.0.2"]
	assert.Zero(t, two.MonthRequests)
	assert.Equal(t, now.Add(-50*24*time.Hour), two.LastActivity)

	active := ActiveClients(stats)
	require.Len(t, active, 1)
	assert.Equal(t, "10.0.0.1", active[0].ClientAddress)
}

func TestSummarize(t *testing.T) {
	ts := time.Now()
	e1 := entry(ts, "a", "GET", "http://x/", 5)
	e2 := entry(ts, "b", "GET", "http://x/", 7)
	e2.StatusCode = 404
	e3 := entry(ts, "a", "GET", "http://x/", 1)

	s := Summarize([]accesslog.Entry{e1, e2, e3})
	assert.Equal(t, int64(3), s.Requests)
	assert.Equal(t, int64(13), s.TrafficBytes)
	assert.Equal(t, 2, s.ActiveClients)
	assert.Equal(t, map[int]int64{200: 2, 404: 1}, s.StatusCodes)
}

func TestEngine_Rollup(t *testing.T) {
	loc := moscow(t)
	now := time.Date(2024, 6, 2, 12, 30, 0, 0, loc)
	entries := []accesslog.Entry{
		entry(now.Add(-3*24*time.Hour), "a", "GET", "http://old.example/", 1000),
		entry(now.Add(-5*time.Hour), "a", "GET", "http://x.example/", 10),
		entry(now.Add(-5*time.Hour+time.Minute), "b", "CONNECT", "https://y.example:443", 20),
		entry(now.Add(-time.Minute), "a", "GET", "http://x.example/", 30),
	}
	eng := NewEngine(10, 16)

	day := eng.Rollup(entries, Day, now)
	assert.Equal(t, Day, day.Window)
	assert.Equal(t, now, day.GeneratedAt)
	assert.Equal(t, Hourly, day.Granularity)
	assert.Len(t, day.Entries, 3)
	assert.Len(t, day.Buckets, 2)
	require.Len(t, day.Monthly, 1)
	assert.Equal(t, int64(60), day.Monthly[0].TrafficBytes)
	assert.Equal(t, "x.example", day.Domains[0].Domain)
	assert.Equal(t, int64(60), day.Summary.TrafficBytes)

	month := eng.Rollup(entries, Month, now)
	assert.Equal(t, Daily, month.Granularity)
	assert.Len(t, month.Entries, 4)
	assert.Len(t, month.Buckets, 2)
	assert.Equal(t, int64(1060), month.Summary.TrafficBytes)
}

func TestEngine_ClientActivity(t *testing.T) {
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	entries := []accesslog.Entry{
		entry(now.Add(-48*time.Hour), "a", "GET", "http://old.example/", 1),
		entry(now.Add(-2*time.Hour), "b", "GET", "http://b.example/", 2),
		entry(now.Add(-time.Hour), "a", "GET", "http://new.example/", 3),
	}

	detail := NewEngine(0, 0).ClientActivity(entries, "a", Day, now)
	assert.Equal(t, "a", detail.ClientAddress)
	assert.Equal(t, "day", detail.Window)
	require.Len(t, detail.Connections, 2)
	assert.Equal(t, "new.example", detail.Connections[0].Domain, "connections are newest first")
	assert.Equal(t, "old.example", detail.Connections[1].Domain)
	assert.Equal(t, int64(1), detail.Summary.Requests)
	require.Len(t, detail.Domains, 1)
	assert.Equal(t, "new.example", detail.Domains[0].Domain)
}
