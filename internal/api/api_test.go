package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/squint/internal/accesslog"
	"github.com/five82/squint/internal/aggregate"
	"github.com/five82/squint/internal/state"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu         sync.Mutex
	entries    []accesslog.Entry
	engine     *aggregate.Engine
	refreshErr error
	status     state.Status
	lastRecent int
	lastWindow aggregate.Window
}

func newFakeBackend() *fakeBackend {
	var entries []accesslog.Entry
	for i := 30; i > 0; i-- {
		entries = append(entries, accesslog.Entry{
			Timestamp:     now.Add(-time.Duration(i) * time.Minute),
			ClientAddress: "10.0.0.1",
			Method:        "GET",
			URL:           fmt.Sprintf("http://site%d.example/", i%3),
			Bytes:         10,
			StatusCode:    200,
		})
	}
	entries = append(entries, accesslog.Entry{
		Timestamp: now.Add(-10 * time.Second), ClientAddress: "10.0.0.2",
		Method: "CONNECT", URL: "secure.example:443", Bytes: 500, StatusCode: 200,
	})
	return &fakeBackend{entries: entries, engine: aggregate.NewEngine(10, 100)}
}

func (f *fakeBackend) Get(_ context.Context, w aggregate.Window) state.View {
	f.mu.Lock()
	f.lastWindow = w
	f.mu.Unlock()
	return state.View{Rollup: f.engine.Rollup(f.entries, w, now), Source: state.SourceFresh, State: state.Fresh, GeneratedAt: now}
}

func (f *fakeBackend) Clients(context.Context) state.ClientsView {
	return state.ClientsView{Clients: f.engine.Clients(f.entries, now), Source: state.SourceFresh, GeneratedAt: now}
}

func (f *fakeBackend) ClientDetail(_ context.Context, addr string, w aggregate.Window) state.DetailView {
	return state.DetailView{Detail: f.engine.ClientActivity(f.entries, addr, w, now), Source: state.SourceFresh}
}

func (f *fakeBackend) Recent(_ context.Context, n int) state.RecentView {
	f.mu.Lock()
	f.lastRecent = n
	f.mu.Unlock()
	return state.RecentView{Connections: aggregate.Connections(f.entries[len(f.entries)-2:], f.engine.Domains())}
}

func (f *fakeBackend) Status() state.Status {
	return f.status
}

func (f *fakeBackend) Refresh(context.Context) (state.RefreshResult, error) {
	f.mu.Lock()
	err := f.refreshErr
	f.mu.Unlock()
	if err != nil {
		return state.RefreshResult{}, err
	}
	return state.RefreshResult{Entries: len(f.entries), Clients: 2}, nil
}

func newTestServer(t *testing.T, backend Backend, limit int) *httptest.Server {
	t.Helper()
	srv := NewServer(Options{
		Service:         NewService(backend),
		Logger:          zerolog.Nop(),
		RateLimit:       limit,
		RateLimitWindow: time.Minute,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestRollup(t *testing.T) {
	backend := newFakeBackend()
	ts := newTestServer(t, backend, 100)

	var body RollupResponse
	code := getJSON(t, ts.URL+"/api/rollup?window=6h", &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "6h", body.Window)
	assert.Equal(t, "fresh", body.Source)
	assert.Equal(t, "fresh", body.State)
	assert.Equal(t, "hour", body.Granularity)
	assert.Equal(t, 31, body.EntriesCount)
	assert.Equal(t, int64(800), body.Summary.TrafficBytes)
	assert.Equal(t, int64(31), body.Summary.StatusCodes[200])
	require.NotEmpty(t, body.Domains)
	assert.Equal(t, "secure.example", body.Domains[len(body.Domains)-1].Domain)
	assert.Empty(t, body.Error)
}

func TestRollupDefaultsToDay(t *testing.T) {
	backend := newFakeBackend()
	ts := newTestServer(t, backend, 100)

	var body RollupResponse
	getJSON(t, ts.URL+"/api/rollup", &body)
	assert.Equal(t, "day", body.Window)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, aggregate.Day, backend.lastWindow)
}

func TestInvalidParams(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), 100)
	for _, path := range []string{
		"/api/rollup?window=fortnight",
		"/api/entries?window=0",
		"/api/clients/10.0.0.1?page=0",
		"/api/recent?limit=abc",
	} {
		t.Run(path, func(t *testing.T) {
			var body ErrorResponse
			code := getJSON(t, ts.URL+path, &body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestEntries(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), 100)

	var body EntriesResponse
	getJSON(t, ts.URL+"/api/entries?window=1h", &body)
	require.Len(t, body.Entries, 31)
	for i := 1; i < len(body.Entries); i++ {
		assert.False(t, body.Entries[i].Timestamp.Before(body.Entries[i-1].Timestamp))
	}
}

func TestClients(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), 100)

	var body ClientsResponse
	getJSON(t, ts.URL+"/api/clients", &body)
	require.Len(t, body.Clients, 2)
	assert.Equal(t, "10.0.0.1", body.Clients[0].ClientAddress)
	assert.Equal(t, int64(30), body.Clients[0].MonthRequests)
}

func TestClientDetailPagination(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), 100)

	var first ClientDetailResponse
	getJSON(t, ts.URL+"/api/clients/10.0.0.1", &first)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 2, first.Pages)
	assert.Equal(t, 30, first.Total)
	assert.Equal(t, DetailPageSize, first.PerPage)
	require.Len(t, first.Connections, 25)
	assert.True(t, first.Connections[0].Timestamp.After(first.Connections[24].Timestamp))

	var second ClientDetailResponse
	getJSON(t, ts.URL+"/api/clients/10.0.0.1?page=2", &second)
	assert.Len(t, second.Connections, 5)

	var past ClientDetailResponse
	getJSON(t, ts.URL+"/api/clients/10.0.0.1?page=9", &past)
	assert.Empty(t, past.Connections)
	assert.NotNil(t, past.Connections)

	var huge ClientDetailResponse
	code := getJSON(t, ts.URL+"/api/clients/10.0.0.1?page=737869762948382065", &huge)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 737869762948382065, huge.Page)
	assert.Equal(t, 30, huge.Total)
	assert.Empty(t, huge.Connections)
}

func TestServiceClientDetailPageBounds(t *testing.T) {
	svc := NewService(newFakeBackend())
	w := aggregate.Month

	tests := []struct {
		name string
		page int
		want int
	}{
		{"zero page reads first", 0, 25},
		{"last page", 2, 5},
		{"one past the end", 3, 0},
		{"overflowing page", int(^uint(0) >> 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := svc.ClientDetail(context.Background(), "10.0.0.1", w, tt.page)
			assert.Len(t, resp.Connections, tt.want)
		})
	}
}

func TestRecent(t *testing.T) {
	backend := newFakeBackend()
	ts := newTestServer(t, backend, 100)

	var body RecentResponse
	getJSON(t, ts.URL+"/api/recent?limit=5", &body)
	backend.mu.Lock()
	assert.Equal(t, 5, backend.lastRecent)
	backend.mu.Unlock()
	require.Len(t, body.Connections, 2)
	assert.Equal(t, "secure.example", body.Connections[0].Domain)
}

func TestStatus(t *testing.T) {
	backend := newFakeBackend()
	backend.status = state.Status{
		State:               state.Stale,
		GeneratedAt:         now,
		Entries:             31,
		LastDuration:        1500 * time.Millisecond,
		LastError:           errors.New("open log: permission denied"),
		ConsecutiveFailures: 2,
	}
	ts := newTestServer(t, backend, 100)

	var body StatusResponse
	getJSON(t, ts.URL+"/api/status", &body)
	assert.Equal(t, "stale", body.State)
	assert.Equal(t, int64(1500), body.LastDurationMS)
	assert.True(t, body.Degraded)
	assert.Contains(t, body.LastError, "permission denied")
}

func TestRefresh(t *testing.T) {
	backend := newFakeBackend()
	ts := newTestServer(t, backend, 100)

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body RefreshResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 31, body.Entries)

	backend.mu.Lock()
	backend.refreshErr = errors.New("open log: access denied")
	backend.mu.Unlock()
	resp2, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
	var failed RefreshResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&failed))
	assert.Contains(t, failed.Error, "access denied")
}

func TestRefreshRequiresPost(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), 100)
	resp, err := http.Get(ts.URL + "/api/refresh")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), 100)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), 2)
	codes := make([]int, 0, 3)
	for range 3 {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	clock := now
	rl.now = func() time.Time { return clock }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	clock = clock.Add(10 * time.Minute)
	rl.Allow("c")
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "a")
	assert.Contains(t, rl.clients, "c")
}

func TestLoggingMiddleware(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("brew"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &record))
	assert.Equal(t, "/api/status", record["path"])
	assert.EqualValues(t, http.StatusTeapot, record["status"])
	assert.EqualValues(t, 4, record["bytes"])
	assert.Equal(t, "192.0.2.1", record["client_ip"])
}
