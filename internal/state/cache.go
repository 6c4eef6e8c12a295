package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/five82/squint/internal/aggregate"
	"github.com/five82/squint/internal/logtail"
)

const (
	DefaultTTL                = 5 * time.Minute
	DefaultPartialTTL         = time.Minute
	DefaultMaxStale           = 15 * time.Minute
	DefaultFallbackLines      = 10000
	DefaultRecentLines        = 100
	DefaultClientHistoryLines = 50000
	DefaultAdhocRollups       = 16

	// NeverStale as Options.MaxStale disables serving stale snapshots: a
	// query past TTL goes straight to the bounded fallback read.
	NeverStale time.Duration = -1

	fallbackKey = "fallback"
)

// ErrRefreshInFlight names the condition reported by RefreshResult.InFlight.
// Refresh never returns it; a second concurrent refresh is a no-op.
var ErrRefreshInFlight = errors.New("refresh already in flight")

// EntryReader reads the newest n entries of the log, n <= 0 meaning all.
type EntryReader interface {
	Read(ctx context.Context, n int) (logtail.Result, error)
}

// Source says where a query answer came from.
type Source string

const (
	SourceFresh    Source = "fresh"
	SourceStale    Source = "stale"
	SourceFallback Source = "fallback"
)

// Options configure a Cache. Zero durations and sizes use the defaults above.
// A negative MaxStale (NeverStale) turns stale serving off.
type Options struct {
	Reader             EntryReader
	Engine             *aggregate.Engine
	TTL                time.Duration
	PartialTTL         time.Duration
	MaxStale           time.Duration
	FallbackLines      int
	RecentLines        int
	ClientHistoryLines int
	AdhocRollups       int // per-snapshot memo of non-precomputed windows
	Logger             zerolog.Logger
	Now                func() time.Time
}

// RefreshResult reports what one Refresh call did.
type RefreshResult struct {
	Entries  int  `json:"entries"`
	Skipped  int  `json:"skipped"`
	Clients  int  `json:"clients"`
	InFlight bool `json:"in_flight"`
}

// Status describes the published snapshot and the latest refresh attempt.
type Status struct {
	State               State
	GeneratedAt         time.Time
	ExpiresAt           time.Time
	Entries             int
	Skipped             int
	LastAttempt         time.Time
	LastDuration        time.Duration
	LastError           error
	ConsecutiveFailures int
	Refreshing          bool
}

// Degraded reports whether refreshes have failed repeatedly.
func (s Status) Degraded() bool {
	return s.ConsecutiveFailures >= 2
}

// View is the answer to a window query.
type View struct {
	Rollup      *aggregate.Rollup
	Source      Source
	State       State
	GeneratedAt time.Time
	Err         error
}

// ClientsView is the answer to a client usage query.
type ClientsView struct {
	Clients     map[string]aggregate.ClientStat
	Source      Source
	GeneratedAt time.Time
	Err         error
}

// DetailView is the answer to a single-client query.
type DetailView struct {
	Detail aggregate.ClientDetail
	Source Source
	Err    error
}

// RecentView is the answer to a recent-requests query.
type RecentView struct {
	Connections []aggregate.Connection
	Err         error
}

type attempt struct {
	at       time.Time
	duration time.Duration
	err      error
	failures int
}

// Cache owns the published snapshot. Refresh is the only writer and swaps a
// complete snapshot in with one atomic store; readers load the pointer and
// never observe a partial update.
type Cache struct {
	reader EntryReader
	engine *aggregate.Engine
	log    zerolog.Logger
	now    func() time.Time

	ttl                time.Duration
	partialTTL         time.Duration
	maxStale           time.Duration
	fallbackLines      int
	recentLines        int
	clientHistoryLines int
	adhocRollups       int

	snapshot   atomic.Pointer[Snapshot]
	partial    atomic.Pointer[Snapshot]
	last       atomic.Pointer[attempt]
	refreshing atomic.Bool
	fallbacks  singleflight.Group

	bgMu   sync.Mutex // orders wg.Add against Close
	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Cache. Call Close to stop background refreshes.
func New(opts Options) *Cache {
	engine := opts.Engine
	if engine == nil {
		engine = aggregate.NewEngine(0, 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	maxStale := opts.MaxStale
	switch {
	case maxStale < 0:
		maxStale = 0
	case maxStale == 0:
		maxStale = DefaultMaxStale
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Cache{
		reader:             opts.Reader,
		engine:             engine,
		log:                opts.Logger,
		now:                now,
		ttl:                orDuration(opts.TTL, DefaultTTL),
		partialTTL:         orDuration(opts.PartialTTL, DefaultPartialTTL),
		maxStale:           maxStale,
		fallbackLines:      orInt(opts.FallbackLines, DefaultFallbackLines),
		recentLines:        orInt(opts.RecentLines, DefaultRecentLines),
		clientHistoryLines: orInt(opts.ClientHistoryLines, DefaultClientHistoryLines),
		adhocRollups:       orInt(opts.AdhocRollups, DefaultAdhocRollups),
		bg:                 bg,
		cancel:             cancel,
	}
}

// Close cancels background refreshes and waits for them to exit.
func (c *Cache) Close() {
	c.bgMu.Lock()
	c.cancel()
	c.bgMu.Unlock()
	c.wg.Wait()
}

// Snapshot returns the published snapshot, or nil before the first
// successful refresh.
func (c *Cache) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Refresh reads the whole log, recomputes every rollup and publishes the
// result. On failure the previous snapshot stays published untouched. A call
// made while another refresh runs returns immediately with InFlight set.
func (c *Cache) Refresh(ctx context.Context) (RefreshResult, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		return RefreshResult{InFlight: true}, nil
	}
	defer c.refreshing.Store(false)
	return c.refresh(ctx)
}

// TriggerRefresh starts a background refresh unless one is running. It never
// blocks and reports whether a refresh was started.
func (c *Cache) TriggerRefresh() bool {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	if c.bg.Err() != nil {
		return false
	}
	if !c.refreshing.CompareAndSwap(false, true) {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.refreshing.Store(false)
		_, _ = c.refresh(c.bg)
	}()
	return true
}

func (c *Cache) refresh(ctx context.Context) (RefreshResult, error) {
	started := c.now()
	res, err := c.reader.Read(ctx, 0)
	if err != nil {
		failures := 1
		if prev := c.last.Load(); prev != nil {
			failures = prev.failures + 1
		}
		c.last.Store(&attempt{at: started, duration: c.now().Sub(started), err: err, failures: failures})
		c.log.Warn().
			Err(err).
			Int("consecutive_failures", failures).
			Msg("refresh failed, keeping previous snapshot")
		return RefreshResult{}, fmt.Errorf("refresh: %w", err)
	}

	snap := c.build(res, c.now(), c.ttl)
	c.snapshot.Store(snap)
	c.partial.Store(nil)

	duration := c.now().Sub(started)
	c.last.Store(&attempt{at: started, duration: duration})
	c.log.Info().
		Int("entries", len(snap.Entries)).
		Int("skipped", res.Skipped).
		Int("clients", len(snap.Clients)).
		Int("blocks", res.Blocks).
		Dur("duration", duration).
		Msg("snapshot refreshed")

	return RefreshResult{Entries: len(snap.Entries), Skipped: res.Skipped, Clients: len(snap.Clients)}, nil
}

// build derives a snapshot from one read. The day and month rollups and the
// client map are independent and computed concurrently.
func (c *Cache) build(res logtail.Result, now time.Time, ttl time.Duration) *Snapshot {
	snap := &Snapshot{
		Entries:     res.Entries,
		GeneratedAt: now,
		TTL:         ttl,
		Skipped:     res.Skipped,
		engine:      c.engine,
		rollups:     make(map[string]*aggregate.Rollup, 2),
	}
	if memo, err := lru.New[string, *aggregate.Rollup](c.adhocRollups); err == nil {
		snap.adhoc = memo
	}
	var day, month *aggregate.Rollup
	var g errgroup.Group
	g.Go(func() error {
		day = c.engine.Rollup(res.Entries, aggregate.Day, now)
		return nil
	})
	g.Go(func() error {
		month = c.engine.Rollup(res.Entries, aggregate.Month, now)
		return nil
	})
	g.Go(func() error {
		snap.Clients = c.engine.Clients(res.Entries, now)
		return nil
	})
	_ = g.Wait()
	snap.rollups[aggregate.Day.Key] = day
	snap.rollups[aggregate.Month.Key] = month
	return snap
}

// usable returns the published snapshot when it is fresh, or stale but
// within the staleness budget. Any non-fresh state triggers a background
// refresh.
func (c *Cache) usable(now time.Time) (*Snapshot, Source, State) {
	snap := c.snapshot.Load()
	state := snap.State(now)
	switch state {
	case Fresh:
		return snap, SourceFresh, state
	case Stale:
		c.TriggerRefresh()
		if c.maxStale > 0 && now.Sub(snap.ExpiresAt()) < c.maxStale {
			return snap, SourceStale, state
		}
	default:
		c.TriggerRefresh()
	}
	return nil, SourceFallback, state
}

// Get answers a window query. It never blocks on a full-file read: without a
// usable snapshot it answers from a bounded read of the newest
// FallbackLines entries. If that read fails too, the last published snapshot
// is served however old it is, with Err set.
func (c *Cache) Get(ctx context.Context, w aggregate.Window) View {
	now := c.now()
	snap, source, state := c.usable(now)
	if snap != nil {
		return View{Rollup: snap.Rollup(w), Source: source, State: state, GeneratedAt: snap.GeneratedAt}
	}

	partial, err := c.fallback(ctx, now)
	if err != nil {
		if last := c.snapshot.Load(); last != nil {
			return View{Rollup: last.Rollup(w), Source: SourceStale, State: state, GeneratedAt: last.GeneratedAt, Err: err}
		}
		return View{
			Rollup:      c.engine.Rollup(nil, w, now),
			Source:      SourceFallback,
			State:       state,
			GeneratedAt: now,
			Err:         err,
		}
	}
	return View{Rollup: partial.Rollup(w), Source: SourceFallback, State: state, GeneratedAt: partial.GeneratedAt}
}

// Clients answers a client usage query with the same policy as Get.
func (c *Cache) Clients(ctx context.Context) ClientsView {
	now := c.now()
	snap, source, _ := c.usable(now)
	if snap != nil {
		return ClientsView{Clients: snap.Clients, Source: source, GeneratedAt: snap.GeneratedAt}
	}
	partial, err := c.fallback(ctx, now)
	if err != nil {
		if last := c.snapshot.Load(); last != nil {
			return ClientsView{Clients: last.Clients, Source: SourceStale, GeneratedAt: last.GeneratedAt, Err: err}
		}
		return ClientsView{Clients: map[string]aggregate.ClientStat{}, Source: SourceFallback, GeneratedAt: now, Err: err}
	}
	return ClientsView{Clients: partial.Clients, Source: SourceFallback, GeneratedAt: partial.GeneratedAt}
}

// fallback returns a short-lived snapshot of the newest FallbackLines
// entries. Concurrent callers share one read, and the result is reused for
// PartialTTL.
func (c *Cache) fallback(ctx context.Context, now time.Time) (*Snapshot, error) {
	if p := c.partial.Load(); p.State(now) == Fresh {
		return p, nil
	}
	v, err, _ := c.fallbacks.Do(fallbackKey, func() (any, error) {
		if p := c.partial.Load(); p.State(c.now()) == Fresh {
			return p, nil
		}
		// The read is shared by all waiting callers and outlives any one of them.
		res, err := c.reader.Read(context.WithoutCancel(ctx), c.fallbackLines)
		if err != nil {
			c.log.Warn().Err(err).Int("lines", c.fallbackLines).Msg("fallback read failed")
			return nil, err
		}
		p := c.build(res, c.now(), c.partialTTL)
		c.partial.Store(p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// ClientDetail answers a single-client query from the snapshot when usable,
// otherwise from a bounded read of ClientHistoryLines entries.
func (c *Cache) ClientDetail(ctx context.Context, addr string, w aggregate.Window) DetailView {
	now := c.now()
	snap, source, _ := c.usable(now)
	if snap != nil {
		return DetailView{Detail: c.engine.ClientActivity(snap.Entries, addr, w, snap.GeneratedAt), Source: source}
	}
	res, err := c.reader.Read(ctx, c.clientHistoryLines)
	if err != nil {
		if last := c.snapshot.Load(); last != nil {
			return DetailView{Detail: c.engine.ClientActivity(last.Entries, addr, w, last.GeneratedAt), Source: SourceStale, Err: err}
		}
		return DetailView{Detail: c.engine.ClientActivity(nil, addr, w, now), Source: SourceFallback, Err: err}
	}
	return DetailView{Detail: c.engine.ClientActivity(res.Entries, addr, w, now), Source: SourceFallback}
}

// Recent reads the newest n requests straight from the log, newest first.
// n is capped at RecentLines.
func (c *Cache) Recent(ctx context.Context, n int) RecentView {
	if n <= 0 || n > c.recentLines {
		n = c.recentLines
	}
	res, err := c.reader.Read(ctx, n)
	if err != nil {
		return RecentView{Connections: []aggregate.Connection{}, Err: err}
	}
	return RecentView{Connections: aggregate.Connections(res.Entries, c.engine.Domains())}
}

// Status reports the published snapshot and the latest refresh attempt.
func (c *Cache) Status() Status {
	now := c.now()
	snap := c.snapshot.Load()
	st := Status{State: snap.State(now), Refreshing: c.refreshing.Load()}
	if snap != nil {
		st.GeneratedAt = snap.GeneratedAt
		st.ExpiresAt = snap.ExpiresAt()
		st.Entries = len(snap.Entries)
		st.Skipped = snap.Skipped
	}
	if a := c.last.Load(); a != nil {
		st.LastAttempt = a.at
		st.LastDuration = a.duration
		st.LastError = a.err
		st.ConsecutiveFailures = a.failures
	}
	return st
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
