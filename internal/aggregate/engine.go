package aggregate

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/squint/internal/accesslog"
)

// Rollup is every aggregate computed for one window.
type Rollup struct {
	Window      Window
	GeneratedAt time.Time
	Since       time.Time
	Granularity Granularity
	Entries     []accesslog.Entry
	Buckets     []Bucket
	Monthly     []Bucket
	Domains     []DomainStat
	Summary     Summary
}

// Engine computes rollups. It owns the domain memo; everything else is
// derived from the input on each call.
type Engine struct {
	topN    int
	domains *DomainExtractor
}

// NewEngine builds an engine reporting topN domains and memoizing up to
// memoSize domain extractions.
func NewEngine(topN, memoSize int) *Engine {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Engine{topN: topN, domains: NewDomainExtractor(memoSize)}
}

// TopN returns the configured domain ranking size.
func (e *Engine) TopN() int {
	return e.topN
}

// Domains returns the engine's domain extractor.
func (e *Engine) Domains() *DomainExtractor {
	return e.domains
}

// Rollup filters ascending entries to w and computes its aggregates. The
// independent parts run concurrently; none of them mutate entries.
func (e *Engine) Rollup(entries []accesslog.Entry, w Window, now time.Time) *Rollup {
	inWindow := w.Filter(entries, now)
	r := &Rollup{
		Window:      w,
		GeneratedAt: now,
		Since:       w.Since(now),
		Granularity: w.Granularity(),
		Entries:     inWindow,
	}

	var g errgroup.Group
	g.Go(func() error {
		r.Buckets = Buckets(inWindow, r.Granularity)
		return nil
	})
	g.Go(func() error {
		r.Monthly = Buckets(inWindow, Monthly)
		return nil
	})
	g.Go(func() error {
		r.Domains = TopDomains(inWindow, e.topN, e.domains)
		return nil
	})
	g.Go(func() error {
		r.Summary = Summarize(inWindow)
		return nil
	})
	_ = g.Wait()
	return r
}

// Clients computes per-client usage over entries.
func (e *Engine) Clients(entries []accesslog.Entry, now time.Time) map[string]ClientStat {
	return Clients(entries, now)
}
