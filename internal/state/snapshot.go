package state

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/five82/squint/internal/accesslog"
	"github.com/five82/squint/internal/aggregate"
)

// State is the freshness of the published snapshot.
type State int

const (
	Empty State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "empty"
	}
}

// Snapshot is an immutable entry set plus the rollups derived from it. Every
// rollup of a snapshot is computed with GeneratedAt as "now".
type Snapshot struct {
	Entries     []accesslog.Entry
	Clients     map[string]aggregate.ClientStat
	GeneratedAt time.Time
	TTL         time.Duration
	Skipped     int

	engine  *aggregate.Engine
	rollups map[string]*aggregate.Rollup
	adhoc   *lru.Cache[string, *aggregate.Rollup] // bounded memo of ad-hoc windows
}

// ExpiresAt returns the end of the snapshot's fresh period.
func (s *Snapshot) ExpiresAt() time.Time {
	return s.GeneratedAt.Add(s.TTL)
}

// State reports the snapshot's freshness at now. A nil snapshot is Empty.
func (s *Snapshot) State(now time.Time) State {
	if s == nil {
		return Empty
	}
	if now.Before(s.ExpiresAt()) {
		return Fresh
	}
	return Stale
}

// Rollup returns the rollup for w. Windows that were not precomputed are
// computed on demand and kept in a small LRU, least recently used first out.
func (s *Snapshot) Rollup(w aggregate.Window) *aggregate.Rollup {
	if r, ok := s.rollups[w.Key]; ok {
		return r
	}
	if s.adhoc == nil {
		return s.engine.Rollup(s.Entries, w, s.GeneratedAt)
	}
	if r, ok := s.adhoc.Get(w.Key); ok {
		return r
	}
	r := s.engine.Rollup(s.Entries, w, s.GeneratedAt)
	s.adhoc.Add(w.Key, r)
	return r
}

// AdhocRollups reports how many ad-hoc window rollups are memoized.
func (s *Snapshot) AdhocRollups() int {
	if s.adhoc == nil {
		return 0
	}
	return s.adhoc.Len()
}
