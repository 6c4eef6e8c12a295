// Package state holds the refresh cache that sits between the access log and
// every reader of aggregated data.
//
// # Overview
//
// A full read of a large access log takes seconds. Queries must not wait for
// it, so the Cache keeps one precomputed Snapshot: the parsed entries, the
// day and month rollups, and the per-client usage map, all computed against
// the same GeneratedAt instant.
//
//	Producer (poller / refresh):         Consumers (API, TUI):
//	┌──────────────────────┐            ┌──────────────────────┐
//	│ reader.Read(ctx, 0)  │            │                      │
//	│        ↓             │            │                      │
//	│ build rollups        │            │                      │
//	│        ↓             │  (atomic)  │                      │
//	│ snapshot.Store(new)  │───────────→│ snapshot.Load()      │
//	└──────────────────────┘            └──────────────────────┘
//
// # Snapshot States
//
//   - Empty: nothing has been published yet
//   - Fresh: GeneratedAt + TTL is still in the future
//   - Stale: the TTL has passed
//
// A Fresh snapshot answers directly. A Stale one still answers while it is
// within MaxStale of expiring, and a background refresh is started. Past
// that budget, or while Empty, queries answer from a bounded read of the
// newest FallbackLines entries. That partial snapshot is shared between
// concurrent callers and reused for PartialTTL.
//
// # Refresh Semantics
//
// Refresh is the only writer. It reads the whole file, builds a complete
// snapshot, then publishes it with a single pointer swap:
//
//	// Success: replace the snapshot
//	cache.Refresh(ctx)
//	→ snapshot = new
//	→ ConsecutiveFailures = 0
//
//	// Failure: keep the old snapshot, record the error
//	cache.Refresh(ctx)
//	→ snapshot = <unchanged>
//	→ LastError = err
//	→ ConsecutiveFailures++
//
// At most one refresh runs at a time. A second caller gets
// RefreshResult{InFlight: true} and a nil error.
//
// # Usage Example
//
//	cache := state.New(state.Options{Reader: reader, Engine: engine, Logger: log})
//	defer cache.Close()
//	if _, err := cache.Refresh(ctx); err != nil {
//		log.Warn().Err(err).Msg("initial refresh failed")
//	}
//	view := cache.Get(ctx, aggregate.Day)
//	render(view.Rollup)
package state
