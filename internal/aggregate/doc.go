// Package aggregate turns an ascending slice of access log entries into the
// rollups the dashboard and API serve: time buckets, top domains, per-client
// usage and summary counters.
//
// Every function here is a pure transform over its input. Entry slices are
// never modified, so the same slice can feed several rollups at once; Engine
// uses that to compute the parts of a Rollup concurrently.
//
// Windows are trailing ranges measured from a "now" fixed by the caller once
// per aggregation, which keeps every part of one rollup consistent with the
// others.
package aggregate
