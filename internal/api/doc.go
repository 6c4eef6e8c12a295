// Package api exposes the refresh cache over HTTP.
//
// Routes are registered on a gorilla/mux router and wrapped in two
// middlewares: structured request logging and a per-client token bucket.
// Every response is JSON except /healthz.
//
//	GET  /api/rollup?window=day        aggregated rollup for a window
//	GET  /api/entries?window=6h        raw entries of a window, ascending
//	GET  /api/clients                  client usage, busiest first
//	GET  /api/clients/{ip}?page=2      one client's history, 25 per page
//	GET  /api/recent?limit=50          newest requests, newest first
//	GET  /api/status                   snapshot and refresh status
//	POST /api/refresh                  synchronous refresh
//	GET  /healthz                      liveness
//
// The wire types live here as well. Service converts cache views into them,
// so the HTTP handlers, the remote client and the local dashboard all see
// the same shapes.
package api
