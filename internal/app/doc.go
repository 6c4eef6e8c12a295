// Package app is the composition root for squint.
//
// Each subcommand loads the TOML config, builds a zerolog logger, and wires
// the pipeline that every view reads from:
//
//	logtail.Reader -> accesslog.Parser -> aggregate.Engine -> state.Cache
//
// # Commands
//
// Serve starts the background poller and the HTTP API on api_bind. It blocks
// until the context is cancelled, then shuts the server down gracefully and
// waits for the poller to exit.
//
// Top runs the Bubble Tea dashboard. By default it owns its own cache and
// poller and reads the log directly through api.Service. With Remote set it
// builds no cache and instead reads from a running "squint serve" through
// the HTTP client. Unless logging goes to a file the logger is disabled so
// log lines never draw over the dashboard.
//
// RefreshOnce performs a single full refresh and prints how many entries and
// clients were processed. It exits non-zero when the refresh fails, which
// makes it usable from cron.
//
// # Poller
//
// StartPoller refreshes immediately and then once per refresh_interval. A
// failed refresh is logged and the poller waits for the next tick; the cache
// keeps serving its last good snapshot in the meantime, and its status
// reports the consecutive failure count. A refresh that finds another one
// already running is a no-op.
package app
