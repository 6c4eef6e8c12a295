// Package ui provides the terminal dashboard for squint.
//
// # Architecture Overview
//
// The dashboard is a Bubble Tea program. It is read-only: every tick it asks
// its Source for the rollup of the selected window, the client table, the
// newest requests and the cache status, then re-renders the active view.
// The Source is either the local refresh cache (wrapped by api.Service) or a
// remote squint API (client.Client), so the same dashboard works in both
// modes.
//
// # Package Structure
//
//   - app.go: Model, Update loop, key handling and the Run entry point
//   - source.go: Source interface, messages and fetch commands
//   - header.go: status bar and tab bar
//   - views.go: Traffic, Domains, Clients and Recent views
//   - help.go: help overlay built from the key map
//   - keys.go: key bindings
//   - theme.go, style_helpers.go: colors and lipgloss helpers
//   - format.go: byte, count and duration formatting
//
// # Views
//
//   - Traffic: bar chart of traffic per hour or day, monthly totals and
//     the status code histogram
//   - Domains: top domains by request count
//   - Clients: clients active in the last 30 days, busiest first
//   - Recent: the newest requests
//
// # Key Bindings
//
//	1-4        switch view
//	tab        next view
//	w          toggle the day/month window
//	r          request a refresh
//	j/k        scroll
//	T          cycle theme
//	h/?        help
//	e, ctrl+c  quit
//
// The theme and window persist across runs via the prefs package.
//
// # Error Handling
//
// A failed fetch keeps the last good data on screen and flags the header.
// Read errors reported by the cache itself (for example a missing log file)
// are shown next to the totals.
package ui
