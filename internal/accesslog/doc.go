// Package accesslog parses squid native access.log lines into Entry values.
//
// # Line Format
//
// Each line carries ten space-separated fields:
//
//	<epoch.millis> <elapsed_ms> <client> <result>/<status> <bytes> <method> <url> - <hierarchy>/<server> <mime>
//
// For example:
//
//	1700000000.123 150 10.0.0.5 TCP_MISS/200 1024 GET http://example.com/page - HIER_DIRECT/93.184.216.34 text/html
//
// Lines with the wrong number of fields or non-numeric numeric fields fail
// with ErrMalformedLine. Lines with the right shape whose tokens do not follow
// squid conventions (missing "/" separators, an ident column other than "-",
// an impossible status) fail with ErrUnrecognizedFormat. Both are wrapped in a
// *ParseError so callers can count and skip them.
//
// # Time Handling
//
// Timestamps are parsed from their decimal text (no float rounding) as UTC and
// projected into the Parser's reporting location, so every downstream bucket
// is computed in that zone.
//
// # Encoding Noise
//
// ParseBytes decodes raw bytes with the configured charset and drops byte
// sequences that cannot be decoded instead of rejecting the line.
//
// # CONNECT Requests
//
// CONNECT lines log a bare host:port target. The parsed URL is reported as
// https://host:port.
package accesslog
