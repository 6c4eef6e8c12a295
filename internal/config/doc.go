// Package config loads squint's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/squint/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing, empty or zero, use defaults
//
// # TOML Format
//
// Example config.toml:
//
//	log_path = "/var/log/squid/access.log"
//	timezone = "Europe/Moscow"
//	log_encoding = "windows-1251"
//	cache_ttl = "5m"
//	refresh_interval = "5m"
//	api_bind = "127.0.0.1:8088"
//
//	[log]
//	level = "info"
//	output = "file"
//	file = "~/.local/share/squint/squint.log"
//
// Every field is optional. Durations use Go duration syntax. Tilde expansion
// is performed for log_path and log.file.
//
// # Validation
//
// Load resolves the timezone and the log encoding up front, so a typo in
// either fails at startup with "invalid timezone" or "invalid log_encoding"
// instead of on the first refresh. Durations must be positive.
//
// Missing config files are NOT an error. Squint runs against the stock squid
// log location without any configuration.
package config
