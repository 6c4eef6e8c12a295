package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// Config is the resolved squint configuration.
type Config struct {
	LogPath            string
	Timezone           string
	Location           *time.Location
	LogEncoding        string
	BlockSize          int
	FallbackLines      int
	RecentLines        int
	ClientHistoryLines int
	TopDomains         int
	DomainCacheSize    int
	CacheTTL           time.Duration
	PartialTTL         time.Duration
	MaxStale           time.Duration // 0 never serves a stale snapshot
	RefreshInterval    time.Duration
	APIBind            string
	RateLimit          int
	RateLimitWindow    time.Duration
	Log                LogConfig
}

// LogConfig selects squint's own diagnostic log.
type LogConfig struct {
	Level  string
	Output string
	File   string
}

const (
	defaultConfigPath         = "~/.config/squint/config.toml"
	defaultLogPath            = "/var/log/squid/access.log"
	defaultTimezone           = "Europe/Moscow"
	defaultLogEncoding        = "utf-8"
	defaultBlockSize          = 8192
	defaultFallbackLines      = 10000
	defaultRecentLines        = 100
	defaultClientHistoryLines = 50000
	defaultTopDomains         = 10
	defaultDomainCacheSize    = 1000
	defaultCacheTTL           = 5 * time.Minute
	defaultPartialTTL         = time.Minute
	defaultMaxStale           = 15 * time.Minute
	defaultRefreshInterval    = 5 * time.Minute
	defaultAPIBind            = "127.0.0.1:8088"
	defaultRateLimit          = 60
	defaultRateLimitWindow    = time.Minute
	defaultLogLevel           = "info"
	defaultLogOutput          = "stderr"
)

type rawConfig struct {
	LogPath            string `toml:"log_path"`
	Timezone           string `toml:"timezone"`
	LogEncoding        string `toml:"log_encoding"`
	BlockSize          int    `toml:"block_size"`
	FallbackLines      int    `toml:"fallback_lines"`
	RecentLines        int    `toml:"recent_lines"`
	ClientHistoryLines int    `toml:"client_history_lines"`
	TopDomains         int    `toml:"top_domains"`
	DomainCacheSize    int    `toml:"domain_cache_size"`
	CacheTTL           string `toml:"cache_ttl"`
	PartialTTL         string `toml:"partial_ttl"`
	MaxStale           string `toml:"max_stale"`
	RefreshInterval    string `toml:"refresh_interval"`
	APIBind            string `toml:"api_bind"`
	RateLimit          int    `toml:"rate_limit"`
	RateLimitWindow    string `toml:"rate_limit_window"`
	Log                struct {
		Level  string `toml:"level"`
		Output string `toml:"output"`
		File   string `toml:"file"`
	} `toml:"log"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	cfg, err := resolve(rawConfig{})
	if err != nil {
		// Only reachable when the timezone database is unavailable.
		cfg.Location = time.UTC
	}
	return cfg
}

// Load locates and parses the squint config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return resolve(rawConfig{})
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return resolve(raw)
}

func resolve(raw rawConfig) (Config, error) {
	cfg := Config{
		LogPath:            orString(raw.LogPath, defaultLogPath),
		Timezone:           orString(raw.Timezone, defaultTimezone),
		LogEncoding:        strings.ToLower(orString(raw.LogEncoding, defaultLogEncoding)),
		BlockSize:          orInt(raw.BlockSize, defaultBlockSize),
		FallbackLines:      orInt(raw.FallbackLines, defaultFallbackLines),
		RecentLines:        orInt(raw.RecentLines, defaultRecentLines),
		ClientHistoryLines: orInt(raw.ClientHistoryLines, defaultClientHistoryLines),
		TopDomains:         orInt(raw.TopDomains, defaultTopDomains),
		DomainCacheSize:    orInt(raw.DomainCacheSize, defaultDomainCacheSize),
		APIBind:            orString(raw.APIBind, defaultAPIBind),
		RateLimit:          orInt(raw.RateLimit, defaultRateLimit),
		Log: LogConfig{
			Level:  orString(raw.Log.Level, defaultLogLevel),
			Output: orString(raw.Log.Output, defaultLogOutput),
			File:   strings.TrimSpace(raw.Log.File),
		},
	}
	cfg.LogPath = mustExpand(cfg.LogPath)
	if cfg.Log.File != "" {
		cfg.Log.File = mustExpand(cfg.Log.File)
	}

	durations := []struct {
		key       string
		raw       string
		def       time.Duration
		dst       *time.Duration
		allowZero bool
	}{
		{"cache_ttl", raw.CacheTTL, defaultCacheTTL, &cfg.CacheTTL, false},
		{"partial_ttl", raw.PartialTTL, defaultPartialTTL, &cfg.PartialTTL, false},
		{"max_stale", raw.MaxStale, defaultMaxStale, &cfg.MaxStale, true},
		{"refresh_interval", raw.RefreshInterval, defaultRefreshInterval, &cfg.RefreshInterval, false},
		{"rate_limit_window", raw.RateLimitWindow, defaultRateLimitWindow, &cfg.RateLimitWindow, false},
	}
	for _, d := range durations {
		value, err := parseDuration(d.raw, d.def, d.allowZero)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = value
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if _, err := htmlindex.Get(cfg.LogEncoding); err != nil {
		return cfg, fmt.Errorf("invalid log_encoding %q: %w", cfg.LogEncoding, err)
	}
	return cfg, nil
}

func parseDuration(raw string, def time.Duration, allowZero bool) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return def, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	if d == 0 && allowZero {
		return 0, nil
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", trimmed)
	}
	return d, nil
}

func orString(value, def string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return def
}

func orInt(value, def int) int {
	if value <= 0 {
		return def
	}
	return value
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
