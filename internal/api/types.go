package api

import (
	"time"

	"github.com/five82/squint/internal/accesslog"
	"github.com/five82/squint/internal/aggregate"
)

// DetailPageSize is the number of connections per client detail page.
const DetailPageSize = 25

// RollupResponse is the body of GET /api/rollup.
type RollupResponse struct {
	Window       string                 `json:"window"`
	Source       string                 `json:"source"`
	State        string                 `json:"state"`
	GeneratedAt  time.Time              `json:"generated_at"`
	Since        time.Time              `json:"since"`
	Granularity  string                 `json:"granularity"`
	EntriesCount int                    `json:"entries_count"`
	Buckets      []aggregate.Bucket     `json:"buckets"`
	Monthly      []aggregate.Bucket     `json:"monthly"`
	Domains      []aggregate.DomainStat `json:"domains"`
	Summary      aggregate.Summary      `json:"summary"`
	Error        string                 `json:"error,omitempty"`
}

// EntriesResponse is the body of GET /api/entries.
type EntriesResponse struct {
	Window      string            `json:"window"`
	Source      string            `json:"source"`
	GeneratedAt time.Time         `json:"generated_at"`
	Entries     []accesslog.Entry `json:"entries"`
	Error       string            `json:"error,omitempty"`
}

// ClientsResponse is the body of GET /api/clients.
type ClientsResponse struct {
	Source      string                 `json:"source"`
	GeneratedAt time.Time              `json:"generated_at"`
	Clients     []aggregate.ClientStat `json:"clients"`
	Error       string                 `json:"error,omitempty"`
}

// ClientDetailResponse is the body of GET /api/clients/{ip}.
type ClientDetailResponse struct {
	ClientAddress string                 `json:"client_address"`
	Window        string                 `json:"window"`
	Source        string                 `json:"source"`
	Page          int                    `json:"page"`
	Pages         int                    `json:"pages"`
	PerPage       int                    `json:"per_page"`
	Total         int                    `json:"total"`
	Connections   []aggregate.Connection `json:"connections"`
	Buckets       []aggregate.Bucket     `json:"buckets"`
	Domains       []aggregate.DomainStat `json:"domains"`
	Summary       aggregate.Summary      `json:"summary"`
	Error         string                 `json:"error,omitempty"`
}

// RecentResponse is the body of GET /api/recent.
type RecentResponse struct {
	Connections []aggregate.Connection `json:"connections"`
	Error       string                 `json:"error,omitempty"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State               string    `json:"state"`
	GeneratedAt         time.Time `json:"generated_at"`
	ExpiresAt           time.Time `json:"expires_at"`
	Entries             int       `json:"entries"`
	Skipped             int       `json:"skipped"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastDurationMS      int64     `json:"last_duration_ms"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Degraded            bool      `json:"degraded"`
	Refreshing          bool      `json:"refreshing"`
}

// RefreshResponse is the body of POST /api/refresh.
type RefreshResponse struct {
	Entries  int    `json:"entries"`
	Skipped  int    `json:"skipped"`
	Clients  int    `json:"clients"`
	InFlight bool   `json:"in_flight"`
	Error    string `json:"error,omitempty"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
