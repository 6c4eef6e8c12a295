// Package client talks to a running squint API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/five82/squint/internal/aggregate"
	"github.com/five82/squint/internal/api"
)

// Client talks to the squint HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultAPIBind   = "127.0.0.1:8088"
	defaultUserAgent = "squint/0.1"
	requestTimeout   = 10 * time.Second
	// refreshTimeout covers a full read of a large log on the server.
	refreshTimeout = 5 * time.Minute
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s returned status %d", e.Path, e.Code)
	}
	return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Code, e.Message)
}

// NewClient builds a Client using the provided apiBind host:port value.
func NewClient(apiBind string) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}, nil
}

// Rollup fetches the aggregates of window w.
func (c *Client) Rollup(ctx context.Context, w aggregate.Window) (api.RollupResponse, error) {
	var payload api.RollupResponse
	err := c.get(ctx, "/api/rollup", windowQuery(w), &payload)
	return payload, err
}

// Entries fetches the raw entries of window w.
func (c *Client) Entries(ctx context.Context, w aggregate.Window) (api.EntriesResponse, error) {
	var payload api.EntriesResponse
	err := c.get(ctx, "/api/entries", windowQuery(w), &payload)
	return payload, err
}

// Clients fetches client usage.
func (c *Client) Clients(ctx context.Context) (api.ClientsResponse, error) {
	var payload api.ClientsResponse
	err := c.get(ctx, "/api/clients", nil, &payload)
	return payload, err
}

// ClientDetail fetches one page of a client's history.
func (c *Client) ClientDetail(ctx context.Context, addr string, w aggregate.Window, page int) (api.ClientDetailResponse, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return api.ClientDetailResponse{}, fmt.Errorf("client address required")
	}
	values := windowQuery(w)
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	var payload api.ClientDetailResponse
	err := c.get(ctx, "/api/clients/"+url.PathEscape(addr), values, &payload)
	return payload, err
}

// Recent fetches up to n of the newest requests.
func (c *Client) Recent(ctx context.Context, n int) (api.RecentResponse, error) {
	values := url.Values{}
	if n > 0 {
		values.Set("limit", strconv.Itoa(n))
	}
	var payload api.RecentResponse
	err := c.get(ctx, "/api/recent", values, &payload)
	return payload, err
}

// Status fetches the cache status.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var payload api.StatusResponse
	err := c.get(ctx, "/api/status", nil, &payload)
	return payload, err
}

// Refresh asks the server to refresh synchronously.
func (c *Client) Refresh(ctx context.Context) (api.RefreshResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	var payload api.RefreshResponse
	err := c.doURL(ctx, http.MethodPost, &url.URL{Path: "/api/refresh"}, &payload)
	return payload, err
}

func windowQuery(w aggregate.Window) url.Values {
	values := url.Values{}
	if w.Key != "" {
		values.Set("window", w.Key)
	}
	return values
}

func (c *Client) get(ctx context.Context, path string, values url.Values, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	rel := &url.URL{Path: path, RawQuery: values.Encode()}
	return c.doURL(ctx, http.MethodGet, rel, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr api.ErrorResponse
		_ = json.Unmarshal(body, &apiErr)
		return &StatusError{Path: rel.Path, Code: resp.StatusCode, Message: apiErr.Error}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
