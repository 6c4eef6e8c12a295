package aggregate

import (
	"net"
	"net/url"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/five82/squint/internal/accesslog"
)

// UnknownDomain stands in for URLs whose host cannot be determined.
const UnknownDomain = "unknown"

const (
	DefaultTopN           = 10
	DefaultDomainMemoSize = 1000
)

// DomainStat counts requests and traffic for one domain.
type DomainStat struct {
	Domain       string `json:"domain"`
	Requests     int64  `json:"request_count"`
	TrafficBytes int64  `json:"traffic_bytes"`
}

// ExtractDomain returns the host of a CONNECT target (port stripped) or the
// authority of any other URL, lowercased. Failures map to UnknownDomain.
func ExtractDomain(method, rawURL string) string {
	if method == accesslog.MethodConnect {
		target := rawURL
		if _, rest, ok := strings.Cut(rawURL, "://"); ok {
			target = rest
		}
		host, _, err := net.SplitHostPort(target)
		if err != nil {
			host = target
		}
		return normalizeHost(host)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return UnknownDomain
	}
	return normalizeHost(u.Host)
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return UnknownDomain
	}
	return host
}

// DomainExtractor memoizes ExtractDomain in a size-bounded LRU. It is safe for
// concurrent use.
type DomainExtractor struct {
	memo *lru.Cache[string, string]
}

// NewDomainExtractor keeps at most size results; size <= 0 uses
// DefaultDomainMemoSize.
func NewDomainExtractor(size int) *DomainExtractor {
	if size <= 0 {
		size = DefaultDomainMemoSize
	}
	memo, err := lru.New[string, string](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &DomainExtractor{memo: memo}
}

// Domain returns the domain of e.
func (d *DomainExtractor) Domain(e accesslog.Entry) string {
	if d == nil {
		return ExtractDomain(e.Method, e.URL)
	}
	key := e.Method + " " + e.URL
	if domain, ok := d.memo.Get(key); ok {
		return domain
	}
	domain := ExtractDomain(e.Method, e.URL)
	d.memo.Add(key, domain)
	return domain
}

// Len reports how many results are memoized.
func (d *DomainExtractor) Len() int {
	if d == nil {
		return 0
	}
	return d.memo.Len()
}

// TopDomains returns up to n domains with the most requests, highest first.
// Domains are ranked by a stable ascending sort over first-appearance order
// and the last n are taken, so identical input always gives identical output.
func TopDomains(entries []accesslog.Entry, n int, extractor *DomainExtractor) []DomainStat {
	if n <= 0 {
		n = DefaultTopN
	}
	index := make(map[string]int)
	var stats []DomainStat
	for _, e := range entries {
		domain := extractor.Domain(e)
		i, ok := index[domain]
		if !ok {
			i = len(stats)
			index[domain] = i
			stats = append(stats, DomainStat{Domain: domain})
		}
		stats[i].Requests++
		stats[i].TrafficBytes += e.Bytes
	}

	slices.SortStableFunc(stats, func(a, b DomainStat) int {
		switch {
		case a.Requests < b.Requests:
			return -1
		case a.Requests > b.Requests:
			return 1
		default:
			return 0
		}
	})
	if len(stats) > n {
		stats = stats[len(stats)-n:]
	}
	slices.Reverse(stats)
	return stats
}
