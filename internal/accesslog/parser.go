package accesslog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Parse failure kinds. Use errors.Is against a returned error.
var (
	ErrMalformedLine      = errors.New("malformed line")
	ErrUnrecognizedFormat = errors.New("unrecognized format")
)

const (
	fieldCount      = 10
	maxQuotedLine   = 120
	defaultCharset  = "utf-8"
	connectScheme   = "https://"
	emptyFieldToken = "-"
)

// ParseError describes why a single line was rejected.
type ParseError struct {
	Kind   error
	Reason string
	Line   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s: %q", e.Kind, e.Reason, e.Line)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// Parser turns raw access log lines into entries. A Parser is immutable and
// safe for concurrent use.
type Parser struct {
	loc     *time.Location
	charset encoding.Encoding
}

// NewParser builds a parser that reports timestamps in loc and decodes raw
// bytes as charset (a WHATWG label such as "utf-8" or "windows-1251"). A nil
// loc means UTC; an empty charset means UTF-8.
func NewParser(loc *time.Location, charset string) (*Parser, error) {
	if loc == nil {
		loc = time.UTC
	}
	label := strings.TrimSpace(charset)
	if label == "" {
		label = defaultCharset
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	return &Parser{loc: loc, charset: enc}, nil
}

// Location returns the reporting timezone.
func (p *Parser) Location() *time.Location {
	return p.loc
}

// ParseBytes decodes raw leniently and parses the result.
func (p *Parser) ParseBytes(raw []byte) (Entry, error) {
	return p.Parse(p.decode(raw))
}

// Parse parses one decoded line.
func (p *Parser) Parse(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) != fieldCount {
		return Entry{}, malformed(line, fmt.Sprintf("expected %d fields, got %d", fieldCount, len(fields)))
	}

	sec, nsec, err := parseEpoch(fields[0])
	if err != nil {
		return Entry{}, malformed(line, err.Error())
	}
	elapsed, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || elapsed < 0 {
		return Entry{}, malformed(line, "bad response time")
	}

	result, code, ok := strings.Cut(fields[3], "/")
	if !ok || result == "" {
		return Entry{}, unrecognized(line, "result column lacks result/status")
	}
	status, err := strconv.Atoi(code)
	if err != nil {
		return Entry{}, malformed(line, "non-numeric status")
	}
	if !validStatus(status) {
		return Entry{}, unrecognized(line, fmt.Sprintf("status %d out of range", status))
	}

	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil || size < 0 {
		return Entry{}, malformed(line, "bad byte count")
	}

	if fields[7] != emptyFieldToken {
		return Entry{}, unrecognized(line, "ident column is not '-'")
	}
	hierarchy, server, ok := strings.Cut(fields[8], "/")
	if !ok || hierarchy == "" {
		return Entry{}, unrecognized(line, "hierarchy column lacks hierarchy/server")
	}

	method := fields[5]
	rawURL := fields[6]
	if method == MethodConnect && !strings.Contains(rawURL, "://") {
		rawURL = connectScheme + rawURL
	}

	mime := fields[9]
	if mime == emptyFieldToken {
		mime = ""
	}

	return Entry{
		Timestamp:      time.Unix(sec, nsec).UTC().In(p.loc),
		ResponseTimeMS: elapsed,
		ClientAddress:  fields[2],
		CacheResult:    result,
		StatusCode:     status,
		Bytes:          size,
		Method:         method,
		URL:            rawURL,
		Hierarchy:      hierarchy,
		Server:         server,
		MimeType:       mime,
	}, nil
}

// decode converts raw bytes to UTF-8, dropping undecodable sequences.
func (p *Parser) decode(raw []byte) string {
	t := transform.Chain(p.charset.NewDecoder(), runes.Remove(runes.Predicate(isRuneError)))
	out, _, err := transform.Bytes(t, raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "")
	}
	return string(out)
}

func isRuneError(r rune) bool {
	return r == utf8.RuneError
}

// parseEpoch reads "<seconds>[.<fraction>]" exactly, without going through
// float64.
func parseEpoch(s string) (int64, int64, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) || !allDigits(frac) {
		return 0, 0, fmt.Errorf("bad timestamp %q", s)
	}
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad timestamp %q", s)
	}
	if len(frac) > 9 {
		frac = frac[:9]
	}
	var nsec int64
	if frac != "" {
		n, err := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("bad timestamp %q", s)
		}
		nsec = n
	}
	return sec, nsec, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// validStatus accepts HTTP statuses plus squid's 0 for requests that never
// got a reply.
func validStatus(code int) bool {
	return code == 0 || (code >= 100 && code <= 599)
}

func malformed(line, reason string) error {
	return &ParseError{Kind: ErrMalformedLine, Reason: reason, Line: clip(line)}
}

func unrecognized(line, reason string) error {
	return &ParseError{Kind: ErrUnrecognizedFormat, Reason: reason, Line: clip(line)}
}

func clip(line string) string {
	if len(line) <= maxQuotedLine {
		return line
	}
	return line[:maxQuotedLine] + "..."
}
