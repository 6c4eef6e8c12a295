package accesslog

import "time"

// MethodConnect is the tunnelling method whose URL column is a bare host:port.
const MethodConnect = "CONNECT"

// Entry is one parsed proxy transaction. Values are never mutated after
// parsing, so slices of entries can be shared between goroutines.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	ClientAddress  string    `json:"client_address"`
	CacheResult    string    `json:"cache_result"`
	StatusCode     int       `json:"status_code"`
	Bytes          int64     `json:"bytes"`
	Method         string    `json:"method"`
	URL            string    `json:"url"`
	Hierarchy      string    `json:"hierarchy"`
	Server         string    `json:"server"`
	MimeType       string    `json:"mime_type"`
}

// IsConnect reports whether the entry is a CONNECT tunnel.
func (e Entry) IsConnect() bool {
	return e.Method == MethodConnect
}
