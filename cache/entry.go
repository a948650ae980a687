package cache

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// StampHeader is the synthetic response header carrying the time an entry
// was written to the cache, as unix milliseconds. It replaces HTTP freshness
// headers for age computation; an entry without it has unknown age.
const StampHeader = "X-Cached-At"

// Entry represents a cached request/response pair
type Entry struct {
	// Method is the HTTP method of the original request
	Method string `json:"method"`
	// Path represents the request path of the cached entry
	Path string `json:"path"`
	// Query represents the raw URL query of the cached entry
	Query string `json:"query,omitempty"`
	// Status is the upstream response status code
	Status int `json:"status"`
	// Header holds the upstream response headers plus the stamp header
	Header http.Header `json:"header"`
	// Body is the upstream response payload
	Body []byte `json:"body"`
}

// Key returns the store key of the entry
func (e *Entry) Key() string {
	return entryKey(e.Method, e.Path, e.Query)
}

// Size returns the byte size of the entry body.
// Recomputed from the body on every call, no separate size is stored.
func (e *Entry) Size() int {
	return len(e.Body)
}

// Stamp records t on the entry as the synthetic cached-at header
func (e *Entry) Stamp(t time.Time) {
	if e.Header == nil {
		e.Header = http.Header{}
	}
	e.Header.Set(StampHeader, strconv.FormatInt(t.UnixMilli(), 10))
}

// StampedAt returns the time the entry was stamped.
// ok is false when the entry carries no parseable stamp (unknown age).
func (e *Entry) StampedAt() (t time.Time, ok bool) {
	v := e.Header.Get(StampHeader)
	if v == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.UnixMilli(ms), true
}

// RequestKey returns the store key for an incoming request
func RequestKey(req *http.Request) string {
	return entryKey(req.Method, req.URL.Path, req.URL.RawQuery)
}

func entryKey(method, path, query string) string {
	if query == "" {
		return fmt.Sprintf("%s %s", method, path)
	}

	return fmt.Sprintf("%s %s?%s", method, path, query)
}

// newEntry builds an entry from an upstream response to req.
// Headers are cloned so stamping the entry does not leak the stamp into the
// live response relayed to the client.
func newEntry(req *http.Request, status int, header http.Header, body []byte) *Entry {
	return &Entry{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Status: status,
		Header: header.Clone(),
		Body:   body,
	}
}
