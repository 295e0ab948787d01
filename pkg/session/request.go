package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodConnect Method = "CONNECT"
)

// ParseMethod normalizes a method string to one of the known verbs.
// Unknown verbs are returned uppercased as-is.
func ParseMethod(s string) Method {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodGet, MethodHead, MethodPost, MethodPut, MethodPatch,
		MethodDelete, MethodOptions, MethodTrace, MethodConnect:
		return m
	}
	return m
}

// Request is the immutable request half of a session.
type Request struct {
	URL       string            `json:"url"`
	Method    Method            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      []byte            `json:"body,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewRequest builds a request stamped with the current time.
func NewRequest(rawURL string, method Method) Request {
	return Request{
		URL:       rawURL,
		Method:    method,
		CreatedAt: time.Now(),
	}
}

// Host extracts the host portion of the URL, best effort. Returns "" when
// the URL does not parse.
func (r Request) Host() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Path extracts the path portion of the URL, best effort.
func (r Request) Path() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Path
}

// QueryParams extracts the query parameters of the URL, best effort.
// Returns an empty map when the URL does not parse.
func (r Request) QueryParams() url.Values {
	u, err := url.Parse(r.URL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

// Header returns the value for a header name using a case-insensitive
// lookup. Stored keys keep their original case.
func (r Request) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Fingerprint derives a stable identity hash from URL, method and creation
// time. Useful for de-duplication; not required for equality.
func (r Request) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", r.Method, r.URL, r.CreatedAt.UnixNano())))
	return hex.EncodeToString(sum[:])
}

// Clone returns a deep copy with its own header map and body slice.
func (r Request) Clone() Request {
	out := r
	if r.Headers != nil {
		out.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			out.Headers[k] = v
		}
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}
