package session

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// StatusCategory is the broad class of an HTTP status code.
type StatusCategory string

const (
	StatusInformational StatusCategory = "informational"
	StatusSuccess       StatusCategory = "success"
	StatusRedirect      StatusCategory = "redirect"
	StatusClientError   StatusCategory = "client_error"
	StatusServerError   StatusCategory = "server_error"
	StatusUnknown       StatusCategory = "unknown"
)

// CategoryOf maps a status code to its category. Codes outside 100..599
// (including the synthesized 0 of failed sessions) map to StatusUnknown.
func CategoryOf(status int) StatusCategory {
	switch {
	case status >= 100 && status < 200:
		return StatusInformational
	case status >= 200 && status < 300:
		return StatusSuccess
	case status >= 300 && status < 400:
		return StatusRedirect
	case status >= 400 && status < 500:
		return StatusClientError
	case status >= 500 && status < 600:
		return StatusServerError
	default:
		return StatusUnknown
	}
}

// Response is the immutable response half of a session. A failed session
// carries a synthesized response with status 0 and an error message.
type Response struct {
	StatusCode   int               `json:"statusCode"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         []byte            `json:"body,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Duration     time.Duration     `json:"duration"`
	MIMEType     string            `json:"mimeType,omitempty"`
	Charset      string            `json:"charset,omitempty"`
	FromCache    bool              `json:"fromCache"`
	ErrorMessage *string           `json:"error,omitempty"`
}

// Category returns the status class of the response.
func (r Response) Category() StatusCategory {
	return CategoryOf(r.StatusCode)
}

// Header returns the value for a header name, case-insensitive.
func (r Response) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ContentLength prefers the Content-Length header and falls back to the
// byte count of the body.
func (r Response) ContentLength() int64 {
	if v := r.Header("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return int64(len(r.Body))
}

// Err exposes the error message, or "" when the response succeeded.
func (r Response) Err() string {
	if r.ErrorMessage == nil {
		return ""
	}
	return *r.ErrorMessage
}

// Equal compares every field except the error message, which is excluded
// from equality on purpose.
func (r Response) Equal(other Response) bool {
	if r.StatusCode != other.StatusCode ||
		!r.Timestamp.Equal(other.Timestamp) ||
		r.Duration != other.Duration ||
		r.MIMEType != other.MIMEType ||
		r.Charset != other.Charset ||
		r.FromCache != other.FromCache {
		return false
	}
	if !bytes.Equal(r.Body, other.Body) {
		return false
	}
	if len(r.Headers) != len(other.Headers) {
		return false
	}
	for k, v := range r.Headers {
		if ov, ok := other.Headers[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns a deep copy with its own header map and body slice.
func (r Response) Clone() Response {
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
	if r.ErrorMessage != nil {
		msg := *r.ErrorMessage
		out.ErrorMessage = &msg
	}
	return out
}
