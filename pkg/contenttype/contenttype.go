// Package contenttype classifies HTTP content types and decodes body
// bytes to searchable text.
package contenttype

import (
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// Category represents a broad content-type classification.
type Category string

const (
	JSON   Category = "json"
	XML    Category = "xml"
	HTML   Category = "html"
	YAML   Category = "yaml"
	CSV    Category = "csv"
	Form   Category = "form"
	Text   Category = "text"
	Binary Category = "binary"
)

// Classify returns the broad content category for a content-type header
// value. Uses mime.ParseMediaType to strip parameters (charset, boundary)
// before matching, and falls back to lowercasing for malformed values.
// Returns Binary for empty content-type strings.
func Classify(contentType string) Category {
	if contentType == "" {
		return Binary
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	if strings.Contains(mediaType, "json") {
		return JSON
	}
	if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		return HTML
	}
	if strings.Contains(mediaType, "xml") {
		return XML
	}
	if strings.Contains(mediaType, "yaml") {
		return YAML
	}
	if mediaType == "text/csv" || mediaType == "text/tab-separated-values" {
		return CSV
	}
	if mediaType == "application/x-www-form-urlencoded" {
		return Form
	}
	if strings.HasPrefix(mediaType, "text/") {
		return Text
	}
	return Binary
}

// IsBinary reports whether the content type indicates binary content,
// falling back to UTF-8 validation of data when the type is empty or
// unrecognized.
func IsBinary(contentType string, data []byte) bool {
	ct := strings.ToLower(contentType)

	if strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "xml") ||
		strings.Contains(ct, "javascript") ||
		strings.Contains(ct, "html") ||
		strings.Contains(ct, "css") ||
		strings.Contains(ct, "yaml") ||
		strings.Contains(ct, "form-urlencoded") {
		return false
	}

	if strings.HasPrefix(ct, "image/") ||
		strings.HasPrefix(ct, "audio/") ||
		strings.HasPrefix(ct, "video/") ||
		strings.Contains(ct, "octet-stream") ||
		strings.Contains(ct, "gzip") ||
		strings.Contains(ct, "zip") ||
		strings.Contains(ct, "pdf") {
		return true
	}

	return !utf8.Valid(data)
}

// IsJSON reports whether the content type indicates JSON.
func IsJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}

// DecodeText converts body bytes to UTF-8 text for searching. The charset
// may come from a dedicated field or the content-type parameters; when it
// names a known encoding the bytes are transcoded, otherwise they are
// taken as UTF-8. Returns false for binary content.
func DecodeText(contentType, charset string, data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	if IsBinary(contentType, data) {
		return "", false
	}

	if charset == "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			charset = params["charset"]
		}
	}
	if charset != "" && !strings.EqualFold(charset, "utf-8") {
		if enc, err := htmlindex.Get(charset); err == nil {
			if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
				return string(decoded), true
			}
		}
	}
	return string(data), true
}
