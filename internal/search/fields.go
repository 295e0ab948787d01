package search

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/wirecap/wirecap/pkg/contenttype"
	"github.com/wirecap/wirecap/pkg/session"
)

// Field names a searchable projection of a session.
type Field string

const (
	FieldURL             Field = "url"
	FieldHost            Field = "host"
	FieldPath            Field = "path"
	FieldQueryParams     Field = "query_params"
	FieldRequestHeaders  Field = "request_headers"
	FieldResponseHeaders Field = "response_headers"
	FieldMethod          Field = "method"
	FieldStatus          Field = "status"
	FieldMetadata        Field = "metadata"
	FieldRequestBody     Field = "request_body"
	FieldResponseBody    Field = "response_body"
)

// DefaultFields is the search scope when a query names none.
var DefaultFields = []Field{
	FieldURL, FieldHost, FieldPath, FieldQueryParams,
	FieldRequestHeaders, FieldResponseHeaders,
	FieldMethod, FieldStatus, FieldMetadata,
	FieldRequestBody, FieldResponseBody,
}

// fieldWeights rank a hit by where it occurred: a URL hit outranks a
// header hit, which outranks a body hit.
var fieldWeights = map[Field]float64{
	FieldURL:             10,
	FieldHost:            8,
	FieldPath:            6,
	FieldQueryParams:     5,
	FieldRequestHeaders:  4,
	FieldResponseHeaders: 3,
	FieldMethod:          2,
	FieldStatus:          2,
	FieldMetadata:        2,
	FieldRequestBody:     1,
	FieldResponseBody:    1,
}

// fieldText serializes one field of a session to searchable text. Header
// and metadata maps render as sorted "key: value" lines so offsets are
// stable. Returns false when the session has no text for the field.
func fieldText(s session.Session, f Field) (string, bool) {
	switch f {
	case FieldURL:
		return s.Request.URL, s.Request.URL != ""
	case FieldHost:
		h := s.Request.Host()
		return h, h != ""
	case FieldPath:
		p := s.Request.Path()
		return p, p != ""
	case FieldQueryParams:
		return paramLines(s.Request.QueryParams())
	case FieldRequestHeaders:
		return mapLines(s.Request.Headers)
	case FieldResponseHeaders:
		if s.Response == nil {
			return "", false
		}
		return mapLines(s.Response.Headers)
	case FieldMethod:
		return string(s.Request.Method), s.Request.Method != ""
	case FieldStatus:
		if s.Response == nil {
			return "", false
		}
		return strconv.Itoa(s.Response.StatusCode), true
	case FieldMetadata:
		return metadataLines(s.Metadata)
	case FieldRequestBody:
		return contenttype.DecodeText(s.Request.Header("Content-Type"), "", s.Request.Body)
	case FieldResponseBody:
		if s.Response == nil {
			return "", false
		}
		ct := s.Response.MIMEType
		if ct == "" {
			ct = s.Response.Header("Content-Type")
		}
		return contenttype.DecodeText(ct, s.Response.Charset, s.Response.Body)
	default:
		return "", false
	}
}

func mapLines(m map[string]string) (string, bool) {
	if len(m) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+m[k])
	}
	return strings.Join(lines, "\n"), true
}

func paramLines(params url.Values) (string, bool) {
	if len(params) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var lines []string
	for _, k := range keys {
		for _, v := range params[k] {
			lines = append(lines, k+"="+v)
		}
	}
	return strings.Join(lines, "\n"), true
}

func metadataLines(m session.Metadata) (string, bool) {
	if len(m) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+m[k].String())
	}
	return strings.Join(lines, "\n"), true
}
