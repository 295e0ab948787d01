// Package extract pulls values out of non-JSON session bodies with
// CSS selectors, XPath, regular expressions or form-key lookups.
package extract

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/internal/storage"
	"github.com/wirecap/wirecap/pkg/contenttype"
	"github.com/wirecap/wirecap/pkg/session"
)

// Mode selects the extraction language.
type Mode string

const (
	ModeCSS   Mode = "css"
	ModeXPath Mode = "xpath"
	ModeRegex Mode = "regex"
	ModeForm  Mode = "form"
)

// DetectMode picks an extraction mode from a content type. JSON and YAML
// bodies return empty: those belong to the jq engine, not this one.
func DetectMode(ct string) Mode {
	switch contenttype.Classify(ct) {
	case contenttype.HTML:
		return ModeCSS
	case contenttype.XML:
		return ModeXPath
	case contenttype.Form:
		return ModeForm
	case contenttype.JSON, contenttype.YAML:
		return ""
	case contenttype.Binary:
		return ""
	default:
		return ModeRegex
	}
}

// Engine runs extractions against the sessions in a store.
type Engine struct {
	store storage.Storage
}

// New creates an engine over the store.
func New(store storage.Storage) *Engine {
	return &Engine{store: store}
}

// Options controls one run.
type Options struct {
	// Predicate narrows the sessions scanned; nil means all of them.
	Predicate filter.Predicate
	// Mode forces one extraction language. Empty auto-detects per session
	// from the response content type, skipping bodies with no suitable
	// mode.
	Mode Mode
	// MaxResults stops the run once this many values have been produced.
	// Zero means unlimited.
	MaxResults int
}

// Result holds the values a run produced.
type Result struct {
	Values []any `json:"values"`
	// Errors are per-session extraction problems. Bodies skipped by mode
	// detection are not reported here.
	Errors []string `json:"errors,omitempty"`
	// SessionCounts maps each contributing session to its value count.
	SessionCounts map[uuid.UUID]int `json:"sessionCounts,omitempty"`
}

// Run applies the expression to every response body in scope. A forced
// mode with an invalid expression fails the whole run; per-session parse
// problems are collected instead.
func (e *Engine) Run(ctx context.Context, expression string, opts Options) (*Result, error) {
	if expression == "" {
		return nil, errdef.New(errdef.CodeValidate, "extraction expression is required")
	}
	if opts.Mode != "" {
		if err := validate(expression, opts.Mode); err != nil {
			return nil, err
		}
	}

	var (
		sessions []session.Session
		err      error
	)
	if opts.Predicate != nil {
		sessions, err = e.store.LoadMatching(ctx, opts.Predicate)
	} else {
		sessions, err = e.store.LoadAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		Values:        make([]any, 0),
		SessionCounts: make(map[uuid.UUID]int),
	}
	for _, sess := range sessions {
		if opts.MaxResults > 0 && len(result.Values) >= opts.MaxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, ct, ok := responseBody(sess)
		if !ok {
			continue
		}
		mode := opts.Mode
		if mode == "" {
			mode = DetectMode(ct)
			if mode == "" {
				continue
			}
		}

		remaining := 0
		if opts.MaxResults > 0 {
			remaining = opts.MaxResults - len(result.Values)
		}
		values, err := runMode(mode, body, ct, expression, remaining)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sess.ID, err))
			continue
		}
		if len(values) == 0 {
			continue
		}
		result.SessionCounts[sess.ID] = len(values)
		result.Values = append(result.Values, values...)
	}
	return result, nil
}

func responseBody(s session.Session) ([]byte, string, bool) {
	if s.Response == nil || len(s.Response.Body) == 0 {
		return nil, "", false
	}
	ct := s.Response.MIMEType
	if ct == "" {
		ct = s.Response.Header("Content-Type")
	}
	return s.Response.Body, ct, true
}

func runMode(mode Mode, body []byte, ct, expression string, maxResults int) ([]any, error) {
	switch mode {
	case ModeCSS:
		return extractCSS(body, expression, maxResults)
	case ModeXPath:
		return extractXPath(body, ct, expression, maxResults)
	case ModeRegex:
		return extractRegex(body, expression, maxResults)
	case ModeForm:
		return extractForm(body, expression, maxResults)
	default:
		return nil, errdef.New(errdef.CodeValidate,
			"unknown extraction mode %q (valid: css, xpath, regex, form)", mode)
	}
}

// validate checks an expression up front for the modes that can be
// compiled without a body.
func validate(expression string, mode Mode) error {
	switch mode {
	case ModeRegex:
		_, err := extractRegex(nil, expression, 0)
		return err
	case ModeCSS, ModeXPath, ModeForm:
		return nil
	default:
		return errdef.New(errdef.CodeValidate,
			"unknown extraction mode %q (valid: css, xpath, regex, form)", mode)
	}
}
