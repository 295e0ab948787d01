// Package query runs jq expressions over the JSON bodies of stored
// sessions.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/itchyny/gojq"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/internal/storage"
	"github.com/wirecap/wirecap/pkg/contenttype"
	"github.com/wirecap/wirecap/pkg/session"
)

// Engine executes jq expressions against the sessions in a store.
type Engine struct {
	store storage.Storage
}

// New creates an engine over the store.
func New(store storage.Storage) *Engine {
	return &Engine{store: store}
}

// Options controls one run.
type Options struct {
	// Predicate narrows the sessions queried; nil means all of them.
	Predicate filter.Predicate
	// RequestBodies also feeds request bodies through the expression.
	RequestBodies bool
	// Deduplicate drops repeated values across sessions.
	Deduplicate bool
	// MaxResults stops the run once this many values have been produced.
	// Zero means unlimited.
	MaxResults int
}

// Result holds the values a run produced.
type Result struct {
	// Values are the extracted values in session order.
	Values []any `json:"values"`
	// Errors are per-session evaluation problems, deduplicated. A session
	// with a non-JSON body is skipped silently, not reported here.
	Errors []string `json:"errors,omitempty"`
	// RawCount counts produced values before deduplication.
	RawCount int `json:"rawCount"`
	// SessionCounts maps each contributing session to its value count.
	SessionCounts map[uuid.UUID]int `json:"sessionCounts,omitempty"`
}

// Run compiles the expression, feeds it every JSON body in scope, and
// collects the produced values. An expression that does not parse or
// compile fails the whole run.
func (e *Engine) Run(ctx context.Context, expression string, opts Options) (*Result, error) {
	code, err := compile(expression)
	if err != nil {
		return nil, err
	}

	var sessions []session.Session
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
	seen := make(map[string]bool)
	seenErrors := make(map[string]bool)

	for _, sess := range sessions {
		if opts.MaxResults > 0 && len(result.Values) >= opts.MaxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, body := range jsonBodies(sess, opts.RequestBodies) {
			runOne(code, sess.ID, body, opts, result, seen, seenErrors)
		}
	}
	return result, nil
}

// Validate checks an expression without executing it.
func (e *Engine) Validate(expression string) error {
	_, err := compile(expression)
	return err
}

func compile(expression string) (*gojq.Code, error) {
	parsed, err := gojq.Parse(expression)
	if err != nil {
		var parseErr *gojq.ParseError
		if errors.As(err, &parseErr) {
			return nil, errdef.Wrap(errdef.CodeValidate, err,
				"invalid jq expression at position %d", parseErr.Offset)
		}
		return nil, errdef.Wrap(errdef.CodeValidate, err, "invalid jq expression")
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeValidate, err, "compile jq expression")
	}
	return code, nil
}

// jsonBodies returns the JSON body payloads of a session, response first.
func jsonBodies(s session.Session, includeRequest bool) [][]byte {
	var bodies [][]byte
	if s.Response != nil && len(s.Response.Body) > 0 {
		ct := s.Response.MIMEType
		if ct == "" {
			ct = s.Response.Header("Content-Type")
		}
		if contenttype.IsJSON(ct) {
			bodies = append(bodies, s.Response.Body)
		}
	}
	if includeRequest && len(s.Request.Body) > 0 && contenttype.IsJSON(s.Request.Header("Content-Type")) {
		bodies = append(bodies, s.Request.Body)
	}
	return bodies
}

func runOne(code *gojq.Code, id uuid.UUID, body []byte, opts Options, result *Result, seen, seenErrors map[string]bool) {
	label := id.String()

	var input any
	if err := json.Unmarshal(body, &input); err != nil {
		errMsg := fmt.Sprintf("%s: invalid JSON body: %v", label, err)
		if !seenErrors[errMsg] {
			result.Errors = append(result.Errors, errMsg)
			seenErrors[errMsg] = true
		}
		return
	}

	iter := code.Run(input)
	for {
		if opts.MaxResults > 0 && len(result.Values) >= opts.MaxResults {
			return
		}
		v, ok := iter.Next()
		if !ok {
			return
		}
		if err, isErr := v.(error); isErr {
			errMsg := formatJQError(label, err)
			if !seenErrors[errMsg] {
				result.Errors = append(result.Errors, errMsg)
				seenErrors[errMsg] = true
			}
			continue
		}
		if v == nil {
			continue
		}

		result.RawCount++
		result.SessionCounts[id]++

		if opts.Deduplicate {
			key := valueKey(v)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		result.Values = append(result.Values, v)
	}
}

// formatJQError renders a jq evaluation error with a hint for the common
// failure shapes. Runtime jq errors carry no typed wrappers, so the hints
// match on message text; they decorate output only.
func formatJQError(label string, err error) string {
	var haltErr *gojq.HaltError
	if errors.As(err, &haltErr) {
		if haltErr.Value() == nil {
			return fmt.Sprintf("%s: query halted", label)
		}
		return fmt.Sprintf("%s: query halted with: %v", label, haltErr.Value())
	}

	errStr := err.Error()
	var hint string
	switch {
	case strings.Contains(errStr, "cannot iterate over: null"):
		hint = " (the path may not exist in this body)"
	case strings.Contains(errStr, "cannot index") && strings.Contains(errStr, "with"):
		hint = " (field not found or wrong type)"
	case strings.Contains(errStr, "object") && strings.Contains(errStr, "cannot be iterated"):
		hint = " (expected array but got object, try removing '[]')"
	case strings.Contains(errStr, "array") && strings.Contains(errStr, "cannot be indexed"):
		hint = " (expected object but got array, try adding '[]')"
	}
	return fmt.Sprintf("%s: %s%s", label, errStr, hint)
}

// valueKey builds a deduplication key for a produced value.
func valueKey(v any) string {
	switch val := v.(type) {
	case string:
		return "s:" + val
	case float64:
		return fmt.Sprintf("n:%v", val)
	case bool:
		return fmt.Sprintf("b:%v", val)
	case nil:
		return "null"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("?:%v", val)
		}
		return "j:" + string(b)
	}
}
