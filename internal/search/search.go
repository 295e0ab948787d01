// Package search ranks stored sessions against free-text or regex
// queries, with per-field weighting, match highlighting, sorting and
// pagination.
package search

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/internal/storage"
	"github.com/wirecap/wirecap/pkg/session"
)

const (
	// DefaultMaxResults caps a single page when Options leaves MaxResults
	// unset.
	DefaultMaxResults = 100
)

// SortField selects the result ordering.
type SortField string

const (
	SortRelevance SortField = "relevance"
	SortStartTime SortField = "start_time"
	SortDuration  SortField = "duration"
	SortURL       SortField = "url"
	SortStatus    SortField = "status"
)

// Direction orders results ascending or descending. Descending is the
// default: best score, newest, slowest first.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Query describes one search. Text is matched as a case-insensitive
// substring unless Regex is set, in which case it must compile or the
// search fails.
type Query struct {
	Text      string
	Regex     bool
	Predicate filter.Predicate
	From      time.Time
	To        time.Time
	Fields    []Field
	SortBy    SortField
	Direction Direction
	Limit     int
	Offset    int
}

// Highlight marks one occurrence of the query text within a serialized
// field.
type Highlight struct {
	Field Field  `json:"field"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Result is one page of matches plus per-session highlights.
type Result struct {
	Sessions []session.Session `json:"sessions"`
	// TotalCount counts every scanned session, including the ones the
	// predicate or time window rejected.
	TotalCount int `json:"totalCount"`
	MatchCount int `json:"matchCount"`
	// Highlights covers the sessions in this page, not every match.
	Highlights map[uuid.UUID][]Highlight `json:"highlights,omitempty"`
	Query      Query                     `json:"-"`
}

// MatchRatio reports the matched share of the full input.
func (r *Result) MatchRatio() float64 {
	if r.TotalCount == 0 {
		return 0
	}
	return float64(r.MatchCount) / float64(r.TotalCount)
}

// Options configures a search service.
type Options struct {
	// Timeout bounds one search. Enforcement is cooperative: the deadline
	// is checked between sessions, never mid-field. Zero disables it.
	Timeout time.Duration
	// MaxResults caps the page size.
	MaxResults int
}

// Service runs queries against a session store.
type Service struct {
	store storage.Storage
	opts  Options
}

// New creates a search service over the store.
func New(store storage.Storage, opts Options) *Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	return &Service{store: store, opts: opts}
}

type scored struct {
	session    session.Session
	score      float64
	highlights []Highlight
}

// Search scans every stored session, scores the ones the predicate, time
// window and text admit, and returns one sorted page.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	m, err := newMatcher(q.Text, q.Regex)
	if err != nil {
		return nil, err
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	// The predicate is applied here rather than pushed into the store so
	// TotalCount still reflects the full input.
	sessions, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	fields := q.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}

	var (
		matches []scored
		scanned int
	)
	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return nil, searchInterrupted(err)
		}
		scanned++
		if q.Predicate != nil && !q.Predicate.Matches(sess) {
			continue
		}
		if !q.From.IsZero() && sess.StartTime.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && sess.StartTime.After(q.To) {
			continue
		}

		if m == nil {
			matches = append(matches, scored{session: sess})
			continue
		}

		var (
			score float64
			hls   []Highlight
		)
		for _, f := range fields {
			text, ok := fieldText(sess, f)
			if !ok {
				continue
			}
			spans := m.occurrences(text)
			if len(spans) == 0 {
				continue
			}
			score += fieldWeights[f] * float64(len(spans))
			for _, sp := range spans {
				hls = append(hls, Highlight{
					Field: f,
					Start: sp[0],
					End:   sp[1],
					Text:  text[sp[0]:sp[1]],
				})
			}
		}
		if score == 0 {
			continue
		}
		matches = append(matches, scored{session: sess, score: score, highlights: hls})
	}

	sortMatches(matches, q.SortBy, q.Direction)

	result := &Result{
		TotalCount: scanned,
		MatchCount: len(matches),
		Query:      q,
	}

	limit := q.Limit
	if limit <= 0 || limit > s.opts.MaxResults {
		limit = s.opts.MaxResults
	}
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > len(matches) {
		start = len(matches)
	}
	end := start + limit
	if end > len(matches) {
		end = len(matches)
	}
	page := matches[start:end]

	result.Sessions = make([]session.Session, 0, len(page))
	for _, sm := range page {
		result.Sessions = append(result.Sessions, sm.session)
		if len(sm.highlights) > 0 {
			if result.Highlights == nil {
				result.Highlights = make(map[uuid.UUID][]Highlight)
			}
			result.Highlights[sm.session.ID] = sm.highlights
		}
	}
	return result, nil
}

func searchInterrupted(err error) error {
	if err == context.DeadlineExceeded {
		return errdef.Wrap(errdef.CodeTimeout, err, "search timed out")
	}
	return err
}

func sortMatches(matches []scored, by SortField, dir Direction) {
	desc := dir != Asc
	less := func(i, j int) bool { return false }
	switch by {
	case SortStartTime:
		less = func(i, j int) bool {
			return matches[i].session.StartTime.Before(matches[j].session.StartTime)
		}
	case SortDuration:
		less = func(i, j int) bool {
			return matches[i].session.Duration() < matches[j].session.Duration()
		}
	case SortURL:
		less = func(i, j int) bool {
			return matches[i].session.Request.URL < matches[j].session.Request.URL
		}
	case SortStatus:
		less = func(i, j int) bool {
			return statusOf(matches[i].session) < statusOf(matches[j].session)
		}
	default: // relevance
		less = func(i, j int) bool { return matches[i].score < matches[j].score }
	}
	if desc {
		inner := less
		less = func(i, j int) bool { return inner(j, i) }
	}
	sort.SliceStable(matches, less)
}

func statusOf(s session.Session) int {
	if s.Response == nil {
		return 0
	}
	return s.Response.StatusCode
}

// matcher finds query occurrences in serialized field text. A nil
// matcher means an empty query that matches everything without scoring.
type matcher struct {
	re *regexp.Regexp
}

// newMatcher builds a substring or regex matcher. Unlike filtering,
// search treats an invalid pattern as a hard error rather than falling
// back to a literal match.
func newMatcher(text string, useRegex bool) (*matcher, error) {
	if text == "" {
		return nil, nil
	}
	if useRegex {
		re, err := regexp.Compile(text)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeRegex, err, "invalid search pattern %q", text)
		}
		return &matcher{re: re}, nil
	}
	// Literal text goes through a quoted case-insensitive pattern so spans
	// stay byte offsets into the original text. Lowercasing the haystack
	// shifts offsets whenever case folding changes a rune's width.
	return &matcher{re: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(text))}, nil
}

// occurrences returns the non-overlapping [start, end) byte spans of the
// query in text.
func (m *matcher) occurrences(text string) [][2]int {
	raw := m.re.FindAllStringIndex(text, -1)
	spans := make([][2]int, 0, len(raw))
	for _, r := range raw {
		if r[1] > r[0] {
			spans = append(spans, [2]int{r[0], r[1]})
		}
	}
	return spans
}
