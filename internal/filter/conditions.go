package filter

import (
	"regexp"
	"strings"
	"time"

	"github.com/wirecap/wirecap/pkg/session"
)

// stringMatcher tests a target string either by case-sensitive substring
// containment or by a compiled regular expression.
type stringMatcher struct {
	literal string
	re      *regexp.Regexp
}

func substringMatcher(s string) stringMatcher {
	return stringMatcher{literal: s}
}

// patternMatcher compiles a regex pattern. A pattern that fails to compile
// falls back to a literal substring match on the original pattern text
// instead of never matching; this mirrors the historical contract and is
// kept for compatibility.
func patternMatcher(pattern string) stringMatcher {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return stringMatcher{literal: pattern}
	}
	return stringMatcher{re: re}
}

func (m stringMatcher) match(target string) bool {
	if m.re != nil {
		return m.re.MatchString(target)
	}
	return strings.Contains(target, m.literal)
}

// URLContains matches sessions whose URL contains the substring.
func URLContains(s string) Predicate {
	return urlCondition{m: substringMatcher(s)}
}

// URLMatches matches sessions whose URL matches the regex pattern.
func URLMatches(pattern string) Predicate {
	return urlCondition{m: patternMatcher(pattern)}
}

type urlCondition struct{ m stringMatcher }

func (c urlCondition) Matches(s session.Session) bool {
	return c.m.match(s.Request.URL)
}

// HostContains matches on the URL host component.
func HostContains(s string) Predicate {
	return hostCondition{m: substringMatcher(s)}
}

// HostMatches matches the host against a regex pattern.
func HostMatches(pattern string) Predicate {
	return hostCondition{m: patternMatcher(pattern)}
}

type hostCondition struct{ m stringMatcher }

func (c hostCondition) Matches(s session.Session) bool {
	return c.m.match(s.Request.Host())
}

// PathContains matches on the URL path component.
func PathContains(s string) Predicate {
	return pathCondition{m: substringMatcher(s)}
}

// PathMatches matches the path against a regex pattern.
func PathMatches(pattern string) Predicate {
	return pathCondition{m: patternMatcher(pattern)}
}

type pathCondition struct{ m stringMatcher }

func (c pathCondition) Matches(s session.Session) bool {
	return c.m.match(s.Request.Path())
}

// MethodIs matches sessions with the exact request method.
func MethodIs(m session.Method) Predicate {
	return methodCondition{method: m}
}

type methodCondition struct{ method session.Method }

func (c methodCondition) Matches(s session.Session) bool {
	return s.Request.Method == c.method
}

func (c methodCondition) indexHint() IndexHint {
	return IndexHint{Field: IndexMethod, Str: string(c.method)}
}

// StatusIs matches sessions whose response has the exact status code.
func StatusIs(code int) Predicate {
	return statusCondition{code: code}
}

type statusCondition struct{ code int }

func (c statusCondition) Matches(s session.Session) bool {
	return s.Response != nil && s.Response.StatusCode == c.code
}

func (c statusCondition) indexHint() IndexHint {
	return IndexHint{Field: IndexStatus, Num: c.code}
}

// StatusBetween matches status codes in [lo, hi], inclusive.
func StatusBetween(lo, hi int) Predicate {
	return PredicateFunc(func(s session.Session) bool {
		return s.Response != nil && s.Response.StatusCode >= lo && s.Response.StatusCode <= hi
	})
}

// StatusCategoryIs matches on the broad status class (1xx..5xx, unknown).
func StatusCategoryIs(cat session.StatusCategory) Predicate {
	return PredicateFunc(func(s session.Session) bool {
		return s.Response != nil && s.Response.Category() == cat
	})
}

// ContentTypeContains matches the response content type by substring. The
// declared MIME type is preferred, falling back to the Content-Type header.
func ContentTypeContains(sub string) Predicate {
	return PredicateFunc(func(s session.Session) bool {
		if s.Response == nil {
			return false
		}
		ct := s.Response.MIMEType
		if ct == "" {
			ct = s.Response.Header("Content-Type")
		}
		return strings.Contains(ct, sub)
	})
}

// HasRequestBody matches sessions with a non-empty request body.
func HasRequestBody() Predicate {
	return PredicateFunc(func(s session.Session) bool {
		return len(s.Request.Body) > 0
	})
}

// HasResponseBody matches sessions with a non-empty response body.
func HasResponseBody() Predicate {
	return PredicateFunc(func(s session.Session) bool {
		return s.Response != nil && len(s.Response.Body) > 0
	})
}

// DurationBetween matches sessions whose duration falls in [min, max],
// inclusive. A max of 0 or less leaves the upper bound open.
func DurationBetween(min, max time.Duration) Predicate {
	return PredicateFunc(func(s session.Session) bool {
		d := s.Duration()
		if d < min {
			return false
		}
		return max <= 0 || d <= max
	})
}

// StartedBetween matches sessions whose start time falls in [from, to],
// inclusive. A zero time leaves that side unbounded.
func StartedBetween(from, to time.Time) Predicate {
	return PredicateFunc(func(s session.Session) bool {
		if !from.IsZero() && s.StartTime.Before(from) {
			return false
		}
		if !to.IsZero() && s.StartTime.After(to) {
			return false
		}
		return true
	})
}

// HasMetadata matches sessions carrying the metadata key.
func HasMetadata(key string) Predicate {
	return metadataKeyCondition{key: key}
}

type metadataKeyCondition struct{ key string }

func (c metadataKeyCondition) Matches(s session.Session) bool {
	_, ok := s.Metadata[c.key]
	return ok
}

func (c metadataKeyCondition) indexHint() IndexHint {
	return IndexHint{Field: IndexMetadataKey, Str: c.key}
}

// MetadataEquals matches sessions whose metadata holds key with an equal
// typed value.
func MetadataEquals(key string, want session.Value) Predicate {
	return PredicateFunc(func(s session.Session) bool {
		v, ok := s.Metadata[key]
		return ok && v.Equal(want)
	})
}

// HasError matches sessions whose response carries an error.
func HasError() Predicate {
	return PredicateFunc(func(s session.Session) bool {
		return s.Response != nil && s.Response.ErrorMessage != nil
	})
}

// FromCache matches sessions by their cache-hit flag.
func FromCache(want bool) Predicate {
	return PredicateFunc(func(s session.Session) bool {
		return s.Response != nil && s.Response.FromCache == want
	})
}

// DecryptedTLS matches sessions by their TLS-decryption flag.
func DecryptedTLS(want bool) Predicate {
	return PredicateFunc(func(s session.Session) bool {
		return s.DecryptedTLS == want
	})
}

// RetriesBetween matches retry counts in [min, max], inclusive. A negative
// max leaves the upper bound open.
func RetriesBetween(min, max int) Predicate {
	return PredicateFunc(func(s session.Session) bool {
		if s.RetryCount < min {
			return false
		}
		return max < 0 || s.RetryCount <= max
	})
}
