// Package filter implements composable boolean predicates over sessions.
//
// A Criteria accumulates an ordered list of (condition, operator) clauses
// and evaluates them strictly left to right: the operator of the first
// clause is ignored, and each subsequent clause combines with the running
// result. There is no operator precedence and every condition is evaluated.
package filter

import (
	"github.com/wirecap/wirecap/pkg/session"
)

// Predicate is anything that can test a session. Third parties can plug
// custom rules into both the filter engine and the search service's
// predicate list by implementing it.
type Predicate interface {
	Matches(s session.Session) bool
}

// PredicateFunc adapts a plain function to the Predicate interface.
type PredicateFunc func(session.Session) bool

func (f PredicateFunc) Matches(s session.Session) bool { return f(s) }

// Op is the logical operator joining a clause to the running result.
type Op int

const (
	OpAnd Op = iota
	OpOr
)

type clause struct {
	pred Predicate
	op   Op
}

// Criteria is the primary Predicate implementation: an ordered clause list
// built with Where/And/Or. An empty Criteria matches every session and
// serves as the full-scan default.
type Criteria struct {
	clauses []clause
}

// New returns an empty Criteria (the identity predicate).
func New() *Criteria {
	return &Criteria{}
}

// Where starts a Criteria with its first condition.
func Where(p Predicate) *Criteria {
	return New().And(p)
}

// And appends a condition joined with AND.
func (c *Criteria) And(p Predicate) *Criteria {
	c.clauses = append(c.clauses, clause{pred: p, op: OpAnd})
	return c
}

// Or appends a condition joined with OR.
func (c *Criteria) Or(p Predicate) *Criteria {
	c.clauses = append(c.clauses, clause{pred: p, op: OpOr})
	return c
}

// Len returns the number of clauses.
func (c *Criteria) Len() int {
	return len(c.clauses)
}

// Matches folds the clause list left to right. Every condition is
// evaluated; there is no short-circuiting.
func (c *Criteria) Matches(s session.Session) bool {
	if len(c.clauses) == 0 {
		return true
	}
	result := c.clauses[0].pred.Matches(s)
	for _, cl := range c.clauses[1:] {
		matched := cl.pred.Matches(s)
		if cl.op == OpOr {
			result = result || matched
		} else {
			result = result && matched
		}
	}
	return result
}

// IndexField names an inverted-index dimension a condition can be answered
// from.
type IndexField int

const (
	IndexMethod IndexField = iota
	IndexStatus
	IndexMetadataKey
)

// IndexHint is an exact-match key extracted from an indexable condition.
// Storage providers intersect hint bitmaps to narrow candidates before
// verifying with Matches.
type IndexHint struct {
	Field IndexField
	Str   string
	Num   int
}

type indexableCondition interface {
	indexHint() IndexHint
}

// IndexPlan returns exact-match hints when the whole Criteria is an
// AND-only chain of indexable conditions. ok is false otherwise, and
// callers must fall back to a full scan.
func (c *Criteria) IndexPlan() (hints []IndexHint, ok bool) {
	if len(c.clauses) == 0 {
		return nil, false
	}
	for i, cl := range c.clauses {
		if i > 0 && cl.op != OpAnd {
			return nil, false
		}
		ic, isIndexable := cl.pred.(indexableCondition)
		if !isIndexable {
			return nil, false
		}
		hints = append(hints, ic.indexHint())
	}
	return hints, true
}
