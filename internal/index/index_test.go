package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/pkg/session"
)

func makeSession(method session.Method, status int, metaKeys ...string) session.Session {
	s := session.New(session.NewRequest("https://a.com/x", method))
	for _, k := range metaKeys {
		s = s.WithMetadata(k, session.BoolValue(true))
	}
	return s.Complete(session.Response{StatusCode: status, Timestamp: time.Now()})
}

func TestCandidatesIntersection(t *testing.T) {
	ix := New()
	a := makeSession(session.MethodGet, 200)
	b := makeSession(session.MethodGet, 404)
	c := makeSession(session.MethodPost, 200)
	ix.Add(a)
	ix.Add(b)
	ix.Add(c)

	hints, ok := filter.Where(filter.MethodIs(session.MethodGet)).And(filter.StatusIs(200)).IndexPlan()
	require.True(t, ok)

	got := ix.Candidates(hints)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0])
}

func TestCandidatesMissingKey(t *testing.T) {
	ix := New()
	ix.Add(makeSession(session.MethodGet, 200))

	hints, ok := filter.Where(filter.StatusIs(500)).IndexPlan()
	require.True(t, ok)
	assert.Empty(t, ix.Candidates(hints))
}

func TestMetadataKeyIndex(t *testing.T) {
	ix := New()
	tagged := makeSession(session.MethodGet, 200, "team")
	ix.Add(tagged)
	ix.Add(makeSession(session.MethodGet, 200))

	hints, ok := filter.Where(filter.HasMetadata("team")).IndexPlan()
	require.True(t, ok)

	got := ix.Candidates(hints)
	require.Len(t, got, 1)
	assert.Equal(t, tagged.ID, got[0])
}

func TestRemoveAndReplace(t *testing.T) {
	ix := New()
	s := makeSession(session.MethodGet, 200)
	ix.Add(s)
	assert.Equal(t, 1, ix.Len())

	// Re-adding the same ID with a new status replaces the old postings.
	updated := s
	updated.Response = &session.Response{StatusCode: 500}
	ix.Add(updated)
	assert.Equal(t, 1, ix.Len())

	oldHints, _ := filter.Where(filter.StatusIs(200)).IndexPlan()
	assert.Empty(t, ix.Candidates(oldHints))

	newHints, _ := filter.Where(filter.StatusIs(500)).IndexPlan()
	assert.Len(t, ix.Candidates(newHints), 1)

	ix.Remove(s.ID)
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Candidates(newHints))
}

func TestClear(t *testing.T) {
	ix := New()
	ix.Add(makeSession(session.MethodGet, 200))
	ix.Add(makeSession(session.MethodPut, 201))
	ix.Clear()
	assert.Equal(t, 0, ix.Len())
}
