package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/internal/storage/memstore"
	"github.com/wirecap/wirecap/pkg/session"
)

func jsonSession(t *testing.T, url string, body string) session.Session {
	t.Helper()
	s := session.New(session.NewRequest(url, session.MethodGet))
	return s.Complete(session.Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
		Timestamp:  time.Now(),
	})
}

func newEngine(t *testing.T, sessions ...session.Session) *Engine {
	t.Helper()
	st := memstore.New(memstore.Options{})
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SaveAll(context.Background(), sessions))
	return New(st)
}

func TestRunExtractsValues(t *testing.T) {
	eng := newEngine(t,
		jsonSession(t, "https://a.com/users", `{"users":[{"name":"ada"},{"name":"linus"}]}`),
	)

	res, err := eng.Run(context.Background(), ".users[].name", Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{"ada", "linus"}, res.Values)
	assert.Equal(t, 2, res.RawCount)
	assert.Empty(t, res.Errors)
}

func TestRunAcrossSessionsWithDedup(t *testing.T) {
	a := jsonSession(t, "https://a.com/1", `{"token":"abc"}`)
	b := jsonSession(t, "https://a.com/2", `{"token":"abc"}`)
	eng := newEngine(t, a, b)

	res, err := eng.Run(context.Background(), ".token", Options{Deduplicate: true})
	require.NoError(t, err)
	assert.Equal(t, []any{"abc"}, res.Values)
	assert.Equal(t, 2, res.RawCount)
	assert.Equal(t, 1, res.SessionCounts[a.ID])
	assert.Equal(t, 1, res.SessionCounts[b.ID])
}

func TestRunSkipsNonJSONBodies(t *testing.T) {
	html := session.New(session.NewRequest("https://a.com/page", session.MethodGet))
	html = html.Complete(session.Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "text/html"},
		Body:       []byte("<html></html>"),
		Timestamp:  time.Now(),
	})
	eng := newEngine(t, html, jsonSession(t, "https://a.com/api", `{"n":1}`))

	res, err := eng.Run(context.Background(), ".n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0}, res.Values)
	assert.Empty(t, res.Errors)
}

func TestRunReportsPerSessionErrors(t *testing.T) {
	bad := jsonSession(t, "https://a.com/bad", `{"items":null}`)
	good := jsonSession(t, "https://a.com/good", `{"items":[1,2]}`)
	eng := newEngine(t, bad, good)

	res, err := eng.Run(context.Background(), ".items[]", Options{})
	require.NoError(t, err)
	assert.Len(t, res.Values, 2)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], bad.ID.String())
	assert.Contains(t, res.Errors[0], "path may not exist")
}

func TestRunHonorsPredicateAndMaxResults(t *testing.T) {
	ok := jsonSession(t, "https://a.com/1", `{"vals":[1,2,3]}`)
	other := session.New(session.NewRequest("https://a.com/2", session.MethodGet))
	other = other.Complete(session.Response{
		StatusCode: 500,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"vals":[9]}`),
		Timestamp:  time.Now(),
	})
	eng := newEngine(t, ok, other)

	res, err := eng.Run(context.Background(), ".vals[]", Options{
		Predicate:  filter.Where(filter.StatusIs(200)),
		MaxResults: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, res.Values)
}

func TestRequestBodiesOptIn(t *testing.T) {
	s := session.New(session.NewRequest("https://a.com/post", session.MethodPost))
	s.Request.Headers = map[string]string{"Content-Type": "application/json"}
	s.Request.Body = []byte(`{"from":"request"}`)
	s = s.Complete(session.Response{StatusCode: 204, Timestamp: time.Now()})
	eng := newEngine(t, s)

	res, err := eng.Run(context.Background(), ".from", Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Values)

	res, err = eng.Run(context.Background(), ".from", Options{RequestBodies: true})
	require.NoError(t, err)
	assert.Equal(t, []any{"request"}, res.Values)
}

func TestInvalidExpression(t *testing.T) {
	eng := newEngine(t)

	_, err := eng.Run(context.Background(), ".users[", Options{})
	require.Error(t, err)
	assert.True(t, errdef.Is(err, errdef.CodeValidate))

	assert.Error(t, eng.Validate(".users["))
	assert.NoError(t, eng.Validate(".users[].name"))
}
