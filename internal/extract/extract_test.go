package extract

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

func bodySession(t *testing.T, url, contentType string, body string) session.Session {
	t.Helper()
	s := session.New(session.NewRequest(url, session.MethodGet))
	return s.Complete(session.Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": contentType},
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

func TestCSSExtraction(t *testing.T) {
	eng := newEngine(t, bodySession(t, "https://a.com/page", "text/html",
		`<html><body><h1>Title</h1><p class="x">one</p><p class="x">two</p></body></html>`))

	res, err := eng.Run(context.Background(), "p.x", Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{"one", "two"}, res.Values)
}

func TestXPathOverXML(t *testing.T) {
	eng := newEngine(t, bodySession(t, "https://a.com/feed", "application/xml",
		`<rss><channel><item><title>first</title></item><item><title>second</title></item></channel></rss>`))

	res, err := eng.Run(context.Background(), "//item/title", Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{"first", "second"}, res.Values)
}

func TestRegexWithCaptureGroup(t *testing.T) {
	eng := newEngine(t, bodySession(t, "https://a.com/log", "text/plain",
		"id=100 id=200 id=300"))

	res, err := eng.Run(context.Background(), `id=(\d+)`, Options{Mode: ModeRegex, MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, []any{"100", "200"}, res.Values)
}

func TestFormLookup(t *testing.T) {
	eng := newEngine(t, bodySession(t, "https://a.com/cb", "application/x-www-form-urlencoded",
		"token=abc&scope=read&scope=write"))

	res, err := eng.Run(context.Background(), "scope", Options{Mode: ModeForm})
	require.NoError(t, err)
	assert.Equal(t, []any{"read", "write"}, res.Values)
}

func TestAutoDetectSkipsJSONAndBinary(t *testing.T) {
	eng := newEngine(t,
		bodySession(t, "https://a.com/api", "application/json", `{"h1":"nope"}`),
		bodySession(t, "https://a.com/img", "image/png", "\x89PNG"),
		bodySession(t, "https://a.com/page", "text/html", `<h1>hit</h1>`),
	)

	res, err := eng.Run(context.Background(), "h1", Options{})
	require.NoError(t, err)
	assert.Equal(t, []any{"hit"}, res.Values)
	assert.Len(t, res.SessionCounts, 1)
}

func TestPredicateNarrowsScope(t *testing.T) {
	keep := bodySession(t, "https://keep.com/p", "text/html", `<p>kept</p>`)
	eng := newEngine(t, keep, bodySession(t, "https://drop.com/p", "text/html", `<p>dropped</p>`))

	res, err := eng.Run(context.Background(), "p", Options{
		Predicate: filter.Where(filter.HostContains("keep.com")),
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"kept"}, res.Values)
}

func TestInvalidRegexIsHardError(t *testing.T) {
	eng := newEngine(t)

	_, err := eng.Run(context.Background(), "id[(", Options{Mode: ModeRegex})
	require.Error(t, err)
	assert.True(t, errdef.Is(err, errdef.CodeRegex))
}

func TestDetectMode(t *testing.T) {
	assert.Equal(t, ModeCSS, DetectMode("text/html"))
	assert.Equal(t, ModeXPath, DetectMode("application/xml"))
	assert.Equal(t, ModeForm, DetectMode("application/x-www-form-urlencoded"))
	assert.Equal(t, ModeRegex, DetectMode("text/plain"))
	assert.Equal(t, Mode(""), DetectMode("application/json"))
	assert.Equal(t, Mode(""), DetectMode("image/png"))
}
