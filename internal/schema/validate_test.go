package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirecap/wirecap/pkg/session"
)

func validDocument(t *testing.T) []byte {
	t.Helper()
	s := session.New(session.NewRequest("https://a.com/x", session.MethodGet))
	s = s.Complete(session.Response{StatusCode: 200, Timestamp: time.Now()})
	s = s.WithMetadata("env", session.StringValue("prod"))
	data, err := json.Marshal([]session.Session{s})
	require.NoError(t, err)
	return data
}

func TestValidDocumentPasses(t *testing.T) {
	v, err := NewDocumentValidator()
	require.NoError(t, err)
	assert.NoError(t, v.Validate(validDocument(t)))
}

func TestEmptyDocumentPasses(t *testing.T) {
	v, err := NewDocumentValidator()
	require.NoError(t, err)
	assert.NoError(t, v.Validate([]byte(`[]`)))
}

func TestRejectsNonArray(t *testing.T) {
	v, err := NewDocumentValidator()
	require.NoError(t, err)
	assert.Error(t, v.Validate([]byte(`{"id": "x"}`)))
}

func TestRejectsMissingRequiredFields(t *testing.T) {
	v, err := NewDocumentValidator()
	require.NoError(t, err)
	err = v.Validate([]byte(`[{"id": "3b62a904-38fe-4f0f-9db0-4a6d9cbad90f"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request")
}

func TestRejectsBadState(t *testing.T) {
	v, err := NewDocumentValidator()
	require.NoError(t, err)

	var doc []map[string]any
	require.NoError(t, json.Unmarshal(validDocument(t), &doc))
	doc[0]["state"] = "exploded"
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	assert.Error(t, v.ValidateValue(mustGeneric(t, raw)))
}

func TestRejectsMalformedMetadataValue(t *testing.T) {
	v, err := NewDocumentValidator()
	require.NoError(t, err)

	var doc []map[string]any
	require.NoError(t, json.Unmarshal(validDocument(t), &doc))
	doc[0]["metadata"] = map[string]any{"env": map[string]any{"value": "prod"}}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	err = v.ValidateValue(mustGeneric(t, raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type")
}

func mustGeneric(t *testing.T, raw []byte) any {
	t.Helper()
	var value any
	require.NoError(t, json.Unmarshal(raw, &value))
	return value
}
