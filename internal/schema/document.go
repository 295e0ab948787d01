// Package schema describes the export document format as JSON Schema and
// validates documents against it before import.
package schema

import (
	"github.com/invopop/jsonschema"

	"github.com/wirecap/wirecap/pkg/session"
)

// Document returns the schema for an export document: an array of
// sessions in their serialized form. The same schema covers both the
// json and plist encodings, since both lower to the same generic shape.
func Document() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  "array",
		Items: sessionSchema(),
	}
}

func sessionSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: jsonschema.NewProperties(),
		Required:   []string{"id", "request", "state", "startTime"},
	}
	s.Properties.Set("id", uuidSchema())
	s.Properties.Set("request", requestSchema())
	s.Properties.Set("response", responseSchema())
	s.Properties.Set("state", enumSchema(
		session.StateInitialized, session.StateSending, session.StateWaiting,
		session.StateReceiving, session.StateCompleted, session.StateFailed,
		session.StateCancelled,
	))
	s.Properties.Set("startTime", timeSchema())
	s.Properties.Set("responseStartTime", timeSchema())
	s.Properties.Set("endTime", timeSchema())
	s.Properties.Set("requestDuration", &jsonschema.Schema{Type: "integer"})
	s.Properties.Set("metadata", metadataSchema())
	s.Properties.Set("retryCount", &jsonschema.Schema{Type: "integer"})
	s.Properties.Set("decryptedTLS", &jsonschema.Schema{Type: "boolean"})
	s.Properties.Set("parentId", uuidSchema())
	s.Properties.Set("relatedIds", &jsonschema.Schema{Type: "array", Items: uuidSchema()})
	return s
}

func requestSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: jsonschema.NewProperties(),
		Required:   []string{"url", "method", "createdAt"},
	}
	s.Properties.Set("url", &jsonschema.Schema{Type: "string"})
	s.Properties.Set("method", enumSchema(
		session.MethodGet, session.MethodHead, session.MethodPost,
		session.MethodPut, session.MethodPatch, session.MethodDelete,
		session.MethodOptions, session.MethodTrace, session.MethodConnect,
	))
	s.Properties.Set("headers", stringMapSchema())
	s.Properties.Set("body", &jsonschema.Schema{Type: "string"})
	s.Properties.Set("createdAt", timeSchema())
	return s
}

func responseSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: jsonschema.NewProperties(),
		Required:   []string{"statusCode", "timestamp", "duration"},
	}
	s.Properties.Set("statusCode", &jsonschema.Schema{Type: "integer"})
	s.Properties.Set("headers", stringMapSchema())
	s.Properties.Set("body", &jsonschema.Schema{Type: "string"})
	s.Properties.Set("timestamp", timeSchema())
	s.Properties.Set("duration", &jsonschema.Schema{Type: "integer"})
	s.Properties.Set("mimeType", &jsonschema.Schema{Type: "string"})
	s.Properties.Set("charset", &jsonschema.Schema{Type: "string"})
	s.Properties.Set("fromCache", &jsonschema.Schema{Type: "boolean"})
	s.Properties.Set("error", &jsonschema.Schema{Type: "string"})
	return s
}

func metadataSchema() *jsonschema.Schema {
	value := &jsonschema.Schema{
		Type:       "object",
		Properties: jsonschema.NewProperties(),
		Required:   []string{"type", "value"},
	}
	value.Properties.Set("type", enumSchema(
		session.KindString, session.KindInt, session.KindFloat,
		session.KindBool, session.KindTime,
	))
	value.Properties.Set("value", &jsonschema.Schema{})
	return &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: value,
	}
}

func stringMapSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: &jsonschema.Schema{Type: "string"},
	}
}

func uuidSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Format: "uuid"}
}

func timeSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Format: "date-time"}
}

func enumSchema[T ~string](values ...T) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = string(v)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}
