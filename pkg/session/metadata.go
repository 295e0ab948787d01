package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the payload of a metadata Value.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "double"
	KindBool   Kind = "bool"
	KindTime   Kind = "timestamp"
)

// Value is a typed metadata value. Use the constructors; the zero Value is
// an empty string.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	b    bool
	ts   time.Time
}

func StringValue(v string) Value { return Value{kind: KindString, str: v} }

func IntValue(v int64) Value { return Value{kind: KindInt, num: v} }

func FloatValue(v float64) Value { return Value{kind: KindFloat, flt: v} }

func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

func TimeValue(v time.Time) Value { return Value{kind: KindTime, ts: v} }

// Kind returns the discriminator, defaulting to KindString for the zero
// Value.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindString
	}
	return v.kind
}

// Any unwraps the payload as an untyped value.
func (v Value) Any() any {
	switch v.Kind() {
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.b
	case KindTime:
		return v.ts
	default:
		return v.str
	}
}

// String renders the payload as text, mainly for search and display.
func (v Value) String() string {
	switch v.Kind() {
	case KindInt:
		return fmt.Sprintf("%d", v.num)
	case KindFloat:
		return fmt.Sprintf("%g", v.flt)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindTime:
		return v.ts.Format(time.RFC3339Nano)
	default:
		return v.str
	}
}

// Equal compares kind and payload.
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case KindInt:
		return v.num == other.num
	case KindFloat:
		return v.flt == other.flt
	case KindBool:
		return v.b == other.b
	case KindTime:
		return v.ts.Equal(other.ts)
	default:
		return v.str == other.str
	}
}

type valueJSON struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"type": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind() {
	case KindInt:
		payload = v.num
	case KindFloat:
		payload = v.flt
	case KindBool:
		payload = v.b
	case KindTime:
		payload = v.ts.Format(time.RFC3339Nano)
	default:
		payload = v.str
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Type: v.Kind(), Value: raw})
}

// UnmarshalJSON decodes the {"type", "value"} envelope.
func (v *Value) UnmarshalJSON(data []byte) error {
	var wrapper valueJSON
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	switch wrapper.Type {
	case KindInt:
		var n int64
		if err := json.Unmarshal(wrapper.Value, &n); err != nil {
			return err
		}
		*v = IntValue(n)
	case KindFloat:
		var f float64
		if err := json.Unmarshal(wrapper.Value, &f); err != nil {
			return err
		}
		*v = FloatValue(f)
	case KindBool:
		var b bool
		if err := json.Unmarshal(wrapper.Value, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case KindTime:
		var s string
		if err := json.Unmarshal(wrapper.Value, &s); err != nil {
			return err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*v = TimeValue(ts)
	case KindString, "":
		var s string
		if err := json.Unmarshal(wrapper.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	default:
		return fmt.Errorf("unknown metadata value type %q", wrapper.Type)
	}
	return nil
}

// Metadata is the typed key/value map attached to a session. Values are
// copied on every session mutation; never mutate a map shared by a session.
type Metadata map[string]Value

// Clone returns an independent copy of the map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
