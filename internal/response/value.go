// Package response models the authority's JSON response as a small sum type
// and resolves fields that may live at the top level or under one of the
// signed envelopes.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Kind is the shape of a decoded JSON value.
type Kind int

const (
	Absent Kind = iota
	String
	Record
	List
	Other // numbers, booleans, null
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case String:
		return "string"
	case Record:
		return "record"
	case List:
		return "list"
	default:
		return "other"
	}
}

// Value is a decoded JSON value. The zero Value is Absent.
type Value struct {
	kind Kind
	raw  any
}

// Parse decodes a single JSON document. Numbers are kept as json.Number so
// re-encoding reproduces them exactly.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("decode response: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("decode response: trailing data after JSON document")
	}
	return wrap(raw), nil
}

func wrap(raw any) Value {
	switch raw.(type) {
	case string:
		return Value{kind: String, raw: raw}
	case map[string]any:
		return Value{kind: Record, raw: raw}
	case []any:
		return Value{kind: List, raw: raw}
	default:
		return Value{kind: Other, raw: raw}
	}
}

// Kind reports the shape of v.
func (v Value) Kind() Kind { return v.kind }

// Field returns the named member of a record. Any other shape, or a missing
// member, yields Absent.
func (v Value) Field(name string) Value {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return Value{}
	}
	member, ok := m[name]
	if !ok {
		return Value{}
	}
	return wrap(member)
}

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Items returns the elements of a list and whether v is a list.
func (v Value) Items() ([]Value, bool) {
	l, ok := v.raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(l))
	for i, item := range l {
		out[i] = wrap(item)
	}
	return out, true
}

// MarshalJSON re-encodes the underlying value. Absent encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == Absent {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}
