package store

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	// ErrNotScalar is returned when a payload is an object or an array.
	ErrNotScalar = errors.New("value must be a JSON scalar")
	// ErrEmptyValue is returned for a missing payload.
	ErrEmptyValue = errors.New("value is empty")
)

// Value is a broadcast payload in compact JSON form. The zero Value means
// "missing".
type Value string

// ParseValue validates raw JSON and returns its compact form.
func ParseValue(raw []byte) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", ErrEmptyValue
	}

	switch trimmed[0] {
	case '{', '[':
		return "", ErrNotScalar
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", err
	}

	return Value(buf.String()), nil
}

// IntValue is a helper for numeric payloads.
func IntValue(i int) Value {
	b, _ := json.Marshal(i)
	return Value(b)
}

// IsEmpty ...
func (v Value) IsEmpty() bool {
	return v == ""
}

// MarshalJSON writes the value verbatim.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsEmpty() {
		return []byte("null"), nil
	}
	return []byte(v), nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null leaves the value
// empty.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*v = ""
		return nil
	}

	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}

	*v = parsed
	return nil
}

// Values is a sortable list of Value.
type Values []Value

func (vs Values) Len() int           { return len(vs) }
func (vs Values) Less(i, j int) bool { return vs[i] < vs[j] }
func (vs Values) Swap(i, j int)      { vs[i], vs[j] = vs[j], vs[i] }
