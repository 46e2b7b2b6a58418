package fieldpath

import (
	"encoding/json"
	"fmt"
)

// Clone returns a deep copy of r. Nested records and slices are copied, scalar
// leaves are shared.
func Clone(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = cloneValue(e)
		}
		return cp
	default:
		return v
	}
}

// Merge overlays each argument onto the previous one at the top level only.
// Later records win on key collision; nil records are skipped.
func Merge(layers ...Record) Record {
	out := make(Record)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Canonical serializes r with sorted keys so two structurally equal records
// always produce the same string.
func Canonical(r Record) (string, error) {
	if r == nil {
		return "", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("canonical record: %w", err)
	}
	return string(b), nil
}

// CanonicalString normalizes an already serialized record. Input that is not a
// JSON object is returned unchanged.
func CanonicalString(s string) string {
	if s == "" {
		return ""
	}
	r, err := Unmarshal(s)
	if err != nil {
		return s
	}
	out, err := Canonical(r)
	if err != nil {
		return s
	}
	return out
}

// Equal reports structural equality after JSON normalization, so integer and
// float representations of the same number compare equal.
func Equal(a, b Record) bool {
	ca, errA := Canonical(normalize(a))
	cb, errB := Canonical(normalize(b))
	return errA == nil && errB == nil && ca == cb
}

func normalize(r Record) Record {
	if r == nil {
		return nil
	}
	s, err := Canonical(r)
	if err != nil {
		return r
	}
	n, err := Unmarshal(s)
	if err != nil {
		return r
	}
	return n
}

// Unmarshal parses a serialized record. Trailing input after the object is
// an error.
func Unmarshal(s string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("decode record: not an object")
	}
	return r, nil
}

// FromValue converts a typed value into a record through its JSON form.
func FromValue(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return Unmarshal(string(b))
}

// Decode converts a record into the typed value pointed to by out.
func Decode(r Record, out any) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode into %T: %w", out, err)
	}
	return nil
}
