// Package fieldpath reads and writes nested form records addressed by dot paths
// such as "origin.contactInfo.email".
//
// Paths are parsed once into segments. Writes never mutate their input: only the
// spine from the root to the written leaf is copied, sibling branches are shared.
package fieldpath

import (
	"errors"
	"fmt"
	"strings"
)

// Record is a plain nested form record as produced by encoding/json.
type Record = map[string]any

// ErrInvalidPath reports a malformed dot path.
var ErrInvalidPath = errors.New("fieldpath: invalid path")

// Path is a parsed dot path. The zero value addresses nothing.
type Path struct {
	raw  string
	segs []string
}

// Parse validates and splits a dot path. Empty input, empty segments and
// leading or trailing dots are rejected.
func Parse(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return Path{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(s, ".")
	for i, seg := range segs {
		if strings.TrimSpace(seg) == "" {
			return Path{}, fmt.Errorf("%w: %q has an empty segment at position %d", ErrInvalidPath, s, i)
		}
	}
	return Path{raw: s, segs: segs}, nil
}

// MustParse is Parse for literals; it panics on malformed input.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the dot-joined form.
func (p Path) String() string { return p.raw }

// IsZero reports whether the path addresses nothing.
func (p Path) IsZero() bool { return len(p.segs) == 0 }

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segs) }

// Head returns the first segment.
func (p Path) Head() string {
	if p.IsZero() {
		return ""
	}
	return p.segs[0]
}

// Segments returns a copy of the parsed segments.
func (p Path) Segments() []string {
	out := make([]string, len(p.segs))
	copy(out, p.segs)
	return out
}

// Child appends one segment.
func (p Path) Child(seg string) (Path, error) {
	if p.IsZero() {
		return Parse(seg)
	}
	return Parse(p.raw + "." + seg)
}

// Covers reports whether q equals p or lies beneath it.
func (p Path) Covers(q Path) bool {
	if p.IsZero() || len(q.segs) < len(p.segs) {
		return false
	}
	for i, seg := range p.segs {
		if q.segs[i] != seg {
			return false
		}
	}
	return true
}

// CoversKey is Covers for an unparsed dot key.
func (p Path) CoversKey(key string) bool {
	q, err := Parse(key)
	if err != nil {
		return false
	}
	return p.Covers(q)
}

// Get returns the value at p. The boolean is false when any segment is missing
// or an intermediate value is not a record.
func Get(r Record, p Path) (any, bool) {
	if p.IsZero() {
		return nil, false
	}
	var cur any = r
	for _, seg := range p.segs {
		m, ok := cur.(map[string]any)
		if !ok || m == nil {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set returns a copy of r with v stored at p. Missing intermediates become empty
// records and non-record intermediates are replaced by fresh records.
func Set(r Record, p Path, v any) Record {
	if p.IsZero() {
		return r
	}
	return setAt(r, p.segs, v)
}

func setAt(r Record, segs []string, v any) Record {
	out := make(Record, len(r)+1)
	for k, val := range r {
		out[k] = val
	}
	if len(segs) == 1 {
		out[segs[0]] = v
		return out
	}
	child, _ := r[segs[0]].(map[string]any)
	out[segs[0]] = setAt(child, segs[1:], v)
	return out
}
