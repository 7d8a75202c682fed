// Package querykey builds canonical cache keys from a (resource kind,
// parameter set) pair. Two deep-equal parameter sets always produce the
// same key regardless of map iteration order or struct field order.
package querykey

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key is the canonical identifier for a (kind, params) pair.
// Keys are immutable once created and comparable, so they work as map
// keys and singleflight keys directly.
type Key struct {
	kind      string
	canonical string
}

// Normalize builds a Key for the given resource kind and parameters.
// Object keys are sorted recursively; array order is preserved because
// it is semantically significant (e.g. selected filter lists).
// A nil params normalizes to the bare kind.
func Normalize(kind string, params any) (Key, error) {
	if kind == "" {
		return Key{}, fmt.Errorf("querykey: kind is required")
	}
	if params == nil {
		return Key{kind: kind}, nil
	}

	// Round-trip through JSON so structs, maps and primitives all
	// collapse to the same tree before canonicalization.
	raw, err := json.Marshal(params)
	if err != nil {
		return Key{}, fmt.Errorf("querykey: marshal params: %w", err)
	}

	var tree any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&tree); err != nil {
		return Key{}, fmt.Errorf("querykey: decode params: %w", err)
	}

	var sb strings.Builder
	writeCanonical(&sb, tree)
	return Key{kind: kind, canonical: sb.String()}, nil
}

// MustNormalize is Normalize that panics on error. Intended for
// params types that are known to be JSON-marshalable.
func MustNormalize(kind string, params any) Key {
	k, err := Normalize(kind, params)
	if err != nil {
		panic(err)
	}
	return k
}

// Kind returns the resource kind this key belongs to.
func (k Key) Kind() string {
	return k.kind
}

// String returns the stable serialized form: "kind" or "kind:canonical".
func (k Key) String() string {
	if k.canonical == "" {
		return k.kind
	}
	return k.kind + ":" + k.canonical
}

// IsZero reports whether the key was never normalized.
func (k Key) IsZero() bool {
	return k.kind == ""
}

// KindPrefix returns the string prefix that matches every key under a
// resource kind, for kind-wide invalidation.
func KindPrefix(kind string) string {
	return kind + ":"
}

// Matches reports whether the key belongs to the given resource kind.
func (k Key) Matches(kind string) bool {
	return k.kind == kind
}

// writeCanonical renders the decoded JSON tree with object keys sorted.
func writeCanonical(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(key))
			sb.WriteByte(':')
			writeCanonical(sb, t[key])
		}
		sb.WriteByte('}')
	case []any:
		sb.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, item)
		}
		sb.WriteByte(']')
	case json.Number:
		sb.WriteString(t.String())
	case string:
		sb.WriteString(strconv.Quote(t))
	case bool:
		sb.WriteString(strconv.FormatBool(t))
	case nil:
		sb.WriteString("null")
	default:
		// Unreachable with a json.Decoder-produced tree.
		fmt.Fprintf(sb, "%v", t)
	}
}
