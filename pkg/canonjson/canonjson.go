// Package canonjson produces a deterministic JSON encoding of arbitrary
// Go values, used wherever the byte encoding itself is a hashing
// invariant (cache keys must be stable across processes and restarts).
//
// encoding/json already sorts map[string]T keys when marshaling, but it
// does not guarantee stability for nested maps produced via
// map[string]any, and callers of this package have historically passed
// both. We walk the decoded value ourselves and re-encode with explicit
// key sorting at every level so the contract doesn't depend on an
// implementation detail of the stdlib encoder.
package canonjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal returns the canonical encoding of v: object keys sorted
// lexicographically at every nesting level, no insignificant whitespace,
// numbers written verbatim as encoding/json first produced them (the
// intermediate decode uses UseNumber, so no float re-formatting happens).
func Marshal(v any) ([]byte, error) {
	// Round-trip through json.Marshal/Unmarshal first so arbitrary Go
	// struct values land in the same map[string]any/[]any/scalar shape
	// that normalize walks.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonjson: marshal input: %w", err)
	}

	var decoded any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("canonjson: decode intermediate: %w", err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, decoded); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustMarshal panics on error. Used only where the input is known
// JSON-safe (e.g. already-validated internal structs).
func MustMarshal(v any) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case string:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("canonjson: unsupported decoded type %T", v)
	}
}
