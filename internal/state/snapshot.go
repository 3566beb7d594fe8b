package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Snapshot is one fetched telemetry state: a flat key -> Value mapping that
// remembers the order keys first appeared in. The zero value is an empty
// snapshot, which stands for "no prior fetch".
type Snapshot struct {
	keys   []string
	values map[string]Value
}

// NewSnapshot returns an empty snapshot with room for n keys.
func NewSnapshot(n int) Snapshot {
	return Snapshot{
		keys:   make([]string, 0, n),
		values: make(map[string]Value, n),
	}
}

// Set stores v under key. A new key is appended to the key order; an existing
// key keeps its position and takes the new value.
func (s *Snapshot) Set(key string, v Value) {
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

// Get returns the value for key and whether it is present.
func (s Snapshot) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns a copy of the keys in insertion order.
func (s Snapshot) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s Snapshot) Len() int { return len(s.keys) }

func (s Snapshot) IsEmpty() bool { return len(s.keys) == 0 }

// Each calls fn for every entry in insertion order.
func (s Snapshot) Each(fn func(key string, v Value)) {
	for _, k := range s.keys {
		fn(k, s.values[k])
	}
}

// String renders the snapshot as a compact JSON object in key order.
func (s Snapshot) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, k)
		buf.WriteByte(':')

		v := s.values[k]
		switch v.kind {
		case KindString:
			writeJSONString(&buf, v.str)
		default:
			buf.WriteString(v.String())
		}
	}
	buf.WriteByte('}')
	return buf.String()
}

func writeJSONString(buf *bytes.Buffer, s string) {
	// marshalling a string cannot fail
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// ParseSnapshot decodes a JSON object into a Snapshot, preserving the order
// in which keys appear in the document. Anything other than a single JSON
// object is an error.
func ParseSnapshot(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read telemetry document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Snapshot{}, fmt.Errorf("telemetry document is not a JSON object")
	}

	snap := NewSnapshot(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Snapshot{}, fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return Snapshot{}, fmt.Errorf("unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Snapshot{}, fmt.Errorf("read value for %q: %w", key, err)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("decode value for %q: %w", key, err)
		}
		snap.Set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return Snapshot{}, fmt.Errorf("read end of object: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Snapshot{}, fmt.Errorf("trailing data after telemetry object")
	}

	return snap, nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Value{}, fmt.Errorf("empty value")
	}

	switch trimmed[0] {
	case 'n':
		return Null(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, err
		}
		return String(s), nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return Value{}, err
		}
		return Raw(buf.String()), nil
	default:
		f, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	}
}
