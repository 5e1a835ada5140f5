// Package targeting holds the partner's key/value targeting in insertion order.
package targeting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
)

// Pair is one targeting key and its value.
type Pair struct {
	Key   string
	Value string
}

// Map is a string map that remembers insertion order. Setting an existing key
// replaces its value in place. The zero value is ready to use; a nil *Map
// reads as empty.
type Map struct {
	pairs []Pair
	index map[string]int
}

// New returns a Map holding pairs in the given order.
func New(pairs ...Pair) *Map {
	m := &Map{}
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

// FromMap builds a Map from m with keys in the order given by keys. Keys
// missing from m are skipped.
func FromMap(m map[string]string, keys []string) *Map {
	out := &Map{}
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out.Set(k, v)
		}
	}
	return out
}

// Set adds or replaces key.
func (m *Map) Set(key, value string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.pairs[i].Value = value
		return
	}
	m.index[key] = len(m.pairs)
	m.pairs = append(m.pairs, Pair{Key: key, Value: value})
}

// Get returns the value for key.
func (m *Map) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.index[key]
	if !ok {
		return "", false
	}
	return m.pairs[i].Value, true
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Pairs returns a copy of the pairs in insertion order.
func (m *Map) Pairs() []Pair {
	if m == nil {
		return nil
	}
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// Each calls fn for every pair in insertion order.
func (m *Map) Each(fn func(key, value string)) {
	if m == nil {
		return
	}
	for _, p := range m.pairs {
		fn(p.Key, p.Value)
	}
}

// Clone returns an independent copy of m.
func (m *Map) Clone() *Map {
	out := &Map{}
	m.Each(out.Set)
	return out
}

// Keywords renders the map as "k1:v1,k2:v2" in insertion order.
func (m *Map) Keywords() string {
	var b strings.Builder
	m.Each(func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
	})
	return b.String()
}

// JoinKeywords appends the publisher's own keyword string after the
// targeting keywords, separated by a comma. Either side may be empty.
func JoinKeywords(m *Map, publisher string) string {
	kw := m.Keywords()
	switch {
	case publisher == "":
		return kw
	case kw == "":
		return publisher
	default:
		return kw + "," + publisher
	}
}

// MarshalJSON encodes the map as a JSON object with keys in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m.Pairs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object keeping the document's key order.
// Numbers and booleans are kept as their literal text; nulls are skipped.
func (m *Map) UnmarshalJSON(data []byte) error {
	*m = Map{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	return jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		switch dataType {
		case jsonparser.String:
			s, err := jsonparser.ParseString(value)
			if err != nil {
				return fmt.Errorf("targeting value for %q: %w", key, err)
			}
			m.Set(string(key), s)
		case jsonparser.Number, jsonparser.Boolean:
			m.Set(string(key), string(value))
		case jsonparser.Null:
		default:
			return fmt.Errorf("targeting value for %q must be a scalar, got %s", key, dataType)
		}
		return nil
	})
}
