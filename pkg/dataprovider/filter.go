package dataprovider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// FullTextKey is the reserved filter key for full-text search.
const FullTextKey = "q"

// FilterTerm is one key/value pair of a Filter.
type FilterTerm struct {
	Key   string `mapstructure:"key"`
	Value any    `mapstructure:"value"`
}

// Filter is an ordered set of filter terms. Term order is the order in which
// the terms are encoded into a query string.
//
// Decoding a Filter from a JSON object keeps the object's key order. Building
// one from a Go map (NewFilter, DecodeParams) sorts the keys, since Go maps
// have no order.
type Filter []FilterTerm

// NewFilter builds a Filter from a map, sorted by key.
func NewFilter(m map[string]any) Filter {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := make(Filter, 0, len(keys))
	for _, k := range keys {
		f = append(f, FilterTerm{Key: k, Value: m[k]})
	}
	return f
}

// Get returns the value of the first term with the given key.
func (f Filter) Get(key string) (any, bool) {
	for _, t := range f {
		if t.Key == key {
			return t.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of an existing key or appends a new term.
func (f Filter) Set(key string, value any) Filter {
	for i, t := range f {
		if t.Key == key {
			f[i].Value = value
			return f
		}
	}
	return append(f, FilterTerm{Key: key, Value: value})
}

// Map returns the filter as an unordered map.
func (f Filter) Map() map[string]any {
	m := make(map[string]any, len(f))
	for _, t := range f {
		m[t.Key] = t.Value
	}
	return m
}

// UnmarshalJSON decodes a JSON object keeping its key order.
func (f *Filter) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("filter must be a JSON object, got %v", tok)
	}

	out := Filter{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("filter key must be a string, got %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode filter %q: %w", key, err)
		}
		out = append(out, FilterTerm{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = out
	return nil
}

// MarshalJSON encodes the filter as a JSON object in term order.
func (f Filter) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(t.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(t.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter %q: %w", t.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
