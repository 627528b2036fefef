// Package record holds the key/value container that carries one recipient row
// through a dispatch run.
package record

import "strings"

// Field is one column of a source row.
type Field struct {
	Key   string
	Value string
}

// Raw is a source row in column order, as produced by a data source.
type Raw []Field

// Record is a normalized row: keys are trimmed and lower-cased, iteration
// follows the source column order and lookups never fail.
type Record struct {
	keys   []string
	values map[string]string
}

// New returns an empty Record.
func New() *Record {
	return &Record{values: make(map[string]string)}
}

// Normalize builds a Record from a raw row. Empty keys are dropped. When a
// key appears twice, the last value wins and the first position is kept.
func Normalize(raw Raw) *Record {
	r := New()
	for _, f := range raw {
		r.Set(f.Key, f.Value)
	}
	return r
}

// NormalizeKey trims and lower-cases a field name.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Set stores value under the normalized key.
func (r *Record) Set(key, value string) {
	k := NormalizeKey(key)
	if k == "" {
		return
	}
	if _, ok := r.values[k]; !ok {
		r.keys = append(r.keys, k)
	}
	r.values[k] = value
}

// Get returns the value for key and whether it is present.
func (r *Record) Get(key string) (string, bool) {
	v, ok := r.values[NormalizeKey(key)]
	return v, ok
}

// Value returns the value for key, or "" when absent.
func (r *Record) Value(key string) string {
	return r.values[NormalizeKey(key)]
}

// First returns the first non-empty value among keys.
func (r *Record) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.Value(k)); v != "" {
			return v
		}
	}
	return ""
}

// Keys returns the normalized keys in source column order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Fields returns a copy of the record as a lower-keyed map.
func (r *Record) Fields() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
