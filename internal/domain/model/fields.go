package model

import (
	"bytes"
	"encoding/json"
)

// FieldMap is an insertion-ordered set of named template fields.
// An unset optional value is never stored, so Has distinguishes an absent
// field from one holding the empty string.
type FieldMap struct {
	keys   []string
	values map[string]any
}

// NewFieldMap returns an empty FieldMap.
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]any)}
}

// Set stores value under key. Re-setting a key keeps its original position.
func (m *FieldMap) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// SetOptional stores *value under key when value is non-nil and does nothing otherwise.
func (m *FieldMap) SetOptional(key string, value *string) {
	if value == nil {
		return
	}
	m.Set(key, *value)
}

// Get returns the value stored under key.
func (m *FieldMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *FieldMap) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Keys returns the field names in insertion order.
func (m *FieldMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of fields.
func (m *FieldMap) Len() int {
	return len(m.keys)
}

// AsMap converts the FieldMap, including nested FieldMaps and slices of them,
// into plain maps for template engines that bind by map key.
func (m *FieldMap) AsMap() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = plainValue(m.values[k])
	}
	return out
}

func plainValue(v any) any {
	switch typed := v.(type) {
	case *FieldMap:
		return typed.AsMap()
	case []*FieldMap:
		list := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			list = append(list, item.AsMap())
		}
		return list
	default:
		return v
	}
}

// MarshalJSON encodes the fields as a JSON object in insertion order.
func (m *FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
