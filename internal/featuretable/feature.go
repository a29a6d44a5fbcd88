package featuretable

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Properties is an insertion-ordered property bag. Keys keep the order they
// had in the source document; new keys are appended.
type Properties struct {
	keys   []string
	values map[string]any
}

func newProperties() *Properties {
	return &Properties{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (p *Properties) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// Set stores value under key, appending the key if it is new.
func (p *Properties) Set(key string, value any) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Keys returns the property names in document order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Feature is one record of the collection. Only properties are decoded;
// every other member (type, geometry, id, bbox, foreign members) is kept as
// raw JSON and written back unchanged, in its original position.
type Feature struct {
	order []string
	raw   map[string]json.RawMessage
	props *Properties

	// opaque holds entries of the features array that are not JSON objects.
	// They are carried through serialization verbatim and are read-only.
	opaque json.RawMessage
}

func newBlankFeature(columns []string, types ColumnTypes) *Feature {
	props := newProperties()
	for _, col := range columns {
		props.Set(col, types.Of(col).Zero())
	}
	return &Feature{
		order: []string{"type", "properties", "geometry"},
		raw: map[string]json.RawMessage{
			"type":     json.RawMessage(`"Feature"`),
			"geometry": json.RawMessage(`null`),
		},
		props: props,
	}
}

func parseFeature(v gjson.Result) *Feature {
	if !v.IsObject() {
		return &Feature{opaque: copyRaw(v.Raw)}
	}
	f := &Feature{raw: make(map[string]json.RawMessage)}
	v.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !f.has(name) {
			f.order = append(f.order, name)
		}
		if name == "properties" && value.IsObject() {
			f.props = parseProperties(value)
			delete(f.raw, name)
			return true
		}
		f.raw[name] = copyRaw(value.Raw)
		return true
	})
	return f
}

func (f *Feature) has(name string) bool {
	for _, k := range f.order {
		if k == name {
			return true
		}
	}
	return false
}

// Kind returns the feature's "type" member, normally "Feature".
func (f *Feature) Kind() string {
	if raw, ok := f.raw["type"]; ok {
		return gjson.ParseBytes(raw).String()
	}
	return ""
}

// Geometry returns the raw geometry member, or nil when the member is absent.
func (f *Feature) Geometry() json.RawMessage {
	if f.opaque != nil {
		return nil
	}
	return f.raw["geometry"]
}

// Properties returns the feature's property bag; nil when the member is
// absent or not an object.
func (f *Feature) Properties() *Properties {
	return f.props
}

func (f *Feature) ensureProperties() *Properties {
	if f.props == nil {
		f.props = newProperties()
		delete(f.raw, "properties")
		if !f.has("properties") {
			f.order = append(f.order, "properties")
		}
	}
	return f.props
}

func parseProperties(v gjson.Result) *Properties {
	p := newProperties()
	v.ForEach(func(key, value gjson.Result) bool {
		p.Set(key.String(), decodeScalar(value))
		return true
	})
	return p
}

// decodeScalar keeps numbers as json.Number so their textual form survives a
// round trip, and nested values as raw JSON.
func decodeScalar(v gjson.Result) any {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Null:
		return nil
	default:
		return copyRaw(v.Raw)
	}
}

func copyRaw(s string) json.RawMessage {
	out := make([]byte, len(s))
	copy(out, s)
	return out
}
