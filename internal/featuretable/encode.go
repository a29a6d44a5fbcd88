package featuretable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// encodeValue appends the compact JSON form of a property value. Strings are
// written without HTML or non-ASCII escaping so the file stays readable.
func encodeValue(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return encodeString(buf, x)
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case int:
		buf.WriteString(strconv.Itoa(x))
	case json.Number:
		buf.WriteString(x.String())
	case json.RawMessage:
		return json.Compact(buf, x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Errorf("encode property value: %w", err)
		}
		buf.Write(data)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

func encodeKey(buf *bytes.Buffer, key string) error {
	if err := encodeString(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return nil
}

func (p *Properties) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeKey(buf, k); err != nil {
			return err
		}
		if err := encodeValue(buf, p.values[k]); err != nil {
			return fmt.Errorf("property %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func (f *Feature) encode(buf *bytes.Buffer) error {
	if f.opaque != nil {
		return json.Compact(buf, f.opaque)
	}
	buf.WriteByte('{')
	for i, k := range f.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeKey(buf, k); err != nil {
			return err
		}
		if k == "properties" && f.props != nil {
			if err := f.props.encode(buf); err != nil {
				return err
			}
			continue
		}
		raw, ok := f.raw[k]
		if !ok {
			buf.WriteString("null")
			continue
		}
		if err := json.Compact(buf, raw); err != nil {
			return fmt.Errorf("member %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}
