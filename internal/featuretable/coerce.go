package featuretable

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
)

// Zero returns the value used for absent properties and new rows.
func (t ColumnType) Zero() any {
	if t == TypeInt {
		return int64(0)
	}
	return ""
}

// ColumnTypes maps column names to their declared type. Columns not present
// are strings.
type ColumnTypes map[string]ColumnType

// Of returns the type of column, defaulting to TypeString.
func (ct ColumnTypes) Of(column string) ColumnType {
	if t, ok := ct[column]; ok && t == TypeInt {
		return TypeInt
	}
	return TypeString
}

func (ct ColumnTypes) clone() ColumnTypes {
	out := make(ColumnTypes, len(ct))
	for k, v := range ct {
		out[k] = v
	}
	return out
}

// coerce converts raw input for a column of type t. The second result reports
// that the input could not be represented and the zero value was substituted.
func coerce(t ColumnType, raw any) (any, bool) {
	if t != TypeInt {
		if s, ok := raw.(string); ok {
			return norm.NFC.String(s), false
		}
		return raw, false
	}

	switch v := raw.(type) {
	case int:
		return int64(v), false
	case int32:
		return int64(v), false
	case int64:
		return v, false
	case float64:
		if n, ok := floatToInt(v); ok {
			return n, false
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, false
		}
		if f, err := v.Float64(); err == nil {
			if n, ok := floatToInt(f); ok {
				return n, false
			}
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, false
		}
	}
	return int64(0), true
}

// floatToInt converts f when it is integral and inside the int64 range.
// 2^63 itself is exactly representable as a float64 but not as an int64.
func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
