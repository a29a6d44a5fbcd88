// Package featuretable models the features of a GeoJSON FeatureCollection as
// an editable table: one row per feature, one column per property.
//
// Only properties are decoded. Top-level members other than "features" and
// every non-property member of a feature are held as raw JSON so that a
// load/serialize round trip reproduces them unchanged.
package featuretable

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// ErrOutOfRange is returned for row indices outside the table.
var ErrOutOfRange = errors.New("row index out of range")

// ErrReadOnlyRow is returned when writing to a features entry that is not a
// JSON object.
var ErrReadOnlyRow = errors.New("row is not an editable feature")

// ChangeKind identifies the scope of a table change.
type ChangeKind int

const (
	ChangeReset ChangeKind = iota
	ChangeCell
	ChangeRowsInserted
	ChangeRowsRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeReset:
		return "reset"
	case ChangeCell:
		return "cell"
	case ChangeRowsInserted:
		return "rows_inserted"
	case ChangeRowsRemoved:
		return "rows_removed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change describes one mutation. Row is -1 for resets; Column is set only for
// cell changes.
type Change struct {
	Kind    ChangeKind
	Row     int
	Column  string
	Coerced bool // the written input was replaced by the column zero value
}

type member struct {
	key string
	raw json.RawMessage
}

type listener struct {
	id int
	fn func(Change)
}

// Table is an ordered, mutable collection of features with a stable column
// schema. It is not safe for concurrent use.
type Table struct {
	envelope   []member
	featuresAt int // position of "features" among envelope members, -1 to append
	features   []*Feature
	columns    []string
	types      ColumnTypes

	listeners []listener
	nextID    int
}

// New returns an empty table.
func New() *Table {
	return &Table{featuresAt: -1, types: ColumnTypes{}}
}

// Subscribe registers fn to receive every change. The returned function
// removes the subscription.
func (t *Table) Subscribe(fn func(Change)) func() {
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range t.listeners {
			if l.id == id {
				t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

func (t *Table) emit(c Change) {
	for _, l := range t.listeners {
		l.fn(c)
	}
}

// Load replaces the whole table with the given document. visibleColumns, when
// non-empty, fixes the column list; otherwise columns are the sorted union of
// all property keys. A document without "features" loads as empty; one
// whose "features" is not an array is rejected. On error the previous
// contents are kept.
func (t *Table) Load(document []byte, visibleColumns []string, columnTypes ColumnTypes) error {
	if !gjson.ValidBytes(document) {
		return fmt.Errorf("load document: invalid JSON")
	}
	root := gjson.ParseBytes(document)
	if !root.IsObject() {
		return fmt.Errorf("load document: top level is not an object")
	}

	var (
		envelope   []member
		features   []*Feature
		featuresAt = -1
		badType    string
	)
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == "features" {
			if !value.IsArray() {
				badType = jsonKind(value)
				return false
			}
			if featuresAt < 0 {
				featuresAt = len(envelope)
			}
			features = features[:0]
			value.ForEach(func(_, item gjson.Result) bool {
				features = append(features, parseFeature(item))
				return true
			})
			return true
		}
		for i := range envelope {
			if envelope[i].key == name {
				envelope[i].raw = copyRaw(value.Raw)
				return true
			}
		}
		envelope = append(envelope, member{key: name, raw: copyRaw(value.Raw)})
		return true
	})
	if badType != "" {
		return fmt.Errorf("load document: features is %s, not an array", badType)
	}

	var columns []string
	if len(visibleColumns) > 0 {
		columns = append(columns, visibleColumns...)
	} else {
		columns = deriveColumns(features)
	}

	t.envelope = envelope
	t.featuresAt = featuresAt
	t.features = features
	t.columns = columns
	t.types = columnTypes.clone()
	t.emit(Change{Kind: ChangeReset, Row: -1})
	return nil
}

func jsonKind(v gjson.Result) string {
	switch {
	case v.IsObject():
		return "an object"
	case v.Type == gjson.Null:
		return "null"
	case v.Type == gjson.String:
		return "a string"
	case v.Type == gjson.Number:
		return "a number"
	default:
		return "a boolean"
	}
}

func deriveColumns(features []*Feature) []string {
	seen := make(map[string]struct{})
	for _, f := range features {
		for _, k := range f.props.Keys() {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

// Columns returns the column names in display order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnType returns the declared type of column.
func (t *Table) ColumnType(column string) ColumnType {
	return t.types.Of(column)
}

// RowCount returns the number of features.
func (t *Table) RowCount() int {
	return len(t.features)
}

// Feature returns the feature at row.
func (t *Table) Feature(row int) (*Feature, error) {
	if row < 0 || row >= len(t.features) {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, row)
	}
	return t.features[row], nil
}

// CellValue returns the property stored for column on row, or the column's
// zero value when the property is absent.
func (t *Table) CellValue(row int, column string) (any, error) {
	f, err := t.Feature(row)
	if err != nil {
		return nil, err
	}
	if v, ok := f.props.Get(column); ok {
		return v, nil
	}
	return t.types.Of(column).Zero(), nil
}

// CellText returns the display form of a cell.
func (t *Table) CellText(row int, column string) (string, error) {
	v, err := t.CellValue(row, column)
	if err != nil {
		return "", err
	}
	return FormatValue(v), nil
}

// FormatValue renders a property value for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.RawMessage:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// SetCellValue writes raw into column on row. Input an int column cannot
// represent is stored as 0 and reported through Change.Coerced.
func (t *Table) SetCellValue(row int, column string, raw any) (Change, error) {
	f, err := t.Feature(row)
	if err != nil {
		return Change{}, err
	}
	if f.opaque != nil {
		return Change{}, fmt.Errorf("%w: %d", ErrReadOnlyRow, row)
	}
	value, coerced := coerce(t.types.Of(column), raw)
	f.ensureProperties().Set(column, value)

	c := Change{Kind: ChangeCell, Row: row, Column: column, Coerced: coerced}
	t.emit(c)
	return c, nil
}

// InsertRow appends a feature with every column set to its zero value and a
// null geometry, returning its row index.
func (t *Table) InsertRow() int {
	t.features = append(t.features, newBlankFeature(t.columns, t.types))
	row := len(t.features) - 1
	t.emit(Change{Kind: ChangeRowsInserted, Row: row})
	return row
}

// RemoveRows deletes the given rows. Duplicate and out-of-range indices are
// ignored. It returns the number of rows removed.
func (t *Table) RemoveRows(indices []int) int {
	seen := make(map[int]struct{}, len(indices))
	rows := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(t.features) {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		rows = append(rows, i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rows)))

	for _, i := range rows {
		t.features = append(t.features[:i], t.features[i+1:]...)
		t.emit(Change{Kind: ChangeRowsRemoved, Row: i})
	}
	return len(rows)
}

// Serialize writes the envelope members in their original order with the
// current features, indented by two spaces and terminated by a newline.
func (t *Table) Serialize() ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')

	n := 0
	writeFeatures := func() error {
		if n > 0 {
			compact.WriteByte(',')
		}
		n++
		if err := encodeKey(&compact, "features"); err != nil {
			return err
		}
		compact.WriteByte('[')
		for i, f := range t.features {
			if i > 0 {
				compact.WriteByte(',')
			}
			if err := f.encode(&compact); err != nil {
				return fmt.Errorf("feature %d: %w", i, err)
			}
		}
		compact.WriteByte(']')
		return nil
	}

	for i, m := range t.envelope {
		if i == t.featuresAt {
			if err := writeFeatures(); err != nil {
				return nil, err
			}
		}
		if n > 0 {
			compact.WriteByte(',')
		}
		n++
		if err := encodeKey(&compact, m.key); err != nil {
			return nil, err
		}
		if err := json.Compact(&compact, m.raw); err != nil {
			return nil, fmt.Errorf("member %q: %w", m.key, err)
		}
	}
	if t.featuresAt < 0 || t.featuresAt >= len(t.envelope) {
		if err := writeFeatures(); err != nil {
			return nil, err
		}
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
