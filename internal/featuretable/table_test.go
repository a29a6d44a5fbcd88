package featuretable

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func loadFixture(t *testing.T, types ColumnTypes) (*Table, []byte) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "collection.geojson"))
	require.NoError(t, err)
	tbl := New()
	require.NoError(t, tbl.Load(data, nil, types))
	return tbl, data
}

func namesTable(t *testing.T, names ...string) *Table {
	t.Helper()
	doc := map[string]any{"type": "FeatureCollection"}
	var features []any
	for _, n := range names {
		features = append(features, map[string]any{
			"type":       "Feature",
			"properties": map[string]any{"name": n},
			"geometry":   nil,
		})
	}
	doc["features"] = features
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	tbl := New()
	require.NoError(t, tbl.Load(data, nil, nil))
	return tbl
}

func rowNames(t *testing.T, tbl *Table) []string {
	t.Helper()
	var out []string
	for i := 0; i < tbl.RowCount(); i++ {
		s, err := tbl.CellText(i, "name")
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestLoad_DerivesSortedColumns(t *testing.T) {
	tbl, _ := loadFixture(t, nil)
	assert.Equal(t, []string{"capacite", "nom", "ville"}, tbl.Columns())
	assert.Equal(t, 2, tbl.RowCount())
}

func TestLoad_VisibleColumnsOverrideDerivation(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "collection.geojson"))
	require.NoError(t, err)

	tbl := New()
	require.NoError(t, tbl.Load(data, []string{"ville", "nom"}, nil))
	assert.Equal(t, []string{"ville", "nom"}, tbl.Columns())
}

func TestLoad_EmptyFeatures(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Load([]byte(`{"type":"FeatureCollection","features":[]}`), nil, nil))
	assert.Empty(t, tbl.Columns())
	assert.Equal(t, 0, tbl.RowCount())

	require.NoError(t, tbl.Load([]byte(`{"type":"FeatureCollection","features":[]}`), []string{"a"}, nil))
	assert.Equal(t, []string{"a"}, tbl.Columns())
}

func TestLoad_InvalidDocumentKeepsPreviousState(t *testing.T) {
	tbl, _ := loadFixture(t, nil)

	var changes []Change
	tbl.Subscribe(func(c Change) { changes = append(changes, c) })

	assert.Error(t, tbl.Load([]byte(`{"features": [`), nil, nil))
	assert.Error(t, tbl.Load([]byte(`[1, 2]`), nil, nil))
	assert.Equal(t, 2, tbl.RowCount())
	assert.Empty(t, changes)
}

func TestLoad_RejectsNonArrayFeatures(t *testing.T) {
	tbl, _ := loadFixture(t, nil)

	var changes []Change
	tbl.Subscribe(func(c Change) { changes = append(changes, c) })

	for doc, want := range map[string]string{
		`{"features": {"a": {"properties": {"nom": "x"}}}}`: "features is an object",
		`{"features": null}`:                                "features is null",
		`{"features": "none"}`:                              "features is a string",
		`{"features": [], "features": 3}`:                   "features is a number",
	} {
		err := tbl.Load([]byte(doc), nil, nil)
		require.Error(t, err, doc)
		assert.Contains(t, err.Error(), want)
	}
	assert.Equal(t, 2, tbl.RowCount())
	assert.Empty(t, changes)

	// Absent features is an empty collection that gains the member on save.
	require.NoError(t, tbl.Load([]byte(`{"type": "FeatureCollection"}`), nil, nil))
	assert.Equal(t, 0, tbl.RowCount())
}

func TestSerialize_UnchangedDocumentIsByteIdentical(t *testing.T) {
	tbl, data := loadFixture(t, nil)
	out, err := tbl.Serialize()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(out))
}

func TestSerialize_PreservesEnvelopeAndGeometry(t *testing.T) {
	doc := []byte(`{"bbox":[1,2,3,4],"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"a":1},"geometry":{"type":"LineString","coordinates":[[1.25,2.5],[3,4]]}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":null,"foo":{"bar":true}}
	],"metadata":{"updated":"2024-01-01","tags":["x","y"]}}`)

	tbl := New()
	require.NoError(t, tbl.Load(doc, nil, nil))
	_, err := tbl.SetCellValue(0, "a", "changed")
	require.NoError(t, err)

	out, err := tbl.Serialize()
	require.NoError(t, err)

	in := gjson.ParseBytes(doc)
	got := gjson.ParseBytes(out)
	for _, key := range []string{"bbox", "type", "metadata"} {
		assert.JSONEq(t, in.Get(key).Raw, got.Get(key).Raw, key)
	}
	for i := 0; i < 2; i++ {
		path := fmt.Sprintf("features.%d.geometry", i)
		assert.JSONEq(t, in.Get(path).Raw, got.Get(path).Raw, path)
	}
	assert.Equal(t, "null", got.Get("features.1.properties").Raw)
	assert.JSONEq(t, `{"bar":true}`, got.Get("features.1.foo").Raw)

	var keys []string
	got.ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{"bbox", "type", "features", "metadata"}, keys)
}

func TestSerialize_AppendsFeaturesWhenMissing(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Load([]byte(`{"type":"FeatureCollection"}`), nil, nil))
	tbl.InsertRow()

	out, err := tbl.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"type\": \"FeatureCollection\",\n  \"features\": [\n    {\n      \"type\": \"Feature\",\n      \"properties\": {},\n      \"geometry\": null\n    }\n  ]\n}\n", string(out))
}

func TestSerialize_Golden(t *testing.T) {
	tbl, _ := loadFixture(t, ColumnTypes{"capacite": TypeInt})

	_, err := tbl.SetCellValue(1, "capacite", "85")
	require.NoError(t, err)
	row := tbl.InsertRow()
	_, err = tbl.SetCellValue(row, "nom", "Cantine Crêpe")
	require.NoError(t, err)

	out, err := tbl.Serialize()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "edited_collection", out)
}

func TestCellValue_AbsentPropertyYieldsZeroValue(t *testing.T) {
	tbl, _ := loadFixture(t, ColumnTypes{"capacite": TypeInt})

	v, err := tbl.CellValue(1, "capacite")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	v, err = tbl.CellValue(1, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = tbl.CellValue(0, "capacite")
	require.NoError(t, err)
	assert.Equal(t, json.Number("120"), v)
}

func TestCellValue_OutOfRange(t *testing.T) {
	tbl, _ := loadFixture(t, nil)

	_, err := tbl.CellValue(2, "nom")
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = tbl.CellValue(-1, "nom")
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = tbl.SetCellValue(5, "nom", "x")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSetCellValue_IntCoercion(t *testing.T) {
	tbl, _ := loadFixture(t, ColumnTypes{"capacity": TypeInt})

	c, err := tbl.SetCellValue(0, "capacity", "abc")
	require.NoError(t, err)
	assert.True(t, c.Coerced)
	v, err := tbl.CellValue(0, "capacity")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	c, err = tbl.SetCellValue(0, "capacity", " 42 ")
	require.NoError(t, err)
	assert.False(t, c.Coerced)
	v, _ = tbl.CellValue(0, "capacity")
	assert.Equal(t, int64(42), v)

	c, err = tbl.SetCellValue(0, "capacity", 12.0)
	require.NoError(t, err)
	assert.False(t, c.Coerced)

	c, err = tbl.SetCellValue(0, "capacity", 12.5)
	require.NoError(t, err)
	assert.True(t, c.Coerced)
}

func TestSetCellValue_IntOutOfRange(t *testing.T) {
	tbl, _ := loadFixture(t, ColumnTypes{"capacity": TypeInt})

	for _, raw := range []any{1e300, -1e300, 9.3e18, math.Inf(1), math.NaN(), json.Number("1e300"), json.Number("9223372036854775808")} {
		c, err := tbl.SetCellValue(0, "capacity", raw)
		require.NoError(t, err)
		assert.True(t, c.Coerced, "%v", raw)
		v, _ := tbl.CellValue(0, "capacity")
		assert.Equal(t, int64(0), v, "%v", raw)
	}

	c, err := tbl.SetCellValue(0, "capacity", -9.223372036854775808e18)
	require.NoError(t, err)
	assert.False(t, c.Coerced)
	v, _ := tbl.CellValue(0, "capacity")
	assert.Equal(t, int64(math.MinInt64), v)

	c, err = tbl.SetCellValue(0, "capacity", json.Number("4e3"))
	require.NoError(t, err)
	assert.False(t, c.Coerced)
	v, _ = tbl.CellValue(0, "capacity")
	assert.Equal(t, int64(4000), v)
}

func TestSetCellValue_CreatesPropertyBag(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Load([]byte(`{"features":[{"type":"Feature","geometry":null}]}`), nil, nil))

	_, err := tbl.SetCellValue(0, "name", "A")
	require.NoError(t, err)

	out, err := tbl.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "A", gjson.GetBytes(out, "features.0.properties.name").String())
}

func TestSetCellValue_NormalizesToNFC(t *testing.T) {
	tbl := namesTable(t, "A")
	_, err := tbl.SetCellValue(0, "name", "Cre\u0301pe")
	require.NoError(t, err)

	s, _ := tbl.CellText(0, "name")
	assert.Equal(t, "Cr\u00e9pe", s)
}

func TestSetCellValue_OpaqueRowIsReadOnly(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Load([]byte(`{"features":[42]}`), nil, nil))

	_, err := tbl.SetCellValue(0, "name", "x")
	assert.ErrorIs(t, err, ErrReadOnlyRow)

	out, err := tbl.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "42", gjson.GetBytes(out, "features.0").Raw)
}

func TestInsertRow_DefaultsEveryColumn(t *testing.T) {
	tbl, _ := loadFixture(t, ColumnTypes{"capacite": TypeInt})

	row := tbl.InsertRow()
	assert.Equal(t, 2, row)

	f, err := tbl.Feature(row)
	require.NoError(t, err)
	assert.Equal(t, "Feature", f.Kind())
	assert.Equal(t, json.RawMessage("null"), f.Geometry())
	assert.Equal(t, []string{"capacite", "nom", "ville"}, f.Properties().Keys())

	v, _ := tbl.CellValue(row, "capacite")
	assert.Equal(t, int64(0), v)
	v, _ = tbl.CellValue(row, "nom")
	assert.Equal(t, "", v)
}

func TestRemoveRows_OrderIndependent(t *testing.T) {
	orders := [][]int{{3, 1, 4}, {1, 3, 4}, {4, 3, 1}, {1, 4, 3}}
	var want []string
	for i, order := range orders {
		tbl := namesTable(t, "a", "b", "c", "d", "e", "f")
		assert.Equal(t, 3, tbl.RemoveRows(order))
		got := rowNames(t, tbl)
		if i == 0 {
			want = got
			assert.Equal(t, []string{"a", "c", "f"}, got)
			continue
		}
		assert.Equal(t, want, got, "order %v", order)
	}
}

func TestRemoveRows_IgnoresOutOfRangeAndDuplicates(t *testing.T) {
	tbl := namesTable(t, "a", "b")
	assert.Equal(t, 1, tbl.RemoveRows([]int{7, -1, 1, 1}))
	assert.Equal(t, []string{"a"}, rowNames(t, tbl))
	assert.Equal(t, 0, tbl.RemoveRows(nil))
}

func TestScenario_InsertThenRemoveFirst(t *testing.T) {
	tbl := namesTable(t, "A", "B")
	assert.Equal(t, []string{"name"}, tbl.Columns())

	row := tbl.InsertRow()
	assert.Equal(t, 2, row)
	v, _ := tbl.CellValue(row, "name")
	assert.Equal(t, "", v)

	tbl.RemoveRows([]int{0})
	assert.Equal(t, []string{"B", ""}, rowNames(t, tbl))
}

func TestSubscribe_ScopedChanges(t *testing.T) {
	tbl := namesTable(t, "A", "B")

	var changes []Change
	unsubscribe := tbl.Subscribe(func(c Change) { changes = append(changes, c) })

	_, err := tbl.SetCellValue(1, "name", "Z")
	require.NoError(t, err)
	tbl.InsertRow()
	tbl.RemoveRows([]int{0, 2})

	assert.Equal(t, []Change{
		{Kind: ChangeCell, Row: 1, Column: "name"},
		{Kind: ChangeRowsInserted, Row: 2},
		{Kind: ChangeRowsRemoved, Row: 2},
		{Kind: ChangeRowsRemoved, Row: 0},
	}, changes)

	unsubscribe()
	tbl.InsertRow()
	assert.Len(t, changes, 4)
}
