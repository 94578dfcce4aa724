package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/scoreerr"
)

func ptr(v float64) *float64 { return &v }

func testTables(t *testing.T) *Tables {
	t.Helper()
	tables, err := NewTables(FileSpec{
		Instruments: []InstrumentSpec{
			{Name: "YSQ", Version: "3", Priority: 2, Table: map[float64]float64{1: 30, 2: 40, 3: 50, 4: 60, 5: 70}},
		},
		Percentiles: map[float64]float64{1: 27, 16: 40, 50: 50, 84: 60, 99: 73},
	})
	require.NoError(t, err)
	return tables
}

func TestNormalize_TScoreIdentity(t *testing.T) {
	n := New(testTables(t), nil)

	res, err := n.Normalize([]model.RawItemResponse{
		{ID: "i1", SchemaID: "failure", TScore: ptr(55)},
	}, model.Instrument{Name: "ysq", Version: "3"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	item := res.Items[0]
	assert.Equal(t, 55.0, item.TScore)
	assert.Equal(t, model.MethodTScoreProvided, item.Method)
	assert.Equal(t, model.SchemaID("failure"), item.SchemaID)
	assert.Equal(t, "ysq@3", item.Instrument)
	assert.Equal(t, 1.0, item.Weight)
}

func TestNormalize_RawConversion(t *testing.T) {
	tables := testTables(t)
	n := New(tables, nil)

	tests := []struct {
		name string
		inst model.Instrument
		raw  float64
		want float64
	}{
		{"exact entry", model.Instrument{Name: "ysq", Version: "3"}, 4, 60},
		{"midpoint interpolation", model.Instrument{Name: "ysq", Version: "3"}, 2.5, 45},
		{"quarter interpolation", model.Instrument{Name: "ysq", Version: "3"}, 3.25, 52.5},
		{"below domain clamps", model.Instrument{Name: "ysq", Version: "3"}, 0, 30},
		{"above domain clamps", model.Instrument{Name: "ysq", Version: "3"}, 9, 70},
		{"name-only fallback", model.Instrument{Name: "YSQ", Version: "9"}, 2.5, 45},
		{"generic fallback low", model.Instrument{Name: "other"}, 1, 20},
		{"generic fallback mid", model.Instrument{Name: "other"}, 3, 50},
		{"generic fallback high", model.Instrument{Name: "other"}, 5, 80},
		{"generic fallback clamps", model.Instrument{Name: "other"}, 7, 80},
		{"generic fallback clamps low", model.Instrument{Name: "other"}, -2, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := n.Normalize([]model.RawItemResponse{
				{ID: "i1", SchemaID: "failure", Raw: ptr(tt.raw)},
			}, tt.inst)
			require.NoError(t, err)
			require.Len(t, res.Items, 1)
			assert.InDelta(t, tt.want, res.Items[0].TScore, 1e-9)
			assert.Equal(t, model.MethodRawToTScore, res.Items[0].Method)
		})
	}
}

func TestNormalize_Percentile(t *testing.T) {
	n := New(testTables(t), nil)

	tests := []struct {
		name       string
		percentile float64
		want       float64
	}{
		{"exact hit", 50, 50},
		{"interpolated", 33, 45},
		{"lower bound", 1, 27},
		{"upper bound", 99, 73},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := n.Normalize([]model.RawItemResponse{
				{ID: "p", SchemaID: "failure", Percentile: ptr(tt.percentile)},
			}, model.Instrument{Name: "ysq"})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Items[0].TScore, 1e-9)
			assert.Equal(t, model.MethodPercentileToTScore, res.Items[0].Method)
		})
	}
}

func TestNormalize_PercentileDefaultTable(t *testing.T) {
	n := New(nil, nil)

	res, err := n.Normalize([]model.RawItemResponse{
		{ID: "p50", SchemaID: "failure", Percentile: ptr(50)},
		{ID: "p84", SchemaID: "failure", Percentile: ptr(84)},
	}, model.Instrument{Name: "any"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Items[0].TScore)
	assert.InDelta(t, 59.9, res.Items[1].TScore, 0.05)
}

func TestNormalize_Failures(t *testing.T) {
	n := New(testTables(t), nil)

	tests := []struct {
		name string
		item model.RawItemResponse
		code scoreerr.Code
	}{
		{"unknown schema", model.RawItemResponse{ID: "a", SchemaID: "nonexistent_schema", TScore: ptr(50)}, scoreerr.InvalidSchemaID},
		{"tscore too low", model.RawItemResponse{ID: "b", SchemaID: "failure", TScore: ptr(19.9)}, scoreerr.OutOfRangeTScore},
		{"tscore too high", model.RawItemResponse{ID: "c", SchemaID: "failure", TScore: ptr(80.1)}, scoreerr.OutOfRangeTScore},
		{"percentile below", model.RawItemResponse{ID: "d", SchemaID: "failure", Percentile: ptr(0.5)}, scoreerr.InvalidPercentile},
		{"percentile above", model.RawItemResponse{ID: "e", SchemaID: "failure", Percentile: ptr(99.5)}, scoreerr.InvalidPercentile},
		{"no conversion path", model.RawItemResponse{ID: "f", SchemaID: "failure"}, scoreerr.NoConversionPath},
		{"zero weight", model.RawItemResponse{ID: "g", SchemaID: "failure", TScore: ptr(50), Weight: ptr(0)}, scoreerr.InvalidWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok := model.RawItemResponse{ID: "ok", SchemaID: "subjugation", TScore: ptr(60)}
			res, err := n.Normalize([]model.RawItemResponse{tt.item, ok}, model.Instrument{Name: "ysq"})
			require.NoError(t, err)
			require.Len(t, res.Items, 1)
			require.Len(t, res.Failures, 1)
			assert.Equal(t, tt.item.ID, res.Failures[0].ItemID)
			assert.Equal(t, string(tt.code), res.Failures[0].Code)
		})
	}
}

func TestNormalize_TScoreTakesPriority(t *testing.T) {
	n := New(testTables(t), nil)

	res, err := n.Normalize([]model.RawItemResponse{
		{ID: "i", SchemaID: "failure", TScore: ptr(70), Raw: ptr(1), Percentile: ptr(0.1)},
	}, model.Instrument{Name: "ysq", Version: "3"})
	require.NoError(t, err)
	assert.Equal(t, 70.0, res.Items[0].TScore)
	assert.Equal(t, model.MethodTScoreProvided, res.Items[0].Method)
}

func TestNormalize_ReverseAndWeight(t *testing.T) {
	n := New(testTables(t), nil)

	res, err := n.Normalize([]model.RawItemResponse{
		{ID: "r", SchemaID: "failure", TScore: ptr(65), Reverse: true, Weight: ptr(2)},
	}, model.Instrument{Name: "ysq"})
	require.NoError(t, err)

	item := res.Items[0]
	assert.Equal(t, 35.0, item.TScore)
	assert.True(t, item.Reversed)
	assert.False(t, item.Clamped)
	assert.Equal(t, 2.0, item.Weight)
}

func TestNormalize_ReverseClampsOutOfBandTable(t *testing.T) {
	tables, err := NewTables(FileSpec{Instruments: []InstrumentSpec{
		{Name: "wide", Table: map[float64]float64{0: 10, 10: 90}},
	}})
	require.NoError(t, err)
	n := New(tables, nil)

	res, err := n.Normalize([]model.RawItemResponse{
		{ID: "lo", SchemaID: "failure", Raw: ptr(0), Reverse: true},
		{ID: "hi", SchemaID: "failure", Raw: ptr(0)},
	}, model.Instrument{Name: "wide"})
	require.NoError(t, err)

	assert.Equal(t, 80.0, res.Items[0].TScore)
	assert.True(t, res.Items[0].Clamped)
	assert.Equal(t, 20.0, res.Items[1].TScore)
	assert.True(t, res.Items[1].Clamped)
}

func TestNormalize_ZeroItemsNormalized(t *testing.T) {
	n := New(testTables(t), nil)

	res, err := n.Normalize([]model.RawItemResponse{
		{ID: "a", SchemaID: "bogus", TScore: ptr(50)},
	}, model.Instrument{Name: "ysq"})
	require.Error(t, err)
	assert.Equal(t, scoreerr.NoValidItems, scoreerr.CodeOf(err))
	require.NotNil(t, res)
	assert.Len(t, res.Failures, 1)

	_, err = n.Normalize(nil, model.Instrument{Name: "ysq"})
	assert.True(t, scoreerr.IsValidation(err))
}

func TestLoadTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	yaml := `
instruments:
  - name: YSQ-S3
    version: "3"
    priority: 5
    table:
      1: 30
      2: 40
      3: 50
  - name: smi
    priority: 1
    table:
      0: 20
      6: 80
percentiles:
  1: 26.7
  50: 50
  99: 73.3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	it := tables.Instrument(model.Instrument{Name: "ysq s3", Version: "3"})
	require.NotNil(t, it)
	assert.Equal(t, "ysq_s3@3", it.Label())
	assert.Equal(t, []Point{{1, 30}, {2, 40}, {3, 50}}, it.Points)

	prio := tables.Priorities()
	assert.Equal(t, 5, prio["ysq_s3@3"])
	assert.Equal(t, 5, prio["ysq_s3"])
	assert.Equal(t, 1, prio["smi"])

	assert.Len(t, tables.Percentile(), 3)
	assert.Nil(t, tables.Instrument(model.Instrument{Name: "unknown"}))
}

func TestLoadTables_Missing(t *testing.T) {
	tables, err := LoadTables(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPercentileTable(), tables.Percentile())
}

func TestNewTables_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec FileSpec
		code scoreerr.Code
	}{
		{"empty table", FileSpec{Instruments: []InstrumentSpec{{Name: "x"}}}, scoreerr.MissingWeightTable},
		{"no name", FileSpec{Instruments: []InstrumentSpec{{Table: map[float64]float64{1: 20}}}}, scoreerr.MalformedTableRow},
		{"duplicate", FileSpec{Instruments: []InstrumentSpec{
			{Name: "x", Table: map[float64]float64{1: 20}},
			{Name: "X", Table: map[float64]float64{1: 30}},
		}}, scoreerr.MalformedTableRow},
		{"percentile knot out of range", FileSpec{Percentiles: map[float64]float64{0: 10, 50: 50}}, scoreerr.MalformedTableRow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTables(tt.spec)
			require.Error(t, err)
			assert.True(t, scoreerr.IsConfiguration(err))
			assert.Equal(t, tt.code, scoreerr.CodeOf(err))
		})
	}
}

func TestDefaultPercentileTable(t *testing.T) {
	pts := DefaultPercentileTable()
	require.NotEmpty(t, pts)
	for i := 1; i < len(pts); i++ {
		assert.Less(t, pts[i-1].X, pts[i].X)
		assert.Less(t, pts[i-1].T, pts[i].T)
	}
	assert.Equal(t, 50.0, interpolate(pts, 50))
	assert.InDelta(t, 40.1, interpolate(pts, 16), 0.05)
}
