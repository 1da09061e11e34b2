package codec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRoundTrip(t *testing.T) {
	table := Table{
		Columns: []string{"b", "a", "c"},
		Rows: [][]any{
			{1.0, "x", 4.5},
			{2.0, "y", -3.0},
			{3.0, "z", 0.0},
		},
	}

	data, err := Encode(ExecuteResult{Success: true, Result: table})
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.IsType(t, Table{}, decoded.Result)

	got := decoded.Result.(Table)
	assert.Equal(t, table.Columns, got.Columns, "column order must be preserved")
	assert.Equal(t, table.Rows, got.Rows, "row order and cell values must be preserved")
}

func TestSeriesRoundTrip(t *testing.T) {
	t.Run("Named", func(t *testing.T) {
		series := NamedSeries{Name: "revenue", Values: []any{10.0, 20.5, 30.0}}

		data, err := Encode(ExecuteResult{Success: true, Result: series})
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, series, decoded.Result)
	})

	t.Run("UnnamedGetsPlaceholder", func(t *testing.T) {
		data, err := Encode(ExecuteResult{Success: true, Result: NamedSeries{Values: []any{1.0}}})
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, DefaultSeriesName, raw["series_name"])

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, NamedSeries{Name: DefaultSeriesName, Values: []any{1.0}}, decoded.Result)
	})
}

func TestArrayRoundTrip(t *testing.T) {
	t.Run("Flat", func(t *testing.T) {
		arr := NumericArray{Elems: []any{1.0, 2.0, 3.0}}

		data, err := Encode(ExecuteResult{Success: true, Result: arr})
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, arr, decoded.Result)
	})

	t.Run("NestedShapePreserved", func(t *testing.T) {
		arr := NumericArray{Elems: []any{
			[]any{1.0, 2.0},
			[]any{3.0, 4.0},
		}}

		data, err := Encode(ExecuteResult{Success: true, Result: arr})
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, arr, decoded.Result)
	})
}

func TestOtherFallback(t *testing.T) {
	data, err := Encode(ExecuteResult{Success: true, Result: Other{Text: "6"}})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "other", raw["result_type"])
	assert.Equal(t, "6", raw["result"])

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Other{Text: "6"}, decoded.Result)
}

func TestFigureCarriage(t *testing.T) {
	figure := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0x7f}

	data, err := Encode(ExecuteResult{Success: true, Figure: figure})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, true, raw["has_figure"])
	assert.NotNil(t, raw["figure_data"])

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, figure, decoded.Figure, "figure bytes must round-trip bit-exact")
	assert.Nil(t, decoded.Result)
}

func TestNoResultPayloadShape(t *testing.T) {
	data, err := Encode(ExecuteResult{Success: false, Output: "partial", Error: "boom"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	_, hasType := raw["result_type"]
	assert.False(t, hasType, "result_type must be absent without a result")
	_, hasResult := raw["result"]
	assert.False(t, hasResult)
	assert.Equal(t, false, raw["has_figure"])
	assert.Nil(t, raw["figure_data"], "figure_data is an explicit null")

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.False(t, decoded.Success)
	assert.Equal(t, "partial", decoded.Output)
	assert.Equal(t, "boom", decoded.Error)
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"NotJSON", "{nope"},
		{"UnknownResultType", `{"success":true,"output":"","error":"","result_type":"tensor","result":"x","has_figure":false,"figure_data":null}`},
		{"BadFigureBase64", `{"success":true,"output":"","error":"","has_figure":true,"figure_data":"!!!"}`},
		{"BadTableBody", `{"success":true,"output":"","error":"","result_type":"dataframe","result":"oops","has_figure":false,"figure_data":null}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data))
			require.Error(t, err)
		})
	}
}

func TestCSVStaging(t *testing.T) {
	table := Table{
		Columns: []string{"a", "b"},
		Rows: [][]any{
			{1.0, 4.0},
			{2.0, 5.0},
			{3.0, 6.0},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestCSVStagingMixedTypes(t *testing.T) {
	table := Table{
		Columns: []string{"city", "pop"},
		Rows: [][]any{
			{"oslo", 709037.0},
			{"bergen", 291940.0},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestCSVRejectsRaggedRows(t *testing.T) {
	table := Table{Columns: []string{"a", "b"}, Rows: [][]any{{1.0}}}

	var buf bytes.Buffer
	err := WriteCSV(&buf, table)
	require.Error(t, err)
}
