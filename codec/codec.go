package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Kind identifies the concrete variant of a ResultValue on the wire.
type Kind string

// Result kind tags as they appear in the response payload.
const (
	KindTable  Kind = "dataframe"
	KindSeries Kind = "series"
	KindArray  Kind = "array"
	KindOther  Kind = "other"
)

// DefaultSeriesName is used when a NamedSeries has no name of its own.
const DefaultSeriesName = "series"

// ResultValue is the closed union of result variants a script can produce.
// Cells and values are float64 or string; nested array elements are
// float64 or []any.
type ResultValue interface {
	Kind() Kind
}

// Table is a rows-by-named-columns value. Column order and row order are
// both significant and preserved by the codec.
type Table struct {
	Columns []string
	Rows    [][]any
}

func (Table) Kind() Kind { return KindTable }

// NamedSeries is an ordered one-dimensional value with an optional name.
type NamedSeries struct {
	Name   string
	Values []any
}

func (NamedSeries) Kind() Kind { return KindSeries }

// NumericArray is a flat or nested numeric sequence. Elements are float64
// or []any holding further elements; shape is preserved.
type NumericArray struct {
	Elems []any
}

func (NumericArray) Kind() Kind { return KindArray }

// Other is the lossy textual fallback for values of unrecognized shape.
type Other struct {
	Text string
}

func (Other) Kind() Kind { return KindOther }

// ExecuteResult is the outcome of one script execution.
type ExecuteResult struct {
	Success bool
	Output  string
	Error   string
	Result  ResultValue // nil when the script bound no result
	Figure  []byte      // raw PNG bytes, nil when no chart was drawn
}

// payload is the JSON envelope written to the response file.
type payload struct {
	Success    bool            `json:"success"`
	Output     string          `json:"output"`
	Error      string          `json:"error"`
	ResultType Kind            `json:"result_type,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	SeriesName string          `json:"series_name,omitempty"`
	HasFigure  bool            `json:"has_figure"`
	FigureData *string         `json:"figure_data"`
}

// tablePayload is the split orientation for tables: ordered column names
// plus row-major cell values.
type tablePayload struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// Encode serializes an ExecuteResult into the response payload.
func Encode(res ExecuteResult) ([]byte, error) {
	p := payload{
		Success:   res.Success,
		Output:    res.Output,
		Error:     res.Error,
		HasFigure: len(res.Figure) > 0,
	}

	if len(res.Figure) > 0 {
		b64 := base64.StdEncoding.EncodeToString(res.Figure)
		p.FigureData = &b64
	}

	if res.Result != nil {
		p.ResultType = res.Result.Kind()

		var body any
		switch v := res.Result.(type) {
		case Table:
			body = tablePayload{Columns: v.Columns, Data: v.Rows}
		case NamedSeries:
			name := v.Name
			if name == "" {
				name = DefaultSeriesName
			}
			p.SeriesName = name
			body = v.Values
		case NumericArray:
			body = v.Elems
		case Other:
			body = v.Text
		default:
			return nil, fmt.Errorf("unknown result kind: %s", res.Result.Kind())
		}

		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s result: %w", p.ResultType, err)
		}
		p.Result = raw
	}

	return json.Marshal(p)
}

// Decode parses a response payload back into an ExecuteResult. It is the
// exact inverse of Encode per result kind.
func Decode(data []byte) (ExecuteResult, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return ExecuteResult{}, fmt.Errorf("malformed response payload: %w", err)
	}

	res := ExecuteResult{
		Success: p.Success,
		Output:  p.Output,
		Error:   p.Error,
	}

	if p.FigureData != nil {
		figure, err := base64.StdEncoding.DecodeString(*p.FigureData)
		if err != nil {
			return ExecuteResult{}, fmt.Errorf("malformed figure data: %w", err)
		}
		res.Figure = figure
	}

	if p.ResultType == "" {
		return res, nil
	}

	switch p.ResultType {
	case KindTable:
		var tp tablePayload
		if err := json.Unmarshal(p.Result, &tp); err != nil {
			return ExecuteResult{}, fmt.Errorf("malformed dataframe result: %w", err)
		}
		res.Result = Table{Columns: tp.Columns, Rows: tp.Data}
	case KindSeries:
		var values []any
		if err := json.Unmarshal(p.Result, &values); err != nil {
			return ExecuteResult{}, fmt.Errorf("malformed series result: %w", err)
		}
		name := p.SeriesName
		if name == "" {
			name = DefaultSeriesName
		}
		res.Result = NamedSeries{Name: name, Values: values}
	case KindArray:
		var elems []any
		if err := json.Unmarshal(p.Result, &elems); err != nil {
			return ExecuteResult{}, fmt.Errorf("malformed array result: %w", err)
		}
		res.Result = NumericArray{Elems: elems}
	case KindOther:
		var text string
		if err := json.Unmarshal(p.Result, &text); err != nil {
			return ExecuteResult{}, fmt.Errorf("malformed fallback result: %w", err)
		}
		res.Result = Other{Text: text}
	default:
		return ExecuteResult{}, fmt.Errorf("unknown result_type: %s", p.ResultType)
	}

	return res, nil
}
