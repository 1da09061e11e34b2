package worker

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/isdmx/databox/codec"
)

// DatasetBinding is the fixed name under which the staged dataset is
// exposed to scripts.
const DatasetBinding = "df"

// ResultBinding is the designated result variable. It is consumed after
// each request so a later script that binds nothing reports no result.
const ResultBinding = "result"

// scriptOptions mirror the reference runtime's scripting dialect:
// top-level control flow, reassignment, and recursion are all allowed.
var scriptOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Interp executes scripts against a persistent context holding the
// dataset binding and the analysis allow-list. Bindings created by one
// script are visible to the next.
type Interp struct {
	logger *zap.Logger
	env    starlark.StringDict
	chart  *chartState
}

// NewInterp builds an interpreter over a dataset snapshot.
func NewInterp(logger *zap.Logger, table codec.Table) *Interp {
	chart := &chartState{}
	frame := &tableValue{table: table}

	env := starlark.StringDict{
		DatasetBinding: frame,
		"chart":        chart.module(),
		"sum":          starlark.NewBuiltin("sum", sumBuiltin),
		"mean":         starlark.NewBuiltin("mean", meanBuiltin),
		"col":          starlark.NewBuiltin("col", colBuiltin(frame)),
	}

	return &Interp{logger: logger, env: env, chart: chart}
}

// Run executes one script and produces its structured outcome. Script
// failures are captured into the result, never returned as errors.
func (i *Interp) Run(code string) codec.ExecuteResult {
	var out bytes.Buffer
	thread := &starlark.Thread{
		Name: "exec",
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(&out, msg)
		},
	}

	globals, err := starlark.ExecFileOptions(scriptOptions, thread, "script.star", code, i.env)

	// Successful bindings persist for subsequent requests; on failure the
	// partial globals are discarded.
	if err == nil {
		for k, v := range globals {
			i.env[k] = v
		}
	}

	res := codec.ExecuteResult{
		Success: err == nil,
		Output:  out.String(),
	}

	if err != nil {
		i.chart.reset()
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			res.Error = evalErr.Backtrace()
		} else {
			res.Error = err.Error()
		}
		i.logger.Debug("script failed", zap.String("error", res.Error))
		return res
	}

	if v, ok := i.env[ResultBinding]; ok {
		delete(i.env, ResultBinding)
		res.Result = classify(v)
	}

	if i.chart.active() {
		figure, renderErr := i.chart.render()
		if renderErr != nil {
			i.logger.Warn("chart rasterization failed", zap.Error(renderErr))
			res.Success = false
			res.Error = renderErr.Error()
		} else {
			res.Figure = figure
		}
	}
	i.chart.reset()

	return res
}

// classify maps a script value onto the closed result union. Values of
// unrecognized shape always fall back to the lossy textual variant.
func classify(v starlark.Value) codec.ResultValue {
	switch x := v.(type) {
	case *tableValue:
		return x.table
	case *seriesValue:
		return codec.NamedSeries{Name: x.name, Values: x.vals}
	case *starlark.List, starlark.Tuple:
		if elems, ok := numericElems(v); ok {
			return codec.NumericArray{Elems: elems}
		}
	}
	return codec.Other{Text: renderScalar(v)}
}

// numericElems flattens an iterable into nested float64 elements,
// preserving shape. It fails on any non-numeric, non-sequence element.
func numericElems(v starlark.Value) ([]any, bool) {
	iter := starlark.Iterate(v)
	if iter == nil {
		return nil, false
	}
	defer iter.Done()

	elems := []any{}
	var x starlark.Value
	for iter.Next(&x) {
		switch x.(type) {
		case *starlark.List, starlark.Tuple:
			nested, ok := numericElems(x)
			if !ok {
				return nil, false
			}
			elems = append(elems, nested)
		default:
			f, ok := starlark.AsFloat(x)
			if !ok {
				return nil, false
			}
			elems = append(elems, f)
		}
	}
	return elems, true
}

// renderScalar is the best-effort text rendering for the fallback
// variant. Floats with integral values render without a fraction and
// strings render unquoted, matching how an end user would write them.
func renderScalar(v starlark.Value) string {
	switch x := v.(type) {
	case starlark.Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case starlark.String:
		return string(x)
	default:
		return v.String()
	}
}

func sumBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &v); err != nil {
		return nil, err
	}
	vals, err := floatSeq(b.Name(), v)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, f := range vals {
		total += f
	}
	return starlark.Float(total), nil
}

// colBuiltin resolves a dataset column by name, as a shorthand for
// indexing the dataset binding.
func colBuiltin(frame *tableValue) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
			return nil, err
		}
		v, found, err := frame.Get(starlark.String(name))
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%s: no column named %q", b.Name(), name)
		}
		return v, nil
	}
}

func meanBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &v); err != nil {
		return nil, err
	}
	vals, err := floatSeq(b.Name(), v)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: empty sequence", b.Name())
	}
	var total float64
	for _, f := range vals {
		total += f
	}
	return starlark.Float(total / float64(len(vals))), nil
}
