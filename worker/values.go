package worker

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"github.com/isdmx/databox/codec"
)

// tableValue exposes the staged dataset to scripts as a read-only table.
// Indexing by column name yields a seriesValue; the value also carries
// the classification back to codec.Table when bound as the result.
type tableValue struct {
	table codec.Table
}

var (
	_ starlark.Value    = (*tableValue)(nil)
	_ starlark.Mapping  = (*tableValue)(nil)
	_ starlark.HasAttrs = (*tableValue)(nil)
)

func (t *tableValue) String() string {
	return fmt.Sprintf("<table %d rows x %d cols [%s]>",
		len(t.table.Rows), len(t.table.Columns), strings.Join(t.table.Columns, ", "))
}

func (t *tableValue) Type() string          { return "table" }
func (t *tableValue) Freeze()               {}
func (t *tableValue) Truth() starlark.Bool  { return len(t.table.Rows) > 0 }
func (t *tableValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: table") }

// Get implements df["col"] indexing, returning the column as a series.
func (t *tableValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("table index must be a column name, got %s", k.Type())
	}

	for j, col := range t.table.Columns {
		if col != name {
			continue
		}
		vals := make([]any, len(t.table.Rows))
		for i, row := range t.table.Rows {
			vals[i] = row[j]
		}
		return &seriesValue{name: name, vals: vals}, true, nil
	}
	return nil, false, nil
}

func (t *tableValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		cols := make([]starlark.Value, len(t.table.Columns))
		for i, c := range t.table.Columns {
			cols[i] = starlark.String(c)
		}
		return starlark.NewList(cols), nil
	case "nrows":
		return starlark.MakeInt(len(t.table.Rows)), nil
	case "head":
		return starlark.NewBuiltin("head", t.head), nil
	}
	return nil, nil
}

func (t *tableValue) AttrNames() []string {
	return []string{"columns", "head", "nrows"}
}

func (t *tableValue) head(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs("head", args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if n > len(t.table.Rows) {
		n = len(t.table.Rows)
	}
	return &tableValue{table: codec.Table{
		Columns: t.table.Columns,
		Rows:    t.table.Rows[:n],
	}}, nil
}

// seriesValue is an ordered column of cells with an optional name.
type seriesValue struct {
	name string
	vals []any
}

var (
	_ starlark.Value     = (*seriesValue)(nil)
	_ starlark.Sequence  = (*seriesValue)(nil)
	_ starlark.Indexable = (*seriesValue)(nil)
	_ starlark.HasAttrs  = (*seriesValue)(nil)
)

func (s *seriesValue) String() string {
	parts := make([]string, len(s.vals))
	for i, v := range s.vals {
		parts[i] = cellToStarlark(v).String()
	}
	return fmt.Sprintf("<series %q [%s]>", s.name, strings.Join(parts, ", "))
}

func (s *seriesValue) Type() string          { return "series" }
func (s *seriesValue) Freeze()               {}
func (s *seriesValue) Truth() starlark.Bool  { return len(s.vals) > 0 }
func (s *seriesValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: series") }
func (s *seriesValue) Len() int              { return len(s.vals) }

func (s *seriesValue) Index(i int) starlark.Value {
	return cellToStarlark(s.vals[i])
}

func (s *seriesValue) Iterate() starlark.Iterator {
	return &seriesIterator{series: s}
}

func (s *seriesValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(s.name), nil
	case "sum":
		return starlark.NewBuiltin("sum", s.reduce(func(acc, x float64) float64 { return acc + x }, false)), nil
	case "mean":
		return starlark.NewBuiltin("mean", s.reduce(func(acc, x float64) float64 { return acc + x }, true)), nil
	}
	return nil, nil
}

func (s *seriesValue) AttrNames() []string {
	return []string{"mean", "name", "sum"}
}

func (s *seriesValue) reduce(step func(acc, x float64) float64, average bool) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
			return nil, err
		}
		if average && len(s.vals) == 0 {
			return nil, fmt.Errorf("%s: empty series", b.Name())
		}
		var acc float64
		for i, v := range s.vals {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("%s: element %d is not numeric", b.Name(), i)
			}
			acc = step(acc, f)
		}
		if average {
			acc /= float64(len(s.vals))
		}
		return starlark.Float(acc), nil
	}
}

type seriesIterator struct {
	series *seriesValue
	next   int
}

func (it *seriesIterator) Next(p *starlark.Value) bool {
	if it.next >= len(it.series.vals) {
		return false
	}
	*p = cellToStarlark(it.series.vals[it.next])
	it.next++
	return true
}

func (it *seriesIterator) Done() {}

// cellToStarlark maps a table cell (float64 or string) to a script value.
func cellToStarlark(cell any) starlark.Value {
	switch c := cell.(type) {
	case float64:
		return starlark.Float(c)
	case string:
		return starlark.String(c)
	default:
		return starlark.String(fmt.Sprint(c))
	}
}
