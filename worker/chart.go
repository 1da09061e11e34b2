package worker

import (
	"bytes"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Raster dimensions for rendered charts.
const (
	chartWidth  = 6 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// chartState is the per-interpreter plotting surface. Scripts draw onto
// it through the predeclared chart module; after each request the runtime
// rasterizes it if anything was drawn and resets it.
type chartState struct {
	plot     *plot.Plot
	elements int
}

// ensure lazily allocates the plot on first draw.
func (c *chartState) ensure() *plot.Plot {
	if c.plot == nil {
		c.plot = plot.New()
	}
	return c.plot
}

// active reports whether the surface has drawn elements.
func (c *chartState) active() bool {
	return c.elements > 0
}

// reset discards all drawn state.
func (c *chartState) reset() {
	c.plot = nil
	c.elements = 0
}

// render normalizes fonts and rasterizes the surface to PNG bytes.
func (c *chartState) render() ([]byte, error) {
	p := c.ensure()

	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.TextStyle.Font.Size = vg.Points(11)
	p.Y.Label.TextStyle.Font.Size = vg.Points(11)
	p.X.Tick.Label.Font.Size = vg.Points(9)
	p.Y.Tick.Label.Font.Size = vg.Points(9)

	canvas := vgimg.New(chartWidth, chartHeight)
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: canvas}
	if _, err := png.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to rasterize chart: %w", err)
	}
	return buf.Bytes(), nil
}

// module builds the predeclared chart binding for scripts.
func (c *chartState) module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "chart",
		Members: starlark.StringDict{
			"line":    starlark.NewBuiltin("chart.line", c.line),
			"scatter": starlark.NewBuiltin("chart.scatter", c.scatter),
			"bar":     starlark.NewBuiltin("chart.bar", c.bar),
			"title":   starlark.NewBuiltin("chart.title", c.title),
			"xlabel":  starlark.NewBuiltin("chart.xlabel", c.xlabel),
			"ylabel":  starlark.NewBuiltin("chart.ylabel", c.ylabel),
		},
	}
}

func (c *chartState) line(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var yv, xv starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "y", &yv, "x?", &xv); err != nil {
		return nil, err
	}

	xys, err := toXYs(b.Name(), xv, yv)
	if err != nil {
		return nil, err
	}

	l, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	c.ensure().Add(l)
	c.elements++
	return starlark.None, nil
}

func (c *chartState) scatter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var xv, yv starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &xv, "y", &yv); err != nil {
		return nil, err
	}

	xys, err := toXYs(b.Name(), xv, yv)
	if err != nil {
		return nil, err
	}

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	c.ensure().Add(s)
	c.elements++
	return starlark.None, nil
}

func (c *chartState) bar(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var vv starlark.Value
	var labels *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &vv, "labels?", &labels); err != nil {
		return nil, err
	}

	vals, err := floatSeq(b.Name(), vv)
	if err != nil {
		return nil, err
	}

	bars, err := plotter.NewBarChart(plotter.Values(vals), vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	p := c.ensure()
	p.Add(bars)

	if labels != nil {
		if labels.Len() != len(vals) {
			return nil, fmt.Errorf("%s: %d labels for %d values", b.Name(), labels.Len(), len(vals))
		}
		names := make([]string, labels.Len())
		for i := 0; i < labels.Len(); i++ {
			name, ok := starlark.AsString(labels.Index(i))
			if !ok {
				return nil, fmt.Errorf("%s: label %d is not a string", b.Name(), i)
			}
			names[i] = name
		}
		p.NominalX(names...)
	}

	c.elements++
	return starlark.None, nil
}

func (c *chartState) title(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return c.setText(b, args, kwargs, func(p *plot.Plot, s string) { p.Title.Text = s })
}

func (c *chartState) xlabel(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return c.setText(b, args, kwargs, func(p *plot.Plot, s string) { p.X.Label.Text = s })
}

func (c *chartState) ylabel(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return c.setText(b, args, kwargs, func(p *plot.Plot, s string) { p.Y.Label.Text = s })
}

func (c *chartState) setText(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, apply func(*plot.Plot, string)) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	apply(c.ensure(), text)
	return starlark.None, nil
}

// floatSeq converts any iterable of numbers to a float slice.
func floatSeq(fn string, v starlark.Value) ([]float64, error) {
	iter := starlark.Iterate(v)
	if iter == nil {
		return nil, fmt.Errorf("%s: %s is not iterable", fn, v.Type())
	}
	defer iter.Done()

	var out []float64
	var x starlark.Value
	for iter.Next(&x) {
		f, ok := starlark.AsFloat(x)
		if !ok {
			return nil, fmt.Errorf("%s: element %d is not numeric", fn, len(out))
		}
		out = append(out, f)
	}
	return out, nil
}

// toXYs pairs x and y sequences into plot points. A nil x produces the
// index sequence 0..n-1.
func toXYs(fn string, xv, yv starlark.Value) (plotter.XYs, error) {
	ys, err := floatSeq(fn, yv)
	if err != nil {
		return nil, err
	}

	var xs []float64
	if xv == nil || xv == starlark.None {
		xs = make([]float64, len(ys))
		for i := range xs {
			xs[i] = float64(i)
		}
	} else {
		if xs, err = floatSeq(fn, xv); err != nil {
			return nil, err
		}
		if len(xs) != len(ys) {
			return nil, fmt.Errorf("%s: x has %d points, y has %d", fn, len(xs), len(ys))
		}
	}

	xys := make(plotter.XYs, len(ys))
	for i := range ys {
		xys[i].X = xs[i]
		xys[i].Y = ys[i]
	}
	return xys, nil
}
