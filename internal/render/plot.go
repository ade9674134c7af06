package render

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// dpi matches the vgimg default so pixel sizes map one to one.
const dpi = 96

var (
	fallbackColor  = color.NRGBA{R: 0x59, G: 0x59, B: 0x59, A: 0xff}
	referenceColor = color.NRGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}
)

func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / dpi
}

// PNG draws one small multiple for a location.
func PNG(data *domain.ModelData, location string, g Graph, size Size) ([]byte, error) {
	if _, ok := data.Points[location]; !ok {
		return nil, fmt.Errorf("%w: unknown location %q", ErrNoData, location)
	}
	if !drawable(data, location, g) {
		return nil, fmt.Errorf("%w: %s for %s", ErrNoData, g, location)
	}
	p, err := newPlot(data, location, g, true)
	if err != nil {
		return nil, err
	}

	wt, err := p.WriterTo(pixels(size.Width), pixels(size.Height), "png")
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", g, location, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", g, location, err)
	}
	return buf.Bytes(), nil
}

func newPlot(data *domain.ModelData, loc string, g Graph, legend bool) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = loc
	p.Y.Min = 0
	p.Y.Max = yMax(data, loc, g)
	p.Legend.Top = true
	p.Legend.Left = true

	var err error
	switch g {
	case GraphFreq:
		setDateAxis(p, data.Dates)
		err = addFreq(p, data, loc, legend)
	case GraphRt:
		setDateAxis(p, data.Dates)
		err = addRt(p, data, loc, legend)
	case GraphStackedIncidence, GraphStackedCases:
		setDateAxis(p, data.Dates)
		err = addStack(p, data, loc, g, legend)
	case GraphGrowthAdvantage:
		err = addGrowthAdvantage(p, data, loc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGraph, g)
	}
	if err != nil {
		return nil, fmt.Errorf("draw %s/%s: %w", g, loc, err)
	}
	return p, nil
}

// setDateAxis indexes x by date position and labels only the first day of
// each month.
func setDateAxis(p *plot.Plot, dates []string) {
	p.X.Min = 0
	p.X.Max = float64(max(len(dates)-1, 1))
	idx, labels := monthStarts(dates)
	ticks := make([]plot.Tick, len(idx))
	for i := range idx {
		ticks[i] = plot.Tick{Value: float64(idx[i]), Label: labels[i]}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
}

func addFreq(p *plot.Plot, data *domain.ModelData, loc string, legend bool) error {
	for _, v := range data.Variants {
		var xys plotter.XYs
		for i, pt := range data.Points[loc][v] {
			if pt.Freq.OK {
				xys = append(xys, plotter.XY{X: float64(i), Y: pt.Freq.V})
			}
		}
		if len(xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = variantColor(data, v)
		s.GlyphStyle.Radius = vg.Points(1.5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		if legend {
			p.Legend.Add(data.DisplayNames[v], s)
		}
	}
	return nil
}

func addRt(p *plot.Plot, data *domain.ModelData, loc string, legend bool) error {
	ref, err := plotter.NewLine(plotter.XYs{{X: p.X.Min, Y: 1}, {X: p.X.Max, Y: 1}})
	if err != nil {
		return err
	}
	ref.LineStyle.Color = referenceColor
	ref.LineStyle.Width = vg.Points(1)
	ref.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(ref)

	for _, v := range data.Variants {
		col := variantColor(data, v)
		var first *plotter.Line
		for _, run := range presentRuns(data.Points[loc][v]) {
			l, err := plotter.NewLine(run)
			if err != nil {
				return err
			}
			l.LineStyle.Color = col
			l.LineStyle.Width = vg.Points(1.5)
			p.Add(l)
			if first == nil {
				first = l
			}
		}
		if legend && first != nil {
			p.Legend.Add(data.DisplayNames[v], first)
		}
	}
	return nil
}

// presentRuns splits a variant's R series into contiguous runs so that gaps
// are not bridged by a line.
func presentRuns(pts []domain.Point) []plotter.XYs {
	var runs []plotter.XYs
	var cur plotter.XYs
	for i, pt := range pts {
		if !pt.RT.OK {
			if len(cur) > 0 {
				runs = append(runs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(i), Y: pt.RT.V})
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

func addStack(p *plot.Plot, data *domain.ModelData, loc string, g Graph, legend bool) error {
	dateIdx := make(map[string]int, len(data.Dates))
	for i, d := range data.Dates {
		dateIdx[d] = i
	}
	stacks := stackedSeries(data, g)[loc]
	for _, v := range data.Variants {
		series := stacks[v]
		if len(series) == 0 {
			continue
		}
		xys := make(plotter.XYs, 0, 2*len(series))
		for _, sp := range series {
			xys = append(xys, plotter.XY{X: float64(dateIdx[sp.Date]), Y: float64(sp.Top)})
		}
		for i := len(series) - 1; i >= 0; i-- {
			sp := series[i]
			xys = append(xys, plotter.XY{X: float64(dateIdx[sp.Date]), Y: float64(sp.Base)})
		}
		poly, err := plotter.NewPolygon(xys)
		if err != nil {
			return err
		}
		poly.Color = variantColor(data, v)
		poly.LineStyle.Width = 0
		p.Add(poly)
		if legend {
			p.Legend.Add(data.DisplayNames[v], poly)
		}
	}
	return nil
}

func addGrowthAdvantage(p *plot.Plot, data *domain.ModelData, loc string) error {
	n := len(data.Variants)
	p.X.Min = -0.5
	p.X.Max = float64(n) - 0.5
	ticks := make([]plot.Tick, n)
	for i, v := range data.Variants {
		ticks[i] = plot.Tick{Value: float64(i), Label: data.DisplayNames[v]}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	ref, err := plotter.NewLine(plotter.XYs{{X: p.X.Min, Y: 1}, {X: p.X.Max, Y: 1}})
	if err != nil {
		return err
	}
	ref.LineStyle.Color = referenceColor
	ref.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(ref)

	ga := data.GrowthAdvantage[loc]
	for i, v := range data.Variants {
		adv, ok := ga[v]
		if !ok || !adv.OK {
			continue
		}
		s, err := plotter.NewScatter(plotter.XYs{{X: float64(i), Y: adv.V}})
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = variantColor(data, v)
		s.GlyphStyle.Radius = vg.Points(3)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
	}
	return nil
}

func variantColor(data *domain.ModelData, variant string) color.Color {
	return parseColor(data.Color(variant))
}

func parseColor(hex string) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return fallbackColor
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}
