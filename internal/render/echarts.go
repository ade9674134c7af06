package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/nextstrain/forecasts-ncov/internal/domain"
)

// gap is how echarts marks a missing value in a category series.
const gap = "-"

// HTML writes an interactive page with one chart per drawable location.
func HTML(w io.Writer, data *domain.ModelData, model string, g Graph) error {
	if _, err := ParseGraph(string(g)); err != nil {
		return err
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s: %s", model, g.Title())

	n := 0
	for _, loc := range data.Locations {
		if !drawable(data, loc, g) {
			continue
		}
		page.AddCharts(locationChart(data, loc, g))
		n++
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNoData, g)
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render %s page: %w", g, err)
	}
	return nil
}

func locationChart(data *domain.ModelData, loc string, g Graph) components.Charter {
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: "480px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: loc, Subtitle: g.Title()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: yMax(data, loc, g)}),
	}

	switch g {
	case GraphFreq:
		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(global...)
		scatter.SetXAxis(data.Dates)
		for _, v := range data.Variants {
			pts := data.Points[loc][v]
			series := make([]opts.ScatterData, len(pts))
			for i, p := range pts {
				series[i] = opts.ScatterData{Value: seriesValue(p.Freq)}
			}
			scatter.AddSeries(data.DisplayNames[v], series,
				charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: data.Color(v)}))
		}
		return scatter

	case GraphRt:
		line := charts.NewLine()
		line.SetGlobalOptions(global...)
		line.SetXAxis(data.Dates)
		for _, v := range data.Variants {
			pts := data.Points[loc][v]
			series := make([]opts.LineData, len(pts))
			for i, p := range pts {
				series[i] = opts.LineData{Value: seriesValue(p.RT)}
			}
			line.AddSeries(data.DisplayNames[v], series,
				charts.WithItemStyleOpts(opts.ItemStyle{Color: data.Color(v)}))
		}
		return line

	case GraphStackedIncidence, GraphStackedCases:
		bar := charts.NewBar()
		bar.SetGlobalOptions(global...)
		bar.SetXAxis(data.Dates)
		stacks := stackedSeries(data, g)[loc]
		for _, v := range data.Variants {
			byDate := make(map[string]int64, len(stacks[v]))
			for _, sp := range stacks[v] {
				byDate[sp.Date] = sp.Top - sp.Base
			}
			series := make([]opts.BarData, len(data.Dates))
			for i, d := range data.Dates {
				if h, ok := byDate[d]; ok {
					series[i] = opts.BarData{Value: h}
				} else {
					series[i] = opts.BarData{Value: gap}
				}
			}
			bar.AddSeries(data.DisplayNames[v], series,
				charts.WithBarChartOpts(opts.BarChart{Stack: "total"}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: data.Color(v)}))
		}
		return bar

	default:
		bar := charts.NewBar()
		bar.SetGlobalOptions(global...)
		names := make([]string, len(data.Variants))
		series := make([]opts.BarData, len(data.Variants))
		for i, v := range data.Variants {
			names[i] = data.DisplayNames[v]
			series[i] = opts.BarData{
				Value:     seriesValue(data.GrowthAdvantage[loc][v]),
				ItemStyle: &opts.ItemStyle{Color: data.Color(v)},
			}
		}
		bar.SetXAxis(names).AddSeries("growth advantage", series)
		return bar
	}
}

func seriesValue(f domain.Float) any {
	if !f.OK {
		return gap
	}
	return f.V
}
