package render

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Graph names one kind of small-multiple chart.
type Graph string

const (
	GraphFreq             Graph = "freq"
	GraphRt               Graph = "r_t"
	GraphStackedIncidence Graph = "stackedIncidence"
	GraphStackedCases     Graph = "stackedCases"
	GraphGrowthAdvantage  Graph = "growthAdvantage"
)

var (
	// ErrUnknownGraph is returned for a graph name that is not drawable.
	ErrUnknownGraph = errors.New("unknown graph")
	// ErrNoData is returned when a location has nothing drawable for a graph.
	ErrNoData = errors.New("no data to draw")
)

// Graphs lists every graph in display order.
func Graphs() []Graph {
	return []Graph{GraphFreq, GraphRt, GraphStackedIncidence, GraphStackedCases, GraphGrowthAdvantage}
}

// ParseGraph validates a graph name.
func ParseGraph(s string) (Graph, error) {
	for _, g := range Graphs() {
		if string(g) == s {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGraph, s)
}

// Title is the human-readable graph heading.
func (g Graph) Title() string {
	switch g {
	case GraphFreq:
		return "Frequency"
	case GraphRt:
		return "Variant Rt"
	case GraphStackedIncidence:
		return "Estimated cases"
	case GraphStackedCases:
		return "Observed cases"
	case GraphGrowthAdvantage:
		return "Growth advantage"
	default:
		return string(g)
	}
}

// Size is an output image size in pixels.
type Size struct {
	Width  int
	Height int
}

// DefaultSize is the size of a single small multiple.
var DefaultSize = Size{Width: 300, Height: 225}

// Resolution is a named panel width. Columns scale with the width so each
// small multiple stays roughly the same size.
type Resolution struct {
	Name    string
	Width   int
	Columns int
}

// Resolutions lists the panel widths the static figures are built at.
func Resolutions() []Resolution {
	return []Resolution{
		{Name: "small", Width: 720, Columns: 2},
		{Name: "medium", Width: 1000, Columns: 3},
		{Name: "large", Width: 1300, Columns: 4},
		{Name: "xlarge", Width: 1550, Columns: 5},
	}
}

// ParseResolution looks up a resolution by name.
func ParseResolution(name string) (Resolution, error) {
	for _, r := range Resolutions() {
		if r.Name == name {
			return r, nil
		}
	}
	return Resolution{}, fmt.Errorf("unknown resolution %q", name)
}

// drawable reports whether loc has anything to draw for g. Stacked graphs
// need every variant's series to be non-empty.
func drawable(data *domain.ModelData, loc string, g Graph) bool {
	switch g {
	case GraphStackedIncidence, GraphStackedCases:
		stacks := stackedSeries(data, g)
		if stacks == nil {
			return false
		}
		byVariant := stacks[loc]
		if len(data.Variants) == 0 {
			return false
		}
		for _, v := range data.Variants {
			if len(byVariant[v]) == 0 {
				return false
			}
		}
		return true
	case GraphGrowthAdvantage:
		return len(data.GrowthAdvantage[loc]) > 0
	default:
		for _, pts := range data.Points[loc] {
			for _, p := range pts {
				if value(p, g).OK {
					return true
				}
			}
		}
		return false
	}
}

func stackedSeries(data *domain.ModelData, g Graph) map[string]map[string][]domain.StackPoint {
	if g == GraphStackedCases {
		return data.StackedCases
	}
	return data.StackedIncidence
}

func value(p domain.Point, g Graph) domain.Float {
	switch g {
	case GraphFreq:
		return p.Freq
	case GraphRt:
		return p.RT
	default:
		return domain.Float{}
	}
}

// yMax is the upper bound of the y domain for a location.
func yMax(data *domain.ModelData, loc string, g Graph) float64 {
	var vals []float64
	switch g {
	case GraphFreq:
		return 1
	case GraphRt:
		for _, pts := range data.Points[loc] {
			for _, p := range pts {
				if p.RT.OK {
					vals = append(vals, p.RT.V)
				}
			}
		}
		if len(vals) == 0 {
			return 3
		}
		return math.Max(3, floats.Max(vals))
	case GraphStackedIncidence, GraphStackedCases:
		for _, series := range stackedSeries(data, g)[loc] {
			for _, sp := range series {
				vals = append(vals, float64(sp.Top))
			}
		}
	case GraphGrowthAdvantage:
		for _, ga := range data.GrowthAdvantage[loc] {
			if ga.OK {
				vals = append(vals, ga.V)
			}
		}
		if len(vals) == 0 {
			return 2
		}
		return math.Max(2, floats.Max(vals)*1.1)
	}
	if len(vals) == 0 {
		return 1
	}
	return math.Max(1, floats.Max(vals))
}

// monthStarts returns the date indices that fall on the first of a month,
// with their short month label.
func monthStarts(dates []string) (idx []int, labels []string) {
	for i, d := range dates {
		t, err := time.Parse(time.DateOnly, d)
		if err != nil || t.Day() != 1 {
			continue
		}
		idx = append(idx, i)
		labels = append(labels, t.Format("Jan"))
	}
	return idx, labels
}
