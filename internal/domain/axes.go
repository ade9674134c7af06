package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrSchema marks a payload that violates the input contract. Transform
// returns no partial output alongside it.
var ErrSchema = errors.New("model payload schema violation")

const dateLayout = "2006-01-02"

// Axes holds the declared axis domains and their value → position lookups.
// Building it once keeps record placement constant-time per row.
type Axes struct {
	Locations []string
	Variants  []string
	Dates     []string

	locationIdx map[string]int
	variantIdx  map[string]int
	dateIdx     map[string]int
}

// NewAxes validates metadata and indexes its axes. Empty axes are valid; a
// missing axis, an unparsable date, or a repeated value is not.
func NewAxes(meta *RawMetadata) (*Axes, error) {
	if meta == nil {
		return nil, fmt.Errorf("%w: missing metadata", ErrSchema)
	}
	switch {
	case meta.Location == nil:
		return nil, fmt.Errorf("%w: missing metadata.location", ErrSchema)
	case meta.Variants == nil:
		return nil, fmt.Errorf("%w: missing metadata.variants", ErrSchema)
	case meta.Dates == nil:
		return nil, fmt.Errorf("%w: missing metadata.dates", ErrSchema)
	}

	locIdx, err := indexAxis("location", meta.Location)
	if err != nil {
		return nil, err
	}
	varIdx, err := indexAxis("variants", meta.Variants)
	if err != nil {
		return nil, err
	}
	dateIdx, err := indexAxis("dates", meta.Dates)
	if err != nil {
		return nil, err
	}
	for _, d := range meta.Dates {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return nil, fmt.Errorf("%w: metadata.dates: %q is not YYYY-MM-DD", ErrSchema, d)
		}
	}

	return &Axes{
		Locations:   meta.Location,
		Variants:    meta.Variants,
		Dates:       meta.Dates,
		locationIdx: locIdx,
		variantIdx:  varIdx,
		dateIdx:     dateIdx,
	}, nil
}

func indexAxis(name string, values []string) (map[string]int, error) {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		if _, dup := idx[v]; dup {
			return nil, fmt.Errorf("%w: metadata.%s: duplicate value %q", ErrSchema, name, v)
		}
		idx[v] = i
	}
	return idx, nil
}

// DateIndex returns the position of date on the date axis.
func (a *Axes) DateIndex(date string) (int, bool) {
	i, ok := a.dateIdx[date]
	return i, ok
}

// HasLocation reports whether loc is declared.
func (a *Axes) HasLocation(loc string) bool {
	_, ok := a.locationIdx[loc]
	return ok
}

// HasVariant reports whether variant is declared.
func (a *Axes) HasVariant(variant string) bool {
	_, ok := a.variantIdx[variant]
	return ok
}

// Grid is the positional structure the phases operate on:
// Grid[location][variant][dateIndex].
type Grid map[string]map[string][]Point

// NewGrid builds an all-absent grid with one dated point per axis cell.
func NewGrid(a *Axes) Grid {
	g := make(Grid, len(a.Locations))
	for _, loc := range a.Locations {
		byVariant := make(map[string][]Point, len(a.Variants))
		for _, v := range a.Variants {
			pts := make([]Point, len(a.Dates))
			for i, d := range a.Dates {
				pts[i].Date = d
			}
			byVariant[v] = pts
		}
		g[loc] = byVariant
	}
	return g
}

// Clone returns a deep copy of g.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for loc, byVariant := range g {
		cp := make(map[string][]Point, len(byVariant))
		for v, pts := range byVariant {
			cp[v] = append([]Point(nil), pts...)
		}
		out[loc] = cp
	}
	return out
}
