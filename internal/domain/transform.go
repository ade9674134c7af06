package domain

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
)

// Options parameterizes Transform. The zero value uses DefaultRegistry, all
// consumed sites and no logging.
type Options struct {
	Registry *Registry
	// Sites restricts which sites are placed. Nil means all of freq, R,
	// I_smooth and ga.
	Sites  []string
	Logger *slog.Logger
}

// GrowthAdvantages maps location → variant → median growth advantage.
type GrowthAdvantages map[string]map[string]Float

// PlaceStats counts how records were handled during placement.
type PlaceStats struct {
	Placed  int
	Ignored int // non-median rows, unconsumed sites, null values
	Skipped int // undated growth-advantage rows for undeclared locations
}

// Transform converts a raw payload, and optional case counts, into ModelData.
// It is deterministic in its inputs and independent of record order.
func Transform(raw RawPayload, aux []CaseCount, opts Options) (*ModelData, error) {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	axes, err := NewAxes(raw.Metadata)
	if err != nil {
		return nil, err
	}
	if raw.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrSchema)
	}

	grid, ga, stats, err := Place(axes, raw.Data, opts.Sites)
	if err != nil {
		return nil, err
	}
	logger.Debug("placed model records",
		"records", len(raw.Data),
		"placed", stats.Placed,
		"ignored", stats.Ignored,
		"skipped", stats.Skipped,
	)

	stacked, excluded := StackIncidence(axes, grid)
	for _, loc := range axes.Locations {
		if dates := excluded[loc]; len(dates) > 0 {
			logger.Warn("I_smooth missing for some variants, excluding dates from stacked incidence",
				"location", loc,
				"dates", dates,
			)
		}
	}

	Censor(grid, FreqThreshold)

	var stackedCases map[string]map[string][]StackPoint
	if aux != nil {
		stackedCases = PartitionCases(axes, grid, IndexCaseCounts(aux))
	}

	if len(raw.Metadata.VariantColors) > 0 {
		registry = registry.WithColors(raw.Metadata.VariantColors)
	}
	colors, names, lineages, unknown := resolveStyles(registry, axes.Variants)
	if len(unknown) > 0 {
		logger.Warn("variants missing from colour registry, using \"other\" styling",
			"unknown", unknown,
			"known", registry.Variants(),
		)
	}

	return &ModelData{
		Locations:              axes.Locations,
		Variants:               axes.Variants,
		Dates:                  axes.Dates,
		Points:                 grid,
		StackedIncidence:       stacked,
		ExcludedIncidenceDates: excluded,
		StackedCases:           stackedCases,
		GrowthAdvantage:        ga,
		Colors:                 colors,
		DisplayNames:           names,
		Lineages:               lineages,
		UnknownVariants:        unknown,
		Updated:                raw.Metadata.Updated,
		Pivot:                  raw.Metadata.Pivot,
	}, nil
}

// Place writes every median record into a fresh grid via the axis lookups.
// Conflicting duplicate records are rejected because last-write-wins would
// depend on row order.
func Place(axes *Axes, records []RawRecord, sites []string) (Grid, GrowthAdvantages, PlaceStats, error) {
	grid := NewGrid(axes)
	ga := make(GrowthAdvantages, len(axes.Locations))
	for _, loc := range axes.Locations {
		ga[loc] = make(map[string]Float, len(axes.Variants))
	}

	var stats PlaceStats
	for n, rec := range records {
		if rec.PS != MedianPS || !consumes(sites, rec.Site) || !rec.Value.OK {
			stats.Ignored++
			continue
		}

		if rec.Site == SiteGrowthAdvantage {
			// Hierarchical runs add a pooled "hierarchical" location that is
			// not on the location axis.
			if !axes.HasLocation(rec.Location) {
				stats.Skipped++
				continue
			}
			if !axes.HasVariant(rec.Variant) {
				return nil, nil, stats, recordError(n, rec, "variant not in metadata.variants")
			}
			if prev, ok := ga[rec.Location][rec.Variant]; ok && prev.V != rec.Value.V {
				return nil, nil, stats, recordError(n, rec, "conflicting duplicate median record")
			}
			ga[rec.Location][rec.Variant] = rec.Value
			stats.Placed++
			continue
		}

		byVariant, ok := grid[rec.Location]
		if !ok {
			return nil, nil, stats, recordError(n, rec, "location not in metadata.location")
		}
		pts, ok := byVariant[rec.Variant]
		if !ok {
			return nil, nil, stats, recordError(n, rec, "variant not in metadata.variants")
		}
		i, ok := axes.DateIndex(rec.Date)
		if !ok {
			return nil, nil, stats, recordError(n, rec, "date not in metadata.dates")
		}

		p := &pts[i]
		switch rec.Site {
		case SiteFreq:
			if p.Freq.OK && p.Freq.V != rec.Value.V {
				return nil, nil, stats, recordError(n, rec, "conflicting duplicate median record")
			}
			p.Freq = rec.Value
		case SiteR:
			if p.RT.OK && p.RT.V != rec.Value.V {
				return nil, nil, stats, recordError(n, rec, "conflicting duplicate median record")
			}
			p.RT = rec.Value
		case SiteIncidence:
			v := int64(math.Trunc(rec.Value.V))
			if p.Incidence.OK && p.Incidence.V != v {
				return nil, nil, stats, recordError(n, rec, "conflicting duplicate median record")
			}
			p.Incidence = SomeInt(v)
		}
		stats.Placed++
	}
	return grid, ga, stats, nil
}

func consumes(sites []string, site string) bool {
	switch site {
	case SiteFreq, SiteR, SiteIncidence, SiteGrowthAdvantage:
	default:
		return false
	}
	return sites == nil || slices.Contains(sites, site)
}

func recordError(n int, rec RawRecord, msg string) error {
	return fmt.Errorf("%w: data[%d] (%s/%s/%s site=%s): %s",
		ErrSchema, n, rec.Location, rec.Variant, rec.Date, rec.Site, msg)
}

// Censor erases every point whose frequency is present but below threshold,
// leaving only its date. Applying it twice is the same as applying it once.
func Censor(grid Grid, threshold float64) {
	for _, byVariant := range grid {
		for _, pts := range byVariant {
			for i := range pts {
				if pts[i].Freq.OK && pts[i].Freq.V < threshold {
					pts[i] = Point{Date: pts[i].Date}
				}
			}
		}
	}
}

func resolveStyles(r *Registry, variants []string) (colors, names, lineages map[string]string, unknown []string) {
	colors = make(map[string]string, len(variants)+1)
	names = make(map[string]string, len(variants)+1)
	lineages = make(map[string]string, len(variants)+1)
	for _, v := range append([]string{OtherVariant}, variants...) {
		style, ok := r.Lookup(v)
		if !ok {
			unknown = append(unknown, v)
		}
		colors[v] = style.Color
		names[v] = style.DisplayName
		lineages[v] = style.Lineage
	}
	return colors, names, lineages, unknown
}
