package domain

import "math"

// CaseIndex maps location → date → observed case total.
type CaseIndex map[string]map[string]int64

// IndexCaseCounts builds a lookup from case-count rows. Repeated rows for the
// same location and date are summed.
func IndexCaseCounts(rows []CaseCount) CaseIndex {
	idx := make(CaseIndex)
	for _, r := range rows {
		byDate, ok := idx[r.Location]
		if !ok {
			byDate = make(map[string]int64)
			idx[r.Location] = byDate
		}
		byDate[r.Date] += r.Cases
	}
	return idx
}

// PartitionCases splits observed case totals between variants in proportion to
// their modelled frequency, producing a stacked series in variant axis order.
// Each variant's share is truncated to an integer independently, so the top of
// a column can fall short of the observed total by rounding.
//
// A point is omitted when the location/date has no case count or the variant
// has no frequency there; omitted points do not advance the running total.
func PartitionCases(axes *Axes, grid Grid, cases CaseIndex) map[string]map[string][]StackPoint {
	out := make(map[string]map[string][]StackPoint, len(axes.Locations))
	for _, loc := range axes.Locations {
		running := make([]int64, len(axes.Dates))
		byDate := cases[loc]
		byVariant := make(map[string][]StackPoint, len(axes.Variants))
		for _, v := range axes.Variants {
			pts := grid[loc][v]
			series := make([]StackPoint, 0, len(pts))
			for i, p := range pts {
				total, ok := byDate[p.Date]
				if !ok || !p.Freq.OK {
					continue
				}
				base := running[i]
				top := base + int64(math.Trunc(float64(total)*p.Freq.V))
				running[i] = top
				series = append(series, StackPoint{Date: p.Date, Variant: v, Base: base, Top: top})
			}
			byVariant[v] = series
		}
		out[loc] = byVariant
	}
	return out
}
