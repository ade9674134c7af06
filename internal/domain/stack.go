package domain

// StackIncidence builds the stacked-incidence series for every location.
// Variants are stacked in axis order: the first variant is the base layer,
// the last is the top. A date where any variant lacks I_smooth cannot be
// drawn as a stack, so it is excluded for every variant at that location.
//
// The stack bounds are also written into grid; excluded dates keep absent
// bounds there. The second return value lists excluded dates per location
// in axis order.
//
// Transform calls this before Censor: a point erased for low frequency still
// contributes its I_smooth layer to the stack, so a rare variant never
// knocks out a whole column.
func StackIncidence(axes *Axes, grid Grid) (map[string]map[string][]StackPoint, map[string][]string) {
	stacked := make(map[string]map[string][]StackPoint, len(axes.Locations))
	excludedDates := make(map[string][]string, len(axes.Locations))

	for _, loc := range axes.Locations {
		n := len(axes.Dates)
		running := make([]int64, n)
		excluded := make([]bool, n)

		// First pass: running totals, marking any column with a missing layer.
		for _, v := range axes.Variants {
			pts := grid[loc][v]
			for i := range pts {
				if excluded[i] {
					continue
				}
				if !pts[i].Incidence.OK {
					excluded[i] = true
					continue
				}
				running[i] += pts[i].Incidence.V
			}
		}

		// Second pass: emit bounds for drawable columns only.
		for i := range running {
			running[i] = 0
		}
		byVariant := make(map[string][]StackPoint, len(axes.Variants))
		for _, v := range axes.Variants {
			pts := grid[loc][v]
			series := make([]StackPoint, 0, n)
			for i := range pts {
				if excluded[i] {
					pts[i].IncidenceStackBase = Int{}
					pts[i].IncidenceStackTop = Int{}
					continue
				}
				base := running[i]
				top := base + pts[i].Incidence.V
				running[i] = top
				pts[i].IncidenceStackBase = SomeInt(base)
				pts[i].IncidenceStackTop = SomeInt(top)
				series = append(series, StackPoint{Date: pts[i].Date, Variant: v, Base: base, Top: top})
			}
			byVariant[v] = series
		}
		stacked[loc] = byVariant

		dates := make([]string, 0)
		for i, ex := range excluded {
			if ex {
				dates = append(dates, axes.Dates[i])
			}
		}
		excludedDates[loc] = dates
	}
	return stacked, excludedDates
}
