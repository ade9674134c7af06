package domain

// Sites consumed by the transformer. The model JSON carries others
// (freq_forecast, daily_raw_freq, weekly_raw_freq) which are ignored.
const (
	SiteFreq            = "freq"
	SiteR               = "R"
	SiteIncidence       = "I_smooth"
	SiteGrowthAdvantage = "ga"
)

// MedianPS is the only summary statistic placed into the output. HDI bounds
// share the payload but are not consumed.
const MedianPS = "median"

// FreqThreshold is the frequency below which an estimate is erased.
const FreqThreshold = 0.005

// RawRecord is one row of the long-form model output.
type RawRecord struct {
	Location string `json:"location"`
	Variant  string `json:"variant"`
	Date     string `json:"date,omitempty"` // absent for undated sites such as "ga"
	Site     string `json:"site"`
	PS       string `json:"ps"`
	Value    Float  `json:"value"`
}

// RawMetadata declares the exhaustive, ordered axis domains of a payload.
type RawMetadata struct {
	Location []string `json:"location"`
	Variants []string `json:"variants"`
	Dates    []string `json:"dates"`

	// Optional keys written by the modelling workflow.
	Updated       string      `json:"updated,omitempty"`
	Pivot         string      `json:"pivot,omitempty"`
	VariantColors [][2]string `json:"variantColors,omitempty"` // [[variant, "#rrggbb"], ...]
}

// RawPayload is the model JSON as fetched.
type RawPayload struct {
	Metadata *RawMetadata `json:"metadata"`
	Data     []RawRecord  `json:"data"`
}

// CaseCount is one observed case total for a location and date.
type CaseCount struct {
	Location string `json:"location"`
	Date     string `json:"date"`
	Cases    int64  `json:"cases"`
}

// Point is the per-date value for one (location, variant). Absent fields are
// not zero: a censored point carries only its date.
type Point struct {
	Date               string `json:"date"`
	Freq               Float  `json:"freq"`
	RT                 Float  `json:"r_t"`
	Incidence          Int    `json:"incidence"`
	IncidenceStackBase Int    `json:"incidenceStackBase"`
	IncidenceStackTop  Int    `json:"incidenceStackTop"`
}

// IsEmpty reports whether every measured field is absent.
func (p Point) IsEmpty() bool {
	return !p.Freq.OK && !p.RT.OK && !p.Incidence.OK && !p.IncidenceStackBase.OK && !p.IncidenceStackTop.OK
}

// StackPoint is one slice of a stacked area: the band between Base and Top
// for Variant at Date.
type StackPoint struct {
	Date    string `json:"date"`
	Variant string `json:"variant"`
	Base    int64  `json:"base"`
	Top     int64  `json:"top"`
}

// ModelData is the normalized, renderer-ready form of a payload. It is built
// once per fetch and never mutated afterwards.
type ModelData struct {
	Locations []string `json:"locations"`
	Variants  []string `json:"variants"`
	Dates     []string `json:"dates"`

	// Points[location][variant] has exactly len(Dates) entries, index i
	// aligned with Dates[i].
	Points map[string]map[string][]Point `json:"points"`

	StackedIncidence       map[string]map[string][]StackPoint `json:"stackedIncidence"`
	ExcludedIncidenceDates map[string][]string                `json:"excludedIncidenceDates"`

	// StackedCases is nil unless auxiliary case counts were supplied.
	StackedCases map[string]map[string][]StackPoint `json:"stackedCases,omitempty"`

	GrowthAdvantage map[string]map[string]Float `json:"growthAdvantage"`

	Colors          map[string]string `json:"variantColors"`
	DisplayNames    map[string]string `json:"variantDisplayNames"`
	Lineages        map[string]string `json:"variantLineages"`
	UnknownVariants []string          `json:"unknownVariants,omitempty"`

	Updated string `json:"updated,omitempty"`
	Pivot   string `json:"pivot,omitempty"`
}

// LocationSnapshot is the slice of ModelData for a single location.
type LocationSnapshot struct {
	Location         string                  `json:"location"`
	Variants         []string                `json:"variants"`
	Dates            []string                `json:"dates"`
	Points           map[string][]Point      `json:"points"`
	StackedIncidence map[string][]StackPoint `json:"stackedIncidence"`
	ExcludedDates    []string                `json:"excludedIncidenceDates"`
	StackedCases     map[string][]StackPoint `json:"stackedCases,omitempty"`
	GrowthAdvantage  map[string]Float        `json:"growthAdvantage"`
	Colors           map[string]string       `json:"variantColors"`
	DisplayNames     map[string]string       `json:"variantDisplayNames"`
	Updated          string                  `json:"updated,omitempty"`
}

// Location returns the per-location view. ok is false for an undeclared location.
func (m *ModelData) Location(loc string) (LocationSnapshot, bool) {
	pts, ok := m.Points[loc]
	if !ok {
		return LocationSnapshot{}, false
	}
	snap := LocationSnapshot{
		Location:         loc,
		Variants:         m.Variants,
		Dates:            m.Dates,
		Points:           pts,
		StackedIncidence: m.StackedIncidence[loc],
		ExcludedDates:    m.ExcludedIncidenceDates[loc],
		GrowthAdvantage:  m.GrowthAdvantage[loc],
		Colors:           m.Colors,
		DisplayNames:     m.DisplayNames,
		Updated:          m.Updated,
	}
	if m.StackedCases != nil {
		snap.StackedCases = m.StackedCases[loc]
	}
	return snap, true
}

// Color returns the colour for a variant, falling back to the "other" colour.
func (m *ModelData) Color(variant string) string {
	if c, ok := m.Colors[variant]; ok {
		return c
	}
	return m.Colors[OtherVariant]
}
