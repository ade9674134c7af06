// Package domain models the output of the nextstrain SARS-CoV-2 forecast
// models and turns it into the structures the chart layer draws from.
//
// # Data Source
//
// Model results are produced upstream by evofr model runs (multinomial
// logistic regression over nextstrain clades or pango lineages) and
// published as JSON under
// https://nextstrain-data.s3.amazonaws.com/files/workflows/forecasts-ncov/.
// Each document is long-form: one row per location × variant × date × site ×
// summary statistic.
//
// # Payload Conventions
//
// Metadata declares the complete axis domains in display order:
//
//	{"metadata": {"location": [...], "variants": [...], "dates": ["2024-01-01", ...]}}
//
// The variant order is also the stacking order for stacked graphs: the first
// variant is drawn at the bottom. Modelling runs put the pivot variant last.
//
// Sites:
//
//	freq      modelled variant frequency, a fraction in [0, 1]
//	R         effective reproduction number
//	I_smooth  smoothed incidence, truncated to an integer when placed
//	ga        growth advantage relative to the pivot (undated)
//
// Other sites (freq_forecast, daily_raw_freq, weekly_raw_freq) pass through
// untouched. Only ps="median" rows are placed; HDI_{n}_upper/lower rows are
// ignored.
//
// Values may be null where the model had no estimate. Null, a missing row
// and a sub-threshold frequency all end up absent in the output; none of
// them become zero.
//
// # Censoring
//
// Frequencies below 0.5% are statistically unreliable. A point whose
// frequency is below [FreqThreshold] is erased entirely (R and incidence
// included), so the chart layer only sees estimates that passed the bar.
//
// # Stacked Series
//
// Stacked incidence is built from the placed I_smooth values in variant axis
// order. If any variant lacks a value at a date, that date is dropped from
// every variant's stacked series for the location and recorded in
// ModelData.ExcludedIncidenceDates.
//
// Stacked cases split an external case total by the variant frequencies.
// See [PartitionCases].
//
// # Colours
//
// Variant colours and display names come from a [Registry] passed in through
// [Options]. A variant the registry does not know is coloured as "other" and
// reported in ModelData.UnknownVariants; it is never an error.
package domain
