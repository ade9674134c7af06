// Command validate runs integrity checks over a model results payload and,
// optionally, a case-count table: it decodes them, runs the full transform
// and verifies the invariants the charts rely on (axis spine, frequency
// shares, contiguous stacks, case partitions within the observed totals).
//
// Usage:
//
//	go run ./cmd/validate \
//	  -model mlr_clades \
//	  -payload data/mock/latest_results.json \
//	  -cases data/mock/cases.tsv
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/nextstrain/forecasts-ncov/internal/domain"
)

// shareTolerance is how far the median frequencies of one location and date
// may drift from summing to one.
const shareTolerance = 0.02

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	model := flag.String("model", "mlr_clades", "model name; selects the variant registry")
	payloadPath := flag.String("payload", "", "path to the model results JSON")
	casesPath := flag.String("cases", "", "optional path to case counts (JSON or TSV)")
	flag.Parse()

	if *payloadPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, *model, *payloadPath, *casesPath))
}

func run(w io.Writer, model, payloadPath, casesPath string) int {
	fmt.Fprintln(w, "=== Model Payload Validation ===")
	fmt.Fprintln(w)

	raw, err := loadPayload(payloadPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load payload: %v\n", err)
		return 1
	}
	var cases []domain.CaseCount
	if casesPath != "" {
		if cases, err = loadCases(casesPath); err != nil {
			fmt.Fprintf(w, "FATAL: load case counts: %v\n", err)
			return 1
		}
	}

	reg, ok := domain.RegistryByName(model)
	if !ok {
		reg = domain.DefaultRegistry()
	}
	data, err := domain.Transform(raw, cases, domain.Options{
		Registry: reg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		fmt.Fprintf(w, "FATAL: transform: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSpine(data),
		validateShares(raw),
		validateIncidenceStacks(data),
	}
	if cases != nil {
		phases = append(phases, validateCasePartition(data, domain.IndexCaseCounts(cases)))
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Axes: %d locations, %d variants, %d dates; %d records\n",
		len(data.Locations), len(data.Variants), len(data.Dates), len(raw.Data))
	printNotes(w, data)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadPayload(path string) (domain.RawPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RawPayload{}, err
	}
	defer f.Close()
	return domain.DecodePayload(f)
}

func loadCases(path string) ([]domain.CaseCount, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return domain.DecodeCaseCounts(f, domain.CaseFormatFor(path))
}

// ── Phases ──

// validateSpine checks that every (location, variant) series has one point
// per date, aligned with the date axis.
func validateSpine(data *domain.ModelData) *phase {
	p := &phase{name: "Axis spine"}
	for _, loc := range data.Locations {
		for _, v := range data.Variants {
			pts, ok := data.Points[loc][v]
			if !ok {
				p.errorf("%s / %s: missing series", loc, v)
				continue
			}
			if len(pts) != len(data.Dates) {
				p.errorf("%s / %s: %d points for %d dates", loc, v, len(pts), len(data.Dates))
				continue
			}
			for i, pt := range pts {
				if pt.Date != data.Dates[i] {
					p.errorf("%s / %s: point %d has date %s, want %s", loc, v, i, pt.Date, data.Dates[i])
					break
				}
			}
		}
	}
	return p
}

// validateShares checks that median frequencies of each location and date
// sum to one when every variant has an estimate.
func validateShares(raw domain.RawPayload) *phase {
	p := &phase{name: "Frequency shares"}
	type cell struct{ loc, date string }
	sums := make(map[cell]float64)
	counts := make(map[cell]int)
	for _, r := range raw.Data {
		if r.Site != domain.SiteFreq || r.PS != domain.MedianPS || !r.Value.OK {
			continue
		}
		c := cell{r.Location, r.Date}
		sums[c] += r.Value.V
		counts[c]++
	}

	keys := make([]cell, 0, len(sums))
	for c := range sums {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].loc != keys[j].loc {
			return keys[i].loc < keys[j].loc
		}
		return keys[i].date < keys[j].date
	})

	for _, c := range keys {
		if counts[c] != len(raw.Metadata.Variants) {
			continue
		}
		if s := sums[c]; math.Abs(s-1) > shareTolerance {
			p.errorf("%s %s: frequencies sum to %.4f", c.loc, c.date, s)
		}
	}
	return p
}

// validateIncidenceStacks checks that stacked incidence columns are
// contiguous: each variant starts where the previous one ended.
func validateIncidenceStacks(data *domain.ModelData) *phase {
	p := &phase{name: "Stacked incidence"}
	checkStacks(p, data, data.StackedIncidence)
	return p
}

// validateCasePartition checks that partitioned case columns are contiguous
// and never exceed the observed total.
func validateCasePartition(data *domain.ModelData, idx domain.CaseIndex) *phase {
	p := &phase{name: "Case partition"}
	tops := checkStacks(p, data, data.StackedCases)
	for _, loc := range data.Locations {
		for date, top := range tops[loc] {
			total, ok := idx[loc][date]
			if !ok {
				p.errorf("%s %s: stacked cases without an observed total", loc, date)
				continue
			}
			if top > total {
				p.errorf("%s %s: stacked cases %d exceed observed %d", loc, date, top, total)
			}
		}
	}
	return p
}

// checkStacks walks each location's columns in variant order and records
// discontinuities. It returns the top of each column.
func checkStacks(p *phase, data *domain.ModelData, stacks map[string]map[string][]domain.StackPoint) map[string]map[string]int64 {
	tops := make(map[string]map[string]int64, len(data.Locations))
	for _, loc := range data.Locations {
		running := make(map[string]int64)
		for _, v := range data.Variants {
			for _, sp := range stacks[loc][v] {
				if sp.Top < sp.Base {
					p.errorf("%s / %s %s: top %d below base %d", loc, v, sp.Date, sp.Top, sp.Base)
				}
				if want := running[sp.Date]; sp.Base != want {
					p.errorf("%s / %s %s: base %d, want %d", loc, v, sp.Date, sp.Base, want)
				}
				running[sp.Date] = sp.Top
			}
		}
		tops[loc] = running
	}
	return tops
}

func printNotes(w io.Writer, data *domain.ModelData) {
	if len(data.UnknownVariants) > 0 {
		fmt.Fprintf(w, "Unknown variants (coloured as %s): %v\n", domain.OtherVariant, data.UnknownVariants)
	}
	for _, loc := range data.Locations {
		if n := len(data.ExcludedIncidenceDates[loc]); n > 0 {
			fmt.Fprintf(w, "%s: %d dates excluded from stacked incidence\n", loc, n)
		}
	}
}
