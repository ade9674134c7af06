// Command genmock writes a synthetic model results payload, and optionally a
// matching case-count table, for local development and tests. The shares
// follow a multinomial logistic curve so the output looks like a real
// model run: frequencies sum to one, Rt and smoothed incidence follow the
// per-variant growth rates.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -model mlr_clades \
//	  -locations USA,Japan,"United Kingdom" \
//	  -days 90 \
//	  -out data/mock/latest_results.json \
//	  -cases-out data/mock/cases.tsv
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nextstrain/forecasts-ncov/internal/domain"
)

const dateLayout = "2006-01-02"

// hdiLevels are the interval rows written next to each median. The
// transformer ignores them but real payloads always carry them.
var hdiLevels = []string{"HDI_95_upper", "HDI_95_lower", "HDI_80_upper", "HDI_80_lower"}

type genOptions struct {
	Model     string
	Locations []string
	Start     time.Time
	Days      int
	Seed      uint64
	// Population scales the smoothed incidence per location.
	Population float64
}

func main() {
	if err := run(); err != nil {
		slog.Error("genmock failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	model := flag.String("model", "mlr_clades", "model name; selects the variant registry")
	locations := flag.String("locations", "USA,Japan,United Kingdom", "comma-separated locations")
	start := flag.String("start", "2023-10-01", "first date (YYYY-MM-DD)")
	days := flag.Int("days", 90, "number of daily dates")
	seed := flag.Uint64("seed", 1, "random seed")
	out := flag.String("out", "", "output path for the model results JSON")
	casesOut := flag.String("cases-out", "", "optional output path for the case-count TSV")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	startDate, err := time.Parse(dateLayout, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	opts := genOptions{
		Model:      *model,
		Locations:  splitList(*locations),
		Start:      startDate,
		Days:       *days,
		Seed:       *seed,
		Population: 1e5,
	}
	payload, cases, err := generate(opts)
	if err != nil {
		return err
	}

	if err := writeJSON(*out, payload); err != nil {
		return fmt.Errorf("writing model payload: %w", err)
	}
	slog.Info("wrote model payload", "path", *out, "records", len(payload.Data))

	if *casesOut != "" {
		if err := writeCasesTSV(*casesOut, cases); err != nil {
			return fmt.Errorf("writing case counts: %w", err)
		}
		slog.Info("wrote case counts", "path", *casesOut, "rows", len(cases))
	}
	return nil
}

// generate builds a deterministic payload for opts.Seed.
func generate(opts genOptions) (domain.RawPayload, []domain.CaseCount, error) {
	if len(opts.Locations) == 0 {
		return domain.RawPayload{}, nil, fmt.Errorf("at least one location is required")
	}
	if opts.Days <= 0 {
		return domain.RawPayload{}, nil, fmt.Errorf("days must be positive, got %d", opts.Days)
	}
	reg, ok := domain.RegistryByName(opts.Model)
	if !ok {
		reg = domain.DefaultRegistry()
	}
	// Model runs list "other" last and use it as the growth-advantage pivot.
	var variants []string
	for _, v := range reg.Variants() {
		if v != domain.OtherVariant {
			variants = append(variants, v)
		}
	}
	if len(variants) == 0 {
		// Lineage registries carry no styles; invent a few lineages.
		variants = []string{"JN.1", "KP.2", "KP.3"}
	}
	variants = append(variants, domain.OtherVariant)

	dates := make([]string, opts.Days)
	for i := range dates {
		dates[i] = opts.Start.AddDate(0, 0, i).Format(dateLayout)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	meta := &domain.RawMetadata{
		Location: opts.Locations,
		Variants: variants,
		Dates:    dates,
		Updated:  dates[len(dates)-1],
		Pivot:    domain.OtherVariant,
	}

	var records []domain.RawRecord
	var cases []domain.CaseCount
	for _, loc := range opts.Locations {
		intercepts := make([]float64, len(variants))
		rates := make([]float64, len(variants))
		for v := range variants {
			intercepts[v] = rng.NormFloat64()
			rates[v] = rng.NormFloat64() * 0.05
		}
		baseR := 0.9 + rng.Float64()*0.3

		for d, date := range dates {
			shares := softmax(intercepts, rates, float64(d))
			total := opts.Population * (1 + 0.5*math.Sin(float64(d)/14))
			var observed float64
			for v, variant := range variants {
				freq := shares[v]
				records = append(records, median(loc, variant, date, domain.SiteFreq, round(freq, 6)))
				for _, ps := range hdiLevels {
					records = append(records, domain.RawRecord{
						Location: loc, Variant: variant, Date: date, Site: domain.SiteFreq, PS: ps,
						Value: domain.SomeFloat(round(jitter(rng, freq), 6)),
					})
				}
				records = append(records,
					median(loc, variant, date, domain.SiteR, round(baseR*math.Exp(rates[v]*4), 4)),
					median(loc, variant, date, domain.SiteIncidence, round(total*freq, 2)),
				)
				observed += total * freq
			}
			if d%7 == 0 {
				cases = append(cases, domain.CaseCount{Location: loc, Date: date, Cases: int64(observed * 0.1)})
			}
		}

		pivot := rates[len(rates)-1]
		for v, variant := range variants {
			records = append(records, domain.RawRecord{
				Location: loc, Variant: variant, Site: domain.SiteGrowthAdvantage, PS: domain.MedianPS,
				Value: domain.SomeFloat(round(math.Exp((rates[v]-pivot)*4), 4)),
			})
		}
	}

	return domain.RawPayload{Metadata: meta, Data: records}, cases, nil
}

func median(loc, variant, date, site string, v float64) domain.RawRecord {
	return domain.RawRecord{
		Location: loc, Variant: variant, Date: date, Site: site, PS: domain.MedianPS,
		Value: domain.SomeFloat(v),
	}
}

func softmax(intercepts, rates []float64, t float64) []float64 {
	out := make([]float64, len(intercepts))
	var sum float64
	for i := range intercepts {
		out[i] = math.Exp(intercepts[i] + rates[i]*t)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func jitter(rng *rand.Rand, v float64) float64 {
	return math.Max(0, math.Min(1, v*(1+0.2*(rng.Float64()-0.5))))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func writeCasesTSV(path string, rows []domain.CaseCount) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write([]string{"location", "date", "cases"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Location, r.Date, strconv.FormatInt(r.Cases, 10)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
