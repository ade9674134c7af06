package main

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() genOptions {
	return genOptions{
		Model:      "mlr_clades",
		Locations:  []string{"USA", "Japan"},
		Start:      time.Date(2024, time.January, 25, 0, 0, 0, 0, time.UTC),
		Days:       14,
		Seed:       7,
		Population: 1e4,
	}
}

func TestGenerate_Transforms(t *testing.T) {
	payload, cases, err := generate(testOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"USA", "Japan"}, payload.Metadata.Location)
	assert.Len(t, payload.Metadata.Dates, 14)
	assert.Equal(t, "2024-01-25", payload.Metadata.Dates[0])
	assert.Equal(t, domain.OtherVariant, payload.Metadata.Variants[len(payload.Metadata.Variants)-1])
	assert.Len(t, cases, 2*2)

	data, err := domain.Transform(payload, cases, domain.Options{
		Registry: domain.CladesRegistry(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	assert.Empty(t, data.UnknownVariants)
	assert.Empty(t, data.ExcludedIncidenceDates["USA"])
	assert.NotNil(t, data.StackedCases)
	assert.Len(t, data.GrowthAdvantage["Japan"], len(payload.Metadata.Variants))
	assert.InDelta(t, 1.0, data.GrowthAdvantage["Japan"][domain.OtherVariant].V, 1e-9)
}

func TestGenerate_SharesSumToOne(t *testing.T) {
	payload, _, err := generate(testOptions())
	require.NoError(t, err)

	sums := make(map[string]float64)
	for _, r := range payload.Data {
		if r.Site == domain.SiteFreq && r.PS == domain.MedianPS {
			sums[r.Location+"/"+r.Date] += r.Value.V
		}
	}
	require.Len(t, sums, 2*14)
	for k, s := range sums {
		assert.InDelta(t, 1.0, s, 1e-4, k)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, _, err := generate(testOptions())
	require.NoError(t, err)
	b, _, err := generate(testOptions())
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("payload differs between runs (-first +second):\n%s", diff)
	}

	opts := testOptions()
	opts.Seed = 8
	c, _, err := generate(opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.Data[0].Value, c.Data[0].Value)
}

func TestGenerate_LineagesInventVariants(t *testing.T) {
	opts := testOptions()
	opts.Model = "mlr_lineages"
	payload, _, err := generate(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"JN.1", "KP.2", "KP.3", domain.OtherVariant}, payload.Metadata.Variants)
}

func TestGenerate_InvalidOptions(t *testing.T) {
	opts := testOptions()
	opts.Locations = nil
	_, _, err := generate(opts)
	require.Error(t, err)

	opts = testOptions()
	opts.Days = 0
	_, _, err = generate(opts)
	require.Error(t, err)
}

func TestWriteFiles_RoundTrip(t *testing.T) {
	payload, cases, err := generate(testOptions())
	require.NoError(t, err)

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "mock", "latest_results.json")
	tsvPath := filepath.Join(dir, "mock", "cases.tsv")
	require.NoError(t, writeJSON(jsonPath, payload))
	require.NoError(t, writeCasesTSV(tsvPath, cases))

	f, err := os.Open(jsonPath)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := domain.DecodePayload(f)
	require.NoError(t, err)
	assert.Len(t, decoded.Data, len(payload.Data))

	g, err := os.Open(tsvPath)
	require.NoError(t, err)
	defer g.Close()
	rows, err := domain.DecodeCaseCounts(g, domain.CasesTSV)
	require.NoError(t, err)
	assert.Equal(t, cases, rows)
}

func TestRound(t *testing.T) {
	assert.InDelta(t, 0.1235, round(0.123456, 4), 1e-12)
	assert.False(t, math.IsNaN(round(0, 6)))
}
