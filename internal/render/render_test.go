package render

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"github.com/nextstrain/forecasts-ncov/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// fixture builds two locations over two months. Japan lacks I_smooth for one
// variant on every date, so it has nothing to stack.
func fixture(t *testing.T) *domain.ModelData {
	t.Helper()

	dates := []string{"2024-01-30", "2024-01-31", "2024-02-01", "2024-02-02"}
	variants := []string{"22B (Omicron)", "23A (Omicron)", "other"}
	var data []domain.RawRecord
	add := func(loc, v, d, site string, val float64) {
		data = append(data, domain.RawRecord{Location: loc, Variant: v, Date: d, Site: site, PS: domain.MedianPS, Value: domain.SomeFloat(val)})
	}
	for _, loc := range []string{"USA", "Japan"} {
		for vi, v := range variants {
			for di, d := range dates {
				add(loc, v, d, domain.SiteFreq, 0.2+0.1*float64(vi))
				if di != 1 {
					add(loc, v, d, domain.SiteR, 0.8+0.2*float64(vi))
				}
				if loc == "USA" || v != "other" {
					add(loc, v, d, domain.SiteIncidence, 100*float64(vi+1))
				}
			}
			data = append(data, domain.RawRecord{Location: loc, Variant: v, Site: domain.SiteGrowthAdvantage, PS: domain.MedianPS, Value: domain.SomeFloat(1 + 0.2*float64(vi))})
		}
	}

	out, err := domain.Transform(domain.RawPayload{
		Metadata: &domain.RawMetadata{Location: []string{"USA", "Japan"}, Variants: variants, Dates: dates},
		Data:     data,
	}, nil, domain.Options{})
	require.NoError(t, err)
	return out
}

func TestParseGraph(t *testing.T) {
	for _, g := range Graphs() {
		got, err := ParseGraph(string(g))
		require.NoError(t, err)
		assert.Equal(t, g, got)
	}
	_, err := ParseGraph("pie")
	require.ErrorIs(t, err, ErrUnknownGraph)
}

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution("large")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Name: "large", Width: 1300, Columns: 4}, r)

	_, err = ParseResolution("huge")
	require.Error(t, err)
}

func TestMonthStarts(t *testing.T) {
	idx, labels := monthStarts([]string{"2024-01-31", "2024-02-01", "2024-02-15", "2024-03-01"})
	assert.Equal(t, []int{1, 3}, idx)
	assert.Equal(t, []string{"Feb", "Mar"}, labels)
}

func TestDrawable_StackedSkipsIncompleteLocations(t *testing.T) {
	data := fixture(t)
	assert.True(t, drawable(data, "USA", GraphStackedIncidence))
	assert.False(t, drawable(data, "Japan", GraphStackedIncidence))
	assert.False(t, drawable(data, "USA", GraphStackedCases), "no case counts were supplied")
	assert.True(t, drawable(data, "Japan", GraphFreq))
	assert.True(t, drawable(data, "Japan", GraphGrowthAdvantage))
}

func TestYMax(t *testing.T) {
	data := fixture(t)
	assert.InDelta(t, 1.0, yMax(data, "USA", GraphFreq), 1e-9)
	assert.InDelta(t, 3.0, yMax(data, "USA", GraphRt), 1e-9, "r_t never drops below 3")
	assert.InDelta(t, 600.0, yMax(data, "USA", GraphStackedIncidence), 1e-9)
}

func TestPresentRuns(t *testing.T) {
	pts := []domain.Point{
		{RT: domain.SomeFloat(1)},
		{},
		{RT: domain.SomeFloat(1.1)},
		{RT: domain.SomeFloat(1.2)},
	}
	runs := presentRuns(pts)
	require.Len(t, runs, 2)
	assert.Len(t, runs[0], 1)
	assert.Len(t, runs[1], 2)
	assert.InDelta(t, 2.0, runs[1][0].X, 0)
}

func TestPNG(t *testing.T) {
	data := fixture(t)
	for _, g := range Graphs() {
		if g == GraphStackedCases {
			continue
		}
		t.Run(string(g), func(t *testing.T) {
			b, err := PNG(data, "USA", g, DefaultSize)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(b, pngMagic))
		})
	}
}

func TestPNG_NoData(t *testing.T) {
	data := fixture(t)

	_, err := PNG(data, "Japan", GraphStackedIncidence, DefaultSize)
	require.ErrorIs(t, err, ErrNoData)

	_, err = PNG(data, "Mars", GraphFreq, DefaultSize)
	require.ErrorIs(t, err, ErrNoData)
}

func TestPanel(t *testing.T) {
	data := fixture(t)
	res, err := ParseResolution("small")
	require.NoError(t, err)

	b, err := Panel(data, GraphFreq, res)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, pngMagic))

	// Only USA is stackable; the panel still renders.
	b, err = Panel(data, GraphStackedIncidence, res)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, pngMagic))

	_, err = Panel(data, GraphStackedCases, res)
	require.ErrorIs(t, err, ErrNoData)

	_, err = Panel(data, Graph("pie"), res)
	require.ErrorIs(t, err, ErrUnknownGraph)
}

func TestPanelFileName(t *testing.T) {
	assert.Equal(t, "mlr_clades_freqPanel_xlarge.png",
		PanelFileName("mlr_clades", GraphFreq, Resolution{Name: "xlarge"}))
}

func TestHTML(t *testing.T) {
	data := fixture(t)

	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, data, "mlr_clades", GraphRt))
	page := buf.String()
	assert.Contains(t, page, "echarts")
	assert.Contains(t, page, "USA")
	assert.Contains(t, page, "Japan")
	assert.Contains(t, page, "22B (BA.5)")
	assert.Contains(t, page, "#416DCE")

	buf.Reset()
	require.NoError(t, HTML(&buf, data, "mlr_clades", GraphStackedIncidence))
	assert.Contains(t, buf.String(), "USA")
	assert.NotContains(t, buf.String(), "Japan")

	err := HTML(&buf, data, "mlr_clades", GraphStackedCases)
	require.ErrorIs(t, err, ErrNoData)
}

func TestCache_HitAndEviction(t *testing.T) {
	c := NewCache(2, observability.NewMetricsForTesting())
	calls := 0
	render := func(s string) func() ([]byte, error) {
		return func() ([]byte, error) {
			calls++
			return []byte(s), nil
		}
	}

	b, err := c.GetOrRender("a", render("A"))
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), b)
	_, err = c.GetOrRender("a", render("A"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second lookup is a hit")

	_, _ = c.GetOrRender("b", render("B"))
	_, _ = c.GetOrRender("a", render("A")) // a is now most recent
	_, _ = c.GetOrRender("c", render("C")) // evicts b
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, calls)

	_, _ = c.GetOrRender("a", render("A"))
	assert.Equal(t, 3, calls, "a survived eviction")
	_, _ = c.GetOrRender("b", render("B"))
	assert.Equal(t, 4, calls, "b was evicted")
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := NewCache(4, observability.NewMetricsForTesting())
	boom := errors.New("boom")

	_, err := c.GetOrRender("k", func() ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestCacheKey(t *testing.T) {
	k1 := CacheKey("id-1", GraphFreq, "USA", fmt.Sprintf("%dx%d", 300, 225))
	k2 := CacheKey("id-2", GraphFreq, "USA", "300x225")
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, "id-1|freq|USA|300x225", k1)
}
