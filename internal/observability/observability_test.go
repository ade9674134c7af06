package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "model", "mlr_clades")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "mlr_clades", line["model"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "TEXT")
	logger.Debug("refresh", "location", "USA")
	assert.Contains(t, buf.String(), "location=USA")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.Fetches.WithLabelValues("mlr_clades", "success").Inc()
	m.ChartCache.WithLabelValues("hit").Add(2)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.Fetches))
	require.NoError(t, reg.Register(m.ChartCache))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{"forecasts_viz_fetches_total", "forecasts_viz_chart_cache_total"}, names)

	// A second set must not collide with the first.
	assert.NotPanics(t, func() { NewMetricsForTesting() })
}

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	m.SnapshotsPublished.Inc()
	m.Fetches.WithLabelValues("mlr_clades", "error").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "forecasts_viz_snapshots_published_total")
	assert.Contains(t, names, "forecasts_viz_fetches_total")

	// Private registries do not collide with each other.
	assert.NotPanics(t, func() { NewMetricsWithRegistry(prometheus.NewRegistry()) })
	assert.Panics(t, func() { NewMetricsWithRegistry(reg) })
}
