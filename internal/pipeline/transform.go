package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"github.com/nextstrain/forecasts-ncov/internal/observability"
)

// ModelTransformer implements Transformer using the domain transform with the
// registry that matches each model.
type ModelTransformer struct {
	sites   []string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTransformer creates a ModelTransformer. A nil sites list places every
// consumed site.
func NewTransformer(sites []string, logger *slog.Logger, metrics *observability.Metrics) *ModelTransformer {
	return &ModelTransformer{
		sites:   sites,
		logger:  logger,
		metrics: metrics,
	}
}

// Transform converts one fetched payload. It never retains raw or aux.
func (t *ModelTransformer) Transform(_ context.Context, model string, raw domain.RawPayload, aux []domain.CaseCount) (*domain.ModelData, error) {
	registry, ok := domain.RegistryByName(model)
	if !ok {
		registry = domain.DefaultRegistry()
	}

	start := time.Now()
	data, err := domain.Transform(raw, aux, domain.Options{
		Registry: registry,
		Sites:    t.sites,
		Logger:   t.logger.With("model", model),
	})
	t.metrics.TransformDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		t.metrics.TransformErrors.WithLabelValues(model).Inc()
		return nil, err
	}

	excluded := 0
	for _, dates := range data.ExcludedIncidenceDates {
		excluded += len(dates)
	}
	t.metrics.UnknownVariants.WithLabelValues(model).Set(float64(len(data.UnknownVariants)))
	t.metrics.ExcludedIncidenceDates.WithLabelValues(model).Set(float64(excluded))
	return data, nil
}
