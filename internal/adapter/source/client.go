package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nextstrain/forecasts-ncov/internal/config"
	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"github.com/nextstrain/forecasts-ncov/internal/observability"
)

// ErrUnknownModel is returned by FetchModel for a name that is not configured.
var ErrUnknownModel = errors.New("unknown model")

// Client fetches model results and case counts from http(s) URLs or local paths.
type Client struct {
	models        map[string]string
	casesLocation string
	httpClient    *http.Client
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewClient creates a source client for the configured models. An empty
// casesLocation disables the case-count overlay.
func NewClient(models []config.Model, casesLocation string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	locs := make(map[string]string, len(models))
	for _, m := range models {
		locs[m.Name] = m.Location
	}
	return &Client{
		models:        locs,
		casesLocation: casesLocation,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// FetchModel retrieves and decodes the named model payload.
func (c *Client) FetchModel(ctx context.Context, model string) (domain.RawPayload, error) {
	loc, ok := c.models[model]
	if !ok {
		return domain.RawPayload{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	start := time.Now()
	raw, err := c.fetchModel(ctx, loc)
	if err != nil {
		c.metrics.Fetches.WithLabelValues(model, "error").Inc()
		return domain.RawPayload{}, fmt.Errorf("fetch model %s: %w", model, err)
	}
	c.metrics.Fetches.WithLabelValues(model, "success").Inc()
	c.logger.Debug("fetched model",
		"model", model,
		"location", loc,
		"records", len(raw.Data),
		"duration", time.Since(start),
	)
	return raw, nil
}

func (c *Client) fetchModel(ctx context.Context, loc string) (domain.RawPayload, error) {
	body, err := c.open(ctx, loc)
	if err != nil {
		return domain.RawPayload{}, err
	}
	defer body.Close()
	return domain.DecodePayload(body)
}

// FetchCases retrieves the auxiliary case counts. It returns nil and no error
// when no case source is configured.
func (c *Client) FetchCases(ctx context.Context) ([]domain.CaseCount, error) {
	if c.casesLocation == "" {
		return nil, nil
	}
	body, err := c.open(ctx, c.casesLocation)
	if err != nil {
		return nil, fmt.Errorf("fetch case counts: %w", err)
	}
	defer body.Close()

	rows, err := domain.DecodeCaseCounts(body, domain.CaseFormatFor(c.casesLocation))
	if err != nil {
		return nil, fmt.Errorf("fetch case counts: %w", err)
	}
	return rows, nil
}

func (c *Client) open(ctx context.Context, loc string) (io.ReadCloser, error) {
	if !strings.HasPrefix(loc, "http://") && !strings.HasPrefix(loc, "https://") {
		f, err := os.Open(loc)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", loc, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", loc, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("request %s: status %d: %s", loc, resp.StatusCode, body)
	}
	return resp.Body, nil
}
