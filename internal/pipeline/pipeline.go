package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"github.com/nextstrain/forecasts-ncov/internal/observability"
)

// Source fetches raw model payloads and auxiliary case counts.
type Source interface {
	FetchModel(ctx context.Context, model string) (domain.RawPayload, error)
	FetchCases(ctx context.Context) ([]domain.CaseCount, error)
}

// Transformer converts a fetched payload into renderer-ready data.
type Transformer interface {
	Transform(ctx context.Context, model string, raw domain.RawPayload, aux []domain.CaseCount) (*domain.ModelData, error)
}

// Publisher writes a new snapshot to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Options configures a Pipeline.
type Options struct {
	Models   []string
	Interval time.Duration
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Pipeline orchestrates the fetch-transform-store loop.
type Pipeline struct {
	source      Source
	transformer Transformer
	publisher   Publisher // optional
	store       *Store
	logger      *slog.Logger
	metrics     *observability.Metrics

	models   []string
	interval time.Duration
	clock    clockwork.Clock

	mu        sync.Mutex
	published map[string]string // model -> last snapshot id the publisher accepted
}

// New creates a Pipeline. publisher may be nil.
func New(s Source, t Transformer, pub Publisher, store *Store, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:      s,
		transformer: t,
		publisher:   pub,
		store:       store,
		logger:      logger,
		metrics:     metrics,
		models:      opts.Models,
		interval:    opts.Interval,
		clock:       clock,
		published:   make(map[string]string),
	}
}

// Store returns the snapshot store the pipeline writes to.
func (p *Pipeline) Store() *Store {
	return p.store
}

// Models lists the configured model names.
func (p *Pipeline) Models() []string {
	return append([]string(nil), p.models...)
}

// CheckReadiness returns nil once every configured model has a snapshot, or an
// error naming the models still missing.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	var missing []string
	for _, m := range p.models {
		if _, ok := p.store.Get(m); !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no snapshot yet for %s", strings.Join(missing, ", "))
	}
	return nil
}

// Run refreshes every model immediately and then on each tick until the
// context is cancelled. Fetch failures are retried with exponential backoff
// while the ticker keeps running, so a failing model never delays the
// scheduled refresh of the others. Transform failures keep the previous
// snapshot until the next tick.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "models", p.models, "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	backoff := initialBackoff
	pending := p.models
	for {
		retry, _ := p.refresh(ctx, pending)
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		// A nil channel never fires, so without retries only the tick wakes us.
		var retryC <-chan time.Time
		var timer clockwork.Timer
		if len(retry) > 0 {
			p.logger.Warn("retrying failed fetches", "models", retry, "backoff", backoff)
			timer = p.clock.NewTimer(backoff)
			retryC = timer.Chan()
		} else {
			backoff = initialBackoff
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-retryC:
			backoff = nextBackoff(backoff, maxBackoff)
			pending = retry
		case <-ticker.Chan():
			stopTimer(timer)
			backoff = initialBackoff
			pending = p.models
		}
	}
}

// RefreshOnce runs a single refresh of every model and returns the joined
// per-model errors.
func (p *Pipeline) RefreshOnce(ctx context.Context) error {
	_, err := p.refresh(ctx, p.models)
	return err
}

// refresh fetches, transforms and stores each model. It returns the models
// whose fetch failed and should be retried.
func (p *Pipeline) refresh(ctx context.Context, models []string) ([]string, error) {
	aux, err := p.source.FetchCases(ctx)
	if err != nil {
		// The case overlay is optional; models still refresh without it.
		p.logger.Warn("case counts unavailable, skipping stacked cases", "error", err)
		aux = nil
	}

	var retry []string
	var errs []error
	for _, model := range models {
		if ctx.Err() != nil {
			return retry, ctx.Err()
		}
		retryable, err := p.refreshModel(ctx, model, aux)
		if err != nil {
			errs = append(errs, err)
			if retryable {
				retry = append(retry, model)
			}
		}
	}
	return retry, errors.Join(errs...)
}

func (p *Pipeline) refreshModel(ctx context.Context, model string, aux []domain.CaseCount) (bool, error) {
	raw, err := p.source.FetchModel(ctx, model)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("fetch model failed", "model", model, "error", err)
		}
		return true, err
	}

	data, err := p.transformer.Transform(ctx, model, raw, aux)
	if err != nil {
		p.logger.Error("transform failed, keeping previous snapshot", "model", model, "error", err)
		return false, fmt.Errorf("transform %s: %w", model, err)
	}

	snap, err := NewSnapshot(model, data, p.clock.Now())
	if err != nil {
		p.logger.Error("snapshot failed", "model", model, "error", err)
		return false, err
	}
	prev, ok := p.store.Get(model)
	changed := !ok || prev.ID != snap.ID
	if !changed && !p.needsPublish(model, snap.ID) {
		p.logger.Debug("model unchanged", "model", model, "snapshot_id", snap.ID)
		return false, nil
	}

	if changed {
		p.store.Put(snap)
		p.logger.Info("snapshot updated",
			"model", model,
			"snapshot_id", snap.ID,
			"locations", len(data.Locations),
			"variants", len(data.Variants),
			"dates", len(data.Dates),
			"unknown_variants", len(data.UnknownVariants),
		)
	} else {
		// Republish the stored snapshot so its FetchedAt stays the one served.
		snap = prev
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, snap); err != nil {
			p.logger.Error("publish snapshot failed", "model", model, "snapshot_id", snap.ID, "error", err)
			return false, fmt.Errorf("publish %s: %w", model, err)
		}
		p.markPublished(model, snap.ID)
		p.metrics.SnapshotsPublished.Inc()
	}
	return false, nil
}

// needsPublish reports whether id has not yet reached the publisher.
func (p *Pipeline) needsPublish(model, id string) bool {
	if p.publisher == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[model] != id
}

func (p *Pipeline) markPublished(model, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[model] = id
}

func stopTimer(t clockwork.Timer) {
	if t != nil {
		t.Stop()
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
