package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/nextstrain/forecasts-ncov/internal/observability"
	"github.com/nextstrain/forecasts-ncov/internal/pipeline"
	"github.com/nextstrain/forecasts-ncov/internal/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotReader is the read side of the snapshot store.
type SnapshotReader interface {
	Get(model string) (*pipeline.Snapshot, bool)
}

// Server exposes the model data API, chart rendering, and the health,
// readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	snapshots  SnapshotReader
	models     []string
	cache      *render.Cache
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server for the configured models.
func NewServer(addr string, ready sharedobs.ReadinessChecker, snapshots SnapshotReader, models []string, cache *render.Cache, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		snapshots: snapshots,
		models:    models,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/models/{model}", s.handleModel)
	mux.HandleFunc("GET /api/models/{model}/locations/{location}", s.handleLocation)
	mux.HandleFunc("GET /charts/{model}/{graph}", s.handleChartPage)
	mux.HandleFunc("GET /charts/{model}/{graph}/{file}", s.handleChartImage)
	mux.HandleFunc("GET /charts/{model}/{graph}/panel/{file}", s.handleChartPanel)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
