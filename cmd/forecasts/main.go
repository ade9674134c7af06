package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/nextstrain/forecasts-ncov/internal/adapter/http"
	kafkaadapter "github.com/nextstrain/forecasts-ncov/internal/adapter/kafka"
	"github.com/nextstrain/forecasts-ncov/internal/adapter/source"
	"github.com/nextstrain/forecasts-ncov/internal/config"
	"github.com/nextstrain/forecasts-ncov/internal/observability"
	"github.com/nextstrain/forecasts-ncov/internal/pipeline"
	"github.com/nextstrain/forecasts-ncov/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	names := make([]string, len(cfg.Models))
	for i, m := range cfg.Models {
		names[i] = m.Name
	}

	src := source.NewClient(cfg.Models, cfg.CasesLocation, cfg.FetchTimeout, logger, metrics)
	transformer := pipeline.NewTransformer(cfg.Sites, logger, metrics)

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(src, transformer, publisher, pipeline.NewStore(), logger, metrics, pipeline.Options{
		Models:   names,
		Interval: cfg.RefreshInterval,
	})

	cache := render.NewCache(cfg.ChartCacheSize, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p.Store(), names, cache, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
