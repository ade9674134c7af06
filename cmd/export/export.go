package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/nextstrain/forecasts-ncov/internal/adapter/source"
	"github.com/nextstrain/forecasts-ncov/internal/config"
	"github.com/nextstrain/forecasts-ncov/internal/observability"
	"github.com/nextstrain/forecasts-ncov/internal/pipeline"
	"github.com/nextstrain/forecasts-ncov/internal/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// exportOptions holds the flags of the export command. Empty model and
// cases flags fall back to the service environment.
type exportOptions struct {
	OutputDir   string
	Models      []string
	Cases       string
	Graphs      []string
	Resolutions []string
}

func newExportCommand() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render static chart panels for every model",
		Long: `Fetch each model once, transform it, and write one PNG panel per
model, graph and resolution to the output directory.

Files are named <model>_<graph>Panel_<resolution>.png.`,
		Example: `  # Export every graph at every resolution for the default models
  export

  # Export the frequency panel of a local model file
  export --model clades=./latest_results.json --graph freq --resolution small`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)
			written, err := runExport(cmd.Context(), cfg, opts, logger)
			for _, f := range written {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "figures", "Directory the panels are written to")
	cmd.Flags().StringArrayVarP(&opts.Models, "model", "m", nil, "Model to export as name=location (repeatable, default MODELS)")
	cmd.Flags().StringVar(&opts.Cases, "cases", "", "Observed case counts, JSON or TSV (default CASES_LOCATION)")
	cmd.Flags().StringArrayVarP(&opts.Graphs, "graph", "g", nil, "Graph to export (repeatable, default all)")
	cmd.Flags().StringArrayVarP(&opts.Resolutions, "resolution", "r", nil, "Resolution to export (repeatable, default all)")

	return cmd
}

type panelJob struct {
	snap *pipeline.Snapshot
	g    render.Graph
	res  render.Resolution
}

// runExport refreshes every model once and writes its panels. It returns the
// files written, even when some models or panels failed.
func runExport(ctx context.Context, cfg *config.Config, opts *exportOptions, logger *slog.Logger) ([]string, error) {
	models := cfg.Models
	if len(opts.Models) > 0 {
		var err error
		if models, err = config.ParseModels(strings.Join(opts.Models, ",")); err != nil {
			return nil, err
		}
	}
	cases := cfg.CasesLocation
	if opts.Cases != "" {
		cases = opts.Cases
	}
	graphs, err := selectGraphs(opts.Graphs)
	if err != nil {
		return nil, err
	}
	resolutions, err := selectResolutions(opts.Resolutions)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}

	src := source.NewClient(models, cases, cfg.FetchTimeout, logger, metrics)
	p := pipeline.New(src, pipeline.NewTransformer(cfg.Sites, logger, metrics), nil, pipeline.NewStore(), logger, metrics,
		pipeline.Options{Models: names, Interval: time.Hour})
	refreshErr := p.RefreshOnce(ctx)

	var jobs []panelJob
	for _, snap := range p.Store().List() {
		for _, g := range graphs {
			for _, res := range resolutions {
				jobs = append(jobs, panelJob{snap: snap, g: g, res: res})
			}
		}
	}

	written := make([]string, len(jobs))
	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	for i, job := range jobs {
		eg.Go(func() error {
			path, err := writePanel(opts.OutputDir, job)
			if errors.Is(err, render.ErrNoData) {
				logger.Warn("nothing to draw, skipping panel", "model", job.snap.Model, "graph", job.g, "resolution", job.res.Name)
				return nil
			}
			if err != nil {
				return err
			}
			written[i] = path
			logger.Info("panel written", "path", path)
			return nil
		})
	}
	renderErr := eg.Wait()

	files := written[:0]
	for _, f := range written {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, errors.Join(refreshErr, renderErr)
}

func writePanel(dir string, job panelJob) (string, error) {
	png, err := render.Panel(job.snap.Data, job.g, job.res)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, render.PanelFileName(job.snap.Model, job.g, job.res))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func selectGraphs(names []string) ([]render.Graph, error) {
	if len(names) == 0 {
		return render.Graphs(), nil
	}
	out := make([]render.Graph, 0, len(names))
	for _, n := range names {
		g, err := render.ParseGraph(n)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func selectResolutions(names []string) ([]render.Resolution, error) {
	if len(names) == 0 {
		return render.Resolutions(), nil
	}
	out := make([]render.Resolution, 0, len(names))
	for _, n := range names {
		r, err := render.ParseResolution(n)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
