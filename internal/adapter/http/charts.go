package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nextstrain/forecasts-ncov/internal/pipeline"
	"github.com/nextstrain/forecasts-ncov/internal/render"
)

const (
	minChartDim = 100
	maxChartDim = 2000
)

func (s *Server) handleChartPage(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r.PathValue("model"))
	if !ok {
		return
	}
	g, err := render.ParseGraph(r.PathValue("graph"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := render.CacheKey(snap.ID, g, "", "html")
	page, err := s.cache.GetOrRender(key, func() ([]byte, error) {
		s.metrics.ChartRenders.WithLabelValues(string(g), "html").Inc()
		var buf bytes.Buffer
		if err := render.HTML(&buf, snap.Data, snap.Model, g); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		s.writeRenderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page) //nolint:errcheck // client went away
}

func (s *Server) handleChartImage(w http.ResponseWriter, r *http.Request) {
	snap, g, file, ok := s.chartRequest(w, r)
	if !ok {
		return
	}
	loc := strings.TrimSuffix(file, ".png")
	size, err := parseSize(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := render.CacheKey(snap.ID, g, loc, fmt.Sprintf("%dx%d", size.Width, size.Height))
	s.writePNG(w, snap, key, func() ([]byte, error) {
		s.metrics.ChartRenders.WithLabelValues(string(g), "png").Inc()
		return render.PNG(snap.Data, loc, g, size)
	})
}

// handleChartPanel serves /charts/{model}/{graph}/panel/{resolution}.png.
func (s *Server) handleChartPanel(w http.ResponseWriter, r *http.Request) {
	snap, g, file, ok := s.chartRequest(w, r)
	if !ok {
		return
	}
	res, err := render.ParseResolution(strings.TrimSuffix(file, ".png"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := render.CacheKey(snap.ID, g, "", "panel-"+res.Name)
	s.writePNG(w, snap, key, func() ([]byte, error) {
		s.metrics.ChartRenders.WithLabelValues(string(g), "panel").Inc()
		return render.Panel(snap.Data, g, res)
	})
}

// chartRequest resolves the snapshot, graph and .png file of an image route.
func (s *Server) chartRequest(w http.ResponseWriter, r *http.Request) (*pipeline.Snapshot, render.Graph, string, bool) {
	snap, ok := s.snapshot(w, r.PathValue("model"))
	if !ok {
		return nil, "", "", false
	}
	g, err := render.ParseGraph(r.PathValue("graph"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, "", "", false
	}
	file := r.PathValue("file")
	if !strings.HasSuffix(file, ".png") {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unsupported chart file %q", file))
		return nil, "", "", false
	}
	return snap, g, file, true
}

func (s *Server) writePNG(w http.ResponseWriter, snap *pipeline.Snapshot, key string, draw func() ([]byte, error)) {
	img, err := s.cache.GetOrRender(key, draw)
	if err != nil {
		s.writeRenderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Snapshot-Id", snap.ID)
	w.Write(img) //nolint:errcheck // client went away
}

func (s *Server) writeRenderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, render.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, render.ErrUnknownGraph):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("chart render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chart render failed")
	}
}

func parseSize(r *http.Request) (render.Size, error) {
	size := render.DefaultSize
	for _, dim := range []struct {
		name string
		dst  *int
	}{
		{"width", &size.Width},
		{"height", &size.Height},
	} {
		v := r.URL.Query().Get(dim.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < minChartDim || n > maxChartDim {
			return render.Size{}, fmt.Errorf("%s must be an integer in [%d, %d]", dim.name, minChartDim, maxChartDim)
		}
		*dim.dst = n
	}
	return size, nil
}

func queryOr(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}
