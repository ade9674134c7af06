package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/nextstrain/forecasts-ncov/internal/pipeline"
)

type modelSummary struct {
	Model      string     `json:"model"`
	Ready      bool       `json:"ready"`
	SnapshotID string     `json:"snapshotId,omitempty"`
	FetchedAt  *time.Time `json:"fetchedAt,omitempty"`
	Updated    string     `json:"updated,omitempty"`
	Locations  int        `json:"locations"`
	Variants   int        `json:"variants"`
	Dates      int        `json:"dates"`
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	out := make([]modelSummary, 0, len(s.models))
	for _, m := range s.models {
		sum := modelSummary{Model: m}
		if snap, ok := s.snapshots.Get(m); ok {
			fetched := snap.FetchedAt
			sum.Ready = true
			sum.SnapshotID = snap.ID
			sum.FetchedAt = &fetched
			sum.Updated = snap.Data.Updated
			sum.Locations = len(snap.Data.Locations)
			sum.Variants = len(snap.Data.Variants)
			sum.Dates = len(snap.Data.Dates)
		}
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r.PathValue("model"))
	if !ok {
		return
	}
	w.Header().Set("X-Snapshot-Id", snap.ID)
	writeJSON(w, http.StatusOK, snap.Data)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r.PathValue("model"))
	if !ok {
		return
	}
	loc := r.PathValue("location")
	ls, ok := snap.Data.Location(loc)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown location %q", loc))
		return
	}
	w.Header().Set("X-Snapshot-Id", snap.ID)
	writeJSON(w, http.StatusOK, ls)
}

// snapshot resolves the latest snapshot for model, writing 404 for a model
// that is not configured and 503 for one that has not loaded yet.
func (s *Server) snapshot(w http.ResponseWriter, model string) (*pipeline.Snapshot, bool) {
	if !slices.Contains(s.models, model) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown model %q", model))
		return nil, false
	}
	snap, ok := s.snapshots.Get(model)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("model %q is not loaded yet", model))
		return nil, false
	}
	return snap, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
