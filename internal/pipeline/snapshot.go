package pipeline

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nextstrain/forecasts-ncov/internal/domain"
)

// snapshotNamespace scopes snapshot ids so they never collide with other v5 ids.
var snapshotNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://nextstrain.org/forecasts-ncov/snapshots"))

// Snapshot is one transformed model result as served and published.
type Snapshot struct {
	ID        string            `json:"id"`
	Model     string            `json:"model"`
	FetchedAt time.Time         `json:"fetchedAt"`
	Data      *domain.ModelData `json:"-"`
}

// NewSnapshot wraps data with a content-derived id: the same model output
// always yields the same id.
func NewSnapshot(model string, data *domain.ModelData, fetchedAt time.Time) (*Snapshot, error) {
	id, err := SnapshotID(model, data)
	if err != nil {
		return nil, err
	}
	return &Snapshot{ID: id, Model: model, FetchedAt: fetchedAt, Data: data}, nil
}

// SnapshotID is a UUIDv5 over the model name and the canonical JSON of data.
func SnapshotID(model string, data *domain.ModelData) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode %s snapshot: %w", model, err)
	}
	name := make([]byte, 0, len(model)+1+len(b))
	name = append(name, model...)
	name = append(name, 0)
	name = append(name, b...)
	return uuid.NewSHA1(snapshotNamespace, name).String(), nil
}

// Store holds the latest snapshot per model. A snapshot is swapped in whole,
// so readers never see a partially updated model.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{snaps: make(map[string]*Snapshot)}
}

// Get returns the latest snapshot for model.
func (s *Store) Get(model string) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[model]
	return snap, ok
}

// List returns the latest snapshots ordered by model name.
func (s *Store) List() []*Snapshot {
	s.mu.RLock()
	out := make([]*Snapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, snap)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Snapshot) int {
		return strings.Compare(a.Model, b.Model)
	})
	return out
}

// Put replaces the snapshot for snap.Model.
func (s *Store) Put(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Model] = snap
}
