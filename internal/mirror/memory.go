package mirror

import (
	"context"
	"sort"
	"sync"

	"github.com/R3E-Network/attestation_layer/internal/registry"
)

// MemoryStore is an in-process Store, used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]registry.Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]registry.Record)}
}

// Upsert stores rec. The kind of an existing id never changes.
func (s *MemoryStore) Upsert(_ context.Context, rec registry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.ID]; ok {
		rec.Kind = existing.Kind
	}
	s.records[rec.ID] = rec
	return nil
}

// Get returns the record with id.
func (s *MemoryStore) Get(_ context.Context, id string) (registry.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return registry.Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns records matching q, newest first with id as tiebreak.
func (s *MemoryStore) List(_ context.Context, q Query) ([]registry.Record, error) {
	s.mu.RLock()
	out := make([]registry.Record, 0, len(s.records))
	for _, rec := range s.records {
		if q.Kind != "" && rec.Kind != q.Kind {
			continue
		}
		if q.Owner != "" && rec.Owner != q.Owner {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ci, cj := createdAt(out[i]), createdAt(out[j])
		if ci != cj {
			return ci > cj
		}
		return out[i].ID < out[j].ID
	})

	if q.Offset >= len(out) {
		return []registry.Record{}, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
