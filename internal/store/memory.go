package store

import (
	"context"
	"sync"

	"github.com/docpress/api/internal/model"
)

// MemoryStore is an in-memory RecordStore used when no jobs table is
// configured, and by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]model.JobRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]model.JobRecord)}
}

// Append writes one record.
func (s *MemoryStore) Append(ctx context.Context, record model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.JobID] = append(s.records[record.JobID], record)
	return nil
}

// Query returns a copy of every record written for the job.
func (s *MemoryStore) Query(ctx context.Context, jobID string) ([]model.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.JobRecord, len(s.records[jobID]))
	copy(out, s.records[jobID])
	return out, nil
}
