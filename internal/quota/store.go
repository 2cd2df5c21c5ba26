package quota

import (
	"context"
	"fmt"
	"sync"
)

// Record is one client's counters for one calendar day.
type Record struct {
	DateKey string
	Analyze int
	Improve int
}

// Count returns the counter for class.
func (r *Record) Count(class Class) int {
	if r == nil {
		return 0
	}
	switch class {
	case ClassAnalyze:
		return r.Analyze
	case ClassImprove:
		return r.Improve
	default:
		return 0
	}
}

// Store holds quota records keyed by normalized client id.
//
// Implementations return copies; callers never mutate stored records directly.
type Store interface {
	// Get returns the record for key, or nil when none exists.
	Get(ctx context.Context, key string) (*Record, error)
	// Reset replaces the record for key with zeroed counters for dateKey.
	Reset(ctx context.Context, key, dateKey string) (*Record, error)
	// Increment adds one to the class counter and returns the updated record.
	Increment(ctx context.Context, key string, class Class) (*Record, error)
}

// MemoryStore is a process-local Store. Records are never evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Reset(_ context.Context, key, dateKey string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]Record)
	}
	rec := Record{DateKey: dateKey}
	m.records[key] = rec
	return &rec, nil
}

func (m *MemoryStore) Increment(_ context.Context, key string, class Class) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("no quota record for %q", key)
	}
	switch class {
	case ClassAnalyze:
		rec.Analyze++
	case ClassImprove:
		rec.Improve++
	default:
		return nil, fmt.Errorf("unknown quota class %q", class)
	}
	m.records[key] = rec
	return &rec, nil
}

// Len returns the number of tracked clients.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
