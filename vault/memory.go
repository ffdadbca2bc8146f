package vault

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore keeps documents in memory (test/dev only).
type MemoryStore struct {
	mu         sync.RWMutex
	containers map[string]map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{containers: make(map[string]map[string][]byte)}
}

// EnsureContainer creates the container when missing.
func (s *MemoryStore) EnsureContainer(ctx context.Context, container string) error {
	_ = ctx
	if container == "" {
		return NewError(KindValidation, "container is required", nil)
	}
	s.mu.Lock()
	if _, ok := s.containers[container]; !ok {
		s.containers[container] = make(map[string][]byte)
	}
	s.mu.Unlock()
	return nil
}

// Exists reports whether a document is present.
func (s *MemoryStore) Exists(ctx context.Context, container, name string) (bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs, ok := s.containers[container]
	if !ok {
		return false, nil
	}
	_, ok = docs[name]
	return ok, nil
}

// Create stores a new document. Creating over an existing name fails.
func (s *MemoryStore) Create(ctx context.Context, container, name string, content []byte) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.containers[container]
	if !ok {
		docs = make(map[string][]byte)
		s.containers[container] = docs
	}
	if _, exists := docs[name]; exists {
		return NewError(KindStorage, fmt.Sprintf("document %q already exists", name), nil)
	}
	docs[name] = append([]byte(nil), content...)
	return nil
}

// Update replaces an existing document.
func (s *MemoryStore) Update(ctx context.Context, container, name string, content []byte) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.containers[container]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("container %q not found", container), nil)
	}
	if _, exists := docs[name]; !exists {
		return NewError(KindNotFound, fmt.Sprintf("document %q not found", name), nil)
	}
	docs[name] = append([]byte(nil), content...)
	return nil
}

// Read returns a document's content.
func (s *MemoryStore) Read(ctx context.Context, container, name string) ([]byte, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs, ok := s.containers[container]
	if !ok {
		return nil, NewError(KindNotFound, fmt.Sprintf("container %q not found", container), nil)
	}
	content, ok := docs[name]
	if !ok {
		return nil, NewError(KindNotFound, fmt.Sprintf("document %q not found", name), nil)
	}
	return append([]byte(nil), content...), nil
}

// MemoryTracker stores run records in memory (test/dev only).
type MemoryTracker struct {
	mu      sync.RWMutex
	records map[string]RunRecord
	counter uint64
}

var (
	_ RunTracker    = (*MemoryTracker)(nil)
	_ RecordDeleter = (*MemoryTracker)(nil)
)

// NewMemoryTracker creates an in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{records: make(map[string]RunRecord)}
}

// Start creates a new run record.
func (t *MemoryTracker) Start(ctx context.Context, record RunRecord) (string, error) {
	_ = ctx
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.State == "" {
		record.State = StateNotStarted
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = record.CreatedAt
	}

	t.mu.Lock()
	t.records[record.ID] = record
	t.mu.Unlock()
	return record.ID, nil
}

// SetState updates the run state.
func (t *MemoryTracker) SetState(ctx context.Context, id string, state RunState) error {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	record.State = state
	t.records[id] = record
	return nil
}

// Complete stores the final counts for a run.
func (t *MemoryTracker) Complete(ctx context.Context, id string, result Result) error {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	record.State = result.State
	if record.State == "" {
		record.State = StateDone
	}
	record.Created = result.Created
	record.Updated = result.Updated
	record.Skipped = result.Skipped
	record.Failed = result.Failed
	record.Total = result.Total
	if result.Failed > 0 {
		record.ErrorSummary = fmt.Sprintf("%d of %d records failed", result.Failed, result.Total)
	}
	record.CompletedAt = time.Now()
	t.records[id] = record
	return nil
}

// Fail records a terminal failure.
func (t *MemoryTracker) Fail(ctx context.Context, id string, err error) error {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	record.State = StateFailed
	if err != nil {
		record.ErrorSummary = err.Error()
	}
	record.CompletedAt = time.Now()
	t.records[id] = record
	return nil
}

// Status returns a run record by ID.
func (t *MemoryTracker) Status(ctx context.Context, id string) (RunRecord, error) {
	_ = ctx
	t.mu.RLock()
	record, ok := t.records[id]
	t.mu.RUnlock()
	if !ok {
		return RunRecord{}, NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	return record, nil
}

// List returns run records matching a filter, newest first.
func (t *MemoryTracker) List(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	_ = ctx
	result := []RunRecord{}

	t.mu.RLock()
	for _, record := range t.records {
		if filter.VaultPath != "" && record.VaultPath != filter.VaultPath {
			continue
		}
		if filter.Folder != "" && record.Folder != filter.Folder {
			continue
		}
		if filter.State != "" && record.State != filter.State {
			continue
		}
		if !filter.Since.IsZero() && record.CreatedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && record.CreatedAt.After(filter.Until) {
			continue
		}
		result = append(result, record)
	}
	t.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []RunRecord{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Delete removes a run record.
func (t *MemoryTracker) Delete(ctx context.Context, id string) error {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[id]; !ok {
		return NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	delete(t.records, id)
	return nil
}

func (t *MemoryTracker) nextID() string {
	id := atomic.AddUint64(&t.counter, 1)
	return fmt.Sprintf("run-%d", id)
}
