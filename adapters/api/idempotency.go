package vaultapi

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-vault-export/vault"
)

// IdempotencyStore stores idempotency keys.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, exportID string, ttl time.Duration) error
}

// MemoryIdempotencyStore stores idempotency keys in memory.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]idempotencyEntry
	clock   func() time.Time
}

type idempotencyEntry struct {
	exportID  string
	expiresAt time.Time
}

// NewMemoryIdempotencyStore creates an in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]idempotencyEntry),
		clock:   time.Now,
	}
}

// Get returns the export ID for an idempotency key.
func (s *MemoryIdempotencyStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	if s == nil {
		return "", false, vault.NewError(vault.KindInternal, "idempotency store is nil", nil)
	}
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.exportID, true, nil
}

// Set stores the export ID for an idempotency key.
func (s *MemoryIdempotencyStore) Set(ctx context.Context, key, exportID string, ttl time.Duration) error {
	_ = ctx
	if s == nil {
		return vault.NewError(vault.KindInternal, "idempotency store is nil", nil)
	}
	if key == "" {
		return vault.NewError(vault.KindValidation, "idempotency key is required", nil)
	}
	if exportID == "" {
		return vault.NewError(vault.KindValidation, "export ID is required", nil)
	}
	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = idempotencyEntry{exportID: exportID, expiresAt: expires}
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdempotencyStore) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

// buildIdempotencyKey hashes everything that identifies a submission so
// two requests dedupe only when key, actor, and request all match.
func buildIdempotencyKey(key string, actor vault.Actor, req DecodedRequest) string {
	names := append([]string(nil), req.Export.Selection.Names...)
	sort.Strings(names)

	payload := idempotencyPayload{
		Key:          key,
		ActorID:      actor.ID,
		Config:       req.Export.Config,
		Selection:    vault.Selection{Mode: req.Export.Selection.Mode, Names: names},
		Records:      req.Export.Records,
		SourceKey:    req.SourceKey,
		SourceParams: req.SourceParams,
	}

	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("export:%x", sum[:])
}

type idempotencyPayload struct {
	Key          string            `json:"key"`
	ActorID      string            `json:"actor_id,omitempty"`
	Config       vault.Config      `json:"config"`
	Selection    vault.Selection   `json:"selection,omitempty"`
	Records      []vault.Record    `json:"records,omitempty"`
	SourceKey    string            `json:"source_key,omitempty"`
	SourceParams map[string]string `json:"source_params,omitempty"`
}
