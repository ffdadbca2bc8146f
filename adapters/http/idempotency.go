package vaulthttp

import vaultapi "github.com/goliatone/go-vault-export/adapters/api"

// IdempotencyStore stores idempotency keys.
type IdempotencyStore = vaultapi.IdempotencyStore

// MemoryIdempotencyStore stores idempotency keys in memory.
type MemoryIdempotencyStore = vaultapi.MemoryIdempotencyStore

// NewMemoryIdempotencyStore creates an in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return vaultapi.NewMemoryIdempotencyStore()
}
