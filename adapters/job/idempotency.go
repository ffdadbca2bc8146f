package vaultjob

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	vaultapi "github.com/goliatone/go-vault-export/adapters/api"
	"github.com/goliatone/go-vault-export/vault"
)

// IdempotencyStore stores idempotency keys.
type IdempotencyStore = vaultapi.IdempotencyStore

// MemoryIdempotencyStore stores idempotency keys in memory.
type MemoryIdempotencyStore = vaultapi.MemoryIdempotencyStore

// NewMemoryIdempotencyStore creates an in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return vaultapi.NewMemoryIdempotencyStore()
}

// buildSignature hashes everything that identifies a scheduled run,
// source identity included, so repeated submissions dedupe only when
// they would produce the same run.
func buildSignature(key string, actor vault.Actor, req ScheduleRequest) string {
	names := append([]string(nil), req.Request.Selection.Names...)
	sort.Strings(names)

	payload := signaturePayload{
		Key:          key,
		ActorID:      actor.ID,
		Config:       req.Request.Config,
		Selection:    vault.Selection{Mode: req.Request.Selection.Mode, Names: names},
		Records:      req.Request.Records,
		SourceKey:    req.SourceKey,
		SourceParams: req.SourceParams,
	}

	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("export:%x", sum[:])
}

type signaturePayload struct {
	Key          string            `json:"key"`
	ActorID      string            `json:"actor_id,omitempty"`
	Config       vault.Config      `json:"config"`
	Selection    vault.Selection   `json:"selection,omitempty"`
	Records      []vault.Record    `json:"records,omitempty"`
	SourceKey    string            `json:"source_key,omitempty"`
	SourceParams map[string]string `json:"source_params,omitempty"`
}
