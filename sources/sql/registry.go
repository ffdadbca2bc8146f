package vaultsql

import (
	"fmt"
	"sync"

	"github.com/goliatone/go-vault-export/vault"
)

// Definition registers a named query.
type Definition struct {
	Name  string
	Query string
	// Args are bound to the query placeholders on every execution.
	Args []any
}

// Registry stores named query definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a named query definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return vault.NewError(vault.KindValidation, "query name is required", nil)
	}
	if def.Query == "" {
		return vault.NewError(vault.KindValidation, "query string is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return vault.NewError(vault.KindValidation, fmt.Sprintf("query %q already registered", def.Name), nil)
	}
	r.defs[def.Name] = def
	return nil
}

// Resolve returns a query definition by name.
func (r *Registry) Resolve(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}
