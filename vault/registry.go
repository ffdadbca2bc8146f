package vault

import (
	"fmt"
	"sync"
)

// TemplateRegistry stores named template bodies.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewTemplateRegistry creates an empty registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{templates: make(map[string]string)}
}

// Register adds a template body under a name.
func (r *TemplateRegistry) Register(name, body string) error {
	if name == "" {
		return NewError(KindValidation, "template name is required", nil)
	}
	if body == "" {
		return NewError(KindValidation, "template body is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[name]; exists {
		return NewError(KindValidation, fmt.Sprintf("template %q already registered", name), nil)
	}
	r.templates[name] = body
	return nil
}

// Resolve returns the template body for a name.
func (r *TemplateRegistry) Resolve(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	body, ok := r.templates[name]
	return body, ok
}

// SourceFactory creates a record source from string parameters.
type SourceFactory func(params map[string]string) (RecordSource, error)

// SourceRegistry stores record source factories.
type SourceRegistry struct {
	mu        sync.RWMutex
	factories map[string]SourceFactory
}

// NewSourceRegistry creates an empty registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{factories: make(map[string]SourceFactory)}
}

// Register adds a record source factory.
func (r *SourceRegistry) Register(key string, factory SourceFactory) error {
	if key == "" {
		return NewError(KindValidation, "source key is required", nil)
	}
	if factory == nil {
		return NewError(KindValidation, "source factory is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		return NewError(KindValidation, fmt.Sprintf("source %q already registered", key), nil)
	}
	r.factories[key] = factory
	return nil
}

// Resolve finds a record source factory by key.
func (r *SourceRegistry) Resolve(key string) (SourceFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[key]
	return factory, ok
}
