package vaultrepo

import (
	"context"

	"github.com/goliatone/go-vault-export/vault"
)

// Spec captures repository query inputs.
type Spec struct {
	Resource string
	Params   map[string]string
}

// Repository streams records for a repository-backed export.
type Repository interface {
	Stream(ctx context.Context, spec Spec) (vault.RecordIterator, error)
}

// Source adapts a repository to a RecordSource.
type Source struct {
	Repo Repository
	Spec Spec
}

var _ vault.RecordSource = (*Source)(nil)

// NewSource creates a repository-backed RecordSource.
func NewSource(repo Repository, spec Spec) *Source {
	return &Source{Repo: repo, Spec: spec}
}

// Factory binds a repository for registry use. The "resource" parameter
// names the collection to stream; remaining parameters pass through to
// the repository.
func Factory(repo Repository) vault.SourceFactory {
	return func(params map[string]string) (vault.RecordSource, error) {
		resource := params["resource"]
		if resource == "" {
			return nil, vault.NewError(vault.KindValidation, "repo source requires a resource parameter", nil)
		}
		spec := Spec{Resource: resource}
		for key, value := range params {
			if key == "resource" {
				continue
			}
			if spec.Params == nil {
				spec.Params = make(map[string]string)
			}
			spec.Params[key] = value
		}
		return NewSource(repo, spec), nil
	}
}

// Open delegates to the repository stream method.
func (s *Source) Open(ctx context.Context) (vault.RecordIterator, error) {
	if s == nil || s.Repo == nil {
		return nil, vault.NewError(vault.KindValidation, "repository is required", nil)
	}
	return s.Repo.Stream(ctx, s.Spec)
}
