package vaulthttp

import (
	"context"

	errorslib "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vault-export/vault"
)

type actorContextKey struct{}

// WithActor stores an actor in context for HTTP handlers.
func WithActor(ctx context.Context, actor vault.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ContextActorProvider reads actors from request contexts.
type ContextActorProvider struct {
	Key any
}

// FromContext returns the actor stored in context. A missing actor is
// an authorization failure.
func (p ContextActorProvider) FromContext(ctx context.Context) (vault.Actor, error) {
	key := p.Key
	if key == nil {
		key = actorContextKey{}
	}
	actor, ok := ctx.Value(key).(vault.Actor)
	if !ok {
		return vault.Actor{}, errorslib.New("actor not found in context", errorslib.CategoryAuthz).WithTextCode("authz")
	}
	return actor, nil
}

// StaticActorProvider always returns the configured actor.
type StaticActorProvider struct {
	Actor vault.Actor
}

// FromContext returns the configured actor.
func (p StaticActorProvider) FromContext(ctx context.Context) (vault.Actor, error) {
	_ = ctx
	return p.Actor, nil
}
