package vaultactivity

import (
	"context"
	"strings"

	"github.com/goliatone/go-users/activity"
	"github.com/goliatone/go-users/pkg/types"
	"github.com/goliatone/go-vault-export/vault"
	"github.com/google/uuid"
)

// Config configures the activity emitter adapter.
type Config struct {
	Sink       types.ActivitySink
	Channel    string
	ObjectType string
}

// Emitter adapts ChangeEmitter events into go-users activity records.
type Emitter struct {
	sink       types.ActivitySink
	channel    string
	objectType string
}

var _ vault.ChangeEmitter = (*Emitter)(nil)

// NewEmitter creates a new activity emitter.
func NewEmitter(cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = "vault-export"
	}
	objectType := strings.TrimSpace(cfg.ObjectType)
	if objectType == "" {
		objectType = "export"
	}
	return &Emitter{
		sink:       cfg.Sink,
		channel:    channel,
		objectType: objectType,
	}
}

// Emit logs export lifecycle events to the configured ActivitySink.
func (e *Emitter) Emit(ctx context.Context, evt vault.ChangeEvent) error {
	if e == nil {
		return vault.NewError(vault.KindInternal, "activity emitter is nil", nil)
	}
	if e.sink == nil {
		return vault.NewError(vault.KindConfig, "activity sink not configured", nil)
	}
	verb := strings.TrimSpace(evt.Name)
	if verb == "" {
		return vault.NewError(vault.KindValidation, "activity verb is required", nil)
	}
	objectID := strings.TrimSpace(evt.ExportID)
	if objectID == "" {
		return vault.NewError(vault.KindValidation, "activity object ID is required", nil)
	}

	meta := buildMetadata(evt)
	record, err := activity.BuildRecordFromUUID(
		parseUUID(evt.Actor.ID),
		verb,
		e.objectType,
		objectID,
		meta,
		activity.WithChannel(e.channel),
		activity.WithOccurredAt(evt.Timestamp),
		activity.WithTenant(detailUUID(evt.Actor, "tenant_id")),
		activity.WithOrg(detailUUID(evt.Actor, "workspace_id")),
	)
	if err != nil {
		return err
	}
	return e.sink.Log(ctx, record)
}

func buildMetadata(evt vault.ChangeEvent) map[string]any {
	meta := make(map[string]any, 4)
	if evt.VaultPath != "" {
		meta["vault_path"] = evt.VaultPath
	}
	if evt.Folder != "" {
		meta["folder"] = evt.Folder
	}
	for k, v := range evt.Metadata {
		meta[k] = v
	}
	return meta
}

// detailUUID reads a UUID-valued entry from the actor's detail bag.
func detailUUID(actor vault.Actor, key string) uuid.UUID {
	raw, ok := actor.Details[key]
	if !ok {
		return uuid.Nil
	}
	value, ok := raw.(string)
	if !ok {
		return uuid.Nil
	}
	return parseUUID(value)
}

func parseUUID(value string) uuid.UUID {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
