package query

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-vault-export/vault"
)

// RunStatus requests a run status record.
type RunStatus struct {
	Actor    vault.Actor
	ExportID string
}

func (RunStatus) Type() string { return "vault:run:status" }

func (msg RunStatus) Validate() error {
	if msg.Actor.ID == "" {
		return errors.New("actor ID is required", errors.CategoryValidation).
			WithTextCode("ACTOR_REQUIRED")
	}
	if msg.ExportID == "" {
		return errors.New("export ID is required", errors.CategoryValidation).
			WithTextCode("EXPORT_ID_REQUIRED")
	}
	return nil
}

// RunHistory requests run history.
type RunHistory struct {
	Actor  vault.Actor
	Filter vault.RunFilter
}

func (RunHistory) Type() string { return "vault:run:history" }

func (msg RunHistory) Validate() error {
	if msg.Actor.ID == "" {
		return errors.New("actor ID is required", errors.CategoryValidation).
			WithTextCode("ACTOR_REQUIRED")
	}
	return nil
}

// PreviewNote requests a rendered preview without writing anything.
type PreviewNote struct {
	Request vault.ExportRequest
}

func (PreviewNote) Type() string { return "vault:preview" }

func (msg PreviewNote) Validate() error {
	if msg.Request.Config.VaultPath == "" {
		return errors.New("vault path is required", errors.CategoryValidation).
			WithTextCode("VAULT_PATH_REQUIRED")
	}
	return nil
}
