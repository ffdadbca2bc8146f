package command

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-vault-export/vault"
)

// RunExport runs an export for an actor.
type RunExport struct {
	Actor   vault.Actor
	Request vault.ExportRequest
	Result  *vault.Result
}

func (RunExport) Type() string { return "vault:export" }

func (msg RunExport) Validate() error {
	if msg.Actor.ID == "" {
		return errors.New("actor ID is required", errors.CategoryValidation).
			WithTextCode("ACTOR_REQUIRED")
	}
	if msg.Request.Config.VaultPath == "" {
		return errors.New("vault path is required", errors.CategoryValidation).
			WithTextCode("VAULT_PATH_REQUIRED")
	}
	return nil
}

// DeleteRun deletes a run record.
type DeleteRun struct {
	Actor    vault.Actor
	ExportID string
}

func (DeleteRun) Type() string { return "vault:run:delete" }

func (msg DeleteRun) Validate() error {
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

// PruneRuns removes run records outside the retention policy. A zero
// Policy falls back to the handler's configured policy.
type PruneRuns struct {
	Policy vault.RetentionPolicy
	Result *int
}

func (PruneRuns) Type() string { return "vault:runs:prune" }

func (PruneRuns) Validate() error { return nil }
