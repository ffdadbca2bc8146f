package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-vault-export/vault"
)

// RunExportHandler handles export runs.
type RunExportHandler struct {
	Service vault.Service
}

func NewRunExportHandler(svc vault.Service) *RunExportHandler {
	return &RunExportHandler{Service: svc}
}

func (h *RunExportHandler) Execute(ctx context.Context, msg RunExport) error {
	if h == nil || h.Service == nil {
		return errors.New("export service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	result, err := h.Service.Export(ctx, msg.Actor, msg.Request)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if msg.Result != nil {
		*msg.Result = *result
	}
	if res := gcmd.ResultFromContext[vault.Result](ctx); res != nil {
		res.Store(*result)
	}
	return nil
}

// DeleteRunHandler deletes run records.
type DeleteRunHandler struct {
	Service vault.Service
}

func NewDeleteRunHandler(svc vault.Service) *DeleteRunHandler {
	return &DeleteRunHandler{Service: svc}
}

func (h *DeleteRunHandler) Execute(ctx context.Context, msg DeleteRun) error {
	if h == nil || h.Service == nil {
		return errors.New("export service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	return h.Service.Delete(ctx, msg.Actor, msg.ExportID)
}

// PruneRunsHandler removes run records outside retention.
type PruneRunsHandler struct {
	Service vault.Service
	// Policy applies when the message carries a zero policy.
	Policy vault.RetentionPolicy
	Config gcmd.HandlerConfig
}

func NewPruneRunsHandler(svc vault.Service, policy vault.RetentionPolicy) *PruneRunsHandler {
	return &PruneRunsHandler{Service: svc, Policy: policy}
}

func (h *PruneRunsHandler) Execute(ctx context.Context, msg PruneRuns) error {
	if h == nil || h.Service == nil {
		return errors.New("export service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	policy := msg.Policy
	if policy.MaxAge <= 0 && policy.MaxCount <= 0 {
		policy = h.Policy
	}
	count, err := h.Service.PruneHistory(ctx, policy)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = count
	}
	if res := gcmd.ResultFromContext[int](ctx); res != nil {
		res.Store(count)
	}
	return nil
}

func (h *PruneRunsHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), PruneRuns{})
	}
}

func (h *PruneRunsHandler) CronOptions() gcmd.HandlerConfig {
	return h.Config
}
