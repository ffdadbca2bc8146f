package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-vault-export/vault"
)

// RunStatusHandler returns a single run record.
type RunStatusHandler struct {
	Service vault.Service
}

func NewRunStatusHandler(svc vault.Service) *RunStatusHandler {
	return &RunStatusHandler{Service: svc}
}

func (h *RunStatusHandler) Query(ctx context.Context, msg RunStatus) (vault.RunRecord, error) {
	if h == nil || h.Service == nil {
		return vault.RunRecord{}, errors.New("export service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	return h.Service.Status(ctx, msg.Actor, msg.ExportID)
}

// RunHistoryHandler returns run history.
type RunHistoryHandler struct {
	Service vault.Service
}

func NewRunHistoryHandler(svc vault.Service) *RunHistoryHandler {
	return &RunHistoryHandler{Service: svc}
}

func (h *RunHistoryHandler) Query(ctx context.Context, msg RunHistory) ([]vault.RunRecord, error) {
	if h == nil || h.Service == nil {
		return nil, errors.New("export service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	return h.Service.History(ctx, msg.Actor, msg.Filter)
}

// PreviewNoteHandler renders a preview for the first record.
type PreviewNoteHandler struct {
	Service vault.Service
}

func NewPreviewNoteHandler(svc vault.Service) *PreviewNoteHandler {
	return &PreviewNoteHandler{Service: svc}
}

func (h *PreviewNoteHandler) Query(ctx context.Context, msg PreviewNote) (vault.Preview, error) {
	if h == nil || h.Service == nil {
		return vault.Preview{}, errors.New("export service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	return h.Service.Preview(ctx, msg.Request)
}
