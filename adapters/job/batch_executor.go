package vaultjob

import (
	"context"

	"github.com/goliatone/go-vault-export/command"
	"github.com/goliatone/go-vault-export/vault"
)

// NewBatchExecutor builds a BatchExecutor that runs exports
// synchronously through the job task.
func NewBatchExecutor(task *ExportTask, builder *MessageBuilder) command.BatchExecutor {
	return command.BatchExecutorFunc(func(ctx context.Context, actor vault.Actor, req vault.ExportRequest) (*vault.Result, error) {
		if task == nil {
			return nil, vault.NewError(vault.KindInternal, "export task is nil", nil)
		}
		if builder == nil {
			return nil, vault.NewError(vault.KindConfig, "message builder not configured", nil)
		}

		result, err := builder.Build(ctx, actor, ScheduleRequest{Request: req})
		if err != nil {
			return nil, err
		}
		if result.Reused {
			return resultFromRecord(result.Record), nil
		}
		if result.Message == nil {
			return nil, vault.NewError(vault.KindValidation, "execution message is required", nil)
		}

		if err := task.Execute(ctx, result.Message); err != nil {
			return nil, err
		}
		if result.Signature != "" {
			_ = builder.StoreIdempotency(ctx, result.Signature, result.Record.ID)
		}

		if builder.tracker != nil {
			if record, serr := builder.tracker.Status(ctx, result.Record.ID); serr == nil {
				return resultFromRecord(record), nil
			}
		}
		return &vault.Result{ExportID: result.Record.ID, State: vault.StateDone}, nil
	})
}

// resultFromRecord rebuilds a result view from tracker state.
func resultFromRecord(record vault.RunRecord) *vault.Result {
	return &vault.Result{
		ExportID: record.ID,
		State:    record.State,
		Created:  record.Created,
		Updated:  record.Updated,
		Skipped:  record.Skipped,
		Failed:   record.Failed,
		Total:    record.Total,
	}
}
