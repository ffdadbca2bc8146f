package vaultjob

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command/dispatcher"
	job "github.com/goliatone/go-job"
	vaultcmd "github.com/goliatone/go-vault-export/command"
	"github.com/goliatone/go-vault-export/vault"
)

func TestExportTask_GetHandler_BuildsMessageAndExecutes(t *testing.T) {
	svc, tracker, _ := newTestService(t)

	sub := dispatcher.SubscribeCommand(vaultcmd.NewRunExportHandler(svc))
	defer sub.Unsubscribe()

	builder := NewMessageBuilder(MessageBuilderConfig{Tracker: tracker})

	actor := vault.Actor{ID: "actor-1"}
	req := ScheduleRequest{
		Request: vault.ExportRequest{
			Config:  vault.Config{VaultPath: "/vault", Folder: "Books"},
			Records: []vault.Record{{"title": "Dune", "author": "Frank Herbert"}},
		},
	}

	var exportID string
	task := NewExportTask(TaskConfig{
		MessageBuilder: func(ctx context.Context) (*job.ExecutionMessage, error) {
			result, err := builder.Build(ctx, actor, req)
			if err != nil {
				return nil, err
			}
			exportID = result.Record.ID
			return result.Message, nil
		},
	})

	if err := task.GetHandler()(); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if exportID == "" {
		t.Fatalf("expected export id to be set")
	}

	status, err := svc.Status(context.Background(), actor, exportID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != vault.StateDone {
		t.Fatalf("expected done state, got %s", status.State)
	}
}

func TestExportTask_ResolvesRegisteredSource(t *testing.T) {
	sources := vault.NewSourceRegistry()
	var factoryCalls int
	if err := sources.Register("stub", func(params map[string]string) (vault.RecordSource, error) {
		factoryCalls++
		if params["folder"] != "Books" {
			t.Errorf("expected folder param, got %q", params["folder"])
		}
		return &sliceSource{records: []vault.Record{{"title": "Dune"}}}, nil
	}); err != nil {
		t.Fatalf("register source: %v", err)
	}

	var got vaultcmd.RunExport
	task := NewExportTask(TaskConfig{
		Sources: sources,
		Dispatch: func(ctx context.Context, msg vaultcmd.RunExport) error {
			_ = ctx
			got = msg
			return nil
		},
	})

	payload := Payload{
		ExportID:     "exp-9",
		Actor:        vault.Actor{ID: "actor-1"},
		Request:      vault.ExportRequest{Config: vault.Config{VaultPath: "/vault"}},
		SourceKey:    "stub",
		SourceParams: map[string]string{"folder": "Books"},
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	if err := task.Execute(context.Background(), &job.ExecutionMessage{
		Parameters: map[string]any{"payload": encoded},
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if factoryCalls != 1 {
		t.Fatalf("expected 1 factory call, got %d", factoryCalls)
	}
	if got.Request.Source == nil {
		t.Fatalf("expected resolved source on request")
	}
	if got.Request.ExportID != "exp-9" {
		t.Fatalf("expected export id exp-9, got %q", got.Request.ExportID)
	}
	if got.Actor.ID != "actor-1" {
		t.Fatalf("expected actor-1, got %q", got.Actor.ID)
	}
}

func TestExportTask_UnknownSourceFails(t *testing.T) {
	task := NewExportTask(TaskConfig{
		Sources: vault.NewSourceRegistry(),
		Dispatch: func(ctx context.Context, msg vaultcmd.RunExport) error {
			_ = ctx
			_ = msg
			t.Error("dispatch should not run")
			return nil
		},
	})

	payload := Payload{
		ExportID:  "exp-1",
		Actor:     vault.Actor{ID: "actor-1"},
		SourceKey: "missing",
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	err = task.Execute(context.Background(), &job.ExecutionMessage{
		Parameters: map[string]any{"payload": encoded},
	})

	var exportErr *vault.ExportError
	if !errors.As(err, &exportErr) || exportErr.Kind != vault.KindNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestMessageBuilder_BuildMessageSkipsReusedRuns(t *testing.T) {
	builder := NewMessageBuilder(MessageBuilderConfig{
		Tracker:          vault.NewMemoryTracker(),
		IdempotencyStore: NewMemoryIdempotencyStore(),
	})
	actor := vault.Actor{ID: "actor-1"}
	req := ScheduleRequest{
		Request: vault.ExportRequest{
			Config:         vault.Config{VaultPath: "/vault", Folder: "Books"},
			Records:        []vault.Record{{"title": "Dune"}},
			IdempotencyKey: "abc123",
		},
	}

	first, err := builder.Build(context.Background(), actor, req)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if first.Message == nil || first.Signature == "" {
		t.Fatalf("expected message and signature on first build")
	}
	if err := builder.StoreIdempotency(context.Background(), first.Signature, first.Record.ID); err != nil {
		t.Fatalf("store idempotency: %v", err)
	}

	if _, err := builder.BuildMessage(context.Background(), actor, req); !errors.Is(err, errExecutionSkipped) {
		t.Fatalf("expected skipped execution, got %v", err)
	}
}

func TestMessageBuilder_RejectsLiveSources(t *testing.T) {
	builder := NewMessageBuilder(MessageBuilderConfig{})

	_, err := builder.Build(context.Background(), vault.Actor{ID: "actor-1"}, ScheduleRequest{
		Request: vault.ExportRequest{
			Config: vault.Config{VaultPath: "/vault"},
			Source: &sliceSource{},
		},
	})

	var exportErr *vault.ExportError
	if !errors.As(err, &exportErr) || exportErr.Kind != vault.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
