package vaultdelivery

import (
	"context"
	"reflect"
	"testing"

	"github.com/goliatone/go-vault-export/vault"
	job "github.com/goliatone/go-job"
)

type captureDeliveryHandler struct {
	requests []Request
}

func (h *captureDeliveryHandler) Deliver(ctx context.Context, req Request) (Result, error) {
	_ = ctx
	h.requests = append(h.requests, req)
	return Result{}, nil
}

func TestTask_GetHandler_UsesBuilder(t *testing.T) {
	handler := &captureDeliveryHandler{}
	req := Request{
		Actor: vault.Actor{ID: "actor-1"},
		Export: vault.ExportRequest{
			Config:  vault.Config{VaultPath: "/vaults/Main", Folder: "Books"},
			Records: []vault.Record{{"title": "Dune"}},
		},
		Targets: []Target{{
			Kind:  TargetEmail,
			Email: EmailTarget{To: []string{"demo@example.com"}},
		}},
	}

	encoded, err := encodePayload(Payload{Request: req})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	task := NewTask(TaskConfig{
		Handler: handler,
		MessageBuilder: func(ctx context.Context) (*job.ExecutionMessage, error) {
			_ = ctx
			return &job.ExecutionMessage{
				JobID:      DefaultDeliveryTaskID,
				ScriptPath: DefaultDeliveryTaskPath,
				Parameters: map[string]any{"payload": encoded},
			}, nil
		},
	})

	if err := task.GetHandler()(); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(handler.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(handler.requests))
	}
	if !reflect.DeepEqual(handler.requests[0], req) {
		t.Fatalf("unexpected request payload")
	}
}

func TestTask_GetHandler_MissingBuilder(t *testing.T) {
	task := NewTask(TaskConfig{Handler: &captureDeliveryHandler{}})

	err := task.GetHandler()()
	if vault.KindFromError(err) != vault.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestMessageBuilder_BuildCarriesTaskRouting(t *testing.T) {
	builder := NewMessageBuilder(MessageBuilderConfig{TaskID: "vault:deliver-nightly"})

	req := Request{
		Actor: vault.Actor{ID: "actor-1"},
		Export: vault.ExportRequest{
			Config:  vault.Config{VaultPath: "/vaults/Main"},
			Records: []vault.Record{{"title": "Dune"}},
		},
		Targets: []Target{{Kind: TargetEmail, Email: EmailTarget{To: []string{"demo@example.com"}}}},
	}

	msg, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msg.JobID != "vault:deliver-nightly" {
		t.Fatalf("expected custom task id, got %q", msg.JobID)
	}
	if msg.ScriptPath != DefaultDeliveryTaskPath {
		t.Fatalf("expected default task path, got %q", msg.ScriptPath)
	}
	if _, ok := msg.Parameters["payload"]; !ok {
		t.Fatalf("expected payload parameter")
	}
}
