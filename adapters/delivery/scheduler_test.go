package vaultdelivery

import (
	"context"
	"reflect"
	"testing"

	"github.com/goliatone/go-vault-export/vault"
	job "github.com/goliatone/go-job"
)

type enqueuerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

func (f enqueuerFunc) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if f == nil {
		return vault.NewError(vault.KindInternal, "enqueuer is nil", nil)
	}
	return f(ctx, msg)
}

func TestScheduler_RequestDelivery_DecodesPayload(t *testing.T) {
	handler := &captureDeliveryHandler{}
	task := NewTask(TaskConfig{Handler: handler})

	enqueuer := enqueuerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
		return task.Execute(ctx, msg)
	})

	scheduler := NewScheduler(SchedulerConfig{Enqueuer: enqueuer})
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

	if err := scheduler.RequestDelivery(context.Background(), req); err != nil {
		t.Fatalf("request delivery: %v", err)
	}
	if len(handler.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(handler.requests))
	}
	if !reflect.DeepEqual(handler.requests[0], req) {
		t.Fatalf("unexpected request payload")
	}
}

func TestScheduler_RequestDelivery_RejectsLiveSources(t *testing.T) {
	scheduler := NewScheduler(SchedulerConfig{
		Enqueuer: enqueuerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
			t.Error("enqueue should not be called")
			return nil
		}),
	})

	req := Request{
		Actor: vault.Actor{ID: "actor-1"},
		Export: vault.ExportRequest{
			Config: vault.Config{VaultPath: "/vaults/Main"},
			Source: stubSource{},
		},
		Targets: []Target{{Kind: TargetEmail, Email: EmailTarget{To: []string{"demo@example.com"}}}},
	}

	err := scheduler.RequestDelivery(context.Background(), req)
	if vault.KindFromError(err) != vault.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
