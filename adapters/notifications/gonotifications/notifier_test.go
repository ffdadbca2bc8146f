package gonotifications

import (
	"context"
	"testing"

	"github.com/goliatone/go-notifications/pkg/onready"
	"github.com/goliatone/go-vault-export/vault/notify"
)

type captureNotifier struct {
	event onready.OnReadyEvent
}

func (c *captureNotifier) Send(ctx context.Context, evt onready.OnReadyEvent) error {
	_ = ctx
	c.event = evt
	return nil
}

func TestNotifier_SendMapsFields(t *testing.T) {
	capture := &captureNotifier{}
	notifier := NewNotifier(capture)

	err := notifier.Send(context.Background(), notify.ExportDoneEvent{
		Recipients: []string{"user-1"},
		Channels:   []string{"email"},
		Locale:     "en",
		TenantID:   "tenant-1",
		ActorID:    "actor-1",
		ExportID:   "exp-1",
		VaultPath:  "/vaults/Main",
		Folder:     "Books",
		Link:       "obsidian://open?vault=Main&file=Books",
		Created:    10,
		Updated:    2,
		Total:      12,
		Summary:    "export done: 10 created, 2 updated, 0 skipped, 0 failed, 12 total",
		ChannelOverrides: map[string]map[string]any{
			"email": {"cta_label": "Open vault"},
		},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if capture.event.FileName != "Books" {
		t.Fatalf("expected filename Books, got %s", capture.event.FileName)
	}
	if capture.event.URL != "obsidian://open?vault=Main&file=Books" {
		t.Fatalf("expected vault link, got %s", capture.event.URL)
	}
	if capture.event.TenantID != "tenant-1" {
		t.Fatalf("expected tenant tenant-1, got %s", capture.event.TenantID)
	}
	if capture.event.Format != "md" {
		t.Fatalf("expected md format, got %s", capture.event.Format)
	}
	if capture.event.Rows != 12 {
		t.Fatalf("expected 12 rows, got %d", capture.event.Rows)
	}
	if capture.event.Message == "" {
		t.Fatalf("expected message from summary")
	}
}

func TestNotifier_SendPrefersExplicitMessage(t *testing.T) {
	capture := &captureNotifier{}
	notifier := NewNotifier(capture)

	err := notifier.Send(context.Background(), notify.ExportDoneEvent{
		Recipients: []string{"user-1"},
		Message:    "Your reading list is synced.",
		Summary:    "export done: 1 created",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if capture.event.Message != "Your reading list is synced." {
		t.Fatalf("expected explicit message, got %s", capture.event.Message)
	}
	if capture.event.FileName != "export" {
		t.Fatalf("expected fallback filename, got %s", capture.event.FileName)
	}
}
