package gonotifications

import (
	"context"
	"strings"

	"github.com/goliatone/go-notifications/pkg/onready"
	"github.com/goliatone/go-vault-export/vault"
	"github.com/goliatone/go-vault-export/vault/notify"
)

// Notifier adapts go-notifications OnReadyNotifier to vault exports.
type Notifier struct {
	delegate onready.OnReadyNotifier
}

// NewNotifier wraps a go-notifications notifier.
func NewNotifier(delegate onready.OnReadyNotifier) *Notifier {
	return &Notifier{delegate: delegate}
}

// Send forwards the event to the underlying go-notifications notifier.
// The exported folder stands in for the ready file and the vault link
// for the download URL.
func (n *Notifier) Send(ctx context.Context, evt notify.ExportDoneEvent) error {
	if n == nil || n.delegate == nil {
		return vault.NewError(vault.KindConfig, "go-notifications notifier not configured", nil)
	}

	payload := onready.OnReadyEvent{
		Recipients:       evt.Recipients,
		Locale:           evt.Locale,
		TenantID:         evt.TenantID,
		ActorID:          evt.ActorID,
		Channels:         evt.Channels,
		FileName:         folderName(evt),
		Format:           "md",
		URL:              evt.Link,
		Rows:             evt.Total,
		Message:          eventMessage(evt),
		ChannelOverrides: evt.ChannelOverrides,
	}

	return n.delegate.Send(ctx, payload)
}

func folderName(evt notify.ExportDoneEvent) string {
	if folder := strings.TrimSpace(evt.Folder); folder != "" {
		return folder
	}
	return "export"
}

func eventMessage(evt notify.ExportDoneEvent) string {
	if msg := strings.TrimSpace(evt.Message); msg != "" {
		return msg
	}
	return evt.Summary
}
