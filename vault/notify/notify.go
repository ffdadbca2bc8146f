package notify

import "context"

// ExportDoneNotifier delivers export-done notifications.
type ExportDoneNotifier interface {
	Send(ctx context.Context, evt ExportDoneEvent) error
}

// ExportDoneEvent mirrors go-notifications OnReadyEvent, but stays in
// go-vault-export.
type ExportDoneEvent struct {
	Recipients       []string
	Channels         []string
	Locale           string
	TenantID         string
	ActorID          string
	ExportID         string
	VaultPath        string
	Folder           string
	Link             string
	Created          int
	Updated          int
	Skipped          int
	Failed           int
	Total            int
	Summary          string
	Message          string
	ChannelOverrides map[string]map[string]any
	Attachments      []NotificationAttachment
}

// NotificationAttachment captures file payloads for notifications.
type NotificationAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
	Size        int64
}
