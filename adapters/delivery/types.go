package vaultdelivery

import (
	"time"

	"github.com/goliatone/go-vault-export/vault"
	"github.com/goliatone/go-vault-export/vault/notify"
)

// DeliveryMode controls what a run summary carries.
type DeliveryMode string

const (
	// DeliveryLink includes a vault link pointing at the exported folder.
	DeliveryLink DeliveryMode = "link"
	// DeliveryDigest attaches a Markdown digest of the run.
	DeliveryDigest DeliveryMode = "digest"
)

// TargetKind identifies delivery destination type.
type TargetKind string

const (
	TargetEmail   TargetKind = "email"
	TargetWebhook TargetKind = "webhook"
)

// Message describes optional subject/body overrides for summaries.
type Message struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// EmailTarget configures email delivery.
type EmailTarget struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// WebhookTarget configures webhook delivery.
type WebhookTarget struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Target defines a destination for a run summary.
type Target struct {
	Kind    TargetKind    `json:"kind"`
	Email   EmailTarget   `json:"email,omitempty"`
	Webhook WebhookTarget `json:"webhook,omitempty"`
}

// Request describes a delivery: run the export, then send its summary
// to every target. SourceKey names a registered record source for
// requests that ride a queue or a schedule file; inline sources on the
// embedded export request only work for direct Deliver calls.
type Request struct {
	Actor        vault.Actor         `json:"actor"`
	Export       vault.ExportRequest `json:"export"`
	SourceKey    string              `json:"source_key,omitempty"`
	SourceParams map[string]string   `json:"source_params,omitempty"`
	Targets      []Target            `json:"targets"`
	Mode         DeliveryMode        `json:"mode"`
	Message      Message             `json:"message,omitempty"`
	Notify       NotificationRequest `json:"notify,omitempty"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
}

// NotificationRequest configures export-done notifications.
type NotificationRequest struct {
	Recipients       []string                        `json:"recipients,omitempty"`
	Channels         []string                        `json:"channels,omitempty"`
	Locale           string                          `json:"locale,omitempty"`
	Message          string                          `json:"message,omitempty"`
	ChannelOverrides map[string]map[string]any       `json:"channel_overrides,omitempty"`
	Attachments      []notify.NotificationAttachment `json:"attachments,omitempty"`
}

// Attachment captures file data for delivery.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
	Size        int64
}

// Result describes the outcome of a delivery request.
type Result struct {
	ExportID   string
	VaultPath  string
	Folder     string
	Created    int
	Updated    int
	Skipped    int
	Failed     int
	Total      int
	Link       string
	Attachment *Attachment
	Targets    int
	SentAt     time.Time
}
