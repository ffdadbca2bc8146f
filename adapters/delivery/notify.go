package vaultdelivery

import (
	"context"
	"strings"

	"github.com/goliatone/go-vault-export/vault"
	"github.com/goliatone/go-vault-export/vault/notify"
)

func (s *Service) shouldNotify(req Request) bool {
	if s == nil || s.notifier == nil {
		return false
	}
	return hasNotifyRequest(req.Notify)
}

func hasNotifyRequest(req NotificationRequest) bool {
	if len(req.Recipients) > 0 {
		return true
	}
	if len(req.Channels) > 0 {
		return true
	}
	if strings.TrimSpace(req.Message) != "" {
		return true
	}
	if len(req.ChannelOverrides) > 0 {
		return true
	}
	if len(req.Attachments) > 0 {
		return true
	}
	return false
}

func (s *Service) notify(ctx context.Context, req Request, record vault.RunRecord, result *vault.Result, link string, attachment *Attachment) error {
	if s == nil || s.notifier == nil {
		return nil
	}
	if !hasNotifyRequest(req.Notify) {
		return nil
	}

	evt := notify.ExportDoneEvent{
		Recipients:       req.Notify.Recipients,
		Channels:         normalizeNotifyChannels(req.Notify.Channels),
		Locale:           req.Notify.Locale,
		TenantID:         actorTenant(req.Actor),
		ActorID:          req.Actor.ID,
		ExportID:         record.ID,
		VaultPath:        record.VaultPath,
		Folder:           record.Folder,
		Link:             link,
		Created:          result.Created,
		Updated:          result.Updated,
		Skipped:          result.Skipped,
		Failed:           result.Failed,
		Total:            result.Total,
		Summary:          result.Summary(),
		Message:          req.Notify.Message,
		ChannelOverrides: req.Notify.ChannelOverrides,
		Attachments:      resolveNotifyAttachments(req.Notify, attachment, s.limits.MaxAttachmentSize, s.logger),
	}
	return s.notifier.Send(ctx, evt)
}

func normalizeNotifyChannels(channels []string) []string {
	if len(channels) == 0 {
		return []string{"email"}
	}
	return channels
}

// actorTenant reads the tenant from the actor's detail bag.
func actorTenant(actor vault.Actor) string {
	if actor.Details == nil {
		return ""
	}
	raw, ok := actor.Details["tenant_id"]
	if !ok || raw == nil {
		return ""
	}
	tenant, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(tenant)
}

func resolveNotifyAttachments(req NotificationRequest, attachment *Attachment, maxSize int64, logger vault.Logger) []notify.NotificationAttachment {
	if len(req.Attachments) > 0 {
		return req.Attachments
	}
	if attachment == nil {
		return nil
	}
	size := attachment.Size
	if size == 0 {
		size = int64(len(attachment.Data))
	}
	if maxSize > 0 && size > maxSize {
		if logger != nil {
			logger.Infof("notification attachment skipped: size %d exceeds limit %d", size, maxSize)
		}
		return nil
	}
	return []notify.NotificationAttachment{{
		Filename:    attachment.Filename,
		ContentType: attachment.ContentType,
		Data:        attachment.Data,
		Size:        size,
	}}
}
