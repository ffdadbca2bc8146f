package vaultdelivery

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-vault-export/vault"
	"github.com/goliatone/go-vault-export/vault/notify"
)

const (
	DefaultMaxAttachmentSize = 1 * 1024 * 1024
	DefaultMaxTargets        = 20
	DefaultMaxRecipients     = 50
)

// Limits define operational bounds for delivery.
type Limits struct {
	MaxTargets        int
	MaxRecipients     int
	MaxAttachmentSize int64
}

// LinkBuilder renders an opener link for a completed run.
type LinkBuilder func(record vault.RunRecord) string

// Config configures delivery service behavior.
type Config struct {
	Service        vault.Service
	Sources        *vault.SourceRegistry
	EmailSender    EmailSender
	WebhookSender  WebhookSender
	LinkBuilder    LinkBuilder
	Logger         vault.Logger
	Limits         Limits
	Notifier       notify.ExportDoneNotifier
	NotifyFailHard bool
}

// Service runs an export and fans its summary out to delivery targets.
type Service struct {
	service        vault.Service
	sources        *vault.SourceRegistry
	emailSender    EmailSender
	webhookSender  WebhookSender
	linkBuilder    LinkBuilder
	logger         vault.Logger
	limits         Limits
	notifier       notify.ExportDoneNotifier
	notifyFailHard bool
	now            func() time.Time
}

var _ DeliveryHandler = (*Service)(nil)

// NewService creates a delivery service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = vault.NopLogger{}
	}

	limits := cfg.Limits
	if limits.MaxTargets == 0 {
		limits.MaxTargets = DefaultMaxTargets
	}
	if limits.MaxRecipients == 0 {
		limits.MaxRecipients = DefaultMaxRecipients
	}
	if limits.MaxAttachmentSize == 0 {
		limits.MaxAttachmentSize = DefaultMaxAttachmentSize
	}
	linkBuilder := cfg.LinkBuilder
	if linkBuilder == nil {
		linkBuilder = VaultLink
	}

	return &Service{
		service:        cfg.Service,
		sources:        cfg.Sources,
		emailSender:    cfg.EmailSender,
		webhookSender:  cfg.WebhookSender,
		linkBuilder:    linkBuilder,
		logger:         logger,
		limits:         limits,
		notifier:       cfg.Notifier,
		notifyFailHard: cfg.NotifyFailHard,
		now:            time.Now,
	}
}

// Deliver runs the export and sends its summary to every target.
func (s *Service) Deliver(ctx context.Context, req Request) (Result, error) {
	if s == nil {
		return Result{}, vault.NewError(vault.KindInternal, "delivery service is nil", nil)
	}
	if s.service == nil {
		return Result{}, vault.NewError(vault.KindConfig, "export service not configured", nil)
	}
	if err := s.validateRequest(req); err != nil {
		return Result{}, err
	}

	mode := req.Mode
	if mode == "" {
		mode = DeliveryLink
	}
	req.Mode = mode
	notifyRequested := s.shouldNotify(req)

	exportReq := req.Export
	exportReq.Progress = nil
	if key := strings.TrimSpace(req.SourceKey); key != "" {
		source, err := s.resolveSource(key, req.SourceParams)
		if err != nil {
			return Result{}, err
		}
		exportReq.Source = source
	}

	result, err := s.service.Export(ctx, req.Actor, exportReq)
	if err != nil {
		return Result{}, err
	}

	record := s.lookupRecord(ctx, req, result)

	link := ""
	if mode == DeliveryLink || notifyRequested {
		link = s.buildLink(record)
		if mode == DeliveryLink && link == "" {
			return Result{}, vault.NewError(vault.KindConfig, "vault link could not be built", nil)
		}
	}

	var attachment *Attachment
	if mode == DeliveryDigest {
		attachment, err = s.buildDigest(record, result)
		if err != nil {
			return Result{}, err
		}
	}

	subject := buildSubject(req, record)
	body := buildBody(req, record, result, link, attachment)
	if err := s.dispatchTargets(ctx, req, subject, body, link, attachment, record, result); err != nil {
		return Result{}, err
	}
	if notifyRequested {
		if err := s.notify(ctx, req, record, result, link, attachment); err != nil {
			if s.notifyFailHard {
				return Result{}, err
			}
			s.logger.Errorf("export done notification failed: %v", err)
		}
	}

	return Result{
		ExportID:   record.ID,
		VaultPath:  record.VaultPath,
		Folder:     record.Folder,
		Created:    result.Created,
		Updated:    result.Updated,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		Total:      result.Total,
		Link:       link,
		Attachment: attachment,
		Targets:    len(req.Targets),
		SentAt:     s.now(),
	}, nil
}

func (s *Service) validateRequest(req Request) error {
	if req.Actor.ID == "" {
		return vault.NewError(vault.KindValidation, "actor ID is required", nil)
	}
	if strings.TrimSpace(req.Export.Config.VaultPath) == "" {
		return vault.NewError(vault.KindValidation, "vault path is required", nil)
	}
	if len(req.Export.Records) == 0 && req.Export.Source == nil && strings.TrimSpace(req.SourceKey) == "" {
		return vault.NewError(vault.KindValidation, "export records or a record source are required", nil)
	}
	if len(req.Targets) == 0 {
		return vault.NewError(vault.KindValidation, "delivery targets are required", nil)
	}
	if s.limits.MaxTargets > 0 && len(req.Targets) > s.limits.MaxTargets {
		return vault.NewError(vault.KindValidation, "delivery targets limit exceeded", nil)
	}

	for _, target := range req.Targets {
		switch target.Kind {
		case TargetEmail:
			recipients := countRecipients(target.Email)
			if recipients == 0 {
				return vault.NewError(vault.KindValidation, "email recipients are required", nil)
			}
			if s.limits.MaxRecipients > 0 && recipients > s.limits.MaxRecipients {
				return vault.NewError(vault.KindValidation, "email recipients limit exceeded", nil)
			}
			if s.emailSender == nil {
				return vault.NewError(vault.KindConfig, "email sender not configured", nil)
			}
		case TargetWebhook:
			if strings.TrimSpace(target.Webhook.URL) == "" {
				return vault.NewError(vault.KindValidation, "webhook URL is required", nil)
			}
			if s.webhookSender == nil {
				return vault.NewError(vault.KindConfig, "webhook sender not configured", nil)
			}
		default:
			return vault.NewError(vault.KindValidation, "delivery target kind is invalid", nil)
		}
	}

	if hasNotifyRequest(req.Notify) {
		if len(req.Notify.Recipients) == 0 {
			return vault.NewError(vault.KindValidation, "notification recipients are required", nil)
		}
		if s.notifier == nil {
			return vault.NewError(vault.KindConfig, "notifier not configured", nil)
		}
	}

	return nil
}

func (s *Service) resolveSource(key string, params map[string]string) (vault.RecordSource, error) {
	if s.sources == nil {
		return nil, vault.NewError(vault.KindConfig, "source registry not configured", nil)
	}
	factory, ok := s.sources.Resolve(key)
	if !ok {
		return nil, vault.NewError(vault.KindNotFound, fmt.Sprintf("source %q not registered", key), nil)
	}
	source, err := factory(params)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, vault.NewError(vault.KindInternal, fmt.Sprintf("source %q returned nil", key), nil)
	}
	return source, nil
}

// lookupRecord prefers the tracker's view of the run and synthesizes one
// from the result when no tracker is configured.
func (s *Service) lookupRecord(ctx context.Context, req Request, result *vault.Result) vault.RunRecord {
	if result == nil {
		return vault.RunRecord{}
	}
	record, err := s.service.Status(ctx, req.Actor, result.ExportID)
	if err == nil {
		return record
	}
	s.logger.Debugf("run record lookup failed, summarizing from result: %v", err)

	cfg := req.Export.Config.WithDefaults()
	return vault.RunRecord{
		ID:          result.ExportID,
		VaultPath:   cfg.VaultPath,
		Folder:      cfg.Folder,
		Template:    cfg.Template,
		State:       result.State,
		Created:     result.Created,
		Updated:     result.Updated,
		Skipped:     result.Skipped,
		Failed:      result.Failed,
		Total:       result.Total,
		RequestedBy: req.Actor,
	}
}

func (s *Service) buildLink(record vault.RunRecord) string {
	if s.linkBuilder == nil {
		return VaultLink(record)
	}
	return s.linkBuilder(record)
}

// VaultLink builds an obsidian-style URI that opens the exported folder.
func VaultLink(record vault.RunRecord) string {
	path := strings.TrimSpace(record.VaultPath)
	if path == "" {
		return ""
	}
	name := filepath.Base(filepath.Clean(path))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	link := "obsidian://open?vault=" + encodeURIComponent(name)
	if folder := strings.TrimSpace(record.Folder); folder != "" {
		link += "&file=" + encodeURIComponent(folder)
	}
	return link
}

// encodeURIComponent escapes spaces as %20; obsidian URIs do not decode
// the query "+" form.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func (s *Service) buildDigest(record vault.RunRecord, result *vault.Result) (*Attachment, error) {
	data := []byte(renderDigest(record, result))
	if limit := s.limits.MaxAttachmentSize; limit > 0 && int64(len(data)) > limit {
		return nil, vault.NewError(vault.KindValidation, "digest size exceeds limit", nil)
	}
	return &Attachment{
		Filename:    digestFilename(record),
		ContentType: "text/markdown; charset=utf-8",
		Data:        data,
		Size:        int64(len(data)),
	}, nil
}

func digestFilename(record vault.RunRecord) string {
	id := strings.TrimSpace(record.ID)
	if id == "" {
		id = "run"
	}
	return fmt.Sprintf("export-%s.md", id)
}

// renderDigest produces the Markdown run digest attached in digest mode.
func renderDigest(record vault.RunRecord, result *vault.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Export %s\n\n", record.Folder)
	fmt.Fprintf(&b, "- Run: %s\n", record.ID)
	fmt.Fprintf(&b, "- Vault: %s\n", record.VaultPath)
	fmt.Fprintf(&b, "- Folder: %s\n", record.Folder)
	fmt.Fprintf(&b, "- State: %s\n\n", record.State)
	fmt.Fprintf(&b, "%d created, %d updated, %d skipped, %d failed, %d total.\n",
		result.Created, result.Updated, result.Skipped, result.Failed, result.Total)

	if len(result.Errors) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, recordErr := range result.Errors {
			fmt.Fprintf(&b, "- %s: %s\n", recordErr.Name, recordErr.Message)
		}
		if n := result.TruncatedErrors(); n > 0 {
			fmt.Fprintf(&b, "- and %d more records not listed\n", n)
		}
	}
	return b.String()
}

func countRecipients(target EmailTarget) int {
	return len(target.To) + len(target.Cc) + len(target.Bcc)
}

func buildSubject(req Request, record vault.RunRecord) string {
	if strings.TrimSpace(req.Message.Subject) != "" {
		return req.Message.Subject
	}
	return fmt.Sprintf("Export finished: %s", record.Folder)
}

func buildBody(req Request, record vault.RunRecord, result *vault.Result, link string, attachment *Attachment) string {
	body := strings.TrimSpace(req.Message.Body)
	if body == "" {
		body = fmt.Sprintf("Your %s export finished.", record.Folder)
	}
	if summary := result.Summary(); summary != "" {
		body = strings.TrimSpace(body + "\n\n" + summary)
	}
	if link != "" {
		body = strings.TrimSpace(body + "\n\nOpen vault: " + link)
	}
	if attachment != nil {
		body = strings.TrimSpace(body + "\n\nDigest: " + attachment.Filename)
	}
	return body
}

func (s *Service) dispatchTargets(ctx context.Context, req Request, subject, body, link string, attachment *Attachment, record vault.RunRecord, result *vault.Result) error {
	var errs []error
	for _, target := range req.Targets {
		switch target.Kind {
		case TargetEmail:
			if err := s.sendEmail(ctx, target, subject, body, attachment); err != nil {
				errs = append(errs, err)
			}
		case TargetWebhook:
			if err := s.sendWebhook(ctx, req, target, link, attachment, record, result); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) == 1 {
		return errs[0]
	}
	if len(errs) > 1 {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Service) sendEmail(ctx context.Context, target Target, subject, body string, attachment *Attachment) error {
	if s.emailSender == nil {
		return vault.NewError(vault.KindConfig, "email sender not configured", nil)
	}
	msg := EmailMessage{
		To:         target.Email.To,
		Cc:         target.Email.Cc,
		Bcc:        target.Email.Bcc,
		ReplyTo:    target.Email.ReplyTo,
		Subject:    subject,
		Body:       body,
		Attachment: attachment,
	}
	return s.emailSender.Send(ctx, msg)
}

func (s *Service) sendWebhook(ctx context.Context, req Request, target Target, link string, attachment *Attachment, record vault.RunRecord, result *vault.Result) error {
	if s.webhookSender == nil {
		return vault.NewError(vault.KindConfig, "webhook sender not configured", nil)
	}

	payload := WebhookPayload{
		ExportID:  record.ID,
		VaultPath: record.VaultPath,
		Folder:    record.Folder,
		State:     record.State,
		Created:   result.Created,
		Updated:   result.Updated,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
		Total:     result.Total,
		Summary:   result.Summary(),
		Mode:      req.Mode,
		Link:      link,
		Metadata:  req.Metadata,
		Actor:     req.Actor,
		SentAt:    s.now(),
	}
	if attachment != nil {
		payload.Attachment = &WebhookAttachment{
			Filename:    attachment.Filename,
			ContentType: attachment.ContentType,
			Size:        attachment.Size,
			Data:        base64.StdEncoding.EncodeToString(attachment.Data),
		}
	}

	return s.webhookSender.Send(ctx, WebhookMessage{
		URL:     target.Webhook.URL,
		Method:  target.Webhook.Method,
		Headers: target.Webhook.Headers,
		Payload: payload,
	})
}
