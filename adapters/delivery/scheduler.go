package vaultdelivery

import (
	"context"
	"strings"

	"github.com/goliatone/go-vault-export/vault"
	job "github.com/goliatone/go-job"
)

const (
	DefaultDeliveryTaskID   = "vault:deliver"
	DefaultDeliveryTaskPath = "vault:deliver"
)

// Enqueuer delivers execution messages to go-job.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) error
}

// SchedulerConfig configures the delivery scheduler.
type SchedulerConfig struct {
	Enqueuer Enqueuer
	TaskID   string
	TaskPath string
	Logger   vault.Logger
}

// Scheduler enqueues scheduled delivery jobs.
type Scheduler struct {
	enqueuer Enqueuer
	taskID   string
	taskPath string
	logger   vault.Logger
}

// NewScheduler creates a new delivery scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = vault.NopLogger{}
	}
	taskID := cfg.TaskID
	if taskID == "" {
		taskID = DefaultDeliveryTaskID
	}
	taskPath := cfg.TaskPath
	if taskPath == "" {
		taskPath = DefaultDeliveryTaskPath
	}

	return &Scheduler{
		enqueuer: cfg.Enqueuer,
		taskID:   taskID,
		taskPath: taskPath,
		logger:   logger,
	}
}

// RequestDelivery enqueues a scheduled delivery.
func (s *Scheduler) RequestDelivery(ctx context.Context, req Request) error {
	if s == nil {
		return vault.NewError(vault.KindInternal, "scheduler is nil", nil)
	}
	if s.enqueuer == nil {
		return vault.NewError(vault.KindConfig, "job enqueuer not configured", nil)
	}

	queued, err := sanitizeScheduledRequest(req)
	if err != nil {
		return err
	}

	encoded, err := encodePayload(Payload{Request: queued})
	if err != nil {
		return err
	}

	msg := &job.ExecutionMessage{
		JobID:      s.taskID,
		ScriptPath: s.taskPath,
		Parameters: map[string]any{"payload": encoded},
	}

	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		return vault.NewError(vault.KindExternal, "enqueue delivery failed", err)
	}
	return nil
}

// sanitizeScheduledRequest strips fields that cannot ride the queue.
// Live record sources must go through SourceKey so the executing side
// rebuilds them from the registry.
func sanitizeScheduledRequest(req Request) (Request, error) {
	if req.Export.Source != nil && strings.TrimSpace(req.SourceKey) == "" {
		return Request{}, vault.NewError(vault.KindValidation,
			"record sources cannot be enqueued; register a source factory and set SourceKey", nil)
	}
	req.Export.Source = nil
	req.Export.Progress = nil
	return req, nil
}
