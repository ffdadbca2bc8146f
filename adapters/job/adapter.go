package vaultjob

import (
	"context"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-vault-export/vault"
)

// Enqueuer delivers execution messages to go-job.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) error
}

// EnqueuerFunc adapts a function to an Enqueuer.
type EnqueuerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

func (f EnqueuerFunc) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if f == nil {
		return vault.NewError(vault.KindInternal, "enqueuer is nil", nil)
	}
	return f(ctx, msg)
}

// ScheduleRequest describes one queued export. Record sources do not
// serialize; SourceKey names a registered factory and SourceParams
// feed it at execution time.
type ScheduleRequest struct {
	Request      vault.ExportRequest
	SourceKey    string
	SourceParams map[string]string
}

// Config configures the go-job export scheduler.
type Config struct {
	Enqueuer         Enqueuer
	Tracker          vault.RunTracker
	IdempotencyStore IdempotencyStore
	IdempotencyTTL   time.Duration
	TaskID           string
	TaskPath         string
	JobConfig        job.Config
	IDGenerator      func() string
	Now              func() time.Time
	Logger           vault.Logger
}

// Scheduler enqueues export run jobs.
type Scheduler struct {
	enqueuer Enqueuer
	builder  *MessageBuilder
	logger   vault.Logger
}

// NewScheduler creates a new job scheduler adapter.
func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = vault.NopLogger{}
	}

	return &Scheduler{
		enqueuer: cfg.Enqueuer,
		builder: NewMessageBuilder(MessageBuilderConfig{
			Tracker:          cfg.Tracker,
			IdempotencyStore: cfg.IdempotencyStore,
			IdempotencyTTL:   cfg.IdempotencyTTL,
			TaskID:           cfg.TaskID,
			TaskPath:         cfg.TaskPath,
			Config:           cfg.JobConfig,
			IDGenerator:      cfg.IDGenerator,
			Now:              cfg.Now,
			Logger:           logger,
		}),
		logger: logger,
	}
}

// RequestExport enqueues an export run and returns its queued record.
// A request whose idempotency signature matches a live run returns
// that run instead of enqueueing a duplicate.
func (s *Scheduler) RequestExport(ctx context.Context, actor vault.Actor, req ScheduleRequest) (vault.RunRecord, error) {
	if s == nil {
		return vault.RunRecord{}, vault.NewError(vault.KindInternal, "scheduler is nil", nil)
	}
	if s.enqueuer == nil {
		return vault.RunRecord{}, vault.NewError(vault.KindConfig, "job enqueuer not configured", nil)
	}

	result, err := s.builder.Build(ctx, actor, req)
	if err != nil {
		return result.Record, err
	}
	if result.Reused {
		return result.Record, nil
	}

	if err := s.enqueuer.Enqueue(ctx, result.Message); err != nil {
		return result.Record, err
	}

	if err := s.builder.StoreIdempotency(ctx, result.Signature, result.Record.ID); err != nil {
		s.logger.Errorf("idempotency store set failed: %v", err)
	}

	return result.Record, nil
}
