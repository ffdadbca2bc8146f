package vaultjob

import (
	"context"
	"errors"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-vault-export/vault"
	"github.com/google/uuid"
)

var errExecutionSkipped = errors.New("export execution skipped")

// MessageBuilderConfig configures message building for export runs.
type MessageBuilderConfig struct {
	Tracker          vault.RunTracker
	IdempotencyStore IdempotencyStore
	IdempotencyTTL   time.Duration
	TaskID           string
	TaskPath         string
	Config           job.Config
	IDGenerator      func() string
	Now              func() time.Time
	Logger           vault.Logger
}

// MessageBuilder builds execution messages for export runs. It assigns
// the export ID up front; the tracker row appears once execution
// starts, carrying the same ID.
type MessageBuilder struct {
	tracker          vault.RunTracker
	idempotencyStore IdempotencyStore
	idempotencyTTL   time.Duration
	taskID           string
	taskPath         string
	config           job.Config
	idGenerator      func() string
	now              func() time.Time
	logger           vault.Logger
}

// BuildResult captures the outcome of message building.
type BuildResult struct {
	Record    vault.RunRecord
	Message   *job.ExecutionMessage
	Signature string
	Reused    bool
}

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(cfg MessageBuilderConfig) *MessageBuilder {
	logger := cfg.Logger
	if logger == nil {
		logger = vault.NopLogger{}
	}
	taskID := cfg.TaskID
	if taskID == "" {
		taskID = DefaultExportTaskID
	}
	taskPath := cfg.TaskPath
	if taskPath == "" {
		taskPath = DefaultExportTaskPath
	}
	idGenerator := cfg.IDGenerator
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &MessageBuilder{
		tracker:          cfg.Tracker,
		idempotencyStore: cfg.IdempotencyStore,
		idempotencyTTL:   cfg.IdempotencyTTL,
		taskID:           taskID,
		taskPath:         taskPath,
		config:           cfg.Config,
		idGenerator:      idGenerator,
		now:              nowFn,
		logger:           logger,
	}
}

// Build prepares an execution message for a schedule request. The
// returned record is the queued stub until execution starts it.
func (b *MessageBuilder) Build(ctx context.Context, actor vault.Actor, req ScheduleRequest) (BuildResult, error) {
	if b == nil {
		return BuildResult{}, vault.NewError(vault.KindInternal, "message builder is nil", nil)
	}
	if actor.ID == "" {
		return BuildResult{}, vault.NewError(vault.KindValidation, "actor ID is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	queued := req.Request
	// The queue round-trips requests as JSON; live sources and
	// callbacks cannot ride along.
	queued.Progress = nil
	if queued.Source != nil {
		if req.SourceKey == "" {
			return BuildResult{}, vault.NewError(vault.KindValidation,
				"record sources cannot be enqueued; register a source factory and set SourceKey", nil)
		}
		queued.Source = nil
	}

	signature := ""
	if queued.IdempotencyKey != "" && b.idempotencyStore != nil {
		signature = buildSignature(queued.IdempotencyKey, actor, ScheduleRequest{
			Request:      queued,
			SourceKey:    req.SourceKey,
			SourceParams: req.SourceParams,
		})
		exportID, ok, err := b.idempotencyStore.Get(ctx, signature)
		if err != nil {
			return BuildResult{}, err
		}
		if ok {
			if record, reused := b.reusableRun(ctx, exportID); reused {
				return BuildResult{Record: record, Signature: signature, Reused: true}, nil
			}
		}
	}

	exportID := b.idGenerator()
	queued.ExportID = exportID

	payload := Payload{
		ExportID:     exportID,
		Actor:        actor,
		Request:      queued,
		SourceKey:    req.SourceKey,
		SourceParams: req.SourceParams,
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return BuildResult{}, err
	}

	msg := &job.ExecutionMessage{
		JobID:      b.taskID,
		ScriptPath: b.taskPath,
		Config:     b.config,
		Parameters: map[string]any{"payload": encoded},
	}
	if signature != "" {
		msg.IdempotencyKey = signature
		msg.DedupPolicy = job.DedupPolicyMerge
	}

	record := vault.RunRecord{
		ID:          exportID,
		VaultPath:   queued.Config.VaultPath,
		Folder:      queued.Config.Folder,
		State:       vault.StateNotStarted,
		RequestedBy: actor,
		CreatedAt:   b.now(),
	}
	return BuildResult{Record: record, Message: msg, Signature: signature}, nil
}

// BuildMessage returns an execution message or signals a no-op when the
// request was reused.
func (b *MessageBuilder) BuildMessage(ctx context.Context, actor vault.Actor, req ScheduleRequest) (*job.ExecutionMessage, error) {
	result, err := b.Build(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if result.Reused {
		return nil, errExecutionSkipped
	}
	if result.Message == nil {
		return nil, vault.NewError(vault.KindValidation, "execution message is required", nil)
	}
	return result.Message, nil
}

// StoreIdempotency records an idempotency signature after successful enqueue.
func (b *MessageBuilder) StoreIdempotency(ctx context.Context, signature, exportID string) error {
	if signature == "" || b == nil || b.idempotencyStore == nil {
		return nil
	}
	ttl := b.idempotencyTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return b.idempotencyStore.Set(ctx, signature, exportID, ttl)
}

// reusableRun reports whether a previously enqueued run can satisfy the
// request. A run the tracker does not know yet is still queued; a
// failed run is submitted again.
func (b *MessageBuilder) reusableRun(ctx context.Context, exportID string) (vault.RunRecord, bool) {
	if b.tracker == nil {
		return vault.RunRecord{ID: exportID, State: vault.StateNotStarted}, true
	}
	record, err := b.tracker.Status(ctx, exportID)
	if err != nil {
		if vault.KindFromError(err) == vault.KindNotFound {
			return vault.RunRecord{ID: exportID, State: vault.StateNotStarted}, true
		}
		return vault.RunRecord{}, false
	}
	if isReusableState(record.State) {
		return record, true
	}
	return vault.RunRecord{}, false
}

func isReusableState(state vault.RunState) bool {
	switch state {
	case vault.StateNotStarted, vault.StateTemplateResolved, vault.StateContainerReady,
		vault.StateProcessing, vault.StateDone:
		return true
	default:
		return false
	}
}
