package vaultdelivery

import (
	"context"

	"github.com/goliatone/go-vault-export/vault"
	job "github.com/goliatone/go-job"
)

// MessageBuilderConfig configures message building for scheduled deliveries.
type MessageBuilderConfig struct {
	TaskID          string
	TaskPath        string
	ExecutionConfig job.Config
	Logger          vault.Logger
}

// MessageBuilder builds execution messages for delivery requests.
type MessageBuilder struct {
	taskID   string
	taskPath string
	config   job.Config
	logger   vault.Logger
}

// NewMessageBuilder creates a new delivery message builder.
func NewMessageBuilder(cfg MessageBuilderConfig) *MessageBuilder {
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

	return &MessageBuilder{
		taskID:   taskID,
		taskPath: taskPath,
		config:   cfg.ExecutionConfig,
		logger:   logger,
	}
}

// Build creates an execution message for a delivery request.
func (b *MessageBuilder) Build(ctx context.Context, req Request) (*job.ExecutionMessage, error) {
	if b == nil {
		return nil, vault.NewError(vault.KindInternal, "message builder is nil", nil)
	}
	_ = ctx

	queued, err := sanitizeScheduledRequest(req)
	if err != nil {
		return nil, err
	}

	encoded, err := encodePayload(Payload{Request: queued})
	if err != nil {
		return nil, err
	}

	msg := &job.ExecutionMessage{
		JobID:      b.taskID,
		ScriptPath: b.taskPath,
		Config:     b.config,
		Parameters: map[string]any{"payload": encoded},
	}

	return msg, nil
}
