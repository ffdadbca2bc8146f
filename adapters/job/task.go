package vaultjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	errorslib "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
	vaultcmd "github.com/goliatone/go-vault-export/command"
	"github.com/goliatone/go-vault-export/vault"
)

const (
	DefaultExportTaskID   = "vault:export"
	DefaultExportTaskPath = "vault:export"
)

var (
	backoffRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
	backoffRandMu sync.Mutex
)

// Payload captures the job execution input. Record sources cannot ride
// the queue; SourceKey and SourceParams rebuild one through the source
// registry at execution time.
type Payload struct {
	ExportID     string              `json:"export_id"`
	Actor        vault.Actor         `json:"actor"`
	Request      vault.ExportRequest `json:"request"`
	SourceKey    string              `json:"source_key,omitempty"`
	SourceParams map[string]string   `json:"source_params,omitempty"`
}

// MessageBuilderFunc builds an execution message for non-queue paths.
type MessageBuilderFunc func(ctx context.Context) (*job.ExecutionMessage, error)

// RunDispatch dispatches an export run command.
type RunDispatch func(ctx context.Context, msg vaultcmd.RunExport) error

// TaskConfig configures the export task.
type TaskConfig struct {
	ID             string
	Path           string
	Config         job.Config
	HandlerOptions job.HandlerOptions
	RetryPolicy    RetryPolicy
	CancelRegistry *CancelRegistry
	Sources        *vault.SourceRegistry
	Logger         vault.Logger
	Dispatch       RunDispatch
	MessageBuilder MessageBuilderFunc
}

// ExportTask executes export run jobs.
type ExportTask struct {
	id             string
	path           string
	config         job.Config
	handlerOptions job.HandlerOptions
	retryPolicy    RetryPolicy
	cancelRegistry *CancelRegistry
	sources        *vault.SourceRegistry
	logger         vault.Logger
	dispatch       RunDispatch
	messageBuilder MessageBuilderFunc
}

// NewExportTask creates a new export run task.
func NewExportTask(cfg TaskConfig) *ExportTask {
	logger := cfg.Logger
	if logger == nil {
		logger = vault.NopLogger{}
	}
	id := cfg.ID
	if id == "" {
		id = DefaultExportTaskID
	}
	path := cfg.Path
	if path == "" {
		path = DefaultExportTaskPath
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(ctx context.Context, msg vaultcmd.RunExport) error {
			return dispatcher.Dispatch(ctx, msg)
		}
	}

	return &ExportTask{
		id:             id,
		path:           path,
		config:         cfg.Config,
		handlerOptions: cfg.HandlerOptions,
		retryPolicy:    cfg.RetryPolicy,
		cancelRegistry: cfg.CancelRegistry,
		sources:        cfg.Sources,
		logger:         logger,
		dispatch:       dispatch,
		messageBuilder: cfg.MessageBuilder,
	}
}

// GetID returns the task identifier.
func (t *ExportTask) GetID() string { return t.id }

// GetHandler returns a handler for non-queue execution paths.
func (t *ExportTask) GetHandler() func() error {
	return func() error {
		if t == nil {
			return vault.NewError(vault.KindInternal, "task is nil", nil)
		}
		if t.messageBuilder == nil {
			return vault.NewError(vault.KindConfig, "job message builder not configured", nil)
		}

		ctx := context.Background()
		msg, err := t.messageBuilder(ctx)
		if err != nil {
			if errors.Is(err, errExecutionSkipped) {
				return nil
			}
			return err
		}
		if msg == nil {
			return vault.NewError(vault.KindValidation, "execution message is required", nil)
		}
		return t.Execute(ctx, msg)
	}
}

// GetHandlerConfig returns scheduler options for the task.
func (t *ExportTask) GetHandlerConfig() job.HandlerOptions { return t.handlerOptions }

// GetConfig returns task config defaults.
func (t *ExportTask) GetConfig() job.Config { return t.config }

// GetPath returns the task path.
func (t *ExportTask) GetPath() string { return t.path }

// GetEngine returns nil because this task is code-driven.
func (t *ExportTask) GetEngine() job.Engine { return nil }

// Execute runs one export for the provided payload. Note writes are
// atomic and re-runs skip existing notes, so retries resume where the
// failed attempt stopped without cleanup.
func (t *ExportTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil {
		return vault.NewError(vault.KindInternal, "task is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	if payload.ExportID == "" {
		return vault.NewError(vault.KindValidation, "export ID is required", nil)
	}

	execCtx := ctx
	if t.cancelRegistry != nil {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithCancel(ctx)
		release := t.cancelRegistry.Register(payload.ExportID, cancel)
		defer release()
	}

	policy := t.retryPolicy
	attempt := 0
	for {
		if err := execCtx.Err(); err != nil {
			return err
		}

		err := t.runOnce(execCtx, payload)
		if err == nil {
			return nil
		}

		if !policy.shouldRetry(err) || attempt >= policy.MaxRetries {
			return err
		}

		attempt++
		delay := policy.backoffDelay(attempt)
		if delay > 0 {
			if serr := sleepWithContext(execCtx, delay); serr != nil {
				return serr
			}
		}
	}
}

// runOnce resolves the record source fresh on every attempt; a retried
// run must not reuse an iterator the failed attempt already consumed.
func (t *ExportTask) runOnce(ctx context.Context, payload Payload) error {
	req := payload.Request
	req.ExportID = payload.ExportID
	if payload.SourceKey != "" {
		source, err := t.resolveSource(payload)
		if err != nil {
			return err
		}
		req.Source = source
	}
	return t.dispatch(ctx, vaultcmd.RunExport{Actor: payload.Actor, Request: req})
}

func (t *ExportTask) resolveSource(payload Payload) (vault.RecordSource, error) {
	if t.sources == nil {
		return nil, vault.NewError(vault.KindConfig, "source registry not configured", nil)
	}
	factory, ok := t.sources.Resolve(payload.SourceKey)
	if !ok {
		return nil, vault.NewError(vault.KindNotFound, fmt.Sprintf("source %q not registered", payload.SourceKey), nil)
	}
	source, err := factory(payload.SourceParams)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, vault.NewError(vault.KindInternal, fmt.Sprintf("source %q factory returned no source", payload.SourceKey), nil)
	}
	return source, nil
}

func encodePayload(payload Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, vault.NewError(vault.KindValidation, "payload is not serializable", err)
	}
	return json.RawMessage(raw), nil
}

func decodePayload(msg *job.ExecutionMessage) (Payload, error) {
	if msg == nil || msg.Parameters == nil {
		return Payload{}, vault.NewError(vault.KindValidation, "job payload is required", nil)
	}

	raw, ok := msg.Parameters["payload"]
	if !ok {
		return Payload{}, vault.NewError(vault.KindValidation, "job payload missing", nil)
	}

	switch value := raw.(type) {
	case Payload:
		return value, nil
	case *Payload:
		if value == nil {
			return Payload{}, vault.NewError(vault.KindValidation, "job payload is nil", nil)
		}
		return *value, nil
	case json.RawMessage:
		return unmarshalPayload(value)
	case []byte:
		return unmarshalPayload(value)
	case string:
		return unmarshalPayload([]byte(value))
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return Payload{}, vault.NewError(vault.KindValidation, "job payload is invalid", err)
		}
		return unmarshalPayload(data)
	}
}

func unmarshalPayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, vault.NewError(vault.KindValidation, "job payload is empty", nil)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, vault.NewError(vault.KindValidation, "job payload is invalid", err)
	}
	return payload, nil
}

// RetryPolicy determines retry behavior for retryable errors.
type RetryPolicy struct {
	MaxRetries int
	Backoff    job.BackoffConfig
	Retryable  func(error) bool
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if err == nil || p.MaxRetries <= 0 {
		return false
	}
	if isCanceled(err) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return defaultRetryable(err)
}

func (p RetryPolicy) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return computeBackoffDelay(attempt, p.Backoff)
}

func isCanceled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var exportErr *vault.ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind == vault.KindCanceled
	}
	var goErr *errorslib.Error
	if errors.As(err, &goErr) {
		return goErr.TextCode == "canceled"
	}
	return false
}

// defaultRetryable treats timeouts, transient transport failures, and
// internal or external faults as retryable. Service errors arrive
// flattened into go-errors values, so text codes are checked alongside
// the raw kinds.
func defaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errorslib.IsRetryableError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary()
	}
	var exportErr *vault.ExportError
	if errors.As(err, &exportErr) {
		switch exportErr.Kind {
		case vault.KindTimeout, vault.KindInternal, vault.KindExternal:
			return true
		}
	}
	var goErr *errorslib.Error
	if errors.As(err, &goErr) {
		switch goErr.TextCode {
		case "timeout", "internal", "external":
			return true
		}
	}
	return false
}

func computeBackoffDelay(attempt int, cfg job.BackoffConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 5 * time.Second
	}

	switch cfg.Strategy {
	case job.BackoffFixed:
		return applyJitter(interval, cfg.Jitter)
	case job.BackoffExponential:
		delay := interval
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxInterval {
				delay = maxInterval
				break
			}
		}
		return applyJitter(delay, cfg.Jitter)
	default:
		return 0
	}
}

func applyJitter(delay time.Duration, jitter bool) time.Duration {
	if !jitter || delay <= 0 {
		return delay
	}
	// +/-50% jitter
	half := float64(delay) * 0.5
	backoffRandMu.Lock()
	offset := (backoffRand.Float64()*2 - 1) * half
	backoffRandMu.Unlock()
	jittered := float64(delay) + offset
	if jittered < 0 {
		return 0
	}
	return time.Duration(jittered)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
