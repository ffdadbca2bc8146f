package command

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-vault-export/vault"
)

// BatchRequest describes one request in a backfill or scheduled batch.
type BatchRequest struct {
	Actor   vault.Actor         `json:"actor"`
	Request vault.ExportRequest `json:"request"`
}

// BatchLoader loads batch requests from a source.
type BatchLoader func(ctx context.Context) ([]BatchRequest, error)

// BatchExecutor runs batch exports.
type BatchExecutor interface {
	ExecuteExport(ctx context.Context, actor vault.Actor, req vault.ExportRequest) (*vault.Result, error)
}

// BatchExecutorFunc adapts a function to a BatchExecutor.
type BatchExecutorFunc func(ctx context.Context, actor vault.Actor, req vault.ExportRequest) (*vault.Result, error)

func (f BatchExecutorFunc) ExecuteExport(ctx context.Context, actor vault.Actor, req vault.ExportRequest) (*vault.Result, error) {
	if f == nil {
		return nil, errors.New("batch executor is required", errors.CategoryInternal).
			WithTextCode("BATCH_EXECUTOR_NIL")
	}
	return f(ctx, actor, req)
}

// ServiceExecutor runs batch exports through the export service.
func ServiceExecutor(svc vault.Service) BatchExecutor {
	return BatchExecutorFunc(func(ctx context.Context, actor vault.Actor, req vault.ExportRequest) (*vault.Result, error) {
		if svc == nil {
			return nil, errors.New("export service is required", errors.CategoryInternal).
				WithTextCode("SERVICE_REQUIRED")
		}
		return svc.Export(ctx, actor, req)
	})
}

// BatchCommand wires CLI/Cron execution for batch exports.
type BatchCommand struct {
	executor   BatchExecutor
	loader     BatchLoader
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     BatchLimits
	sleep      func(time.Duration)
}

// BatchOption customizes batch commands.
type BatchOption func(*BatchCommand)

// BatchLimits bounds batch execution throughput.
type BatchLimits struct {
	MaxRequests int
	MinInterval time.Duration
}

// WithBatchCLIConfig overrides CLI configuration.
func WithBatchCLIConfig(cfg gcmd.CLIConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cliConfig = cfg
	}
}

// WithBatchCronConfig overrides cron configuration.
func WithBatchCronConfig(cfg gcmd.HandlerConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cronConfig = cfg
	}
}

// WithBatchLimits overrides batch execution limits.
func WithBatchLimits(limits BatchLimits) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.limits = limits
	}
}

// NewBackfillCommand creates a backfill CLI/Cron command.
func NewBackfillCommand(executor BatchExecutor, loader BatchLoader, opts ...BatchOption) *BatchCommand {
	cmd := &BatchCommand{
		executor: executor,
		loader:   loader,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"exports-backfill"},
			Description: "Run export backfills",
			Group:       "vault",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "0 0 * * *"},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// NewScheduledExportsCommand creates a scheduled exports CLI/Cron command.
func NewScheduledExportsCommand(executor BatchExecutor, loader BatchLoader, opts ...BatchOption) *BatchCommand {
	cmd := &BatchCommand{
		executor: executor,
		loader:   loader,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"exports-scheduled"},
			Description: "Run scheduled exports",
			Group:       "vault",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "0 * * * *"},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// CronHandler executes scheduled batch exports.
func (c *BatchCommand) CronHandler() func() error {
	return func() error {
		_, err := c.run(context.Background(), "")
		return err
	}
}

// CronOptions returns cron configuration.
func (c *BatchCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *BatchCommand) CLIHandler() any {
	return &batchCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *BatchCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

func (c *BatchCommand) run(ctx context.Context, from string) (int, error) {
	if c == nil {
		return 0, errors.New("batch command is nil", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	if c.executor == nil {
		return 0, errors.New("batch executor is required", errors.CategoryValidation).
			WithTextCode("EXECUTOR_REQUIRED")
	}

	requests, err := c.loadRequests(ctx, from)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, item := range requests {
		if c.limits.MaxRequests > 0 && count >= c.limits.MaxRequests {
			break
		}
		if _, err := c.executor.ExecuteExport(ctx, item.Actor, item.Request); err != nil {
			return count, err
		}
		count++
		if c.limits.MinInterval > 0 && c.sleep != nil {
			c.sleep(c.limits.MinInterval)
		}
	}
	return count, nil
}

func (c *BatchCommand) loadRequests(ctx context.Context, from string) ([]BatchRequest, error) {
	if strings.TrimSpace(from) != "" {
		return loadBatchRequestsFromFile(from)
	}
	if c.loader == nil {
		return nil, errors.New("batch loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	return c.loader(ctx)
}

type batchCLI struct {
	cmd  *BatchCommand
	From string `kong:"name='from',help='Path to JSON batch export requests'"`
}

func (c *batchCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("batch command is required", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	_, err := c.cmd.run(context.Background(), c.From)
	return err
}

func loadBatchRequestsFromFile(path string) ([]BatchRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read batch file failed").
			WithTextCode("BATCH_FILE_READ")
	}

	var requests []BatchRequest
	if err := json.Unmarshal(content, &requests); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "batch file invalid JSON").
			WithTextCode("BATCH_FILE_INVALID")
	}
	return requests, nil
}

// VaultBatch builds batch requests that fan one export out to several
// vault roots.
type VaultBatch struct {
	Actor      vault.Actor
	VaultPaths []string
	Request    vault.ExportRequest
}

// BuildVaultBatchRequests returns one request per vault path.
func BuildVaultBatchRequests(batch VaultBatch) []BatchRequest {
	if len(batch.VaultPaths) == 0 {
		return nil
	}

	requests := make([]BatchRequest, 0, len(batch.VaultPaths))
	for _, path := range batch.VaultPaths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		req := batch.Request
		req.Config.VaultPath = path
		requests = append(requests, BatchRequest{Actor: batch.Actor, Request: req})
	}
	return requests
}

// CLIHandler exposes prune via CLI.
func (h *PruneRunsHandler) CLIHandler() any {
	return &pruneCLI{handler: h}
}

// CLIOptions describes prune CLI metadata.
func (h *PruneRunsHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"runs-prune"},
		Description: "Remove old export run records",
		Group:       "vault",
	}
}

type pruneCLI struct {
	handler *PruneRunsHandler
	MaxAge  time.Duration `kong:"name='max-age',help='Prune runs older than this duration'"`
	MaxRuns int           `kong:"name='max-runs',help='Keep at most this many terminal runs'"`
}

func (c *pruneCLI) Run() error {
	if c == nil || c.handler == nil {
		return errors.New("prune handler is required", errors.CategoryInternal).
			WithTextCode("PRUNE_HANDLER_REQUIRED")
	}
	return c.handler.Execute(context.Background(), PruneRuns{
		Policy: vault.RetentionPolicy{MaxAge: c.MaxAge, MaxCount: c.MaxRuns},
	})
}
