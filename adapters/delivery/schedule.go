package vaultdelivery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
)

// ScheduleMode selects how scheduled deliveries run.
type ScheduleMode string

const (
	// ScheduleModeEnqueue hands each request to the job queue.
	ScheduleModeEnqueue ScheduleMode = "enqueue"
	// ScheduleModeExecuteSync delivers each request in-process.
	ScheduleModeExecuteSync ScheduleMode = "execute_sync"
)

// scheduleModeEnv overrides the schedule mode when no explicit
// configuration or flag is given.
const scheduleModeEnv = "VAULT_EXPORT_DELIVERY_MODE"

// ScheduleLoader loads scheduled delivery requests.
type ScheduleLoader func(ctx context.Context) ([]Request, error)

// ScheduleRequester enqueues scheduled delivery requests.
type ScheduleRequester interface {
	RequestDelivery(ctx context.Context, req Request) error
}

// ScheduleExecutor delivers requests synchronously.
type ScheduleExecutor interface {
	Execute(ctx context.Context, req Request) error
}

// ScheduleExecutorFunc adapts a function to a ScheduleExecutor.
type ScheduleExecutorFunc func(ctx context.Context, req Request) error

func (f ScheduleExecutorFunc) Execute(ctx context.Context, req Request) error {
	if f == nil {
		return errors.New("schedule executor is required", errors.CategoryInternal).
			WithTextCode("EXECUTOR_NIL")
	}
	return f(ctx, req)
}

// HandlerExecutor delivers requests through a delivery handler.
func HandlerExecutor(handler DeliveryHandler) ScheduleExecutor {
	return ScheduleExecutorFunc(func(ctx context.Context, req Request) error {
		if handler == nil {
			return errors.New("delivery handler is required", errors.CategoryInternal).
				WithTextCode("HANDLER_REQUIRED")
		}
		_, err := handler.Deliver(ctx, req)
		return err
	})
}

// ScheduleLimits bounds scheduled delivery execution.
type ScheduleLimits struct {
	MaxRequests int
	MinInterval time.Duration
}

// ScheduleCommand wires CLI/Cron execution for scheduled deliveries.
type ScheduleCommand struct {
	requester  ScheduleRequester
	executor   ScheduleExecutor
	loader     ScheduleLoader
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     ScheduleLimits
	mode       ScheduleMode
	sleep      func(time.Duration)
}

// ScheduleOption customizes scheduled delivery commands.
type ScheduleOption func(*ScheduleCommand)

// WithScheduleCLIConfig overrides CLI configuration.
func WithScheduleCLIConfig(cfg gcmd.CLIConfig) ScheduleOption {
	return func(cmd *ScheduleCommand) {
		cmd.cliConfig = cfg
	}
}

// WithScheduleCronConfig overrides cron configuration.
func WithScheduleCronConfig(cfg gcmd.HandlerConfig) ScheduleOption {
	return func(cmd *ScheduleCommand) {
		cmd.cronConfig = cfg
	}
}

// WithScheduleLimits overrides scheduling limits.
func WithScheduleLimits(limits ScheduleLimits) ScheduleOption {
	return func(cmd *ScheduleCommand) {
		cmd.limits = limits
	}
}

// WithScheduleMode pins the schedule mode, overriding flag and env.
func WithScheduleMode(mode ScheduleMode) ScheduleOption {
	return func(cmd *ScheduleCommand) {
		cmd.mode = mode
	}
}

// WithScheduleExecutor supplies the synchronous executor.
func WithScheduleExecutor(executor ScheduleExecutor) ScheduleOption {
	return func(cmd *ScheduleCommand) {
		cmd.executor = executor
	}
}

// NewScheduledDeliveriesCommand creates a scheduled delivery CLI/Cron command.
func NewScheduledDeliveriesCommand(requester ScheduleRequester, loader ScheduleLoader, opts ...ScheduleOption) *ScheduleCommand {
	cmd := &ScheduleCommand{
		requester: requester,
		loader:    loader,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"deliveries-scheduled"},
			Description: "Run scheduled export deliveries",
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

// CronHandler executes scheduled deliveries.
func (c *ScheduleCommand) CronHandler() func() error {
	return func() error {
		_, err := c.run(context.Background(), "", "")
		return err
	}
}

// CronOptions returns cron configuration.
func (c *ScheduleCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *ScheduleCommand) CLIHandler() any {
	return &scheduleCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *ScheduleCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

func (c *ScheduleCommand) run(ctx context.Context, from, modeFlag string) (int, error) {
	if c == nil {
		return 0, errors.New("schedule command is nil", errors.CategoryInternal).
			WithTextCode("SCHEDULE_CMD_NIL")
	}

	mode, err := c.resolveMode(modeFlag)
	if err != nil {
		return 0, err
	}
	switch mode {
	case ScheduleModeEnqueue:
		if c.requester == nil {
			return 0, errors.New("schedule requester is required", errors.CategoryValidation).
				WithTextCode("REQUESTER_REQUIRED")
		}
	case ScheduleModeExecuteSync:
		if c.executor == nil {
			return 0, errors.New("schedule executor is required", errors.CategoryValidation).
				WithTextCode("EXECUTOR_REQUIRED")
		}
	}

	requests, err := c.loadRequests(ctx, from)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, req := range requests {
		if c.limits.MaxRequests > 0 && count >= c.limits.MaxRequests {
			break
		}
		if err := c.dispatch(ctx, mode, req); err != nil {
			return count, err
		}
		count++
		if c.limits.MinInterval > 0 && c.sleep != nil {
			c.sleep(c.limits.MinInterval)
		}
	}
	return count, nil
}

func (c *ScheduleCommand) dispatch(ctx context.Context, mode ScheduleMode, req Request) error {
	if mode == ScheduleModeExecuteSync {
		return c.executor.Execute(ctx, req)
	}
	return c.requester.RequestDelivery(ctx, req)
}

// resolveMode picks the schedule mode: pinned config wins, then the CLI
// flag, then the environment, then a default inferred from wiring.
func (c *ScheduleCommand) resolveMode(flag string) (ScheduleMode, error) {
	if c.mode != "" {
		return parseScheduleMode(string(c.mode))
	}
	if strings.TrimSpace(flag) != "" {
		return parseScheduleMode(flag)
	}
	if env := os.Getenv(scheduleModeEnv); strings.TrimSpace(env) != "" {
		return parseScheduleMode(env)
	}
	if c.executor != nil && c.requester == nil {
		return ScheduleModeExecuteSync, nil
	}
	return ScheduleModeEnqueue, nil
}

func parseScheduleMode(raw string) (ScheduleMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ScheduleModeEnqueue):
		return ScheduleModeEnqueue, nil
	case string(ScheduleModeExecuteSync), "sync":
		return ScheduleModeExecuteSync, nil
	default:
		return "", errors.New(fmt.Sprintf("unknown schedule mode %q", raw), errors.CategoryValidation).
			WithTextCode("SCHEDULE_MODE_INVALID")
	}
}

func (c *ScheduleCommand) loadRequests(ctx context.Context, from string) ([]Request, error) {
	if strings.TrimSpace(from) != "" {
		return loadScheduleRequestsFromFile(from)
	}
	if c.loader == nil {
		return nil, errors.New("schedule loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	return c.loader(ctx)
}

type scheduleCLI struct {
	cmd  *ScheduleCommand
	From string `kong:"name='from',help='Path to JSON scheduled delivery requests'"`
	Mode string `kong:"name='mode',help='Schedule mode: enqueue or execute_sync'"`
}

func (c *scheduleCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("schedule command is required", errors.CategoryInternal).
			WithTextCode("SCHEDULE_CMD_NIL")
	}
	_, err := c.cmd.run(context.Background(), c.From, c.Mode)
	return err
}

func loadScheduleRequestsFromFile(path string) ([]Request, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read schedule file failed").
			WithTextCode("SCHEDULE_FILE_READ")
	}

	var requests []Request
	if err := json.Unmarshal(content, &requests); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "schedule file invalid JSON").
			WithTextCode("SCHEDULE_FILE_INVALID")
	}
	return requests, nil
}
