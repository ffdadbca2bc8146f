package vault

import (
	"context"
	"time"
)

// Backend selects the storage strategy for a run.
type Backend string

const (
	// BackendPrimary writes through the primary store only.
	BackendPrimary Backend = "primary"
	// BackendFallback tries the remote store first and falls back to the primary.
	BackendFallback Backend = "fallback"
)

// SelectionMode describes how records are selected.
type SelectionMode string

const (
	SelectionAll   SelectionMode = "all"
	SelectionNames SelectionMode = "names"
)

// Selection captures record selection intent. Names match the resolved
// output name (before sanitization) of each record.
type Selection struct {
	Mode  SelectionMode
	Names []string
}

// Record is one input item: raw source-field name to value. Values are
// optional; absent and empty are equivalent to the mapper.
type Record map[string]string

// FieldMap is the resolved canonical placeholder to value mapping for one
// record. Every canonical field has an entry, possibly empty.
type FieldMap map[string]string

// Defaults carries config-level default values consulted by the mapper
// when a record supplies nothing for a field.
type Defaults struct {
	Status   string
	Priority string
	Device   string
	Purpose  []string
}

// Config captures the immutable per-run export settings.
type Config struct {
	// VaultPath is the target root tree. Required; run records carry it
	// as the run's vault identity even when a custom Store is injected.
	VaultPath string
	// Folder is the logical container notes are written into.
	Folder string
	// Template names a registered template to use instead of the
	// built-in default.
	Template string
	// TemplateBody is an inline template body. Takes precedence over
	// Template when non-empty.
	TemplateBody string
	// FilenamePattern expands {field} tokens against the resolved
	// fields, then the raw record.
	FilenamePattern string
	// Extension is appended to generated names when absent.
	Extension string
	// Defaults supply per-field fallback values.
	Defaults Defaults
	// Overwrite replaces existing notes instead of skipping them.
	Overwrite bool
	// MaxFilenameLength bounds generated names, extension included.
	MaxFilenameLength int
	// Backend selects primary-only or remote-with-fallback storage.
	Backend Backend
	// RemoteURL is the base URL of the remote file tool, used when
	// Backend is BackendFallback.
	RemoteURL string
}

// ExportRequest captures one export invocation.
type ExportRequest struct {
	Config    Config
	Records   []Record
	Source    RecordSource `json:"-"`
	Selection Selection
	// Progress, when set, receives (processed, total) once before the
	// first record and after every record.
	Progress ProgressFunc `json:"-"`
	// ExportID, when set, is used as the run identifier instead of a
	// generated one. Schedulers assign it before enqueueing.
	ExportID string
	// IdempotencyKey lets transports deduplicate repeated submissions.
	IdempotencyKey string
}

// ProgressFunc receives record-level progress.
type ProgressFunc func(processed, total int)

// RunState captures orchestration states for a run.
type RunState string

const (
	StateNotStarted       RunState = "not_started"
	StateTemplateResolved RunState = "template_resolved"
	StateContainerReady   RunState = "container_ready"
	StateProcessing       RunState = "processing"
	StateDone             RunState = "done"
	StateFailed           RunState = "failed"
)

// RecordError is one bounded per-record failure entry.
type RecordError struct {
	Name    string
	Message string
}

// Result aggregates the outcome of one export run.
type Result struct {
	ExportID string
	State    RunState
	Created  int
	Updated  int
	Skipped  int
	Failed   int
	Total    int
	// Errors holds at most the runner's error limit of entries. Failures
	// past the cap still increment Failed.
	Errors   []RecordError
	Duration time.Duration
}

// Processed reports how many records reached a terminal per-record state.
func (r *Result) Processed() int {
	if r == nil {
		return 0
	}
	return r.Created + r.Updated + r.Skipped + r.Failed
}

// TruncatedErrors reports how many failed records have no Errors entry.
func (r *Result) TruncatedErrors() int {
	if r == nil {
		return 0
	}
	if n := r.Failed - len(r.Errors); n > 0 {
		return n
	}
	return 0
}

// Summary renders the human-readable run summary, including the
// truncation tail when the error list was capped.
func (r *Result) Summary() string {
	if r == nil {
		return ""
	}
	s := formatSummary(r)
	return s
}

// RunRecord captures tracker state for one run.
type RunRecord struct {
	ID           string
	VaultPath    string
	Folder       string
	Template     string
	State        RunState
	Created      int
	Updated      int
	Skipped      int
	Failed       int
	Total        int
	ErrorSummary string
	RequestedBy  Actor
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Actor identifies the requesting principal.
type Actor struct {
	ID      string
	Roles   []string
	Details map[string]any
}

// RecordSource provides record iterators for exports.
type RecordSource interface {
	Open(ctx context.Context) (RecordIterator, error)
}

// RecordIterator streams records.
type RecordIterator interface {
	Next(ctx context.Context) (Record, error)
	Close() error
}

// RecordTransformer wraps an iterator with record-level transformations.
type RecordTransformer interface {
	Wrap(ctx context.Context, in RecordIterator) (RecordIterator, error)
}

// Engine renders templates against resolved fields. Implementations must
// treat missing fields as empty strings and never fail for them; a
// non-nil error marks an engine-level failure only.
type Engine interface {
	Render(template string, fields FieldMap) (string, error)
	Validate(template string) error
	Placeholders(template string) []string
}

// Store reads and writes named documents inside a named container.
// Implementations report failures as errors with readable reasons and
// never panic across this boundary.
type Store interface {
	EnsureContainer(ctx context.Context, container string) error
	Exists(ctx context.Context, container, name string) (bool, error)
	Create(ctx context.Context, container, name string, content []byte) error
	Update(ctx context.Context, container, name string, content []byte) error
	Read(ctx context.Context, container, name string) ([]byte, error)
}

// RunTracker persists run records.
type RunTracker interface {
	Start(ctx context.Context, record RunRecord) (string, error)
	SetState(ctx context.Context, id string, state RunState) error
	Complete(ctx context.Context, id string, result Result) error
	Fail(ctx context.Context, id string, err error) error
	Status(ctx context.Context, id string) (RunRecord, error)
	List(ctx context.Context, filter RunFilter) ([]RunRecord, error)
}

// RecordDeleter removes run records from a tracker.
type RecordDeleter interface {
	Delete(ctx context.Context, id string) error
}

// RunFilter filters tracker lists.
type RunFilter struct {
	VaultPath string
	Folder    string
	State     RunState
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// ActorProvider extracts the actor from context.
type ActorProvider interface {
	FromContext(ctx context.Context) (Actor, error)
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// ChangeEvent describes lifecycle events.
type ChangeEvent struct {
	Name      string
	ExportID  string
	VaultPath string
	Folder    string
	Actor     Actor
	Timestamp time.Time
	Metadata  map[string]any
}

// ChangeEmitter emits lifecycle events.
type ChangeEmitter interface {
	Emit(ctx context.Context, evt ChangeEvent) error
}

// MetricsEvent describes lifecycle metrics.
type MetricsEvent struct {
	Name      string
	ExportID  string
	Folder    string
	Created   int
	Updated   int
	Skipped   int
	Failed    int
	Duration  time.Duration
	ErrorKind ErrorKind
	Timestamp time.Time
}

// MetricsHook emits metrics-friendly lifecycle observations.
type MetricsHook interface {
	Emit(ctx context.Context, evt MetricsEvent) error
}

// RouterRegistrar provides optional route registration.
type RouterRegistrar interface {
	RegisterRoutes(router any)
}
