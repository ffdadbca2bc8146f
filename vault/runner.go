package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultErrorLimit bounds the per-record error entries kept on a Result.
const DefaultErrorLimit = 50

// Runner orchestrates export runs: template resolution, container
// preparation, then record-by-record mapping, rendering, and storage.
type Runner struct {
	Engine        Engine
	Mapper        *Mapper
	Store         Store
	Templates     *TemplateRegistry
	Tracker       RunTracker
	ActorProvider ActorProvider
	Logger        Logger
	Emitter       ChangeEmitter
	Metrics       MetricsHook
	Transforms    []RecordTransformer
	// ErrorLimit caps Result.Errors entries. Zero means DefaultErrorLimit.
	ErrorLimit  int
	Now         func() time.Time
	IDGenerator func() string
}

// NewRunner creates a runner with the default engine and mapper.
func NewRunner(store Store) *Runner {
	return &Runner{
		Engine:      NewMarkerEngine(),
		Mapper:      NewMapper(),
		Store:       store,
		Templates:   NewTemplateRegistry(),
		Logger:      NopLogger{},
		Now:         time.Now,
		IDGenerator: defaultIDGenerator(),
	}
}

// Export runs one export request. Per-record failures are absorbed into
// the result; only configuration, source, container, and cancellation
// failures return an error.
func (r *Runner) Export(ctx context.Context, req ExportRequest) (*Result, error) {
	if r == nil {
		return nil, AsGoError(NewError(KindInternal, "runner is nil", nil))
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.Logger == nil {
		r.Logger = NopLogger{}
	}
	if r.IDGenerator == nil {
		r.IDGenerator = defaultIDGenerator()
	}
	if r.Engine == nil {
		r.Engine = NewMarkerEngine()
	}
	if r.Mapper == nil {
		r.Mapper = NewMapper()
	}
	if r.Store == nil {
		return nil, AsGoError(NewError(KindConfig, "store is not configured", nil))
	}

	req = normalizeRequest(req)
	if err := validateRequest(req); err != nil {
		return nil, AsGoError(err)
	}
	cfg := req.Config

	actor := Actor{}
	var err error
	if r.ActorProvider != nil {
		actor, err = r.ActorProvider.FromContext(ctx)
		if err != nil {
			return nil, AsGoError(NewError(KindInternal, "failed to resolve actor", err))
		}
	}

	started := r.Now()
	exportID := req.ExportID
	if exportID == "" {
		exportID = r.IDGenerator()
	}
	result := &Result{ExportID: exportID, State: StateNotStarted}

	if r.Tracker != nil {
		record := RunRecord{
			ID:          result.ExportID,
			VaultPath:   cfg.VaultPath,
			Folder:      cfg.Folder,
			Template:    templateLabel(cfg),
			State:       StateNotStarted,
			RequestedBy: actor,
			CreatedAt:   started,
			StartedAt:   started,
		}
		id, err := r.Tracker.Start(ctx, record)
		if err != nil {
			return nil, AsGoError(err)
		}
		if id != "" {
			result.ExportID = id
		}
	}

	info := runInfo{exportID: result.ExportID, cfg: cfg, actor: actor, startedAt: started}
	r.emit(ctx, info, "export.requested", nil)

	records, err := r.resolveRecords(ctx, req)
	if err != nil {
		result.State = StateFailed
		result.Duration = r.Now().Sub(started)
		r.fail(ctx, info, err)
		return result, AsGoError(err)
	}
	records = applySelection(records, req.Selection, r.Mapper, cfg)

	template, tmplErr := r.resolveTemplate(cfg)
	if tmplErr != nil {
		r.Logger.Infof("template %q unusable, using default: %v", templateLabel(cfg), tmplErr)
	}
	result.State = StateTemplateResolved
	r.setState(ctx, result.ExportID, StateTemplateResolved)

	if err := r.Store.EnsureContainer(ctx, cfg.Folder); err != nil {
		err = NewError(KindStorage, fmt.Sprintf("failed to prepare folder %q", cfg.Folder), err)
		result.State = StateFailed
		result.Duration = r.Now().Sub(started)
		r.fail(ctx, info, err)
		return result, AsGoError(err)
	}
	result.State = StateContainerReady
	r.setState(ctx, result.ExportID, StateContainerReady)

	result.State = StateProcessing
	r.setState(ctx, result.ExportID, StateProcessing)
	r.emit(ctx, info, "export.started", map[string]any{"total": len(records)})

	total := len(records)
	result.Total = total
	reportProgress(req.Progress, 0, total)

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			cancelErr := NewError(KindCanceled, "export canceled", err)
			result.Duration = r.Now().Sub(started)
			r.fail(ctx, info, cancelErr)
			return result, AsGoError(cancelErr)
		}

		r.processRecord(ctx, record, cfg, template, result)
		reportProgress(req.Progress, i+1, total)
		r.emitMetrics(ctx, info, "export.record", result, nil)
	}

	result.State = StateDone
	result.Duration = r.Now().Sub(started)

	if r.Tracker != nil {
		_ = r.Tracker.Complete(ctx, result.ExportID, *result)
	}
	r.emit(ctx, info, "export.completed", map[string]any{
		"created": result.Created,
		"updated": result.Updated,
		"skipped": result.Skipped,
		"failed":  result.Failed,
		"total":   result.Total,
	})
	r.emitMetrics(ctx, info, "export.completed", result, nil)

	return result, nil
}

// processRecord maps, renders, and stores one record. Failures are
// recorded on the result, never returned.
func (r *Runner) processRecord(ctx context.Context, record Record, cfg Config, template string, result *Result) {
	name := recordLabel(record)
	defer func() {
		if rec := recover(); rec != nil {
			r.recordFailure(result, name, NewError(KindMapping, fmt.Sprintf("panic while processing record: %v", rec), nil))
		}
	}()

	fields := r.Mapper.Map(record, cfg)
	if title := fields["title"]; title != "" {
		name = title
	}

	filename := GenerateFilename(fields, record, cfg)

	exists, err := r.Store.Exists(ctx, cfg.Folder, filename)
	if err != nil {
		r.recordFailure(result, name, NewError(KindStorage, fmt.Sprintf("failed to check %q", filename), err))
		return
	}
	if exists && !cfg.Overwrite {
		result.Skipped++
		return
	}

	text, err := r.renderNote(template, fields)
	if err != nil {
		r.recordFailure(result, name, err)
		return
	}

	if exists {
		if err := r.Store.Update(ctx, cfg.Folder, filename, []byte(text)); err != nil {
			r.recordFailure(result, name, NewError(KindStorage, fmt.Sprintf("failed to update %q", filename), err))
			return
		}
		result.Updated++
		return
	}
	if err := r.Store.Create(ctx, cfg.Folder, filename, []byte(text)); err != nil {
		r.recordFailure(result, name, NewError(KindStorage, fmt.Sprintf("failed to create %q", filename), err))
		return
	}
	result.Created++
}

// renderNote renders best-effort: engine panics become typed errors.
func (r *Runner) renderNote(template string, fields FieldMap) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = NewError(KindRender, fmt.Sprintf("panic while rendering: %v", rec), nil)
		}
	}()
	text, err = r.Engine.Render(template, fields)
	if err != nil {
		return "", NewError(KindRender, "failed to render note", err)
	}
	return text, nil
}

// resolveTemplate picks the run template: inline body, then registry
// name, then the built-in default. An unusable custom template falls
// back to the default for the whole run; the returned error reports why.
func (r *Runner) resolveTemplate(cfg Config) (string, error) {
	body := cfg.TemplateBody
	if body == "" && cfg.Template != "" {
		if r.Templates == nil {
			return DefaultTemplate(), NewError(KindTemplate, fmt.Sprintf("template %q not registered", cfg.Template), nil)
		}
		registered, ok := r.Templates.Resolve(cfg.Template)
		if !ok {
			return DefaultTemplate(), NewError(KindTemplate, fmt.Sprintf("template %q not registered", cfg.Template), nil)
		}
		body = registered
	}
	if body == "" {
		return DefaultTemplate(), nil
	}
	if err := r.Engine.Validate(body); err != nil {
		return DefaultTemplate(), err
	}
	return body, nil
}

func (r *Runner) resolveRecords(ctx context.Context, req ExportRequest) ([]Record, error) {
	var base RecordIterator
	if req.Source != nil {
		iter, err := req.Source.Open(ctx)
		if err != nil {
			return nil, err
		}
		base = iter
	} else {
		base = &sliceIterator{records: req.Records}
	}

	iter, err := applyTransformers(ctx, base, r.Transforms)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	defer iter.Close()

	records := []Record{}
	for {
		record, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func applySelection(records []Record, selection Selection, mapper *Mapper, cfg Config) []Record {
	if selection.Mode != SelectionNames {
		return records
	}
	want := make(map[string]struct{}, len(selection.Names))
	for _, name := range selection.Names {
		want[name] = struct{}{}
	}
	kept := make([]Record, 0, len(records))
	for _, record := range records {
		fields := mapper.Map(record, cfg)
		name := expandPattern(cfg.FilenamePattern, fields, record)
		if _, ok := want[name]; ok {
			kept = append(kept, record)
		}
	}
	return kept
}

func (r *Runner) recordFailure(result *Result, name string, err error) {
	limit := r.ErrorLimit
	if limit <= 0 {
		limit = DefaultErrorLimit
	}
	result.Failed++
	if len(result.Errors) < limit {
		result.Errors = append(result.Errors, RecordError{Name: name, Message: err.Error()})
	}
	r.Logger.Debugf("record %q failed: %v", name, err)
}

func (r *Runner) setState(ctx context.Context, id string, state RunState) {
	if r.Tracker == nil {
		return
	}
	_ = r.Tracker.SetState(ctx, id, state)
}

func (r *Runner) fail(ctx context.Context, info runInfo, err error) {
	if info.exportID == "" {
		return
	}
	if r.Tracker != nil {
		_ = r.Tracker.Fail(ctx, info.exportID, err)
	}
	if errors.Is(err, context.Canceled) || KindFromError(err) == KindCanceled {
		r.emit(ctx, info, "export.canceled", map[string]any{
			"duration": r.Now().Sub(info.startedAt),
		})
		r.emitMetrics(ctx, info, "export.canceled", nil, err)
		return
	}
	r.emit(ctx, info, "export.failed", map[string]any{
		"error":      err.Error(),
		"error_kind": KindFromError(err),
		"duration":   r.Now().Sub(info.startedAt),
	})
	r.emitMetrics(ctx, info, "export.failed", nil, err)
}

// emit forwards a lifecycle event. Emitter errors and panics are
// absorbed; hooks cannot abort a run.
func (r *Runner) emit(ctx context.Context, info runInfo, name string, meta map[string]any) {
	if r.Emitter == nil {
		return
	}
	defer func() { _ = recover() }()
	_ = r.Emitter.Emit(ctx, ChangeEvent{
		Name:      name,
		ExportID:  info.exportID,
		VaultPath: info.cfg.VaultPath,
		Folder:    info.cfg.Folder,
		Actor:     info.actor,
		Timestamp: r.Now(),
		Metadata:  meta,
	})
}

func (r *Runner) emitMetrics(ctx context.Context, info runInfo, name string, result *Result, err error) {
	if r.Metrics == nil {
		return
	}
	defer func() { _ = recover() }()
	now := r.Now()
	evt := MetricsEvent{
		Name:      name,
		ExportID:  info.exportID,
		Folder:    info.cfg.Folder,
		Duration:  now.Sub(info.startedAt),
		Timestamp: now,
	}
	if result != nil {
		evt.Created = result.Created
		evt.Updated = result.Updated
		evt.Skipped = result.Skipped
		evt.Failed = result.Failed
	}
	if err != nil {
		evt.ErrorKind = KindFromError(err)
	}
	_ = r.Metrics.Emit(ctx, evt)
}

// reportProgress invokes the callback; callback panics are caught and
// ignored so they cannot abort the export.
func reportProgress(fn ProgressFunc, processed, total int) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(processed, total)
}

type runInfo struct {
	exportID  string
	cfg       Config
	actor     Actor
	startedAt time.Time
}

// recordLabel identifies a record in error entries before mapping has
// resolved a title.
func recordLabel(record Record) string {
	for _, source := range []string{"enriched_title", "extracted_title", "title", "filename", "name"} {
		if v := strings.TrimSpace(record[source]); v != "" {
			return v
		}
	}
	return "(unknown record)"
}

func templateLabel(cfg Config) string {
	if cfg.TemplateBody != "" {
		return "inline"
	}
	if cfg.Template != "" {
		return cfg.Template
	}
	return DefaultTemplateName
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

func defaultIDGenerator() func() string {
	var counter uint64
	return func() string {
		id := atomic.AddUint64(&counter, 1)
		return fmt.Sprintf("run-%d", id)
	}
}

func formatSummary(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "export %s: %d created, %d updated, %d skipped, %d failed, %d total",
		r.State, r.Created, r.Updated, r.Skipped, r.Failed, r.Total)
	if len(r.Errors) > 0 {
		b.WriteString("\nerrors:")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "\n- %s: %s", e.Name, e.Message)
		}
	}
	if n := r.TruncatedErrors(); n > 0 {
		fmt.Fprintf(&b, "\n... and %d more records not processed", n)
	}
	return b.String()
}
