package vault

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Preview is a rendered note that was not written to storage.
type Preview struct {
	Filename     string
	Content      string
	Fields       FieldMap
	Placeholders []string
}

// Service coordinates export operations across runner, tracker, and
// store.
type Service interface {
	Export(ctx context.Context, actor Actor, req ExportRequest) (*Result, error)
	Preview(ctx context.Context, req ExportRequest) (Preview, error)
	Status(ctx context.Context, actor Actor, exportID string) (RunRecord, error)
	History(ctx context.Context, actor Actor, filter RunFilter) ([]RunRecord, error)
	Delete(ctx context.Context, actor Actor, exportID string) error
	PruneHistory(ctx context.Context, policy RetentionPolicy) (int, error)
}

// StoreFactory builds a store from a per-request config. Factories own
// backend selection, wrapping remote stores with NewFallbackStore when
// the config asks for BackendFallback.
type StoreFactory func(cfg Config) (Store, error)

// ServiceConfig supplies dependencies for DefaultService.
type ServiceConfig struct {
	Runner       *Runner
	Tracker      RunTracker
	Store        Store
	StoreFactory StoreFactory
	Templates    *TemplateRegistry
	Sources      *SourceRegistry
	Logger       Logger
	Now          func() time.Time
	IDGenerator  func() string
}

// DefaultService is the standard Service implementation.
type DefaultService struct {
	runner       *Runner
	tracker      RunTracker
	store        Store
	storeFactory StoreFactory
	templates    *TemplateRegistry
	sources      *SourceRegistry
	logger       Logger
	now          func() time.Time
	idGenerator  func() string
}

var _ Service = (*DefaultService)(nil)

// NewService creates a DefaultService with the provided configuration.
func NewService(cfg ServiceConfig) *DefaultService {
	runner := cfg.Runner
	if runner == nil {
		runner = NewRunner(cfg.Store)
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}

	if runner.Now == nil {
		runner.Now = nowFn
	}
	if runner.Logger == nil {
		runner.Logger = logger
	}
	if cfg.Tracker != nil {
		runner.Tracker = cfg.Tracker
	}
	if cfg.Templates != nil {
		runner.Templates = cfg.Templates
	}
	if cfg.Store != nil && runner.Store == nil {
		runner.Store = cfg.Store
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = runner.Tracker
	}
	store := cfg.Store
	if store == nil {
		store = runner.Store
	}
	templates := cfg.Templates
	if templates == nil {
		templates = runner.Templates
	}
	sources := cfg.Sources
	if sources == nil {
		sources = NewSourceRegistry()
	}

	return &DefaultService{
		runner:       runner,
		tracker:      tracker,
		store:        store,
		storeFactory: cfg.StoreFactory,
		templates:    templates,
		sources:      sources,
		logger:       logger,
		now:          nowFn,
		idGenerator:  idGen,
	}
}

// Templates returns the template registry used by the service.
func (s *DefaultService) Templates() *TemplateRegistry {
	if s == nil {
		return nil
	}
	return s.templates
}

// Sources returns the record source registry used by the service.
func (s *DefaultService) Sources() *SourceRegistry {
	if s == nil {
		return nil
	}
	return s.sources
}

// Export runs an export for the actor. The store is the configured one,
// or one built from the request config by the store factory.
func (s *DefaultService) Export(ctx context.Context, actor Actor, req ExportRequest) (*Result, error) {
	if s == nil {
		return nil, AsGoError(NewError(KindInternal, "service is nil", nil))
	}
	run := s.runnerWithActor(actor)
	if run == nil {
		return nil, AsGoError(NewError(KindInternal, "runner is nil", nil))
	}

	if run.Store == nil {
		store, err := s.storeFor(req.Config.WithDefaults())
		if err != nil {
			return nil, AsGoError(err)
		}
		run.Store = store
	}
	run.IDGenerator = s.idGenerator

	return run.Export(ctx, req)
}

// Preview maps and renders the first record without writing anything.
func (s *DefaultService) Preview(ctx context.Context, req ExportRequest) (Preview, error) {
	if s == nil {
		return Preview{}, AsGoError(NewError(KindInternal, "service is nil", nil))
	}
	if s.runner == nil {
		return Preview{}, AsGoError(NewError(KindInternal, "runner is nil", nil))
	}

	req = normalizeRequest(req)
	if err := validateRequest(req); err != nil {
		return Preview{}, AsGoError(err)
	}
	cfg := req.Config

	run := *s.runner
	if run.Engine == nil {
		run.Engine = NewMarkerEngine()
	}
	if run.Mapper == nil {
		run.Mapper = NewMapper()
	}

	records, err := run.resolveRecords(ctx, req)
	if err != nil {
		return Preview{}, AsGoError(err)
	}
	records = applySelection(records, req.Selection, run.Mapper, cfg)
	if len(records) == 0 {
		return Preview{}, AsGoError(NewError(KindValidation, "no records to preview", nil))
	}

	template, tmplErr := run.resolveTemplate(cfg)
	if tmplErr != nil {
		s.logger.Infof("template %q unusable, using default: %v", templateLabel(cfg), tmplErr)
	}

	fields := run.Mapper.Map(records[0], cfg)
	content, err := run.Engine.Render(template, fields)
	if err != nil {
		return Preview{}, AsGoError(NewError(KindRender, "failed to render preview", err))
	}

	return Preview{
		Filename:     GenerateFilename(fields, records[0], cfg),
		Content:      content,
		Fields:       fields,
		Placeholders: run.Engine.Placeholders(template),
	}, nil
}

// Status returns a single run record.
func (s *DefaultService) Status(ctx context.Context, actor Actor, exportID string) (RunRecord, error) {
	_ = actor
	if s == nil {
		return RunRecord{}, AsGoError(NewError(KindInternal, "service is nil", nil))
	}
	if exportID == "" {
		return RunRecord{}, AsGoError(NewError(KindValidation, "export ID is required", nil))
	}
	if s.tracker == nil {
		return RunRecord{}, AsGoError(NewError(KindConfig, "run tracker not configured", nil))
	}

	record, err := s.tracker.Status(ctx, exportID)
	if err != nil {
		return RunRecord{}, AsGoError(err)
	}
	return record, nil
}

// History returns run records matching the filter, newest first.
func (s *DefaultService) History(ctx context.Context, actor Actor, filter RunFilter) ([]RunRecord, error) {
	_ = actor
	if s == nil {
		return nil, AsGoError(NewError(KindInternal, "service is nil", nil))
	}
	if s.tracker == nil {
		return nil, AsGoError(NewError(KindConfig, "run tracker not configured", nil))
	}

	records, err := s.tracker.List(ctx, filter)
	if err != nil {
		return nil, AsGoError(err)
	}
	return records, nil
}

// Delete removes a run record.
func (s *DefaultService) Delete(ctx context.Context, actor Actor, exportID string) error {
	_ = actor
	if s == nil {
		return AsGoError(NewError(KindInternal, "service is nil", nil))
	}
	if exportID == "" {
		return AsGoError(NewError(KindValidation, "export ID is required", nil))
	}
	if s.tracker == nil {
		return AsGoError(NewError(KindConfig, "run tracker not configured", nil))
	}
	deleter, ok := s.tracker.(RecordDeleter)
	if !ok {
		return AsGoError(NewError(KindValidation, "tracker does not support deletes", nil))
	}
	if err := deleter.Delete(ctx, exportID); err != nil {
		return AsGoError(err)
	}
	return nil
}

// PruneHistory deletes run records outside the retention policy.
func (s *DefaultService) PruneHistory(ctx context.Context, policy RetentionPolicy) (int, error) {
	if s == nil {
		return 0, AsGoError(NewError(KindInternal, "service is nil", nil))
	}
	if s.tracker == nil {
		return 0, AsGoError(NewError(KindConfig, "run tracker not configured", nil))
	}
	pruned, err := policy.Prune(ctx, s.tracker, s.now())
	if err != nil {
		return pruned, AsGoError(err)
	}
	return pruned, nil
}

func (s *DefaultService) runnerWithActor(actor Actor) *Runner {
	if s.runner == nil {
		return nil
	}
	run := *s.runner
	run.ActorProvider = staticActorProvider{actor: actor}
	return &run
}

func (s *DefaultService) storeFor(cfg Config) (Store, error) {
	if s.store != nil {
		return s.store, nil
	}
	if s.storeFactory == nil {
		return nil, NewError(KindConfig, "no store configured", nil)
	}
	store, err := s.storeFactory(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, NewError(KindConfig, "store factory returned no store", nil)
	}
	return store, nil
}

type staticActorProvider struct {
	actor Actor
}

func (p staticActorProvider) FromContext(ctx context.Context) (Actor, error) {
	_ = ctx
	return p.actor, nil
}
