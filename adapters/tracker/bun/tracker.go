package trackerbun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-vault-export/vault"
	"github.com/uptrace/bun"
)

// Tracker persists export run records in a Bun-backed database.
type Tracker struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string
}

var (
	_ vault.RunTracker    = (*Tracker)(nil)
	_ vault.RecordDeleter = (*Tracker)(nil)
)

// NewTracker creates a Bun-backed run tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now, IDGenerator: defaultIDGenerator()}
}

// CreateTable creates the run record table when missing.
func CreateTable(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return vault.NewError(vault.KindValidation, "database is required", nil)
	}
	_, err := db.NewCreateTable().Model((*runModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Start creates a new run record.
func (t *Tracker) Start(ctx context.Context, record vault.RunRecord) (string, error) {
	if err := t.check(); err != nil {
		return "", err
	}
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.State == "" {
		record.State = vault.StateNotStarted
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = t.now()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = record.CreatedAt
	}

	model, err := modelFromRecord(record)
	if err != nil {
		return "", err
	}
	if _, err := t.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return "", err
	}
	return record.ID, nil
}

// SetState updates the run state.
func (t *Tracker) SetState(ctx context.Context, id string, state vault.RunState) error {
	if err := t.check(); err != nil {
		return err
	}
	if id == "" {
		return vault.NewError(vault.KindValidation, "run ID is required", nil)
	}

	query := t.DB.NewUpdate().Model((*runModel)(nil)).
		Set("state = ?", state).
		Where("id = ?", id)
	if state == vault.StateProcessing {
		query = query.Set("started_at = COALESCE(started_at, ?)", t.now())
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// Complete stores the final counts for a run.
func (t *Tracker) Complete(ctx context.Context, id string, result vault.Result) error {
	if err := t.check(); err != nil {
		return err
	}
	if id == "" {
		return vault.NewError(vault.KindValidation, "run ID is required", nil)
	}

	state := result.State
	if state == "" {
		state = vault.StateDone
	}
	query := t.DB.NewUpdate().Model((*runModel)(nil)).
		Set("state = ?", state).
		Set("counts_created = ?", result.Created).
		Set("counts_updated = ?", result.Updated).
		Set("counts_skipped = ?", result.Skipped).
		Set("counts_failed = ?", result.Failed).
		Set("counts_total = ?", result.Total).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id)
	if result.Failed > 0 {
		query = query.Set("error_summary = ?", fmt.Sprintf("%d of %d records failed", result.Failed, result.Total))
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// Fail records a terminal failure.
func (t *Tracker) Fail(ctx context.Context, id string, failure error) error {
	if err := t.check(); err != nil {
		return err
	}
	if id == "" {
		return vault.NewError(vault.KindValidation, "run ID is required", nil)
	}

	query := t.DB.NewUpdate().Model((*runModel)(nil)).
		Set("state = ?", vault.StateFailed).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id)
	if failure != nil {
		query = query.Set("error_summary = ?", failure.Error())
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// Status returns a run record by ID.
func (t *Tracker) Status(ctx context.Context, id string) (vault.RunRecord, error) {
	if err := t.check(); err != nil {
		return vault.RunRecord{}, err
	}
	if id == "" {
		return vault.RunRecord{}, vault.NewError(vault.KindValidation, "run ID is required", nil)
	}

	model := new(runModel)
	err := t.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vault.RunRecord{}, vault.NewError(vault.KindNotFound, fmt.Sprintf("run %q not found", id), nil)
		}
		return vault.RunRecord{}, err
	}
	return model.toRecord()
}

// List returns run records matching a filter, newest first.
func (t *Tracker) List(ctx context.Context, filter vault.RunFilter) ([]vault.RunRecord, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	models := make([]runModel, 0)
	query := t.DB.NewSelect().Model(&models)
	if filter.VaultPath != "" {
		query = query.Where("vault_path = ?", filter.VaultPath)
	}
	if filter.Folder != "" {
		query = query.Where("folder = ?", filter.Folder)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	query = query.Order("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	records := make([]vault.RunRecord, 0, len(models))
	for _, model := range models {
		record, err := model.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Delete removes a run record.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	if err := t.check(); err != nil {
		return err
	}
	if id == "" {
		return vault.NewError(vault.KindValidation, "run ID is required", nil)
	}

	res, err := t.DB.NewDelete().Model((*runModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

type runModel struct {
	bun.BaseModel `bun:"table:vault_export_runs,alias:vault_export_runs"`

	ID                 string    `bun:",pk"`
	VaultPath          string    `bun:"vault_path,notnull"`
	Folder             string    `bun:",notnull"`
	Template           string    `bun:"template"`
	State              string    `bun:",notnull"`
	CountsCreated      int       `bun:"counts_created"`
	CountsUpdated      int       `bun:"counts_updated"`
	CountsSkipped      int       `bun:"counts_skipped"`
	CountsFailed       int       `bun:"counts_failed"`
	CountsTotal        int       `bun:"counts_total"`
	ErrorSummary       string    `bun:"error_summary"`
	RequestedByID      string    `bun:"requested_by_id"`
	RequestedByRoles   []byte    `bun:"requested_by_roles"`
	RequestedByDetails []byte    `bun:"requested_by_details"`
	CreatedAt          time.Time `bun:"created_at"`
	StartedAt          time.Time `bun:"started_at,nullzero"`
	CompletedAt        time.Time `bun:"completed_at,nullzero"`
}

func modelFromRecord(record vault.RunRecord) (runModel, error) {
	roles, err := json.Marshal(record.RequestedBy.Roles)
	if err != nil {
		return runModel{}, err
	}
	details, err := json.Marshal(record.RequestedBy.Details)
	if err != nil {
		return runModel{}, err
	}

	return runModel{
		ID:                 record.ID,
		VaultPath:          record.VaultPath,
		Folder:             record.Folder,
		Template:           record.Template,
		State:              string(record.State),
		CountsCreated:      record.Created,
		CountsUpdated:      record.Updated,
		CountsSkipped:      record.Skipped,
		CountsFailed:       record.Failed,
		CountsTotal:        record.Total,
		ErrorSummary:       record.ErrorSummary,
		RequestedByID:      record.RequestedBy.ID,
		RequestedByRoles:   roles,
		RequestedByDetails: details,
		CreatedAt:          record.CreatedAt,
		StartedAt:          record.StartedAt,
		CompletedAt:        record.CompletedAt,
	}, nil
}

func (m runModel) toRecord() (vault.RunRecord, error) {
	record := vault.RunRecord{
		ID:           m.ID,
		VaultPath:    m.VaultPath,
		Folder:       m.Folder,
		Template:     m.Template,
		State:        vault.RunState(m.State),
		Created:      m.CountsCreated,
		Updated:      m.CountsUpdated,
		Skipped:      m.CountsSkipped,
		Failed:       m.CountsFailed,
		Total:        m.CountsTotal,
		ErrorSummary: m.ErrorSummary,
		RequestedBy:  vault.Actor{ID: m.RequestedByID},
		CreatedAt:    m.CreatedAt,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}

	if len(m.RequestedByRoles) > 0 {
		if err := json.Unmarshal(m.RequestedByRoles, &record.RequestedBy.Roles); err != nil {
			return vault.RunRecord{}, err
		}
	}
	if len(m.RequestedByDetails) > 0 {
		if err := json.Unmarshal(m.RequestedByDetails, &record.RequestedBy.Details); err != nil {
			return vault.RunRecord{}, err
		}
	}
	return record, nil
}

func requireAffected(res sql.Result, id string) error {
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return vault.NewError(vault.KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	return nil
}

func (t *Tracker) check() error {
	if t == nil || t.DB == nil {
		return vault.NewError(vault.KindConfig, "tracker database not configured", nil)
	}
	return nil
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) nextID() string {
	if t.IDGenerator != nil {
		return t.IDGenerator()
	}
	return defaultIDGenerator()()
}

func defaultIDGenerator() func() string {
	var counter uint64
	return func() string {
		id := atomic.AddUint64(&counter, 1)
		return fmt.Sprintf("run-%d", id)
	}
}
