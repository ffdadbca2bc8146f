package vaultapi

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	errorslib "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vault-export/vault"
)

// Config configures the shared export API controller.
type Config struct {
	Service          vault.Service
	Sources          *vault.SourceRegistry
	ActorProvider    vault.ActorProvider
	BasePath         string
	IdempotencyStore IdempotencyStore
	IdempotencyTTL   time.Duration
	Logger           vault.Logger
	RequestDecoder   RequestDecoder
}

// Controller exposes export API handlers for multiple transports.
type Controller struct {
	service          vault.Service
	sources          *vault.SourceRegistry
	actorProvider    vault.ActorProvider
	basePath         string
	idempotencyStore IdempotencyStore
	idempotencyTTL   time.Duration
	logger           vault.Logger
	requestDecoder   RequestDecoder
}

// NewController creates a shared export API controller.
func NewController(cfg Config) *Controller {
	basePath := strings.TrimRight(cfg.BasePath, "/")
	if basePath == "" {
		basePath = "/vault/exports"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = vault.NopLogger{}
	}
	decoder := cfg.RequestDecoder
	if decoder == nil {
		decoder = JSONRequestDecoder{}
	}
	return &Controller{
		service:          cfg.Service,
		sources:          cfg.Sources,
		actorProvider:    cfg.ActorProvider,
		basePath:         basePath,
		idempotencyStore: cfg.IdempotencyStore,
		idempotencyTTL:   cfg.IdempotencyTTL,
		logger:           logger,
		requestDecoder:   decoder,
	}
}

// BasePath returns the configured base path.
func (c *Controller) BasePath() string {
	if c == nil {
		return ""
	}
	return c.basePath
}

// Serve routes export endpoints using the shared controller.
func (c *Controller) Serve(req Request, res Response) {
	if res == nil {
		return
	}
	if c == nil {
		WriteError(res, vault.NewError(vault.KindInternal, "handler is nil", nil))
		return
	}
	if req == nil {
		WriteError(res, vault.NewError(vault.KindInternal, "request is nil", nil))
		return
	}
	if !strings.HasPrefix(req.Path(), c.basePath) {
		writeNotFound(res)
		return
	}

	pathSuffix := strings.TrimPrefix(req.Path(), c.basePath)
	pathSuffix = strings.Trim(pathSuffix, "/")
	parts := []string{}
	if pathSuffix != "" {
		parts = strings.Split(pathSuffix, "/")
	}

	switch req.Method() {
	case http.MethodPost:
		switch {
		case len(parts) == 0:
			c.handleExport(req, res)
		case len(parts) == 1 && parts[0] == "preview":
			c.handlePreview(req, res)
		default:
			writeNotFound(res)
		}
	case http.MethodGet:
		switch len(parts) {
		case 0:
			c.handleList(req, res)
		case 1:
			c.handleStatus(req, res, parts[0])
		default:
			writeNotFound(res)
		}
	case http.MethodDelete:
		if len(parts) != 1 {
			writeNotFound(res)
			return
		}
		c.handleDelete(req, res, parts[0])
	default:
		res.SetHeader("Allow", "GET,POST,DELETE")
		res.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c *Controller) handleExport(req Request, res Response) {
	if c.service == nil {
		WriteError(res, vault.NewError(vault.KindConfig, "export service not configured", nil))
		return
	}
	decoded, err := c.decodeSubmission(req)
	if err != nil {
		WriteError(res, err)
		return
	}
	actor, err := c.actorFromRequest(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	idempotencyKey := decoded.Export.IdempotencyKey
	if idempotencyKey != "" && c.idempotencyStore != nil {
		signature := buildIdempotencyKey(idempotencyKey, actor, decoded)
		exportID, ok, err := c.idempotencyStore.Get(req.Context(), signature)
		if err != nil {
			WriteError(res, err)
			return
		}
		if ok {
			record, err := c.service.Status(req.Context(), actor, exportID)
			if err == nil && isReplayableState(record.State) {
				writeJSON(res, http.StatusOK, c.replayResponse(record))
				return
			}
		}
	}

	exportReq, err := c.exportRequest(decoded)
	if err != nil {
		WriteError(res, err)
		return
	}

	result, err := c.service.Export(req.Context(), actor, exportReq)
	if err != nil {
		WriteError(res, err)
		return
	}

	if idempotencyKey != "" && c.idempotencyStore != nil {
		signature := buildIdempotencyKey(idempotencyKey, actor, decoded)
		ttl := c.idempotencyTTL
		if ttl == 0 {
			ttl = 24 * time.Hour
		}
		if err := c.idempotencyStore.Set(req.Context(), signature, result.ExportID, ttl); err != nil {
			c.logger.Errorf("idempotency store set failed: %v", err)
		}
	}

	writeJSON(res, http.StatusOK, c.exportResponse(result))
}

func (c *Controller) handlePreview(req Request, res Response) {
	if c.service == nil {
		WriteError(res, vault.NewError(vault.KindConfig, "export service not configured", nil))
		return
	}
	decoded, err := c.decodeSubmission(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	exportReq, err := c.exportRequest(decoded)
	if err != nil {
		WriteError(res, err)
		return
	}

	preview, err := c.service.Preview(req.Context(), exportReq)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, PreviewResponse{
		Filename:     preview.Filename,
		Content:      preview.Content,
		Fields:       preview.Fields,
		Placeholders: preview.Placeholders,
	})
}

func (c *Controller) handleList(req Request, res Response) {
	if c.service == nil {
		WriteError(res, vault.NewError(vault.KindConfig, "export service not configured", nil))
		return
	}
	actor, err := c.actorFromRequest(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	filter, err := parseFilter(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	records, err := c.service.History(req.Context(), actor, filter)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, records)
}

func (c *Controller) handleStatus(req Request, res Response, exportID string) {
	if c.service == nil {
		WriteError(res, vault.NewError(vault.KindConfig, "export service not configured", nil))
		return
	}
	actor, err := c.actorFromRequest(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	record, err := c.service.Status(req.Context(), actor, exportID)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, record)
}

func (c *Controller) handleDelete(req Request, res Response, exportID string) {
	if c.service == nil {
		WriteError(res, vault.NewError(vault.KindConfig, "export service not configured", nil))
		return
	}
	actor, err := c.actorFromRequest(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	if err := c.service.Delete(req.Context(), actor, exportID); err != nil {
		WriteError(res, err)
		return
	}
	res.WriteHeader(http.StatusNoContent)
}

func (c *Controller) decodeSubmission(req Request) (DecodedRequest, error) {
	if c.requestDecoder == nil {
		return DecodedRequest{}, vault.NewError(vault.KindInternal, "request decoder not configured", nil)
	}
	decoded, err := c.requestDecoder.Decode(req)
	if err != nil {
		return DecodedRequest{}, err
	}
	if key := req.Header("Idempotency-Key"); key != "" {
		decoded.Export.IdempotencyKey = key
	}
	return decoded, nil
}

// exportRequest resolves a decoded submission into a runnable request,
// constructing the record source when the submission names one.
func (c *Controller) exportRequest(decoded DecodedRequest) (vault.ExportRequest, error) {
	exportReq := decoded.Export
	if decoded.SourceKey == "" {
		return exportReq, nil
	}

	if c.sources == nil {
		return vault.ExportRequest{}, vault.NewError(vault.KindConfig, "source registry not configured", nil)
	}
	factory, ok := c.sources.Resolve(decoded.SourceKey)
	if !ok {
		return vault.ExportRequest{}, vault.NewError(vault.KindNotFound, fmt.Sprintf("source %q not registered", decoded.SourceKey), nil)
	}
	source, err := factory(decoded.SourceParams)
	if err != nil {
		return vault.ExportRequest{}, err
	}
	if source == nil {
		return vault.ExportRequest{}, vault.NewError(vault.KindInternal, "source factory returned no source", nil)
	}
	exportReq.Source = source
	return exportReq, nil
}

func (c *Controller) actorFromRequest(req Request) (vault.Actor, error) {
	if c.actorProvider == nil {
		return vault.Actor{}, nil
	}
	actor, err := c.actorProvider.FromContext(req.Context())
	if err != nil {
		return vault.Actor{}, vault.NewError(vault.KindValidation, "actor resolution failed", err)
	}
	return actor, nil
}

func (c *Controller) exportResponse(result *vault.Result) ExportResponse {
	if result == nil {
		return ExportResponse{}
	}
	resp := ExportResponse{
		ID:        result.ExportID,
		State:     result.State,
		Created:   result.Created,
		Updated:   result.Updated,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
		Total:     result.Total,
		Summary:   result.Summary(),
		StatusURL: c.statusURL(result.ExportID),
	}
	for _, re := range result.Errors {
		resp.Errors = append(resp.Errors, RecordErrorPayload{Name: re.Name, Message: re.Message})
	}
	return resp
}

func (c *Controller) replayResponse(record vault.RunRecord) ExportResponse {
	return ExportResponse{
		ID:        record.ID,
		State:     record.State,
		Created:   record.Created,
		Updated:   record.Updated,
		Skipped:   record.Skipped,
		Failed:    record.Failed,
		Total:     record.Total,
		Summary:   record.ErrorSummary,
		StatusURL: c.statusURL(record.ID),
	}
}

func (c *Controller) statusURL(exportID string) string {
	return path.Join(c.basePath, exportID)
}

// isReplayableState reports whether an idempotency hit can stand in for
// a new run. Failed runs are re-run.
func isReplayableState(state vault.RunState) bool {
	switch state {
	case vault.StateFailed, "":
		return false
	default:
		return true
	}
}

func writeNotFound(res Response) {
	res.SetHeader("Content-Type", "text/plain; charset=utf-8")
	res.SetHeader("X-Content-Type-Options", "nosniff")
	res.WriteHeader(http.StatusNotFound)
	_, _ = res.Write([]byte("404 page not found\n"))
}

// WriteError maps an error onto the JSON error envelope with an HTTP
// status derived from its category.
func WriteError(res Response, err error) {
	if err == nil {
		res.WriteHeader(http.StatusNoContent)
		return
	}
	ge := vault.AsGoError(err)
	status := statusForError(ge)
	payload := ErrorResponse{
		Error: ErrorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	}
	writeJSON(res, status, payload)
}

func writeJSON(res Response, status int, payload any) {
	_ = res.WriteJSON(status, payload)
}

func statusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryAuthz:
		return http.StatusForbidden
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	case errorslib.CategoryExternal:
		return http.StatusBadGateway
	case errorslib.CategoryOperation:
		switch err.TextCode {
		case "timeout":
			return http.StatusRequestTimeout
		case "canceled":
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusInternalServerError
	}
}

func parseFilter(req Request) (vault.RunFilter, error) {
	filter := vault.RunFilter{
		VaultPath: strings.TrimSpace(req.Query("vault_path")),
		Folder:    strings.TrimSpace(req.Query("folder")),
		State:     vault.RunState(strings.TrimSpace(req.Query("state"))),
	}
	if since := req.Query("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return vault.RunFilter{}, vault.NewError(vault.KindValidation, "invalid since timestamp", err)
		}
		filter.Since = ts
	}
	if until := req.Query("until"); until != "" {
		ts, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return vault.RunFilter{}, vault.NewError(vault.KindValidation, "invalid until timestamp", err)
		}
		filter.Until = ts
	}
	if limit := req.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return vault.RunFilter{}, vault.NewError(vault.KindValidation, "invalid limit", err)
		}
		filter.Limit = n
	}
	if offset := req.Query("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return vault.RunFilter{}, vault.NewError(vault.KindValidation, "invalid offset", err)
		}
		filter.Offset = n
	}
	return filter, nil
}
