package vaultapi

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/goliatone/go-vault-export/vault"
)

// Request provides minimal request access for transport adapters.
type Request interface {
	Context() context.Context
	Method() string
	Path() string
	URL() *url.URL
	Header(name string) string
	Query(name string) string
	Body() io.ReadCloser
}

// DecodedRequest is one transport-decoded export submission. Live
// record sources cannot arrive over the wire; SourceKey names a
// registered factory the controller resolves before running.
type DecodedRequest struct {
	Export       vault.ExportRequest
	SourceKey    string
	SourceParams map[string]string
}

// RequestDecoder parses an HTTP request into an export submission.
type RequestDecoder interface {
	Decode(req Request) (DecodedRequest, error)
}

// JSONRequestDecoder decodes JSON bodies into export submissions.
type JSONRequestDecoder struct{}

// Decode decodes a JSON request body into an export submission.
func (d JSONRequestDecoder) Decode(req Request) (DecodedRequest, error) {
	if req == nil {
		return DecodedRequest{}, vault.NewError(vault.KindInternal, "request is nil", nil)
	}
	body := req.Body()
	if body == nil {
		return DecodedRequest{}, vault.NewError(vault.KindValidation, "request body is required", nil)
	}
	defer body.Close()

	payload, err := decodeBody(body)
	if err != nil {
		return DecodedRequest{}, err
	}

	return DecodedRequest{
		Export: vault.ExportRequest{
			Config:         payload.Config.toConfig(),
			Records:        payload.Records,
			Selection:      payload.Selection.toSelection(),
			IdempotencyKey: payload.IdempotencyKey,
		},
		SourceKey:    strings.TrimSpace(payload.Source),
		SourceParams: payload.SourceParams,
	}, nil
}

func normalizeBackend(backend string) vault.Backend {
	normalized := strings.ToLower(strings.TrimSpace(backend))
	switch normalized {
	case "local", "fs":
		return vault.BackendPrimary
	case "remote":
		return vault.BackendFallback
	default:
		return vault.Backend(normalized)
	}
}

type requestPayload struct {
	Config         configPayload     `json:"config"`
	Records        []vault.Record    `json:"records,omitempty"`
	Source         string            `json:"source,omitempty"`
	SourceParams   map[string]string `json:"source_params,omitempty"`
	Selection      selectionPayload  `json:"selection,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

type configPayload struct {
	VaultPath         string          `json:"vault_path"`
	Folder            string          `json:"folder,omitempty"`
	Template          string          `json:"template,omitempty"`
	TemplateBody      string          `json:"template_body,omitempty"`
	FilenamePattern   string          `json:"filename_pattern,omitempty"`
	Extension         string          `json:"extension,omitempty"`
	Defaults          defaultsPayload `json:"defaults,omitempty"`
	Overwrite         bool            `json:"overwrite,omitempty"`
	MaxFilenameLength int             `json:"max_filename_length,omitempty"`
	Backend           string          `json:"backend,omitempty"`
	RemoteURL         string          `json:"remote_url,omitempty"`
}

func (p configPayload) toConfig() vault.Config {
	return vault.Config{
		VaultPath:         p.VaultPath,
		Folder:            p.Folder,
		Template:          p.Template,
		TemplateBody:      p.TemplateBody,
		FilenamePattern:   p.FilenamePattern,
		Extension:         p.Extension,
		Defaults:          p.Defaults.toDefaults(),
		Overwrite:         p.Overwrite,
		MaxFilenameLength: p.MaxFilenameLength,
		Backend:           normalizeBackend(p.Backend),
		RemoteURL:         p.RemoteURL,
	}
}

type defaultsPayload struct {
	Status   string   `json:"status,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Device   string   `json:"device,omitempty"`
	Purpose  []string `json:"purpose,omitempty"`
}

func (p defaultsPayload) toDefaults() vault.Defaults {
	return vault.Defaults{
		Status:   p.Status,
		Priority: p.Priority,
		Device:   p.Device,
		Purpose:  p.Purpose,
	}
}

type selectionPayload struct {
	Mode  vault.SelectionMode `json:"mode,omitempty"`
	Names []string            `json:"names,omitempty"`
}

func (p selectionPayload) toSelection() vault.Selection {
	return vault.Selection{Mode: p.Mode, Names: p.Names}
}

func decodeBody(body io.Reader) (requestPayload, error) {
	var payload requestPayload
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return requestPayload{}, vault.NewError(vault.KindValidation, "invalid request payload", err)
	}
	return payload, nil
}
