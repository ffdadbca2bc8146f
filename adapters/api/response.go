package vaultapi

import "github.com/goliatone/go-vault-export/vault"

// Response provides a minimal response interface for transport adapters.
type Response interface {
	SetHeader(name, value string)
	WriteHeader(status int)
	Write(data []byte) (int, error)
	WriteJSON(status int, payload any) error
}

// ExportResponse describes a completed or replayed export run.
type ExportResponse struct {
	ID        string               `json:"id"`
	State     vault.RunState       `json:"state"`
	Created   int                  `json:"created"`
	Updated   int                  `json:"updated"`
	Skipped   int                  `json:"skipped"`
	Failed    int                  `json:"failed"`
	Total     int                  `json:"total"`
	Summary   string               `json:"summary,omitempty"`
	Errors    []RecordErrorPayload `json:"errors,omitempty"`
	StatusURL string               `json:"status_url"`
}

// RecordErrorPayload is one per-record failure entry.
type RecordErrorPayload struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// PreviewResponse describes a rendered note preview.
type PreviewResponse struct {
	Filename     string         `json:"filename"`
	Content      string         `json:"content"`
	Fields       vault.FieldMap `json:"fields,omitempty"`
	Placeholders []string       `json:"placeholders,omitempty"`
}

// ErrorResponse describes JSON error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains error details.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
