package vaultapi

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-vault-export/vault"
)

type stubRequest struct {
	body io.ReadCloser
}

func (s stubRequest) Context() context.Context { return context.Background() }
func (s stubRequest) Method() string           { return "POST" }
func (s stubRequest) Path() string             { return "/vault/exports" }
func (s stubRequest) URL() *url.URL            { return nil }
func (s stubRequest) Header(string) string     { return "" }
func (s stubRequest) Query(string) string      { return "" }
func (s stubRequest) Body() io.ReadCloser      { return s.body }

func TestJSONRequestDecoder_ConfigMapping(t *testing.T) {
	payload := `{
		"config": {
			"vault_path": "/vault",
			"folder": "Books",
			"template": "book",
			"filename_pattern": "{title} - {author}",
			"extension": ".md",
			"defaults": {"status": "unread", "purpose": ["read", "reference"]},
			"overwrite": true,
			"max_filename_length": 120,
			"backend": "local"
		},
		"records": [{"title": "Dune", "author": "Frank Herbert"}],
		"idempotency_key": "abc123"
	}`
	decoder := JSONRequestDecoder{}
	decoded, err := decoder.Decode(stubRequest{body: io.NopCloser(strings.NewReader(payload))})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cfg := decoded.Export.Config
	if cfg.VaultPath != "/vault" || cfg.Folder != "Books" {
		t.Fatalf("expected vault path and folder, got %q/%q", cfg.VaultPath, cfg.Folder)
	}
	if cfg.Template != "book" {
		t.Fatalf("expected template book, got %q", cfg.Template)
	}
	if cfg.FilenamePattern != "{title} - {author}" {
		t.Fatalf("expected filename pattern, got %q", cfg.FilenamePattern)
	}
	if cfg.Extension != ".md" {
		t.Fatalf("expected extension .md, got %q", cfg.Extension)
	}
	if cfg.Defaults.Status != "unread" {
		t.Fatalf("expected default status, got %q", cfg.Defaults.Status)
	}
	if len(cfg.Defaults.Purpose) != 2 || cfg.Defaults.Purpose[0] != "read" {
		t.Fatalf("expected default purpose, got %v", cfg.Defaults.Purpose)
	}
	if !cfg.Overwrite {
		t.Fatalf("expected overwrite")
	}
	if cfg.MaxFilenameLength != 120 {
		t.Fatalf("expected max filename length 120, got %d", cfg.MaxFilenameLength)
	}
	if cfg.Backend != vault.BackendPrimary {
		t.Fatalf("expected primary backend, got %q", cfg.Backend)
	}
	if len(decoded.Export.Records) != 1 || decoded.Export.Records[0]["title"] != "Dune" {
		t.Fatalf("expected records, got %v", decoded.Export.Records)
	}
	if decoded.Export.IdempotencyKey != "abc123" {
		t.Fatalf("expected idempotency key, got %q", decoded.Export.IdempotencyKey)
	}
}

func TestJSONRequestDecoder_BackendAlias(t *testing.T) {
	payload := `{"config":{"vault_path":"/vault","backend":"remote","remote_url":"http://files.test"}}`
	decoder := JSONRequestDecoder{}
	decoded, err := decoder.Decode(stubRequest{body: io.NopCloser(strings.NewReader(payload))})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Export.Config.Backend != vault.BackendFallback {
		t.Fatalf("expected fallback backend, got %q", decoded.Export.Config.Backend)
	}
	if decoded.Export.Config.RemoteURL != "http://files.test" {
		t.Fatalf("expected remote url, got %q", decoded.Export.Config.RemoteURL)
	}
}

func TestJSONRequestDecoder_SelectionNames(t *testing.T) {
	payload := `{"config":{"vault_path":"/vault"},"selection":{"mode":"names","names":["Dune - Frank Herbert"]}}`
	decoder := JSONRequestDecoder{}
	decoded, err := decoder.Decode(stubRequest{body: io.NopCloser(strings.NewReader(payload))})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Export.Selection.Mode != vault.SelectionNames {
		t.Fatalf("expected names mode, got %q", decoded.Export.Selection.Mode)
	}
	if len(decoded.Export.Selection.Names) != 1 || decoded.Export.Selection.Names[0] != "Dune - Frank Herbert" {
		t.Fatalf("expected selection names, got %v", decoded.Export.Selection.Names)
	}
}

func TestJSONRequestDecoder_SourceKey(t *testing.T) {
	payload := `{"config":{"vault_path":"/vault"},"source":"library","source_params":{"shelf":"scifi"}}`
	decoder := JSONRequestDecoder{}
	decoded, err := decoder.Decode(stubRequest{body: io.NopCloser(strings.NewReader(payload))})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SourceKey != "library" {
		t.Fatalf("expected source key library, got %q", decoded.SourceKey)
	}
	if decoded.SourceParams["shelf"] != "scifi" {
		t.Fatalf("expected source params, got %v", decoded.SourceParams)
	}
}

func TestJSONRequestDecoder_UnknownField(t *testing.T) {
	payload := `{"config":{"vault_path":"/vault"},"formats":["csv"]}`
	decoder := JSONRequestDecoder{}
	_, err := decoder.Decode(stubRequest{body: io.NopCloser(strings.NewReader(payload))})
	if err == nil {
		t.Fatalf("expected unknown field error")
	}
	if vault.KindFromError(err) != vault.KindValidation {
		t.Fatalf("expected validation kind, got %q", vault.KindFromError(err))
	}
}

func TestJSONRequestDecoder_MissingBody(t *testing.T) {
	decoder := JSONRequestDecoder{}
	_, err := decoder.Decode(stubRequest{})
	if err == nil {
		t.Fatalf("expected missing body error")
	}
	if vault.KindFromError(err) != vault.KindValidation {
		t.Fatalf("expected validation kind, got %q", vault.KindFromError(err))
	}
}
