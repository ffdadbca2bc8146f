package vaultapi

import (
	"context"
	"io"
	"net/url"
	"testing"

	"github.com/goliatone/go-vault-export/vault"
)

type stubQueryRequest struct {
	parsed *url.URL
}

func (s stubQueryRequest) Context() context.Context { return context.Background() }
func (s stubQueryRequest) Method() string           { return "POST" }
func (s stubQueryRequest) Path() string             { return "/vault/exports" }
func (s stubQueryRequest) URL() *url.URL            { return s.parsed }
func (s stubQueryRequest) Header(string) string     { return "" }
func (s stubQueryRequest) Query(name string) string {
	if s.parsed == nil {
		return ""
	}
	return s.parsed.Query().Get(name)
}
func (s stubQueryRequest) Body() io.ReadCloser { return nil }

func TestQueryRequestDecoder_Mapping(t *testing.T) {
	raw := "/vault/exports?vault_path=/vault&folder=Books&template=book&extension=.md" +
		"&backend=remote&remote_url=http://files.test&overwrite=true&max_filename_length=120" +
		"&default_status=unread&default_purpose=read,reference" +
		"&selection_names=Dune - Frank Herbert,Emma - Jane Austen" +
		"&source=library&source_params={\"shelf\":\"scifi\"}&idempotency_key=abc123"
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	decoder := QueryRequestDecoder{}
	decoded, err := decoder.Decode(stubQueryRequest{parsed: parsed})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cfg := decoded.Export.Config
	if cfg.VaultPath != "/vault" || cfg.Folder != "Books" {
		t.Fatalf("expected vault path and folder, got %q/%q", cfg.VaultPath, cfg.Folder)
	}
	if cfg.Template != "book" || cfg.Extension != ".md" {
		t.Fatalf("expected template and extension, got %q/%q", cfg.Template, cfg.Extension)
	}
	if cfg.Backend != vault.BackendFallback {
		t.Fatalf("expected fallback backend, got %q", cfg.Backend)
	}
	if cfg.RemoteURL != "http://files.test" {
		t.Fatalf("expected remote url, got %q", cfg.RemoteURL)
	}
	if !cfg.Overwrite || cfg.MaxFilenameLength != 120 {
		t.Fatalf("expected overwrite and max length, got %v/%d", cfg.Overwrite, cfg.MaxFilenameLength)
	}
	if cfg.Defaults.Status != "unread" {
		t.Fatalf("expected default status, got %q", cfg.Defaults.Status)
	}
	if len(cfg.Defaults.Purpose) != 2 || cfg.Defaults.Purpose[1] != "reference" {
		t.Fatalf("expected default purpose, got %v", cfg.Defaults.Purpose)
	}
	if decoded.Export.Selection.Mode != vault.SelectionNames {
		t.Fatalf("expected inferred names mode, got %q", decoded.Export.Selection.Mode)
	}
	if len(decoded.Export.Selection.Names) != 2 || decoded.Export.Selection.Names[0] != "Dune - Frank Herbert" {
		t.Fatalf("expected selection names, got %v", decoded.Export.Selection.Names)
	}
	if decoded.SourceKey != "library" {
		t.Fatalf("expected source key library, got %q", decoded.SourceKey)
	}
	if decoded.SourceParams["shelf"] != "scifi" {
		t.Fatalf("expected source params, got %v", decoded.SourceParams)
	}
	if decoded.Export.IdempotencyKey != "abc123" {
		t.Fatalf("expected idempotency key, got %q", decoded.Export.IdempotencyKey)
	}
}

func TestQueryRequestDecoder_InvalidOverwrite(t *testing.T) {
	parsed, err := url.ParseRequestURI("/vault/exports?vault_path=/vault&overwrite=maybe")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	decoder := QueryRequestDecoder{}
	_, err = decoder.Decode(stubQueryRequest{parsed: parsed})
	if err == nil {
		t.Fatalf("expected overwrite error")
	}
	if vault.KindFromError(err) != vault.KindValidation {
		t.Fatalf("expected validation kind, got %q", vault.KindFromError(err))
	}
}

func TestQueryRequestDecoder_InvalidSourceParams(t *testing.T) {
	parsed, err := url.ParseRequestURI("/vault/exports?vault_path=/vault&source=library&source_params=shelf:scifi")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	decoder := QueryRequestDecoder{}
	_, err = decoder.Decode(stubQueryRequest{parsed: parsed})
	if err == nil {
		t.Fatalf("expected source params error")
	}
	if vault.KindFromError(err) != vault.KindValidation {
		t.Fatalf("expected validation kind, got %q", vault.KindFromError(err))
	}
}
