package storerest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-vault-export/vault"
)

// Store talks to a remote vault file tool over HTTP. The remote API
// addresses notes by vault-relative path and upserts on write:
//
//	POST {base}/vault/folders         {"path": "<folder>"}
//	HEAD {base}/vault/files/{path}    200 present, 404 absent
//	GET  {base}/vault/files/{path}    200 {"content": "..."}, 404 absent
//	PUT  {base}/vault/files/{path}    {"content": "..."}
//
// Wrap it with vault.NewFallbackStore to keep exports flowing when the
// remote is down.
type Store struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token  string
	Client *http.Client
}

var _ vault.Store = (*Store)(nil)

// NewStore creates a remote vault store client.
func NewStore(baseURL string) *Store {
	return &Store{BaseURL: baseURL}
}

type folderPayload struct {
	Path string `json:"path"`
}

type filePayload struct {
	Content string `json:"content"`
}

// EnsureContainer asks the remote to create the folder when missing.
func (s *Store) EnsureContainer(ctx context.Context, container string) error {
	if err := s.check(); err != nil {
		return err
	}
	if strings.TrimSpace(container) == "" {
		return vault.NewError(vault.KindValidation, "folder is required", nil)
	}
	resp, err := s.do(ctx, http.MethodPost, s.endpoint("vault", "folders"), folderPayload{Path: container})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return s.statusError("create folder", container, resp)
	}
	return nil
}

// Exists checks the remote for a note.
func (s *Store) Exists(ctx context.Context, container, name string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	resp, err := s.do(ctx, http.MethodHead, s.fileEndpoint(container, name), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case success(resp.StatusCode):
		return true, nil
	default:
		return false, s.statusError("check", path(container, name), resp)
	}
}

// Create writes a note. The remote upserts, so create and update share
// one call.
func (s *Store) Create(ctx context.Context, container, name string, content []byte) error {
	return s.write(ctx, container, name, content)
}

// Update replaces a note's content.
func (s *Store) Update(ctx context.Context, container, name string, content []byte) error {
	return s.write(ctx, container, name, content)
}

// Read fetches a note's content.
func (s *Store) Read(ctx context.Context, container, name string) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	resp, err := s.do(ctx, http.MethodGet, s.fileEndpoint(container, name), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, vault.NewError(vault.KindNotFound, fmt.Sprintf("note %q not found", path(container, name)), nil)
	}
	if !success(resp.StatusCode) {
		return nil, s.statusError("read", path(container, name), resp)
	}

	var payload filePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, vault.NewError(vault.KindExternal, "remote returned an invalid body", err)
	}
	return []byte(payload.Content), nil
}

func (s *Store) write(ctx context.Context, container, name string, content []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return vault.NewError(vault.KindValidation, "note name is required", nil)
	}
	resp, err := s.do(ctx, http.MethodPut, s.fileEndpoint(container, name), filePayload{Content: string(content)})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return s.statusError("write", path(container, name), resp)
	}
	return nil
}

func (s *Store) do(ctx context.Context, method, endpoint string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, vault.NewError(vault.KindInternal, "failed to encode request", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, vault.NewError(vault.KindInternal, "failed to build request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, vault.NewError(vault.KindExternal, "remote request failed", err)
	}
	return resp, nil
}

func (s *Store) check() error {
	if s == nil {
		return vault.NewError(vault.KindInternal, "store is nil", nil)
	}
	if strings.TrimSpace(s.BaseURL) == "" {
		return vault.NewError(vault.KindValidation, "remote base URL is required", nil)
	}
	return nil
}

func (s *Store) endpoint(parts ...string) string {
	base := strings.TrimRight(s.BaseURL, "/")
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return base + "/" + strings.Join(escaped, "/")
}

func (s *Store) fileEndpoint(container, name string) string {
	return s.endpoint("vault", "files", container, name)
}

func (s *Store) statusError(op, target string, resp *http.Response) error {
	return vault.NewError(vault.KindExternal,
		fmt.Sprintf("remote %s of %q returned %s", op, target, resp.Status), nil)
}

func path(container, name string) string {
	if container == "" {
		return name
	}
	return container + "/" + name
}

func success(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
