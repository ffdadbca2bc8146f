package vaulthttp

import (
	"net/http"

	vaultapi "github.com/goliatone/go-vault-export/adapters/api"
	"github.com/goliatone/go-vault-export/vault"
)

// Config configures the HTTP adapter.
type Config = vaultapi.Config

// Handler exposes export HTTP endpoints.
type Handler struct {
	controller *vaultapi.Controller
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: vaultapi.NewController(cfg)}
}

// RegisterRoutes registers handlers on a compatible router.
func (h *Handler) RegisterRoutes(router any) {
	switch r := router.(type) {
	case interface{ Handle(string, http.Handler) }:
		r.Handle(h.basePath(), h)
		r.Handle(h.basePath()+"/", h)
	case interface {
		HandleFunc(string, func(http.ResponseWriter, *http.Request))
	}:
		r.HandleFunc(h.basePath(), h.ServeHTTP)
		r.HandleFunc(h.basePath()+"/", h.ServeHTTP)
	}
}

// ServeHTTP routes export endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	if h == nil || h.controller == nil {
		vaultapi.WriteError(httpResponse{w: w}, vault.NewError(vault.KindInternal, "handler is nil", nil))
		return
	}
	h.controller.Serve(httpRequest{r: r}, httpResponse{w: w})
}

func (h *Handler) basePath() string {
	if h == nil || h.controller == nil {
		return "/vault/exports"
	}
	path := h.controller.BasePath()
	if path == "" {
		return "/vault/exports"
	}
	return path
}
