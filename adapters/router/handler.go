package vaultrouter

import (
	"github.com/goliatone/go-router"
	vaultapi "github.com/goliatone/go-vault-export/adapters/api"
	"github.com/goliatone/go-vault-export/vault"
)

// Config configures the go-router adapter.
type Config = vaultapi.Config

// Handler exposes export routes for go-router.
type Handler struct {
	controller *vaultapi.Controller
}

// NewHandler creates a go-router handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: vaultapi.NewController(cfg)}
}

// RegisterRoutes registers routes on a compatible go-router router.
func (h *Handler) RegisterRoutes(router any) {
	r, ok := router.(routeRegistrar)
	if !ok {
		return
	}
	base := h.basePath()

	r.Post(base, h.Handle)
	r.Post(base+"/", h.Handle)
	r.Post(base+"/preview", h.Handle)
	r.Get(base, h.Handle)
	r.Get(base+"/", h.Handle)
	r.Get(base+"/:id", h.Handle)
	r.Delete(base+"/:id", h.Handle)
}

// Handle executes the shared export workflow.
func (h *Handler) Handle(c router.Context) error {
	if c == nil {
		return nil
	}
	if h == nil || h.controller == nil {
		vaultapi.WriteError(routerResponse{ctx: c}, vault.NewError(vault.KindInternal, "handler is nil", nil))
		return nil
	}
	h.controller.Serve(routerRequest{ctx: c}, routerResponse{ctx: c})
	return nil
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

type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}
