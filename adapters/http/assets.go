package vaulthttp

import (
	"net/http"

	"github.com/goliatone/go-vault-export/vault"
)

// DefaultTemplateAssetsPath is where the shipped note templates are mounted.
const DefaultTemplateAssetsPath = "/vault/assets/templates"

// TemplateAssetsHandler serves the embedded note templates (preview UIs,
// template pickers).
func TemplateAssetsHandler(prefix string) http.Handler {
	if prefix == "" {
		prefix = DefaultTemplateAssetsPath
	}
	prefix = ensureTrailingSlash(prefix)
	return http.StripPrefix(prefix, http.FileServer(http.FS(vault.TemplateAssetsFS())))
}

func ensureTrailingSlash(value string) string {
	if value == "" {
		return ""
	}
	if value[len(value)-1] == '/' {
		return value
	}
	return value + "/"
}
