package vault

import (
	"embed"
	"io/fs"
)

//go:embed assets/*.md
var embeddedAssets embed.FS

// DefaultTemplateName identifies the built-in template.
const DefaultTemplateName = "book"

// DefaultTemplate returns the built-in book note template body.
func DefaultTemplate() string {
	data, err := embeddedAssets.ReadFile("assets/book.md")
	if err != nil {
		return ""
	}
	return string(data)
}

// TemplateAssetsFS exposes the embedded template assets.
//
// Typical use: seed a TemplateRegistry with the shipped templates, or
// serve them for preview UIs.
func TemplateAssetsFS() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return embeddedAssets
	}
	return sub
}
