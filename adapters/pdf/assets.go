package vaultpdf

import (
	"embed"
	"io/fs"
)

//go:embed assets/*
var embeddedAssets embed.FS

// AssetsFS exposes the embedded shell and stylesheet assets.
func AssetsFS() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return embeddedAssets
	}
	return sub
}

// DefaultShell returns the built-in HTML page shell.
func DefaultShell() []byte {
	data, err := embeddedAssets.ReadFile("assets/shell.html")
	if err != nil {
		return nil
	}
	return data
}

// DefaultStyle returns the built-in companion stylesheet.
func DefaultStyle() []byte {
	data, err := embeddedAssets.ReadFile("assets/note.css")
	if err != nil {
		return nil
	}
	return data
}
