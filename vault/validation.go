package vault

import (
	"fmt"
	"strings"
)

// Default configuration values applied by Config.WithDefaults.
const (
	DefaultFolder            = "Books"
	DefaultFilenamePattern   = "{title} - {author}"
	DefaultExtension         = ".md"
	DefaultMaxFilenameLength = 200
	MinFilenameLength        = 50
	DefaultStatus            = "unread"
	DefaultPriority          = "medium"
	DefaultDevice            = "computer"
)

// DefaultPurpose returns the default purpose tags.
func DefaultPurpose() []string {
	return []string{"read", "reference"}
}

// WithDefaults returns a copy of the config with zero values filled in.
// VaultPath is never defaulted; it identifies the caller's target tree.
func (c Config) WithDefaults() Config {
	if c.Folder == "" {
		c.Folder = DefaultFolder
	}
	if c.FilenamePattern == "" {
		c.FilenamePattern = DefaultFilenamePattern
	}
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	if c.MaxFilenameLength == 0 {
		c.MaxFilenameLength = DefaultMaxFilenameLength
	}
	if c.Backend == "" {
		c.Backend = BackendPrimary
	}
	if c.Defaults.Status == "" {
		c.Defaults.Status = DefaultStatus
	}
	if c.Defaults.Priority == "" {
		c.Defaults.Priority = DefaultPriority
	}
	if c.Defaults.Device == "" {
		c.Defaults.Device = DefaultDevice
	}
	if len(c.Defaults.Purpose) == 0 {
		c.Defaults.Purpose = DefaultPurpose()
	}
	return c
}

// Validate checks the config invariants. Call after WithDefaults when
// zero values should stand in for the shipped defaults.
func (c Config) Validate() error {
	if strings.TrimSpace(c.VaultPath) == "" {
		return NewError(KindConfig, "vault path is required", nil)
	}
	if strings.TrimSpace(c.Folder) == "" {
		return NewError(KindConfig, "folder is required", nil)
	}
	if c.MaxFilenameLength < MinFilenameLength {
		return NewError(KindConfig, fmt.Sprintf("max filename length must be at least %d", MinFilenameLength), nil)
	}
	if c.MaxFilenameLength <= len(c.Extension) {
		return NewError(KindConfig, "max filename length must exceed the extension length", nil)
	}
	switch c.Backend {
	case BackendPrimary, BackendFallback:
	default:
		return NewError(KindConfig, fmt.Sprintf("unknown backend %q", c.Backend), nil)
	}
	return nil
}

func normalizeRequest(req ExportRequest) ExportRequest {
	req.Config = req.Config.WithDefaults()
	if req.Selection.Mode == "" {
		req.Selection.Mode = SelectionAll
	}
	return req
}

func validateRequest(req ExportRequest) error {
	if err := req.Config.Validate(); err != nil {
		return err
	}
	switch req.Selection.Mode {
	case SelectionAll:
	case SelectionNames:
		if len(req.Selection.Names) == 0 {
			return NewError(KindValidation, "selection names are required", nil)
		}
	default:
		return NewError(KindValidation, fmt.Sprintf("unknown selection mode %q", req.Selection.Mode), nil)
	}
	return nil
}
