package vault

import (
	"reflect"
	"strings"
	"testing"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{VaultPath: "/vault"}.WithDefaults()

	if cfg.VaultPath != "/vault" {
		t.Errorf("vault path = %q", cfg.VaultPath)
	}
	if cfg.Folder != DefaultFolder {
		t.Errorf("folder = %q, want %q", cfg.Folder, DefaultFolder)
	}
	if cfg.FilenamePattern != DefaultFilenamePattern {
		t.Errorf("pattern = %q, want %q", cfg.FilenamePattern, DefaultFilenamePattern)
	}
	if cfg.Extension != DefaultExtension {
		t.Errorf("extension = %q, want %q", cfg.Extension, DefaultExtension)
	}
	if cfg.MaxFilenameLength != DefaultMaxFilenameLength {
		t.Errorf("max filename length = %d, want %d", cfg.MaxFilenameLength, DefaultMaxFilenameLength)
	}
	if cfg.Backend != BackendPrimary {
		t.Errorf("backend = %q, want %q", cfg.Backend, BackendPrimary)
	}
	if cfg.Defaults.Status != DefaultStatus {
		t.Errorf("status = %q, want %q", cfg.Defaults.Status, DefaultStatus)
	}
	if cfg.Defaults.Priority != DefaultPriority {
		t.Errorf("priority = %q, want %q", cfg.Defaults.Priority, DefaultPriority)
	}
	if cfg.Defaults.Device != DefaultDevice {
		t.Errorf("device = %q, want %q", cfg.Defaults.Device, DefaultDevice)
	}
	if !reflect.DeepEqual(cfg.Defaults.Purpose, []string{"read", "reference"}) {
		t.Errorf("purpose = %v", cfg.Defaults.Purpose)
	}
}

func TestConfigWithDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		VaultPath:         "/vault",
		Folder:            "Articles",
		FilenamePattern:   "{isbn}",
		Extension:         ".markdown",
		MaxFilenameLength: 120,
		Backend:           BackendFallback,
		Defaults: Defaults{
			Status:   "reading",
			Priority: "high",
			Device:   "tablet",
			Purpose:  []string{"research"},
		},
	}.WithDefaults()

	if cfg.Folder != "Articles" || cfg.FilenamePattern != "{isbn}" || cfg.Extension != ".markdown" {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
	if cfg.MaxFilenameLength != 120 || cfg.Backend != BackendFallback {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
	if cfg.Defaults.Status != "reading" || cfg.Defaults.Priority != "high" || cfg.Defaults.Device != "tablet" {
		t.Errorf("explicit defaults overwritten: %+v", cfg.Defaults)
	}
	if !reflect.DeepEqual(cfg.Defaults.Purpose, []string{"research"}) {
		t.Errorf("purpose = %v", cfg.Defaults.Purpose)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{VaultPath: "/vault"}.WithDefaults()

	cases := []struct {
		name    string
		mutate  func(cfg Config) Config
		wantErr bool
	}{
		{"valid", func(cfg Config) Config { return cfg }, false},
		{"missing vault path", func(cfg Config) Config { cfg.VaultPath = "  "; return cfg }, true},
		{"missing folder", func(cfg Config) Config { cfg.Folder = " "; return cfg }, true},
		{"max length below minimum", func(cfg Config) Config { cfg.MaxFilenameLength = 10; return cfg }, true},
		{"max length shorter than extension", func(cfg Config) Config {
			cfg.MaxFilenameLength = MinFilenameLength
			cfg.Extension = "." + strings.Repeat("x", MinFilenameLength)
			return cfg
		}, true},
		{"unknown backend", func(cfg Config) Config { cfg.Backend = "ftp"; return cfg }, true},
		{"fallback backend", func(cfg Config) Config { cfg.Backend = BackendFallback; return cfg }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(valid).Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateRequestSelection(t *testing.T) {
	base := ExportRequest{Config: testConfig()}

	req := normalizeRequest(base)
	if req.Selection.Mode != SelectionAll {
		t.Fatalf("default selection mode = %q", req.Selection.Mode)
	}
	if err := validateRequest(req); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	req = normalizeRequest(base)
	req.Selection = Selection{Mode: SelectionNames}
	if err := validateRequest(req); err == nil {
		t.Fatal("name selection without names should fail")
	}

	req = normalizeRequest(base)
	req.Selection = Selection{Mode: "fuzzy"}
	if err := validateRequest(req); err == nil {
		t.Fatal("unknown selection mode should fail")
	}
}
