package vaultapi

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-vault-export/vault"
)

// QueryRequestDecoder decodes querystring submissions into export
// requests, for transports where a JSON body is awkward (HTML forms,
// hand-typed requests). Records cannot ride a querystring; submissions
// name a registered source instead.
type QueryRequestDecoder struct{}

// Decode parses query params into an export submission.
func (d QueryRequestDecoder) Decode(req Request) (DecodedRequest, error) {
	if req == nil {
		return DecodedRequest{}, vault.NewError(vault.KindInternal, "request is nil", nil)
	}

	values := url.Values{}
	if parsed := req.URL(); parsed != nil {
		values = parsed.Query()
	}

	cfg := vault.Config{
		VaultPath:       strings.TrimSpace(values.Get("vault_path")),
		Folder:          strings.TrimSpace(values.Get("folder")),
		Template:        strings.TrimSpace(values.Get("template")),
		FilenamePattern: values.Get("filename_pattern"),
		Extension:       strings.TrimSpace(values.Get("extension")),
		Backend:         normalizeBackend(values.Get("backend")),
		RemoteURL:       strings.TrimSpace(values.Get("remote_url")),
		Defaults: vault.Defaults{
			Status:   strings.TrimSpace(values.Get("default_status")),
			Priority: strings.TrimSpace(values.Get("default_priority")),
			Device:   strings.TrimSpace(values.Get("default_device")),
			Purpose:  splitCSVValues(values["default_purpose"]),
		},
	}

	if raw := strings.TrimSpace(values.Get("overwrite")); raw != "" {
		overwrite, err := strconv.ParseBool(raw)
		if err != nil {
			return DecodedRequest{}, vault.NewError(vault.KindValidation, "invalid overwrite flag", err)
		}
		cfg.Overwrite = overwrite
	}
	if raw := strings.TrimSpace(values.Get("max_filename_length")); raw != "" {
		length, err := strconv.Atoi(raw)
		if err != nil {
			return DecodedRequest{}, vault.NewError(vault.KindValidation, "invalid max filename length", err)
		}
		cfg.MaxFilenameLength = length
	}

	selectionMode := vault.SelectionMode(strings.ToLower(strings.TrimSpace(values.Get("selection_mode"))))
	selectionNames := splitCSVValues(values["selection_names"])
	if selectionMode == "" && len(selectionNames) > 0 {
		selectionMode = vault.SelectionNames
	}

	sourceParams, err := parseSourceParams(values.Get("source_params"))
	if err != nil {
		return DecodedRequest{}, err
	}

	return DecodedRequest{
		Export: vault.ExportRequest{
			Config:         cfg,
			Selection:      vault.Selection{Mode: selectionMode, Names: selectionNames},
			IdempotencyKey: strings.TrimSpace(values.Get("idempotency_key")),
		},
		SourceKey:    strings.TrimSpace(values.Get("source")),
		SourceParams: sourceParams,
	}, nil
}

func parseSourceParams(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	params := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, vault.NewError(vault.KindValidation, "invalid source params", err)
	}
	return params, nil
}

func splitCSVValues(values []string) []string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}
