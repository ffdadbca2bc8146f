package vaultxlsx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-vault-export/vault"
)

// Source reads records from an XLSX workbook. The first row of the sheet
// is the header and every following row becomes a Record keyed by the
// header columns. Cell values arrive as their displayed strings.
type Source struct {
	// Path of the workbook to open.
	Path string
	// Sheet to read. Defaults to the first sheet in the workbook.
	Sheet string
}

var _ vault.RecordSource = (*Source)(nil)

// NewSource creates an XLSX record source over a workbook path.
func NewSource(path string) *Source {
	return &Source{Path: path}
}

// Factory builds XLSX sources from registry parameters. Recognized keys
// are "path" and "sheet".
func Factory(params map[string]string) (vault.RecordSource, error) {
	path := params["path"]
	if path == "" {
		return nil, vault.NewError(vault.KindValidation, "xlsx source requires a path parameter", nil)
	}
	return &Source{Path: path, Sheet: params["sheet"]}, nil
}

// Open reads the header row and returns a streaming iterator over the
// remaining sheet rows.
func (s *Source) Open(ctx context.Context) (vault.RecordIterator, error) {
	_ = ctx
	if s == nil || s.Path == "" {
		return nil, vault.NewError(vault.KindValidation, "xlsx source requires a path", nil)
	}

	file, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, vault.NewError(vault.KindStorage, fmt.Sprintf("failed to open %q", s.Path), err)
	}

	sheet := s.Sheet
	if sheet == "" {
		sheet = file.GetSheetName(0)
	}
	if sheet == "" {
		_ = file.Close()
		return nil, vault.NewError(vault.KindValidation, "workbook has no sheets", nil)
	}

	rows, err := file.Rows(sheet)
	if err != nil {
		_ = file.Close()
		return nil, vault.NewError(vault.KindNotFound, fmt.Sprintf("sheet %q not found", sheet), err)
	}

	if !rows.Next() {
		_ = rows.Close()
		_ = file.Close()
		return nil, vault.NewError(vault.KindValidation, fmt.Sprintf("sheet %q has no header row", sheet), nil)
	}
	header, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = file.Close()
		return nil, vault.NewError(vault.KindStorage, "failed to read header row", err)
	}
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
	}

	return &iterator{file: file, rows: rows, header: header}, nil
}

type iterator struct {
	file   *excelize.File
	rows   *excelize.Rows
	header []string
}

// Next returns the next non-empty sheet row as a Record.
func (it *iterator) Next(ctx context.Context) (vault.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !it.rows.Next() {
			if err := it.rows.Error(); err != nil {
				return nil, vault.NewError(vault.KindStorage, "failed to read sheet row", err)
			}
			return nil, io.EOF
		}
		cells, err := it.rows.Columns()
		if err != nil {
			return nil, vault.NewError(vault.KindStorage, "failed to read sheet row", err)
		}

		record := make(vault.Record, len(it.header))
		empty := true
		for i, name := range it.header {
			if name == "" || i >= len(cells) {
				continue
			}
			record[name] = cells[i]
			if cells[i] != "" {
				empty = false
			}
		}
		// Spreadsheets commonly carry trailing blank rows.
		if empty {
			continue
		}
		return record, nil
	}
}

func (it *iterator) Close() error {
	if it == nil {
		return nil
	}
	err := it.rows.Close()
	if cerr := it.file.Close(); err == nil {
		err = cerr
	}
	return err
}
