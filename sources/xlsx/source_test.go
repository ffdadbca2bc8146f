package vaultxlsx

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-vault-export/vault"
)

func writeWorkbook(t *testing.T, path, sheet string, rows [][]any) {
	t.Helper()
	file := excelize.NewFile()
	defer file.Close()

	if sheet != "Sheet1" {
		if err := file.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("rename sheet: %v", err)
		}
	}
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	if err := file.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
}

func drain(t *testing.T, iter vault.RecordIterator) []vault.Record {
	t.Helper()
	var records []vault.Record
	for {
		record, err := iter.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return records
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		records = append(records, record)
	}
}

func TestSource_ReadsHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]any{
		{"title", "author", "pages"},
		{"Clean Code", "Robert C. Martin", 464},
		{"The Go Programming Language", "Alan Donovan", 380},
	})

	iter, err := NewSource(path).Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()

	records := drain(t, iter)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["title"] != "Clean Code" || records[0]["author"] != "Robert C. Martin" {
		t.Fatalf("unexpected first record: %v", records[0])
	}
	if records[0]["pages"] != "464" {
		t.Fatalf("expected numeric cell as string, got %q", records[0]["pages"])
	}
}

func TestSource_NamedSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.xlsx")
	writeWorkbook(t, path, "Books", [][]any{
		{"title"},
		{"Dune"},
	})

	source := &Source{Path: path, Sheet: "Books"}
	iter, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()

	records := drain(t, iter)
	if len(records) != 1 || records[0]["title"] != "Dune" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestSource_MissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]any{{"title"}})

	source := &Source{Path: path, Sheet: "Missing"}
	if _, err := source.Open(context.Background()); err == nil {
		t.Fatalf("expected error for missing sheet")
	}
}

func TestSource_MissingFileIsStorageError(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "missing.xlsx")).Open(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	var exportErr *vault.ExportError
	if !errors.As(err, &exportErr) || exportErr.Kind != vault.KindStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSource_SkipsBlankRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaps.xlsx")
	file := excelize.NewFile()
	defer file.Close()
	if err := file.SetCellValue("Sheet1", "A1", "title"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := file.SetCellValue("Sheet1", "A2", "First"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	// Row 3 left blank on purpose.
	if err := file.SetCellValue("Sheet1", "A4", "Second"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := file.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}

	iter, err := NewSource(path).Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()

	records := drain(t, iter)
	if len(records) != 2 {
		t.Fatalf("expected blank row to be skipped, got %d records", len(records))
	}
	if records[0]["title"] != "First" || records[1]["title"] != "Second" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestSource_RequiresPath(t *testing.T) {
	if _, err := (&Source{}).Open(context.Background()); err == nil {
		t.Fatalf("expected error without path")
	}
	var source *Source
	if _, err := source.Open(context.Background()); err == nil {
		t.Fatalf("expected error for nil source")
	}
}

func TestFactory(t *testing.T) {
	source, err := Factory(map[string]string{"path": "books.xlsx", "sheet": "Books"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	xlsxSource, ok := source.(*Source)
	if !ok || xlsxSource.Path != "books.xlsx" || xlsxSource.Sheet != "Books" {
		t.Fatalf("unexpected source: %#v", source)
	}

	if _, err := Factory(nil); err == nil {
		t.Fatalf("expected error without path")
	}
}

func TestIterator_StopsOnCanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]any{
		{"title"},
		{"A"},
	})

	iter, err := NewSource(path).Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := iter.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
