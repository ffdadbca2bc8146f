package vaultsql

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-vault-export/vault"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	statements := []string{
		`CREATE TABLE books (title TEXT, author TEXT, pages INTEGER, status TEXT)`,
		`INSERT INTO books VALUES ('Clean Code', 'Robert C. Martin', 464, 'unread')`,
		`INSERT INTO books VALUES ('The Go Programming Language', 'Alan Donovan', 380, 'reading')`,
		`INSERT INTO books VALUES ('Dune', 'Frank Herbert', 412, NULL)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return db
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	defs := []Definition{
		{Name: "books", Query: "SELECT title, author, pages, status FROM books ORDER BY title"},
		{Name: "books-by-status", Query: "SELECT title, status FROM books WHERE status = ? ORDER BY title"},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			t.Fatalf("register %q: %v", def.Name, err)
		}
	}
	return reg
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

func TestSource_QueryYieldsRecords(t *testing.T) {
	source := NewSource(newTestDB(t), newTestRegistry(t), "books")

	iter, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()

	records := drain(t, iter)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0]["title"] != "Clean Code" || records[0]["author"] != "Robert C. Martin" {
		t.Fatalf("unexpected first record: %v", records[0])
	}
	if records[0]["pages"] != "464" {
		t.Fatalf("expected integer column as string, got %q", records[0]["pages"])
	}
	if records[1]["status"] != "" {
		t.Fatalf("expected NULL column as empty string, got %q", records[1]["status"])
	}
}

func TestSource_ArgsAreBound(t *testing.T) {
	source := NewSource(newTestDB(t), newTestRegistry(t), "books-by-status")
	source.Args = []any{"unread"}

	iter, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()

	records := drain(t, iter)
	if len(records) != 1 || records[0]["title"] != "Clean Code" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestSource_DefinitionArgs(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Definition{
		Name:  "reading",
		Query: "SELECT title FROM books WHERE status = ?",
		Args:  []any{"reading"},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	iter, err := NewSource(newTestDB(t), reg, "reading").Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()

	records := drain(t, iter)
	if len(records) != 1 || records[0]["title"] != "The Go Programming Language" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestSource_UnknownQueryIsNotFound(t *testing.T) {
	source := NewSource(newTestDB(t), newTestRegistry(t), "missing")

	_, err := source.Open(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	var exportErr *vault.ExportError
	if !errors.As(err, &exportErr) || exportErr.Kind != vault.KindNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSource_RequiresConfiguration(t *testing.T) {
	db := newTestDB(t)
	reg := newTestRegistry(t)

	cases := []struct {
		name   string
		source *Source
	}{
		{"nil source", nil},
		{"missing db", &Source{Registry: reg, QueryName: "books"}},
		{"missing registry", &Source{DB: db, QueryName: "books"}},
		{"missing name", &Source{DB: db, Registry: reg}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.source.Open(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRegistry_Validation(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Definition{Query: "SELECT 1"}); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if err := reg.Register(Definition{Name: "empty"}); err == nil {
		t.Fatalf("expected error for missing query")
	}
	if err := reg.Register(Definition{Name: "books", Query: "SELECT 1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(Definition{Name: "books", Query: "SELECT 2"}); err == nil {
		t.Fatalf("expected error for duplicate name")
	}
}

func TestRegistryFactory(t *testing.T) {
	factory := RegistryFactory(newTestDB(t), newTestRegistry(t))

	source, err := factory(map[string]string{"query": "books"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	iter, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()
	if records := drain(t, iter); len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	if _, err := factory(map[string]string{}); err == nil {
		t.Fatalf("expected error without query parameter")
	}
}

func TestSource_RunnerIntegration(t *testing.T) {
	runner := vault.NewRunner(vault.NewMemoryStore())

	result, err := runner.Export(context.Background(), vault.ExportRequest{
		Config: vault.Config{VaultPath: "/vault", Folder: "Books"},
		Source: NewSource(newTestDB(t), newTestRegistry(t), "books"),
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Created != 3 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
