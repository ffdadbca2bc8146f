package vaultsql

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/goliatone/go-vault-export/vault"
)

// Querier is the query subset of *sql.DB. *sql.Tx and *sql.Conn satisfy
// it as well.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Source executes a named query and yields one Record per row, keyed by
// the result column names. NULL and non-text values arrive as strings.
type Source struct {
	DB        Querier
	Registry  *Registry
	QueryName string
	// Args override the registered definition's args when non-nil.
	Args []any
}

var _ vault.RecordSource = (*Source)(nil)

// NewSource creates a named query record source.
func NewSource(db Querier, reg *Registry, name string) *Source {
	return &Source{DB: db, Registry: reg, QueryName: name}
}

// RegistryFactory returns a source factory bound to a database handle and
// query registry. The "query" parameter selects the registered query.
func RegistryFactory(db Querier, reg *Registry) vault.SourceFactory {
	return func(params map[string]string) (vault.RecordSource, error) {
		name := params["query"]
		if name == "" {
			return nil, vault.NewError(vault.KindValidation, "sql source requires a query parameter", nil)
		}
		return NewSource(db, reg, name), nil
	}
}

// Open resolves and executes the named query.
func (s *Source) Open(ctx context.Context) (vault.RecordIterator, error) {
	if s == nil || s.DB == nil {
		return nil, vault.NewError(vault.KindValidation, "database handle is required", nil)
	}
	if s.Registry == nil {
		return nil, vault.NewError(vault.KindValidation, "query registry is required", nil)
	}
	if s.QueryName == "" {
		return nil, vault.NewError(vault.KindValidation, "query name is required", nil)
	}

	def, ok := s.Registry.Resolve(s.QueryName)
	if !ok {
		return nil, vault.NewError(vault.KindNotFound, fmt.Sprintf("query %q not registered", s.QueryName), nil)
	}

	args := def.Args
	if s.Args != nil {
		args = s.Args
	}

	rows, err := s.DB.QueryContext(ctx, def.Query, args...)
	if err != nil {
		return nil, vault.NewError(vault.KindStorage, fmt.Sprintf("query %q failed", def.Name), err)
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, vault.NewError(vault.KindStorage, fmt.Sprintf("query %q failed", def.Name), err)
	}

	return &iterator{rows: rows, columns: columns}, nil
}

type iterator struct {
	rows    *sql.Rows
	columns []string
}

func (it *iterator) Next(ctx context.Context) (vault.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, vault.NewError(vault.KindStorage, "failed to read result row", err)
		}
		return nil, io.EOF
	}

	values := make([]sql.NullString, len(it.columns))
	targets := make([]any, len(it.columns))
	for i := range values {
		targets[i] = &values[i]
	}
	if err := it.rows.Scan(targets...); err != nil {
		return nil, vault.NewError(vault.KindStorage, "failed to scan result row", err)
	}

	record := make(vault.Record, len(it.columns))
	for i, name := range it.columns {
		record[name] = values[i].String
	}
	return record, nil
}

func (it *iterator) Close() error {
	if it == nil || it.rows == nil {
		return nil
	}
	return it.rows.Close()
}
