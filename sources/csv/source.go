package vaultcsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-vault-export/vault"
)

// Source reads records from CSV input. The first row is the header and
// every following row becomes a Record keyed by the header columns.
type Source struct {
	// Path of the CSV file to open. Ignored when Reader is set.
	Path string
	// Reader supplies CSV content directly.
	Reader io.Reader
	// Comma overrides the field separator. Defaults to ','.
	Comma rune
}

var _ vault.RecordSource = (*Source)(nil)

// NewSource creates a CSV record source over a file path.
func NewSource(path string) *Source {
	return &Source{Path: path}
}

// NewReaderSource creates a CSV record source over a reader.
func NewReaderSource(r io.Reader) *Source {
	return &Source{Reader: r}
}

// Factory builds CSV sources from registry parameters. Recognized keys
// are "path" and "comma".
func Factory(params map[string]string) (vault.RecordSource, error) {
	path := params["path"]
	if path == "" {
		return nil, vault.NewError(vault.KindValidation, "csv source requires a path parameter", nil)
	}
	source := NewSource(path)
	if comma := params["comma"]; comma != "" {
		source.Comma = []rune(comma)[0]
	}
	return source, nil
}

// Open reads the header row and returns an iterator over the data rows.
func (s *Source) Open(ctx context.Context) (vault.RecordIterator, error) {
	_ = ctx
	if s == nil {
		return nil, vault.NewError(vault.KindValidation, "csv source is not configured", nil)
	}

	var input io.ReadCloser
	switch {
	case s.Reader != nil:
		input = io.NopCloser(s.Reader)
	case s.Path != "":
		file, err := os.Open(s.Path)
		if err != nil {
			return nil, vault.NewError(vault.KindStorage, fmt.Sprintf("failed to open %q", s.Path), err)
		}
		input = file
	default:
		return nil, vault.NewError(vault.KindValidation, "csv source requires a path or reader", nil)
	}

	reader := csv.NewReader(input)
	if s.Comma != 0 {
		reader.Comma = s.Comma
	}
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		_ = input.Close()
		if err == io.EOF {
			return nil, vault.NewError(vault.KindValidation, "csv input has no header row", nil)
		}
		return nil, vault.NewError(vault.KindValidation, "failed to read csv header", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
	}

	return &iterator{reader: reader, header: header, closer: input}, nil
}

type iterator struct {
	reader *csv.Reader
	header []string
	closer io.Closer
}

func (it *iterator) Next(ctx context.Context) (vault.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, err := it.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, vault.NewError(vault.KindValidation, "failed to read csv row", err)
	}

	record := make(vault.Record, len(it.header))
	for i, name := range it.header {
		if name == "" || i >= len(row) {
			continue
		}
		record[name] = row[i]
	}
	return record, nil
}

func (it *iterator) Close() error {
	if it == nil || it.closer == nil {
		return nil
	}
	return it.closer.Close()
}
