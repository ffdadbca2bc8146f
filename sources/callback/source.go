package vaultcallback

import (
	"context"
	"io"

	"github.com/goliatone/go-vault-export/vault"
)

// SourceFunc builds a RecordIterator.
type SourceFunc func(ctx context.Context) (vault.RecordIterator, error)

// Source wraps a callback function as a RecordSource.
type Source struct {
	fn SourceFunc
}

var _ vault.RecordSource = (*Source)(nil)

// NewSource creates a callback-based RecordSource.
func NewSource(fn SourceFunc) *Source {
	return &Source{fn: fn}
}

// FromRecords creates a RecordSource over an in-memory record slice.
func FromRecords(records []vault.Record) *Source {
	return NewSource(func(ctx context.Context) (vault.RecordIterator, error) {
		_ = ctx
		index := 0
		return &FuncIterator{
			NextFunc: func(ctx context.Context) (vault.Record, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if index >= len(records) {
					return nil, io.EOF
				}
				record := records[index]
				index++
				return record, nil
			},
		}, nil
	})
}

// Open delegates to the configured callback.
func (s *Source) Open(ctx context.Context) (vault.RecordIterator, error) {
	if s == nil || s.fn == nil {
		return nil, vault.NewError(vault.KindValidation, "callback source requires a function", nil)
	}
	return s.fn(ctx)
}

// IteratorFunc yields a record or io.EOF.
type IteratorFunc func(ctx context.Context) (vault.Record, error)

// FuncIterator wraps a function into a RecordIterator.
type FuncIterator struct {
	NextFunc  IteratorFunc
	CloseFunc func() error
}

func (it *FuncIterator) Next(ctx context.Context) (vault.Record, error) {
	if it == nil || it.NextFunc == nil {
		return nil, vault.NewError(vault.KindValidation, "iterator requires NextFunc", nil)
	}
	return it.NextFunc(ctx)
}

func (it *FuncIterator) Close() error {
	if it == nil || it.CloseFunc == nil {
		return nil
	}
	return it.CloseFunc()
}
