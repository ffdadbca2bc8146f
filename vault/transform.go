package vault

import (
	"context"
	"fmt"
	"io"
)

// RecordMapFunc maps a record to a new record.
type RecordMapFunc func(ctx context.Context, record Record) (Record, error)

// RecordFilterFunc decides whether a record should be kept.
type RecordFilterFunc func(ctx context.Context, record Record) (bool, error)

// MapTransformer applies a mapping function to each record.
type MapTransformer struct {
	MapFunc RecordMapFunc
}

// NewMapTransformer creates a MapTransformer.
func NewMapTransformer(fn RecordMapFunc) MapTransformer {
	return MapTransformer{MapFunc: fn}
}

// Wrap implements RecordTransformer.
func (t MapTransformer) Wrap(ctx context.Context, in RecordIterator) (RecordIterator, error) {
	_ = ctx
	if t.MapFunc == nil {
		return nil, NewError(KindValidation, "map transformer function is required", nil)
	}
	return &mapRecordIterator{base: in, mapFn: t.MapFunc}, nil
}

// FilterTransformer drops records that do not pass the filter.
type FilterTransformer struct {
	FilterFunc RecordFilterFunc
}

// NewFilterTransformer creates a FilterTransformer.
func NewFilterTransformer(fn RecordFilterFunc) FilterTransformer {
	return FilterTransformer{FilterFunc: fn}
}

// Wrap implements RecordTransformer.
func (t FilterTransformer) Wrap(ctx context.Context, in RecordIterator) (RecordIterator, error) {
	_ = ctx
	if t.FilterFunc == nil {
		return nil, NewError(KindValidation, "filter transformer function is required", nil)
	}
	return &filterRecordIterator{base: in, filterFn: t.FilterFunc}, nil
}

// AddFieldsTransformer merges fixed fields into each record. Values
// already present on the record win.
type AddFieldsTransformer struct {
	Fields map[string]string
}

// NewAddFieldsTransformer creates an AddFieldsTransformer.
func NewAddFieldsTransformer(fields map[string]string) AddFieldsTransformer {
	return AddFieldsTransformer{Fields: fields}
}

// Wrap implements RecordTransformer.
func (t AddFieldsTransformer) Wrap(ctx context.Context, in RecordIterator) (RecordIterator, error) {
	_ = ctx
	if len(t.Fields) == 0 {
		return nil, NewError(KindValidation, "add fields transformer fields are required", nil)
	}
	return &addFieldsIterator{base: in, fields: t.Fields}, nil
}

func applyTransformers(ctx context.Context, records RecordIterator, transformers []RecordTransformer) (RecordIterator, error) {
	current := records
	for idx, transformer := range transformers {
		if transformer == nil {
			return nil, NewError(KindValidation, fmt.Sprintf("transformer %d is nil", idx), nil)
		}
		wrapped, err := transformer.Wrap(ctx, current)
		if err != nil {
			return nil, err
		}
		if wrapped == nil {
			return nil, NewError(KindValidation, fmt.Sprintf("transformer %d returned nil iterator", idx), nil)
		}
		current = wrapped
	}
	return current, nil
}

type mapRecordIterator struct {
	base  RecordIterator
	mapFn RecordMapFunc
}

func (it *mapRecordIterator) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record, err := it.base.Next(ctx)
	if err != nil {
		return nil, err
	}
	return it.mapFn(ctx, record)
}

func (it *mapRecordIterator) Close() error {
	return it.base.Close()
}

type filterRecordIterator struct {
	base     RecordIterator
	filterFn RecordFilterFunc
}

func (it *filterRecordIterator) Next(ctx context.Context) (Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := it.base.Next(ctx)
		if err != nil {
			return nil, err
		}
		keep, err := it.filterFn(ctx, record)
		if err != nil {
			return nil, err
		}
		if keep {
			return record, nil
		}
	}
}

func (it *filterRecordIterator) Close() error {
	return it.base.Close()
}

type addFieldsIterator struct {
	base   RecordIterator
	fields map[string]string
}

func (it *addFieldsIterator) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record, err := it.base.Next(ctx)
	if err != nil {
		return nil, err
	}
	merged := make(Record, len(record)+len(it.fields))
	for k, v := range it.fields {
		merged[k] = v
	}
	for k, v := range record {
		merged[k] = v
	}
	return merged, nil
}

func (it *addFieldsIterator) Close() error {
	return it.base.Close()
}

// sliceIterator iterates an in-memory record slice.
type sliceIterator struct {
	records []Record
	index   int
}

func (it *sliceIterator) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.index >= len(it.records) {
		return nil, io.EOF
	}
	record := it.records[it.index]
	it.index++
	return record, nil
}

func (it *sliceIterator) Close() error {
	return nil
}
