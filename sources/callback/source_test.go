package vaultcallback

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/goliatone/go-vault-export/vault"
)

type sliceIterator struct {
	records []vault.Record
	index   int
}

func (it *sliceIterator) Next(ctx context.Context) (vault.Record, error) {
	_ = ctx
	if it.index >= len(it.records) {
		return nil, io.EOF
	}
	record := it.records[it.index]
	it.index++
	return record, nil
}

func (it *sliceIterator) Close() error { return nil }

func TestSource_OpenCallsFunc(t *testing.T) {
	called := false
	source := NewSource(func(ctx context.Context) (vault.RecordIterator, error) {
		_ = ctx
		called = true
		return &sliceIterator{records: []vault.Record{{"title": "Clean Code"}}}, nil
	})

	it, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	record, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if record["title"] != "Clean Code" {
		t.Fatalf("expected record data, got %v", record)
	}
	if !called {
		t.Fatalf("expected callback to be invoked")
	}
}

func TestSource_OpenRequiresFunc(t *testing.T) {
	if _, err := NewSource(nil).Open(context.Background()); err == nil {
		t.Fatalf("expected error")
	}

	var source *Source
	if _, err := source.Open(context.Background()); err == nil {
		t.Fatalf("expected error for nil source")
	}
}

func TestFromRecords(t *testing.T) {
	source := FromRecords([]vault.Record{
		{"title": "The Go Programming Language"},
		{"title": "Clean Code"},
	})

	it, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer it.Close()

	var titles []string
	for {
		record, err := it.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		titles = append(titles, record["title"])
	}
	if len(titles) != 2 || titles[0] != "The Go Programming Language" {
		t.Fatalf("unexpected titles: %v", titles)
	}
}

func TestFromRecords_StopsOnCanceledContext(t *testing.T) {
	source := FromRecords([]vault.Record{{"title": "A"}})

	it, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := it.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestFuncIterator_NextNil(t *testing.T) {
	it := &FuncIterator{}
	if _, err := it.Next(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if err := it.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
