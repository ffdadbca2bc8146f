package vaultrepo

import (
	"context"
	"io"
	"testing"

	"github.com/goliatone/go-vault-export/vault"
)

type stubRepo struct {
	spec Spec
}

func (r *stubRepo) Stream(ctx context.Context, spec Spec) (vault.RecordIterator, error) {
	_ = ctx
	r.spec = spec
	return &sliceIterator{records: []vault.Record{{"title": "Dune"}}}, nil
}

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

func TestSource_OpenPassesSpec(t *testing.T) {
	repo := &stubRepo{}
	source := NewSource(repo, Spec{
		Resource: "books",
		Params:   map[string]string{"shelf": "scifi"},
	})

	iter, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()

	if repo.spec.Resource != "books" {
		t.Fatalf("expected resource to be passed through, got %q", repo.spec.Resource)
	}
	if repo.spec.Params["shelf"] != "scifi" {
		t.Fatalf("expected params to be passed through, got %v", repo.spec.Params)
	}

	record, err := iter.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if record["title"] != "Dune" {
		t.Fatalf("expected streamed record, got %v", record)
	}
}

func TestSource_OpenRequiresRepository(t *testing.T) {
	source := &Source{}
	if _, err := source.Open(context.Background()); err == nil {
		t.Fatalf("expected error without repository")
	} else if vault.KindFromError(err) != vault.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFactory(t *testing.T) {
	repo := &stubRepo{}
	factory := Factory(repo)

	if _, err := factory(map[string]string{}); err == nil {
		t.Fatalf("expected error without resource parameter")
	}

	source, err := factory(map[string]string{"resource": "books", "shelf": "scifi"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, err := source.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	if repo.spec.Resource != "books" {
		t.Fatalf("expected resource from params, got %q", repo.spec.Resource)
	}
	if repo.spec.Params["shelf"] != "scifi" {
		t.Fatalf("expected remaining params to pass through, got %v", repo.spec.Params)
	}
	if _, ok := repo.spec.Params["resource"]; ok {
		t.Fatalf("expected resource key to be stripped from params")
	}
}
