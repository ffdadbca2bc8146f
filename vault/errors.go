package vault

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines export error kinds.
type ErrorKind string

const (
	// KindConfig marks invalid run settings. Fatal before processing.
	KindConfig ErrorKind = "config"
	// KindTemplate marks an unreadable or invalid custom template.
	// Recovered by falling back to the default template.
	KindTemplate ErrorKind = "template"
	// KindMapping marks a failure while resolving a record's fields.
	KindMapping ErrorKind = "mapping"
	// KindRender marks a failure during template substitution.
	KindRender ErrorKind = "render"
	// KindStorage marks a read or write failure from a store.
	KindStorage ErrorKind = "storage"
	// KindValidation marks malformed requests at a boundary.
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindTimeout    ErrorKind = "timeout"
	KindCanceled   ErrorKind = "canceled"
	KindInternal   ErrorKind = "internal"
	// KindExternal marks remote tool failures, including the remote
	// store before fallback.
	KindExternal ErrorKind = "external"
)

// ExportError wraps errors with a kind.
type ExportError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewError creates a new export error.
func NewError(kind ErrorKind, msg string, err error) *ExportError {
	return &ExportError{Kind: kind, Msg: msg, Err: err}
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindInternal
	msg := err.Error()

	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		kind = exportErr.Kind
		if exportErr.Msg != "" {
			msg = exportErr.Msg
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		kind = KindCanceled
	}

	switch kind {
	case KindConfig, KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode(string(kind))
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindTemplate, KindMapping, KindRender, KindStorage:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode(string(kind))
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	case KindExternal:
		return errorslib.New(msg, errorslib.CategoryExternal).WithTextCode("external")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its export error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}
