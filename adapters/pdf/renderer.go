package vaultpdf

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-vault-export/vault"
)

// DefaultMaxHTMLBytes guards in-memory HTML buffering before PDF conversion.
const DefaultMaxHTMLBytes int64 = 8 * 1024 * 1024

// External asset policies for companion rendering.
const (
	ExternalAssetsAllow = "allow"
	ExternalAssetsBlock = "block"
)

// Options controls page geometry and engine behavior.
type Options struct {
	PageSize             string
	Landscape            *bool
	PrintBackground      *bool
	Scale                float64
	MarginTop            string
	MarginBottom         string
	MarginLeft           string
	MarginRight          string
	PreferCSSPageSize    *bool
	BaseURL              string
	ExternalAssetsPolicy string
}

// Note is a rendered vault note to archive as a PDF companion.
type Note struct {
	Name    string
	Content string
}

// RenderRequest contains HTML input and render options for PDF engines.
type RenderRequest struct {
	HTML    []byte
	Options Options
}

// Engine renders HTML content into PDF bytes.
type Engine interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// EngineFunc adapts a function to an Engine.
type EngineFunc func(ctx context.Context, req RenderRequest) ([]byte, error)

func (f EngineFunc) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if f == nil {
		return nil, errors.New("pdf engine func is nil")
	}
	return f(ctx, req)
}

// Renderer wraps a rendered note in an HTML shell and converts it to a
// PDF companion document.
type Renderer struct {
	Enabled      bool
	Engine       Engine
	Shell        []byte
	Style        []byte
	Options      Options
	MaxHTMLBytes int64
}

// Render builds the companion document for note and writes the PDF
// bytes to w.
func (r Renderer) Render(ctx context.Context, note Note, w io.Writer) (int64, error) {
	if !r.Enabled {
		return 0, vault.NewError(vault.KindConfig, "pdf renderer is disabled", nil)
	}
	if r.Engine == nil {
		return 0, vault.NewError(vault.KindConfig, "pdf renderer requires an engine", nil)
	}
	if w == nil {
		return 0, vault.NewError(vault.KindValidation, "pdf renderer requires a writer", nil)
	}

	htmlDoc, err := r.buildHTML(note)
	if err != nil {
		return 0, err
	}

	pdf, err := r.Engine.Render(ctx, RenderRequest{
		HTML:    htmlDoc,
		Options: r.Options,
	})
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	if len(pdf) > 0 {
		if _, err := cw.Write(pdf); err != nil {
			return cw.count, vault.NewError(vault.KindStorage, "pdf write failed", err)
		}
	}
	return cw.count, nil
}

type shellData struct {
	Title string
	Style template.CSS
	Body  string
}

func (r Renderer) buildHTML(note Note) ([]byte, error) {
	shell := r.Shell
	if len(shell) == 0 {
		shell = DefaultShell()
	}
	style := r.Style
	if len(style) == 0 {
		style = DefaultStyle()
	}

	tmpl, err := template.New("shell").Parse(string(shell))
	if err != nil {
		return nil, vault.NewError(vault.KindTemplate, "pdf shell is not parseable", err)
	}

	buf := newLimitedBuffer(r.MaxHTMLBytes)
	data := shellData{
		Title: noteTitle(note.Name),
		Style: template.CSS(style),
		Body:  note.Content,
	}
	if err := tmpl.Execute(buf, data); err != nil {
		var xerr *vault.ExportError
		if errors.As(err, &xerr) {
			return nil, err
		}
		return nil, vault.NewError(vault.KindRender, "pdf shell render failed", err)
	}
	return buf.Bytes(), nil
}

// CompanionName swaps a note's extension for ".pdf".
func CompanionName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return vault.UntitledName + ".pdf"
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".pdf"
}

func noteTitle(name string) string {
	name = strings.TrimSpace(name)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return vault.UntitledName
	}
	return stem
}

// WKHTMLTOPDFEngine invokes wkhtmltopdf for HTML-to-PDF conversion.
type WKHTMLTOPDFEngine struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Render executes wkhtmltopdf using stdin/stdout for HTML/PDF.
func (e WKHTMLTOPDFEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append([]string{}, e.Args...)
	args = append(args, "-", "-")
	cmd := exec.CommandContext(cmdCtx, cmdPath, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(req.HTML)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, vault.NewError(vault.KindInternal, message, err)
	}
	return stdout.Bytes(), nil
}

type limitedBuffer struct {
	buf     bytes.Buffer
	maxSize int64
}

func newLimitedBuffer(maxSize int64) *limitedBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxHTMLBytes
	}
	return &limitedBuffer{maxSize: maxSize}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.maxSize > 0 && int64(b.buf.Len()+len(p)) > b.maxSize {
		return 0, vault.NewError(vault.KindValidation, "pdf renderer max html bytes exceeded", nil)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
