package pongo2engine

import (
	"strings"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/goliatone/go-vault-export/vault"
)

// Engine renders notes with the pongo2 template language (Django-style
// filters, conditionals, loops) while keeping the marker engine's
// conventions: `{{DATE:layout}}` markers are expanded before
// compilation and missing fields render as empty strings.
type Engine struct {
	Now func() time.Time

	mu    sync.RWMutex
	cache map[string]*pongo2.Template
}

var _ vault.Engine = (*Engine)(nil)

// New creates a pongo2-backed note engine.
func New() *Engine {
	return &Engine{Now: time.Now, cache: map[string]*pongo2.Template{}}
}

// Render compiles and executes the template against the field map.
func (e *Engine) Render(template string, fields vault.FieldMap) (string, error) {
	if e == nil {
		return "", vault.NewError(vault.KindInternal, "engine is nil", nil)
	}
	tpl, err := e.compile(e.expandDateMarkers(template))
	if err != nil {
		return "", vault.NewError(vault.KindTemplate, "failed to compile template", err)
	}

	ctx := pongo2.Context{}
	for key, value := range fields {
		ctx[key] = value
	}
	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", vault.NewError(vault.KindRender, "failed to render template", err)
	}
	return out, nil
}

// Validate reports whether the template compiles.
func (e *Engine) Validate(template string) error {
	if e == nil {
		return vault.NewError(vault.KindInternal, "engine is nil", nil)
	}
	if _, err := pongo2.FromString(e.expandDateMarkers(template)); err != nil {
		return vault.NewError(vault.KindTemplate, "invalid template", err)
	}
	return nil
}

// Placeholders returns the field names referenced by `{{ ... }}`
// expressions, first occurrence first. Filter chains and attribute
// lookups are reduced to the leading identifier; date markers are not
// placeholders.
func (e *Engine) Placeholders(template string) []string {
	seen := map[string]struct{}{}
	names := []string{}

	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		rest = rest[start+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			break
		}
		inner := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]

		name := leadingIdentifier(inner)
		if name == "" || name == "DATE" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func (e *Engine) compile(template string) (*pongo2.Template, error) {
	e.mu.RLock()
	tpl, ok := e.cache[template]
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := pongo2.FromString(template)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.cache == nil {
		e.cache = map[string]*pongo2.Template{}
	}
	e.cache[template] = tpl
	e.mu.Unlock()
	return tpl, nil
}

// expandDateMarkers rewrites `{{DATE:layout}}` markers into the
// formatted current time; pongo2 has no marker syntax for them. All
// other markers pass through untouched.
func (e *Engine) expandDateMarkers(template string) string {
	var b strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}

		inner := rest[start+2 : start+2+end]
		layout, ok := strings.CutPrefix(strings.TrimSpace(inner), "DATE:")
		if !ok {
			b.WriteString(rest[:start+2+end+2])
			rest = rest[start+2+end+2:]
			continue
		}

		b.WriteString(rest[:start])
		b.WriteString(e.now().Format(dateLayouts.Replace(layout)))
		rest = rest[start+2+end+2:]
	}
	return b.String()
}

func (e *Engine) now() time.Time {
	if e == nil || e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func leadingIdentifier(expr string) string {
	for i, r := range expr {
		alpha := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		digit := r >= '0' && r <= '9'
		if alpha || (i > 0 && digit) {
			continue
		}
		return expr[:i]
	}
	return expr
}

var dateLayouts = strings.NewReplacer(
	"YYYY", "2006",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)
