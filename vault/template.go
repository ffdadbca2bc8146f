package vault

import (
	"strings"
	"time"
)

const (
	markerOpen  = "{{"
	markerClose = "}}"
	datePrefix  = "DATE:"
)

// dateLayouts maps conventional date tokens onto Go reference layouts.
// Unrecognized characters pass through to time.Format untouched.
var dateLayouts = strings.NewReplacer(
	"YYYY", "2006",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// MarkerEngine is the default template engine. It substitutes {{name}}
// markers from the field map (missing names become empty strings) and
// evaluates {{DATE:<format>}} markers against the current time. It never
// fails: malformed input renders literally where no marker can be read.
type MarkerEngine struct {
	// Now supplies the render timestamp for DATE markers.
	Now func() time.Time
}

// NewMarkerEngine creates a MarkerEngine with the wall clock.
func NewMarkerEngine() *MarkerEngine {
	return &MarkerEngine{Now: time.Now}
}

// Render implements Engine. The returned error is always nil; the method
// keeps the Engine signature so callers treat all engines alike.
func (e *MarkerEngine) Render(template string, fields FieldMap) (string, error) {
	if template == "" {
		return "", nil
	}

	now := time.Now
	if e != nil && e.Now != nil {
		now = e.Now
	}

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		open := strings.Index(rest, markerOpen)
		if open < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		rest = rest[open+len(markerOpen):]

		closeIdx := strings.Index(rest, markerClose)
		if closeIdx < 0 {
			// Unterminated marker: keep the tail literal.
			b.WriteString(markerOpen)
			b.WriteString(rest)
			break
		}

		inner := strings.TrimSpace(rest[:closeIdx])
		rest = rest[closeIdx+len(markerClose):]

		if format, ok := strings.CutPrefix(inner, datePrefix); ok {
			b.WriteString(now().Format(dateLayouts.Replace(format)))
			continue
		}
		if fields != nil {
			b.WriteString(fields[inner])
		}
	}

	return b.String(), nil
}

// Validate implements Engine. It checks marker balance without
// substituting anything: every opening marker must close before the next
// one opens, and no closing marker may appear unopened.
func (e *MarkerEngine) Validate(template string) error {
	rest := template
	for {
		open := strings.Index(rest, markerOpen)
		closeIdx := strings.Index(rest, markerClose)

		if open < 0 {
			if closeIdx >= 0 {
				return NewError(KindTemplate, "unopened closing marker", nil)
			}
			return nil
		}
		if closeIdx < 0 || closeIdx < open {
			return NewError(KindTemplate, "unbalanced template marker", nil)
		}

		inner := rest[open+len(markerOpen) : closeIdx]
		if strings.Contains(inner, markerOpen) {
			return NewError(KindTemplate, "nested template marker", nil)
		}
		rest = rest[closeIdx+len(markerClose):]
	}
}

// Placeholders implements Engine. It returns plain placeholder names in
// first-seen order, DATE markers excluded.
func (e *MarkerEngine) Placeholders(template string) []string {
	var names []string
	seen := map[string]struct{}{}

	rest := template
	for {
		open := strings.Index(rest, markerOpen)
		if open < 0 {
			return names
		}
		rest = rest[open+len(markerOpen):]

		closeIdx := strings.Index(rest, markerClose)
		if closeIdx < 0 {
			return names
		}

		inner := strings.TrimSpace(rest[:closeIdx])
		rest = rest[closeIdx+len(markerClose):]

		if inner == "" || strings.HasPrefix(inner, datePrefix) {
			continue
		}
		if _, ok := seen[inner]; ok {
			continue
		}
		seen[inner] = struct{}{}
		names = append(names, inner)
	}
}
