package vault

import (
	"path/filepath"
	"strings"
	"time"
)

// Source field prefixes consulted by the default fallback chains.
const (
	enrichedPrefix  = "enriched_"
	extractedPrefix = "extracted_"
)

// timestampLayout is the ISO form used for created/updated fallbacks.
const timestampLayout = "2006-01-02 15:04:05"

// FieldRule describes the ordered fallback chain for one canonical
// field: record sources in order, then a derived value, then a fixed
// literal.
type FieldRule struct {
	// Field is the canonical placeholder this rule populates.
	Field string
	// Sources are raw record fields consulted in order; the first
	// non-empty value wins.
	Sources []string
	// Derive computes a fallback from the whole record when no source
	// matched. Optional.
	Derive func(record Record, cfg Config, now time.Time) string
	// Literal is the fixed fallback when nothing else resolves.
	Literal string
	// Normalize post-processes the resolved value. Optional.
	Normalize func(value string) string
}

// Mapper resolves records into canonical field maps.
type Mapper struct {
	Rules []FieldRule
	Now   func() time.Time
}

// NewMapper creates a mapper with the default rules.
func NewMapper() *Mapper {
	return &Mapper{Rules: DefaultRules(), Now: time.Now}
}

// Map resolves one record into a field map. Every rule's field gets an
// entry, possibly empty. Map never fails; it is deterministic given the
// record, the config, and the mapper clock.
func (m *Mapper) Map(record Record, cfg Config) FieldMap {
	rules := DefaultRules()
	now := time.Now()
	if m != nil {
		if len(m.Rules) > 0 {
			rules = m.Rules
		}
		if m.Now != nil {
			now = m.Now()
		}
	}

	fields := make(FieldMap, len(rules))
	for _, rule := range rules {
		fields[rule.Field] = resolveField(rule, record, cfg, now)
	}
	return fields
}

func resolveField(rule FieldRule, record Record, cfg Config, now time.Time) string {
	value := ""
	for _, source := range rule.Sources {
		if v := strings.TrimSpace(record[source]); v != "" {
			value = v
			break
		}
	}
	if value == "" && rule.Derive != nil {
		value = strings.TrimSpace(rule.Derive(record, cfg, now))
	}
	if value == "" {
		value = rule.Literal
	}
	if rule.Normalize != nil {
		value = rule.Normalize(value)
	}
	return value
}

// DefaultRules returns the canonical rule set covering every placeholder
// the built-in template references.
func DefaultRules() []FieldRule {
	return []FieldRule{
		{Field: "title", Sources: chain("title"), Derive: titleStem, Literal: "Untitled"},
		{Field: "author", Sources: chain("author"), Literal: "Unknown Author"},
		{Field: "publisher", Sources: chain("publisher")},
		{Field: "published_date", Sources: chain("published_date")},
		{Field: "pages", Sources: chain("pages")},
		{Field: "language", Sources: chain("language")},
		{Field: "isbn", Sources: chain("isbn")},
		{Field: "description", Sources: chain("description")},
		{Field: "topics", Sources: chain("topics"), Normalize: normalizeTopics},
		{Field: "format", Sources: chain("format"), Literal: "unknown", Normalize: strings.ToLower},
		{Field: "size_mb", Sources: chain("size_mb")},
		{Field: "path", Sources: chain("path")},
		{Field: "status", Sources: []string{"status"}, Derive: configDefault(func(d Defaults) string { return d.Status })},
		{Field: "priority", Sources: []string{"priority"}, Derive: configDefault(func(d Defaults) string { return d.Priority })},
		{Field: "device", Sources: []string{"device"}, Derive: configDefault(func(d Defaults) string { return d.Device })},
		{Field: "purpose", Sources: []string{"purpose"}, Derive: purposeDefault},
		{Field: "created_date", Sources: []string{"created_date"}, Derive: timestampFallback},
		{Field: "updated_date", Sources: []string{"updated_date"}, Derive: timestampFallback},
	}
}

func chain(field string) []string {
	return []string{enrichedPrefix + field, extractedPrefix + field, field}
}

func configDefault(pick func(Defaults) string) func(Record, Config, time.Time) string {
	return func(_ Record, cfg Config, _ time.Time) string {
		return pick(cfg.Defaults)
	}
}

func purposeDefault(_ Record, cfg Config, _ time.Time) string {
	return strings.Join(cfg.Defaults.Purpose, ", ")
}

func timestampFallback(_ Record, _ Config, now time.Time) string {
	return now.Format(timestampLayout)
}

// titleStem derives a title from a filename-like field with its
// extension stripped.
func titleStem(record Record, _ Config, _ time.Time) string {
	for _, source := range []string{"filename", "name"} {
		v := strings.TrimSpace(record[source])
		if v == "" {
			continue
		}
		base := filepath.Base(v)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return ""
}

// normalizeTopics splits comma or semicolon separated topics and joins
// them back with a uniform separator.
func normalizeTopics(value string) string {
	if value == "" {
		return ""
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})
	topics := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			topics = append(topics, t)
		}
	}
	return strings.Join(topics, ", ")
}
