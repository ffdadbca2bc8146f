package vault

import (
	"testing"
)

func TestMapper_EmptyRecordPopulatesEveryField(t *testing.T) {
	mapper := &Mapper{Rules: DefaultRules(), Now: fixedClock}
	cfg := Config{}.WithDefaults()

	fields := mapper.Map(Record{}, cfg)

	for _, rule := range DefaultRules() {
		if _, ok := fields[rule.Field]; !ok {
			t.Fatalf("field %q missing from map", rule.Field)
		}
	}

	want := map[string]string{
		"title":        "Untitled",
		"author":       "Unknown Author",
		"format":       "unknown",
		"status":       "unread",
		"priority":     "medium",
		"device":       "computer",
		"purpose":      "read, reference",
		"created_date": "2024-03-15 09:30:45",
		"updated_date": "2024-03-15 09:30:45",
		"publisher":    "",
		"isbn":         "",
	}
	for field, value := range want {
		if fields[field] != value {
			t.Errorf("%s = %q, want %q", field, fields[field], value)
		}
	}
}

func TestMapper_FallbackChainOrder(t *testing.T) {
	mapper := NewMapper()
	cfg := Config{}.WithDefaults()

	record := Record{
		"enriched_title":  "Enriched",
		"extracted_title": "Extracted",
		"title":           "Raw",
	}

	if got := mapper.Map(record, cfg)["title"]; got != "Enriched" {
		t.Errorf("title = %q, want Enriched", got)
	}
	delete(record, "enriched_title")
	if got := mapper.Map(record, cfg)["title"]; got != "Extracted" {
		t.Errorf("title = %q, want Extracted", got)
	}
	delete(record, "extracted_title")
	if got := mapper.Map(record, cfg)["title"]; got != "Raw" {
		t.Errorf("title = %q, want Raw", got)
	}
}

func TestMapper_BlankValuesFallThrough(t *testing.T) {
	mapper := NewMapper()
	cfg := Config{}.WithDefaults()

	record := Record{
		"enriched_title": "   ",
		"title":          "Kept",
	}
	if got := mapper.Map(record, cfg)["title"]; got != "Kept" {
		t.Errorf("title = %q, want Kept", got)
	}
}

func TestMapper_TitleStemsFromFilename(t *testing.T) {
	mapper := NewMapper()
	cfg := Config{}.WithDefaults()

	record := Record{"filename": "/books/Clean Architecture.epub"}
	if got := mapper.Map(record, cfg)["title"]; got != "Clean Architecture" {
		t.Errorf("title = %q, want Clean Architecture", got)
	}

	record = Record{"name": "design-patterns.pdf"}
	if got := mapper.Map(record, cfg)["title"]; got != "design-patterns" {
		t.Errorf("title = %q, want design-patterns", got)
	}
}

func TestMapper_FormatIsLowercased(t *testing.T) {
	mapper := NewMapper()
	cfg := Config{}.WithDefaults()

	if got := mapper.Map(Record{"format": "EPUB"}, cfg)["format"]; got != "epub" {
		t.Errorf("format = %q, want epub", got)
	}
}

func TestMapper_TopicsNormalized(t *testing.T) {
	mapper := NewMapper()
	cfg := Config{}.WithDefaults()

	record := Record{"topics": "programming; systems,concurrency ,  "}
	if got := mapper.Map(record, cfg)["topics"]; got != "programming, systems, concurrency" {
		t.Errorf("topics = %q", got)
	}
}

func TestMapper_RecordValuesWinOverConfigDefaults(t *testing.T) {
	mapper := NewMapper()
	cfg := Config{Defaults: Defaults{Status: "archived"}}.WithDefaults()

	fields := mapper.Map(Record{"status": "reading"}, cfg)
	if fields["status"] != "reading" {
		t.Errorf("status = %q, want reading", fields["status"])
	}

	fields = mapper.Map(Record{}, cfg)
	if fields["status"] != "archived" {
		t.Errorf("status = %q, want archived", fields["status"])
	}
}

func TestMapper_PurposeJoinPreservesOrder(t *testing.T) {
	mapper := NewMapper()
	cfg := Config{Defaults: Defaults{Purpose: []string{"reference", "read", "reference"}}}.WithDefaults()

	if got := mapper.Map(Record{}, cfg)["purpose"]; got != "reference, read, reference" {
		t.Errorf("purpose = %q", got)
	}
}

func TestMapper_CustomRules(t *testing.T) {
	mapper := &Mapper{Rules: []FieldRule{
		{Field: "slug", Sources: []string{"slug", "title"}, Literal: "none"},
	}}
	cfg := Config{}.WithDefaults()

	fields := mapper.Map(Record{"title": "A Book"}, cfg)
	if len(fields) != 1 {
		t.Fatalf("expected one field, got %d", len(fields))
	}
	if fields["slug"] != "A Book" {
		t.Errorf("slug = %q", fields["slug"])
	}
}
