package vault

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestServiceExportUsesStoreFactory(t *testing.T) {
	store := NewMemoryStore()
	tracker := NewMemoryTracker()
	factoryCalls := 0

	svc := NewService(ServiceConfig{
		Tracker: tracker,
		StoreFactory: func(cfg Config) (Store, error) {
			factoryCalls++
			if cfg.Folder != "Books" {
				t.Errorf("factory config folder = %q", cfg.Folder)
			}
			return store, nil
		},
		IDGenerator: func() string { return "svc-1" },
	})

	actor := Actor{ID: "user-7"}
	result, err := svc.Export(context.Background(), actor, ExportRequest{
		Config:  testConfig(),
		Records: []Record{{"title": "A", "author": "B"}},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if factoryCalls != 1 {
		t.Fatalf("factory calls = %d, want 1", factoryCalls)
	}
	if result.ExportID != "svc-1" {
		t.Fatalf("export ID = %q", result.ExportID)
	}
	if result.Created != 1 {
		t.Fatalf("created = %d, want 1", result.Created)
	}

	record, err := svc.Status(context.Background(), actor, "svc-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if record.State != StateDone || record.Created != 1 {
		t.Fatalf("record = %+v", record)
	}
	if record.RequestedBy.ID != "user-7" {
		t.Fatalf("requested by = %+v", record.RequestedBy)
	}
}

func TestServiceExportWithoutStoreFails(t *testing.T) {
	svc := NewService(ServiceConfig{})
	_, err := svc.Export(context.Background(), Actor{}, ExportRequest{
		Config:  testConfig(),
		Records: []Record{{"title": "A"}},
	})
	if err == nil {
		t.Fatal("expected missing store error")
	}
}

func TestServicePreviewRendersWithoutWriting(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(ServiceConfig{Store: store})

	preview, err := svc.Preview(context.Background(), ExportRequest{
		Config: testConfig(),
		Records: []Record{
			{"title": "Clean Code", "author": "Robert C. Martin"},
			{"title": "Second", "author": "Ignored"},
		},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Filename != "Clean Code - Robert C. Martin.md" {
		t.Fatalf("filename = %q", preview.Filename)
	}
	if !strings.Contains(preview.Content, "# Clean Code") {
		t.Errorf("content missing heading:\n%s", preview.Content)
	}
	if preview.Fields["author"] != "Robert C. Martin" {
		t.Errorf("fields = %+v", preview.Fields)
	}
	if len(preview.Placeholders) == 0 {
		t.Error("placeholders missing")
	}

	if exists, _ := store.Exists(context.Background(), "Books", preview.Filename); exists {
		t.Fatal("preview wrote to the store")
	}
}

func TestServicePreviewCustomTemplate(t *testing.T) {
	svc := NewService(ServiceConfig{Store: NewMemoryStore()})

	cfg := testConfig()
	cfg.TemplateBody = "{{title}} by {{author}}"

	preview, err := svc.Preview(context.Background(), ExportRequest{
		Config:  cfg,
		Records: []Record{{"title": "Go", "author": "Pike"}},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Content != "Go by Pike" {
		t.Fatalf("content = %q", preview.Content)
	}
	want := []string{"title", "author"}
	if len(preview.Placeholders) != 2 || preview.Placeholders[0] != want[0] || preview.Placeholders[1] != want[1] {
		t.Fatalf("placeholders = %v, want %v", preview.Placeholders, want)
	}
}

func TestServicePreviewNoRecords(t *testing.T) {
	svc := NewService(ServiceConfig{Store: NewMemoryStore()})
	if _, err := svc.Preview(context.Background(), ExportRequest{Config: testConfig()}); err == nil {
		t.Fatal("preview without records should fail")
	}
}

func TestServiceHistoryAndDelete(t *testing.T) {
	tracker := NewMemoryTracker()
	svc := NewService(ServiceConfig{Store: NewMemoryStore(), Tracker: tracker})
	ctx := context.Background()
	actor := Actor{ID: "user-1"}

	for _, title := range []string{"A", "B"} {
		if _, err := svc.Export(ctx, actor, ExportRequest{
			Config:  testConfig(),
			Records: []Record{{"title": title}},
		}); err != nil {
			t.Fatalf("export %s: %v", title, err)
		}
	}

	records, err := svc.History(ctx, actor, RunFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	if err := svc.Delete(ctx, actor, records[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	records, _ = svc.History(ctx, actor, RunFilter{})
	if len(records) != 1 {
		t.Fatalf("records after delete = %d, want 1", len(records))
	}

	if err := svc.Delete(ctx, actor, ""); err == nil {
		t.Fatal("delete with empty ID should fail")
	}
}

func TestServiceStatusRequiresTracker(t *testing.T) {
	svc := NewService(ServiceConfig{Store: NewMemoryStore()})

	if _, err := svc.Status(context.Background(), Actor{}, "r1"); err == nil {
		t.Fatal("status without tracker should fail")
	}
	if _, err := svc.History(context.Background(), Actor{}, RunFilter{}); err == nil {
		t.Fatal("history without tracker should fail")
	}
	if err := svc.Delete(context.Background(), Actor{}, "r1"); err == nil {
		t.Fatal("delete without tracker should fail")
	}
}

func TestServicePruneHistory(t *testing.T) {
	tracker := NewMemoryTracker()
	now := fixedClock()
	seedRuns(t, tracker,
		RunRecord{ID: "old", State: StateDone, CreatedAt: now.Add(-48 * time.Hour)},
		RunRecord{ID: "new", State: StateDone, CreatedAt: now.Add(-time.Minute)},
	)

	svc := NewService(ServiceConfig{
		Store:   NewMemoryStore(),
		Tracker: tracker,
		Now:     fixedClock,
	})

	pruned, err := svc.PruneHistory(context.Background(), RetentionPolicy{MaxAge: 24 * time.Hour})
	if err != nil {
		t.Fatalf("prune history: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}
	if _, err := tracker.Status(context.Background(), "new"); err != nil {
		t.Fatalf("fresh run deleted: %v", err)
	}
}

func TestServiceTemplateRegistryWiredToExports(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(ServiceConfig{Store: store, Templates: NewTemplateRegistry()})

	if err := svc.Templates().Register("short", "{{title}}"); err != nil {
		t.Fatalf("register: %v", err)
	}

	cfg := testConfig()
	cfg.Template = "short"
	if _, err := svc.Export(context.Background(), Actor{}, ExportRequest{
		Config:  cfg,
		Records: []Record{{"title": "Go", "author": "x"}},
	}); err != nil {
		t.Fatalf("export: %v", err)
	}

	content, err := store.Read(context.Background(), "Books", "Go - x.md")
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if string(content) != "Go" {
		t.Fatalf("content = %q", content)
	}
}

func TestServiceRegistriesExposed(t *testing.T) {
	templates := NewTemplateRegistry()
	sources := NewSourceRegistry()
	svc := NewService(ServiceConfig{Store: NewMemoryStore(), Templates: templates, Sources: sources})

	if svc.Templates() != templates {
		t.Error("template registry not exposed")
	}
	if svc.Sources() != sources {
		t.Error("source registry not exposed")
	}
}
