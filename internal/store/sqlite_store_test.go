package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"docsray/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "test.sqlite"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := model.Document{
		URL:         "report.pdf",
		Format:      "pdf",
		SizeBytes:   1234,
		ContentHash: "abc123",
		Status:      "ok",
	}
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	got, err := s.GetDocumentByURL(ctx, "report.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByURL failed: %v", err)
	}
	if got.ContentHash != "abc123" || got.SizeBytes != 1234 {
		t.Fatalf("unexpected document: %+v", got)
	}

	// same URL updates in place
	doc.ContentHash = "def456"
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	got, err = s.GetDocumentByURL(ctx, "report.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByURL failed: %v", err)
	}
	if got.ContentHash != "def456" {
		t.Fatalf("upsert did not replace: %+v", got)
	}

	docs, _, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if docs != 1 {
		t.Fatalf("document count = %d, want 1", docs)
	}
}

func TestGetDocumentByURL_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocumentByURL(context.Background(), "missing.pdf")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPageTextsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pages := []model.PageText{
		{Page: 2, Text: "second"},
		{Page: 1, Text: "first"},
	}
	if err := s.PutPageTexts(ctx, "hash1", pages); err != nil {
		t.Fatalf("PutPageTexts failed: %v", err)
	}

	got, err := s.GetPageTexts(ctx, "hash1")
	if err != nil {
		t.Fatalf("GetPageTexts failed: %v", err)
	}
	if len(got) != 2 || got[0].Page != 1 || got[1].Text != "second" {
		t.Fatalf("pages not ordered by page: %+v", got)
	}
}

func TestPageTextsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutPageTexts(ctx, "h", []model.PageText{{Page: 1, Text: "old"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutPageTexts(ctx, "h", []model.PageText{{Page: 1, Text: "new"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetPageTexts(ctx, "h")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "new" {
		t.Fatalf("upsert did not replace page text: %+v", got)
	}
}

func TestGetPageTexts_MissingHash(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetPageTexts(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing hash must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no pages, got %+v", got)
	}
}

func TestLazyInit(t *testing.T) {
	// ensureDB opens the database on first use without an explicit Init
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "lazy.sqlite"))
	defer func() { _ = s.Close() }()

	if err := s.PutPageTexts(context.Background(), "h", []model.PageText{{Page: 1, Text: "x"}}); err != nil {
		t.Fatalf("lazy init failed: %v", err)
	}
}
