package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"docsray/internal/model"
)

// SQLiteStore caches fetched documents and their extracted page text so
// repeat tool calls on the same bytes skip refetch and re-OCR.
type SQLiteStore struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return err
	}

	schema := `
CREATE TABLE IF NOT EXISTS documents (
  doc_id INTEGER PRIMARY KEY AUTOINCREMENT,
  url TEXT NOT NULL UNIQUE,
  format TEXT NOT NULL DEFAULT '',
  size_bytes INTEGER NOT NULL DEFAULT 0,
  mtime_unix INTEGER NOT NULL DEFAULT 0,
  content_hash TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'ok'
);

CREATE TABLE IF NOT EXISTS page_texts (
  content_hash TEXT NOT NULL,
  page INTEGER NOT NULL,
  text TEXT NOT NULL,
  PRIMARY KEY (content_hash, page)
);

-- content_hash lookups happen on every tool call; documents are also probed
-- by hash when the same bytes arrive under a different reference.
CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc model.Document) error {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(
		ctx,
		`INSERT INTO documents(url, format, size_bytes, mtime_unix, content_hash, status)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   format=excluded.format,
		   size_bytes=excluded.size_bytes,
		   mtime_unix=excluded.mtime_unix,
		   content_hash=excluded.content_hash,
		   status=excluded.status`,
		doc.URL,
		doc.Format,
		doc.SizeBytes,
		doc.MTimeUnix,
		doc.ContentHash,
		defaultIfEmpty(doc.Status, "ok"),
	)
	return err
}

func (s *SQLiteStore) GetDocumentByURL(ctx context.Context, url string) (model.Document, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return model.Document{}, err
	}

	row := db.QueryRowContext(
		ctx,
		`SELECT doc_id, url, format, size_bytes, mtime_unix, content_hash, status
		 FROM documents WHERE url = ?`,
		url,
	)

	var doc model.Document
	err = row.Scan(&doc.DocID, &doc.URL, &doc.Format, &doc.SizeBytes, &doc.MTimeUnix, &doc.ContentHash, &doc.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, model.ErrNotFound
	}
	if err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

func (s *SQLiteStore) GetPageTexts(ctx context.Context, contentHash string) ([]model.PageText, error) {
	if strings.TrimSpace(contentHash) == "" {
		return nil, nil
	}
	db, err := s.ensureDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(
		ctx,
		`SELECT page, text FROM page_texts WHERE content_hash = ? ORDER BY page`,
		contentHash,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pages []model.PageText
	for rows.Next() {
		var page model.PageText
		if err := rows.Scan(&page.Page, &page.Text); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (s *SQLiteStore) PutPageTexts(ctx context.Context, contentHash string, pages []model.PageText) error {
	if strings.TrimSpace(contentHash) == "" || len(pages) == 0 {
		return nil
	}
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO page_texts(content_hash, page, text) VALUES(?, ?, ?)
			 ON CONFLICT(content_hash, page) DO UPDATE SET text=excluded.text`,
			contentHash,
			page.Page,
			page.Text,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Stats reports cached document and page counts for docsray.stats.
func (s *SQLiteStore) Stats(ctx context.Context) (documents int64, pages int64, err error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return 0, 0, err
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&documents); err != nil {
		return 0, 0, err
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM page_texts`).Scan(&pages); err != nil {
		return 0, 0, err
	}
	return documents, pages, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) ensureDB(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db != nil {
		return db, nil
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db, nil
}

func defaultIfEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
