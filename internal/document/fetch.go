package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"docsray/internal/model"
)

// IsURL reports whether ref names a remote document.
func IsURL(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// InferFormat maps a document reference to its format by extension.
func InferFormat(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		trimmed = u.Path
	}
	switch strings.ToLower(filepath.Ext(trimmed)) {
	case ".pdf":
		return "pdf"
	case ".txt":
		return "txt"
	case ".md", ".markdown":
		return "md"
	case ".html", ".htm":
		return "html"
	case ".docx":
		return "docx"
	default:
		return ""
	}
}

// Fetch resolves a document reference to its bytes. Remote references are
// downloaded; local ones are read subject to the root containment check.
func (s *Service) Fetch(ctx context.Context, ref string) (model.Document, []byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Document{}, nil, fmt.Errorf("document reference is required")
	}

	var (
		data []byte
		err  error
	)
	if IsURL(ref) {
		data, err = s.download(ctx, ref)
	} else {
		data, err = s.readLocal(ref)
	}
	if err != nil {
		return model.Document{}, nil, err
	}

	if s.MaxFileBytes > 0 && int64(len(data)) > s.MaxFileBytes {
		return model.Document{}, nil, fmt.Errorf("document exceeds size limit (%d bytes): %w", s.MaxFileBytes, model.ErrUnsupportedFormat)
	}

	doc := model.Document{
		URL:         ref,
		Format:      InferFormat(ref),
		SizeBytes:   int64(len(data)),
		ContentHash: ComputeContentHash(data),
		Status:      "ok",
	}
	return doc, data, nil
}

func (s *Service) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download document: unexpected status %d", resp.StatusCode)
	}

	limit := s.MaxFileBytes
	if limit <= 0 {
		limit = 100 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read document body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("document exceeds size limit (%d bytes)", limit)
	}
	return data, nil
}

// readLocal reads a path relative to the configured root, refusing anything
// that resolves outside it once symlinks are evaluated.
func (s *Service) readLocal(relPath string) ([]byte, error) {
	rootAbs, err := filepath.Abs(strings.TrimSpace(s.RootDir))
	if err != nil {
		return nil, err
	}
	rootReal, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return nil, err
	}
	normalized := filepath.ToSlash(filepath.Clean(strings.TrimSpace(relPath)))
	if normalized == "." || normalized == ".." || strings.HasPrefix(normalized, "../") || filepath.IsAbs(relPath) {
		return nil, model.ErrPathOutsideRoot
	}
	absPath := filepath.Join(rootAbs, filepath.FromSlash(normalized))
	targetReal, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(rootReal, targetReal)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, model.ErrPathOutsideRoot
	}
	return os.ReadFile(targetReal)
}
