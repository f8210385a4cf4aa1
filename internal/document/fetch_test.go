package document

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"docsray/internal/model"
)

func TestIsURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/report.pdf": true,
		"http://example.com":             true,
		"report.pdf":                     false,
		"file:///etc/passwd":             false,
		"ftp://example.com/x":            false,
		"":                               false,
	}
	for ref, want := range cases {
		if got := IsURL(ref); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", ref, got, want)
		}
	}
}

func TestInferFormat(t *testing.T) {
	cases := map[string]string{
		"report.pdf":                         "pdf",
		"notes.TXT":                          "txt",
		"readme.markdown":                    "md",
		"page.htm":                           "html",
		"contract.docx":                      "docx",
		"https://example.com/q.pdf?x=1":      "pdf",
		"no-extension":                       "",
		"weird.xyz":                          "",
	}
	for ref, want := range cases {
		if got := InferFormat(ref); got != want {
			t.Errorf("InferFormat(%q) = %q, want %q", ref, got, want)
		}
	}
}

func TestFetch_LocalFile(t *testing.T) {
	root := t.TempDir()
	content := []byte("hello world")
	if err := os.WriteFile(filepath.Join(root, "doc.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	s := &Service{RootDir: root}
	doc, data, err := s.Fetch(context.Background(), "doc.txt")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("unexpected data: %q", data)
	}
	if doc.Format != "txt" || doc.SizeBytes != int64(len(content)) {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.ContentHash != ComputeContentHash(content) {
		t.Fatalf("content hash mismatch")
	}
}

func TestFetch_RejectsEscapePaths(t *testing.T) {
	root := t.TempDir()
	s := &Service{RootDir: root}

	for _, ref := range []string{"../secret.txt", "..", "/etc/passwd", "a/../../b"} {
		_, _, err := s.Fetch(context.Background(), ref)
		if !errors.Is(err, model.ErrPathOutsideRoot) {
			t.Errorf("Fetch(%q) = %v, want ErrPathOutsideRoot", ref, err)
		}
	}
}

func TestFetch_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("private"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s := &Service{RootDir: root}
	_, _, err := s.Fetch(context.Background(), "link.txt")
	if !errors.Is(err, model.ErrPathOutsideRoot) {
		t.Fatalf("symlink escape not rejected: %v", err)
	}
}

func TestFetch_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("remote body"))
	}))
	defer server.Close()

	s := &Service{RootDir: t.TempDir(), HTTPClient: server.Client()}
	doc, data, err := s.Fetch(context.Background(), server.URL+"/report.txt")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "remote body" || doc.Format != "txt" {
		t.Fatalf("unexpected result: %q %+v", data, doc)
	}
}

func TestFetch_DownloadSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer server.Close()

	s := &Service{RootDir: t.TempDir(), MaxFileBytes: 16, HTTPClient: server.Client()}
	_, _, err := s.Fetch(context.Background(), server.URL+"/big.txt")
	if err == nil {
		t.Fatalf("oversized download accepted")
	}
}

func TestFetch_DownloadErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := &Service{RootDir: t.TempDir(), HTTPClient: server.Client()}
	_, _, err := s.Fetch(context.Background(), server.URL+"/missing.txt")
	if err == nil {
		t.Fatalf("404 download accepted")
	}
}
