package mistral

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"docsray/internal/model"
)

func newTestClient(url string) *Client {
	c := NewClient(url, "test-key")
	c.InitialBackoff = time.Millisecond
	c.MaxBackoff = 5 * time.Millisecond
	return c
}

func TestChatComplete_SuccessStringContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Hello from model"}},
			},
		})
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Generate(context.Background(), "Say hello")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "Hello from model" {
		t.Fatalf("unexpected generated text: %q", out)
	}
}

func TestChatComplete_SuccessArrayContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": []map[string]any{
							{"type": "text", "text": "first"},
							{"type": "text", "text": "second"},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Generate(context.Background(), "Two lines")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "first\nsecond" {
		t.Fatalf("unexpected generated text: %q", out)
	}
}

func TestChatComplete_JSONModeSetsResponseFormat(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "{}"}},
			},
		})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ChatComplete(context.Background(), ChatRequest{
		User:     "classify",
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("ChatComplete failed: %v", err)
	}
	rf, ok := captured["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Fatalf("response_format not set: %v", captured["response_format"])
	}
}

func TestChatComplete_SystemMessageFirst(t *testing.T) {
	var captured struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}},
			},
		})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ChatComplete(context.Background(), ChatRequest{
		System: "you are a classifier",
		User:   "page text",
	})
	if err != nil {
		t.Fatalf("ChatComplete failed: %v", err)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
}

func TestChatComplete_RetriesOnRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("rate limited"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "recovered"}},
			},
		})
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Generate(context.Background(), "retry me")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "recovered" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("unexpected result %q after %d calls", out, calls)
	}
}

func TestChatComplete_AuthFailureNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), "x")
	var provErr *model.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Code != "AUTH_FAILED" || provErr.Retryable {
		t.Fatalf("unexpected error: %+v", provErr)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("auth failure was retried %d times", calls)
	}
}

func TestChatComplete_ServerErrorExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.MaxRetries = 2
	_, err := client.Generate(context.Background(), "x")
	var provErr *model.ProviderError
	if !errors.As(err, &provErr) || provErr.Code != "PROVIDER_UNAVAILABLE" {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestChatComplete_RejectionBodyBoundedByExcerptChars(t *testing.T) {
	body := strings.Repeat("e", 300)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.ExcerptChars = 10
	_, err := client.Generate(context.Background(), "x")
	var provErr *model.ProviderError
	if !errors.As(err, &provErr) || provErr.Code != "PROVIDER_REJECTED" {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(provErr.Message, strings.Repeat("e", 10)) {
		t.Fatalf("message missing excerpt: %q", provErr.Message)
	}
	if strings.Contains(provErr.Message, strings.Repeat("e", 15)) {
		t.Fatalf("excerpt exceeds configured bound: %q", provErr.Message)
	}
}

func TestChatComplete_EmptyChoicesReturnsEmptyString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("empty choices must not error: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty string, got %q", out)
	}
}

func TestChatComplete_MissingAPIKey(t *testing.T) {
	client := NewClient("http://localhost:1", "")
	_, err := client.Generate(context.Background(), "x")
	var provErr *model.ProviderError
	if !errors.As(err, &provErr) || provErr.Code != "CONFIG_INVALID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOCR_DataURLAndPageOrder(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ocr" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pages": []map[string]any{
				{"index": 0, "markdown": "# Page one"},
				{"index": 1, "markdown": "# Page two"},
			},
		})
	}))
	defer server.Close()

	pages, err := newTestClient(server.URL).OCR(context.Background(), "application/pdf", []byte("%PDF-fake"))
	if err != nil {
		t.Fatalf("OCR failed: %v", err)
	}
	if len(pages) != 2 || pages[0] != "# Page one" {
		t.Fatalf("unexpected pages: %v", pages)
	}

	doc, _ := captured["document"].(map[string]any)
	url, _ := doc["document_url"].(string)
	if !strings.HasPrefix(url, "data:application/pdf;base64,") {
		t.Fatalf("document_url is not a data URL: %q", url)
	}
	if captured["model"] != DefaultOCRModel {
		t.Fatalf("model = %v, want %s", captured["model"], DefaultOCRModel)
	}
}
