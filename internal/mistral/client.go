package mistral

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"docsray/internal/model"
)

const (
	// DefaultChatModel is the model used for classification and extraction
	// when the caller does not pick one. This must be a chat-capable alias;
	// mistral-ocr-latest is an OCR model and is rejected by the chat
	// completions endpoint.
	DefaultChatModel = "mistral-large-latest"
	// DefaultSummaryModel is the cheaper alias used for per-page summaries.
	DefaultSummaryModel = "mistral-small-latest"
	// DefaultOCRModel is used only on the /v1/ocr endpoint.
	DefaultOCRModel = "mistral-ocr-latest"

	defaultBaseURL = "https://api.mistral.ai"
)

// Client is a minimal Mistral API client covering the chat completions and
// OCR endpoints. The zero retry/backoff fields get sensible defaults.
type Client struct {
	BaseURL string
	APIKey  string

	DefaultChatModel string
	OCRModel         string
	MaxRetries       int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	HTTPClient       *http.Client

	// Limiter throttles outbound calls across all tools sharing the client.
	// Nil means unlimited.
	Limiter *rate.Limiter

	// ExcerptChars caps the response body quoted in rejection errors. Zero
	// uses defaultExcerptChars.
	ExcerptChars int
}

const defaultExcerptChars = 200

func NewClient(baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:          strings.TrimRight(baseURL, "/"),
		APIKey:           apiKey,
		DefaultChatModel: DefaultChatModel,
		OCRModel:         DefaultOCRModel,
		MaxRetries:       3,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       8 * time.Second,
		HTTPClient:       &http.Client{Timeout: 120 * time.Second},
	}
}

// ChatRequest describes one chat completion call.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// JSONMode asks the API to constrain the response to a JSON object via
	// response_format. Callers still validate the payload; the flag only
	// reduces the rate of prose-wrapped answers.
	JSONMode bool
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatComplete runs one chat completion and returns the raw text content.
// An empty choices array or empty content returns "" with a nil error; the
// response validator downstream owns that case.
func (c *Client) ChatComplete(ctx context.Context, req ChatRequest) (string, error) {
	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = c.chatModel()
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	body := chatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: &req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	raw, err := c.doJSON(ctx, "/v1/chat/completions", body)
	if err != nil {
		return "", err
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &model.ProviderError{
			Code:      "PROVIDER_MALFORMED",
			Message:   "malformed chat completion response",
			Retryable: true,
			Cause:     err,
		}
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return flattenContent(parsed.Choices[0].Message.Content), nil
}

// Generate is the plain-prompt convenience wrapper used by the annotate-style
// flows and by tests.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.ChatComplete(ctx, ChatRequest{User: prompt})
}

type ocrRequest struct {
	Model    string `json:"model"`
	Document struct {
		Type        string `json:"type"`
		DocumentURL string `json:"document_url"`
	} `json:"document"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// OCR runs the document OCR endpoint over raw bytes and returns per-page
// markdown in page order. mimeType defaults to application/pdf.
func (c *Client) OCR(ctx context.Context, mimeType string, data []byte) ([]string, error) {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "application/pdf"
	}
	ocrModel := strings.TrimSpace(c.OCRModel)
	if ocrModel == "" {
		ocrModel = DefaultOCRModel
	}
	var body ocrRequest
	body.Model = ocrModel
	body.Document.Type = "document_url"
	body.Document.DocumentURL = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	raw, err := c.doJSON(ctx, "/v1/ocr", body)
	if err != nil {
		return nil, err
	}

	var parsed ocrResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &model.ProviderError{
			Code:      "PROVIDER_MALFORMED",
			Message:   "malformed OCR response",
			Retryable: true,
			Cause:     err,
		}
	}
	pages := make([]string, len(parsed.Pages))
	for i, p := range parsed.Pages {
		pages[i] = p.Markdown
	}
	return pages, nil
}

// doJSON posts body to path and returns the response bytes, retrying rate
// limits and transient upstream failures with exponential backoff.
func (c *Client) doJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, &model.ProviderError{
			Code:      "CONFIG_INVALID",
			Message:   "MISTRAL_API_KEY is required",
			Retryable: false,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	retries := c.MaxRetries
	if retries < 1 {
		retries = 1
	}
	backoff := c.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := c.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 8 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		raw, retryable, err := c.doOnce(ctx, path, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, path string, payload []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		// network failures are worth one more try unless the context is gone
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, &model.ProviderError{
			Code:      "PROVIDER_UNAVAILABLE",
			Message:   "request to Mistral API failed",
			Retryable: true,
			Cause:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, true, &model.ProviderError{
			Code:      "PROVIDER_UNAVAILABLE",
			Message:   "read Mistral API response",
			Retryable: true,
			Cause:     err,
		}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return raw, false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, &model.ProviderError{
			Code:       "AUTH_FAILED",
			Message:    "Mistral API rejected credentials",
			Retryable:  false,
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, &model.ProviderError{
			Code:       "RATE_LIMITED",
			Message:    "Mistral API rate limit",
			Retryable:  true,
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		return nil, true, &model.ProviderError{
			Code:       "PROVIDER_UNAVAILABLE",
			Message:    fmt.Sprintf("Mistral API returned %d", resp.StatusCode),
			Retryable:  true,
			StatusCode: resp.StatusCode,
		}
	default:
		return nil, false, &model.ProviderError{
			Code:       "PROVIDER_REJECTED",
			Message:    fmt.Sprintf("Mistral API returned %d: %s", resp.StatusCode, excerpt(string(raw), c.excerptChars())),
			Retryable:  false,
			StatusCode: resp.StatusCode,
		}
	}
}

func (c *Client) excerptChars() int {
	if c.ExcerptChars > 0 {
		return c.ExcerptChars
	}
	return defaultExcerptChars
}

func (c *Client) chatModel() string {
	if strings.TrimSpace(c.DefaultChatModel) != "" {
		return c.DefaultChatModel
	}
	return DefaultChatModel
}

// flattenContent handles both the plain string content shape and the
// array-of-parts shape some models return.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if p.Type == "" || p.Type == "text" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
