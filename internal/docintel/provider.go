package docintel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"docsray/internal/mistral"
	"docsray/internal/model"
)

// ChatClient is the slice of the Mistral client the provider needs; narrowed
// for tests.
type ChatClient interface {
	ChatComplete(ctx context.Context, req mistral.ChatRequest) (string, error)
}

// Provider runs document-intelligence tasks through the Mistral chat API and
// validates everything the model sends back before it reaches a tool result.
type Provider struct {
	client       ChatClient
	chatModel    string
	summaryModel string
	logger       *slog.Logger

	// ExcerptChars caps the raw provider text quoted in diagnostics. Zero
	// uses MaxDiagnosticChars.
	ExcerptChars int
}

// NewProvider wires a provider. Empty model names fall back to the package
// defaults; a nil logger disables diagnostics.
func NewProvider(client ChatClient, chatModel, summaryModel string, logger *slog.Logger) *Provider {
	if strings.TrimSpace(chatModel) == "" {
		chatModel = mistral.DefaultChatModel
	}
	if strings.TrimSpace(summaryModel) == "" {
		summaryModel = mistral.DefaultSummaryModel
	}
	return &Provider{
		client:       client,
		chatModel:    chatModel,
		summaryModel: summaryModel,
		logger:       logger,
	}
}

// Capabilities reports the provider feature set surfaced by docsray.stats.
func (p *Provider) Capabilities() model.Capabilities {
	return model.Capabilities{
		Formats:   []string{"pdf", "txt", "md", "docx", "html"},
		MaxFileMB: 100,
		Features: map[string]bool{
			"classification":       true,
			"structuredExtraction": true,
			"summarization":        true,
			"ocr":                  true,
			"streaming":            false,
		},
	}
}

// ClassifyOptions tune one classification call.
type ClassifyOptions struct {
	Model       string
	Temperature float64
}

// ClassifyPages labels pages against the caller's label set. Provider
// failures return the error; empty or malformed model output degrades to an
// empty outcome with the verdict recorded. Accepted items preserve the
// model's output order.
func (p *Provider) ClassifyPages(ctx context.Context, pages []model.PageSample, labels []string, opts ClassifyOptions) (ClassificationOutcome, error) {
	if len(pages) == 0 {
		return ClassificationOutcome{Labels: []model.PageLabel{}, Verdict: VerdictEmpty}, nil
	}

	payload, err := json.Marshal(pages)
	if err != nil {
		return ClassificationOutcome{}, fmt.Errorf("marshal page samples: %w", err)
	}

	raw, err := p.client.ChatComplete(ctx, mistral.ChatRequest{
		Model:       p.pickModel(opts.Model, p.chatModel),
		System:      buildClassificationPrompt(labels),
		User:        string(payload),
		Temperature: opts.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return ClassificationOutcome{}, err
	}

	outcome := ParseClassification(raw, labels, p.logger, p.ExcerptChars)
	if p.logger != nil && outcome.Skipped > 0 {
		p.logger.Warn("classification items skipped",
			"accepted", len(outcome.Labels), "skipped", outcome.Skipped)
	}
	return outcome, nil
}

// ExtractOptions tune one extraction call.
type ExtractOptions struct {
	Model       string
	Temperature float64
}

// ExtractFields pulls typed fields out of page text per the caller's schema.
func (p *Provider) ExtractFields(ctx context.Context, schema model.FieldSchema, inputs []model.PageText, opts ExtractOptions) (ExtractionOutcome, error) {
	if len(inputs) == 0 {
		return ExtractionOutcome{Fields: []model.ExtractedField{}, Errors: []string{}, Verdict: VerdictEmpty}, nil
	}

	payload, err := json.Marshal(inputs)
	if err != nil {
		return ExtractionOutcome{}, fmt.Errorf("marshal page inputs: %w", err)
	}

	raw, err := p.client.ChatComplete(ctx, mistral.ChatRequest{
		Model:       p.pickModel(opts.Model, p.chatModel),
		System:      buildExtractionPrompt(schema),
		User:        string(payload),
		Temperature: opts.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return ExtractionOutcome{}, err
	}

	outcome := ParseExtraction(raw, p.logger, p.ExcerptChars)
	if p.logger != nil && outcome.Skipped > 0 {
		p.logger.Warn("extraction items skipped",
			"accepted", len(outcome.Fields), "skipped", outcome.Skipped)
	}
	return outcome, nil
}

// SummarizeOptions tune one summarize call.
type SummarizeOptions struct {
	Model       string
	Style       string
	MaxTokens   int
	Temperature float64
}

// SummarizePages produces one summary per page, sequentially. A failed page
// yields an error-text summary entry instead of aborting the batch, so a
// transient provider failure on page 40 does not discard pages 1-39.
func (p *Provider) SummarizePages(ctx context.Context, pages []model.PageText, opts SummarizeOptions) ([]model.PageSummary, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.3
	}
	system := buildSummaryPrompt(opts.Style)

	summaries := make([]model.PageSummary, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		raw, err := p.client.ChatComplete(ctx, mistral.ChatRequest{
			Model:       p.pickModel(opts.Model, p.summaryModel),
			System:      system,
			User:        page.Text,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			if p.logger != nil {
				p.logger.Error("summarization failed", "page", page.Page, "error", err.Error())
			}
			summaries = append(summaries, model.PageSummary{
				Page:    page.Page,
				Summary: fmt.Sprintf("Error: %v", err),
			})
			continue
		}
		summaries = append(summaries, model.PageSummary{
			Page:    page.Page,
			Summary: strings.TrimSpace(raw),
		})
	}
	return summaries, nil
}

func (p *Provider) pickModel(override, fallback string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return fallback
}
