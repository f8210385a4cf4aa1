package document

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"docsray/internal/model"
)

// SampleChars is how much text PageSamples takes from the start of each page
// for classification input. Small on purpose: samples for a few hundred pages
// must stay well inside the model's context window.
const SampleChars = 70

// OCRClient converts document bytes into per-page markdown.
type OCRClient interface {
	OCR(ctx context.Context, mimeType string, data []byte) ([]string, error)
}

// PageTextCache persists extracted page text keyed by content hash.
type PageTextCache interface {
	GetPageTexts(ctx context.Context, contentHash string) ([]model.PageText, error)
	PutPageTexts(ctx context.Context, contentHash string, pages []model.PageText) error
}

// Service turns document references into per-page text. PDF pages go through
// Mistral OCR with the result cached; plain text formats are split locally.
type Service struct {
	RootDir      string
	MaxFileBytes int64
	// SampleChars overrides the default classification sample size when
	// positive.
	SampleChars int
	HTTPClient  *http.Client
	OCR         OCRClient
	Cache       PageTextCache
	Logger      *slog.Logger
}

// PageTexts returns the full text of the selected pages, in page order.
func (s *Service) PageTexts(ctx context.Context, doc model.Document, data []byte, filter model.PageFilter) ([]model.PageText, error) {
	all, err := s.allPageTexts(ctx, doc, data)
	if err != nil {
		return nil, err
	}
	return filterPages(all, filter), nil
}

// PageSamples returns classification samples for the selected range.
func (s *Service) PageSamples(ctx context.Context, doc model.Document, data []byte, pageRange *model.PageRange) ([]model.PageSample, error) {
	filter := model.PageFilter{}
	if pageRange != nil {
		filter.Range = pageRange
	}
	pages, err := s.PageTexts(ctx, doc, data, filter)
	if err != nil {
		return nil, err
	}

	budget := s.SampleChars
	if budget <= 0 {
		budget = SampleChars
	}
	samples := make([]model.PageSample, 0, len(pages))
	for _, page := range pages {
		samples = append(samples, model.PageSample{
			Page:       page.Page,
			TextSample: sampleText(page.Text, budget),
		})
	}
	return samples, nil
}

func (s *Service) allPageTexts(ctx context.Context, doc model.Document, data []byte) ([]model.PageText, error) {
	if s.Cache != nil && doc.ContentHash != "" {
		cached, err := s.Cache.GetPageTexts(ctx, doc.ContentHash)
		if err == nil && len(cached) > 0 {
			return cached, nil
		}
		if err != nil && s.Logger != nil {
			s.Logger.Warn("page text cache read failed", "error", err.Error())
		}
	}

	var (
		pages []model.PageText
		err   error
	)
	switch doc.Format {
	case "pdf":
		pages, err = s.ocrPages(ctx, "application/pdf", data)
	case "docx":
		pages, err = s.ocrPages(ctx, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data)
	case "txt", "md", "html":
		pages = splitTextPages(string(data))
	case "":
		// no extension; treat as plain text rather than refuse
		pages = splitTextPages(string(data))
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedFormat, doc.Format)
	}
	if err != nil {
		return nil, err
	}

	if s.Cache != nil && doc.ContentHash != "" && len(pages) > 0 {
		if putErr := s.Cache.PutPageTexts(ctx, doc.ContentHash, pages); putErr != nil && s.Logger != nil {
			s.Logger.Warn("page text cache write failed", "error", putErr.Error())
		}
	}
	return pages, nil
}

func (s *Service) ocrPages(ctx context.Context, mimeType string, data []byte) ([]model.PageText, error) {
	if s.OCR == nil {
		return nil, model.ErrProviderDisabled
	}
	markdown, err := s.OCR.OCR(ctx, mimeType, data)
	if err != nil {
		return nil, err
	}
	pages := make([]model.PageText, 0, len(markdown))
	for i, text := range markdown {
		pages = append(pages, model.PageText{Page: i + 1, Text: text})
	}
	return pages, nil
}

// splitTextPages divides plain text on form feeds; without any, the whole
// document is a single page.
func splitTextPages(text string) []model.PageText {
	parts := strings.Split(text, "\f")
	pages := make([]model.PageText, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, model.PageText{Page: i + 1, Text: part})
	}
	return pages
}

func filterPages(pages []model.PageText, filter model.PageFilter) []model.PageText {
	if len(filter.Pages) == 0 && filter.Range == nil {
		return pages
	}

	selected := make([]model.PageText, 0, len(pages))
	if len(filter.Pages) > 0 {
		wanted := make(map[int]struct{}, len(filter.Pages))
		for _, p := range filter.Pages {
			wanted[p] = struct{}{}
		}
		for _, page := range pages {
			if _, ok := wanted[page.Page]; ok {
				selected = append(selected, page)
			}
		}
		return selected
	}

	start := filter.Range.Start
	end := filter.Range.End
	for _, page := range pages {
		if start > 0 && page.Page < start {
			continue
		}
		if end > 0 && page.Page > end {
			continue
		}
		selected = append(selected, page)
	}
	return selected
}

func sampleText(text string, maxChars int) string {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= maxChars {
		return trimmed
	}
	runes := []rune(trimmed)
	return strings.TrimSpace(string(runes[:maxChars]))
}
