package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"docsray/internal/docintel"
	"docsray/internal/mistral"
	"docsray/internal/model"
)

const (
	toolNameClassifyPages = "docsray.classify_pages"
	toolNameExtractFields = "docsray.extract_fields"
	toolNameSummarize     = "docsray.summarize"
	toolNamePeek          = "docsray.peek"
	toolNameStats         = "docsray.stats"

	providerName = "mistral"
)

type toolHandler func(context.Context, map[string]interface{}) (map[string]interface{}, string, *toolExecutionError)

type toolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	handler     toolHandler
}

type toolExecutionError struct {
	Code       string
	Message    string
	Suggestion string
	Retryable  bool
}

func (s *Server) toolDefinitions() []toolDefinition {
	return []toolDefinition{
		{
			Name:        toolNameClassifyPages,
			Description: "Classify document pages into caller-supplied categories using Mistral AI.",
			InputSchema: classifyInputSchema(),
			handler:     s.handleClassifyPages,
		},
		{
			Name:        toolNameExtractFields,
			Description: "Extract structured fields from document pages per a caller-supplied schema.",
			InputSchema: extractInputSchema(),
			handler:     s.handleExtractFields,
		},
		{
			Name:        toolNameSummarize,
			Description: "Generate per-page summaries in bullet, paragraph or executive style.",
			InputSchema: summarizeInputSchema(),
			handler:     s.handleSummarize,
		},
		{
			Name:        toolNamePeek,
			Description: "Quick document overview: format, size, page count. No AI call.",
			InputSchema: peekInputSchema(),
			handler:     s.handlePeek,
		},
		{
			Name:        toolNameStats,
			Description: "Server, provider and cache status.",
			InputSchema: statsInputSchema(),
			handler:     s.handleStats,
		},
	}
}

func (s *Server) registerTools(srv *sdk.Server) {
	for _, def := range s.toolDefinitions() {
		def := def
		sdk.AddTool(srv, &sdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, func(ctx context.Context, _ *sdk.CallToolRequest, input map[string]interface{}) (*sdk.CallToolResult, map[string]interface{}, error) {
			if input == nil {
				input = map[string]interface{}{}
			}
			structured, text, toolErr := def.handler(ctx, input)
			if toolErr != nil {
				return newToolErrorResult(*toolErr)
			}
			return &sdk.CallToolResult{
				Content: []sdk.Content{&sdk.TextContent{Text: text}},
			}, structured, nil
		})
	}
}

func newToolErrorResult(toolErr toolExecutionError) (*sdk.CallToolResult, map[string]interface{}, error) {
	text := fmt.Sprintf("ERROR: %s: %s", toolErr.Code, toolErr.Message)
	structured := map[string]interface{}{
		"error": map[string]interface{}{
			"code":      toolErr.Code,
			"message":   toolErr.Message,
			"retryable": toolErr.Retryable,
		},
	}
	if toolErr.Suggestion != "" {
		structured["suggestion"] = toolErr.Suggestion
	}
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
	}, structured, nil
}

func (s *Server) handleClassifyPages(ctx context.Context, args map[string]interface{}) (map[string]interface{}, string, *toolExecutionError) {
	if err := assertNoUnknownArguments(args, map[string]struct{}{
		"document_url": {},
		"labels":       {},
		"model":        {},
		"page_range":   {},
	}); err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	documentURL, ok, err := parseRequiredString(args, "document_url")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}
	if !ok {
		return nil, "", &toolExecutionError{Code: "MISSING_FIELD", Message: "document_url is required"}
	}

	// some MCP clients double-encode structured arguments; undo that before
	// validating so a stringified labels array still works
	s.coerceArgument(args, "labels", docintel.ShapeSequence)
	labels, err := parseRequiredStringSlice(args, "labels")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	s.coerceArgument(args, "page_range", docintel.ShapeMapping)
	pageRange, err := parsePageRange(args, "page_range")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	modelName, err := parseOptionalString(args, "model")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	if toolErr := s.requireProvider(); toolErr != nil {
		return nil, "", toolErr
	}

	doc, data, toolErr := s.fetchDocument(ctx, documentURL)
	if toolErr != nil {
		return nil, "", toolErr
	}

	samples, sampleErr := s.docs.PageSamples(ctx, doc, data, pageRange)
	if sampleErr != nil {
		return nil, "", s.mapToolErrorFromProvider("CLASSIFY_FAILED", sampleErr)
	}

	outcome, classifyErr := s.provider.ClassifyPages(ctx, samples, labels, docintel.ClassifyOptions{
		Model: modelName,
	})
	if classifyErr != nil {
		return nil, "", s.mapToolErrorFromProvider("CLASSIFY_FAILED", classifyErr)
	}

	structured := map[string]interface{}{
		"labels":      serializePageLabels(outcome.Labels),
		"total_pages": len(samples),
		"skipped":     outcome.Skipped,
		"verdict":     outcome.Verdict.String(),
		"model":       s.resolvedChatModel(modelName),
		"provider":    providerName,
	}
	text := fmt.Sprintf("classified %d of %d pages (%d skipped)", len(outcome.Labels), len(samples), outcome.Skipped)
	return structured, text, nil
}

func (s *Server) handleExtractFields(ctx context.Context, args map[string]interface{}) (map[string]interface{}, string, *toolExecutionError) {
	if err := assertNoUnknownArguments(args, map[string]struct{}{
		"document_url": {},
		"schema":       {},
		"model":        {},
		"page_filter":  {},
	}); err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	documentURL, ok, err := parseRequiredString(args, "document_url")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}
	if !ok {
		return nil, "", &toolExecutionError{Code: "MISSING_FIELD", Message: "document_url is required"}
	}

	s.coerceArgument(args, "schema", docintel.ShapeMapping)
	schemaObj, ok, err := parseRequiredObject(args, "schema")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}
	if !ok {
		return nil, "", &toolExecutionError{Code: "MISSING_FIELD", Message: "schema is required"}
	}
	schema, err := parseFieldSchema(schemaObj)
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	s.coerceArgument(args, "page_filter", docintel.ShapeMapping)
	pageFilter, err := parsePageFilter(args, "page_filter")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	modelName, err := parseOptionalString(args, "model")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	if toolErr := s.requireProvider(); toolErr != nil {
		return nil, "", toolErr
	}

	doc, data, toolErr := s.fetchDocument(ctx, documentURL)
	if toolErr != nil {
		return nil, "", toolErr
	}

	pages, pagesErr := s.docs.PageTexts(ctx, doc, data, pageFilter)
	if pagesErr != nil {
		return nil, "", s.mapToolErrorFromProvider("EXTRACT_FAILED", pagesErr)
	}
	if toolErr := s.checkContextBudget(pages); toolErr != nil {
		return nil, "", toolErr
	}

	outcome, extractErr := s.provider.ExtractFields(ctx, schema, pages, docintel.ExtractOptions{
		Model: modelName,
	})
	if extractErr != nil {
		return nil, "", s.mapToolErrorFromProvider("EXTRACT_FAILED", extractErr)
	}

	structured := map[string]interface{}{
		"fields":                serializeFields(outcome.Fields),
		"errors":                outcome.Errors,
		"skipped":               outcome.Skipped,
		"verdict":               outcome.Verdict.String(),
		"total_pages_processed": len(pages),
		"model":                 s.resolvedChatModel(modelName),
		"provider":              providerName,
	}
	text := fmt.Sprintf("extracted %d fields from %d pages (%d skipped)", len(outcome.Fields), len(pages), outcome.Skipped)
	return structured, text, nil
}

func (s *Server) handleSummarize(ctx context.Context, args map[string]interface{}) (map[string]interface{}, string, *toolExecutionError) {
	if err := assertNoUnknownArguments(args, map[string]struct{}{
		"document_url": {},
		"style":        {},
		"page_range":   {},
		"model":        {},
		"max_tokens":   {},
	}); err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	documentURL, ok, err := parseRequiredString(args, "document_url")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}
	if !ok {
		return nil, "", &toolExecutionError{Code: "MISSING_FIELD", Message: "document_url is required"}
	}

	style, err := parseOptionalString(args, "style")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}
	if style == "" {
		style = "bullet"
	}
	switch style {
	case "bullet", "paragraph", "executive":
	default:
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: "style must be one of bullet, paragraph, executive"}
	}

	s.coerceArgument(args, "page_range", docintel.ShapeMapping)
	pageRange, err := parsePageRange(args, "page_range")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	modelName, err := parseOptionalString(args, "model")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	maxTokens := 512
	if raw, exists := args["max_tokens"]; exists {
		parsed, parseErr := parseInteger(raw, "max_tokens")
		if parseErr != nil {
			return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: parseErr.Error()}
		}
		maxTokens = parsed
	}
	if maxTokens < 1 || maxTokens > 8192 {
		return nil, "", &toolExecutionError{Code: "INVALID_RANGE", Message: "max_tokens must be between 1 and 8192"}
	}

	if toolErr := s.requireProvider(); toolErr != nil {
		return nil, "", toolErr
	}

	doc, data, toolErr := s.fetchDocument(ctx, documentURL)
	if toolErr != nil {
		return nil, "", toolErr
	}

	filter := model.PageFilter{}
	if pageRange != nil {
		filter.Range = pageRange
	}
	pages, pagesErr := s.docs.PageTexts(ctx, doc, data, filter)
	if pagesErr != nil {
		return nil, "", s.mapToolErrorFromProvider("SUMMARIZE_FAILED", pagesErr)
	}

	summaries, sumErr := s.provider.SummarizePages(ctx, pages, docintel.SummarizeOptions{
		Model:     modelName,
		Style:     style,
		MaxTokens: maxTokens,
	})
	if sumErr != nil {
		return nil, "", s.mapToolErrorFromProvider("SUMMARIZE_FAILED", sumErr)
	}

	structured := map[string]interface{}{
		"summaries":   serializeSummaries(summaries),
		"total_pages": len(pages),
		"style":       style,
		"model":       s.resolvedSummaryModel(modelName),
		"provider":    providerName,
	}
	text := fmt.Sprintf("summarized %d pages (%s style)", len(summaries), style)
	return structured, text, nil
}

func (s *Server) handlePeek(ctx context.Context, args map[string]interface{}) (map[string]interface{}, string, *toolExecutionError) {
	if err := assertNoUnknownArguments(args, map[string]struct{}{
		"document_url": {},
	}); err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	documentURL, ok, err := parseRequiredString(args, "document_url")
	if err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}
	if !ok {
		return nil, "", &toolExecutionError{Code: "MISSING_FIELD", Message: "document_url is required"}
	}

	doc, data, toolErr := s.fetchDocument(ctx, documentURL)
	if toolErr != nil {
		return nil, "", toolErr
	}

	structured := map[string]interface{}{
		"metadata": map[string]interface{}{
			"provider":     providerName,
			"format":       doc.Format,
			"size_bytes":   doc.SizeBytes,
			"content_hash": doc.ContentHash,
		},
	}
	// page count needs extracted text; only compute it when that is cheap
	// (cached or non-OCR format)
	if doc.Format != "pdf" && doc.Format != "docx" {
		pages, pagesErr := s.docs.PageTexts(ctx, doc, data, model.PageFilter{})
		if pagesErr == nil {
			structured["structure"] = map[string]interface{}{
				"type":  "document",
				"pages": len(pages),
			}
		}
	}

	text := fmt.Sprintf("%s document, %d bytes", defaultIfEmpty(doc.Format, "unknown"), doc.SizeBytes)
	return structured, text, nil
}

func (s *Server) handleStats(ctx context.Context, args map[string]interface{}) (map[string]interface{}, string, *toolExecutionError) {
	if err := assertNoUnknownArguments(args, map[string]struct{}{}); err != nil {
		return nil, "", &toolExecutionError{Code: "INVALID_FIELD", Message: err.Error()}
	}

	caps := s.provider.Capabilities()
	structured := map[string]interface{}{
		"server": map[string]interface{}{
			"version":        s.version,
			"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		},
		"provider": map[string]interface{}{
			"name":    providerName,
			"enabled": s.cfg.Mistral.Enabled && strings.TrimSpace(s.cfg.Mistral.APIKey) != "",
			"formats": caps.Formats,
		},
		"models": map[string]interface{}{
			"chat":    s.resolvedChatModel(""),
			"summary": s.resolvedSummaryModel(""),
			"ocr":     defaultIfEmpty(s.cfg.Mistral.OCRModel, mistral.DefaultOCRModel),
		},
	}

	if s.store != nil {
		docs, pages, err := s.store.Stats(ctx)
		if err == nil {
			structured["cache"] = map[string]interface{}{
				"documents":  docs,
				"page_texts": pages,
			}
		} else if s.logger != nil {
			s.logger.Warn("cache stats unavailable", "error", err.Error())
		}
	}

	text := fmt.Sprintf("provider=%s chat_model=%s", providerName, s.resolvedChatModel(""))
	return structured, text, nil
}

// coerceArgument normalizes one structured argument in place. Failures keep
// the original value so the handler's own validation reports the error.
func (s *Server) coerceArgument(args map[string]interface{}, key string, shape docintel.Shape) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return
	}
	coercion := docintel.Coerce(raw, shape, s.logger, s.cfg.Limits.MaxExcerptChars)
	args[key] = coercion.Value
}

func (s *Server) requireProvider() *toolExecutionError {
	if !s.cfg.Mistral.Enabled {
		return &toolExecutionError{
			Code:       "PROVIDER_DISABLED",
			Message:    "Mistral provider not available",
			Suggestion: "Enable the Mistral provider with DOCSRAY_MISTRAL_ENABLED=true and provide an API key",
		}
	}
	if strings.TrimSpace(s.cfg.Mistral.APIKey) == "" {
		return &toolExecutionError{
			Code:       "CONFIG_INVALID",
			Message:    "Mistral API key not configured",
			Suggestion: "Set MISTRAL_API_KEY in the environment or run docsray config init",
		}
	}
	return nil
}

func (s *Server) fetchDocument(ctx context.Context, documentURL string) (model.Document, []byte, *toolExecutionError) {
	doc, data, err := s.docs.Fetch(ctx, documentURL)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrPathOutsideRoot):
			return model.Document{}, nil, &toolExecutionError{Code: "PATH_OUTSIDE_ROOT", Message: err.Error()}
		case errors.Is(err, model.ErrUnsupportedFormat):
			return model.Document{}, nil, &toolExecutionError{Code: "DOC_TYPE_UNSUPPORTED", Message: err.Error()}
		default:
			return model.Document{}, nil, &toolExecutionError{Code: "FETCH_FAILED", Message: err.Error()}
		}
	}

	if s.store != nil {
		if upErr := s.store.UpsertDocument(ctx, doc); upErr != nil && s.logger != nil {
			s.logger.Warn("document cache write failed", "error", upErr.Error())
		}
	}
	return doc, data, nil
}

func (s *Server) checkContextBudget(pages []model.PageText) *toolExecutionError {
	budget := s.cfg.Limits.MaxContextChars
	if budget <= 0 {
		return nil
	}
	total := 0
	for _, page := range pages {
		total += len([]rune(page.Text))
	}
	if total > budget {
		return &toolExecutionError{
			Code:    "INPUT_TOO_LARGE",
			Message: fmt.Sprintf("selected pages hold %d chars, limit is %d; narrow the page filter", total, budget),
		}
	}
	return nil
}

// mapToolErrorFromProvider converts downstream failures into sanitized tool
// errors. Raw provider detail goes to the log, not to the MCP client.
func (s *Server) mapToolErrorFromProvider(defaultCode string, err error) *toolExecutionError {
	if err == nil {
		return nil
	}
	var providerErr *model.ProviderError
	if errors.As(err, &providerErr) {
		msg := strings.TrimSpace(providerErr.Message)
		if msg == "" {
			msg = providerErr.Error()
		}
		return &toolExecutionError{
			Code:      defaultCode,
			Message:   msg,
			Retryable: providerErr.Retryable,
		}
	}
	if errors.Is(err, model.ErrProviderDisabled) {
		return &toolExecutionError{
			Code:       defaultCode,
			Message:    "Mistral provider not available",
			Suggestion: "Enable the Mistral provider and provide an API key",
		}
	}
	if s.logger != nil {
		s.logger.Error("tool error", "code", defaultCode, "error", err.Error())
	}
	return &toolExecutionError{
		Code:    defaultCode,
		Message: "internal server error",
	}
}

func (s *Server) resolvedChatModel(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if strings.TrimSpace(s.cfg.Mistral.ChatModel) != "" {
		return s.cfg.Mistral.ChatModel
	}
	return mistral.DefaultChatModel
}

func (s *Server) resolvedSummaryModel(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if strings.TrimSpace(s.cfg.Mistral.SummaryModel) != "" {
		return s.cfg.Mistral.SummaryModel
	}
	return mistral.DefaultSummaryModel
}

// --- argument parsing helpers ---

func assertNoUnknownArguments(args map[string]interface{}, allowed map[string]struct{}) error {
	for key := range args {
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("unknown argument: %s", key)
		}
	}
	return nil
}

func parseRequiredString(args map[string]interface{}, key string) (string, bool, error) {
	raw, ok := args[key]
	if !ok {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", true, fmt.Errorf("%s must be a string", key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", true, fmt.Errorf("%s must be a non-empty string", key)
	}
	return value, true, nil
}

func parseOptionalString(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(value), nil
}

func parseRequiredObject(args map[string]interface{}, key string) (map[string]interface{}, bool, error) {
	raw, ok := args[key]
	if !ok {
		return nil, false, nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, true, fmt.Errorf("%s must be an object", key)
	}
	return obj, true, nil
}

func parseRequiredStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%s is required", key)
	}

	typed, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
	if len(typed) == 0 {
		return nil, fmt.Errorf("%s must not be empty", key)
	}
	out := make([]string, 0, len(typed))
	for idx, item := range typed {
		v, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", key, idx)
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, fmt.Errorf("%s[%d] must be a non-empty string", key, idx)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInteger(value interface{}, field string) (int, error) {
	switch v := value.(type) {
	case float64:
		if math.Trunc(v) != v {
			return 0, fmt.Errorf("%s must be an integer", field)
		}
		if v < math.MinInt || v > math.MaxInt {
			return 0, fmt.Errorf("%s is out of range", field)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", field)
	}
}

func parsePageRange(args map[string]interface{}, key string) (*model.PageRange, error) {
	obj, present, err := parseRequiredObject(args, key)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}

	pr := &model.PageRange{}
	if raw, ok := obj["start"]; ok {
		pr.Start, err = parseInteger(raw, key+".start")
		if err != nil {
			return nil, err
		}
	}
	if raw, ok := obj["end"]; ok {
		pr.End, err = parseInteger(raw, key+".end")
		if err != nil {
			return nil, err
		}
	}
	if pr.Start < 0 || pr.End < 0 {
		return nil, fmt.Errorf("%s values must be >= 0", key)
	}
	if pr.Start > 0 && pr.End > 0 && pr.Start > pr.End {
		return nil, fmt.Errorf("%s.start must be <= %s.end", key, key)
	}
	return pr, nil
}

func parsePageFilter(args map[string]interface{}, key string) (model.PageFilter, error) {
	obj, present, err := parseRequiredObject(args, key)
	if err != nil {
		return model.PageFilter{}, err
	}
	if !present {
		return model.PageFilter{}, nil
	}

	filter := model.PageFilter{}
	if rawPages, ok := obj["pages"]; ok {
		list, ok := rawPages.([]interface{})
		if !ok {
			return model.PageFilter{}, fmt.Errorf("%s.pages must be an array of integers", key)
		}
		for idx, item := range list {
			page, err := parseInteger(item, fmt.Sprintf("%s.pages[%d]", key, idx))
			if err != nil {
				return model.PageFilter{}, err
			}
			filter.Pages = append(filter.Pages, page)
		}
	}
	if rawRange, ok := obj["range"]; ok {
		nested, ok := rawRange.(map[string]interface{})
		if !ok {
			return model.PageFilter{}, fmt.Errorf("%s.range must be an object", key)
		}
		wrapped := map[string]interface{}{"range": nested}
		pr, err := parsePageRange(wrapped, "range")
		if err != nil {
			return model.PageFilter{}, err
		}
		filter.Range = pr
	}
	return filter, nil
}

func parseFieldSchema(obj map[string]interface{}) (model.FieldSchema, error) {
	rawFields, ok := obj["fields"]
	if !ok {
		return model.FieldSchema{}, fmt.Errorf("schema.fields is required")
	}
	list, ok := rawFields.([]interface{})
	if !ok || len(list) == 0 {
		return model.FieldSchema{}, fmt.Errorf("schema.fields must be a non-empty array")
	}

	schema := model.FieldSchema{Fields: make([]model.FieldSpec, 0, len(list))}
	for idx, item := range list {
		spec, ok := item.(map[string]interface{})
		if !ok {
			return model.FieldSchema{}, fmt.Errorf("schema.fields[%d] must be an object", idx)
		}
		name, _ := spec["name"].(string)
		if strings.TrimSpace(name) == "" {
			return model.FieldSchema{}, fmt.Errorf("schema.fields[%d].name is required", idx)
		}
		fieldType, _ := spec["type"].(string)
		if strings.TrimSpace(fieldType) == "" {
			fieldType = "string"
		}
		pattern, _ := spec["pattern"].(string)
		schema.Fields = append(schema.Fields, model.FieldSpec{
			Name:    name,
			Type:    fieldType,
			Pattern: pattern,
		})
	}
	return schema, nil
}

func defaultIfEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// --- serialization helpers ---

func serializePageLabels(labels []model.PageLabel) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(labels))
	for _, l := range labels {
		out = append(out, map[string]interface{}{
			"page":       l.Page,
			"label":      l.Label,
			"confidence": l.Confidence,
		})
	}
	return out
}

func serializeFields(fields []model.ExtractedField) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(fields))
	for _, f := range fields {
		source := map[string]interface{}{"page": f.Source.Page}
		if f.Source.LineIdx != nil {
			source["lineIdx"] = *f.Source.LineIdx
		}
		out = append(out, map[string]interface{}{
			"name":       f.Name,
			"value":      f.Value,
			"confidence": f.Confidence,
			"source":     source,
		})
	}
	return out
}

func serializeSummaries(summaries []model.PageSummary) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, map[string]interface{}{
			"page":    s.Page,
			"summary": s.Summary,
		})
	}
	return out
}

// --- input schemas ---

func classifyInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"document_url": map[string]interface{}{
				"type":        "string",
				"description": "URL or root-relative path of the document",
			},
			"labels": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Valid classification labels; 'other' is always accepted as fallback",
			},
			"model": map[string]interface{}{
				"type":        "string",
				"description": "Mistral model override",
			},
			"page_range": pageRangeSchema(),
		},
		"required":             []interface{}{"document_url", "labels"},
		"additionalProperties": false,
	}
}

func extractInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"document_url": map[string]interface{}{
				"type": "string",
			},
			"schema": map[string]interface{}{
				"type":        "object",
				"description": "Field definitions: {fields: [{name, type, pattern?}]}",
			},
			"model": map[string]interface{}{
				"type": "string",
			},
			"page_filter": map[string]interface{}{
				"type":        "object",
				"description": "Either {pages: [int]} or {range: {start, end}}",
			},
		},
		"required":             []interface{}{"document_url", "schema"},
		"additionalProperties": false,
	}
}

func summarizeInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"document_url": map[string]interface{}{
				"type": "string",
			},
			"style": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"bullet", "paragraph", "executive"},
			},
			"page_range": pageRangeSchema(),
			"model": map[string]interface{}{
				"type": "string",
			},
			"max_tokens": map[string]interface{}{
				"type":    "integer",
				"minimum": 1,
				"maximum": 8192,
			},
		},
		"required":             []interface{}{"document_url"},
		"additionalProperties": false,
	}
}

func peekInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"document_url": map[string]interface{}{
				"type": "string",
			},
		},
		"required":             []interface{}{"document_url"},
		"additionalProperties": false,
	}
}

func statsInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"properties":           map[string]interface{}{},
		"additionalProperties": false,
	}
}

func pageRangeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"start": map[string]interface{}{"type": "integer", "minimum": 1},
			"end":   map[string]interface{}{"type": "integer", "minimum": 1},
		},
		"additionalProperties": false,
	}
}
