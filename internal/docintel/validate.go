package docintel

import (
	"encoding/json"
	"log/slog"
	"math"
	"strings"

	"docsray/internal/model"
)

// MaxDiagnosticChars bounds how much raw provider output is quoted in
// diagnostics. Keeping the bound explicit is a safety property: a pathological
// response must not balloon memory or log volume.
const MaxDiagnosticChars = 500

// FallbackLabel is always accepted during classification validation even when
// absent from the caller's label set; prompts instruct the model to use it for
// unclassifiable pages.
const FallbackLabel = "other"

// Verdict is the terminal state of validating one provider response.
type Verdict int

const (
	// VerdictOK means the payload decoded and per-item validation ran.
	VerdictOK Verdict = iota
	// VerdictEmpty means the provider returned no choices or no content.
	VerdictEmpty
	// VerdictMalformed means content was present but not a JSON object.
	VerdictMalformed
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictEmpty:
		return "empty"
	case VerdictMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ClassificationOutcome is the validated result of a classify call. Labels
// holds accepted items in input order; Skipped counts rejected candidates.
type ClassificationOutcome struct {
	Labels  []model.PageLabel
	Skipped int
	Verdict Verdict
}

// ExtractionOutcome is the validated result of an extract call.
type ExtractionOutcome struct {
	Fields  []model.ExtractedField
	Errors  []string
	Skipped int
	Verdict Verdict
}

// ParseClassification validates a raw classification payload against the
// caller's label set. It never returns an error: empty or malformed payloads
// degrade to an empty outcome with the verdict set, and individual bad items
// are dropped and counted. Accepted items keep input order; duplicates are
// not collapsed. bound caps the raw text quoted in diagnostics; zero or
// negative uses MaxDiagnosticChars.
func ParseClassification(raw string, labels []string, logger *slog.Logger, bound int) ClassificationOutcome {
	if bound <= 0 {
		bound = MaxDiagnosticChars
	}
	out := ClassificationOutcome{Labels: []model.PageLabel{}}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		out.Verdict = VerdictEmpty
		if logger != nil {
			logger.Warn("classification response empty")
		}
		return out
	}

	items, ok := decodeLabelItems(trimmed)
	if !ok {
		out.Verdict = VerdictMalformed
		if logger != nil {
			logger.Error("classification response not valid JSON",
				"raw", boundExcerpt(trimmed, bound))
		}
		return out
	}

	allowed := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		allowed[l] = struct{}{}
	}

	for _, candidate := range items {
		item, ok := candidate.(map[string]interface{})
		if !ok {
			out.Skipped++
			logSkip(logger, "classification item is not an object", candidate, bound)
			continue
		}
		page, ok := intField(item, "page")
		if !ok {
			out.Skipped++
			logSkip(logger, "classification item missing page", candidate, bound)
			continue
		}
		label, ok := item["label"].(string)
		if !ok {
			out.Skipped++
			logSkip(logger, "classification item missing label", candidate, bound)
			continue
		}
		if _, known := allowed[label]; !known && label != FallbackLabel {
			out.Skipped++
			if logger != nil {
				logger.Warn("classification label outside caller set", "label", label, "page", page)
			}
			continue
		}
		confidence, ok := floatField(item, "confidence")
		if !ok || confidence < 0.0 || confidence > 1.0 {
			out.Skipped++
			if logger != nil {
				logger.Warn("classification confidence out of range", "page", page, "label", label)
			}
			continue
		}

		out.Labels = append(out.Labels, model.PageLabel{
			Page:       page,
			Label:      label,
			Confidence: confidence,
		})
	}

	out.Verdict = VerdictOK
	return out
}

// ParseExtraction validates a raw extraction payload. The contract is an
// object wrapper {"fields": [...], "errors": [...]}; model-reported errors
// are passed through, validation rejections are counted in Skipped. Items
// failing any check are dropped whole, never partially included. bound caps
// the raw text quoted in diagnostics; zero or negative uses
// MaxDiagnosticChars.
func ParseExtraction(raw string, logger *slog.Logger, bound int) ExtractionOutcome {
	if bound <= 0 {
		bound = MaxDiagnosticChars
	}
	out := ExtractionOutcome{Fields: []model.ExtractedField{}, Errors: []string{}}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		out.Verdict = VerdictEmpty
		if logger != nil {
			logger.Warn("extraction response empty")
		}
		return out
	}

	var wrapper map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil || wrapper == nil {
		out.Verdict = VerdictMalformed
		out.Errors = append(out.Errors, "provider returned invalid JSON")
		if logger != nil {
			logger.Error("extraction response not a JSON object",
				"raw", boundExcerpt(trimmed, bound))
		}
		return out
	}

	if reported, ok := wrapper["errors"].([]interface{}); ok {
		for _, e := range reported {
			if msg, ok := e.(string); ok && strings.TrimSpace(msg) != "" {
				out.Errors = append(out.Errors, msg)
			}
		}
	}

	fields, _ := wrapper["fields"].([]interface{})
	for _, candidate := range fields {
		item, ok := candidate.(map[string]interface{})
		if !ok {
			out.Skipped++
			logSkip(logger, "extraction item is not an object", candidate, bound)
			continue
		}
		name, ok := item["name"].(string)
		if !ok || strings.TrimSpace(name) == "" {
			out.Skipped++
			logSkip(logger, "extraction item missing name", candidate, bound)
			continue
		}
		value, hasValue := item["value"]
		if !hasValue {
			out.Skipped++
			logSkip(logger, "extraction item missing value", candidate, bound)
			continue
		}
		confidence, ok := floatField(item, "confidence")
		if !ok || confidence < 0.0 || confidence > 1.0 {
			out.Skipped++
			if logger != nil {
				logger.Warn("extraction confidence out of range", "name", name)
			}
			continue
		}
		source, ok := item["source"].(map[string]interface{})
		if !ok {
			out.Skipped++
			logSkip(logger, "extraction item missing source", candidate, bound)
			continue
		}
		page, ok := intField(source, "page")
		if !ok {
			out.Skipped++
			logSkip(logger, "extraction source missing page", candidate, bound)
			continue
		}

		field := model.ExtractedField{
			Name:       name,
			Value:      value,
			Confidence: confidence,
			Source:     model.FieldSource{Page: page},
		}
		if lineIdx, ok := intField(source, "lineIdx"); ok {
			field.Source.LineIdx = &lineIdx
		}
		out.Fields = append(out.Fields, field)
	}

	out.Verdict = VerdictOK
	return out
}

// decodeLabelItems accepts both the requested {"labels":[...]} wrapper and a
// bare top-level array, which older prompts produced.
func decodeLabelItems(raw string) ([]interface{}, bool) {
	var wrapper map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &wrapper); err == nil && wrapper != nil {
		if items, ok := wrapper["labels"].([]interface{}); ok {
			return items, true
		}
		// an object without a labels array means zero items, not malformed
		return nil, true
	}
	var items []interface{}
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		return items, true
	}
	return nil, false
}

func intField(m map[string]interface{}, key string) (int, bool) {
	raw, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := raw.(float64)
	if !ok || math.Trunc(f) != f {
		return 0, false
	}
	return int(f), true
}

func floatField(m map[string]interface{}, key string) (float64, bool) {
	raw, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := raw.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func logSkip(logger *slog.Logger, reason string, candidate interface{}, bound int) {
	if logger == nil {
		return
	}
	encoded, err := json.Marshal(candidate)
	if err != nil {
		encoded = []byte("?")
	}
	logger.Warn(reason, "item", boundExcerpt(string(encoded), bound))
}
