package docintel

import (
	"fmt"
	"strings"

	"docsray/internal/model"
)

func buildClassificationPrompt(labels []string) string {
	return fmt.Sprintf(`You are analyzing a company's annual report. Below is a JSON list of pages with page numbers and text samples. Classify each page into one of these categories: %s.

Return a single JSON object with this exact format:
{"labels": [{"page": int, "label": string, "confidence": float}]}

Rules:
- Do not include EBITDA reconciliation pages under income_statement
- Multi-page sections should have the same label across consecutive pages
- Use "%s" for unclassifiable pages
- Confidence must be between 0.0 and 1.0
- Return only the JSON object, no markdown, no prose`, strings.Join(labels, ", "), FallbackLabel)
}

func buildExtractionPrompt(schema model.FieldSchema) string {
	var fields strings.Builder
	for _, f := range schema.Fields {
		pattern := f.Pattern
		if pattern == "" {
			pattern = "any"
		}
		fmt.Fprintf(&fields, "- %s (type: %s, pattern: %s)\n", f.Name, f.Type, pattern)
	}

	return fmt.Sprintf(`Extract the following fields from financial statement text:
%s
Return a single JSON object with this exact format:
{"fields": [{"name": string, "value": typed_value, "confidence": float, "source": {"page": int, "lineIdx": int?}}], "errors": [string]}

Rules:
- Return null for missing field values
- Include a confidence score (0.0-1.0) for every field
- Preserve data types (numbers as numbers, dates as ISO strings)
- Record the source page and line index when possible
- Return only the JSON object, no markdown, no prose`, fields.String())
}

var summaryStyles = map[string]string{
	"bullet":    "Create a concise bullet-point summary (3-5 points).",
	"paragraph": "Write a single paragraph summary (3-4 sentences).",
	"executive": "Provide an executive summary highlighting key insights.",
}

func buildSummaryPrompt(style string) string {
	instruction, ok := summaryStyles[style]
	if !ok {
		instruction = summaryStyles["bullet"]
	}
	return fmt.Sprintf(`Summarize the following page content.
%s

Focus on factual information and key data points. Avoid speculation.`, instruction)
}
