package docintel

import (
	"bytes"
	"strings"
	"testing"

	"docsray/internal/log"
)

func TestParseClassification_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		out := ParseClassification(raw, []string{"invoice"}, log.Discard(), 0)
		if out.Verdict != VerdictEmpty {
			t.Fatalf("raw %q: verdict = %s, want empty", raw, out.Verdict)
		}
		if len(out.Labels) != 0 || out.Skipped != 0 {
			t.Fatalf("raw %q: expected empty outcome, got %+v", raw, out)
		}
	}
}

func TestParseClassification_Malformed(t *testing.T) {
	out := ParseClassification("{not json", []string{"invoice"}, log.Discard(), 0)
	if out.Verdict != VerdictMalformed {
		t.Fatalf("verdict = %s, want malformed", out.Verdict)
	}
	if len(out.Labels) != 0 {
		t.Fatalf("malformed payload must produce no labels")
	}
}

func TestParseClassification_AcceptsValidItem(t *testing.T) {
	raw := `{"labels": [{"page": 1, "label": "invoice", "confidence": 0.9}]}`
	out := ParseClassification(raw, []string{"invoice", "report"}, log.Discard(), 0)
	if out.Verdict != VerdictOK {
		t.Fatalf("verdict = %s, want ok", out.Verdict)
	}
	if len(out.Labels) != 1 || out.Skipped != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	got := out.Labels[0]
	if got.Page != 1 || got.Label != "invoice" || got.Confidence != 0.9 {
		t.Fatalf("unexpected label: %+v", got)
	}
}

func TestParseClassification_ConfidenceOutOfRange(t *testing.T) {
	raw := `{"labels": [{"page": 1, "label": "invoice", "confidence": 1.5}]}`
	out := ParseClassification(raw, []string{"invoice"}, log.Discard(), 0)
	if len(out.Labels) != 0 || out.Skipped != 1 {
		t.Fatalf("expected 0 accepted / 1 skipped, got %d/%d", len(out.Labels), out.Skipped)
	}
	if out.Verdict != VerdictOK {
		t.Fatalf("item-level rejection keeps verdict ok, got %s", out.Verdict)
	}
}

func TestParseClassification_UnknownLabelSkipped(t *testing.T) {
	raw := `{"labels": [
		{"page": 1, "label": "unknown_type", "confidence": 0.8},
		{"page": 2, "label": "other", "confidence": 0.5}
	]}`
	out := ParseClassification(raw, []string{"invoice"}, log.Discard(), 0)
	if out.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", out.Skipped)
	}
	// "other" is always accepted even when absent from the label set
	if len(out.Labels) != 1 || out.Labels[0].Label != FallbackLabel {
		t.Fatalf("fallback label not accepted: %+v", out.Labels)
	}
}

func TestParseClassification_BareArrayAccepted(t *testing.T) {
	raw := `[{"page": 3, "label": "report", "confidence": 1.0}]`
	out := ParseClassification(raw, []string{"report"}, log.Discard(), 0)
	if out.Verdict != VerdictOK || len(out.Labels) != 1 {
		t.Fatalf("bare array rejected: %+v", out)
	}
}

func TestParseClassification_PreservesOrderAndDuplicates(t *testing.T) {
	raw := `{"labels": [
		{"page": 2, "label": "invoice", "confidence": 0.7},
		{"page": 1, "label": "invoice", "confidence": 0.6},
		{"page": 2, "label": "invoice", "confidence": 0.9}
	]}`
	out := ParseClassification(raw, []string{"invoice"}, log.Discard(), 0)
	if len(out.Labels) != 3 {
		t.Fatalf("duplicates must not collapse, got %d labels", len(out.Labels))
	}
	if out.Labels[0].Page != 2 || out.Labels[1].Page != 1 || out.Labels[2].Page != 2 {
		t.Fatalf("input order not preserved: %+v", out.Labels)
	}
}

func TestParseClassification_NonIntegralPageSkipped(t *testing.T) {
	raw := `{"labels": [{"page": 1.5, "label": "invoice", "confidence": 0.9}]}`
	out := ParseClassification(raw, []string{"invoice"}, log.Discard(), 0)
	if len(out.Labels) != 0 || out.Skipped != 1 {
		t.Fatalf("non-integral page accepted: %+v", out)
	}
}

func TestParseClassification_ObjectWithoutLabelsIsZeroItems(t *testing.T) {
	out := ParseClassification(`{"result": "none"}`, []string{"invoice"}, log.Discard(), 0)
	if out.Verdict != VerdictOK || len(out.Labels) != 0 || out.Skipped != 0 {
		t.Fatalf("object without labels should be zero items: %+v", out)
	}
}

func TestParseExtraction_Empty(t *testing.T) {
	out := ParseExtraction("  ", log.Discard(), 0)
	if out.Verdict != VerdictEmpty || len(out.Fields) != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestParseExtraction_MalformedRecordsError(t *testing.T) {
	out := ParseExtraction("not json at all", log.Discard(), 0)
	if out.Verdict != VerdictMalformed {
		t.Fatalf("verdict = %s, want malformed", out.Verdict)
	}
	if len(out.Errors) != 1 || !strings.Contains(out.Errors[0], "invalid JSON") {
		t.Fatalf("expected invalid JSON error, got %v", out.Errors)
	}
}

func TestParseExtraction_AcceptsValidField(t *testing.T) {
	raw := `{"fields": [
		{"name": "total", "value": 1234.56, "confidence": 0.95, "source": {"page": 2, "lineIdx": 14}}
	], "errors": []}`
	out := ParseExtraction(raw, log.Discard(), 0)
	if out.Verdict != VerdictOK || len(out.Fields) != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	f := out.Fields[0]
	if f.Name != "total" || f.Confidence != 0.95 || f.Source.Page != 2 {
		t.Fatalf("unexpected field: %+v", f)
	}
	if f.Source.LineIdx == nil || *f.Source.LineIdx != 14 {
		t.Fatalf("lineIdx not carried: %+v", f.Source)
	}
}

func TestParseExtraction_LineIdxOptional(t *testing.T) {
	raw := `{"fields": [{"name": "vendor", "value": "Acme", "confidence": 0.8, "source": {"page": 1}}]}`
	out := ParseExtraction(raw, log.Discard(), 0)
	if len(out.Fields) != 1 {
		t.Fatalf("field rejected: %+v", out)
	}
	if out.Fields[0].Source.LineIdx != nil {
		t.Fatalf("lineIdx should be nil when absent")
	}
}

func TestParseExtraction_DropsInvalidItemsWhole(t *testing.T) {
	raw := `{"fields": [
		{"name": "ok", "value": "v", "confidence": 0.5, "source": {"page": 1}},
		{"name": "", "value": "v", "confidence": 0.5, "source": {"page": 1}},
		{"name": "no_value", "confidence": 0.5, "source": {"page": 1}},
		{"name": "bad_conf", "value": "v", "confidence": 2.0, "source": {"page": 1}},
		{"name": "no_source", "value": "v", "confidence": 0.5}
	]}`
	out := ParseExtraction(raw, log.Discard(), 0)
	if len(out.Fields) != 1 || out.Fields[0].Name != "ok" {
		t.Fatalf("expected only the valid field, got %+v", out.Fields)
	}
	if out.Skipped != 4 {
		t.Fatalf("skipped = %d, want 4", out.Skipped)
	}
}

func TestParseExtraction_PassesThroughModelErrors(t *testing.T) {
	raw := `{"fields": [], "errors": ["field total not found", "  "]}`
	out := ParseExtraction(raw, log.Discard(), 0)
	if len(out.Errors) != 1 || out.Errors[0] != "field total not found" {
		t.Fatalf("unexpected errors: %v", out.Errors)
	}
}

func TestParseClassification_ConfiguredBoundTruncatesDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, "error")

	raw := "{not json " + strings.Repeat("x", 200)
	out := ParseClassification(raw, []string{"invoice"}, logger, 20)
	if out.Verdict != VerdictMalformed {
		t.Fatalf("verdict = %s, want malformed", out.Verdict)
	}

	logged := buf.String()
	if !strings.Contains(logged, "{not json xxxxxxxxxx") {
		t.Fatalf("log missing truncated excerpt: %s", logged)
	}
	if strings.Contains(logged, strings.Repeat("x", 30)) {
		t.Fatalf("excerpt exceeds configured bound: %s", logged)
	}
}

func TestParseExtraction_ZeroBoundUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, "error")

	raw := "not json " + strings.Repeat("y", MaxDiagnosticChars+100)
	out := ParseExtraction(raw, logger, 0)
	if out.Verdict != VerdictMalformed {
		t.Fatalf("verdict = %s, want malformed", out.Verdict)
	}
	if strings.Contains(buf.String(), strings.Repeat("y", MaxDiagnosticChars)) {
		t.Fatalf("excerpt exceeds default bound: %s", buf.String())
	}
}

func TestBoundExcerpt(t *testing.T) {
	long := strings.Repeat("x", MaxDiagnosticChars+100)
	got := boundExcerpt(long, MaxDiagnosticChars)
	if len(got) != MaxDiagnosticChars {
		t.Fatalf("excerpt length = %d, want %d", len(got), MaxDiagnosticChars)
	}
	if boundExcerpt("short", MaxDiagnosticChars) != "short" {
		t.Fatalf("short input must pass through")
	}
}
