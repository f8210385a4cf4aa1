package docintel

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"docsray/internal/log"
)

func TestCoerce_MappingPassThrough(t *testing.T) {
	in := map[string]any{"start": 1.0, "end": 5.0}
	got := Coerce(in, ShapeMapping, log.Discard(), 0)
	if got.Err != nil {
		t.Fatalf("unexpected error: %v", got.Err)
	}
	if got.Coerced {
		t.Fatalf("pass-through must not report coercion")
	}
	if !reflect.DeepEqual(got.Value, in) {
		t.Fatalf("value changed on pass-through: %#v", got.Value)
	}
}

func TestCoerce_SequencePassThrough(t *testing.T) {
	in := []any{"invoice", "report"}
	got := Coerce(in, ShapeSequence, log.Discard(), 0)
	if got.Err != nil || got.Coerced {
		t.Fatalf("pass-through altered: coerced=%v err=%v", got.Coerced, got.Err)
	}
}

func TestCoerce_DecodesStringifiedMapping(t *testing.T) {
	got := Coerce(`{"start": 1, "end": 5}`, ShapeMapping, log.Discard(), 0)
	if got.Err != nil {
		t.Fatalf("unexpected error: %v", got.Err)
	}
	if !got.Coerced {
		t.Fatalf("expected coercion flag")
	}
	m, ok := got.Value.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got.Value)
	}
	if m["start"] != 1.0 || m["end"] != 5.0 {
		t.Fatalf("unexpected decoded values: %#v", m)
	}
}

func TestCoerce_DecodesStringifiedSequence(t *testing.T) {
	got := Coerce(`["a", "b"]`, ShapeSequence, log.Discard(), 0)
	if got.Err != nil || !got.Coerced {
		t.Fatalf("decode failed: coerced=%v err=%v", got.Coerced, got.Err)
	}
	list, ok := got.Value.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected 2-element slice, got %#v", got.Value)
	}
}

func TestCoerce_InvalidJSONKeepsOriginal(t *testing.T) {
	in := `{not json`
	got := Coerce(in, ShapeMapping, log.Discard(), 0)
	if got.Err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
	if got.Value != in {
		t.Fatalf("original value must be preserved, got %#v", got.Value)
	}
	if got.Coerced {
		t.Fatalf("failed decode must not report coercion")
	}
}

func TestCoerce_WrongDecodedShapeKeepsOriginal(t *testing.T) {
	// valid JSON but an array where a mapping was requested
	in := `["a", "b"]`
	got := Coerce(in, ShapeMapping, log.Discard(), 0)
	if got.Err == nil {
		t.Fatalf("expected shape mismatch error")
	}
	if got.Value != in {
		t.Fatalf("original value must be preserved, got %#v", got.Value)
	}
}

func TestCoerce_NonStringPassesThroughUntouched(t *testing.T) {
	// only strings are candidates for decoding; anything else is left for
	// the handler's own validation to reject
	got := Coerce(42.0, ShapeSequence, log.Discard(), 0)
	if got.Err != nil {
		t.Fatalf("unexpected error: %v", got.Err)
	}
	if got.Value != 42.0 || got.Coerced {
		t.Fatalf("non-string value altered: %#v coerced=%v", got.Value, got.Coerced)
	}
}

func TestCoerce_ConfiguredBoundTruncatesDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, "warn")

	in := "{broken " + strings.Repeat("z", 100)
	got := Coerce(in, ShapeMapping, logger, 16)
	if got.Err == nil {
		t.Fatalf("undecodable string must report an error")
	}

	logged := buf.String()
	if !strings.Contains(logged, "{broken zzzzzzzz") {
		t.Fatalf("log missing truncated excerpt: %s", logged)
	}
	if strings.Contains(logged, strings.Repeat("z", 20)) {
		t.Fatalf("excerpt exceeds configured bound: %s", logged)
	}
}

func TestCoerce_NeverMutatesInput(t *testing.T) {
	in := map[string]any{"pages": []any{1.0, 2.0}}
	_ = Coerce(in, ShapeSequence, log.Discard(), 0)
	if len(in) != 1 {
		t.Fatalf("input mutated: %#v", in)
	}
}
