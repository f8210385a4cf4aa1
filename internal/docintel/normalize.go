package docintel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Shape declares the structure a tool argument is expected to carry. It is
// resolved at the call site rather than inferred from the value, so handlers
// state their contract explicitly.
type Shape int

const (
	// ShapeMapping expects a JSON object / map[string]interface{}.
	ShapeMapping Shape = iota
	// ShapeSequence expects a JSON array / []interface{}.
	ShapeSequence
)

func (s Shape) String() string {
	switch s {
	case ShapeMapping:
		return "mapping"
	case ShapeSequence:
		return "sequence"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Coercion is the inspectable outcome of one normalization attempt. Value is
// always usable: either the decoded structure or the original input. Coerced
// is true only when a string was successfully decoded into the expected
// shape. Err records a decode failure without making the attempt fatal.
type Coercion struct {
	Value   interface{}
	Coerced bool
	Err     error
}

// Coerce normalizes one tool argument against its expected shape.
//
// Some MCP clients serialize structured arguments a second time, so a
// mapping/sequence parameter can arrive as its JSON text instead of the
// structure itself. Coerce undoes exactly that double encoding and nothing
// else: a value already of the expected shape passes through unchanged, a
// string that decodes to the expected shape is replaced by the decoded value,
// and everything else (including undecodable strings) is returned verbatim so
// the handler's own argument validation produces the user-visible error.
// Coerce never panics and never mutates its input. bound caps the input
// excerpt quoted in diagnostics; zero or negative uses MaxDiagnosticChars.
func Coerce(value interface{}, shape Shape, logger *slog.Logger, bound int) Coercion {
	if bound <= 0 {
		bound = MaxDiagnosticChars
	}
	switch shape {
	case ShapeMapping:
		if _, ok := value.(map[string]interface{}); ok {
			return Coercion{Value: value}
		}
	case ShapeSequence:
		if _, ok := value.([]interface{}); ok {
			return Coercion{Value: value}
		}
	}

	text, ok := value.(string)
	if !ok {
		return Coercion{Value: value}
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		if logger != nil {
			logger.Warn("argument coercion failed",
				"expected", shape.String(),
				"error", err.Error(),
				"value", boundExcerpt(text, bound))
		}
		return Coercion{Value: value, Err: fmt.Errorf("decode %s argument: %w", shape, err)}
	}

	switch shape {
	case ShapeMapping:
		if m, ok := decoded.(map[string]interface{}); ok {
			return Coercion{Value: m, Coerced: true}
		}
	case ShapeSequence:
		if l, ok := decoded.([]interface{}); ok {
			return Coercion{Value: l, Coerced: true}
		}
	}

	// valid JSON of the wrong shape; keep the original text and let the
	// handler's validation reject it
	if logger != nil {
		logger.Warn("argument coercion produced wrong shape",
			"expected", shape.String(),
			"value", boundExcerpt(text, bound))
	}
	return Coercion{Value: value, Err: fmt.Errorf("decoded value is not a %s", shape)}
}

// boundExcerpt truncates diagnostic payloads so pathological provider or
// client input cannot grow logs without bound.
func boundExcerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
