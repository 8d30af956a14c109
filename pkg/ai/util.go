package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/bio-nexus/backend/pkg/common"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// GenerateSchema creates a JSON Schema from the given Go type.
// It uses reflection to inspect the type structure and generates
// a schema suitable for use with AI structured output.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// UnmarshalFlexible attempts to unmarshal JSON into the target with multiple fallback strategies.
// It first tries standard JSON unmarshaling, then handles double-encoded JSON strings,
// and finally attempts to repair malformed JSON before parsing.
//
// Model output wrapped in a markdown code fence is unwrapped first.
func UnmarshalFlexible(input string, out any) error {
	input = stripCodeFence(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w", err)
	}

	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal failed after repair: %w", err)
	}
	return nil
}

// DecodeStructured decodes a structured response for the named stage.
// Empty or undecodable text yields a *common.ParseError holding raw.
func DecodeStructured(stage string, raw string, out any) error {
	if strings.TrimSpace(raw) == "" {
		return &common.ParseError{Stage: stage, Raw: raw, Err: fmt.Errorf("empty response")}
	}
	if err := UnmarshalFlexible(raw, out); err != nil {
		return &common.ParseError{Stage: stage, Raw: raw, Err: err}
	}
	return nil
}

// ErrDimensionMismatch marks a provider vector whose size differs from the
// configured embedding dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ToDimension converts vec to float32 and checks it has exactly dim entries.
func ToDimension[T float32 | float64](vec []T, dim int) ([]float32, error) {
	if len(vec) != dim {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), dim)
	}
	out := make([]float32, dim)
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out, nil
}
