package text

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/MrWong99/reelforge/pkg/fault"
)

// strictSuffix is appended to the prompt on the re-ask after a schema
// mismatch. Models that wrapped the JSON in prose or drifted from the schema
// usually comply on the second attempt.
const strictSuffix = "\n\nReturn ONLY a single valid JSON object matching the schema exactly. No prose, no markdown fences, no comments."

// GenerateStructured asks p for a JSON document conforming to schema and
// unmarshals it into v. It is the Go analogue of a default interface method:
// it wraps [Provider.Generate] with a JSON response-format hint, extracts the
// JSON payload from the raw output, and validates it against schema with
// gojsonschema.
//
// A schema mismatch on the first attempt triggers exactly one immediate
// re-ask with stricter instructions; a mismatch on the second attempt is
// final and the returned error wraps [fault.ErrSchemaMismatch]. Provider
// failures (transient errors, refusals) are returned as-is without a re-ask
// so the fallback orchestrator can classify them.
func GenerateStructured(ctx context.Context, p Provider, prompt string, schema []byte, v any) error {
	schemaLoader := gojsonschema.NewBytesLoader(schema)

	req := Request{
		Prompt:         prompt,
		ResponseFormat: FormatJSON,
	}

	raw, err := generateJSON(ctx, p, req, schemaLoader)
	if err == nil {
		return json.Unmarshal(raw, v)
	}
	if !errors.Is(err, fault.ErrSchemaMismatch) {
		return err
	}

	// One stricter re-ask. Any further mismatch is final.
	req.Prompt = prompt + strictSuffix
	req.Temperature = 0
	raw, err = generateJSON(ctx, p, req, schemaLoader)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// generateJSON performs one generation round-trip and returns the validated
// JSON payload bytes. Extraction and validation failures wrap
// [fault.ErrSchemaMismatch]; provider errors pass through unchanged.
func generateJSON(ctx context.Context, p Provider, req Request, schemaLoader gojsonschema.JSONLoader) ([]byte, error) {
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	raw := ExtractJSON(resp.Text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object found in response", fault.ErrSchemaMismatch)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrSchemaMismatch, err)
	}
	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			descs = append(descs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", fault.ErrSchemaMismatch, strings.Join(descs, "; "))
	}
	return []byte(raw), nil
}

// ExtractJSON returns the outermost JSON object embedded in s, stripping
// markdown code fences and surrounding prose. Returns the empty string when
// no balanced object is present. Models frequently wrap JSON output in
// ```json fences or explanatory sentences; callers should never assume a
// bare document.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Strip markdown fences first so brace scanning sees only the payload.
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		} else {
			s = rest
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
