package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
)

// parsedCase is a generated item that passed schema validation.
// Grounding and ids are applied afterwards.
type parsedCase struct {
	Feature        string
	Scenario       string
	Steps          []string
	ExpectedResult string
	Type           domain.TestType
	Priority       domain.Priority
}

var (
	codeFence      = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z]*[ \t]*$")
	trailingComma  = regexp.MustCompile(`,\s*([\]}])`)
	missingComma   = regexp.MustCompile(`}\s*{`)
	stepSeparators = regexp.MustCompile(`[\n;>|]+`)
	stepNumbering  = regexp.MustCompile(`(?i)^(?:step\s*)?\d+\s*(?:[.):]|-\s)\s*`)
)

// parseTestCases decodes model output into validated items. Malformed items
// are dropped and reported as ParseErrors; the rest of the batch survives.
// Output with no recoverable JSON yields a single ParseError for item 0.
func parseTestCases(raw string) ([]parsedCase, []*domain.ParseError) {
	items, err := extractItems(raw)
	if err != nil {
		return nil, []*domain.ParseError{{Index: 0, Reason: err.Error()}}
	}

	var (
		cases    []parsedCase
		failures []*domain.ParseError
	)
	for i, item := range items {
		pc, perr := validateItem(i+1, item)
		if perr != nil {
			failures = append(failures, perr)
			continue
		}
		cases = append(cases, pc)
	}
	return cases, failures
}

// extractItems recovers the list of JSON items from model output.
// Undecodable salvaged objects are returned as nil entries so they are
// reported against their position.
func extractItems(raw string) ([]json.RawMessage, error) {
	text := raw
	if i := strings.Index(text, driven.StopToken); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(codeFence.ReplaceAllString(text, ""))
	if text == "" {
		return nil, fmt.Errorf("empty model output")
	}

	if items, ok := decodeItems(text); ok {
		return items, nil
	}

	if start := strings.IndexAny(text, "[{"); start >= 0 {
		// Try the text as a truncated payload first, then without trailing prose.
		candidates := []string{"[" + text[start:]}
		if text[start] == '[' {
			candidates[0] = text[start:]
			if end := strings.LastIndex(text, "]"); end > start {
				candidates = append(candidates, text[start:end+1])
			}
		}
		for _, candidate := range candidates {
			if items, ok := decodeItems(repairJSON(candidate)); ok {
				return items, nil
			}
		}
	}

	objects := topLevelObjects(text)
	if len(objects) == 0 {
		return nil, fmt.Errorf("no JSON array or object in model output")
	}
	items := make([]json.RawMessage, len(objects))
	for i, obj := range objects {
		fixed := repairJSON(obj)
		if json.Valid([]byte(fixed)) {
			items[i] = json.RawMessage(fixed)
		}
	}
	return items, nil
}

// decodeItems accepts an array of items, an object wrapping one under a
// "test_cases" key, or a single item object.
func decodeItems(text string) ([]json.RawMessage, bool) {
	var list []json.RawMessage
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	for _, key := range []string{"test_cases", "testCases", "cases"} {
		if inner, ok := obj[key]; ok {
			if err := json.Unmarshal(inner, &list); err == nil {
				return list, true
			}
		}
	}
	return []json.RawMessage{json.RawMessage(text)}, true
}

// repairJSON fixes the common defects of generated JSON: trailing commas,
// missing commas between adjacent objects, and unclosed brackets.
func repairJSON(text string) string {
	text = trailingComma.ReplaceAllString(text, "$1")
	text = missingComma.ReplaceAllString(text, "},{")

	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '[' || ch == '{':
			stack = append(stack, ch)
		case (ch == ']' || ch == '}') && len(stack) > 0:
			stack = stack[:len(stack)-1]
		}
	}

	var sb strings.Builder
	sb.WriteString(text)
	if inString {
		sb.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '[' {
			sb.WriteByte(']')
		} else {
			sb.WriteByte('}')
		}
	}
	return trailingComma.ReplaceAllString(sb.String(), "$1")
}

// topLevelObjects returns the balanced {...} spans at nesting depth zero.
// An unterminated final object is returned as-is for repair.
func topLevelObjects(text string) []string {
	var (
		out      []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case ch == '}' && depth > 0:
			depth--
			if depth == 0 {
				out = append(out, text[start:i+1])
				start = -1
			}
		}
	}
	if start >= 0 {
		out = append(out, text[start:])
	}
	return out
}

// validateItem checks one item against the test case schema.
func validateItem(index int, item json.RawMessage) (parsedCase, *domain.ParseError) {
	fail := func(field, reason string) (parsedCase, *domain.ParseError) {
		return parsedCase{}, &domain.ParseError{Index: index, Field: field, Reason: reason}
	}

	if item == nil {
		return fail("", "malformed JSON object")
	}
	var fields map[string]any
	if err := json.Unmarshal(item, &fields); err != nil {
		return fail("", "not a JSON object")
	}

	var pc parsedCase
	var ok bool

	if pc.Scenario, ok = textField(fields, "scenario", "test_scenario"); !ok {
		return fail("scenario", "required")
	}

	stepsVal, found := lookup(fields, "steps", "test_steps")
	if !found {
		return fail("steps", "required")
	}
	steps, err := normaliseSteps(stepsVal)
	if err != nil {
		return fail("steps", err.Error())
	}
	if len(steps) == 0 {
		return fail("steps", "empty")
	}
	pc.Steps = steps

	if pc.ExpectedResult, ok = textField(fields, "expected_result", "expected"); !ok {
		return fail("expected_result", "required")
	}

	pc.Type = domain.TestTypePositive
	if v, found := lookup(fields, "type", "test_type"); found {
		s, isString := v.(string)
		pc.Type = domain.TestType(strings.ToLower(strings.TrimSpace(s)))
		if !isString || !pc.Type.IsValid() {
			return fail("type", fmt.Sprintf("must be positive or negative, got %v", v))
		}
	}

	pc.Priority = domain.PriorityMedium
	if v, found := lookup(fields, "priority"); found {
		s, isString := v.(string)
		pc.Priority = domain.Priority(strings.ToLower(strings.TrimSpace(s)))
		if !isString || !pc.Priority.IsValid() {
			return fail("priority", fmt.Sprintf("must be high, medium or low, got %v", v))
		}
	}

	pc.Feature, _ = textField(fields, "feature")
	return pc, nil
}

// lookup returns the first present, non-null field among aliases.
func lookup(fields map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// textField returns a non-blank string field.
func textField(fields map[string]any, keys ...string) (string, bool) {
	v, ok := lookup(fields, keys...)
	if !ok {
		return "", false
	}
	s, isString := v.(string)
	s = strings.TrimSpace(s)
	return s, isString && s != ""
}

// normaliseSteps accepts a list of strings or one delimited string.
func normaliseSteps(v any) ([]string, error) {
	var raw []string
	switch steps := v.(type) {
	case string:
		raw = stepSeparators.Split(steps, -1)
	case []any:
		for i, s := range steps {
			switch step := s.(type) {
			case string:
				raw = append(raw, step)
			case float64:
				raw = append(raw, fmt.Sprint(step))
			default:
				return nil, fmt.Errorf("step %d is not text", i+1)
			}
		}
	default:
		return nil, fmt.Errorf("must be a list of strings")
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(stepNumbering.ReplaceAllString(strings.TrimSpace(s), ""))
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
