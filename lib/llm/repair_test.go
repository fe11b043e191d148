// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRepairArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{"empty", "", map[string]any{}},
		{"whitespace only", "   ", map[string]any{}},
		{"complete", `{"name":"world"}`, map[string]any{"name": "world"}},
		{"padded", "  {\"name\":\"world\"}\n", map[string]any{"name": "world"}},
		{"missing braces", `"name":"world"`, map[string]any{"name": "world"}},
		{"missing closing brace", `{"name":"world"`, map[string]any{"name": "world"}},
		{"dangling colon", `{"name":`, map[string]any{"name": nil}},
		{"trailing comma", `{"a":1,`, map[string]any{"a": float64(1)}},
		{"open array", `{"items":[1,2,`, map[string]any{"items": []any{float64(1), float64(2)}}},
		{"nested objects", `{"a":{"b":{"c":true`, map[string]any{"a": map[string]any{"b": map[string]any{"c": true}}}},
		{"escaped quote in open string", `{"q":"say \"hi\"`, map[string]any{"q": `say "hi"`}},
		{"unmatched closer", `{"a":1]}`, map[string]any{"a": float64(1)}},
		{"bare keys", `{a: 1, b: "x"}`, map[string]any{"a": float64(1), "b": "x"}},
		{"raw newline in string", "{\"a\": \"line1\nline2\"}", map[string]any{"a": "line1\nline2"}},
		{"single quotes", `{'a': 1}`, map[string]any{"a": float64(1)}},
		{"python constants", `{"a": True, "b": None}`, map[string]any{"a": true, "b": nil}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			repaired, err := RepairArguments(test.input)
			if err != nil {
				t.Fatalf("RepairArguments(%q) error: %v", test.input, err)
			}
			var got map[string]any
			if err := json.Unmarshal([]byte(repaired), &got); err != nil {
				t.Fatalf("repaired text %q is not a JSON object: %v", repaired, err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("RepairArguments(%q) = %s, want %v", test.input, repaired, test.want)
			}
		})
	}
}

func TestRepairArgumentsTrailingBackslash(t *testing.T) {
	t.Parallel()

	// A stream cut right after an escape character.
	repaired, err := RepairArguments(`{"a":"x\`)
	if err != nil {
		t.Fatalf("RepairArguments error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(repaired), &got); err != nil {
		t.Fatalf("repaired text %q is not a JSON object: %v", repaired, err)
	}
	if _, ok := got["a"].(string); !ok {
		t.Errorf("repaired %s, want a string value for a", repaired)
	}
}

func TestRepairArgumentsUnrepairable(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		`{:2}`,
		`{"a":2}{}`,
		`{"a" ]`,
	} {
		if repaired, err := RepairArguments(input); err == nil {
			t.Errorf("RepairArguments(%q) = %q, want error", input, repaired)
		}
	}
}
