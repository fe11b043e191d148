// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"testing"

	"github.com/bureau-foundation/beak/lib/llm"
)

func TestCharEstimator_Text(t *testing.T) {
	t.Parallel()

	estimator := NewCharEstimator()
	tests := []struct {
		text     string
		expected int
	}{
		{"", 0},
		{"a", 1},
		{"abc", 1},
		{"abcd", 2},
		{"Hello world!", 4},
		{"Hallo welt!", 4},
		{"Hola mundo!", 4},
		// Counted in characters, not bytes.
		{"grüße", 2},
	}

	for _, test := range tests {
		if got := estimator.EstimateText(test.text); got != test.expected {
			t.Errorf("EstimateText(%q) = %d, want %d", test.text, got, test.expected)
		}
	}
}

func TestCharEstimator_CountTokens(t *testing.T) {
	t.Parallel()

	estimator := NewCharEstimator()

	if got := estimator.CountTokens(llm.Message{Role: llm.RoleUser, Content: "Hello world!"}); got != 4 {
		t.Errorf("CountTokens(text) = %d, want 4", got)
	}

	// {"name":"f","arguments":{}} is 27 characters.
	call := llm.Message{
		Role:         llm.RoleAssistant,
		FunctionCall: &llm.FunctionCall{Name: "f", Arguments: map[string]any{}},
	}
	if got := estimator.CountTokens(call); got != 9 {
		t.Errorf("CountTokens(function call) = %d, want 9", got)
	}

	if got := estimator.CountTokens(llm.Message{Role: llm.RoleAssistant}); got != 0 {
		t.Errorf("CountTokens(empty) = %d, want 0", got)
	}
}

func TestCharEstimator_CountFunctions(t *testing.T) {
	t.Parallel()

	estimator := NewCharEstimator()
	if got := estimator.CountFunctions(nil); got != 0 {
		t.Errorf("CountFunctions(nil) = %d, want 0", got)
	}

	one := estimator.CountFunctions([]llm.Function{{Name: "ping"}})
	two := estimator.CountFunctions([]llm.Function{
		{Name: "ping"},
		{Name: "sayHello", Parameters: map[string]llm.Parameter{"name": {Description: "Who to greet"}}},
	})
	if one <= 0 {
		t.Errorf("CountFunctions(one) = %d, want > 0", one)
	}
	if two <= one {
		t.Errorf("CountFunctions(two) = %d, want more than one function's %d", two, one)
	}
}
