// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"testing"

	"github.com/bureau-foundation/beak/lib/llm"
)

func TestContextWindowForModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  int
	}{
		{llm.ModelGPT35Turbo, 4_097},
		{llm.ModelGPT35Turbo0613, 4_097},
		{llm.ModelGPT35Turbo16k0613, 16_385},
		{llm.ModelGPT4, 8_192},
		{llm.ModelGPT40613, 8_192},
		{llm.ModelGPT432k0314, 32_768},
		// Unknown models get the smallest supported window.
		{"gpt-5-preview", defaultContextWindow},
		{"", defaultContextWindow},
	}
	for _, test := range tests {
		if got := ContextWindowForModel(test.model); got != test.want {
			t.Errorf("ContextWindowForModel(%q) = %d, want %d", test.model, got, test.want)
		}
	}
}
