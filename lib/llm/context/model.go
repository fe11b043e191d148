// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import "github.com/bureau-foundation/beak/lib/llm"

// modelRegistry maps model identifiers to their context window sizes
// in tokens. Dated snapshots share the window of their base model.
var modelRegistry = map[string]int{
	llm.ModelGPT35Turbo:        4_097,
	llm.ModelGPT35Turbo0301:    4_097,
	llm.ModelGPT35Turbo0613:    4_097,
	llm.ModelGPT35Turbo16k:     16_385,
	llm.ModelGPT35Turbo16k0613: 16_385,
	llm.ModelGPT4:              8_192,
	llm.ModelGPT40314:          8_192,
	llm.ModelGPT40613:          8_192,
	llm.ModelGPT432k:           32_768,
	llm.ModelGPT432k0314:       32_768,
	llm.ModelGPT432k0613:       32_768,
}

// defaultContextWindow is used when a model is not in the registry.
// It is the smallest window of any supported model, so an unknown
// model is never promised more room than it has.
const defaultContextWindow = 4_097

// ContextWindowForModel returns the context window size in tokens for
// the given model identifier, or defaultContextWindow if the model is
// not in the registry.
func ContextWindowForModel(model string) int {
	if window, found := modelRegistry[model]; found {
		return window
	}
	return defaultContextWindow
}
