// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/bureau-foundation/beak/lib/llm"
)

// TokenCounter prices a single message against the prompt budget.
type TokenCounter interface {
	CountTokens(message llm.Message) int
}

// defaultCharactersPerToken is the fixed estimation ratio. BPE
// tokenizers average closer to four characters per token for English,
// so three overestimates and trims early rather than overflowing.
const defaultCharactersPerToken = 3

// CharEstimator estimates token counts from character counts using a
// fixed ratio, rounding up. It needs no tokenizer tables and gives the
// same answer for the same text on every call.
type CharEstimator struct {
	charactersPerToken int
}

// NewCharEstimator creates a CharEstimator with the default ratio of
// three characters per token.
func NewCharEstimator() *CharEstimator {
	return &CharEstimator{charactersPerToken: defaultCharactersPerToken}
}

// EstimateText returns the estimated token count of text.
func (estimator *CharEstimator) EstimateText(text string) int {
	characters := utf8.RuneCountInString(text)
	return (characters + estimator.charactersPerToken - 1) / estimator.charactersPerToken
}

// CountTokens implements [TokenCounter]. A message is priced by its
// content, or by its serialized function call when it has no content.
// A message with neither costs nothing.
func (estimator *CharEstimator) CountTokens(message llm.Message) int {
	if message.Content != "" {
		return estimator.EstimateText(message.Content)
	}
	if message.FunctionCall != nil {
		serialized, err := json.Marshal(message.FunctionCall)
		if err != nil {
			return 0
		}
		return estimator.EstimateText(string(serialized))
	}
	return 0
}

// CountFunctions returns the estimated cost of advertising functions
// to the model, priced as their serialized schema array.
func (estimator *CharEstimator) CountFunctions(functions []llm.Function) int {
	if len(functions) == 0 {
		return 0
	}
	schemas := make([]llm.FunctionSchema, len(functions))
	for i, function := range functions {
		schemas[i] = function.Schema()
	}
	serialized, err := json.Marshal(schemas)
	if err != nil {
		return 0
	}
	return estimator.EstimateText(string(serialized))
}
