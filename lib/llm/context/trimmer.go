// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/beak/lib/llm"
)

var (
	// ErrFunctionsExceedBudget is returned when the function
	// definitions alone cost more than the whole budget.
	ErrFunctionsExceedBudget = errors.New("not enough tokens for functions")

	// ErrSystemExceedsBudget is returned when the function definitions
	// and system messages together cost more than the budget.
	ErrSystemExceedsBudget = errors.New("not enough tokens for system message")
)

// Trim returns the messages that fit into maxTokens after paying for
// the function definitions (functionsTokens) and every system message.
//
// Non-system messages are taken newest first while they fit. The
// first message that does not fit stops the walk, even if an older,
// smaller message would still fit. The result preserves the input
// order, with system messages in their original positions.
//
// A message's cost is its NumTokens when positive, otherwise
// counter.CountTokens. The input slice is not modified.
func Trim(messages []llm.Message, maxTokens, functionsTokens int, counter TokenCounter) ([]llm.Message, error) {
	remaining := maxTokens - functionsTokens
	if remaining < 0 {
		return nil, fmt.Errorf("%w: functions cost %d, budget is %d",
			ErrFunctionsExceedBudget, functionsTokens, maxTokens)
	}

	for _, message := range messages {
		if message.Role == llm.RoleSystem {
			remaining -= messageCost(message, counter)
		}
	}
	if remaining < 0 {
		return nil, fmt.Errorf("%w: over budget by %d tokens",
			ErrSystemExceedsBudget, -remaining)
	}

	keep := make([]bool, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleSystem {
			keep[i] = true
			continue
		}
		if remaining < 0 {
			continue
		}
		cost := messageCost(messages[i], counter)
		if cost > remaining {
			// Cutoff: nothing older is kept.
			remaining = -1
			continue
		}
		remaining -= cost
		keep[i] = true
	}

	trimmed := make([]llm.Message, 0, len(messages))
	for i, message := range messages {
		if keep[i] {
			trimmed = append(trimmed, message)
		}
	}
	return trimmed, nil
}

func messageCost(message llm.Message, counter TokenCounter) int {
	if message.NumTokens > 0 {
		return message.NumTokens
	}
	return counter.CountTokens(message)
}
