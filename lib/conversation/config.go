// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/beak/lib/clock"
)

// DefaultInstructions is the first system message of every prompt
// unless Config.Instructions replaces it.
const DefaultInstructions = "Assistant is running inside a web application. " +
	"Assistant never returns JSON as a text reply, always uses the correct format for function calls."

// DefaultFormattingInstructions is the second system message of every
// prompt unless Config.FormattingInstructions replaces or disables it.
const DefaultFormattingInstructions = "Never provide instructions for executing function calls to the user, " +
	"instead use the function call interface."

// DefaultMaxFeedback is the number of follow-up rounds allowed after
// the first completion of a turn.
const DefaultMaxFeedback = 2

// Config holds the behavior settings of a [Conversation].
type Config struct {
	// MaxFeedback caps the follow-up rounds per turn. A turn makes at
	// most MaxFeedback+1 completion requests. Zero means
	// DefaultMaxFeedback; negative values are rejected.
	MaxFeedback int

	// Instructions replaces DefaultInstructions when non-empty.
	Instructions string

	// FormattingInstructions replaces DefaultFormattingInstructions.
	// Nil keeps the default; a pointer to "" omits the message.
	FormattingInstructions *string

	// Temperature is passed to every request. Nil leaves the choice to
	// the adapter.
	Temperature *float64

	// MaxTokens is the prompt budget. Zero lets the adapter use the
	// model's context window.
	MaxTokens int

	Logger *slog.Logger

	// Clock stamps message creation times. Default: clock.Real().
	Clock clock.Clock
}

// withDefaults returns a copy of config with zero values replaced.
func (config Config) withDefaults() (Config, error) {
	if config.MaxFeedback < 0 {
		return config, fmt.Errorf("conversation: MaxFeedback must not be negative, got %d", config.MaxFeedback)
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("conversation: MaxTokens must not be negative, got %d", config.MaxTokens)
	}
	if config.MaxFeedback == 0 {
		config.MaxFeedback = DefaultMaxFeedback
	}
	if config.Instructions == "" {
		config.Instructions = DefaultInstructions
	}
	if config.FormattingInstructions == nil {
		formatting := DefaultFormattingInstructions
		config.FormattingInstructions = &formatting
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return config, nil
}
