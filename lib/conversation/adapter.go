// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/beak/lib/llm"
	llmcontext "github.com/bureau-foundation/beak/lib/llm/context"
)

// QueryParams is one completion request built by a [Conversation].
type QueryParams struct {
	// Messages is the full prompt in order: system messages first,
	// then the history. The adapter may trim it to fit MaxTokens.
	Messages []llm.Message

	Functions []llm.Function

	// FunctionCall is llm.FunctionCallAuto or llm.FunctionCallNone.
	FunctionCall string

	// MaxTokens is the prompt budget. Zero means the model's window.
	MaxTokens int

	Temperature *float64
}

// Adapter sends completion requests for a [Conversation].
type Adapter interface {
	// CountTokens estimates a message's cost against the prompt
	// budget.
	CountTokens(message llm.Message) int

	// Query starts a streamed completion. The caller must Close the
	// returned Completion.
	Query(ctx context.Context, params QueryParams) (*llm.Completion, error)
}

// OpenAIAdapter implements [Adapter] with an [llm.OpenAI] client. It
// prices messages with a character estimator and trims every prompt to
// the token budget before sending it.
type OpenAIAdapter struct {
	client    *llm.OpenAI
	estimator *llmcontext.CharEstimator
	logger    *slog.Logger
}

// NewOpenAIAdapter creates an adapter. A nil estimator uses
// llmcontext.NewCharEstimator.
func NewOpenAIAdapter(client *llm.OpenAI, estimator *llmcontext.CharEstimator, logger *slog.Logger) *OpenAIAdapter {
	if estimator == nil {
		estimator = llmcontext.NewCharEstimator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIAdapter{
		client:    client,
		estimator: estimator,
		logger:    logger.With("component", "chat-internal"),
	}
}

// CountTokens implements [Adapter].
func (adapter *OpenAIAdapter) CountTokens(message llm.Message) int {
	return adapter.estimator.CountTokens(message)
}

// Query implements [Adapter].
func (adapter *OpenAIAdapter) Query(ctx context.Context, params QueryParams) (*llm.Completion, error) {
	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = llmcontext.ContextWindowForModel(adapter.client.Model())
	}

	functionsTokens := adapter.estimator.CountFunctions(params.Functions)
	messages, err := llmcontext.Trim(params.Messages, maxTokens, functionsTokens, adapter.estimator)
	if err != nil {
		return nil, fmt.Errorf("conversation: fitting prompt into %d tokens: %w", maxTokens, err)
	}
	if dropped := len(params.Messages) - len(messages); dropped > 0 {
		adapter.logger.Debug("trimmed prompt to token budget",
			"dropped", dropped,
			"kept", len(messages),
			"max_tokens", maxTokens,
		)
	}

	request := llm.ChatRequest{
		Messages:     make([]llm.ChatMessage, len(messages)),
		FunctionCall: params.FunctionCall,
		Temperature:  params.Temperature,
	}
	for i, message := range messages {
		request.Messages[i] = llm.ToChatMessage(message)
	}
	for _, function := range params.Functions {
		request.Functions = append(request.Functions, function.Schema())
	}

	decoder, err := adapter.client.Stream(ctx, request)
	if err != nil {
		return nil, err
	}
	return llm.NewCompletion(decoder, adapter.logger), nil
}
