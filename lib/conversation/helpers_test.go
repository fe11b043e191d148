// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/beak/lib/llm"
	llmcontext "github.com/bureau-foundation/beak/lib/llm/context"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chunk(delta map[string]any) string {
	payload, _ := json.Marshal(map[string]any{
		"object":  "chat.completion.chunk",
		"choices": []any{map[string]any{"index": 0, "delta": delta}},
	})
	return fmt.Sprintf("data: %s\n", payload)
}

func pieces(text string, size int) []string {
	var result []string
	for len(text) > size {
		result = append(result, text[:size])
		text = text[size:]
	}
	if text != "" {
		result = append(result, text)
	}
	return result
}

// textChunks streams text four characters at a time, without the done
// sentinel so it can be combined with other chunks.
func textChunks(text string) string {
	var builder strings.Builder
	builder.WriteString(chunk(map[string]any{"role": "assistant", "content": ""}))
	for _, piece := range pieces(text, 4) {
		builder.WriteString(chunk(map[string]any{"content": piece}))
	}
	return builder.String()
}

// callChunks streams a function call whose arguments arrive four
// characters at a time.
func callChunks(name string, arguments map[string]any) string {
	serialized, _ := json.Marshal(arguments)
	var builder strings.Builder
	builder.WriteString(chunk(map[string]any{"function_call": map[string]any{"name": name, "arguments": ""}}))
	for _, piece := range pieces(string(serialized), 4) {
		builder.WriteString(chunk(map[string]any{"function_call": map[string]any{"arguments": piece}}))
	}
	return builder.String()
}

func textStream(text string) string {
	return textChunks(text) + "data: [DONE]\n"
}

func callStream(name string, arguments map[string]any) string {
	return callChunks(name, arguments) + "data: [DONE]\n"
}

// scriptedAdapter replays one prepared stream per query and records
// the parameters of every query. Queries beyond the script get an
// empty stream.
type scriptedAdapter struct {
	estimator *llmcontext.CharEstimator

	mu       sync.Mutex
	rounds   []string
	queryErr error
	queries  []QueryParams
}

func newScriptedAdapter(rounds ...string) *scriptedAdapter {
	return &scriptedAdapter{estimator: llmcontext.NewCharEstimator(), rounds: rounds}
}

func (adapter *scriptedAdapter) CountTokens(message llm.Message) int {
	return adapter.estimator.CountTokens(message)
}

func (adapter *scriptedAdapter) Query(ctx context.Context, params QueryParams) (*llm.Completion, error) {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	adapter.queries = append(adapter.queries, params)
	if adapter.queryErr != nil {
		return nil, adapter.queryErr
	}
	stream := "data: [DONE]\n"
	if len(adapter.rounds) > 0 {
		stream = adapter.rounds[0]
		adapter.rounds = adapter.rounds[1:]
	}
	decoder := llm.NewStreamDecoder(io.NopCloser(strings.NewReader(stream)), discardLogger())
	return llm.NewCompletion(decoder, discardLogger()), nil
}

func (adapter *scriptedAdapter) recordedQueries() []QueryParams {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	return append([]QueryParams(nil), adapter.queries...)
}

// eventRecorder collects every event delivered to it.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (recorder *eventRecorder) OnEvent(event Event) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.events = append(recorder.events, event)
}

func (recorder *eventRecorder) changes() []llm.Message {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	var result []llm.Message
	for _, event := range recorder.events {
		if event.Type == EventChange {
			result = append(result, *event.Message)
		}
	}
	return result
}

func (recorder *eventRecorder) ofType(eventType EventType) []Event {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	var result []Event
	for _, event := range recorder.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

func newTestConversation(t *testing.T, config Config, adapter Adapter) (*Conversation, *eventRecorder) {
	t.Helper()
	if config.Logger == nil {
		config.Logger = discardLogger()
	}
	conversation, err := New(config, adapter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	recorder := &eventRecorder{}
	conversation.Subscribe(recorder)
	return conversation, recorder
}

func greetHandler(greeting string) Handler {
	return func(ctx context.Context, arguments map[string]any) (any, error) {
		return greeting, nil
	}
}

// summary renders messages as "role/status/content|call" strings for
// compact comparison.
func summary(messages []llm.Message) []string {
	result := make([]string, len(messages))
	for i, message := range messages {
		entry := fmt.Sprintf("%s/%s/%s", message.Role, message.Status, message.Content)
		if message.FunctionCall != nil {
			entry += "|" + message.FunctionCall.Name
		}
		result[i] = entry
	}
	return result
}
