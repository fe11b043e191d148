// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestCompletionContentEvents(t *testing.T) {
	t.Parallel()

	completion := newTestCompletion(strings.Join(contentStreamLines("Hello world!"), ""))
	events, err := drainCompletion(completion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Hell", "o wo", "rld!"}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, event := range events {
		if event.Type != EventContent {
			t.Errorf("event[%d].Type = %q, want %q", i, event.Type, EventContent)
		}
		if event.Content != want[i] {
			t.Errorf("event[%d].Content = %q, want %q", i, event.Content, want[i])
		}
	}
}

func TestCompletionFunctionCall(t *testing.T) {
	t.Parallel()

	stream := strings.Join(functionStreamLines("sayHello", map[string]any{"name": "world"}), "")
	events, err := drainCompletion(newTestCompletion(stream))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var partials []Event
	var functions []Event
	for _, event := range events {
		switch event.Type {
		case EventPartial:
			partials = append(partials, event)
		case EventFunction:
			functions = append(functions, event)
		case EventContent:
			t.Errorf("unexpected content event %q", event.Content)
		}
	}

	wantArguments := []string{"", `{"na`, `{"name":`, `{"name":"wor`, `{"name":"world"}`}
	if len(partials) != len(wantArguments) {
		t.Fatalf("got %d partial events, want %d", len(partials), len(wantArguments))
	}
	for i, partial := range partials {
		if partial.Name != "sayHello" {
			t.Errorf("partial[%d].Name = %q, want sayHello", i, partial.Name)
		}
		if partial.Arguments != wantArguments[i] {
			t.Errorf("partial[%d].Arguments = %q, want %q", i, partial.Arguments, wantArguments[i])
		}
	}

	if len(functions) != 1 {
		t.Fatalf("got %d function events, want 1", len(functions))
	}
	call := functions[0].Call
	if call.Name != "sayHello" {
		t.Errorf("call.Name = %q, want sayHello", call.Name)
	}
	if !reflect.DeepEqual(call.Arguments, map[string]any{"name": "world"}) {
		t.Errorf("call.Arguments = %v, want map[name:world]", call.Arguments)
	}

	// The function event is the last one before the end of the stream.
	if events[len(events)-1].Type != EventFunction {
		t.Errorf("last event = %q, want %q", events[len(events)-1].Type, EventFunction)
	}
}

func TestCompletionFlushesOnEndWithoutTrailingChunk(t *testing.T) {
	t.Parallel()

	stream := chunkLine(map[string]any{"function_call": map[string]any{"name": "lookup", "arguments": `{"id":4`}}, nil) +
		"data: [DONE]\n"
	events, err := drainCompletion(newTestCompletion(stream))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want partial + function: %+v", len(events), events)
	}
	if events[1].Type != EventFunction {
		t.Fatalf("events[1].Type = %q, want function", events[1].Type)
	}
	if got := events[1].Call.Arguments["id"]; got != float64(4) {
		t.Errorf("repaired id argument = %v, want 4", got)
	}
}

func TestCompletionTextAfterFunctionCall(t *testing.T) {
	t.Parallel()

	stream := chunkLine(map[string]any{"function_call": map[string]any{"name": "f", "arguments": "{}"}}, nil) +
		chunkLine(map[string]any{"content": "done"}, nil) +
		"data: [DONE]\n"
	events, err := drainCompletion(newTestCompletion(stream))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var types []EventType
	for _, event := range events {
		types = append(types, event.Type)
	}
	want := []EventType{EventPartial, EventFunction, EventContent}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("event types = %v, want %v", types, want)
	}
}

func TestCompletionUnrepairableArgumentsEndsWithError(t *testing.T) {
	t.Parallel()

	stream := chunkLine(map[string]any{"function_call": map[string]any{"name": "f", "arguments": `{:2}`}}, nil) +
		chunkLine(map[string]any{}, "function_call") +
		chunkLine(map[string]any{"content": "never delivered"}, nil) +
		"data: [DONE]\n"
	completion := newTestCompletion(stream)
	events, err := drainCompletion(completion)
	if err == nil {
		t.Fatal("expected an error for unrepairable arguments")
	}
	for _, event := range events {
		if event.Type == EventFunction || event.Type == EventContent {
			t.Errorf("unexpected %q event after a failed flush", event.Type)
		}
	}
	if _, again := completion.Next(); again == nil || again == io.EOF {
		t.Errorf("Next after error = %v, want the same error", again)
	}
}

func TestCompletionReadErrorDoesNotFlush(t *testing.T) {
	t.Parallel()

	readErr := errors.New("connection reset")
	body := &chunkedBody{
		pieces: []string{chunkLine(map[string]any{"function_call": map[string]any{"name": "f", "arguments": `{"a":1}`}}, nil)},
		err:    readErr,
	}
	completion := NewCompletion(NewStreamDecoder(body, discardLogger()), discardLogger())

	events, err := drainCompletion(completion)
	if !errors.Is(err, readErr) {
		t.Fatalf("terminal = %v, want %v", err, readErr)
	}
	for _, event := range events {
		if event.Type == EventFunction {
			t.Error("function event emitted despite read error")
		}
	}
}

func TestCompletionStreamErrorObject(t *testing.T) {
	t.Parallel()

	stream := `data: {"error":{"type":"server_error","message":"overloaded"}}` + "\n" + "data: [DONE]\n"
	_, err := drainCompletion(newTestCompletion(stream))

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if providerErr.Type != "server_error" || providerErr.Message != "overloaded" {
		t.Errorf("provider error = %+v, want server_error/overloaded", providerErr)
	}
}

func TestCompletionIgnoresEmptyChoicesAndUnexpectedShapes(t *testing.T) {
	t.Parallel()

	stream := `data: {"choices":[],"usage":{"prompt_tokens":3}}` + "\n" +
		`data: ["not","a","chunk"]` + "\n" +
		chunkLine(map[string]any{"content": "ok"}, nil) +
		"data: [DONE]\n"
	events, err := drainCompletion(newTestCompletion(stream))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Content != "ok" {
		t.Errorf("events = %+v, want one content event", events)
	}
}

func TestCompletionChunkBoundaryInvariance(t *testing.T) {
	t.Parallel()

	stream := strings.Join(functionStreamLines("sayHello", map[string]any{"name": "world", "times": 3}), "")
	expected, err := drainCompletion(newTestCompletion(stream))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, size := range []int{1, 3, 7, 64} {
		body := &chunkedBody{pieces: splitEvery(stream, size)}
		events, err := drainCompletion(NewCompletion(NewStreamDecoder(body, discardLogger()), discardLogger()))
		if err != nil {
			t.Fatalf("chunk size %d: unexpected error: %v", size, err)
		}
		if !reflect.DeepEqual(events, expected) {
			t.Errorf("chunk size %d: events differ from single-chunk decode", size)
		}
	}
}
