// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chunkedBody returns the given pieces from successive Read calls, one
// piece per call, then io.EOF. It models a transport that delivers the
// body in arbitrary fragments.
type chunkedBody struct {
	pieces []string
	err    error
	closed bool
}

func (body *chunkedBody) Read(p []byte) (int, error) {
	for len(body.pieces) > 0 && body.pieces[0] == "" {
		body.pieces = body.pieces[1:]
	}
	if len(body.pieces) == 0 {
		if body.err != nil {
			return 0, body.err
		}
		return 0, io.EOF
	}
	n := copy(p, body.pieces[0])
	body.pieces[0] = body.pieces[0][n:]
	return n, nil
}

func (body *chunkedBody) Close() error {
	body.closed = true
	return nil
}

// splitEvery cuts text into pieces of at most size bytes.
func splitEvery(text string, size int) []string {
	var pieces []string
	for len(text) > size {
		pieces = append(pieces, text[:size])
		text = text[size:]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

const testChunkID = "chatcmpl-aaaaaaaaaaaaaaaaaaaaaa"

func chunkLine(delta map[string]any, finishReason any) string {
	payload, _ := json.Marshal(map[string]any{
		"id":      testChunkID,
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   "gpt-3.5-turbo",
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         delta,
			"finish_reason": finishReason,
		}},
	})
	return fmt.Sprintf("data: %s\n", payload)
}

// contentStreamLines renders a text reply streamed four characters at
// a time: an empty role chunk, the content chunks, a stop chunk, and
// the done sentinel.
func contentStreamLines(sentence string) []string {
	lines := []string{chunkLine(map[string]any{"role": "assistant", "content": ""}, nil)}
	for _, piece := range splitEvery(sentence, 4) {
		lines = append(lines, chunkLine(map[string]any{"content": piece}, nil))
	}
	lines = append(lines, chunkLine(map[string]any{}, "stop"))
	return append(lines, "data: [DONE]\n")
}

// functionStreamLines renders a function call whose serialized
// arguments arrive four characters at a time.
func functionStreamLines(name string, arguments any) []string {
	serialized, _ := json.Marshal(arguments)
	lines := []string{chunkLine(map[string]any{
		"role":          "assistant",
		"content":       nil,
		"function_call": map[string]any{"name": name, "arguments": ""},
	}, nil)}
	for _, piece := range splitEvery(string(serialized), 4) {
		lines = append(lines, chunkLine(map[string]any{
			"function_call": map[string]any{"arguments": piece},
		}, nil))
	}
	lines = append(lines, chunkLine(map[string]any{}, "function_call"))
	return append(lines, "data: [DONE]\n")
}

func newTestCompletion(stream string) *Completion {
	decoder := NewStreamDecoder(io.NopCloser(strings.NewReader(stream)), discardLogger())
	return NewCompletion(decoder, discardLogger())
}

// drainCompletion collects events until the terminal result.
func drainCompletion(completion *Completion) ([]Event, error) {
	var events []Event
	for {
		event, err := completion.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}
