// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// EventType identifies the kind of a [Completion] event.
type EventType string

const (
	// EventContent carries a fragment of assistant text.
	EventContent EventType = "content"

	// EventPartial reports the function call accumulated so far: the
	// current name and the whole (possibly incomplete) argument text.
	EventPartial EventType = "partial"

	// EventFunction carries a completed function call with parsed
	// arguments.
	EventFunction EventType = "function"
)

// Event is one application-level event from a streamed completion.
type Event struct {
	Type EventType

	// Content is set for EventContent.
	Content string

	// Name and Arguments are set for EventPartial.
	Name      string
	Arguments string

	// Call is set for EventFunction.
	Call *FunctionCall
}

// completionMode is what the model is currently producing.
type completionMode int

const (
	modeNone completionMode = iota
	modeMessage
	modeFunction
)

// Completion turns decoded stream frames into content, partial and
// function events for one in-flight request.
//
// Function-call fragments are buffered: each name fragment replaces
// the buffered name, each arguments fragment is appended, and an
// EventPartial follows every such frame. When the stream moves on to
// text, or ends, the buffered call is flushed: its arguments are
// repaired with [RepairArguments] and parsed into an EventFunction. A
// call that cannot be repaired ends the stream with an error instead.
//
// Next returns io.EOF after the last event of a cleanly ended stream.
// Read errors from the frame source are returned as-is without
// flushing a pending call. Terminal results are sticky.
//
// Completion is not safe for concurrent use.
type Completion struct {
	frames FrameSource
	logger *slog.Logger

	mode          completionMode
	functionName  string
	functionArgs  strings.Builder
	pendingEvents []Event
	terminal      error
}

// NewCompletion creates a Completion reading from frames. The
// Completion owns frames and closes it on Close.
func NewCompletion(frames FrameSource, logger *slog.Logger) *Completion {
	if logger == nil {
		logger = slog.Default()
	}
	return &Completion{frames: frames, logger: logger}
}

// Next returns the next event.
func (completion *Completion) Next() (Event, error) {
	for {
		if len(completion.pendingEvents) > 0 {
			event := completion.pendingEvents[0]
			completion.pendingEvents = completion.pendingEvents[1:]
			return event, nil
		}
		if completion.terminal != nil {
			return Event{}, completion.terminal
		}

		frame, err := completion.frames.Next()
		if errors.Is(err, io.EOF) {
			if completion.mode == modeFunction {
				if flushErr := completion.flushFunctionCall(); flushErr != nil {
					completion.terminal = flushErr
					continue
				}
			}
			completion.terminal = io.EOF
			continue
		}
		if err != nil {
			completion.terminal = err
			continue
		}

		if err := completion.handleFrame(frame); err != nil {
			completion.terminal = err
		}
	}
}

// handleFrame applies one decoded frame to the mode machine, queueing
// any resulting events. Returns a terminal error for stream error
// frames and unrepairable function calls.
func (completion *Completion) handleFrame(frame json.RawMessage) error {
	var chunk chatChunk
	if err := json.Unmarshal(frame, &chunk); err != nil {
		completion.logger.Warn("skipping stream frame with unexpected shape",
			"error", err,
			"frame", truncateForLog(frame),
		)
		return nil
	}

	if chunk.Error != nil && chunk.Error.Message != "" {
		return &ProviderError{
			StatusCode: 200,
			Type:       chunk.Error.Type,
			Message:    chunk.Error.Message,
		}
	}

	if len(chunk.Choices) == 0 {
		return nil
	}
	delta := chunk.Choices[0].Delta

	if completion.mode == modeFunction && delta.FunctionCall == nil {
		if err := completion.flushFunctionCall(); err != nil {
			return err
		}
	}

	if delta.FunctionCall != nil {
		completion.mode = modeFunction
		if delta.FunctionCall.Name != "" {
			completion.functionName = delta.FunctionCall.Name
		}
		completion.functionArgs.WriteString(delta.FunctionCall.Arguments)
		completion.pendingEvents = append(completion.pendingEvents, Event{
			Type:      EventPartial,
			Name:      completion.functionName,
			Arguments: completion.functionArgs.String(),
		})
		return nil
	}

	completion.mode = modeMessage
	if delta.Content != nil && *delta.Content != "" {
		completion.pendingEvents = append(completion.pendingEvents, Event{
			Type:    EventContent,
			Content: *delta.Content,
		})
	}
	return nil
}

// flushFunctionCall parses the buffered call and queues an
// EventFunction, then resets the buffer and mode.
func (completion *Completion) flushFunctionCall() error {
	repaired, err := RepairArguments(completion.functionArgs.String())
	if err != nil {
		return fmt.Errorf("llm: function call %q: %w", completion.functionName, err)
	}

	var arguments map[string]any
	if err := json.Unmarshal([]byte(repaired), &arguments); err != nil {
		return fmt.Errorf("llm: function call %q: parsing arguments: %w", completion.functionName, err)
	}
	if arguments == nil {
		arguments = map[string]any{}
	}

	completion.logger.Debug("function call complete",
		"name", completion.functionName,
		"arguments_length", completion.functionArgs.Len(),
	)

	completion.pendingEvents = append(completion.pendingEvents, Event{
		Type: EventFunction,
		Call: &FunctionCall{Name: completion.functionName, Arguments: arguments},
	})
	completion.mode = modeNone
	completion.functionName = ""
	completion.functionArgs.Reset()
	return nil
}

// Close releases the underlying frame source.
func (completion *Completion) Close() error {
	if completion.terminal == nil {
		completion.terminal = io.EOF
	}
	return completion.frames.Close()
}
