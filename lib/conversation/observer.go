// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import "github.com/bureau-foundation/beak/lib/llm"

// EventType identifies a conversation event.
type EventType string

const (
	// EventChange carries a copy of a message that was added or
	// modified.
	EventChange EventType = "change"

	// EventPartial reports a function call still being streamed.
	EventPartial EventType = "partial"

	// EventFunction reports a completed function call.
	EventFunction EventType = "function"

	// EventContent carries a fragment of streamed assistant text.
	EventContent EventType = "content"

	// EventError reports the failure that aborted a completion.
	EventError EventType = "error"

	// EventEnd marks the clean end of a completion stream.
	EventEnd EventType = "end"
)

// Event is delivered to observers. Only the fields belonging to Type
// are set.
type Event struct {
	Type EventType

	// Message is set for EventChange. It is a copy owned by the
	// observer.
	Message *llm.Message

	// Name and Arguments are set for EventPartial.
	Name      string
	Arguments string

	// Call is set for EventFunction. It is a copy owned by the
	// observer.
	Call *llm.FunctionCall

	// Content is set for EventContent.
	Content string

	// Err is set for EventError.
	Err error
}

// Observer receives conversation events.
type Observer interface {
	OnEvent(event Event)
}

// ObserverFunc adapts a plain function to [Observer].
type ObserverFunc func(event Event)

// OnEvent calls f(event).
func (f ObserverFunc) OnEvent(event Event) { f(event) }

type subscription struct {
	id       uint64
	observer Observer
}
