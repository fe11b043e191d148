// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package conversation runs multi-round, function-calling chat turns
// against a streaming completions [Adapter].
//
// A [Conversation] owns the message history, the registered functions
// and the info snapshots describing application state. Each call to
// [Conversation.RunChatCompletion] appends the user's text, streams
// the model's reply into assistant messages, invokes the handlers of
// any functions the model called, and, when a function's [Feedback]
// asks for it, sends the results back for another round. The number
// of follow-up rounds is capped by Config.MaxFeedback.
//
// Every mutation of a message is published to subscribed observers as
// an [EventChange] carrying a copy of the message, so a user interface
// can render the reply as it streams. Observers are called
// synchronously on the goroutine running the turn and must not block.
//
// One turn runs at a time per Conversation; a concurrent call fails
// with [ErrTurnInProgress]. Registration methods and Messages are safe
// to call from any goroutine, including from an observer.
package conversation
