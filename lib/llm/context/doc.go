// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package context fits conversation history into a model's prompt
// budget.
//
// [Trim] selects the messages sent with a request. System messages are
// always kept and paid for first, along with the function definitions.
// The remaining budget is filled from the newest message backwards;
// the first message that does not fit ends the selection, so the
// prompt is always a contiguous suffix of the conversation plus its
// system messages.
//
// Token costs come from a [TokenCounter]. [CharEstimator] is the
// default: a fixed characters-per-token ratio that errs towards
// overestimating. Messages that already carry a cached cost
// (llm.Message.NumTokens) are not recounted.
//
// [ContextWindowForModel] reports the window size of the supported
// chat models and is the usual source of the budget.
package context
