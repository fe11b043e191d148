// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui renders conversation messages for terminals. A
// [Renderer] styles each message by role and status with lipgloss
// when its output is a terminal, and writes plain text otherwise, so
// piped transcripts stay free of escape sequences.
package tui
