// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/bureau-foundation/beak/lib/conversation"
	"github.com/bureau-foundation/beak/lib/llm"
	"github.com/bureau-foundation/beak/lib/tui"
)

// session prints a conversation's events as they happen and feeds it
// input lines.
type session struct {
	conversation *conversation.Conversation
	renderer     *tui.Renderer

	// streaming is true while an assistant text line is open.
	streaming bool
}

func newSession(conv *conversation.Conversation, renderer *tui.Renderer) *session {
	s := &session{conversation: conv, renderer: renderer}
	conv.Subscribe(s)
	return s
}

// OnEvent implements conversation.Observer.
func (s *session) OnEvent(event conversation.Event) {
	switch event.Type {
	case conversation.EventContent:
		if !s.streaming {
			s.renderer.StartLine(llm.RoleAssistant)
			s.streaming = true
		}
		s.renderer.Delta(event.Content)
	case conversation.EventFunction:
		s.closeLine()
		s.renderer.Call(*event.Call)
	case conversation.EventChange:
		if event.Message.Role == llm.RoleFunction {
			s.closeLine()
			s.renderer.Message(*event.Message)
		}
	case conversation.EventEnd, conversation.EventError:
		s.closeLine()
	}
}

func (s *session) closeLine() {
	if s.streaming {
		s.renderer.EndLine()
		s.streaming = false
	}
}

// run reads input line by line until EOF, "/quit", or ctx is done.
// Blank lines are skipped. A failed turn is reported and the loop
// continues.
func (s *session) run(ctx context.Context, input io.Reader) error {
	scanner := bufio.NewScanner(input)
	for {
		if s.renderer.Styled() {
			s.renderer.Prompt()
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		if err := s.conversation.RunChatCompletion(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			s.renderer.Error(err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
