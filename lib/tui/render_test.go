// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/beak/lib/llm"
)

func TestRendererPlainOutput(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	renderer := NewRenderer(&buffer, DefaultTheme)
	if renderer.Styled() {
		t.Fatal("renderer over a buffer is styled")
	}

	renderer.Message(llm.Message{Role: llm.RoleUser, Status: llm.StatusSuccess, Content: "Say hello"})
	renderer.Message(llm.Message{
		Role:         llm.RoleAssistant,
		Status:       llm.StatusError,
		FunctionCall: &llm.FunctionCall{Name: "sayHello", Arguments: map[string]any{"name": "world"}},
	})
	renderer.Message(llm.Message{Role: llm.RoleFunction, Status: llm.StatusSuccess, Content: "Hello world!"})
	renderer.Error(errors.New("boom"))

	want := "user: Say hello\n" +
		"assistant: sayHello({\"name\":\"world\"}) [error]\n" +
		"function: Hello world!\n" +
		"error: boom\n"
	if got := buffer.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRendererStyledOutput(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	renderer := NewRenderer(&buffer, DefaultTheme)
	renderer.SetStyled(true)

	label := renderer.Label(llm.RoleAssistant)
	want := lipgloss.NewStyle().Foreground(DefaultTheme.AssistantRole).Bold(true).Render("assistant") + ": "
	if label != want {
		t.Errorf("Label = %q, want %q", label, want)
	}

	renderer.StartLine(llm.RoleAssistant)
	renderer.Delta("Hel")
	renderer.Delta("lo")
	renderer.EndLine()
	if !strings.HasPrefix(buffer.String(), label) || !strings.HasSuffix(buffer.String(), "\n") {
		t.Errorf("streamed line %q does not start with the label and end with a newline", buffer.String())
	}
	if !strings.Contains(buffer.String(), "Hel") || !strings.Contains(buffer.String(), "lo") {
		t.Errorf("deltas missing from output %q", buffer.String())
	}
}

func TestFormatCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		call llm.FunctionCall
		want string
	}{
		{llm.FunctionCall{Name: "now"}, "now({})"},
		{llm.FunctionCall{Name: "greet", Arguments: map[string]any{"name": "world"}}, `greet({"name":"world"})`},
		{llm.FunctionCall{Name: "move", Arguments: map[string]any{"y": 2, "x": 1}}, `move({"x":1,"y":2})`},
	}
	for _, test := range tests {
		if got := FormatCall(test.call); got != test.want {
			t.Errorf("FormatCall(%+v) = %q, want %q", test.call, got, test.want)
		}
	}
}

func TestThemeColors(t *testing.T) {
	t.Parallel()

	if got := DefaultTheme.RoleColor("narrator"); got != DefaultTheme.NormalText {
		t.Errorf("unknown role color = %q, want NormalText", got)
	}
	if got := DefaultTheme.StatusColor(llm.StatusError); got != DefaultTheme.StatusError {
		t.Errorf("error status color = %q, want %q", got, DefaultTheme.StatusError)
	}
	if got := DefaultTheme.StatusColor("unknown"); got != DefaultTheme.FaintText {
		t.Errorf("unknown status color = %q, want FaintText", got)
	}
}
