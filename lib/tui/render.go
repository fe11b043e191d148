// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/bureau-foundation/beak/lib/llm"
)

// Renderer writes conversation output to a terminal or a plain stream.
type Renderer struct {
	out    io.Writer
	styled bool
	theme  Theme
}

// NewRenderer returns a renderer writing to out. Styling is enabled
// when out is an *os.File attached to a terminal.
func NewRenderer(out io.Writer, theme Theme) *Renderer {
	styled := false
	if file, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(file.Fd()))
	}
	return &Renderer{out: out, styled: styled, theme: theme}
}

// Styled reports whether output carries terminal styling.
func (renderer *Renderer) Styled() bool {
	return renderer.styled
}

// SetStyled forces styling on or off.
func (renderer *Renderer) SetStyled(styled bool) {
	renderer.styled = styled
}

func (renderer *Renderer) paint(color lipgloss.Color, bold bool, text string) string {
	if !renderer.styled {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Bold(bold).Render(text)
}

// Label formats the role prefix of a message, e.g. "assistant: ".
func (renderer *Renderer) Label(role llm.Role) string {
	return renderer.paint(renderer.theme.RoleColor(role), true, string(role)) + ": "
}

// StartLine writes the role label that begins a streamed line.
func (renderer *Renderer) StartLine(role llm.Role) {
	fmt.Fprint(renderer.out, renderer.Label(role))
}

// EndLine ends a streamed line.
func (renderer *Renderer) EndLine() {
	fmt.Fprintln(renderer.out)
}

// Delta writes a fragment of streamed text without a newline.
func (renderer *Renderer) Delta(text string) {
	fmt.Fprint(renderer.out, renderer.paint(renderer.theme.NormalText, false, text))
}

// Prompt writes the input prompt.
func (renderer *Renderer) Prompt() {
	fmt.Fprint(renderer.out, renderer.paint(renderer.theme.UserRole, true, "> "))
}

// Call writes a completed function call as name(arguments).
func (renderer *Renderer) Call(call llm.FunctionCall) {
	fmt.Fprintln(renderer.out, renderer.paint(renderer.theme.CallForeground, false, FormatCall(call)))
}

// Message writes a settled message on its own line: role label,
// content, and, unless the status is success, the status in brackets.
func (renderer *Renderer) Message(message llm.Message) {
	var builder strings.Builder
	builder.WriteString(renderer.Label(message.Role))
	switch {
	case message.Content != "":
		builder.WriteString(renderer.paint(renderer.theme.NormalText, false, message.Content))
	case message.FunctionCall != nil:
		builder.WriteString(renderer.paint(renderer.theme.CallForeground, false, FormatCall(*message.FunctionCall)))
	}
	if message.Status != llm.StatusSuccess && message.Status != "" {
		status := "[" + string(message.Status) + "]"
		builder.WriteString(" " + renderer.paint(renderer.theme.StatusColor(message.Status), false, status))
	}
	fmt.Fprintln(renderer.out, builder.String())
}

// Error writes an error line.
func (renderer *Renderer) Error(err error) {
	fmt.Fprintln(renderer.out, renderer.paint(renderer.theme.StatusError, true, "error: "+err.Error()))
}

// FormatCall renders a function call as name({"arg":...}).
func FormatCall(call llm.FunctionCall) string {
	arguments := "{}"
	if len(call.Arguments) > 0 {
		if encoded, err := json.Marshal(call.Arguments); err == nil {
			arguments = string(encoded)
		}
	}
	return call.Name + "(" + arguments + ")"
}
