// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/beak/lib/llm"
)

// Theme defines the color palette for rendered conversations. All
// colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Role labels.
	UserRole      lipgloss.Color
	AssistantRole lipgloss.Color
	FunctionRole  lipgloss.Color
	SystemRole    lipgloss.Color

	// Status colors.
	StatusPending lipgloss.Color
	StatusPartial lipgloss.Color
	StatusSuccess lipgloss.Color
	StatusError   lipgloss.Color

	// Function call signatures.
	CallForeground lipgloss.Color
}

// RoleColor returns the label color for a message role. Unknown roles
// return NormalText.
func (theme Theme) RoleColor(role llm.Role) lipgloss.Color {
	switch role {
	case llm.RoleUser:
		return theme.UserRole
	case llm.RoleAssistant:
		return theme.AssistantRole
	case llm.RoleFunction:
		return theme.FunctionRole
	case llm.RoleSystem:
		return theme.SystemRole
	default:
		return theme.NormalText
	}
}

// StatusColor returns the color for a message status. Unknown values
// return FaintText.
func (theme Theme) StatusColor(status llm.Status) lipgloss.Color {
	switch status {
	case llm.StatusPending:
		return theme.StatusPending
	case llm.StatusPartial:
		return theme.StatusPartial
	case llm.StatusSuccess:
		return theme.StatusSuccess
	case llm.StatusError:
		return theme.StatusError
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	UserRole:      lipgloss.Color("75"),  // blue
	AssistantRole: lipgloss.Color("114"), // green
	FunctionRole:  lipgloss.Color("141"), // light purple
	SystemRole:    lipgloss.Color("241"), // dim gray

	StatusPending: lipgloss.Color("245"), // gray
	StatusPartial: lipgloss.Color("220"), // yellow/amber
	StatusSuccess: lipgloss.Color("114"), // green
	StatusError:   lipgloss.Color("196"), // red

	CallForeground: lipgloss.Color("208"), // orange
}
