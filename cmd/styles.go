// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/telemgen/pkg/gen"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("241"))

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	dimStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))
)

func statusStyle(s gen.Status) lipgloss.Style {
	switch s {
	case gen.StatusCreated:
		return okStyle
	case gen.StatusUpdated:
		return warningStyle
	default:
		return dimStyle
	}
}
