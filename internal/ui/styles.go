// Package ui renders progress for long-running commands.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func Title(s string) string   { return titleStyle.Render(s) }
func Dim(s string) string     { return dimStyle.Render(s) }
func Success(s string) string { return successStyle.Render(s) }
func Error(s string) string   { return errStyle.Render(s) }
func Warn(s string) string    { return warnStyle.Render(s) }

// Mark returns a check or cross for a pass/fail outcome.
func Mark(ok bool) string {
	if ok {
		return Success("✓")
	}
	return Error("✗")
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
