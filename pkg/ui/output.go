package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Out is where status lines are written.
	Out io.Writer = os.Stderr

	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dim    = lipgloss.NewStyle().Faint(true)
	bold   = lipgloss.NewStyle().Bold(true)
)

// Info prints an informational message.
func Info(format string, args ...any) {
	fmt.Fprintf(Out, "%s %s\n", cyan.Render("→"), fmt.Sprintf(format, args...))
}

// Success prints a success message.
func Success(format string, args ...any) {
	fmt.Fprintf(Out, "%s %s\n", green.Render("✔"), fmt.Sprintf(format, args...))
}

// Fail prints a failure message.
func Fail(format string, args ...any) {
	fmt.Fprintf(Out, "%s %s\n", red.Render("✘"), fmt.Sprintf(format, args...))
}

// Warn prints a warning.
func Warn(format string, args ...any) {
	fmt.Fprintf(Out, "%s %s\n", yellow.Render("○"), fmt.Sprintf(format, args...))
}

// Hint prints secondary text, dimmed.
func Hint(format string, args ...any) {
	fmt.Fprintf(Out, "  %s\n", dim.Render(fmt.Sprintf(format, args...)))
}
