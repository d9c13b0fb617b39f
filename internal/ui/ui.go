// Package ui styles CLI output and runs interactive prompts.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/researchjournal/rj/internal/schema"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	statusStyles = map[schema.QuestionStatus]lipgloss.Style{
		schema.StatusNotStarted:  mutedStyle,
		schema.StatusExploring:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		schema.StatusHasFindings: warnStyle,
		schema.StatusConcluded:   successStyle,
	}
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Init disables colour when stdout is not a terminal or noColor is set.
func Init(noColor bool) {
	if noColor || !IsTerminal(os.Stdout) || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func Title(s string) string   { return titleStyle.Render(s) }
func Success(s string) string { return successStyle.Render(s) }
func Warn(s string) string    { return warnStyle.Render(s) }
func Error(s string) string   { return errorStyle.Render(s) }
func Muted(s string) string   { return mutedStyle.Render(s) }
func ID(s string) string      { return idStyle.Render(s) }

// Status renders a question status label in its colour.
func Status(s schema.QuestionStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		style = mutedStyle
	}
	return style.Render(s.Label())
}

// Star renders the starred marker.
func Star(starred bool) string {
	if starred {
		return warnStyle.Render("*")
	}
	return " "
}

// Fields prints aligned "key: value" lines.
func Fields(w io.Writer, pairs ...string) {
	width := 0
	for i := 0; i < len(pairs); i += 2 {
		width = max(width, len(pairs[i]))
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i] + ":" + strings.Repeat(" ", width-len(pairs[i]))
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render(key), pairs[i+1])
	}
}

// Fatal prints an error message to stderr and exits.
func Fatal(format string, args ...any) {
	fmt.Fprintln(os.Stderr, Error("Error:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Password prompts for a password without echo.
func Password(title string) (string, error) {
	var value string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value).
		Run()
	return value, err
}

// Confirm asks a yes/no question.
func Confirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}
