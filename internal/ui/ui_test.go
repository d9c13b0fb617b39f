package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/researchjournal/rj/internal/schema"
)

func TestPlainOutput(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	if got := Status(schema.StatusHasFindings); got != "Has Findings" {
		t.Errorf("unexpected status %q", got)
	}
	if got := Status("bogus"); got != "bogus" {
		t.Errorf("unexpected status %q", got)
	}
	if Star(true) != "*" || Star(false) != " " {
		t.Error("unexpected star markers")
	}
}

func TestFields(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	var buf bytes.Buffer
	Fields(&buf, "State", "ready", "Sync", "saved")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[0] != "State: ready" || lines[1] != "Sync:  saved" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
