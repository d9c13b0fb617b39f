package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rj.log")

	out, err := Setup(Options{File: path})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	out.Logger("coordinator").Printf("Pushed document")
	if err := out.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "[coordinator] ") || !strings.Contains(string(data), "Pushed document") {
		t.Errorf("unexpected log contents: %q", data)
	}
}

func TestSetup_Stderr(t *testing.T) {
	out, err := Setup(Options{})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if out.Writer() != os.Stderr {
		t.Error("expected stderr output")
	}
	if err := out.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
