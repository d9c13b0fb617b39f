package main

import (
	"strings"
	"testing"
	"time"
)

func TestResolveID(t *testing.T) {
	ids := []string{"error-learning-0", "error-learning-1", "motivation-0", "abc"}

	tests := []struct {
		arg     string
		want    string
		wantErr string
	}{
		{"motivation-0", "motivation-0", ""},
		{"mot", "motivation-0", ""},
		{"abc", "abc", ""},
		{"error-learning", "", "matches 2"},
		{"zzz", "", "no question matches"},
	}
	for _, tt := range tests {
		got, err := resolveID("question", ids, tt.arg)
		if tt.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("resolveID(%q) error = %v, want containing %q", tt.arg, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("resolveID(%q) failed: %v", tt.arg, err)
		}
		if got != tt.want {
			t.Errorf("resolveID(%q) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestResolveIDExactBeatsPrefix(t *testing.T) {
	got, err := resolveID("theme", []string{"ab", "abc"}, "ab")
	if err != nil {
		t.Fatalf("resolveID failed: %v", err)
	}
	if got != "ab" {
		t.Errorf("resolveID = %q, want ab", got)
	}
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{" , ,", []string{}},
		{"srs", []string{"srs"}},
		{"srs, memory ,,retrieval", []string{"srs", "memory", "retrieval"}},
	}
	for _, tt := range tests {
		got := splitTags(tt.in)
		if got == nil {
			t.Errorf("splitTags(%q) returned nil", tt.in)
		}
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("splitTags(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTextArg(t *testing.T) {
	got, err := textArg([]string{"spaced", "repetition", " works "})
	if err != nil {
		t.Fatalf("textArg failed: %v", err)
	}
	if got != "spaced repetition  works" {
		t.Errorf("textArg = %q", got)
	}
	if _, err := textArg([]string{"  "}); err == nil {
		t.Error("expected error for blank text")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("q-1"); got != "q-1" {
		t.Errorf("shortID = %q", got)
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.Local)

	got, err := parseSince("2024-05-01", now)
	if err != nil {
		t.Fatalf("parseSince failed: %v", err)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local); !got.Equal(want) {
		t.Errorf("parseSince(date) = %v, want %v", got, want)
	}

	got, err = parseSince("3 days ago", now)
	if err != nil {
		t.Fatalf("parseSince failed: %v", err)
	}
	if got.Day() != 12 || got.Month() != time.May {
		t.Errorf("parseSince(3 days ago) = %v, want May 12", got)
	}

	if _, err := parseSince("banana", now); err == nil {
		t.Error("expected error for unrecognised phrase")
	}
}

func TestIndent(t *testing.T) {
	if got := indent("a\nb\n", "  "); got != "  a\n  b" {
		t.Errorf("indent = %q", got)
	}
}
