package summary

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/researchjournal/rj/internal/schema"
)

func messageJSON(text string) string {
	content := `[]`
	if text != "" {
		b, _ := json.Marshal(text)
		content = `[{"type":"text","text":` + string(b) + `}]`
	}
	return `{"id":"msg_1","type":"message","role":"assistant","model":"` + DefaultModel + `","content":` + content +
		`,"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":5}}`
}

func setupServer(t *testing.T, handler http.HandlerFunc) *Summarizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", Session: "tok"})
}

func testArticle() schema.Article {
	year := 2024
	a := schema.NewArticle(schema.ArticleInput{
		Title:    "Feedback timing in CALL",
		Authors:  []string{"Hsu", "Chen"},
		Year:     &year,
		Journal:  "TESOL Quarterly",
		Abstract: "We studied feedback.",
	})
	a.Excerpts = []schema.Excerpt{schema.NewExcerpt("errors help", "key point")}
	return a
}

func TestSummarize(t *testing.T) {
	var prompt string
	s := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ck, err := r.Cookie("rj-session"); err != nil || ck.Value != "tok" {
			t.Error("session cookie not forwarded")
		}
		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &body); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		if body.Model != DefaultModel || body.MaxTokens != 1024 {
			t.Errorf("unexpected model or max_tokens: %s %d", body.Model, body.MaxTokens)
		}
		if len(body.Messages) == 1 && len(body.Messages[0].Content) == 1 {
			prompt = body.Messages[0].Content[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, messageJSON("A useful summary."))
	})

	got, err := s.Summarize(context.Background(), testArticle(), []string{"Does feedback timing matter?"})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got != "A useful summary." {
		t.Errorf("unexpected summary %q", got)
	}
	for _, want := range []string{"Feedback timing in CALL", "Hsu, Chen", "2024", "TESOL Quarterly", "We studied feedback.", `"errors help" (note: key point)`, "Does feedback timing matter?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSummarize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "rate limited", status: 429, body: `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, want: ErrRateLimited},
		{name: "unauthorized", status: 401, body: `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`, want: ErrUnauthorized},
		{name: "empty", status: 200, body: messageJSON(""), want: ErrEmptySummary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := s.Summarize(context.Background(), testArticle(), nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	s := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(500)
		io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	})
	_, err := s.Summarize(context.Background(), testArticle(), nil)
	if err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected generic error, got %v", err)
	}
}

func TestSearchPhrases(t *testing.T) {
	s := setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, messageJSON("corrective feedback timing\n\n  interlanguage development  \n"+strings.Repeat("x", 90)))
	})
	ref := schema.QuestionRef{ThemeName: "Errors", Question: schema.NewQuestion("Why?", "", "", []string{"a"})}

	got, err := s.SearchPhrases(context.Background(), ref)
	if err != nil {
		t.Fatalf("SearchPhrases failed: %v", err)
	}
	if len(got) != 2 || got[0] != "corrective feedback timing" || got[1] != "interlanguage development" {
		t.Errorf("unexpected phrases: %q", got)
	}
}

func TestSummaryPromptOmitsMissingFields(t *testing.T) {
	a := schema.NewArticle(schema.ArticleInput{Title: "Bare"})
	p := SummaryPrompt(a, nil)
	for _, absent := range []string{"Authors:", "Year:", "Journal:", "Abstract:", "excerpts", "linked to"} {
		if strings.Contains(p, absent) {
			t.Errorf("prompt unexpectedly contains %q", absent)
		}
	}
}
