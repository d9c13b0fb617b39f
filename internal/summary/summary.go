// Package summary generates AI summaries of library articles and search
// phrases for questions using the Anthropic Messages API.
//
// Requests go either directly to the API (with an API key) or through the
// server's /api/anthropic proxy, which injects the key. Results are returned
// to the caller; nothing here touches the document.
package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/researchjournal/rj/internal/schema"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

var (
	// ErrRateLimited is returned for HTTP 429.
	ErrRateLimited = errors.New("rate limited, wait a moment and try again")

	// ErrUnauthorized is returned for HTTP 401: a bad API key or session.
	ErrUnauthorized = errors.New("invalid API key or session")

	// ErrEmptySummary is returned when the response carries no text.
	ErrEmptySummary = errors.New("no summary returned from API")
)

// Config configures a Summarizer.
type Config struct {
	// APIKey is sent as x-api-key. Leave empty when going through the proxy.
	APIKey string

	// BaseURL overrides the API root. For the proxy use
	// <server>/api/anthropic/.
	BaseURL string

	// Session is the rj-session token forwarded to the proxy.
	Session string

	// Model defaults to DefaultModel.
	Model string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Summarizer calls the Messages API.
type Summarizer struct {
	client anthropic.Client
	model  string
}

// New creates a summarizer.
func New(cfg Config) *Summarizer {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else {
		// The proxy replaces this header with the real key.
		opts = append(opts, option.WithAPIKey("proxy"))
	}
	if cfg.Session != "" {
		opts = append(opts, option.WithHeader("Cookie", (&http.Cookie{Name: "rj-session", Value: cfg.Session}).String()))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Summarizer{client: anthropic.NewClient(opts...), model: model}
}

// Summarize writes a few paragraphs about article in the context of the
// questions it is linked to.
func (s *Summarizer) Summarize(ctx context.Context, article schema.Article, questions []string) (string, error) {
	text, err := s.complete(ctx, SummaryPrompt(article, questions), 1024)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptySummary
	}
	return text, nil
}

// SearchPhrases suggests short academic search queries for a question.
func (s *Summarizer) SearchPhrases(ctx context.Context, ref schema.QuestionRef) ([]string, error) {
	text, err := s.complete(ctx, PhrasesPrompt(ref), 256)
	if err != nil {
		return nil, err
	}
	var phrases []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(line) < 80 {
			phrases = append(phrases, line)
		}
	}
	return phrases, nil
}

func (s *Summarizer) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classify(err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", nil
}

func classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests:
			return ErrRateLimited
		case http.StatusUnauthorized:
			return ErrUnauthorized
		default:
			return fmt.Errorf("summary request failed (%d): %w", apierr.StatusCode, err)
		}
	}
	return fmt.Errorf("summary request failed: %w", err)
}
