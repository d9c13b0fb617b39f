// Package search finds text across the research journal document.
package search

import (
	"strings"
	"unicode/utf8"

	"github.com/researchjournal/rj/internal/schema"
)

// MinQueryLength is the shortest query that returns results.
const MinQueryLength = 2

// Kind says what a Result points at.
type Kind string

const (
	KindQuestion Kind = "question"
	KindNote     Kind = "note"
	KindSource   Kind = "source"
	KindJournal  Kind = "journal"
	KindArticle  Kind = "article"
)

// Result is a single match.
type Result struct {
	Kind           Kind
	QuestionID     string
	JournalEntryID string
	ArticleID      string
	Title          string
	Excerpt        string
}

// All searches questions, their notes and sources, journal entries and the
// library, case-insensitively.
func All(doc *schema.Document, query string) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) < MinQueryLength {
		return nil
	}

	var out []Result
	for _, ref := range doc.AllQuestions() {
		question := ref.Question
		if contains(question.Q, q) || contains(question.Why, q) || contains(question.AppImplication, q) || anyContains(question.Tags, q) {
			out = append(out, Result{
				Kind:       KindQuestion,
				QuestionID: question.ID,
				Title:      truncate(question.Q, 80),
				Excerpt:    Excerpt(strings.Join([]string{question.Q, question.Why, question.AppImplication}, " "), q),
			})
		}

		qd, ok := doc.Questions[question.ID]
		if !ok {
			continue
		}
		for _, n := range qd.Notes {
			if contains(n.Content, q) {
				out = append(out, Result{
					Kind:       KindNote,
					QuestionID: question.ID,
					Title:      "Note on: " + truncate(question.Q, 60),
					Excerpt:    Excerpt(n.Content, q),
				})
			}
		}
		for _, s := range qd.UserSources {
			if contains(s.Text, q) || contains(s.Notes, q) {
				text := s.Notes
				if text == "" {
					text = s.Text
				}
				out = append(out, Result{
					Kind:       KindSource,
					QuestionID: question.ID,
					Title:      s.Text,
					Excerpt:    Excerpt(text, q),
				})
			}
		}
	}

	for _, e := range doc.Journal {
		if contains(e.Content, q) || anyContains(e.Tags, q) {
			out = append(out, Result{
				Kind:           KindJournal,
				JournalEntryID: e.ID,
				QuestionID:     schema.Deref(e.QuestionID),
				Title:          "Journal: " + e.CreatedAt.Format("Jan 2, 2006"),
				Excerpt:        Excerpt(e.Content, q),
			})
		}
	}

	for _, a := range Library(doc, query) {
		out = append(out, Result{
			Kind:      KindArticle,
			ArticleID: a.ID,
			Title:     a.Title,
			Excerpt:   Excerpt(articleText(a), q),
		})
	}
	return out
}

// Library returns articles whose title, abstract, notes or any excerpt quote
// or comment contains query.
func Library(doc *schema.Document, query string) []schema.Article {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []schema.Article
	for _, a := range doc.Library {
		if matchesArticle(a, q) {
			out = append(out, a)
		}
	}
	return out
}

// FilterLibrary narrows the library by status and by theme (articles linked
// to any question of the theme). Empty arguments do not filter. An unknown
// theme matches nothing.
func FilterLibrary(doc *schema.Document, status schema.ArticleStatus, themeID string) []schema.Article {
	var questionIDs map[string]bool
	if themeID != "" {
		idx := doc.FindTheme(themeID)
		if idx < 0 {
			return nil
		}
		questionIDs = make(map[string]bool)
		for _, q := range doc.Themes[idx].Questions {
			questionIDs[q.ID] = true
		}
	}

	var out []schema.Article
	for _, a := range doc.Library {
		if status != "" && a.Status != status {
			continue
		}
		if questionIDs != nil && !linkedToAny(a, questionIDs) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Excerpt returns up to 40 characters before and 80 after the first match of
// query in text, with ellipses where text was cut.
func Excerpt(text, query string) string {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(query))
	if idx < 0 || len(lower) != len(text) {
		return truncate(text, 120)
	}

	start := idx - 40
	if start < 0 {
		start = 0
	}
	end := idx + len(query) + 80
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	excerpt := text[start:end]
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(text) {
		excerpt += "..."
	}
	return excerpt
}

func matchesArticle(a schema.Article, q string) bool {
	if contains(a.Title, q) || contains(schema.Deref(a.Abstract), q) || contains(a.Notes, q) {
		return true
	}
	for _, e := range a.Excerpts {
		if contains(e.Quote, q) || contains(e.Comment, q) {
			return true
		}
	}
	return false
}

func articleText(a schema.Article) string {
	parts := []string{a.Title, schema.Deref(a.Abstract), a.Notes}
	for _, e := range a.Excerpts {
		parts = append(parts, e.Quote, e.Comment)
	}
	return strings.Join(parts, " ")
}

func linkedToAny(a schema.Article, ids map[string]bool) bool {
	for _, id := range a.LinkedQuestions {
		if ids[id] {
			return true
		}
	}
	return false
}

func contains(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}

func anyContains(ss []string, lowerQuery string) bool {
	for _, s := range ss {
		if contains(s, lowerQuery) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
