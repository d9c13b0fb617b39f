// Package export renders the research journal as Markdown.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/researchjournal/rj/internal/schema"
)

// ErrQuestionNotFound is returned by QuestionMarkdown for an unknown id.
var ErrQuestionNotFound = errors.New("question not found")

const (
	longDate  = "January 2, 2006"
	shortDate = "Jan 2, 2006"
)

type lines struct {
	b strings.Builder
}

func (l *lines) add(format string, args ...any) {
	fmt.Fprintf(&l.b, format, args...)
	l.b.WriteByte('\n')
}

func (l *lines) raw(s string) {
	l.b.WriteString(s)
	l.b.WriteByte('\n')
}

func (l *lines) blank() { l.b.WriteByte('\n') }

// Markdown renders every theme, question, note, source, journal entry and
// library article.
func Markdown(doc *schema.Document, now time.Time) string {
	var l lines
	l.add("# Research Journal")
	l.blank()
	l.add("Exported: %s", now.Format(longDate))
	l.blank()

	for _, t := range doc.Themes {
		l.add("## %s", strings.TrimSpace(t.Icon+" "+t.Theme))
		l.blank()
		if t.Description != "" {
			l.add("*%s*", t.Description)
			l.blank()
		}

		for i, q := range t.Questions {
			qd, hasData := doc.Questions[q.ID]
			l.add("### Q%d: %s", i+1, q.Q)
			l.blank()
			if hasData {
				l.add("**Status:** %s", qd.Status.Label())
				l.blank()
			}
			if q.Why != "" {
				l.add("**Why it matters:** %s", q.Why)
				l.blank()
			}
			if q.AppImplication != "" {
				l.add("**Implication:** %s", q.AppImplication)
				l.blank()
			}

			l.add("**Sources:**")
			writeSources(&l, q.Sources)
			if len(qd.UserSources) > 0 {
				l.blank()
				l.add("**User-added sources:**")
				writeUserSources(&l, qd.UserSources)
			}
			l.blank()

			if len(qd.Notes) > 0 {
				l.add("**Research Notes:**")
				l.blank()
				for _, n := range qd.Notes {
					l.add("#### %s", n.CreatedAt.Format(shortDate))
					l.blank()
					l.raw(n.Content)
					l.blank()
				}
			}

			l.add("---")
			l.blank()
		}
	}

	if len(doc.Journal) > 0 {
		l.add("## Journal Entries")
		l.blank()
		for _, e := range doc.Journal {
			l.add("### %s", e.CreatedAt.Format(shortDate))
			if len(e.Tags) > 0 {
				l.add("*Tags: %s*", strings.Join(e.Tags, ", "))
			}
			l.blank()
			l.raw(e.Content)
			l.blank()
			l.add("---")
			l.blank()
		}
	}

	if len(doc.Library) > 0 {
		l.add("## Library")
		l.blank()
		for _, a := range doc.Library {
			writeArticle(&l, a)
		}
	}

	return l.b.String()
}

// QuestionMarkdown renders a single question with its notes and sources.
func QuestionMarkdown(doc *schema.Document, questionID string) (string, error) {
	ref, ok := doc.FindQuestion(questionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}
	q := ref.Question
	qd, hasData := doc.Questions[q.ID]

	var l lines
	l.add("# %s", q.Q)
	l.blank()
	l.add("*Theme: %s*", ref.ThemeName)
	l.add("*Tags: %s*", strings.Join(q.Tags, ", "))
	if hasData {
		l.add("*Status: %s*", qd.Status.Label())
	}
	l.blank()

	l.add("## Why This Matters")
	l.blank()
	l.raw(q.Why)
	l.blank()
	l.add("## Implication")
	l.blank()
	l.raw(q.AppImplication)
	l.blank()

	l.add("## Sources")
	l.blank()
	writeSources(&l, q.Sources)
	if len(qd.UserSources) > 0 {
		l.blank()
		l.add("### Added During Research")
		writeUserSources(&l, qd.UserSources)
	}
	l.blank()

	if len(qd.Notes) > 0 {
		l.add("## Research Notes")
		l.blank()
		for _, n := range qd.Notes {
			l.add("### %s", n.CreatedAt.Format(shortDate))
			l.blank()
			l.raw(n.Content)
			l.blank()
			l.add("---")
			l.blank()
		}
	}

	if articles := doc.ArticlesForQuestion(q.ID); len(articles) > 0 {
		l.add("## Linked Articles")
		l.blank()
		for _, a := range articles {
			l.add("- %s", articleLine(a))
		}
		l.blank()
	}

	return l.b.String(), nil
}

func writeSources(l *lines, sources []schema.Source) {
	for _, s := range sources {
		if doi := schema.Deref(s.DOI); doi != "" {
			l.add("- %s ([DOI](https://doi.org/%s))", s.Text, doi)
		} else {
			l.add("- %s", s.Text)
		}
	}
}

func writeUserSources(l *lines, sources []schema.UserSource) {
	for _, s := range sources {
		link := ""
		if doi := schema.Deref(s.DOI); doi != "" {
			link = fmt.Sprintf("([DOI](https://doi.org/%s))", doi)
		} else if u := schema.Deref(s.URL); u != "" {
			link = fmt.Sprintf("([Link](%s))", u)
		}
		l.add("%s", strings.TrimSpace("- "+s.Text+" "+link))
		if s.Notes != "" {
			l.add("  - *%s*", s.Notes)
		}
	}
}

func writeArticle(l *lines, a schema.Article) {
	l.add("### %s", articleLine(a))
	l.blank()
	l.add("**Status:** %s", a.Status)
	if len(a.Tags) > 0 {
		l.add("*Tags: %s*", strings.Join(a.Tags, ", "))
	}
	l.blank()
	if s := schema.Deref(a.AISummary); s != "" {
		l.add("**Summary:** %s", s)
		l.blank()
	}
	if a.Notes != "" {
		l.raw(a.Notes)
		l.blank()
	}
	for _, e := range a.Excerpts {
		l.add("> %s", e.Quote)
		if e.Comment != "" {
			l.blank()
			l.add("*%s*", e.Comment)
		}
		l.blank()
	}
	l.add("---")
	l.blank()
}

func articleLine(a schema.Article) string {
	var b strings.Builder
	b.WriteString(a.Title)
	if len(a.Authors) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(a.Authors, ", "))
		if a.Year != nil {
			fmt.Fprintf(&b, ", %d", *a.Year)
		}
		b.WriteString(")")
	} else if a.Year != nil {
		fmt.Fprintf(&b, " (%d)", *a.Year)
	}
	if doi := schema.Deref(a.DOI); doi != "" {
		fmt.Fprintf(&b, " [DOI](https://doi.org/%s)", doi)
	} else if u := schema.Deref(a.URL); u != "" {
		fmt.Fprintf(&b, " [Link](%s)", u)
	}
	return b.String()
}
