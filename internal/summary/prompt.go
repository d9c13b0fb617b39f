package summary

import (
	"fmt"
	"strings"

	"github.com/researchjournal/rj/internal/schema"
)

// SummaryPrompt builds the research-assistant prompt for an article.
func SummaryPrompt(a schema.Article, questions []string) string {
	var b strings.Builder
	b.WriteString("You are a research assistant helping a student analyse academic papers for their own research project.\n\n")
	b.WriteString("Summarise this paper in 3-4 concise paragraphs covering what the study found (findings, methods, conclusions), ")
	b.WriteString("how it relates to the researcher's questions, and what it implies in practice.\n\n")
	fmt.Fprintf(&b, "Paper: %q", a.Title)

	if len(a.Authors) > 0 {
		fmt.Fprintf(&b, "\nAuthors: %s", strings.Join(a.Authors, ", "))
	}
	if a.Year != nil {
		fmt.Fprintf(&b, "\nYear: %d", *a.Year)
	}
	if a.Journal != nil && *a.Journal != "" {
		fmt.Fprintf(&b, "\nJournal: %s", *a.Journal)
	}
	if a.Abstract != nil && *a.Abstract != "" {
		fmt.Fprintf(&b, "\n\nAbstract:\n%s", *a.Abstract)
	}
	if len(a.Excerpts) > 0 {
		b.WriteString("\n\nUser-highlighted excerpts:")
		for _, e := range a.Excerpts {
			fmt.Fprintf(&b, "\n- %q", e.Quote)
			if e.Comment != "" {
				fmt.Fprintf(&b, " (note: %s)", e.Comment)
			}
		}
	}
	if len(questions) > 0 {
		b.WriteString("\n\nResearch questions this paper is linked to:")
		for _, q := range questions {
			fmt.Fprintf(&b, "\n- %s", q)
		}
	}

	b.WriteString("\n\nKeep the summary focused. Write in plain academic English, not bullet points, and do not repeat the abstract verbatim.")
	return b.String()
}

// PhrasesPrompt builds the prompt asking for search phrases for a question.
func PhrasesPrompt(ref schema.QuestionRef) string {
	q := ref.Question
	var b strings.Builder
	b.WriteString("You are a research assistant helping a student find peer-reviewed papers. ")
	b.WriteString("Given a research question, generate 4-5 concise academic search phrases for a scholarly search engine.\n\n")
	fmt.Fprintf(&b, "Research question: %q\n\n", q.Q)
	if q.Why != "" {
		fmt.Fprintf(&b, "Why this matters:\n%s\n\n", q.Why)
	}
	if q.AppImplication != "" {
		fmt.Fprintf(&b, "Application context:\n%s\n\n", q.AppImplication)
	}
	if len(q.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(q.Tags, ", "))
	}
	fmt.Fprintf(&b, "Research theme: %s\n\n", ref.ThemeName)
	b.WriteString("Rules:\n")
	b.WriteString("- Each phrase should be 3-6 words\n")
	b.WriteString("- Use precise academic terminology\n")
	b.WriteString("- Do not use quotes or search operators\n")
	b.WriteString("- Return only the phrases, one per line, without numbering")
	return b.String()
}
