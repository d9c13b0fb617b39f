package schema

import (
	"strings"
	"time"
)

// QuestionRef is a question together with the theme that holds it.
type QuestionRef struct {
	ThemeID   string
	ThemeName string
	Question  Question
}

// QuestionData returns the user data for id, or the default when none exists.
func (d *Document) QuestionData(id string) QuestionData {
	if qd, ok := d.Questions[id]; ok {
		return qd
	}
	return DefaultQuestionData()
}

// FindQuestion looks a question up by id across all themes.
func (d *Document) FindQuestion(id string) (QuestionRef, bool) {
	for _, t := range d.Themes {
		for _, q := range t.Questions {
			if q.ID == id {
				return QuestionRef{ThemeID: t.ID, ThemeName: t.Theme, Question: q}, true
			}
		}
	}
	return QuestionRef{}, false
}

// FindTheme returns the index of the theme with id, or -1.
func (d *Document) FindTheme(id string) int {
	for i, t := range d.Themes {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// AllQuestions flattens every theme's questions in display order.
func (d *Document) AllQuestions() []QuestionRef {
	var refs []QuestionRef
	for _, t := range d.Themes {
		for _, q := range t.Questions {
			refs = append(refs, QuestionRef{ThemeID: t.ID, ThemeName: t.Theme, Question: q})
		}
	}
	return refs
}

// StatusCounts counts questions by status, including untouched ones as
// not started.
func (d *Document) StatusCounts() map[QuestionStatus]int {
	counts := make(map[QuestionStatus]int, len(QuestionStatuses))
	for _, s := range QuestionStatuses {
		counts[s] = 0
	}
	for _, ref := range d.AllQuestions() {
		counts[d.QuestionData(ref.Question.ID).Status]++
	}
	return counts
}

// TotalNotes counts research notes across all questions.
func (d *Document) TotalNotes() int {
	n := 0
	for _, qd := range d.Questions {
		n += len(qd.Notes)
	}
	return n
}

// StarredQuestions returns starred questions in display order.
func (d *Document) StarredQuestions() []QuestionRef {
	var refs []QuestionRef
	for _, ref := range d.AllQuestions() {
		if d.QuestionData(ref.Question.ID).Starred {
			refs = append(refs, ref)
		}
	}
	return refs
}

// IsInLibrary reports whether an article with the same DOI, or failing that
// the same title (case-insensitive), is already saved.
func (d *Document) IsInLibrary(doi, title string) bool {
	title = strings.TrimSpace(title)
	for _, a := range d.Library {
		if doi != "" && a.DOI != nil && strings.EqualFold(*a.DOI, doi) {
			return true
		}
		if title != "" && strings.EqualFold(strings.TrimSpace(a.Title), title) {
			return true
		}
	}
	return false
}

// FindArticle returns the article with id.
func (d *Document) FindArticle(id string) (*Article, bool) {
	for i := range d.Library {
		if d.Library[i].ID == id {
			return &d.Library[i], true
		}
	}
	return nil, false
}

// ArticlesForQuestion returns the articles linked to questionID.
func (d *Document) ArticlesForQuestion(questionID string) []Article {
	var out []Article
	for _, a := range d.Library {
		if a.IsLinked(questionID) {
			out = append(out, a)
		}
	}
	return out
}

// JournalSince returns journal entries created at or after since, newest first.
func (d *Document) JournalSince(since time.Time) []JournalEntry {
	var out []JournalEntry
	for _, e := range d.Journal {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out
}
