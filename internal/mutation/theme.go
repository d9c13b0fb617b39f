package mutation

import (
	"github.com/researchjournal/rj/internal/schema"
)

// ThemeEdit holds the editable fields of a theme.
type ThemeEdit struct {
	Name        string
	Color       string
	Icon        string
	Description string
}

// QuestionEdit holds the editable fields of a question.
type QuestionEdit struct {
	Q              string
	Why            string
	AppImplication string
	Tags           []string
}

// AddTheme appends a theme.
func AddTheme(t schema.Theme) Op {
	return func(prev *schema.Document) *schema.Document {
		next := clone(prev)
		next.Themes = appendCopy(prev.Themes, t)
		return next
	}
}

// UpdateTheme replaces a theme's display fields. Questions are kept.
func UpdateTheme(id string, edit ThemeEdit) Op {
	return func(prev *schema.Document) *schema.Document {
		idx := prev.FindTheme(id)
		if idx < 0 {
			return prev
		}
		t := prev.Themes[idx]
		if t.Theme == edit.Name && t.Color == edit.Color && t.Icon == edit.Icon && t.Description == edit.Description {
			return prev
		}
		t.Theme, t.Color, t.Icon, t.Description = edit.Name, edit.Color, edit.Icon, edit.Description
		next := clone(prev)
		next.Themes = replaceAt(prev.Themes, idx, t)
		return next
	}
}

// DeleteTheme removes a theme, the user data of all its questions and every
// library link to them.
func DeleteTheme(id string) Op {
	return func(prev *schema.Document) *schema.Document {
		idx := prev.FindTheme(id)
		if idx < 0 {
			return prev
		}
		removed := make(map[string]bool, len(prev.Themes[idx].Questions))
		for _, q := range prev.Themes[idx].Questions {
			removed[q.ID] = true
		}
		next := clone(prev)
		next.Themes, _ = removeWhere(prev.Themes, func(t schema.Theme) bool { return t.ID == id })
		purgeQuestions(next, removed)
		return next
	}
}

// AddQuestion appends a question to a theme.
func AddQuestion(themeID string, q schema.Question) Op {
	return func(prev *schema.Document) *schema.Document {
		idx := prev.FindTheme(themeID)
		if idx < 0 {
			return prev
		}
		t := prev.Themes[idx]
		t.Questions = appendCopy(t.Questions, q)
		next := clone(prev)
		next.Themes = replaceAt(prev.Themes, idx, t)
		return next
	}
}

// UpdateQuestion replaces a question's text fields. Its id and sources are kept.
func UpdateQuestion(questionID string, edit QuestionEdit) Op {
	return func(prev *schema.Document) *schema.Document {
		ti, qi := locateQuestion(prev, questionID)
		if ti < 0 {
			return prev
		}
		t := prev.Themes[ti]
		q := t.Questions[qi]
		tags := edit.Tags
		if tags == nil {
			tags = []string{}
		}
		if q.Q == edit.Q && q.Why == edit.Why && q.AppImplication == edit.AppImplication && equalStrings(q.Tags, tags) {
			return prev
		}
		q.Q, q.Why, q.AppImplication, q.Tags = edit.Q, edit.Why, edit.AppImplication, append([]string{}, tags...)
		t.Questions = replaceAt(t.Questions, qi, q)
		next := clone(prev)
		next.Themes = replaceAt(prev.Themes, ti, t)
		return next
	}
}

// DeleteQuestion removes a question with its user data and library links.
func DeleteQuestion(questionID string) Op {
	return func(prev *schema.Document) *schema.Document {
		ti, _ := locateQuestion(prev, questionID)
		if ti < 0 {
			return prev
		}
		t := prev.Themes[ti]
		t.Questions, _ = removeWhere(t.Questions, func(q schema.Question) bool { return q.ID == questionID })
		next := clone(prev)
		next.Themes = replaceAt(prev.Themes, ti, t)
		purgeQuestions(next, map[string]bool{questionID: true})
		return next
	}
}

func locateQuestion(doc *schema.Document, id string) (int, int) {
	for ti, t := range doc.Themes {
		for qi, q := range t.Questions {
			if q.ID == id {
				return ti, qi
			}
		}
	}
	return -1, -1
}

// purgeQuestions drops question data and article links for ids. next must
// already be a clone; its Questions and Library are rebuilt, never mutated.
// Articles losing a link keep their updatedAt. Journal references stay.
func purgeQuestions(next *schema.Document, ids map[string]bool) {
	if len(ids) == 0 {
		return
	}
	questions := make(map[string]schema.QuestionData, len(next.Questions))
	for k, v := range next.Questions {
		if !ids[k] {
			questions[k] = v
		}
	}
	next.Questions = questions

	library := make([]schema.Article, len(next.Library))
	for i, a := range next.Library {
		if links, removed := removeWhere(a.LinkedQuestions, func(id string) bool { return ids[id] }); removed {
			a.LinkedQuestions = links
		}
		library[i] = a
	}
	next.Library = library
}
