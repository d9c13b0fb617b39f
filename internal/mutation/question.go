package mutation

import (
	"github.com/researchjournal/rj/internal/schema"
)

// SetStatus sets a question's research status.
func SetStatus(questionID string, status schema.QuestionStatus) Op {
	return func(prev *schema.Document) *schema.Document {
		return withQuestion(prev, questionID, func(qd schema.QuestionData) (schema.QuestionData, bool) {
			if qd.Status == status {
				return qd, false
			}
			qd.Status = status
			return qd, true
		})
	}
}

// ToggleStar flips a question's starred flag.
func ToggleStar(questionID string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withQuestion(prev, questionID, func(qd schema.QuestionData) (schema.QuestionData, bool) {
			qd.Starred = !qd.Starred
			return qd, true
		})
	}
}

// SetSearchPhrases replaces the suggested search phrases for a question.
func SetSearchPhrases(questionID string, phrases []string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withQuestion(prev, questionID, func(qd schema.QuestionData) (schema.QuestionData, bool) {
			if equalStrings(qd.SearchPhrases, phrases) {
				return qd, false
			}
			qd.SearchPhrases = append([]string(nil), phrases...)
			return qd, true
		})
	}
}

// AddNote prepends a note to a question.
func AddNote(questionID string, note schema.ResearchNote) Op {
	return func(prev *schema.Document) *schema.Document {
		return withQuestion(prev, questionID, func(qd schema.QuestionData) (schema.QuestionData, bool) {
			qd.Notes = prepend(qd.Notes, note)
			return qd, true
		})
	}
}

// UpdateNote replaces a note's content and restamps its updatedAt.
func UpdateNote(questionID, noteID, content string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withQuestion(prev, questionID, func(qd schema.QuestionData) (schema.QuestionData, bool) {
			idx := indexOf(qd.Notes, func(n schema.ResearchNote) bool { return n.ID == noteID })
			if idx < 0 || qd.Notes[idx].Content == content {
				return qd, false
			}
			n := qd.Notes[idx]
			n.Content = content
			n.UpdatedAt = now()
			qd.Notes = replaceAt(qd.Notes, idx, n)
			return qd, true
		})
	}
}

// DeleteNote removes a note from a question.
func DeleteNote(questionID, noteID string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withQuestion(prev, questionID, func(qd schema.QuestionData) (schema.QuestionData, bool) {
			var removed bool
			qd.Notes, removed = removeWhere(qd.Notes, func(n schema.ResearchNote) bool { return n.ID == noteID })
			return qd, removed
		})
	}
}

// AddSource appends a user citation to a question.
func AddSource(questionID string, src schema.UserSource) Op {
	return func(prev *schema.Document) *schema.Document {
		return withQuestion(prev, questionID, func(qd schema.QuestionData) (schema.QuestionData, bool) {
			qd.UserSources = appendCopy(qd.UserSources, src)
			return qd, true
		})
	}
}

// DeleteSource removes a user citation from a question.
func DeleteSource(questionID, sourceID string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withQuestion(prev, questionID, func(qd schema.QuestionData) (schema.QuestionData, bool) {
			var removed bool
			qd.UserSources, removed = removeWhere(qd.UserSources, func(s schema.UserSource) bool { return s.ID == sourceID })
			return qd, removed
		})
	}
}
