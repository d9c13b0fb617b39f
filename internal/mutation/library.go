package mutation

import (
	"strings"

	"github.com/researchjournal/rj/internal/schema"
)

// AddArticle prepends an article to the library.
func AddArticle(a schema.Article) Op {
	return func(prev *schema.Document) *schema.Document {
		next := clone(prev)
		next.Library = prepend(prev.Library, a)
		return next
	}
}

// UpdateArticleStatus sets an article's reading status.
func UpdateArticleStatus(id string, status schema.ArticleStatus) Op {
	return func(prev *schema.Document) *schema.Document {
		return withArticle(prev, id, func(a schema.Article) (schema.Article, bool) {
			if a.Status == status {
				return a, false
			}
			a.Status = status
			return a, true
		})
	}
}

// UpdateArticleNotes replaces an article's notes.
func UpdateArticleNotes(id, notes string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withArticle(prev, id, func(a schema.Article) (schema.Article, bool) {
			if a.Notes == notes {
				return a, false
			}
			a.Notes = notes
			return a, true
		})
	}
}

// AppendArticleNotes adds text on a new line after the existing notes.
func AppendArticleNotes(id, text string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withArticle(prev, id, func(a schema.Article) (schema.Article, bool) {
			text = strings.TrimSpace(text)
			if text == "" {
				return a, false
			}
			if a.Notes == "" {
				a.Notes = text
			} else {
				a.Notes = a.Notes + "\n" + text
			}
			return a, true
		})
	}
}

// SetArticleTags replaces an article's tags.
func SetArticleTags(id string, tags []string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withArticle(prev, id, func(a schema.Article) (schema.Article, bool) {
			if equalStrings(a.Tags, tags) {
				return a, false
			}
			a.Tags = append([]string{}, tags...)
			return a, true
		})
	}
}

// SetAISummary stores a generated summary. An empty summary clears it.
func SetAISummary(id, summary string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withArticle(prev, id, func(a schema.Article) (schema.Article, bool) {
			if schema.Deref(a.AISummary) == summary {
				return a, false
			}
			a.AISummary = schema.StringPtr(summary)
			return a, true
		})
	}
}

// DeleteArticle removes an article from the library.
func DeleteArticle(id string) Op {
	return func(prev *schema.Document) *schema.Document {
		library, removed := removeWhere(prev.Library, func(a schema.Article) bool { return a.ID == id })
		if !removed {
			return prev
		}
		next := clone(prev)
		next.Library = library
		return next
	}
}

// AddExcerpt appends an excerpt to an article.
func AddExcerpt(articleID string, ex schema.Excerpt) Op {
	return func(prev *schema.Document) *schema.Document {
		return withArticle(prev, articleID, func(a schema.Article) (schema.Article, bool) {
			a.Excerpts = appendCopy(a.Excerpts, ex)
			return a, true
		})
	}
}

// DeleteExcerpt removes an excerpt from an article.
func DeleteExcerpt(articleID, excerptID string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withArticle(prev, articleID, func(a schema.Article) (schema.Article, bool) {
			var removed bool
			a.Excerpts, removed = removeWhere(a.Excerpts, func(e schema.Excerpt) bool { return e.ID == excerptID })
			return a, removed
		})
	}
}

// LinkQuestion links an article to a question. Linking twice is a no-op.
func LinkQuestion(articleID, questionID string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withArticle(prev, articleID, func(a schema.Article) (schema.Article, bool) {
			if a.IsLinked(questionID) {
				return a, false
			}
			a.LinkedQuestions = appendCopy(a.LinkedQuestions, questionID)
			return a, true
		})
	}
}

// UnlinkQuestion removes a question link. Unlinking an absent link is a no-op.
func UnlinkQuestion(articleID, questionID string) Op {
	return func(prev *schema.Document) *schema.Document {
		return withArticle(prev, articleID, func(a schema.Article) (schema.Article, bool) {
			var removed bool
			a.LinkedQuestions, removed = removeWhere(a.LinkedQuestions, func(id string) bool { return id == questionID })
			return a, removed
		})
	}
}
