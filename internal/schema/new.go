package schema

import "strings"

// NewNote creates a research note stamped now.
func NewNote(content string) ResearchNote {
	now := Now()
	return ResearchNote{ID: NewID(), Content: content, CreatedAt: now, UpdatedAt: now}
}

// NewUserSource creates a user citation. Empty doi or url are stored as null.
func NewUserSource(text, doi, url, notes string) UserSource {
	return UserSource{
		ID:      NewID(),
		Text:    text,
		DOI:     StringPtr(doi),
		URL:     StringPtr(url),
		Notes:   notes,
		AddedAt: Now(),
	}
}

// NewJournalEntry creates a journal entry optionally tied to a question or theme.
func NewJournalEntry(content, questionID, themeID string, tags []string) JournalEntry {
	now := Now()
	if tags == nil {
		tags = []string{}
	}
	return JournalEntry{
		ID:         NewID(),
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
		QuestionID: StringPtr(questionID),
		ThemeID:    StringPtr(themeID),
		Tags:       tags,
	}
}

// ArticleInput carries the bibliographic fields supplied when saving an article.
type ArticleInput struct {
	Title        string
	Authors      []string
	Year         *int
	Journal      string
	DOI          string
	URL          string
	Abstract     string
	IsOpenAccess bool
	Status       ArticleStatus
}

// NewArticle creates a library article with empty user fields.
// Status defaults to to-read.
func NewArticle(in ArticleInput) Article {
	now := Now()
	status := in.Status
	if status == "" {
		status = ArticleToRead
	}
	authors := in.Authors
	if authors == nil {
		authors = []string{}
	}
	return Article{
		ID:              NewID(),
		Title:           strings.TrimSpace(in.Title),
		Authors:         authors,
		Year:            in.Year,
		Journal:         StringPtr(in.Journal),
		DOI:             StringPtr(in.DOI),
		URL:             StringPtr(in.URL),
		Abstract:        StringPtr(in.Abstract),
		Notes:           "",
		Excerpts:        []Excerpt{},
		LinkedQuestions: []string{},
		Status:          status,
		Tags:            []string{},
		AISummary:       nil,
		IsOpenAccess:    in.IsOpenAccess,
		SavedAt:         now,
		UpdatedAt:       now,
	}
}

// NewExcerpt creates an excerpt stamped now.
func NewExcerpt(quote, comment string) Excerpt {
	return Excerpt{ID: NewID(), Quote: quote, Comment: comment, CreatedAt: Now()}
}

// NewTheme creates an empty theme.
func NewTheme(name, color, icon, description string) Theme {
	return Theme{
		ID:          NewID(),
		Theme:       name,
		Color:       color,
		Icon:        icon,
		Description: description,
		Questions:   []Question{},
	}
}

// NewQuestion creates a question without sources.
func NewQuestion(q, why, appImplication string, tags []string) Question {
	if tags == nil {
		tags = []string{}
	}
	return Question{
		ID:             NewID(),
		Q:              q,
		Why:            why,
		AppImplication: appImplication,
		Tags:           tags,
		Sources:        []Source{},
	}
}
