package schema

import (
	"time"

	"github.com/google/uuid"
)

// QuestionStatus tracks how far research on a question has progressed.
type QuestionStatus string

const (
	StatusNotStarted  QuestionStatus = "not_started"
	StatusExploring   QuestionStatus = "exploring"
	StatusHasFindings QuestionStatus = "has_findings"
	StatusConcluded   QuestionStatus = "concluded"
)

// QuestionStatuses lists every status in display order.
var QuestionStatuses = []QuestionStatus{StatusNotStarted, StatusExploring, StatusHasFindings, StatusConcluded}

// IsValid reports whether s is a known status.
func (s QuestionStatus) IsValid() bool {
	for _, known := range QuestionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns the human readable form used in exports.
func (s QuestionStatus) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not Started"
	case StatusExploring:
		return "Exploring"
	case StatusHasFindings:
		return "Has Findings"
	case StatusConcluded:
		return "Concluded"
	default:
		return string(s)
	}
}

// ArticleStatus is the reading state of a library article.
type ArticleStatus string

const (
	ArticleToRead    ArticleStatus = "to-read"
	ArticleReading   ArticleStatus = "reading"
	ArticleDone      ArticleStatus = "done"
	ArticleKeySource ArticleStatus = "key-source"
)

// ArticleStatuses lists every article status.
var ArticleStatuses = []ArticleStatus{ArticleToRead, ArticleReading, ArticleDone, ArticleKeySource}

// IsValid reports whether s is a known article status.
func (s ArticleStatus) IsValid() bool {
	for _, known := range ArticleStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ===== Themes (editable structure + seed research content) =====

// Source is a citation attached to a seeded or user-defined question.
type Source struct {
	Text string  `json:"text" validate:"required"`
	DOI  *string `json:"doi"`
}

// Question is a research prompt inside a theme.
// Its ID keys QuestionData and is referenced by journal entries and articles.
type Question struct {
	ID             string   `json:"id" validate:"required"`
	Q              string   `json:"q" validate:"required"`
	Why            string   `json:"why"`
	AppImplication string   `json:"appImplication"`
	Tags           []string `json:"tags"`
	Sources        []Source `json:"sources" validate:"dive"`
}

// Theme groups questions under a coloured, iconified heading.
type Theme struct {
	ID          string     `json:"id" validate:"required"`
	Theme       string     `json:"theme" validate:"required"`
	Color       string     `json:"color"`
	Icon        string     `json:"icon"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions" validate:"dive"`
}

// ===== Per-question user data =====

// ResearchNote is a markdown note on a question.
// UpdatedAt equals CreatedAt until the note is edited.
type ResearchNote struct {
	ID        string    `json:"id" validate:"required"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Edited reports whether the note changed after creation.
func (n ResearchNote) Edited() bool {
	return n.UpdatedAt.After(n.CreatedAt)
}

// UserSource is a citation the user added while researching a question.
type UserSource struct {
	ID      string    `json:"id" validate:"required"`
	Text    string    `json:"text" validate:"required"`
	DOI     *string   `json:"doi"`
	URL     *string   `json:"url"`
	Notes   string    `json:"notes"`
	AddedAt time.Time `json:"addedAt"`
}

// QuestionData is the user's state for one question. Absent entries in
// Document.Questions mean DefaultQuestionData().
type QuestionData struct {
	Status        QuestionStatus `json:"status" validate:"oneof=not_started exploring has_findings concluded"`
	Starred       bool           `json:"starred"`
	Notes         []ResearchNote `json:"notes" validate:"dive"`
	UserSources   []UserSource   `json:"userSources" validate:"dive"`
	SearchPhrases []string       `json:"searchPhrases,omitempty"`
}

// DefaultQuestionData returns the implied state of a question nobody touched yet.
func DefaultQuestionData() QuestionData {
	return QuestionData{
		Status:      StatusNotStarted,
		Notes:       []ResearchNote{},
		UserSources: []UserSource{},
	}
}

// ===== Journal =====

// JournalEntry is a free-form dated entry. QuestionID and ThemeID are weak
// references and may point at deleted entities.
type JournalEntry struct {
	ID         string    `json:"id" validate:"required"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	QuestionID *string   `json:"questionId"`
	ThemeID    *string   `json:"themeId"`
	Tags       []string  `json:"tags"`
}

// ===== Library =====

// Excerpt is a quoted passage from an article with the user's comment.
type Excerpt struct {
	ID        string    `json:"id" validate:"required"`
	Quote     string    `json:"quote" validate:"required"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Article is a saved reference work.
type Article struct {
	ID              string        `json:"id" validate:"required"`
	Title           string        `json:"title" validate:"required"`
	Authors         []string      `json:"authors"`
	Year            *int          `json:"year"`
	Journal         *string       `json:"journal"`
	DOI             *string       `json:"doi"`
	URL             *string       `json:"url"`
	Abstract        *string       `json:"abstract"`
	Notes           string        `json:"notes"`
	Excerpts        []Excerpt     `json:"excerpts" validate:"dive"`
	LinkedQuestions []string      `json:"linkedQuestions"`
	Status          ArticleStatus `json:"status" validate:"oneof=to-read reading done key-source"`
	Tags            []string      `json:"tags"`
	AISummary       *string       `json:"aiSummary"`
	IsOpenAccess    bool          `json:"isOpenAccess"`
	SavedAt         time.Time     `json:"savedAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// IsLinked reports whether questionID is in the article's linked questions.
func (a *Article) IsLinked(questionID string) bool {
	for _, id := range a.LinkedQuestions {
		if id == questionID {
			return true
		}
	}
	return false
}

// ===== Root aggregate =====

// Document is the whole of a user's research data.
type Document struct {
	Version      int                     `json:"version" validate:"min=1"`
	Themes       []Theme                 `json:"themes" validate:"dive"`
	Questions    map[string]QuestionData `json:"questions" validate:"dive"`
	Journal      []JournalEntry          `json:"journal" validate:"dive"`
	Library      []Article               `json:"library" validate:"dive"`
	LastModified time.Time               `json:"lastModified"`
}

// NewID returns a fresh client-side identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time in UTC, the form every timestamp is stored in.
func Now() time.Time {
	return time.Now().UTC()
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
