package mutation

import (
	"testing"
	"time"

	"github.com/researchjournal/rj/internal/schema"
)

// fixedClock pins now() for the duration of a test.
func fixedClock(t *testing.T, ts time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = orig })
}

func setupDoc(t *testing.T) *schema.Document {
	t.Helper()
	doc := schema.Seed()
	if len(doc.Themes) < 2 {
		t.Fatal("seed must carry at least two themes")
	}
	return doc
}

func TestAddNote_UpsertsDefault(t *testing.T) {
	doc := setupDoc(t)
	note := schema.NewNote("test")

	next := AddNote("q1", note)(doc)
	if next == doc {
		t.Fatal("expected a new document")
	}
	qd := next.QuestionData("q1")
	if qd.Status != schema.StatusNotStarted {
		t.Errorf("expected not_started, got %s", qd.Status)
	}
	if len(qd.Notes) != 1 || qd.Notes[0].Content != "test" {
		t.Errorf("unexpected notes: %+v", qd.Notes)
	}
	if _, ok := doc.Questions["q1"]; ok {
		t.Error("input document was modified")
	}
}

func TestNotes_OrderAndEdit(t *testing.T) {
	doc := setupDoc(t)
	first := schema.NewNote("first")
	second := schema.NewNote("second")
	doc = Chain(AddNote("q", first), AddNote("q", second))(doc)

	notes := doc.QuestionData("q").Notes
	if notes[0].ID != second.ID {
		t.Error("expected newest note first")
	}

	later := first.CreatedAt.Add(time.Hour)
	fixedClock(t, later)
	edited := UpdateNote("q", first.ID, "changed")(doc)
	got := edited.QuestionData("q").Notes[1]
	if got.Content != "changed" || !got.UpdatedAt.Equal(later) || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("unexpected edited note: %+v", got)
	}
	if !got.Edited() {
		t.Error("expected note to report edited")
	}
	if doc.QuestionData("q").Notes[1].Content != "first" {
		t.Error("input document was modified")
	}

	if UpdateNote("q", first.ID, "first")(doc) != doc {
		t.Error("identical content should be a no-op")
	}
	if UpdateNote("q", "missing", "x")(doc) != doc {
		t.Error("unknown note should be a no-op")
	}

	deleted := DeleteNote("q", first.ID)(doc)
	if len(deleted.QuestionData("q").Notes) != 1 {
		t.Error("expected note removed")
	}
	if DeleteNote("q", "missing")(doc) != doc {
		t.Error("deleting an unknown note should be a no-op")
	}
}

func TestSourcesAppend(t *testing.T) {
	doc := setupDoc(t)
	a := schema.NewUserSource("A", "", "", "")
	b := schema.NewUserSource("B", "", "", "")
	doc = Chain(AddSource("q", a), AddSource("q", b))(doc)

	srcs := doc.QuestionData("q").UserSources
	if len(srcs) != 2 || srcs[0].ID != a.ID {
		t.Errorf("expected insertion order, got %+v", srcs)
	}
	doc = DeleteSource("q", a.ID)(doc)
	if len(doc.QuestionData("q").UserSources) != 1 {
		t.Error("expected source removed")
	}
}

func TestSetStatusAndStar(t *testing.T) {
	doc := setupDoc(t)
	if SetStatus("q", schema.StatusNotStarted)(doc) != doc {
		t.Error("setting the default status should be a no-op")
	}
	doc = SetStatus("q", schema.StatusExploring)(doc)
	if doc.QuestionData("q").Status != schema.StatusExploring {
		t.Error("status not set")
	}
	doc = ToggleStar("q")(doc)
	if !doc.QuestionData("q").Starred {
		t.Error("expected starred")
	}
	doc = ToggleStar("q")(doc)
	if doc.QuestionData("q").Starred {
		t.Error("expected unstarred")
	}
	doc = SetSearchPhrases("q", []string{"a", "b"})(doc)
	if SetSearchPhrases("q", []string{"a", "b"})(doc) != doc {
		t.Error("same phrases should be a no-op")
	}
}

func TestJournal(t *testing.T) {
	doc := setupDoc(t)
	e1 := schema.NewJournalEntry("one", "", "", nil)
	e2 := schema.NewJournalEntry("two", "gone-question", "", []string{"x"})
	doc = Chain(AddJournalEntry(e1), AddJournalEntry(e2))(doc)
	if doc.Journal[0].ID != e2.ID {
		t.Error("expected newest entry first")
	}

	doc = UpdateJournalEntry(e1.ID, "uno", nil)(doc)
	if doc.Journal[1].Content != "uno" || len(doc.Journal[1].Tags) != 0 {
		t.Errorf("unexpected entry: %+v", doc.Journal[1])
	}
	if UpdateJournalEntry(e1.ID, "uno", nil)(doc) != doc {
		t.Error("identical update should be a no-op")
	}
	doc = DeleteJournalEntry(e1.ID)(doc)
	if len(doc.Journal) != 1 {
		t.Error("expected entry removed")
	}
}

func TestLinkIdempotent(t *testing.T) {
	doc := setupDoc(t)
	a := schema.NewArticle(schema.ArticleInput{Title: "Paper"})
	doc = AddArticle(a)(doc)

	once := LinkQuestion(a.ID, "q1")(doc)
	twice := LinkQuestion(a.ID, "q1")(once)
	if twice != once {
		t.Error("second link should return the same document")
	}
	got, _ := twice.FindArticle(a.ID)
	if len(got.LinkedQuestions) != 1 {
		t.Errorf("expected one link, got %v", got.LinkedQuestions)
	}

	if UnlinkQuestion(a.ID, "q2")(once) != once {
		t.Error("unlinking an absent link should be a no-op")
	}
	unlinked := UnlinkQuestion(a.ID, "q1")(once)
	got, _ = unlinked.FindArticle(a.ID)
	if len(got.LinkedQuestions) != 0 {
		t.Error("expected link removed")
	}
	orig, _ := once.FindArticle(a.ID)
	if len(orig.LinkedQuestions) != 1 {
		t.Error("input document was modified")
	}
}

func TestLibraryOps(t *testing.T) {
	doc := setupDoc(t)
	a := schema.NewArticle(schema.ArticleInput{Title: "A"})
	b := schema.NewArticle(schema.ArticleInput{Title: "B"})
	doc = Chain(AddArticle(a), AddArticle(b))(doc)
	if doc.Library[0].ID != b.ID {
		t.Error("expected newest article first")
	}

	later := a.SavedAt.Add(time.Minute)
	fixedClock(t, later)

	doc = UpdateArticleStatus(a.ID, schema.ArticleReading)(doc)
	got, _ := doc.FindArticle(a.ID)
	if got.Status != schema.ArticleReading || !got.UpdatedAt.Equal(later) {
		t.Errorf("unexpected article: %+v", got)
	}
	if UpdateArticleStatus(a.ID, schema.ArticleReading)(doc) != doc {
		t.Error("same status should be a no-op")
	}

	doc = Chain(AppendArticleNotes(a.ID, "one"), AppendArticleNotes(a.ID, "two"))(doc)
	got, _ = doc.FindArticle(a.ID)
	if got.Notes != "one\ntwo" {
		t.Errorf("unexpected notes %q", got.Notes)
	}

	e1 := schema.NewExcerpt("q1", "")
	e2 := schema.NewExcerpt("q2", "")
	doc = Chain(AddExcerpt(a.ID, e1), AddExcerpt(a.ID, e2))(doc)
	got, _ = doc.FindArticle(a.ID)
	if len(got.Excerpts) != 2 || got.Excerpts[0].ID != e1.ID {
		t.Error("expected excerpts in insertion order")
	}
	doc = DeleteExcerpt(a.ID, e1.ID)(doc)
	got, _ = doc.FindArticle(a.ID)
	if len(got.Excerpts) != 1 {
		t.Error("expected excerpt removed")
	}

	doc = SetAISummary(a.ID, "summary")(doc)
	got, _ = doc.FindArticle(a.ID)
	if schema.Deref(got.AISummary) != "summary" {
		t.Error("summary not stored")
	}
	doc = SetArticleTags(a.ID, []string{"x"})(doc)

	doc = DeleteArticle(a.ID)(doc)
	if _, ok := doc.FindArticle(a.ID); ok {
		t.Error("expected article removed")
	}
	if DeleteArticle("missing")(doc) != doc {
		t.Error("deleting an unknown article should be a no-op")
	}
}

func TestDeleteTheme_Cascade(t *testing.T) {
	doc := setupDoc(t)
	theme := doc.Themes[0]
	other := doc.Themes[1].Questions[0].ID

	var ops []Op
	for _, q := range theme.Questions {
		ops = append(ops, AddNote(q.ID, schema.NewNote("n")))
	}
	ops = append(ops, AddNote(other, schema.NewNote("keep")))
	a := schema.NewArticle(schema.ArticleInput{Title: "Linked"})
	ops = append(ops, AddArticle(a), LinkQuestion(a.ID, other))
	for _, q := range theme.Questions {
		ops = append(ops, LinkQuestion(a.ID, q.ID))
	}
	doc = Chain(ops...)(doc)
	before, _ := doc.FindArticle(a.ID)

	next := DeleteTheme(theme.ID)(doc)

	if next.FindTheme(theme.ID) >= 0 {
		t.Error("theme still present")
	}
	for _, q := range theme.Questions {
		if _, ok := next.Questions[q.ID]; ok {
			t.Errorf("question data for %s not removed", q.ID)
		}
	}
	if _, ok := next.Questions[other]; !ok {
		t.Error("unrelated question data removed")
	}
	got, _ := next.FindArticle(a.ID)
	if len(got.LinkedQuestions) != 1 || got.LinkedQuestions[0] != other {
		t.Errorf("unexpected links: %v", got.LinkedQuestions)
	}
	if !got.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("cascade should not restamp articles")
	}

	// Input untouched.
	if doc.FindTheme(theme.ID) < 0 || len(before.LinkedQuestions) != len(theme.Questions)+1 {
		t.Error("input document was modified")
	}
}

func TestQuestionStructure(t *testing.T) {
	doc := setupDoc(t)
	themeID := doc.Themes[0].ID
	q := schema.NewQuestion("Why?", "", "", nil)

	doc = AddQuestion(themeID, q)(doc)
	if _, ok := doc.FindQuestion(q.ID); !ok {
		t.Fatal("question not added")
	}
	if AddQuestion("missing", q)(doc) != doc {
		t.Error("adding to an unknown theme should be a no-op")
	}

	doc = UpdateQuestion(q.ID, QuestionEdit{Q: "How?", Tags: []string{"t"}})(doc)
	ref, _ := doc.FindQuestion(q.ID)
	if ref.Question.Q != "How?" {
		t.Error("question not updated")
	}

	a := schema.NewArticle(schema.ArticleInput{Title: "A"})
	doc = Chain(AddNote(q.ID, schema.NewNote("n")), AddArticle(a), LinkQuestion(a.ID, q.ID))(doc)
	doc = DeleteQuestion(q.ID)(doc)
	if _, ok := doc.FindQuestion(q.ID); ok {
		t.Error("question still present")
	}
	if _, ok := doc.Questions[q.ID]; ok {
		t.Error("question data not removed")
	}
	got, _ := doc.FindArticle(a.ID)
	if len(got.LinkedQuestions) != 0 {
		t.Error("link not removed")
	}

	doc = UpdateTheme(themeID, ThemeEdit{Name: "Renamed"})(doc)
	if doc.Themes[0].Theme != "Renamed" {
		t.Error("theme not renamed")
	}
	doc = AddTheme(schema.NewTheme("New", "#fff", "star", ""))(doc)
	if doc.Themes[len(doc.Themes)-1].Theme != "New" {
		t.Error("theme not appended")
	}
}

func TestMutationsKeepVersionAndTimestamp(t *testing.T) {
	doc := setupDoc(t)
	stamp := doc.LastModified
	next := AddNote("q", schema.NewNote("x"))(doc)
	if next.Version != doc.Version || !next.LastModified.Equal(stamp) {
		t.Error("mutation touched version or lastModified")
	}
}
