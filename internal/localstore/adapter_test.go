package localstore

import (
	"errors"
	"testing"
	"time"

	"github.com/hack-pad/hackpadfs/mem"

	"github.com/researchjournal/rj/internal/mutation"
	"github.com/researchjournal/rj/internal/schema"
)

func setupFSStorage(t *testing.T) *FSStorage {
	t.Helper()
	fsys, err := mem.NewFS()
	if err != nil {
		t.Fatalf("mem.NewFS failed: %v", err)
	}
	s, err := NewFSStorage(fsys, "data")
	if err != nil {
		t.Fatalf("NewFSStorage failed: %v", err)
	}
	return s
}

func TestLoad_FreshInstall(t *testing.T) {
	a := NewQuietAdapter(setupFSStorage(t))
	doc := a.Load()
	if doc.Version != schema.CurrentVersion {
		t.Errorf("expected version %d, got %d", schema.CurrentVersion, doc.Version)
	}
	if len(doc.Themes) == 0 {
		t.Error("expected seeded themes")
	}
	if len(doc.Journal) != 0 || len(doc.Library) != 0 || len(doc.Questions) != 0 {
		t.Error("expected empty user collections")
	}
	if !doc.LastModified.IsZero() {
		t.Errorf("unsaved seed must not carry a timestamp, got %v", doc.LastModified)
	}
}

func TestLoad_MalformedFallsBack(t *testing.T) {
	inputs := []string{"", "{", "null", "[]", `{"version":3}`, `{"questions":{}}`, "\x00\xff"}
	for _, in := range inputs {
		store := NewMemStorage(nil)
		if err := store.SetItem(DocumentKey, []byte(in)); err != nil {
			t.Fatalf("SetItem failed: %v", err)
		}
		doc := NewQuietAdapter(store).Load()
		if doc == nil || doc.Version != schema.CurrentVersion || doc.Questions == nil {
			t.Errorf("Load(%q) returned %+v", in, doc)
		}
	}
}

func TestAddNoteThenReload(t *testing.T) {
	store := setupFSStorage(t)
	a := NewQuietAdapter(store)

	doc := mutation.AddNote("q1", schema.NewNote("test"))(a.Load())
	if _, err := a.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := NewQuietAdapter(store).Load()
	qd, ok := reloaded.Questions["q1"]
	if !ok {
		t.Fatal("question data missing after reload")
	}
	if len(qd.Notes) != 1 || qd.Notes[0].Content != "test" {
		t.Errorf("unexpected notes: %+v", qd.Notes)
	}
	if qd.Status != schema.StatusNotStarted {
		t.Errorf("expected not_started, got %s", qd.Status)
	}
}

func TestSave_StampsMonotonic(t *testing.T) {
	a := NewQuietAdapter(NewMemStorage(nil))
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	doc := schema.Seed()
	doc.LastModified = fixed.Add(-time.Hour)
	saved, err := a.Save(doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !saved.LastModified.Equal(fixed) {
		t.Errorf("expected stamp %v, got %v", fixed, saved.LastModified)
	}
	if !doc.LastModified.Equal(fixed.Add(-time.Hour)) {
		t.Error("Save modified its input")
	}

	// A document stamped in the future (clock skew elsewhere) still moves forward.
	doc.LastModified = fixed.Add(time.Hour)
	saved, err = a.Save(doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !saved.LastModified.After(doc.LastModified) {
		t.Errorf("stamp went backwards: %v", saved.LastModified)
	}
}

func TestLoad_MigratesLegacyKeys(t *testing.T) {
	store := setupFSStorage(t)
	legacy := `{"version":1,"questions":{"q1":{"status":"exploring","starred":false,"notes":[],"userSources":[]}},"journal":[]}`
	must(t, store.SetItem(LegacyDocumentKey, []byte(legacy)))
	must(t, store.SetItem(LegacyDraftPrefix+"note-q1", []byte("half a thought")))

	a := NewQuietAdapter(store)
	doc := a.Load()
	if doc.QuestionData("q1").Status != schema.StatusExploring {
		t.Error("legacy document not loaded")
	}
	if doc.Library == nil || len(doc.Themes) == 0 {
		t.Error("legacy document not migrated")
	}

	if _, err := store.GetItem(LegacyDocumentKey); !errors.Is(err, ErrNotFound) {
		t.Error("legacy key not removed")
	}
	if _, err := store.GetItem(DocumentKey); err != nil {
		t.Errorf("document not copied to current key: %v", err)
	}
	if text, ok := a.LoadDraft("note-q1"); !ok || text != "half a thought" {
		t.Errorf("draft not migrated: %q %v", text, ok)
	}
	if _, err := store.GetItem(LegacyDraftPrefix + "note-q1"); !errors.Is(err, ErrNotFound) {
		t.Error("legacy draft not removed")
	}
}

func TestLoad_CurrentKeyWinsOverLegacy(t *testing.T) {
	store := NewMemStorage(nil)
	a := NewQuietAdapter(store)
	doc := mutation.SetStatus("current", schema.StatusConcluded)(schema.Seed())
	if _, err := a.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	must(t, store.SetItem(LegacyDocumentKey, []byte(`{"version":1,"questions":{}}`)))

	loaded := a.Load()
	if loaded.QuestionData("current").Status != schema.StatusConcluded {
		t.Error("expected current key to be used")
	}
	if _, err := store.GetItem(LegacyDocumentKey); err != nil {
		t.Error("legacy key should be left alone when current key exists")
	}
}

func TestDrafts(t *testing.T) {
	a := NewQuietAdapter(setupFSStorage(t))
	if _, ok := a.LoadDraft("journal"); ok {
		t.Error("expected no draft")
	}
	must(t, a.SaveDraft("journal", "draft text"))
	must(t, a.SaveDraft("note/q 1", "other"))

	if text, ok := a.LoadDraft("journal"); !ok || text != "draft text" {
		t.Errorf("unexpected draft %q", text)
	}
	scopes, err := a.Drafts()
	if err != nil {
		t.Fatalf("Drafts failed: %v", err)
	}
	if len(scopes) != 2 {
		t.Errorf("expected 2 drafts, got %v", scopes)
	}

	must(t, a.ClearDraft("journal"))
	if _, ok := a.LoadDraft("journal"); ok {
		t.Error("draft not cleared")
	}
	// Clearing twice is fine.
	must(t, a.ClearDraft("journal"))
}

func TestThemePreference(t *testing.T) {
	store := NewMemStorage(nil)
	a := NewQuietAdapter(store)
	if a.ThemePreference() != ThemeSystem {
		t.Error("expected system default")
	}
	must(t, a.SetThemePreference(ThemeDark))
	if a.ThemePreference() != ThemeDark {
		t.Error("expected dark")
	}
	if err := a.SetThemePreference("purple"); !errors.Is(err, ErrInvalidThemePreference) {
		t.Errorf("expected ErrInvalidThemePreference, got %v", err)
	}
	must(t, store.SetItem(ThemeKey, []byte("garbage")))
	if a.ThemePreference() != ThemeSystem {
		t.Error("expected unknown stored value to read as system")
	}
}

func TestSessionToken(t *testing.T) {
	a := NewQuietAdapter(NewMemStorage(nil))
	must(t, a.SetSessionToken("tok"))
	if a.SessionToken() != "tok" {
		t.Error("token not stored")
	}
	must(t, a.SetSessionToken(""))
	if a.SessionToken() != "" {
		t.Error("token not removed")
	}
}

func TestIsOwnWrite(t *testing.T) {
	store := NewMemStorage(nil)
	a := NewQuietAdapter(store)
	saved, err := a.Save(schema.Seed())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, _ := store.GetItem(DocumentKey)
	if !a.IsOwnWrite(data) {
		t.Error("expected own write to be recognised")
	}

	other := *saved
	other.LastModified = saved.LastModified.Add(time.Second)
	foreign, _ := schema.Marshal(&other)
	if a.IsOwnWrite(foreign) {
		t.Error("foreign write recognised as own")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
