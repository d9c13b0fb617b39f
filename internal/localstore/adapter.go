package localstore

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/researchjournal/rj/internal/schema"
)

// Storage keys.
const (
	DocumentKey       = "research-journal-data"
	DraftPrefix       = "research-journal-draft-"
	ThemeKey          = "research-journal-theme"
	SessionKey        = "research-journal-session"
	LegacyDocumentKey = "chaoslimba-research-journal"
	LegacyDraftPrefix = "chaoslimba-draft-"
)

// ThemePreference is the UI colour scheme.
type ThemePreference string

const (
	ThemeLight  ThemePreference = "light"
	ThemeDark   ThemePreference = "dark"
	ThemeSystem ThemePreference = "system"
)

// ErrInvalidThemePreference is returned for values other than light, dark or
// system.
var ErrInvalidThemePreference = errors.New("theme preference must be light, dark or system")

// recentWrites is how many of our own document writes are remembered for
// echo suppression.
const recentWrites = 8

// Adapter reads and writes the document and its satellite keys.
// It is safe for concurrent use.
type Adapter struct {
	store  Storage
	logger *log.Logger

	mu     sync.Mutex
	recent [recentWrites][sha256.Size]byte
	next   int
	now    func() time.Time
}

// NewAdapter wraps store. A nil logger writes to stderr.
func NewAdapter(store Storage, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.New(os.Stderr, "[localstore] ", log.LstdFlags)
	}
	return &Adapter{store: store, logger: logger, now: schema.Now}
}

// NewQuietAdapter wraps store with logging discarded.
func NewQuietAdapter(store Storage) *Adapter {
	return NewAdapter(store, log.New(io.Discard, "", 0))
}

// Storage returns the underlying store.
func (a *Adapter) Storage() Storage {
	return a.store
}

// Load returns the stored document, migrating legacy keys first. Any read or
// parse failure yields a freshly seeded document; Load never fails.
//
// A seeded document has a zero lastModified until it is first saved, so any
// stored remote copy wins reconciliation against it.
func (a *Adapter) Load() *schema.Document {
	data, err := a.store.GetItem(DocumentKey)
	if errors.Is(err, ErrNotFound) {
		data, err = a.migrateLegacy()
	}
	if errors.Is(err, ErrNotFound) {
		return unsavedSeed()
	}
	if err != nil {
		a.logger.Printf("Warning: failed to read document, starting fresh: %v", err)
		return unsavedSeed()
	}

	doc, err := schema.Parse(data)
	if err != nil {
		a.logger.Printf("Warning: stored document is unreadable, starting fresh: %v", err)
		return unsavedSeed()
	}
	return doc
}

func unsavedSeed() *schema.Document {
	doc := schema.Seed()
	doc.LastModified = time.Time{}
	return doc
}

// migrateLegacy moves the legacy document and drafts to the current keys and
// returns the document bytes.
func (a *Adapter) migrateLegacy() ([]byte, error) {
	data, err := a.store.GetItem(LegacyDocumentKey)
	if err != nil {
		return nil, err
	}

	if err := a.store.SetItem(DocumentKey, data); err != nil {
		return nil, fmt.Errorf("failed to copy legacy document: %w", err)
	}
	a.remember(data)
	if err := a.store.RemoveItem(LegacyDocumentKey); err != nil {
		a.logger.Printf("Warning: failed to remove legacy document key: %v", err)
	}

	drafts, err := KeysWithPrefix(a.store, LegacyDraftPrefix)
	if err != nil {
		a.logger.Printf("Warning: failed to list legacy drafts: %v", err)
		return data, nil
	}
	for _, key := range drafts {
		text, err := a.store.GetItem(key)
		if err != nil {
			continue
		}
		scope := key[len(LegacyDraftPrefix):]
		if err := a.store.SetItem(DraftPrefix+scope, text); err != nil {
			a.logger.Printf("Warning: failed to migrate draft %s: %v", scope, err)
			continue
		}
		_ = a.store.RemoveItem(key)
	}
	a.logger.Printf("Migrated legacy document and %d drafts", len(drafts))
	return data, nil
}

// Save stamps lastModified and writes doc. The stamp never goes backwards
// relative to doc's previous stamp. The stamped copy is returned even when
// the write fails; doc itself is not modified.
func (a *Adapter) Save(doc *schema.Document) (*schema.Document, error) {
	stamped := *doc
	ts := a.now()
	if !ts.After(doc.LastModified) {
		ts = doc.LastModified.Add(time.Millisecond)
	}
	stamped.LastModified = ts
	return &stamped, a.Replace(&stamped)
}

// Replace writes doc verbatim, used when adopting a copy from elsewhere.
func (a *Adapter) Replace(doc *schema.Document) error {
	data, err := schema.Marshal(doc)
	if err != nil {
		return err
	}
	a.remember(data)
	if err := a.store.SetItem(DocumentKey, data); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// IsOwnWrite reports whether value matches one of our recent document writes.
func (a *Adapter) IsOwnWrite(value []byte) bool {
	sum := sha256.Sum256(value)
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, h := range a.recent {
		if h == sum {
			return true
		}
	}
	return false
}

func (a *Adapter) remember(value []byte) {
	sum := sha256.Sum256(value)
	a.mu.Lock()
	a.recent[a.next] = sum
	a.next = (a.next + 1) % recentWrites
	a.mu.Unlock()
}

// SaveDraft stores in-progress text for an editor scope.
func (a *Adapter) SaveDraft(scope, text string) error {
	if err := a.store.SetItem(DraftPrefix+scope, []byte(text)); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// LoadDraft returns the draft for scope, if any.
func (a *Adapter) LoadDraft(scope string) (string, bool) {
	data, err := a.store.GetItem(DraftPrefix + scope)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// ClearDraft removes the draft for scope.
func (a *Adapter) ClearDraft(scope string) error {
	if err := a.store.RemoveItem(DraftPrefix + scope); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

// Drafts lists the scopes that currently hold a draft.
func (a *Adapter) Drafts() ([]string, error) {
	keys, err := KeysWithPrefix(a.store, DraftPrefix)
	if err != nil {
		return nil, err
	}
	scopes := make([]string, len(keys))
	for i, k := range keys {
		scopes[i] = k[len(DraftPrefix):]
	}
	return scopes, nil
}

// ThemePreference returns the stored colour scheme, defaulting to system.
func (a *Adapter) ThemePreference() ThemePreference {
	data, err := a.store.GetItem(ThemeKey)
	if err != nil {
		return ThemeSystem
	}
	switch p := ThemePreference(data); p {
	case ThemeLight, ThemeDark, ThemeSystem:
		return p
	default:
		return ThemeSystem
	}
}

// SetThemePreference stores the colour scheme.
func (a *Adapter) SetThemePreference(p ThemePreference) error {
	switch p {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return ErrInvalidThemePreference
	}
	return a.store.SetItem(ThemeKey, []byte(p))
}

// SessionToken returns the stored login session, or "".
func (a *Adapter) SessionToken() string {
	data, err := a.store.GetItem(SessionKey)
	if err != nil {
		return ""
	}
	return string(data)
}

// SetSessionToken stores the login session. An empty token removes it.
func (a *Adapter) SetSessionToken(token string) error {
	if token == "" {
		return a.store.RemoveItem(SessionKey)
	}
	return a.store.SetItem(SessionKey, []byte(token))
}
