package mutation

import (
	"github.com/researchjournal/rj/internal/schema"
)

// AddJournalEntry prepends an entry to the journal.
func AddJournalEntry(entry schema.JournalEntry) Op {
	return func(prev *schema.Document) *schema.Document {
		next := clone(prev)
		next.Journal = prepend(prev.Journal, entry)
		return next
	}
}

// UpdateJournalEntry replaces an entry's content, and its tags when tags is
// non-nil.
func UpdateJournalEntry(id, content string, tags []string) Op {
	return func(prev *schema.Document) *schema.Document {
		idx := indexOf(prev.Journal, func(e schema.JournalEntry) bool { return e.ID == id })
		if idx < 0 {
			return prev
		}
		e := prev.Journal[idx]
		if e.Content == content && (tags == nil || equalStrings(e.Tags, tags)) {
			return prev
		}
		e.Content = content
		if tags != nil {
			e.Tags = append([]string{}, tags...)
		}
		e.UpdatedAt = now()
		next := clone(prev)
		next.Journal = replaceAt(prev.Journal, idx, e)
		return next
	}
}

// DeleteJournalEntry removes an entry.
func DeleteJournalEntry(id string) Op {
	return func(prev *schema.Document) *schema.Document {
		journal, removed := removeWhere(prev.Journal, func(e schema.JournalEntry) bool { return e.ID == id })
		if !removed {
			return prev
		}
		next := clone(prev)
		next.Journal = journal
		return next
	}
}
