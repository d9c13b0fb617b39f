// Package mutation holds the pure document transforms applied by the
// coordinator.
//
// An Op never modifies its input. It returns a new document sharing every
// untouched collection with prev, or prev itself when the operation has no
// effect (unknown id, link already present, identical content). Callers use
// pointer equality to skip persistence for no-ops.
//
// Ops never touch Document.Version or Document.LastModified. Entity
// timestamps (updatedAt) are restamped by update operations.
package mutation

import (
	"github.com/researchjournal/rj/internal/schema"
)

// Op transforms a document.
type Op func(prev *schema.Document) *schema.Document

// now is replaced in tests that need deterministic timestamps.
var now = schema.Now

// Chain applies ops in order. The result is prev only if every op was a no-op.
func Chain(ops ...Op) Op {
	return func(prev *schema.Document) *schema.Document {
		doc := prev
		for _, op := range ops {
			doc = op(doc)
		}
		return doc
	}
}

// ReplaceDocument swaps the whole document, used by import.
func ReplaceDocument(next *schema.Document) Op {
	return func(prev *schema.Document) *schema.Document {
		if next == nil {
			return prev
		}
		return next
	}
}

func clone(prev *schema.Document) *schema.Document {
	next := *prev
	return &next
}

// withQuestion upserts the question data for id. fn reports whether it
// changed anything.
func withQuestion(prev *schema.Document, id string, fn func(qd schema.QuestionData) (schema.QuestionData, bool)) *schema.Document {
	qd, changed := fn(prev.QuestionData(id))
	if !changed {
		return prev
	}
	next := clone(prev)
	next.Questions = make(map[string]schema.QuestionData, len(prev.Questions)+1)
	for k, v := range prev.Questions {
		next.Questions[k] = v
	}
	next.Questions[id] = qd
	return next
}

// withArticle replaces the article with id using fn, restamping UpdatedAt.
func withArticle(prev *schema.Document, id string, fn func(a schema.Article) (schema.Article, bool)) *schema.Document {
	idx := indexOf(prev.Library, func(a schema.Article) bool { return a.ID == id })
	if idx < 0 {
		return prev
	}
	a, changed := fn(prev.Library[idx])
	if !changed {
		return prev
	}
	a.UpdatedAt = now()
	next := clone(prev)
	next.Library = replaceAt(prev.Library, idx, a)
	return next
}

func prepend[T any](s []T, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, v)
	return append(out, s...)
}

func appendCopy[T any](s []T, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s...)
	return append(out, v)
}

func replaceAt[T any](s []T, i int, v T) []T {
	out := make([]T, len(s))
	copy(out, s)
	out[i] = v
	return out
}

// removeWhere returns s without matching elements and whether any were removed.
func removeWhere[T any](s []T, match func(T) bool) ([]T, bool) {
	out := make([]T, 0, len(s))
	for _, v := range s {
		if !match(v) {
			out = append(out, v)
		}
	}
	if len(out) == len(s) {
		return s, false
	}
	return out, true
}

func indexOf[T any](s []T, match func(T) bool) int {
	for i, v := range s {
		if match(v) {
			return i
		}
	}
	return -1
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
