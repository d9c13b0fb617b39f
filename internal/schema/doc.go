// Package schema defines the versioned research journal document.
//
// # Overview
//
// All user data lives in a single JSON document. The same bytes are stored in
// local storage, sent to the remote data endpoint, written by the capture
// extension, and produced by `rj export`. Field names follow that wire format
// (camelCase, nullable optionals encoded as null).
//
//	{
//	  "version": 3,
//	  "themes": [ { "id": "error-learning", "theme": "...", "questions": [...] } ],
//	  "questions": { "error-learning-0": { "status": "exploring", "notes": [...] } },
//	  "journal": [ ... newest first ... ],
//	  "library": [ ... newest first ... ],
//	  "lastModified": "2026-02-11T09:14:03.120Z"
//	}
//
// # Versions
//
// Documents are upgraded by an ordered list of small steps (see Migrate):
//
//   - 1 -> 2 adds an empty library
//   - 2 -> 3 adds the seed themes
//
// Every step only adds missing structure, so running the whole chain twice
// yields the same document as running it once. User-authored collections
// (questions, journal) are never removed.
//
// # Loading and importing
//
//	doc, err := schema.Parse(data)   // shape check + decode + migrate
//	doc, err := schema.Import(data)  // Parse + full validation
//	out, err := schema.Export(doc)   // indented JSON, no transformation
//
// Parse rejects input without a version or questions field with ErrInvalidShape;
// callers loading from storage fall back to Seed().
package schema
