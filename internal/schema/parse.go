package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidShape is returned when input is not a JSON object carrying
	// both a version and a questions field.
	ErrInvalidShape = errors.New("invalid document: missing version or questions")

	// ErrDuplicateID is returned by Validate when two entities in the same
	// collection share an id.
	ErrDuplicateID = errors.New("duplicate id")
)

var validate = validator.New()

// Parse checks the minimal shape of data, decodes it and migrates it to
// CurrentVersion.
func Parse(data []byte) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	version, ok := fields["version"]
	if !ok || isNull(version) {
		return nil, ErrInvalidShape
	}
	questions, ok := fields["questions"]
	if !ok || isNull(questions) || !strings.HasPrefix(strings.TrimSpace(string(questions)), "{") {
		return nil, ErrInvalidShape
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	// An absent themes field gets the seed set at any version; an explicit
	// empty list is the user's choice.
	if themes, ok := fields["themes"]; !ok || isNull(themes) {
		doc.Themes = SeedThemes()
	}
	Migrate(&doc)
	return &doc, nil
}

// Export serialises doc as indented JSON. It performs no transformation, so
// Import(Export(doc)) reproduces doc.
func Export(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// Marshal serialises doc compactly, the form used in storage and on the wire.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// Import parses data and runs full validation. It is the entry point for
// user-supplied files.
func Import(data []byte) (*Document, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks field constraints and id uniqueness.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return formatValidationError(err)
	}

	themeIDs := map[string]bool{}
	questionIDs := map[string]bool{}
	for _, t := range d.Themes {
		if themeIDs[t.ID] {
			return fmt.Errorf("%w: theme %q", ErrDuplicateID, t.ID)
		}
		themeIDs[t.ID] = true
		for _, q := range t.Questions {
			if questionIDs[q.ID] {
				return fmt.Errorf("%w: question %q", ErrDuplicateID, q.ID)
			}
			questionIDs[q.ID] = true
		}
	}

	journalIDs := map[string]bool{}
	for _, e := range d.Journal {
		if journalIDs[e.ID] {
			return fmt.Errorf("%w: journal entry %q", ErrDuplicateID, e.ID)
		}
		journalIDs[e.ID] = true
	}

	for qid, qd := range d.Questions {
		if id, ok := duplicate(qd.Notes, func(n ResearchNote) string { return n.ID }); ok {
			return fmt.Errorf("%w: note %q on question %q", ErrDuplicateID, id, qid)
		}
		if id, ok := duplicate(qd.UserSources, func(s UserSource) string { return s.ID }); ok {
			return fmt.Errorf("%w: source %q on question %q", ErrDuplicateID, id, qid)
		}
	}

	articleIDs := map[string]bool{}
	for _, a := range d.Library {
		if articleIDs[a.ID] {
			return fmt.Errorf("%w: article %q", ErrDuplicateID, a.ID)
		}
		articleIDs[a.ID] = true
		if id, ok := duplicate(a.Excerpts, func(e Excerpt) string { return e.ID }); ok {
			return fmt.Errorf("%w: excerpt %q on article %q", ErrDuplicateID, id, a.ID)
		}
	}
	return nil
}

// duplicate returns the first id that occurs twice in items.
func duplicate[T any](items []T, id func(T) string) (string, bool) {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		k := id(it)
		if seen[k] {
			return k, true
		}
		seen[k] = true
	}
	return "", false
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		msgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			msgs = append(msgs, formatFieldError(e))
		}
		return fmt.Errorf("invalid document: %s", strings.Join(msgs, "; "))
	}
	return err
}

func formatFieldError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Document.")

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
