package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// CurrentVersion is the document version produced by Migrate and Seed.
const CurrentVersion = 3

//go:embed seed_themes.json
var seedThemesJSON []byte

// SeedThemes returns a fresh copy of the default research themes.
// Each call decodes anew so callers may modify the result freely.
func SeedThemes() []Theme {
	var themes []Theme
	if err := json.Unmarshal(seedThemesJSON, &themes); err != nil {
		panic(fmt.Sprintf("schema: embedded seed themes are invalid: %v", err))
	}
	for i := range themes {
		for j := range themes[i].Questions {
			q := &themes[i].Questions[j]
			if q.Tags == nil {
				q.Tags = []string{}
			}
			if q.Sources == nil {
				q.Sources = []Source{}
			}
		}
	}
	return themes
}

// Seed returns the document a fresh install starts from.
func Seed() *Document {
	return &Document{
		Version:      CurrentVersion,
		Themes:       SeedThemes(),
		Questions:    map[string]QuestionData{},
		Journal:      []JournalEntry{},
		Library:      []Article{},
		LastModified: Now(),
	}
}
