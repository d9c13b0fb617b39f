package schema

// Step upgrades a document from From to From+1. Apply must only add missing
// structure.
type Step struct {
	From  int
	Name  string
	Apply func(doc *Document)
}

// Steps is the ordered migration chain up to CurrentVersion.
var Steps = []Step{
	{
		From: 1,
		Name: "add library",
		Apply: func(doc *Document) {
			if doc.Library == nil {
				doc.Library = []Article{}
			}
		},
	},
	{
		From: 2,
		Name: "seed themes",
		Apply: func(doc *Document) {
			if len(doc.Themes) == 0 {
				doc.Themes = SeedThemes()
			}
		},
	},
}

// Migrate upgrades doc in place to CurrentVersion and normalises nil
// collections. It reports whether the version changed. Documents newer than
// CurrentVersion are normalised but otherwise left alone. LastModified is
// never touched, so a migrated copy does not look newer than its origin.
func Migrate(doc *Document) bool {
	start := doc.Version
	if doc.Version < 1 {
		doc.Version = 1
	}
	for _, step := range Steps {
		if doc.Version == step.From {
			step.Apply(doc)
			doc.Version = step.From + 1
		}
	}
	Normalize(doc)
	return doc.Version != start
}

// Normalize replaces nil collections with empty ones so the document always
// serialises with arrays and objects rather than null.
func Normalize(doc *Document) {
	if doc.Themes == nil {
		doc.Themes = []Theme{}
	}
	if doc.Questions == nil {
		doc.Questions = map[string]QuestionData{}
	}
	if doc.Journal == nil {
		doc.Journal = []JournalEntry{}
	}
	if doc.Library == nil {
		doc.Library = []Article{}
	}

	for i := range doc.Themes {
		if doc.Themes[i].Questions == nil {
			doc.Themes[i].Questions = []Question{}
		}
		for j := range doc.Themes[i].Questions {
			q := &doc.Themes[i].Questions[j]
			if q.Tags == nil {
				q.Tags = []string{}
			}
			if q.Sources == nil {
				q.Sources = []Source{}
			}
		}
	}

	for id, qd := range doc.Questions {
		changed := false
		if qd.Status == "" {
			qd.Status = StatusNotStarted
			changed = true
		}
		if qd.Notes == nil {
			qd.Notes = []ResearchNote{}
			changed = true
		}
		if qd.UserSources == nil {
			qd.UserSources = []UserSource{}
			changed = true
		}
		if changed {
			doc.Questions[id] = qd
		}
	}

	for i := range doc.Journal {
		if doc.Journal[i].Tags == nil {
			doc.Journal[i].Tags = []string{}
		}
	}

	for i := range doc.Library {
		a := &doc.Library[i]
		if a.Authors == nil {
			a.Authors = []string{}
		}
		if a.Excerpts == nil {
			a.Excerpts = []Excerpt{}
		}
		if a.LinkedQuestions == nil {
			a.LinkedQuestions = []string{}
		}
		if a.Tags == nil {
			a.Tags = []string{}
		}
		if a.Status == "" {
			a.Status = ArticleToRead
		}
	}
}
