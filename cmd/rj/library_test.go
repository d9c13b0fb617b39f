package main

import (
	"strings"
	"testing"

	"github.com/researchjournal/rj/internal/schema"
	"github.com/researchjournal/rj/internal/scholar"
)

func TestPickPapers(t *testing.T) {
	doc := schema.Seed()
	doc.Library = []schema.Article{
		schema.NewArticle(schema.ArticleInput{Title: "Saved by DOI", DOI: "10.1/saved"}),
		schema.NewArticle(schema.ArticleInput{Title: "Saved By Title"}),
	}
	papers := []scholar.Paper{
		{Title: "Fresh paper", DOI: "10.1/fresh"},
		{Title: "Different title", DOI: "10.1/SAVED"},
		{Title: "saved by title"},
	}

	articles, skipped, err := pickPapers(doc, papers, []int{1, 2, 3, 1}, false)
	if err != nil {
		t.Fatalf("pickPapers failed: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Fresh paper" {
		t.Fatalf("articles = %+v, want only the fresh paper", articles)
	}
	if schema.Deref(articles[0].DOI) != "10.1/fresh" || articles[0].Status != schema.ArticleToRead {
		t.Errorf("unexpected article fields: %+v", articles[0])
	}
	if strings.Join(skipped, "|") != "Different title|saved by title" {
		t.Errorf("skipped = %v", skipped)
	}

	articles, skipped, err = pickPapers(doc, papers, []int{2, 3}, true)
	if err != nil {
		t.Fatalf("pickPapers with force failed: %v", err)
	}
	if len(articles) != 2 || len(skipped) != 0 {
		t.Errorf("force: got %d articles, %d skipped, want 2 and 0", len(articles), len(skipped))
	}
	if articles[0].ID == articles[1].ID {
		t.Error("saved articles share an id")
	}
}

func TestPickPapers_OutOfRange(t *testing.T) {
	doc := schema.Seed()
	papers := []scholar.Paper{{Title: "Only"}}
	for _, n := range []int{0, 2, -1} {
		if _, _, err := pickPapers(doc, papers, []int{n}, false); err == nil {
			t.Errorf("pickPapers(%d) succeeded, want error", n)
		}
	}
}
