package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/mutation"
	"github.com/researchjournal/rj/internal/schema"
	"github.com/researchjournal/rj/internal/scholar"
	"github.com/researchjournal/rj/internal/search"
	"github.com/researchjournal/rj/internal/ui"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	GroupID: "library",
	Short:   "Manage saved articles",
}

var libraryAddCmd = &cobra.Command{
	Use:   "add TITLE...",
	Short: "Save an article to the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		in := schema.ArticleInput{Title: strings.Join(args, " ")}
		in.Authors, _ = flags.GetStringSlice("author")
		in.Journal, _ = flags.GetString("journal")
		in.DOI, _ = flags.GetString("doi")
		in.URL, _ = flags.GetString("url")
		in.Abstract, _ = flags.GetString("abstract")
		in.IsOpenAccess, _ = flags.GetBool("open-access")
		if flags.Changed("year") {
			year, _ := flags.GetInt("year")
			in.Year = &year
		}
		status, _ := flags.GetString("status")
		in.Status = schema.ArticleStatus(status)
		if !in.Status.IsValid() {
			return fmt.Errorf("unknown status %q", status)
		}
		if strings.TrimSpace(in.Title) == "" {
			return errors.New("title must not be empty")
		}
		linkArg, _ := flags.GetString("question")
		force, _ := flags.GetBool("force")

		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			if !force && s.doc().IsInLibrary(in.DOI, in.Title) {
				return nil, "", errors.New("article already in library (use --force to add anyway)")
			}
			a := schema.NewArticle(in)
			op := mutation.AddArticle(a)
			if linkArg != "" {
				qid, err := resolveQuestion(s, linkArg)
				if err != nil {
					return nil, "", err
				}
				op = mutation.Chain(op, mutation.LinkQuestion(a.ID, qid))
			}
			return op, "Saved " + shortID(a.ID) + " " + a.Title, nil
		})
	},
}

var libraryFindCmd = &cobra.Command{
	Use:   "find QUERY...",
	Short: "Search OpenAlex for papers and optionally save them",
	Long: `Search OpenAlex for papers and optionally save them.

Results already in the library are marked. --save takes the result
numbers to add, e.g. --save 1,3.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		limit, _ := flags.GetInt("limit")
		oaOnly, _ := flags.GetBool("open-access")
		picks, _ := flags.GetIntSlice("save")
		linkArg, _ := flags.GetString("question")
		force, _ := flags.GetBool("force")

		client := scholar.New(scholar.Config{
			BaseURL: cfg.Scholar.BaseURL,
			Mailto:  cfg.Scholar.Mailto,
			Logger:  logOut.Logger("scholar"),
		})
		fmt.Fprintln(os.Stderr, ui.Muted("Searching..."))
		res, err := client.Search(cmd.Context(), strings.Join(args, " "),
			scholar.Options{Limit: limit, OpenAccessOnly: oaOnly})
		if err != nil {
			return err
		}

		if len(picks) == 0 {
			return withSession(cmd, func(s *session) error {
				printPapers(s.doc(), res)
				return nil
			})
		}
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			articles, skipped, err := pickPapers(s.doc(), res.Papers, picks, force)
			if err != nil {
				return nil, "", err
			}
			for _, title := range skipped {
				fmt.Fprintln(os.Stderr, ui.Warn("Already in library: "+title))
			}
			if len(articles) == 0 {
				return nil, "", errNoChange
			}
			var qid string
			if linkArg != "" {
				if qid, err = resolveQuestion(s, linkArg); err != nil {
					return nil, "", err
				}
			}
			ops := make([]mutation.Op, 0, 2*len(articles))
			for _, a := range articles {
				ops = append(ops, mutation.AddArticle(a))
				if qid != "" {
					ops = append(ops, mutation.LinkQuestion(a.ID, qid))
				}
			}
			return mutation.Chain(ops...), fmt.Sprintf("Saved %d article(s)", len(articles)), nil
		})
	},
}

// pickPapers turns 1-based result numbers into new articles, skipping
// papers whose DOI or title is already saved unless force is set.
func pickPapers(doc *schema.Document, papers []scholar.Paper, picks []int, force bool) ([]schema.Article, []string, error) {
	var (
		articles []schema.Article
		skipped  []string
		seen     = map[int]bool{}
	)
	for _, n := range picks {
		if n < 1 || n > len(papers) {
			return nil, nil, fmt.Errorf("no result %d (have %d)", n, len(papers))
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		p := papers[n-1]
		if !force && doc.IsInLibrary(p.DOI, p.Title) {
			skipped = append(skipped, p.Title)
			continue
		}
		articles = append(articles, schema.NewArticle(p.ArticleInput()))
	}
	return articles, skipped, nil
}

func printPapers(doc *schema.Document, res *scholar.Results) {
	if jsonOutput {
		type hit struct {
			scholar.Paper
			InLibrary bool `json:"inLibrary"`
		}
		hits := make([]hit, len(res.Papers))
		for i, p := range res.Papers {
			hits[i] = hit{Paper: p, InLibrary: doc.IsInLibrary(p.DOI, p.Title)}
		}
		_ = json.NewEncoder(os.Stdout).Encode(map[string]any{"papers": hits, "total": res.Total})
		return
	}
	if len(res.Papers) == 0 {
		fmt.Println(ui.Muted("No results"))
		return
	}
	for i, p := range res.Papers {
		var meta []string
		if p.Year != nil {
			meta = append(meta, fmt.Sprint(*p.Year))
		}
		if p.Journal != "" {
			meta = append(meta, p.Journal)
		}
		meta = append(meta, fmt.Sprintf("%d citations", p.CitationCount))
		if p.IsOpenAccess {
			meta = append(meta, "open access")
		}
		line := fmt.Sprintf("%s %s %s", ui.ID(fmt.Sprintf("%2d.", i+1)), p.Title, ui.Muted("("+strings.Join(meta, ", ")+")"))
		if doc.IsInLibrary(p.DOI, p.Title) {
			line += " " + ui.Success("[saved]")
		}
		fmt.Println(line)
		if len(p.Authors) > 0 {
			fmt.Println("    " + ui.Muted(strings.Join(p.Authors, ", ")))
		}
	}
	fmt.Println()
	fmt.Println(ui.Muted(fmt.Sprintf("Showing %d of %d. Save with --save N[,N...]", len(res.Papers), res.Total)))
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List articles, optionally by status or theme",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		themeArg, _ := cmd.Flags().GetString("theme")
		if status != "" && !schema.ArticleStatus(status).IsValid() {
			return fmt.Errorf("unknown status %q", status)
		}
		return withSession(cmd, func(s *session) error {
			doc := s.doc()
			var themeID string
			if themeArg != "" {
				id, err := resolveID("theme", themeIDs(doc), themeArg)
				if err != nil {
					return err
				}
				themeID = id
			}
			printArticles(search.FilterLibrary(doc, schema.ArticleStatus(status), themeID))
			return nil
		})
	},
}

var librarySearchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Search titles, abstracts, notes and excerpts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			printArticles(search.Library(s.doc(), strings.Join(args, " ")))
			return nil
		})
	},
}

var libraryShowCmd = &cobra.Command{
	Use:   "show ARTICLE",
	Short: "Show an article with notes, excerpts and linked questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			id, err := resolveArticle(s, args[0])
			if err != nil {
				return err
			}
			doc := s.doc()
			a, _ := doc.FindArticle(id)
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(a)
			}

			fmt.Println(ui.Title(a.Title))
			year := ""
			if a.Year != nil {
				year = fmt.Sprint(*a.Year)
			}
			ui.Fields(os.Stdout,
				"ID", a.ID,
				"Authors", strings.Join(a.Authors, ", "),
				"Year", year,
				"Journal", schema.Deref(a.Journal),
				"DOI", schema.Deref(a.DOI),
				"URL", schema.Deref(a.URL),
				"Status", string(a.Status),
				"Tags", strings.Join(a.Tags, ", "),
			)
			if abs := schema.Deref(a.Abstract); abs != "" {
				fmt.Printf("\n%s\n%s\n", ui.Muted("Abstract"), abs)
			}
			if sum := schema.Deref(a.AISummary); sum != "" {
				fmt.Printf("\n%s\n%s\n", ui.Muted("AI summary"), sum)
			}
			if a.Notes != "" {
				fmt.Printf("\n%s\n%s\n", ui.Muted("Notes"), a.Notes)
			}
			if len(a.Excerpts) > 0 {
				fmt.Printf("\n%s\n", ui.Muted("Excerpts"))
				for _, ex := range a.Excerpts {
					fmt.Printf("  %s \"%s\"\n", ui.ID(shortID(ex.ID)), ex.Quote)
					if ex.Comment != "" {
						fmt.Println("    " + ui.Muted(ex.Comment))
					}
				}
			}
			if len(a.LinkedQuestions) > 0 {
				fmt.Printf("\n%s\n", ui.Muted("Linked questions"))
				for _, qid := range a.LinkedQuestions {
					if ref, ok := doc.FindQuestion(qid); ok {
						fmt.Printf("  %s %s\n", ui.ID(qid), ref.Question.Q)
					}
				}
			}
			return nil
		})
	},
}

var libraryStatusCmd = &cobra.Command{
	Use:   "status ARTICLE STATUS",
	Short: "Set reading status (to-read, reading, done, key-source)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := schema.ArticleStatus(args[1])
		if !status.IsValid() {
			return fmt.Errorf("unknown status %q", args[1])
		}
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveArticle(s, args[0])
			if err != nil {
				return nil, "", err
			}
			return mutation.UpdateArticleStatus(id, status), "Status set to " + args[1], nil
		})
	},
}

var libraryNotesCmd = &cobra.Command{
	Use:   "notes ARTICLE TEXT...",
	Short: "Replace an article's notes, or append with --append",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(args[1:])
		if err != nil {
			return err
		}
		appendNotes, _ := cmd.Flags().GetBool("append")
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveArticle(s, args[0])
			if err != nil {
				return nil, "", err
			}
			if appendNotes {
				return mutation.AppendArticleNotes(id, text), "Notes appended", nil
			}
			return mutation.UpdateArticleNotes(id, text), "Notes updated", nil
		})
	},
}

var libraryTagsCmd = &cobra.Command{
	Use:   "tags ARTICLE TAGS",
	Short: "Replace an article's tags (comma-separated)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveArticle(s, args[0])
			if err != nil {
				return nil, "", err
			}
			return mutation.SetArticleTags(id, splitTags(args[1])), "Tags updated", nil
		})
	},
}

var libraryRmCmd = &cobra.Command{
	Use:   "rm ARTICLE",
	Short: "Remove an article from the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveArticle(s, args[0])
			if err != nil {
				return nil, "", err
			}
			return mutation.DeleteArticle(id), "Removed article", nil
		})
	},
}

var libraryLinkCmd = &cobra.Command{
	Use:   "link ARTICLE QUESTION",
	Short: "Link an article to a research question",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			aid, qid, err := resolveArticleQuestion(s, args[0], args[1])
			if err != nil {
				return nil, "", err
			}
			return mutation.LinkQuestion(aid, qid), "Linked to " + qid, nil
		})
	},
}

var libraryUnlinkCmd = &cobra.Command{
	Use:   "unlink ARTICLE QUESTION",
	Short: "Remove a link between an article and a question",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			aid, qid, err := resolveArticleQuestion(s, args[0], args[1])
			if err != nil {
				return nil, "", err
			}
			return mutation.UnlinkQuestion(aid, qid), "Unlinked from " + qid, nil
		})
	},
}

var excerptCmd = &cobra.Command{
	Use:   "excerpt",
	Short: "Add and delete quoted excerpts",
}

var excerptAddCmd = &cobra.Command{
	Use:   "add ARTICLE QUOTE...",
	Short: "Add a quoted passage",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quote, err := textArg(args[1:])
		if err != nil {
			return err
		}
		if strings.TrimSpace(quote) == "" {
			return errors.New("quote must not be empty")
		}
		comment, _ := cmd.Flags().GetString("comment")
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveArticle(s, args[0])
			if err != nil {
				return nil, "", err
			}
			return mutation.AddExcerpt(id, schema.NewExcerpt(quote, comment)), "Excerpt added", nil
		})
	},
}

var excerptRmCmd = &cobra.Command{
	Use:   "rm ARTICLE EXCERPT",
	Short: "Delete an excerpt",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			aid, err := resolveArticle(s, args[0])
			if err != nil {
				return nil, "", err
			}
			a, _ := s.doc().FindArticle(aid)
			ids := make([]string, len(a.Excerpts))
			for i, ex := range a.Excerpts {
				ids[i] = ex.ID
			}
			exid, err := resolveID("excerpt", ids, args[1])
			if err != nil {
				return nil, "", err
			}
			return mutation.DeleteExcerpt(aid, exid), "Excerpt deleted", nil
		})
	},
}

var librarySummarizeCmd = &cobra.Command{
	Use:   "summarize ARTICLE",
	Short: "Generate an AI summary relating the article to its linked questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveArticle(s, args[0])
			if err != nil {
				return nil, "", err
			}
			sum, err := s.summarizer()
			if err != nil {
				return nil, "", err
			}
			doc := s.doc()
			a, _ := doc.FindArticle(id)
			var questions []string
			for _, qid := range a.LinkedQuestions {
				if ref, ok := doc.FindQuestion(qid); ok {
					questions = append(questions, ref.Question.Q)
				}
			}

			fmt.Fprintln(os.Stderr, ui.Muted("Summarizing..."))
			text, err := sum.Summarize(cmd.Context(), *a, questions)
			if err != nil {
				return nil, "", err
			}
			fmt.Println(text)
			fmt.Println()
			return mutation.SetAISummary(id, text), "Summary saved", nil
		})
	},
}

func resolveArticleQuestion(s *session, articleArg, questionArg string) (string, string, error) {
	aid, err := resolveArticle(s, articleArg)
	if err != nil {
		return "", "", err
	}
	qid, err := resolveQuestion(s, questionArg)
	return aid, qid, err
}

func printArticles(articles []schema.Article) {
	if jsonOutput {
		if articles == nil {
			articles = []schema.Article{}
		}
		_ = json.NewEncoder(os.Stdout).Encode(articles)
		return
	}
	if len(articles) == 0 {
		fmt.Println(ui.Muted("No articles"))
		return
	}
	for _, a := range articles {
		meta := string(a.Status)
		if a.Year != nil {
			meta = fmt.Sprintf("%d, %s", *a.Year, meta)
		}
		if len(a.LinkedQuestions) > 0 {
			meta += fmt.Sprintf(", %d linked", len(a.LinkedQuestions))
		}
		fmt.Printf("%s %s %s\n", ui.ID(shortID(a.ID)), a.Title, ui.Muted("("+meta+")"))
	}
}

func init() {
	libraryAddCmd.Flags().StringSlice("author", nil, "Author (repeatable)")
	libraryAddCmd.Flags().Int("year", 0, "Publication year")
	libraryAddCmd.Flags().String("journal", "", "Journal or venue")
	libraryAddCmd.Flags().String("doi", "", "DOI")
	libraryAddCmd.Flags().String("url", "", "Link to the article")
	libraryAddCmd.Flags().String("abstract", "", "Abstract")
	libraryAddCmd.Flags().Bool("open-access", false, "Article is open access")
	libraryAddCmd.Flags().String("status", string(schema.ArticleToRead), "Reading status")
	libraryAddCmd.Flags().StringP("question", "q", "", "Link to this question")
	libraryAddCmd.Flags().Bool("force", false, "Add even if the DOI or title is already saved")
	libraryFindCmd.Flags().IntP("limit", "n", scholar.DefaultLimit, "Number of results")
	libraryFindCmd.Flags().Bool("open-access", false, "Only open-access papers")
	libraryFindCmd.Flags().IntSlice("save", nil, "Save these result numbers")
	libraryFindCmd.Flags().StringP("question", "q", "", "Link saved articles to this question")
	libraryFindCmd.Flags().Bool("force", false, "Save even if the DOI or title is already saved")
	libraryListCmd.Flags().String("status", "", "Only articles with this status")
	libraryListCmd.Flags().String("theme", "", "Only articles linked to a question of this theme")
	libraryNotesCmd.Flags().Bool("append", false, "Append instead of replacing")
	excerptAddCmd.Flags().String("comment", "", "Your comment on the passage")

	excerptCmd.AddCommand(excerptAddCmd, excerptRmCmd)
	libraryCmd.AddCommand(libraryAddCmd, libraryFindCmd, libraryListCmd, librarySearchCmd, libraryShowCmd,
		libraryStatusCmd, libraryNotesCmd, libraryTagsCmd, libraryRmCmd,
		libraryLinkCmd, libraryUnlinkCmd, excerptCmd, librarySummarizeCmd)
	rootCmd.AddCommand(libraryCmd)
}
