package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/search"
	"github.com/researchjournal/rj/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:     "search QUERY...",
	GroupID: "journal",
	Short:   "Search questions, notes, sources, journal and library",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if utf8.RuneCountInString(query) < search.MinQueryLength {
			return fmt.Errorf("query must be at least %d characters", search.MinQueryLength)
		}
		return withSession(cmd, func(s *session) error {
			results := search.All(s.doc(), query)
			if jsonOutput {
				if results == nil {
					results = []search.Result{}
				}
				return json.NewEncoder(os.Stdout).Encode(results)
			}
			if len(results) == 0 {
				fmt.Println(ui.Muted("No matches"))
				return nil
			}
			for _, r := range results {
				fmt.Printf("%-9s %s %s\n", ui.Muted(string(r.Kind)), ui.ID(resultID(r)), r.Title)
				if r.Excerpt != "" {
					fmt.Println("          " + ui.Muted(r.Excerpt))
				}
			}
			fmt.Printf("\n%d matches\n", len(results))
			return nil
		})
	},
}

func resultID(r search.Result) string {
	switch {
	case r.ArticleID != "":
		return shortID(r.ArticleID)
	case r.JournalEntryID != "":
		return shortID(r.JournalEntryID)
	default:
		return r.QuestionID
	}
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
