package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/mutation"
	"github.com/researchjournal/rj/internal/schema"
	"github.com/researchjournal/rj/internal/ui"
)

var journalCmd = &cobra.Command{
	Use:     "journal",
	Aliases: []string{"j"},
	GroupID: "journal",
	Short:   "Write and read dated journal entries",
}

var journalAddCmd = &cobra.Command{
	Use:   "add TEXT...",
	Short: "Add a journal entry (TEXT of - reads stdin)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(args)
		if err != nil {
			return err
		}
		questionArg, _ := cmd.Flags().GetString("question")
		themeArg, _ := cmd.Flags().GetString("theme")
		tags, _ := cmd.Flags().GetString("tags")

		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			doc := s.doc()
			var questionID, themeID string
			if questionArg != "" {
				id, err := resolveQuestion(s, questionArg)
				if err != nil {
					return nil, "", err
				}
				ref, _ := doc.FindQuestion(id)
				questionID, themeID = id, ref.ThemeID
			}
			if themeArg != "" {
				id, err := resolveID("theme", themeIDs(doc), themeArg)
				if err != nil {
					return nil, "", err
				}
				themeID = id
			}
			e := schema.NewJournalEntry(text, questionID, themeID, splitTags(tags))
			return mutation.AddJournalEntry(e), "Journal entry added", nil
		})
	},
}

var journalEditCmd = &cobra.Command{
	Use:   "edit ENTRY TEXT...",
	Short: "Replace a journal entry's text",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(args[1:])
		if err != nil {
			return err
		}
		var tags []string
		if cmd.Flags().Changed("tags") {
			raw, _ := cmd.Flags().GetString("tags")
			tags = splitTags(raw)
		}
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveID("journal entry", journalIDs(s.doc()), args[0])
			if err != nil {
				return nil, "", err
			}
			return mutation.UpdateJournalEntry(id, text, tags), "Journal entry updated", nil
		})
	},
}

var journalRmCmd = &cobra.Command{
	Use:   "rm ENTRY",
	Short: "Delete a journal entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveID("journal entry", journalIDs(s.doc()), args[0])
			if err != nil {
				return nil, "", err
			}
			return mutation.DeleteJournalEntry(id), "Journal entry deleted", nil
		})
	},
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries, newest first",
	Long: `List journal entries, newest first.

--since takes a date (2024-05-01) or a phrase such as "last week",
"3 days ago" or "yesterday".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sinceArg, _ := cmd.Flags().GetString("since")
		questionArg, _ := cmd.Flags().GetString("question")
		limit, _ := cmd.Flags().GetInt("limit")

		var since time.Time
		if sinceArg != "" {
			var err error
			if since, err = parseSince(sinceArg, time.Now()); err != nil {
				return err
			}
		}

		return withSession(cmd, func(s *session) error {
			doc := s.doc()
			entries := doc.JournalSince(since)
			if questionArg != "" {
				id, err := resolveQuestion(s, questionArg)
				if err != nil {
					return err
				}
				var filtered []schema.JournalEntry
				for _, e := range entries {
					if schema.Deref(e.QuestionID) == id {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if jsonOutput {
				if entries == nil {
					entries = []schema.JournalEntry{}
				}
				return json.NewEncoder(os.Stdout).Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Println(ui.Muted("No journal entries"))
				return nil
			}
			for _, e := range entries {
				header := e.CreatedAt.Local().Format("Mon Jan 2, 2006 15:04")
				if qid := schema.Deref(e.QuestionID); qid != "" {
					if ref, ok := doc.FindQuestion(qid); ok {
						header += "  " + ui.Muted(ref.Question.Q)
					}
				}
				fmt.Printf("%s %s\n", ui.ID(shortID(e.ID)), header)
				fmt.Println(indent(e.Content, "  "))
				if len(e.Tags) > 0 {
					fmt.Println("  " + ui.Muted("#"+strings.Join(e.Tags, " #")))
				}
				fmt.Println()
			}
			return nil
		})
	},
}

// parseSince accepts an ISO date or a relative phrase like "last week".
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
	return r.Time, nil
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}

func init() {
	journalAddCmd.Flags().StringP("question", "q", "", "Tie the entry to a question")
	journalAddCmd.Flags().String("theme", "", "Tie the entry to a theme")
	journalAddCmd.Flags().String("tags", "", "Comma-separated tags")
	journalEditCmd.Flags().String("tags", "", "Replace tags (comma-separated)")
	journalListCmd.Flags().String("since", "", "Only entries from this date or phrase on")
	journalListCmd.Flags().StringP("question", "q", "", "Only entries tied to this question")
	journalListCmd.Flags().IntP("limit", "n", 0, "Show at most this many entries")

	journalCmd.AddCommand(journalAddCmd, journalEditCmd, journalRmCmd, journalListCmd)
	rootCmd.AddCommand(journalCmd)
}
