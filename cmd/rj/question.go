package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/mutation"
	"github.com/researchjournal/rj/internal/schema"
	"github.com/researchjournal/rj/internal/ui"
)

var questionCmd = &cobra.Command{
	Use:     "question",
	Aliases: []string{"q"},
	GroupID: "journal",
	Short:   "List, show and edit research questions",
}

var questionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List questions by theme",
	RunE: func(cmd *cobra.Command, args []string) error {
		starred, _ := cmd.Flags().GetBool("starred")
		status, _ := cmd.Flags().GetString("status")
		if status != "" && !schema.QuestionStatus(status).IsValid() {
			return fmt.Errorf("unknown status %q", status)
		}

		return withSession(cmd, func(s *session) error {
			doc := s.doc()
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(doc.AllQuestions())
			}
			for _, t := range doc.Themes {
				fmt.Println(ui.Title(strings.TrimSpace(t.Icon+" "+t.Theme)), ui.Muted(t.ID))
				for _, q := range t.Questions {
					qd := doc.QuestionData(q.ID)
					if starred && !qd.Starred {
						continue
					}
					if status != "" && qd.Status != schema.QuestionStatus(status) {
						continue
					}
					fmt.Printf("  %s %s %s\n", ui.Star(qd.Starred), ui.ID(q.ID), q.Q)
					fmt.Printf("      %s  %s\n", ui.Status(qd.Status), ui.Muted(fmt.Sprintf("%d notes", len(qd.Notes))))
				}
				fmt.Println()
			}
			return nil
		})
	},
}

var questionShowCmd = &cobra.Command{
	Use:   "show QUESTION",
	Short: "Show a question with its notes, sources and linked articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			id, err := resolveQuestion(s, args[0])
			if err != nil {
				return err
			}
			doc := s.doc()
			ref, _ := doc.FindQuestion(id)
			qd := doc.QuestionData(id)
			q := ref.Question

			fmt.Println(ui.Title(q.Q))
			ui.Fields(os.Stdout,
				"ID", q.ID,
				"Theme", ref.ThemeName,
				"Status", ui.Status(qd.Status),
				"Tags", strings.Join(q.Tags, ", "),
			)
			if q.Why != "" {
				fmt.Printf("\n%s\n%s\n", ui.Muted("Why it matters"), q.Why)
			}
			if q.AppImplication != "" {
				fmt.Printf("\n%s\n%s\n", ui.Muted("Implication"), q.AppImplication)
			}
			if len(qd.SearchPhrases) > 0 {
				fmt.Printf("\n%s\n", ui.Muted("Search phrases"))
				for _, p := range qd.SearchPhrases {
					fmt.Println("  " + p)
				}
			}
			if len(q.Sources)+len(qd.UserSources) > 0 {
				fmt.Printf("\n%s\n", ui.Muted("Sources"))
				for _, src := range q.Sources {
					fmt.Println("  - " + src.Text)
				}
				for _, src := range qd.UserSources {
					fmt.Printf("  - %s %s\n", src.Text, ui.Muted(shortID(src.ID)))
				}
			}
			if len(qd.Notes) > 0 {
				fmt.Printf("\n%s\n", ui.Muted("Notes"))
				for _, n := range qd.Notes {
					stamp := n.CreatedAt.Local().Format("Jan 2, 2006")
					if n.Edited() {
						stamp += " (edited)"
					}
					fmt.Printf("  %s %s\n  %s\n\n", ui.ID(shortID(n.ID)), ui.Muted(stamp), n.Content)
				}
			}
			if articles := doc.ArticlesForQuestion(id); len(articles) > 0 {
				fmt.Printf("\n%s\n", ui.Muted("Linked articles"))
				for _, a := range articles {
					fmt.Printf("  %s %s\n", ui.ID(shortID(a.ID)), a.Title)
				}
			}
			return nil
		})
	},
}

var questionStatusCmd = &cobra.Command{
	Use:   "status QUESTION STATUS",
	Short: "Set a question's status (not_started, exploring, has_findings, concluded)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := schema.QuestionStatus(args[1])
		if !status.IsValid() {
			return fmt.Errorf("unknown status %q", args[1])
		}
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveQuestion(s, args[0])
			if err != nil {
				return nil, "", err
			}
			return mutation.SetStatus(id, status), "Status set to " + status.Label(), nil
		})
	},
}

var questionStarCmd = &cobra.Command{
	Use:   "star QUESTION",
	Short: "Toggle a question's star",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveQuestion(s, args[0])
			if err != nil {
				return nil, "", err
			}
			msg := "Starred"
			if s.doc().QuestionData(id).Starred {
				msg = "Unstarred"
			}
			return mutation.ToggleStar(id), msg, nil
		})
	},
}

var questionPhrasesCmd = &cobra.Command{
	Use:   "phrases QUESTION [PHRASE...]",
	Short: "Set search phrases, or suggest them with --suggest",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		suggest, _ := cmd.Flags().GetBool("suggest")
		if !suggest && len(args) < 2 {
			return fmt.Errorf("give phrases or use --suggest")
		}
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveQuestion(s, args[0])
			if err != nil {
				return nil, "", err
			}
			phrases := args[1:]
			if suggest {
				sum, err := s.summarizer()
				if err != nil {
					return nil, "", err
				}
				ref, _ := s.doc().FindQuestion(id)
				phrases, err = sum.SearchPhrases(cmd.Context(), ref)
				if err != nil {
					return nil, "", err
				}
				for _, p := range phrases {
					fmt.Println("  " + p)
				}
			}
			return mutation.SetSearchPhrases(id, phrases), fmt.Sprintf("Saved %d search phrases", len(phrases)), nil
		})
	},
}

var questionAddCmd = &cobra.Command{
	Use:   "add THEME QUESTION-TEXT",
	Short: "Add a question to a theme",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		why, _ := cmd.Flags().GetString("why")
		impl, _ := cmd.Flags().GetString("implication")
		tags, _ := cmd.Flags().GetString("tags")
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			themeID, err := resolveID("theme", themeIDs(s.doc()), args[0])
			if err != nil {
				return nil, "", err
			}
			q := schema.NewQuestion(strings.Join(args[1:], " "), why, impl, splitTags(tags))
			return mutation.AddQuestion(themeID, q), "Added question " + q.ID, nil
		})
	},
}

var questionEditCmd = &cobra.Command{
	Use:   "edit QUESTION",
	Short: "Edit a question's text, rationale, implication or tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveQuestion(s, args[0])
			if err != nil {
				return nil, "", err
			}
			ref, _ := s.doc().FindQuestion(id)
			q := ref.Question
			edit := mutation.QuestionEdit{Q: q.Q, Why: q.Why, AppImplication: q.AppImplication, Tags: q.Tags}
			flags := cmd.Flags()
			if flags.Changed("text") {
				edit.Q, _ = flags.GetString("text")
			}
			if flags.Changed("why") {
				edit.Why, _ = flags.GetString("why")
			}
			if flags.Changed("implication") {
				edit.AppImplication, _ = flags.GetString("implication")
			}
			if flags.Changed("tags") {
				tags, _ := flags.GetString("tags")
				edit.Tags = splitTags(tags)
			}
			return mutation.UpdateQuestion(id, edit), "Updated question", nil
		})
	},
}

var questionRmCmd = &cobra.Command{
	Use:   "rm QUESTION",
	Short: "Delete a question with its notes, sources and library links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveQuestion(s, args[0])
			if err != nil {
				return nil, "", err
			}
			return mutation.DeleteQuestion(id), "Deleted question " + id, nil
		})
	},
}

var noteCmd = &cobra.Command{
	Use:     "note",
	GroupID: "journal",
	Short:   "Add, edit and delete research notes on a question",
}

var noteAddCmd = &cobra.Command{
	Use:   "add QUESTION TEXT...",
	Short: "Add a note (TEXT of - reads stdin)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(args[1:])
		if err != nil {
			return err
		}
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveQuestion(s, args[0])
			if err != nil {
				return nil, "", err
			}
			return mutation.AddNote(id, schema.NewNote(text)), "Note added", nil
		})
	},
}

var noteEditCmd = &cobra.Command{
	Use:   "edit QUESTION NOTE TEXT...",
	Short: "Replace a note's text",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(args[2:])
		if err != nil {
			return err
		}
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			qid, noteID, err := resolveNote(s, args[0], args[1])
			if err != nil {
				return nil, "", err
			}
			return mutation.UpdateNote(qid, noteID, text), "Note updated", nil
		})
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm QUESTION NOTE",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			qid, noteID, err := resolveNote(s, args[0], args[1])
			if err != nil {
				return nil, "", err
			}
			return mutation.DeleteNote(qid, noteID), "Note deleted", nil
		})
	},
}

var sourceCmd = &cobra.Command{
	Use:     "source",
	GroupID: "journal",
	Short:   "Add and delete your own sources on a question",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add QUESTION CITATION...",
	Short: "Add a source",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doi, _ := cmd.Flags().GetString("doi")
		url, _ := cmd.Flags().GetString("url")
		notes, _ := cmd.Flags().GetString("notes")
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			id, err := resolveQuestion(s, args[0])
			if err != nil {
				return nil, "", err
			}
			src := schema.NewUserSource(strings.Join(args[1:], " "), doi, url, notes)
			return mutation.AddSource(id, src), "Source added", nil
		})
	},
}

var sourceRmCmd = &cobra.Command{
	Use:   "rm QUESTION SOURCE",
	Short: "Delete a source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			qid, err := resolveQuestion(s, args[0])
			if err != nil {
				return nil, "", err
			}
			var ids []string
			for _, src := range s.doc().QuestionData(qid).UserSources {
				ids = append(ids, src.ID)
			}
			sid, err := resolveID("source", ids, args[1])
			if err != nil {
				return nil, "", err
			}
			return mutation.DeleteSource(qid, sid), "Source deleted", nil
		})
	},
}

func resolveNote(s *session, questionArg, noteArg string) (string, string, error) {
	qid, err := resolveQuestion(s, questionArg)
	if err != nil {
		return "", "", err
	}
	var ids []string
	for _, n := range s.doc().QuestionData(qid).Notes {
		ids = append(ids, n.ID)
	}
	noteID, err := resolveID("note", ids, noteArg)
	return qid, noteID, err
}

func init() {
	questionListCmd.Flags().Bool("starred", false, "Only starred questions")
	questionListCmd.Flags().String("status", "", "Only questions with this status")
	questionPhrasesCmd.Flags().Bool("suggest", false, "Ask the AI for search phrases")
	questionAddCmd.Flags().String("why", "", "Why the question matters")
	questionAddCmd.Flags().String("implication", "", "What it implies in practice")
	questionAddCmd.Flags().String("tags", "", "Comma-separated tags")
	questionEditCmd.Flags().String("text", "", "Question text")
	questionEditCmd.Flags().String("why", "", "Why the question matters")
	questionEditCmd.Flags().String("implication", "", "What it implies in practice")
	questionEditCmd.Flags().String("tags", "", "Comma-separated tags")
	questionCmd.AddCommand(questionListCmd, questionShowCmd, questionStatusCmd, questionStarCmd,
		questionPhrasesCmd, questionAddCmd, questionEditCmd, questionRmCmd)

	sourceAddCmd.Flags().String("doi", "", "DOI of the source")
	sourceAddCmd.Flags().String("url", "", "Link to the source")
	sourceAddCmd.Flags().String("notes", "", "Your notes on the source")
	sourceCmd.AddCommand(sourceAddCmd, sourceRmCmd)

	noteCmd.AddCommand(noteAddCmd, noteEditCmd, noteRmCmd)
	rootCmd.AddCommand(questionCmd, noteCmd, sourceCmd)
}
