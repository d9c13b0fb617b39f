package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/export"
	"github.com/researchjournal/rj/internal/schema"
	"github.com/researchjournal/rj/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "journal",
	Short:   "Export the journal as JSON or Markdown",
	Long: `Export the whole journal. JSON output can be imported again with
'rj import'; Markdown is for reading and sharing.

Examples:
  rj export > backup.json
  rj export --format markdown -o journal.md
  rj export --format markdown --question error-learning-0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		question, _ := cmd.Flags().GetString("question")
		output, _ := cmd.Flags().GetString("output")

		return withSession(cmd, func(s *session) error {
			doc := s.doc()
			var data []byte
			switch format {
			case "json":
				if question != "" {
					return fmt.Errorf("--question requires --format markdown")
				}
				out, err := schema.Export(doc)
				if err != nil {
					return err
				}
				data = append(out, '\n')
			case "markdown", "md":
				if question != "" {
					id, err := resolveQuestion(s, question)
					if err != nil {
						return err
					}
					md, err := export.QuestionMarkdown(doc, id)
					if err != nil {
						return err
					}
					data = []byte(md)
				} else {
					data = []byte(export.Markdown(doc, time.Now()))
				}
			default:
				return fmt.Errorf("unknown format %q (json or markdown)", format)
			}

			if output == "" || output == "-" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintln(os.Stderr, ui.Success("Exported to "+output))
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:     "import FILE",
	GroupID: "journal",
	Short:   "Replace the journal with an exported JSON file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		// Validated again by the coordinator; parsed here for the summary.
		doc, err := schema.Import(data)
		if err != nil {
			return fmt.Errorf("invalid import file: %w", err)
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			ok, err := ui.Confirm("Replace your journal?",
				fmt.Sprintf("%d themes, %d journal entries and %d articles will replace the current data.",
					len(doc.Themes), len(doc.Journal), len(doc.Library)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Import cancelled")
				return nil
			}
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		if err := s.coord.Import(data); err != nil {
			_ = s.Close()
			return fmt.Errorf("import failed: %w", err)
		}
		return finish(s, "Imported "+args[0])
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", "json", "Output format: json or markdown")
	exportCmd.Flags().StringP("question", "q", "", "Export a single question (markdown only)")
	exportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	importCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(exportCmd, importCmd)
}
