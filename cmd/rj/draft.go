package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/ui"
)

var draftCmd = &cobra.Command{
	Use:     "draft",
	GroupID: "journal",
	Short:   "Keep unfinished text between sessions",
	Long: `Drafts hold in-progress text per editor scope, such as "journal" or
"note-<question id>". They stay on this device and are never synced.`,
}

var draftSaveCmd = &cobra.Command{
	Use:   "save SCOPE TEXT...",
	Short: "Save a draft (TEXT of - reads stdin)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(args[1:])
		if err != nil {
			return err
		}
		adapter, err := openAdapter()
		if err != nil {
			return err
		}
		defer adapter.Storage().Close()
		if err := adapter.SaveDraft(args[0], text); err != nil {
			return err
		}
		fmt.Println(ui.Success("Draft saved"))
		return nil
	},
}

var draftShowCmd = &cobra.Command{
	Use:   "show SCOPE",
	Short: "Print a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := openAdapter()
		if err != nil {
			return err
		}
		defer adapter.Storage().Close()
		text, ok := adapter.LoadDraft(args[0])
		if !ok {
			return fmt.Errorf("no draft for %q", args[0])
		}
		fmt.Println(text)
		return nil
	},
}

var draftClearCmd = &cobra.Command{
	Use:   "clear SCOPE",
	Short: "Discard a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := openAdapter()
		if err != nil {
			return err
		}
		defer adapter.Storage().Close()
		if err := adapter.ClearDraft(args[0]); err != nil {
			return err
		}
		fmt.Println(ui.Success("Draft cleared"))
		return nil
	},
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List draft scopes",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := openAdapter()
		if err != nil {
			return err
		}
		defer adapter.Storage().Close()
		scopes, err := adapter.Drafts()
		if err != nil {
			return err
		}
		sort.Strings(scopes)
		for _, scope := range scopes {
			fmt.Println(scope)
		}
		return nil
	},
}

func init() {
	draftCmd.AddCommand(draftSaveCmd, draftShowCmd, draftClearCmd, draftListCmd)
	rootCmd.AddCommand(draftCmd)
}
