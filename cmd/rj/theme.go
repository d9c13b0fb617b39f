package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/localstore"
	"github.com/researchjournal/rj/internal/mutation"
	"github.com/researchjournal/rj/internal/schema"
	"github.com/researchjournal/rj/internal/ui"
)

var themeCmd = &cobra.Command{
	Use:     "theme",
	GroupID: "journal",
	Short:   "Manage themes",
}

var themeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List themes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			doc := s.doc()
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(doc.Themes)
			}
			for _, t := range doc.Themes {
				fmt.Printf("%s %s %s\n", ui.ID(t.ID), strings.TrimSpace(t.Icon+" "+t.Theme),
					ui.Muted(fmt.Sprintf("(%d questions)", len(t.Questions))))
				if t.Description != "" {
					fmt.Println("    " + ui.Muted(t.Description))
				}
			}
			return nil
		})
	},
}

var themeAddCmd = &cobra.Command{
	Use:   "add NAME...",
	Short: "Add a theme",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		color, _ := cmd.Flags().GetString("color")
		icon, _ := cmd.Flags().GetString("icon")
		desc, _ := cmd.Flags().GetString("description")
		name := strings.TrimSpace(strings.Join(args, " "))
		if name == "" {
			return fmt.Errorf("theme name must not be empty")
		}
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			t := schema.NewTheme(name, color, icon, desc)
			return mutation.AddTheme(t), "Added theme " + t.ID, nil
		})
	},
}

var themeEditCmd = &cobra.Command{
	Use:   "edit THEME",
	Short: "Edit a theme's name, colour, icon or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			doc := s.doc()
			id, err := resolveID("theme", themeIDs(doc), args[0])
			if err != nil {
				return nil, "", err
			}
			t := doc.Themes[doc.FindTheme(id)]
			edit := mutation.ThemeEdit{Name: t.Theme, Color: t.Color, Icon: t.Icon, Description: t.Description}
			flags := cmd.Flags()
			if flags.Changed("name") {
				edit.Name, _ = flags.GetString("name")
			}
			if flags.Changed("color") {
				edit.Color, _ = flags.GetString("color")
			}
			if flags.Changed("icon") {
				edit.Icon, _ = flags.GetString("icon")
			}
			if flags.Changed("description") {
				edit.Description, _ = flags.GetString("description")
			}
			if strings.TrimSpace(edit.Name) == "" {
				return nil, "", fmt.Errorf("theme name must not be empty")
			}
			return mutation.UpdateTheme(id, edit), "Updated theme", nil
		})
	},
}

var themeRmCmd = &cobra.Command{
	Use:   "rm THEME",
	Short: "Delete a theme and all of its questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		return mutate(cmd, func(s *session) (mutation.Op, string, error) {
			doc := s.doc()
			id, err := resolveID("theme", themeIDs(doc), args[0])
			if err != nil {
				return nil, "", err
			}
			t := doc.Themes[doc.FindTheme(id)]
			if !yes && len(t.Questions) > 0 {
				ok, err := ui.Confirm("Delete "+t.Theme+"?",
					fmt.Sprintf("%d questions and their notes will be removed.", len(t.Questions)))
				if err != nil {
					return nil, "", err
				}
				if !ok {
					return nil, "", errCancelled
				}
			}
			return mutation.DeleteTheme(id), "Deleted theme " + t.Theme, nil
		})
	},
}

var themePrefCmd = &cobra.Command{
	Use:     "theme-pref [light|dark|system]",
	GroupID: "setup",
	Short:   "Show or set the colour scheme preference",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := openAdapter()
		if err != nil {
			return err
		}
		defer adapter.Storage().Close()

		if len(args) == 0 {
			fmt.Println(adapter.ThemePreference())
			return nil
		}
		if err := adapter.SetThemePreference(localstore.ThemePreference(args[0])); err != nil {
			return err
		}
		fmt.Println(ui.Success("Theme preference set to " + args[0]))
		return nil
	},
}

func init() {
	themeAddCmd.Flags().String("color", "", "Accent colour, e.g. #6366f1")
	themeAddCmd.Flags().String("icon", "", "Icon shown before the name")
	themeAddCmd.Flags().String("description", "", "Short description")
	themeEditCmd.Flags().String("name", "", "Theme name")
	themeEditCmd.Flags().String("color", "", "Accent colour")
	themeEditCmd.Flags().String("icon", "", "Icon shown before the name")
	themeEditCmd.Flags().String("description", "", "Short description")
	themeRmCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	themeCmd.AddCommand(themeListCmd, themeAddCmd, themeEditCmd, themeRmCmd)
	rootCmd.AddCommand(themeCmd, themePrefCmd)
}
