// Command rj is the research journal: questions, notes, a reading library and
// a journal, kept in a local store and synced to a server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/config"
	"github.com/researchjournal/rj/internal/logging"
	"github.com/researchjournal/rj/internal/ui"
)

var (
	configPath string
	verbose    bool
	noColor    bool
	jsonOutput bool

	cfg    *config.Config
	logOut *logging.Output
)

var rootCmd = &cobra.Command{
	Use:   "rj",
	Short: "Research journal: questions, notes, library and sync",
	Long: `rj keeps a personal research journal: research questions grouped by theme,
notes and sources per question, a dated journal and a library of articles.

The journal lives in a local store and is synced to an rj server when one is
configured. Edits are saved locally first and pushed shortly after; the newest
copy wins when two devices disagree.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Verbose = true
		}
		logOut, err = logging.Setup(logging.Options{File: cfg.Log.File, Verbose: cfg.Log.Verbose})
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		ui.Init(noColor)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logOut != nil {
			return logOut.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/rj/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON where supported")

	rootCmd.AddGroup(
		&cobra.Group{ID: "journal", Title: "Journal Commands:"},
		&cobra.Group{ID: "library", Title: "Library Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Error("Error:"), err)
		os.Exit(1)
	}
}
