package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/config"
	"github.com/researchjournal/rj/internal/logging"
	"github.com/researchjournal/rj/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Manage rj configuration",
	// The file may not exist yet, so a missing explicit path is not an error here.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Init(noColor)
		logOut = logging.Discard()
		loaded, err := config.Load(configPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if loaded == nil {
			d := config.Default()
			loaded = &d
		}
		cfg = loaded
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a config file with every setting at its default value.

Settings can also be given as environment variables, e.g. RJ_REMOTE_URL or
RJ_SYNC_DEBOUNCE=1s, which take precedence over the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile()
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Println(ui.Success("Wrote " + path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		if shown.Remote.Session != "" {
			shown.Remote.Session = "(set)"
		}
		for _, secret := range []*string{&shown.Server.SessionSecret, &shown.Server.AnthropicAPIKey, &shown.AI.APIKey} {
			if *secret != "" {
				*secret = "(set)"
			}
		}
		if cfg.Path != "" {
			fmt.Println(ui.Muted("# " + cfg.Path))
		}
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(shown)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a single key in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value any = args[1]
		if b, err := strconv.ParseBool(args[1]); err == nil {
			value = b
		} else if n, err := strconv.Atoi(args[1]); err == nil {
			value = n
		}
		path := configFile()
		if err := config.Set(path, args[0], value); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Set %s in %s", args[0], path)))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configFile())
	},
}

func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
