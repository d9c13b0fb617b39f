package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/remote"
	"github.com/researchjournal/rj/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "sync",
	Short:   "Sign in to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := openAdapter()
		if err != nil {
			return err
		}
		defer adapter.Storage().Close()

		client := newClient(adapter)
		if client.LocalOnly() {
			return errors.New("no server configured (set remote.url)")
		}

		var password string
		if fromStdin, _ := cmd.Flags().GetBool("password-stdin"); fromStdin {
			password, err = readAllStdin()
			password = strings.TrimRight(password, "\r\n")
		} else {
			password, err = ui.Password("Password for " + client.BaseURL())
		}
		if err != nil {
			return err
		}

		token, err := client.Login(cmd.Context(), password)
		if errors.Is(err, remote.ErrWrongPassword) {
			return errors.New("wrong password")
		}
		if err != nil {
			return err
		}
		if err := adapter.SetSessionToken(token); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}
		fmt.Println(ui.Success("Signed in to " + client.BaseURL()))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "sync",
	Short:   "Sign out and forget the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := openAdapter()
		if err != nil {
			return err
		}
		defer adapter.Storage().Close()

		client := newClient(adapter)
		if err := client.Logout(cmd.Context()); err != nil {
			fmt.Println(ui.Warn("Server logout failed: " + err.Error()))
		}
		if err := adapter.SetSessionToken(""); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		fmt.Println(ui.Success("Signed out"))
		return nil
	},
}

func init() {
	loginCmd.Flags().Bool("password-stdin", false, "Read the password from stdin")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
