package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/researchjournal/rj/internal/server"
	"github.com/researchjournal/rj/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Run the sync server",
	Long: `Run the rj server: password login, the document endpoint, the document
event stream and the Anthropic proxy.

Required settings:
  server.password_hash    bcrypt hash of the login password (see 'rj serve hash')
  server.session_secret   secret used to sign session cookies

The document is stored in SQLite (server.sqlite_path) or Redis
(server.store = "redis", server.redis_url).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if cfg.Server.PasswordHash == "" || cfg.Server.SessionSecret == "" {
			fmt.Fprintln(os.Stderr, ui.Warn("Warning: auth not configured, logins will fail"))
		}

		store, err := openDocumentStore()
		if err != nil {
			return err
		}
		defer store.Close()

		srv := server.New(server.Config{
			Addr:             cfg.Server.Addr,
			PasswordHash:     cfg.Server.PasswordHash,
			SessionSecret:    cfg.Server.SessionSecret,
			AnthropicAPIKey:  cfg.Server.AnthropicAPIKey,
			AnthropicBaseURL: cfg.Server.AnthropicBaseURL,
			Verbose:          cfg.Log.Verbose,
			Logger:           logOut.Logger("server"),
		}, store)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("Server starting on %s (%s store)\n", cfg.Server.Addr, cfg.Server.Store)
		fmt.Println("Press Ctrl+C to stop...")
		if err := srv.Run(ctx); err != nil {
			return err
		}
		fmt.Println("Server stopped")
		return nil
	},
}

var serveHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Print a bcrypt hash for server.password_hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := ui.Password("Password")
		if err != nil {
			return err
		}
		if password == "" {
			return errors.New("password must not be empty")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		fmt.Println(string(hash))
		return nil
	},
}

func openDocumentStore() (server.DocumentStore, error) {
	if cfg.Server.Store == "redis" {
		if cfg.Server.RedisURL == "" {
			return nil, errors.New("server.redis_url is required for the redis store")
		}
		return server.NewRedisStore(cfg.Server.RedisURL)
	}
	return server.OpenSQLiteStore(cfg.Server.SQLitePath)
}

func init() {
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.AddCommand(serveHashCmd)
	rootCmd.AddCommand(serveCmd)
}
