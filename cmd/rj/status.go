package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/coordinator"
	"github.com/researchjournal/rj/internal/schema"
	"github.com/researchjournal/rj/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync state and journal totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			snap := s.coord.Snapshot()
			doc := snap.Document
			counts := doc.StatusCounts()

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"state":        snap.State.String(),
					"sync":         snap.Status,
					"pending":      s.coord.Pending(),
					"remote":       s.client.BaseURL(),
					"localOnly":    s.client.LocalOnly(),
					"lastModified": doc.LastModified,
					"questions":    counts,
					"notes":        doc.TotalNotes(),
					"journal":      len(doc.Journal),
					"library":      len(doc.Library),
				})
			}

			remoteURL := s.client.BaseURL()
			if s.client.LocalOnly() {
				remoteURL = ui.Muted("local only")
			}
			modified := ui.Muted("never saved")
			if !doc.LastModified.IsZero() {
				modified = doc.LastModified.Local().Format("Jan 2, 2006 15:04:05")
			}
			pending := "no"
			if s.coord.Pending() {
				pending = "yes (pushed on exit)"
			}
			ui.Fields(os.Stdout,
				"State", snap.State.String(),
				"Sync", syncLabel(snap.Status),
				"Pending", pending,
				"Remote", remoteURL,
				"Modified", modified,
			)
			fmt.Println()
			fmt.Println(ui.Title("Questions"))
			for _, st := range schema.QuestionStatuses {
				fmt.Printf("  %-14s %d\n", ui.Status(st), counts[st])
			}
			fmt.Println()
			ui.Fields(os.Stdout,
				"Notes", strconv.Itoa(doc.TotalNotes()),
				"Starred", strconv.Itoa(len(doc.StarredQuestions())),
				"Journal", strconv.Itoa(len(doc.Journal)),
				"Library", strconv.Itoa(len(doc.Library)),
			)
			return nil
		})
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Reconcile with the server and push the local document",
	Long: `Fetch the server copy, keep whichever copy was modified last, and push the
result. This is also how to retry after a failed push.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			if s.client.LocalOnly() {
				fmt.Println(ui.Muted("No server configured, nothing to sync"))
				return nil
			}
			if status := s.coord.Status(); status == coordinator.StatusOffline || status == coordinator.StatusError {
				return fmt.Errorf("server unreachable (%s)", status)
			}
			if err := s.coord.Flush(cmd.Context()); err != nil {
				return fmt.Errorf("push failed: %w", err)
			}
			fmt.Println(ui.Success("Synced"), ui.Muted(s.doc().LastModified.Local().Format("Jan 2, 2006 15:04:05")))
			return nil
		})
	},
}

func syncLabel(st coordinator.SyncStatus) string {
	switch st {
	case coordinator.StatusSaved:
		return ui.Success(string(st))
	case coordinator.StatusSaving:
		return ui.Warn(string(st))
	default:
		return ui.Error(string(st))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd, syncCmd)
}
