package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/localstore"
	"github.com/researchjournal/rj/internal/notify"
	"github.com/researchjournal/rj/internal/remote"
	"github.com/researchjournal/rj/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Keep the journal in sync until interrupted",
	Long: `Run a long-lived sync session.

Changes written to the local store by other rj processes or the capture
extension are picked up and pushed. Documents pushed by other devices arrive
over the server's event stream and are adopted when newer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}

		notifiers, err := startNotifiers(ctx, s)
		if err != nil {
			_ = s.Close()
			return err
		}
		for _, n := range notifiers {
			s.coord.Watch(n)
		}

		snaps, unsubscribe := s.coord.Subscribe()
		fmt.Println(ui.Title("Watching"), ui.Muted(cfg.Storage.Dir))
		fmt.Println(ui.Muted("Press Ctrl+C to stop..."))

		var lastStatus string
		var lastModified time.Time
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case snap, ok := <-snaps:
				if !ok {
					break loop
				}
				if st := string(snap.Status); st != lastStatus {
					lastStatus = st
					fmt.Printf("%s %s\n", ui.Muted(time.Now().Format("15:04:05")), syncLabel(snap.Status))
				}
				if !snap.Document.LastModified.Equal(lastModified) {
					lastModified = snap.Document.LastModified
					fmt.Printf("%s document %s\n", ui.Muted(time.Now().Format("15:04:05")), lastModified.Local().Format(time.RFC3339))
				}
			}
		}

		fmt.Println("\nStopping...")
		unsubscribe()
		err = s.Close()
		for _, n := range notifiers {
			_ = n.Close()
		}
		return err
	},
}

// startNotifiers wires the change sources for the configured backend plus
// the server event stream.
func startNotifiers(ctx context.Context, s *session) ([]notify.Notifier, error) {
	var notifiers []notify.Notifier

	switch store := s.store.(type) {
	case *localstore.FSStorage:
		fw, err := localstore.NewFileWatcher(store, localstore.DocumentKey)
		if err != nil {
			return nil, err
		}
		if err := fw.Start(); err != nil {
			return nil, err
		}
		go func() {
			for err := range fw.Errors() {
				logOut.Logger("watch").Printf("Watcher error: %v", err)
			}
		}()
		notifiers = append(notifiers, fw)

	case *localstore.SQLiteStorage:
		p := localstore.NewPoller(store, localstore.DefaultPollInterval, localstore.DocumentKey)
		if err := p.Start(ctx); err != nil {
			return nil, err
		}
		notifiers = append(notifiers, p)
	}

	if !s.client.LocalOnly() {
		sub := remote.NewSubscriber(s.client)
		sub.Start(ctx)
		notifiers = append(notifiers, sub)
	}
	return notifiers, nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
