package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/researchjournal/rj/internal/coordinator"
	"github.com/researchjournal/rj/internal/localstore"
	"github.com/researchjournal/rj/internal/mutation"
	"github.com/researchjournal/rj/internal/remote"
	"github.com/researchjournal/rj/internal/schema"
	"github.com/researchjournal/rj/internal/summary"
	"github.com/researchjournal/rj/internal/ui"
)

// readyTimeout bounds how long a command waits for the first reconciliation.
const readyTimeout = 20 * time.Second

var (
	errNoChange  = errors.New("nothing changed")
	errCancelled = errors.New("cancelled")
)

// session is one open journal: local store, remote client and coordinator.
type session struct {
	store   localstore.Storage
	adapter *localstore.Adapter
	client  *remote.Client
	coord   *coordinator.Coordinator
	closed  bool
}

func openStorage() (localstore.Storage, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return localstore.OpenSQLite(filepath.Join(cfg.Storage.Dir, "rj.db"))
	case "memory":
		return localstore.NewMemStorage(nil), nil
	default:
		return localstore.OpenDir(cfg.Storage.Dir)
	}
}

func openAdapter() (*localstore.Adapter, error) {
	store, err := openStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return localstore.NewAdapter(store, logOut.Logger("localstore")), nil
}

func newClient(adapter *localstore.Adapter) *remote.Client {
	token := cfg.Remote.Session
	if token == "" {
		token = adapter.SessionToken()
	}
	return remote.New(remote.Config{
		BaseURL:   cfg.Remote.URL,
		LocalOnly: cfg.Remote.LocalOnly,
		Session:   token,
		Logger:    logOut.Logger("remote"),
	})
}

// openSession starts a coordinator and waits for the initial reconciliation.
func openSession(ctx context.Context) (*session, error) {
	adapter, err := openAdapter()
	if err != nil {
		return nil, err
	}
	client := newClient(adapter)

	ccfg := coordinator.DefaultConfig()
	ccfg.DebounceInterval = cfg.Sync.Debounce
	ccfg.Retry = cfg.Sync.Retry
	ccfg.RetryMax = cfg.Sync.RetryMax
	ccfg.Verbose = cfg.Log.Verbose
	ccfg.Logger = logOut.Logger("coordinator")

	coord := coordinator.NewWithConfig(adapter, client, ccfg)
	coord.Start(ctx)

	s := &session{store: adapter.Storage(), adapter: adapter, client: client, coord: coord}
	select {
	case <-coord.Ready():
	case <-time.After(readyTimeout):
		fmt.Fprintln(os.Stderr, ui.Warn("Server did not answer in time, working offline"))
	case <-ctx.Done():
		_ = s.Close()
		return nil, ctx.Err()
	}
	return s, nil
}

// Close pushes any pending change and releases the store.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.coord.Stop()
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (s *session) doc() *schema.Document {
	return s.coord.Document()
}

// summarizer talks to the API directly when a key is configured and
// through the server's proxy otherwise.
func (s *session) summarizer() (*summary.Summarizer, error) {
	if cfg.AI.APIKey != "" {
		return summary.New(summary.Config{APIKey: cfg.AI.APIKey, Model: cfg.AI.Model}), nil
	}
	if s.client.LocalOnly() {
		return nil, errors.New("no AI access: set ai.api_key or configure a server")
	}
	return summary.New(summary.Config{
		BaseURL: s.client.BaseURL() + "/api/anthropic/",
		Session: s.client.Session(),
		Model:   cfg.AI.Model,
	}), nil
}

// withSession runs fn against an open session and closes it afterwards.
func withSession(cmd *cobra.Command, fn func(s *session) error) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// mutate builds an op against the open session, applies it, waits for it
// to be pushed and reports done.
func mutate(cmd *cobra.Command, build func(s *session) (mutation.Op, string, error)) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	op, done, err := build(s)
	if errors.Is(err, errCancelled) {
		_ = s.Close()
		fmt.Println("Cancelled")
		return nil
	}
	if err != nil {
		_ = s.Close()
		return err
	}
	if !s.coord.Apply(op) {
		_ = s.Close()
		return errNoChange
	}
	return finish(s, done)
}

// finish closes s and prints done plus the sync result.
func finish(s *session, done string) error {
	if err := s.Close(); err != nil {
		fmt.Println(ui.Success(done))
		fmt.Fprintln(os.Stderr, ui.Warn("Saved locally, sync failed: "+err.Error()))
		return nil
	}
	if s.client.LocalOnly() {
		fmt.Println(ui.Success(done))
	} else {
		fmt.Println(ui.Success(done), ui.Muted("(synced)"))
	}
	return nil
}

// resolveID matches arg against ids exactly or by unique prefix.
func resolveID(kind string, ids []string, arg string) (string, error) {
	var matches []string
	for _, id := range ids {
		if id == arg {
			return id, nil
		}
		if strings.HasPrefix(id, arg) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no %s matches %q", kind, arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d %ss, use a longer prefix", arg, len(matches), kind)
	}
}

func questionIDs(doc *schema.Document) []string {
	var ids []string
	for _, ref := range doc.AllQuestions() {
		ids = append(ids, ref.Question.ID)
	}
	return ids
}

func themeIDs(doc *schema.Document) []string {
	ids := make([]string, len(doc.Themes))
	for i, t := range doc.Themes {
		ids[i] = t.ID
	}
	return ids
}

func articleIDs(doc *schema.Document) []string {
	ids := make([]string, len(doc.Library))
	for i, a := range doc.Library {
		ids[i] = a.ID
	}
	return ids
}

func journalIDs(doc *schema.Document) []string {
	ids := make([]string, len(doc.Journal))
	for i, e := range doc.Journal {
		ids[i] = e.ID
	}
	return ids
}

// resolveQuestion is resolveID over the question ids of the stored document.
func resolveQuestion(s *session, arg string) (string, error) {
	return resolveID("question", questionIDs(s.doc()), arg)
}

func resolveArticle(s *session, arg string) (string, error) {
	return resolveID("article", articleIDs(s.doc()), arg)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// textArg joins args, or reads stdin when the only arg is "-".
func textArg(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := readAllStdin()
		if err != nil {
			return "", err
		}
		return strings.TrimRight(data, "\n"), nil
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", errors.New("text must not be empty")
	}
	return text, nil
}

func readAllStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}
