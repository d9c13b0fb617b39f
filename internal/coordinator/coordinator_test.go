package coordinator

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/researchjournal/rj/internal/localstore"
	"github.com/researchjournal/rj/internal/mutation"
	"github.com/researchjournal/rj/internal/notify"
	"github.com/researchjournal/rj/internal/schema"
)

// fakeRemote records pushes and serves a fixed document.
type fakeRemote struct {
	mu        sync.Mutex
	doc       *schema.Document
	fetchErr  error
	pushErr   error
	failPush  int
	localOnly bool
	pushes    []*schema.Document
}

func (f *fakeRemote) FetchRemote(ctx context.Context) (*schema.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.localOnly {
		return nil, nil
	}
	return f.doc, nil
}

func (f *fakeRemote) PushRemote(ctx context.Context, doc *schema.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.localOnly {
		return nil
	}
	if f.failPush > 0 {
		f.failPush--
		return errors.New("push failed")
	}
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, doc)
	f.doc = doc
	return nil
}

func (f *fakeRemote) LocalOnly() bool { return f.localOnly }

func (f *fakeRemote) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

func (f *fakeRemote) lastPush() *schema.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pushes) == 0 {
		return nil
	}
	return f.pushes[len(f.pushes)-1]
}

func testConfig() *Config {
	return &Config{
		DebounceInterval: 30 * time.Millisecond,
		PushTimeout:      time.Second,
		RetryMax:         3,
		RetryBaseDelay:   10 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	}
}

func stamped(t time.Time) *schema.Document {
	doc := schema.Seed()
	doc.LastModified = t
	return doc
}

// setupCoordinator stores local (if non-nil), starts a coordinator and waits
// for reconciliation.
func setupCoordinator(t *testing.T, local *schema.Document, rem *fakeRemote) (*Coordinator, *localstore.Adapter) {
	t.Helper()
	adapter := localstore.NewQuietAdapter(localstore.NewMemStorage(nil))
	if local != nil {
		if err := adapter.Replace(local); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
	}
	c := NewWithConfig(adapter, rem, testConfig())
	c.Start(context.Background())
	waitReady(t, c)
	t.Cleanup(func() { c.Stop() })
	return c, adapter
}

func waitReady(t *testing.T, c *Coordinator) {
	t.Helper()
	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never became ready")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle waits long enough for any debounced push to have fired.
func settle() {
	time.Sleep(150 * time.Millisecond)
}

func TestResolve(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	offsets := []time.Duration{-time.Hour, -time.Millisecond, 0, time.Millisecond, time.Hour}

	for _, d := range offsets {
		local := stamped(base)
		remote := stamped(base.Add(d))
		got, adopted := Resolve(local, remote)
		wantRemote := d >= 0
		if adopted != wantRemote {
			t.Errorf("offset %v: adopted = %v, want %v", d, adopted, wantRemote)
		}
		if wantRemote && got != remote {
			t.Errorf("offset %v: expected remote document", d)
		}
		if !wantRemote && got != local {
			t.Errorf("offset %v: expected local document", d)
		}
	}

	local := stamped(base)
	if got, adopted := Resolve(local, nil); got != local || adopted {
		t.Error("nil remote must keep local")
	}
}

func TestStart_FreshInstallPublishes(t *testing.T) {
	rem := &fakeRemote{}
	c, _ := setupCoordinator(t, nil, rem)

	if c.State() != StateReady {
		t.Errorf("expected ready, got %s", c.State())
	}
	waitFor(t, "first publish", func() bool { return rem.pushCount() == 1 })
	if c.Status() != StatusSaved {
		t.Errorf("expected saved, got %s", c.Status())
	}
	doc := c.Document()
	if len(doc.Themes) == 0 || len(doc.Journal) != 0 || len(doc.Questions) != 0 {
		t.Error("expected seeded document")
	}
}

func TestStart_EmptyStoreAdoptsRemote(t *testing.T) {
	remoteDoc := mutation.AddNote("q", schema.NewNote("written on another device"))(
		stamped(time.Now().Add(-24 * time.Hour)))
	rem := &fakeRemote{doc: remoteDoc}

	c, adapter := setupCoordinator(t, nil, rem)

	if n := len(c.Document().QuestionData("q").Notes); n != 1 {
		t.Fatalf("expected the remote note, got %d notes", n)
	}
	if n := len(adapter.Load().QuestionData("q").Notes); n != 1 {
		t.Errorf("remote document not stored locally, got %d notes", n)
	}
	settle()
	if rem.pushCount() != 0 {
		t.Errorf("fresh seed pushed over the remote document (%d pushes)", rem.pushCount())
	}
	if n := len(rem.doc.QuestionData("q").Notes); n != 1 {
		t.Errorf("remote document lost its note, got %d", n)
	}
}

func TestStart_RemoteNewerIsAdopted(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	remoteDoc := mutation.SetStatus("q", schema.StatusConcluded)(stamped(base.Add(time.Minute)))
	rem := &fakeRemote{doc: remoteDoc}

	c, adapter := setupCoordinator(t, stamped(base), rem)

	doc := c.Document()
	if !doc.LastModified.Equal(remoteDoc.LastModified) || doc.QuestionData("q").Status != schema.StatusConcluded {
		t.Error("remote document not adopted")
	}
	stored := adapter.Load()
	if !stored.LastModified.Equal(remoteDoc.LastModified) {
		t.Error("remote document not written locally")
	}
	settle()
	if rem.pushCount() != 0 {
		t.Errorf("adopting remote should not push, got %d pushes", rem.pushCount())
	}
}

func TestStart_EqualTimestampsPreferRemote(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	remoteDoc := mutation.ToggleStar("r")(stamped(base))
	c, _ := setupCoordinator(t, stamped(base), &fakeRemote{doc: remoteDoc})
	if !c.Document().QuestionData("r").Starred {
		t.Error("expected remote to win a tie")
	}
}

func TestStart_OfflineEditKeepsLocal(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	local := mutation.AddNote("q", schema.NewNote("offline"))(stamped(base.Add(time.Hour)))
	rem := &fakeRemote{doc: stamped(base)}

	c, _ := setupCoordinator(t, local, rem)

	if len(c.Document().QuestionData("q").Notes) != 1 {
		t.Fatal("local document replaced by older remote")
	}
	waitFor(t, "push of local copy", func() bool { return rem.pushCount() == 1 })
	if len(rem.lastPush().QuestionData("q").Notes) != 1 {
		t.Error("pushed document is not the local copy")
	}
}

func TestStart_FetchFailureGoesOffline(t *testing.T) {
	rem := &fakeRemote{fetchErr: errors.New("network down")}
	local := stamped(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	c, _ := setupCoordinator(t, local, rem)

	if c.Status() != StatusOffline {
		t.Errorf("expected offline, got %s", c.Status())
	}
	if !c.Document().LastModified.Equal(local.LastModified) {
		t.Error("local document not kept")
	}

	// Local edits keep working offline.
	if !c.Apply(mutation.AddNote("q", schema.NewNote("still works"))) {
		t.Error("mutation rejected while offline")
	}
}

func TestDebounceCollapsesPushes(t *testing.T) {
	rem := &fakeRemote{}
	c, _ := setupCoordinator(t, nil, rem)
	waitFor(t, "initial push", func() bool { return rem.pushCount() == 1 })

	for i := 0; i < 5; i++ {
		c.Apply(mutation.AddNote("q1", schema.NewNote("note")))
	}
	if c.Status() != StatusSaving {
		t.Errorf("expected saving, got %s", c.Status())
	}
	waitFor(t, "debounced push", func() bool { return rem.pushCount() == 2 })
	settle()

	if rem.pushCount() != 2 {
		t.Fatalf("expected exactly one push for the burst, got %d", rem.pushCount()-1)
	}
	if n := len(rem.lastPush().QuestionData("q1").Notes); n != 5 {
		t.Errorf("expected final state with 5 notes, got %d", n)
	}
	if c.Status() != StatusSaved {
		t.Errorf("expected saved, got %s", c.Status())
	}
}

func TestApply_PersistsAndStamps(t *testing.T) {
	rem := &fakeRemote{localOnly: true}
	c, adapter := setupCoordinator(t, nil, rem)
	before := c.Document()

	if !c.Apply(mutation.AddNote("q1", schema.NewNote("test"))) {
		t.Fatal("Apply reported no change")
	}
	after := c.Document()
	if !after.LastModified.After(before.LastModified) {
		t.Error("lastModified not advanced")
	}

	reloaded := adapter.Load()
	if len(reloaded.QuestionData("q1").Notes) != 1 {
		t.Error("mutation not persisted")
	}

	if c.Apply(mutation.UnlinkQuestion("missing", "q1")) {
		t.Error("no-op reported as change")
	}
	if c.Document() != after {
		t.Error("no-op replaced the document")
	}
	settle()
	if rem.pushCount() != 0 || c.Status() != StatusSaved {
		t.Error("local-only mode pushed or left saved state")
	}
}

func TestHandleChange_ExternalWriteWins(t *testing.T) {
	rem := &fakeRemote{}
	c, _ := setupCoordinator(t, nil, rem)
	waitFor(t, "initial push", func() bool { return rem.pushCount() == 1 })

	d2 := mutation.ToggleStar("from-extension")(c.Document())
	d2.LastModified = c.Document().LastModified.Add(time.Second)
	data, _ := schema.Marshal(d2)

	c.HandleChange(notify.Change{Key: localstore.DocumentKey, Value: data, Origin: notify.OriginLocal})

	if !c.Document().QuestionData("from-extension").Starred {
		t.Fatal("external write not adopted")
	}
	waitFor(t, "push of external write", func() bool { return rem.pushCount() == 2 })
}

func TestHandleChange_Ignored(t *testing.T) {
	rem := &fakeRemote{localOnly: true}
	c, adapter := setupCoordinator(t, nil, rem)
	c.Apply(mutation.AddNote("q", schema.NewNote("keep")))
	current := c.Document()

	own, err := adapter.Storage().GetItem(localstore.DocumentKey)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	other, _ := schema.Marshal(schema.Seed())

	changes := []notify.Change{
		{Key: localstore.DocumentKey, Value: []byte("{broken"), Origin: notify.OriginLocal},
		{Key: localstore.DocumentKey, Value: []byte(`{"version":3}`), Origin: notify.OriginLocal},
		{Key: localstore.DocumentKey, Value: nil, Origin: notify.OriginLocal},
		{Key: localstore.DocumentKey, Value: own, Origin: notify.OriginLocal},
		{Key: localstore.ThemeKey, Value: other, Origin: notify.OriginLocal},
	}
	for _, ch := range changes {
		c.HandleChange(ch)
		if c.Document() != current {
			t.Errorf("change %q replaced the document", ch.Value)
		}
	}
}

func TestHandleChange_RemoteOrigin(t *testing.T) {
	rem := &fakeRemote{}
	c, adapter := setupCoordinator(t, nil, rem)
	waitFor(t, "initial push", func() bool { return rem.pushCount() == 1 })
	current := c.Document()

	older := mutation.ToggleStar("old")(current)
	older.LastModified = current.LastModified.Add(-time.Second)
	data, _ := schema.Marshal(older)
	c.HandleChange(notify.Change{Value: data, Origin: notify.OriginRemote})
	if c.Document() != current {
		t.Error("older remote document adopted")
	}

	newer := mutation.ToggleStar("new")(current)
	newer.LastModified = current.LastModified.Add(time.Second)
	data, _ = schema.Marshal(newer)
	c.HandleChange(notify.Change{Value: data, Origin: notify.OriginRemote})
	if !c.Document().QuestionData("new").Starred {
		t.Fatal("newer remote document not adopted")
	}
	if !adapter.Load().QuestionData("new").Starred {
		t.Error("remote document not stored locally")
	}
	settle()
	if rem.pushCount() != 1 {
		t.Errorf("remote-origin document pushed back (%d pushes)", rem.pushCount())
	}
}

func TestTwoTabsShareStorage(t *testing.T) {
	bus := notify.NewBus()
	store := localstore.NewMemStorage(bus)
	rem := &fakeRemote{localOnly: true}

	a := NewWithConfig(localstore.NewQuietAdapter(store), rem, testConfig())
	b := NewWithConfig(localstore.NewQuietAdapter(store), rem, testConfig())
	a.Start(context.Background())
	b.Start(context.Background())
	waitReady(t, a)
	waitReady(t, b)
	defer a.Stop()
	defer b.Stop()

	subA, subB := bus.Subscribe(), bus.Subscribe()
	a.Watch(subA)
	b.Watch(subB)
	defer subA.Close()
	defer subB.Close()

	a.Apply(mutation.AddJournalEntry(schema.NewJournalEntry("from tab a", "", "", nil)))

	waitFor(t, "tab b to observe the write", func() bool {
		j := b.Document().Journal
		return len(j) == 1 && j[0].Content == "from tab a"
	})
	if len(a.Document().Journal) != 1 {
		t.Error("tab a lost its own write")
	}
}

func TestPushFailureSetsError(t *testing.T) {
	rem := &fakeRemote{}
	c, _ := setupCoordinator(t, nil, rem)
	waitFor(t, "initial push", func() bool { return rem.pushCount() == 1 })

	rem.mu.Lock()
	rem.pushErr = errors.New("503")
	rem.mu.Unlock()

	c.Apply(mutation.ToggleStar("q"))
	waitFor(t, "error status", func() bool { return c.Status() == StatusError })
	settle()
	if c.Status() != StatusError {
		t.Error("failed push was retried without retry enabled")
	}

	rem.mu.Lock()
	rem.pushErr = nil
	rem.mu.Unlock()
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if c.Status() != StatusSaved || rem.pushCount() != 2 {
		t.Errorf("explicit retry did not push: status %s, pushes %d", c.Status(), rem.pushCount())
	}
}

func TestPushRetryWithBackoff(t *testing.T) {
	rem := &fakeRemote{}
	adapter := localstore.NewQuietAdapter(localstore.NewMemStorage(nil))
	cfg := testConfig()
	cfg.Retry = true
	c := NewWithConfig(adapter, rem, cfg)
	c.Start(context.Background())
	waitReady(t, c)
	defer c.Stop()
	waitFor(t, "initial push", func() bool { return rem.pushCount() == 1 })

	rem.mu.Lock()
	rem.failPush = 2
	rem.mu.Unlock()

	c.Apply(mutation.ToggleStar("q"))
	waitFor(t, "retried push", func() bool { return rem.pushCount() == 2 })
	waitFor(t, "saved status", func() bool { return c.Status() == StatusSaved })
}

func TestImport(t *testing.T) {
	c, _ := setupCoordinator(t, nil, &fakeRemote{localOnly: true})
	before := c.Document()

	if err := c.Import([]byte(`{"version":3,"questions":{"q":{"status":"bogus"}}}`)); err == nil {
		t.Fatal("expected invalid import to fail")
	}
	if c.Document() != before {
		t.Error("failed import changed the document")
	}

	doc := mutation.SetStatus("imported", schema.StatusExploring)(schema.Seed())
	data, _ := schema.Export(doc)
	if err := c.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if c.Document().QuestionData("imported").Status != schema.StatusExploring {
		t.Error("import not applied")
	}
	if !c.Document().LastModified.After(before.LastModified) {
		t.Error("imported document not stamped")
	}
}

func TestSubscribe(t *testing.T) {
	c, _ := setupCoordinator(t, nil, &fakeRemote{localOnly: true})
	ch, cancel := c.Subscribe()
	defer cancel()

	first := <-ch
	if first.Document == nil || first.State != StateReady {
		t.Errorf("unexpected initial snapshot: %+v", first)
	}

	c.Apply(mutation.ToggleStar("q"))
	select {
	case snap := <-ch:
		if !snap.Document.QuestionData("q").Starred {
			t.Error("snapshot does not reflect mutation")
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot after mutation")
	}
}

func TestStopFlushesPendingPush(t *testing.T) {
	rem := &fakeRemote{doc: stamped(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))}
	adapter := localstore.NewQuietAdapter(localstore.NewMemStorage(nil))
	cfg := testConfig()
	cfg.DebounceInterval = time.Hour
	c := NewWithConfig(adapter, rem, cfg)
	c.Start(context.Background())
	waitReady(t, c)

	c.Apply(mutation.ToggleStar("q"))
	if !c.Pending() {
		t.Error("Pending() = false while a push is debounced")
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.Pending() {
		t.Error("Pending() = true after Stop pushed")
	}
	if rem.pushCount() != 1 || !rem.lastPush().QuestionData("q").Starred {
		t.Error("pending change not pushed on stop")
	}
	if c.Apply(mutation.ToggleStar("q")) {
		t.Error("Apply succeeded after Stop")
	}
}

// flakyStorage fails SetItem while fail is set.
type flakyStorage struct {
	*localstore.MemStorage
	mu   sync.Mutex
	fail bool
}

func (f *flakyStorage) SetItem(key string, value []byte) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.MemStorage.SetItem(key, value)
}

func (f *flakyStorage) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func startWithStorage(t *testing.T, store localstore.Storage, rem *fakeRemote) *Coordinator {
	t.Helper()
	c := NewWithConfig(localstore.NewQuietAdapter(store), rem, testConfig())
	c.Start(context.Background())
	waitReady(t, c)
	t.Cleanup(func() { c.Stop() })
	return c
}

func TestLocalSaveFailure_LocalOnly(t *testing.T) {
	store := &flakyStorage{MemStorage: localstore.NewMemStorage(nil)}
	c := startWithStorage(t, store, &fakeRemote{localOnly: true})

	store.setFail(true)
	if !c.Apply(mutation.ToggleStar("q")) {
		t.Fatal("Apply reported no change")
	}
	if c.Status() != StatusError {
		t.Errorf("after failing save: expected error, got %s", c.Status())
	}
	if !c.Document().QuestionData("q").Starred {
		t.Error("in-memory document not updated after failing save")
	}

	store.setFail(false)
	c.Apply(mutation.ToggleStar("r"))
	if c.Status() != StatusSaved {
		t.Errorf("after successful save: expected saved, got %s", c.Status())
	}
}

func TestLocalSaveFailure_WithRemote(t *testing.T) {
	store := &flakyStorage{MemStorage: localstore.NewMemStorage(nil)}
	rem := &fakeRemote{}
	c := startWithStorage(t, store, rem)
	waitFor(t, "initial push", func() bool { return rem.pushCount() == 1 })

	store.setFail(true)
	c.Apply(mutation.ToggleStar("q"))
	waitFor(t, "push of failed local save", func() bool { return rem.pushCount() == 2 })
	settle()
	if c.Status() != StatusError {
		t.Errorf("failed local save hidden by push: status %s", c.Status())
	}

	store.setFail(false)
	c.Apply(mutation.ToggleStar("r"))
	waitFor(t, "saved status", func() bool { return c.Status() == StatusSaved })
}
