package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/researchjournal/rj/internal/notify"
)

func testStorageContract(t *testing.T, s Storage) {
	t.Helper()

	if _, err := s.GetItem("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	must(t, s.SetItem("a", []byte("1")))
	must(t, s.SetItem("a", []byte("2")))
	must(t, s.SetItem("draft/with spaces", []byte("3")))

	got, err := s.GetItem("a")
	if err != nil || string(got) != "2" {
		t.Errorf("GetItem(a) = %q, %v", got, err)
	}
	got, err = s.GetItem("draft/with spaces")
	if err != nil || string(got) != "3" {
		t.Errorf("GetItem(draft) = %q, %v", got, err)
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "draft/with spaces" {
		t.Errorf("unexpected keys: %v", keys)
	}

	must(t, s.RemoveItem("a"))
	must(t, s.RemoveItem("a"))
	if _, err := s.GetItem("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestMemStorage(t *testing.T) {
	testStorageContract(t, NewMemStorage(nil))
}

func TestFSStorage(t *testing.T) {
	testStorageContract(t, setupFSStorage(t))
}

func TestOpenDir(t *testing.T) {
	s, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	testStorageContract(t, s)
}

func TestSQLiteStorage(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "rj.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()
	testStorageContract(t, s)
}

func TestMemStoragePublishes(t *testing.T) {
	bus := notify.NewBus()
	sub := bus.Subscribe()
	s := NewMemStorage(bus)
	must(t, s.SetItem(DocumentKey, []byte("x")))

	select {
	case c := <-sub.Changes():
		if c.Key != DocumentKey || string(c.Value) != "x" {
			t.Errorf("unexpected change: %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("no change published")
	}
}

func TestFileWatcher_ExternalWrite(t *testing.T) {
	dir := t.TempDir()
	ours, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	theirs, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}

	fw, err := NewFileWatcher(ours, DocumentKey)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}
	if err := fw.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer fw.Close()

	must(t, theirs.SetItem(ThemeKey, []byte("dark")))
	must(t, theirs.SetItem(DocumentKey, []byte(`{"version":3}`)))

	timeout := time.After(2 * time.Second)
	for {
		select {
		case c := <-fw.Changes():
			if c.Key != DocumentKey {
				t.Fatalf("unfiltered key %q", c.Key)
			}
			if string(c.Value) == `{"version":3}` {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for change")
		}
	}
}

func TestPoller_DetectsOtherConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rj.db")
	ours, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer ours.Close()
	theirs, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer theirs.Close()

	p := NewPoller(ours, 20*time.Millisecond, DocumentKey)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Close()

	must(t, theirs.SetItem(DocumentKey, []byte("v1")))

	select {
	case c := <-p.Changes():
		if string(c.Value) != "v1" {
			t.Errorf("unexpected value %q", c.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not report change")
	}
}
