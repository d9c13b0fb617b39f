package localstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/researchjournal/rj/internal/notify"
)

// FileWatcher turns writes to an FSStorage directory by other processes into
// notify changes. It only works for stores on the host filesystem.
//
// Our own writes are reported too; callers drop them with
// Adapter.IsOwnWrite.
type FileWatcher struct {
	store   *FSStorage
	keys    map[string]bool
	watcher *fsnotify.Watcher
	changes chan notify.Change
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stopped bool
}

// NewFileWatcher creates a watcher for keys of store (all keys when none
// given). The watcher must be started with Start before it emits changes.
func NewFileWatcher(store *FSStorage, keys ...string) (*FileWatcher, error) {
	if store.OSDir() == "" {
		return nil, fmt.Errorf("storage is not on the host filesystem")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	var filter map[string]bool
	if len(keys) > 0 {
		filter = make(map[string]bool, len(keys))
		for _, k := range keys {
			filter[k] = true
		}
	}

	return &FileWatcher{
		store:   store,
		keys:    filter,
		watcher: watcher,
		changes: make(chan notify.Change, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the storage directory.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running || fw.stopped {
		return fmt.Errorf("watcher already running")
	}
	if err := fw.watcher.Add(fw.store.OSDir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fw.store.OSDir(), err)
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()
	return nil
}

// Close stops watching and closes the change and error channels. It blocks
// until the event loop has exited.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	wasRunning := fw.running
	fw.running = false
	fw.stopped = true
	fw.mu.Unlock()

	close(fw.done)
	err := fw.watcher.Close()
	if wasRunning {
		fw.wg.Wait()
	}
	close(fw.changes)
	close(fw.errors)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Changes implements notify.Notifier.
func (fw *FileWatcher) Changes() <-chan notify.Change {
	return fw.changes
}

// Errors returns watcher errors. The channel is closed by Close.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			change, ok := fw.convertEvent(event)
			if !ok {
				continue
			}
			select {
			case fw.changes <- change:
			case <-fw.done:
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// convertEvent maps an fsnotify event to the key's current value.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (notify.Change, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return notify.Change{}, false
	}

	key, ok := KeyFromFileName(filepath.Base(event.Name))
	if !ok {
		return notify.Change{}, false
	}
	if fw.keys != nil && !fw.keys[key] {
		return notify.Change{}, false
	}

	value, err := fw.store.GetItem(key)
	switch {
	case errors.Is(err, ErrNotFound):
		value = nil
	case err != nil:
		select {
		case fw.errors <- err:
		default:
		}
		return notify.Change{}, false
	}
	return notify.Change{Key: key, Value: value, Origin: notify.OriginLocal}, true
}
