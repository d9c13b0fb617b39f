// Package coordinator owns the in-memory research journal document.
//
// The coordinator:
//  1. Loads the local copy and publishes it immediately
//  2. Fetches the remote copy and reconciles by lastModified (last write wins)
//  3. Applies mutations, persisting each one locally before the next runs
//  4. Debounces pushes of the full document to the server
//  5. Adopts writes observed from other local writers and other devices
//
// Concurrent edits made on two devices while both are offline are not
// merged: whichever copy carries the later lastModified replaces the other
// entirely.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/researchjournal/rj/internal/localstore"
	"github.com/researchjournal/rj/internal/mutation"
	"github.com/researchjournal/rj/internal/notify"
	"github.com/researchjournal/rj/internal/remote"
	"github.com/researchjournal/rj/internal/schema"
)

// State is the coordinator lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateReconciling
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReconciling:
		return "reconciling"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// SyncStatus tracks the remote copy independently of State.
type SyncStatus string

const (
	StatusSaved   SyncStatus = "saved"
	StatusSaving  SyncStatus = "saving"
	StatusError   SyncStatus = "error"
	StatusOffline SyncStatus = "offline"
)

// ErrStopped is returned by operations on a stopped coordinator.
var ErrStopped = errors.New("coordinator stopped")

// Config holds configuration for the coordinator.
type Config struct {
	// DebounceInterval is the quiet period after the last mutation before
	// the document is pushed.
	DebounceInterval time.Duration

	// PushTimeout bounds a single remote push or fetch.
	PushTimeout time.Duration

	// Retry enables automatic retries of failed pushes. When false a failed
	// push waits for the next mutation or an explicit Flush.
	Retry bool

	// RetryMax is the number of automatic retries after a failed push.
	RetryMax int

	// RetryBaseDelay is the first retry delay; it doubles on each attempt.
	RetryBaseDelay time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// Logger for coordinator activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 500 * time.Millisecond,
		PushTimeout:      15 * time.Second,
		Retry:            false,
		RetryMax:         3,
		RetryBaseDelay:   time.Second,
		Logger:           log.New(os.Stderr, "[coordinator] ", log.LstdFlags),
	}
}

// Snapshot is what subscribers receive after every change. Documents are
// never modified once published, so Document may be read freely.
type Snapshot struct {
	Document *schema.Document
	State    State
	Status   SyncStatus
}

// Coordinator mediates every read and write of the document.
type Coordinator struct {
	config *Config
	store  *localstore.Adapter
	remote remote.Remote

	mu      sync.Mutex
	doc     *schema.Document
	state   State
	status  SyncStatus
	timer   *time.Timer
	gen     uint64
	pending bool
	stopped bool

	// saveErr is set while the last local write failed. It holds the status
	// at error until a later write succeeds.
	saveErr bool

	subs    map[int]chan Snapshot
	nextSub int

	ready     chan struct{}
	readyOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a coordinator. Call Start to load and reconcile.
func New(store *localstore.Adapter, rem remote.Remote) *Coordinator {
	return NewWithConfig(store, rem, DefaultConfig())
}

// NewWithConfig creates a coordinator with custom configuration.
func NewWithConfig(store *localstore.Adapter, rem remote.Remote, config *Config) *Coordinator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	if config.PushTimeout <= 0 {
		config.PushTimeout = DefaultConfig().PushTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		config: config,
		store:  store,
		remote: rem,
		state:  StateInitializing,
		status: StatusSaved,
		subs:   make(map[int]chan Snapshot),
		ready:  make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start loads the local document and publishes it, then reconciles with the
// remote copy in the background. It returns once the local document is
// available; Ready is closed when reconciliation finishes.
func (c *Coordinator) Start(ctx context.Context) {
	doc := c.store.Load()

	c.mu.Lock()
	c.doc = doc
	c.publishLocked()
	c.state = StateReconciling
	c.publishLocked()
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := mergeCancel(ctx, c.ctx)
		defer cancel()
		if err := c.Reconcile(ctx); err != nil {
			c.config.Logger.Printf("Warning: reconciliation failed, working offline: %v", err)
		}
		c.mu.Lock()
		c.state = StateReady
		c.publishLocked()
		c.mu.Unlock()
		c.readyOnce.Do(func() { close(c.ready) })
	}()
}

// Ready is closed once the initial reconciliation has finished.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Reconcile fetches the remote document and applies last-write-wins.
// A fetch failure leaves the local document in place and marks the status
// offline.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.PushTimeout)
	defer cancel()
	remoteDoc, err := c.remote.FetchRemote(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}

	if err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			c.setStatusLocked(StatusError)
		} else {
			c.setStatusLocked(StatusOffline)
		}
		c.publishLocked()
		return fmt.Errorf("fetch failed: %w", err)
	}

	if remoteDoc == nil {
		if !c.remote.LocalOnly() {
			c.debugf("No remote document, publishing local copy")
			c.schedulePushLocked()
		}
		return nil
	}

	winner, adopted := Resolve(c.doc, remoteDoc)
	if adopted {
		c.debugf("Adopting remote document (remote %s >= local %s)",
			remoteDoc.LastModified.Format(time.RFC3339Nano), c.doc.LastModified.Format(time.RFC3339Nano))
		c.doc = winner
		c.recordSaveLocked(c.store.Replace(winner))
		if !c.pending {
			c.setStatusLocked(StatusSaved)
		}
		c.publishLocked()
		return nil
	}

	c.debugf("Local document is newer, pushing")
	c.schedulePushLocked()
	return nil
}

// Resolve applies last-write-wins: remote is kept when its lastModified is
// the same as or later than local's. It reports whether remote won.
func Resolve(local, remote *schema.Document) (*schema.Document, bool) {
	if remote == nil {
		return local, false
	}
	if local == nil || !remote.LastModified.Before(local.LastModified) {
		return remote, true
	}
	return local, false
}

// Document returns the current document. It must not be modified.
func (c *Coordinator) Document() *schema.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the sync status.
func (c *Coordinator) Status() SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Snapshot returns the document, state and status together.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel that always holds the latest snapshot. Slow
// readers skip intermediate snapshots. The returned function unsubscribes.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	if c.doc != nil {
		ch <- c.snapshotLocked()
	}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Apply runs op against the current document. A change is persisted locally
// before Apply returns and a push is scheduled. It reports whether op
// changed anything.
func (c *Coordinator) Apply(op mutation.Op) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.doc == nil {
		return false
	}
	prev := c.doc
	next := op(prev)
	if next == nil || next == prev {
		return false
	}

	saved, err := c.store.Save(next)
	c.recordSaveLocked(err)
	c.doc = saved
	c.publishLocked()
	c.schedulePushLocked()
	return true
}

// Import validates data and replaces the whole document with it. An invalid
// payload leaves the document untouched.
func (c *Coordinator) Import(data []byte) error {
	doc, err := schema.Import(data)
	if err != nil {
		return err
	}
	if !c.Apply(mutation.ReplaceDocument(doc)) {
		return ErrStopped
	}
	return nil
}

// Watch adopts changes from n until n closes or the coordinator stops.
func (c *Coordinator) Watch(n notify.Notifier) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case change, ok := <-n.Changes():
				if !ok {
					return
				}
				c.HandleChange(change)
			}
		}
	}()
}

// HandleChange applies a single storage-change notification.
//
// Local-origin writes (another process, tab or the capture extension) replace
// the in-memory document and schedule a push. Remote-origin documents are
// adopted only when strictly newer and are not pushed back. Malformed values
// and echoes of our own writes are ignored.
func (c *Coordinator) HandleChange(change notify.Change) {
	if change.Value == nil {
		return
	}
	if change.Origin == notify.OriginLocal {
		if change.Key != localstore.DocumentKey || c.store.IsOwnWrite(change.Value) {
			return
		}
	}

	doc, err := schema.Parse(change.Value)
	if err != nil {
		c.debugf("Ignoring malformed %s write: %v", change.Origin, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.doc == nil {
		return
	}

	switch change.Origin {
	case notify.OriginRemote:
		if !doc.LastModified.After(c.doc.LastModified) {
			return
		}
		c.debugf("Adopting document pushed by another device")
		c.doc = doc
		c.recordSaveLocked(c.store.Replace(doc))
		if !c.pending {
			c.setStatusLocked(StatusSaved)
		}
		c.publishLocked()

	default:
		c.debugf("Adopting external local write")
		c.doc = doc
		c.publishLocked()
		c.schedulePushLocked()
	}
}

// Flush pushes the current document now, cancelling any pending debounce.
// It is also the explicit retry after a failed push.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.remote.LocalOnly() || c.doc == nil {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	gen := c.gen
	c.pending = true
	c.setStatusLocked(StatusSaving)
	doc := c.doc
	c.publishLocked()
	c.mu.Unlock()

	return c.push(ctx, gen, doc)
}

// Pending reports whether a push is scheduled or in flight.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Stop pushes any pending change, then stops background work.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	hadTimer := c.timer != nil
	if hadTimer {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	var err error
	if hadTimer {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.PushTimeout)
		err = c.Flush(ctx)
		cancel()
	}

	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.readyOnce.Do(func() { close(c.ready) })
	return err
}

// schedulePushLocked (re)starts the debounce timer. c.mu must be held.
func (c *Coordinator) schedulePushLocked() {
	if c.remote.LocalOnly() || c.stopped {
		return
	}
	c.gen++
	gen := c.gen
	c.pending = true
	c.setStatusLocked(StatusSaving)
	c.publishLocked()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.config.DebounceInterval, func() { c.firePush(gen, 0) })
}

// firePush runs when the debounce (or a retry delay) elapses.
func (c *Coordinator) firePush(gen uint64, attempt int) {
	c.mu.Lock()
	if c.stopped || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	doc := c.doc
	if attempt > 0 {
		c.setStatusLocked(StatusSaving)
		c.publishLocked()
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	// Not c.ctx: Stop waits for an in-flight push instead of aborting it.
	if err := c.push(context.Background(), gen, doc); err != nil {
		c.maybeRetry(gen, attempt)
	}
}

// push sends doc and records the outcome unless a newer push superseded it.
func (c *Coordinator) push(ctx context.Context, gen uint64, doc *schema.Document) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.PushTimeout)
	defer cancel()
	err := c.remote.PushRemote(ctx, doc)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return err
	}
	c.pending = false
	if err != nil {
		c.config.Logger.Printf("Warning: push failed: %v", err)
		c.status = StatusError
	} else {
		c.debugf("Pushed document (lastModified %s)", doc.LastModified.Format(time.RFC3339Nano))
		c.setStatusLocked(StatusSaved)
	}
	c.publishLocked()
	return err
}

func (c *Coordinator) maybeRetry(gen uint64, attempt int) {
	if !c.config.Retry || attempt >= c.config.RetryMax {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || gen != c.gen {
		return
	}
	delay := c.config.RetryBaseDelay << attempt
	c.debugf("Retrying push in %s (attempt %d/%d)", delay, attempt+1, c.config.RetryMax)
	c.pending = true
	c.timer = time.AfterFunc(delay, func() { c.firePush(gen, attempt+1) })
}

// recordSaveLocked notes the outcome of a local write.
func (c *Coordinator) recordSaveLocked(err error) {
	if err != nil {
		c.config.Logger.Printf("Warning: failed to save document locally: %v", err)
		c.saveErr = true
		c.status = StatusError
		return
	}
	if c.saveErr {
		c.saveErr = false
		if c.remote.LocalOnly() {
			c.status = StatusSaved
		}
	}
}

// setStatusLocked sets the sync status unless a failed local write is
// outstanding, which keeps it at error.
func (c *Coordinator) setStatusLocked(s SyncStatus) {
	if c.saveErr {
		s = StatusError
	}
	c.status = s
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{Document: c.doc, State: c.state, Status: c.status}
}

// publishLocked hands the latest snapshot to every subscriber, replacing any
// snapshot they have not read yet.
func (c *Coordinator) publishLocked() {
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (c *Coordinator) debugf(format string, args ...any) {
	if c.config.Verbose {
		c.config.Logger.Printf(format, args...)
	}
}

// mergeCancel returns a context cancelled when either parent is.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
