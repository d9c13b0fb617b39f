// Package notify carries storage-change notifications between the processes
// and goroutines that share a research journal.
package notify

import (
	"sync"
)

// Origin says where a change came from.
type Origin int

const (
	// OriginLocal is another writer of the same local storage: a second rj
	// process, another coordinator in this process, or the capture extension.
	OriginLocal Origin = iota
	// OriginRemote is a document stored on the server by another device.
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Change is a single key write. Value is nil when the key was removed.
type Change struct {
	Key    string
	Value  []byte
	Origin Origin
}

// Notifier delivers changes until closed.
type Notifier interface {
	Changes() <-chan Change
	Close() error
}

// Bus fans changes out to in-process subscribers. Slow subscribers drop
// changes rather than block publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscription is a Notifier fed by a Bus.
type Subscription struct {
	bus  *Bus
	ch   chan Change
	once sync.Once
}

// Subscribe registers a new subscriber with a buffered channel.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{bus: b, ch: make(chan Change, 64)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers c to every subscriber except skip (which may be nil).
func (b *Bus) Publish(c Change, skip *Subscription) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if s == skip {
			continue
		}
		select {
		case s.ch <- c:
		default:
		}
	}
}

// Close closes every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.once.Do(func() { close(s.ch) })
		delete(b.subs, s)
	}
}

// Changes implements Notifier.
func (s *Subscription) Changes() <-chan Change {
	return s.ch
}

// Close implements Notifier.
func (s *Subscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
	return nil
}
