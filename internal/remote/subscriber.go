package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/researchjournal/rj/internal/notify"
)

// DocumentChangeKey is the key carried by remote-origin changes.
const DocumentChangeKey = "remote-document"

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
	maxDocumentSize   = 32 << 20
)

// Subscriber follows the server's event stream and reports every document
// stored by any device as a remote-origin change. It reconnects with
// exponential backoff until closed.
type Subscriber struct {
	client *Client

	changes chan notify.Change
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once

	mu        sync.Mutex
	connected bool
}

// NewSubscriber creates a subscriber using client's base URL and session.
func NewSubscriber(client *Client) *Subscriber {
	return &Subscriber{client: client, changes: make(chan notify.Change, 16)}
}

// Start runs the connection loop in the background.
func (s *Subscriber) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Changes implements notify.Notifier.
func (s *Subscriber) Changes() <-chan notify.Change {
	return s.changes
}

// Connected reports whether the stream is currently open.
func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close implements notify.Notifier.
func (s *Subscriber) Close() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		close(s.changes)
	})
	return nil
}

func (s *Subscriber) run(ctx context.Context) {
	defer s.wg.Done()
	if s.client.LocalOnly() {
		<-ctx.Done()
		return
	}

	var delay time.Duration
	for {
		connected, err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		delay = nextReconnectDelay(delay, connected)
		if err != nil {
			s.client.logger.Printf("Event stream disconnected: %v (retrying in %s)", err, delay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// nextReconnectDelay doubles prev up to the maximum. A stream that got
// connected starts over from the minimum.
func nextReconnectDelay(prev time.Duration, connected bool) time.Duration {
	if connected || prev <= 0 {
		return minReconnectDelay
	}
	return min(prev*2, maxReconnectDelay)
}

// stream reads events until the connection drops. It reports whether the
// connection was established at all.
func (s *Subscriber) stream(ctx context.Context) (bool, error) {
	url := "ws" + strings.TrimPrefix(s.client.BaseURL(), "http") + EventsPath
	header := http.Header{}
	if tok := s.client.Session(); tok != "" {
		header.Set("Cookie", (&http.Cookie{Name: SessionName, Value: tok}).String())
	}

	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, ErrUnauthorized
		}
		return false, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(maxDocumentSize)

	s.setConnected(true)
	defer s.setConnected(false)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return true, nil
			}
			return true, err
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type != EventDocument || len(ev.Data) == 0 {
			continue
		}
		select {
		case s.changes <- notify.Change{Key: DocumentChangeKey, Value: []byte(ev.Data), Origin: notify.OriginRemote}:
		case <-ctx.Done():
			return true, nil
		}
	}
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
