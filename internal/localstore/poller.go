package localstore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/researchjournal/rj/internal/notify"
)

// DefaultPollInterval is how often a Poller checks for commits by other
// connections.
const DefaultPollInterval = 250 * time.Millisecond

// Poller detects writes to a SQLiteStorage made through other connections
// (typically another rj process) using PRAGMA data_version, and reports
// changed values of the watched keys.
type Poller struct {
	store    *SQLiteStorage
	keys     []string
	interval time.Duration

	changes chan notify.Change
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPoller creates a poller for keys. A zero interval uses
// DefaultPollInterval.
func NewPoller(store *SQLiteStorage, interval time.Duration, keys ...string) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		store:    store,
		keys:     keys,
		interval: interval,
		changes:  make(chan notify.Change, 100),
	}
}

// Start takes a dedicated connection and begins polling until ctx is done or
// Close is called.
func (p *Poller) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	conn, err := p.store.DB().Conn(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to reserve polling connection: %w", err)
	}

	version, err := dataVersion(ctx, conn)
	if err != nil {
		cancel()
		_ = conn.Close()
		return err
	}
	last := p.snapshot(ctx, conn)

	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer conn.Close()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v, err := dataVersion(ctx, conn)
				if err != nil || v == version {
					continue
				}
				version = v
				current := p.snapshot(ctx, conn)
				for _, key := range p.keys {
					if bytes.Equal(current[key], last[key]) {
						continue
					}
					select {
					case p.changes <- notify.Change{Key: key, Value: current[key], Origin: notify.OriginLocal}:
					case <-ctx.Done():
						return
					}
				}
				last = current
			}
		}
	}()
	return nil
}

// Changes implements notify.Notifier.
func (p *Poller) Changes() <-chan notify.Change {
	return p.changes
}

// Close implements notify.Notifier.
func (p *Poller) Close() error {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		close(p.changes)
	})
	return nil
}

func (p *Poller) snapshot(ctx context.Context, conn *sql.Conn) map[string][]byte {
	out := make(map[string][]byte, len(p.keys))
	for _, key := range p.keys {
		var value []byte
		err := conn.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			continue
		}
		out[key] = value
	}
	return out
}

func dataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	if err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read data_version: %w", err)
	}
	return v, nil
}
