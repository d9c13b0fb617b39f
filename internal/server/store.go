package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/redis/go-redis/v9"
)

// DocumentID is the id of the single stored document.
const DocumentID = "main"

// ErrNoDocument is returned by Get before the first Put.
var ErrNoDocument = errors.New("no data found")

// DocumentStore keeps the single user document as opaque JSON.
type DocumentStore interface {
	// Get returns the stored JSON and when it was written.
	Get(ctx context.Context) ([]byte, time.Time, error)

	// Put replaces the stored JSON, stamping the write time.
	Put(ctx context.Context, data []byte) (time.Time, error)

	Close() error
}

const appDataSchema = `
CREATE TABLE IF NOT EXISTS app_data (
    id         TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    updated_at DATETIME NOT NULL
)`

// SQLiteStore keeps the document in the app_data table of an embedded
// SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path.
// ":memory:" is accepted for tests.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	connStr := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		connStr = "file:" + path
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(appDataSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create app_data table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements DocumentStore.
func (s *SQLiteStore) Get(ctx context.Context) ([]byte, time.Time, error) {
	var (
		data    string
		stamped string
	)
	err := s.db.QueryRowContext(ctx, "SELECT data, updated_at FROM app_data WHERE id = ?", DocumentID).Scan(&data, &stamped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoDocument
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read document: %w", err)
	}
	updatedAt, _ := time.Parse(time.RFC3339Nano, stamped)
	return []byte(data), updatedAt, nil
}

// Put implements DocumentStore.
func (s *SQLiteStore) Put(ctx context.Context, data []byte) (time.Time, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_data (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		DocumentID, string(data), now.Format(time.RFC3339Nano))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to write document: %w", err)
	}
	return now, nil
}

// Close implements DocumentStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RedisStore keeps the document in a Redis hash.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: "rj:app_data:" + DocumentID}
}

// Get implements DocumentStore.
func (s *RedisStore) Get(ctx context.Context) ([]byte, time.Time, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read document: %w", err)
	}
	data, ok := fields["data"]
	if !ok {
		return nil, time.Time{}, ErrNoDocument
	}
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])
	return []byte(data), updatedAt, nil
}

// Put implements DocumentStore.
func (s *RedisStore) Put(ctx context.Context, data []byte) (time.Time, error) {
	now := time.Now().UTC()
	if err := s.client.HSet(ctx, s.key, "data", string(data), "updated_at", now.Format(time.RFC3339Nano)).Err(); err != nil {
		return time.Time{}, fmt.Errorf("write document: %w", err)
	}
	return now, nil
}

// Close implements DocumentStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
